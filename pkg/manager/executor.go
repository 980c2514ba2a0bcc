// Copyright 2025 Tarick Lorran
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package manager runs one delegation step: the reason-act loop of a
// single manager over the tools of its agents. Each loop turn asks the
// model to think, act or answer; actions execute through the agent
// executor and feed back into the loop as observations.
package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/taricklorran/AGENT-TCC/pkg/agent"
	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
	"github.com/taricklorran/AGENT-TCC/pkg/llm"
	"github.com/taricklorran/AGENT-TCC/pkg/tool"
)

// CycleRunner produces one react turn for a manager.
type CycleRunner interface {
	RunReactCycle(ctx context.Context, userID string, manager definition.Manager, execCtx *execution.Context, history []string, originalQuestion string) (llm.Cycle, error)
}

// ToolRunner executes one tool on behalf of an agent.
type ToolRunner interface {
	Execute(ctx context.Context, ag *definition.Agent, toolName string, params map[string]any, execCtx *execution.Context) tool.Result
}

// StepLogger is the slice of the execution logger the react loop feeds.
type StepLogger interface {
	LogThought(sessionID, managerID, thought string)
	LogAction(sessionID, managerID, action string)
	LogObservation(sessionID, managerID, observation string)
	LogFinalAnswer(sessionID, managerID, finalAnswer string)
	LogToolResult(sessionID, managerID, agentID, toolName string, success bool, output any)
}

var (
	_ CycleRunner = (*llm.Adapter)(nil)
	_ ToolRunner  = (*agent.Executor)(nil)
	_ StepLogger  = (*execution.Logger)(nil)
)

// Executor drives the react loop of one manager.
type Executor struct {
	runner CycleRunner
	agents ToolRunner
	logger StepLogger
	cycles int
	log    *slog.Logger
}

// NewExecutor builds a step executor capped at maxCycles react turns.
func NewExecutor(runner CycleRunner, agents ToolRunner, logger StepLogger, maxCycles int, log *slog.Logger) *Executor {
	if maxCycles <= 0 {
		maxCycles = 2
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		runner: runner,
		agents: agents,
		logger: logger,
		cycles: maxCycles,
		log:    log,
	}
}

// Execute runs the manager's react loop against the step context. The
// returned bool reports whether the step suspended waiting for user input,
// with the pending actions left in stepCtx.PendingActions; a final answer
// lands in stepCtx.FinalOutput. The only error is a missing react prompt
// template; every other failure is contained as an observation.
//
// Results recorded during the loop are merged over the results the step
// started with, and history entries are appended after the entries the
// step started with. The merge runs on every return path, the error path
// included, so a truncated step never loses earlier managers' work.
func (e *Executor) Execute(ctx context.Context, manager definition.Manager, stepCtx *execution.Context, originalQuestion string) (suspended bool, err error) {
	ctx, span := startStepSpan(ctx, manager.ID)
	defer span.End()

	snap := stepCtx.Snapshot()
	initialResults := snap.PreviousResults
	initialHistory := snap.ReactHistory

	var appended []string
	record := func(entry string) {
		appended = append(appended, entry)
		stepCtx.ReactHistory = append(stepCtx.ReactHistory, entry)
	}

	defer func() {
		stepCtx.PreviousResults = execution.MergeResults(initialResults, stepCtx.PreviousResults)
		stepCtx.ReactHistory = execution.AppendHistory(initialHistory, appended)
	}()

	for cycle := 1; cycle <= e.cycles; cycle++ {
		e.log.Info("starting react cycle",
			"manager_id", manager.ID, "cycle", cycle, "max_cycles", e.cycles)

		turn, err := e.runner.RunReactCycle(ctx, stepCtx.UserID, manager, stepCtx, stepCtx.ReactHistory, originalQuestion)
		if err != nil {
			return false, fmt.Errorf("react cycle for manager %q: %w", manager.ID, err)
		}

		if turn.Thought != "" {
			record("[THOUGHT]: " + turn.Thought)
			e.logger.LogThought(stepCtx.SessionID, manager.ID, turn.Thought)
			e.log.Debug("react thought", "manager_id", manager.ID, "thought", turn.Thought)
		}

		if turn.FinalAnswer != "" {
			record("[FINAL_ANSWER]: " + turn.FinalAnswer)
			stepCtx.FinalOutput = turn.FinalAnswer
			e.logger.LogFinalAnswer(stepCtx.SessionID, manager.ID, turn.FinalAnswer)
			e.log.Info("manager produced final answer", "manager_id", manager.ID)
			return false, nil
		}

		if turn.Action != "" {
			record("[ACTION]: " + turn.Action)
			e.logger.LogAction(stepCtx.SessionID, manager.ID, turn.Action)
			e.log.Debug("react action", "manager_id", manager.ID, "action", turn.Action)

			observation, wantsInput := e.runAction(ctx, manager, stepCtx, turn.Action)
			if wantsInput {
				e.log.Info("step suspended awaiting user input", "manager_id", manager.ID)
				return true, nil
			}
			if observation != "" {
				entry := "[OBSERVATION]: " + observation
				record(entry)
				e.logger.LogObservation(stepCtx.SessionID, manager.ID, entry)
			}
		}
		// An empty turn is a no-op cycle; the loop simply tries again.
	}

	record("[OBSERVATION]: Limite máximo de ciclos atingido")
	e.log.Warn("react cycle limit reached", "manager_id", manager.ID, "max_cycles", e.cycles)
	return false, nil
}

// runAction parses one action section and executes the call it names,
// returning the observation text and whether the step must suspend for
// user input. A panic below the agent executor's own guard is folded into
// an observation here.
func (e *Executor) runAction(ctx context.Context, manager definition.Manager, stepCtx *execution.Context, action string) (observation string, wantsInput bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("react action panicked",
				"manager_id", manager.ID, "action", action, "panic", r)
			observation = fmt.Sprintf("Erro na execução: %v", r)
			wantsInput = false
		}
	}()

	call, ok := llm.ParseAction(action)
	if !ok {
		return "Formato de ação não reconhecido: " + action, false
	}

	owner, toolDef, found := findToolOwner(manager, call.ToolName)
	if !found {
		return fmt.Sprintf("Ferramenta '%s' ou seu agente não foram encontrados", call.ToolName), false
	}

	// The owner lookup canonicalizes the tool name, so the agent executor's
	// exact lookup always agrees with it.
	result := e.agents.Execute(ctx, &owner, toolDef.Name, call.Params, stepCtx)

	if result.NextStep == tool.NextStepRequestUserInput {
		stepCtx.PendingActions = append(stepCtx.PendingActions, execution.PendingAction{
			AgentID:        owner.ID,
			RequiredParams: result.RequiredParams,
		})
		return "", true
	}

	e.logger.LogToolResult(stepCtx.SessionID, manager.ID, owner.ID, toolDef.Name, result.Success, result.Output)
	stepCtx.RecordResult(owner.ID, toolDef.Name, result.Output)

	return formatObservation(result.Output), false
}

// findToolOwner locates the active agent owning a tool, matching the name
// case-insensitively, and returns the canonical tool definition.
func findToolOwner(manager definition.Manager, toolName string) (definition.Agent, definition.Tool, bool) {
	for _, ag := range manager.Agents {
		if !ag.Active {
			continue
		}
		if t, ok := ag.HasToolFold(toolName); ok {
			return ag, t, true
		}
	}
	return definition.Agent{}, definition.Tool{}, false
}

// formatObservation renders a tool output the way the model reads it back:
// structured values as JSON, everything else stringified.
func formatObservation(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	switch reflect.ValueOf(output).Kind() {
	case reflect.Map, reflect.Slice:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(output); err == nil {
			return strings.TrimRight(buf.String(), "\n")
		}
	}
	return fmt.Sprint(output)
}
