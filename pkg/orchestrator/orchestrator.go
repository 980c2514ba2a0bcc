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

// Package orchestrator coordinates one user question end to end: it loads
// the user's manager catalog, asks the delegator which manager to call
// next, runs each delegation as an isolated step and synthesizes the final
// user-facing answer from everything the steps gathered.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taricklorran/AGENT-TCC/pkg/conversation"
	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
	"github.com/taricklorran/AGENT-TCC/pkg/llm"
	"github.com/taricklorran/AGENT-TCC/pkg/manager"
)

// Response types.
const (
	TypeCompleted = "completed"
	TypePending   = "pending"
	TypeError     = "error"
)

// Fixed user-facing strings of the delegation flow.
const (
	validationMessage     = "user_id e user_input são obrigatórios no payload da tarefa."
	noManagersAnswer      = "Não tenho as ferramentas necessárias para responder à sua pergunta no momento."
	invalidCallManagerMsg = "Decisão de chamar manager inválida (faltando manager_id ou new_question)."
	decisionErrorAnswer   = "Desculpe, ocorreu um erro no meu processo de decisão."
	pendingMessage        = "Precisamos de mais informações para continuar."
	internalErrorMessage  = "Erro interno."
)

// Response is the terminal outcome of one orchestration run.
type Response struct {
	Type           string         `json:"type"`
	SessionID      string         `json:"session_id,omitempty"`
	Response       string         `json:"response,omitempty"`
	Message        string         `json:"message,omitempty"`
	RequiredParams []string       `json:"required_params,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
}

// DefinitionSource loads the managers a user may delegate to.
type DefinitionSource interface {
	Load(ctx context.Context, userID string) ([]definition.Manager, definition.UserSettings, error)
}

// Decider is the slice of the LLM adapter the orchestrator drives: the
// per-cycle delegation decision and the final synthesis.
type Decider interface {
	DecideNextStep(ctx context.Context, execCtx *execution.Context, managers []definition.Manager, chatHistory []conversation.Message) llm.Decision
	Synthesize(ctx context.Context, execCtx *execution.Context, guidelines []string) string
}

// StepExecutor runs one manager delegation over a step context.
type StepExecutor interface {
	Execute(ctx context.Context, m definition.Manager, stepCtx *execution.Context, originalQuestion string) (bool, error)
}

// ConversationLog records the user-visible exchange.
type ConversationLog interface {
	LogMessage(ctx context.Context, sessionID, executionID, role, userID, text string)
	LastMessages(ctx context.Context, sessionID string, n int) []conversation.Message
}

// ExecutionLog is the slice of the execution logger the orchestrator owns.
type ExecutionLog interface {
	Start(sessionID, executionID, userID, question string)
	AddManager(sessionID, managerID, newQuestion string)
	SetFinalOutput(sessionID, output string)
	SetPendingActions(sessionID string, actions []execution.PendingAction)
	Finalize(ctx context.Context, sessionID string, status execution.Status)
}

var (
	_ DefinitionSource = (*definition.Loader)(nil)
	_ Decider          = (*llm.Adapter)(nil)
	_ StepExecutor     = (*manager.Executor)(nil)
	_ ConversationLog  = (*conversation.Store)(nil)
	_ ExecutionLog     = (*execution.Logger)(nil)
)

// Options wires the orchestrator's collaborators and loop bounds.
type Options struct {
	Definitions   DefinitionSource
	Decider       Decider
	Steps         StepExecutor
	Conversation  ConversationLog
	ExecutionLog  ExecutionLog
	MaxCycles     int
	HistoryWindow int
	Logger        *slog.Logger
}

// Orchestrator runs the cooperative delegation flow.
type Orchestrator struct {
	definitions   DefinitionSource
	decider       Decider
	steps         StepExecutor
	convo         ConversationLog
	execLog       ExecutionLog
	maxCycles     int
	historyWindow int
	log           *slog.Logger
}

func New(opts Options) *Orchestrator {
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = 5
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		definitions:   opts.Definitions,
		decider:       opts.Decider,
		steps:         opts.Steps,
		convo:         opts.Conversation,
		execLog:       opts.ExecutionLog,
		maxCycles:     opts.MaxCycles,
		historyWindow: opts.HistoryWindow,
		log:           opts.Logger,
	}
}

// Run processes one fresh user question. A missing session id gets a new
// UUID so follow-up questions can reference the same conversation.
func (o *Orchestrator) Run(ctx context.Context, userID, sessionID, question string) Response {
	if userID == "" || question == "" {
		return Response{Type: TypeError, SessionID: sessionID, Message: validationMessage}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	execCtx := &execution.Context{
		UserID:       userID,
		SessionID:    sessionID,
		UserQuestion: question,
		UserData:     map[string]any{"user_id": userID},
	}
	return o.Execute(ctx, execCtx)
}

// Execute runs the delegation flow over a prepared context. Resumed
// pending flows pass a context rebuilt from the execution log; fresh
// questions come through Run. A new execution id is minted either way,
// because every run persists its own log record.
func (o *Orchestrator) Execute(ctx context.Context, execCtx *execution.Context) Response {
	log := o.log.With("session_id", execCtx.SessionID, "user_id", execCtx.UserID)

	managers, _, err := o.definitions.Load(ctx, execCtx.UserID)
	if err != nil {
		log.Error("failed to load definitions", "error", err)
		return Response{Type: TypeCompleted, SessionID: execCtx.SessionID, Response: noManagersAnswer}
	}
	if len(managers) == 0 {
		log.Warn("no active managers for user")
		return Response{Type: TypeCompleted, SessionID: execCtx.SessionID, Response: noManagersAnswer}
	}

	execCtx.ExecutionID = execution.NewExecutionID()
	o.execLog.Start(execCtx.SessionID, execCtx.ExecutionID, execCtx.UserID, execCtx.UserQuestion)
	o.convo.LogMessage(ctx, execCtx.SessionID, execCtx.ExecutionID, "user", execCtx.UserID, execCtx.UserQuestion)

	chatHistory := o.convo.LastMessages(ctx, execCtx.SessionID, o.historyWindow)

	for cycle := 1; cycle <= o.maxCycles; cycle++ {
		log.Info("orchestration cycle", "cycle", cycle, "max_cycles", o.maxCycles)

		decision := o.decider.DecideNextStep(ctx, execCtx, managers, chatHistory)

		thought := decision.Thought
		if thought == "" {
			thought = "Nenhum pensamento registrado."
		}
		execCtx.ReactHistory = append(execCtx.ReactHistory, "[ORCHESTRATOR_THOUGHT]: "+thought)
		log.Debug("orchestrator thought", "thought", thought)

		switch decision.Decision {
		case llm.DecisionFinalAnswer:
			log.Info("delegator closed the flow, synthesizing final answer")
			return o.completeWith(ctx, execCtx, managers, decision.FinalAnswer)

		case llm.DecisionCallManager:
			if decision.ManagerID == "" || decision.NewQuestion == "" {
				log.Error("invalid call_manager decision",
					"manager_id", decision.ManagerID, "new_question", decision.NewQuestion)
				return o.finishCompleted(ctx, execCtx, "Ocorreu um erro interno: "+invalidCallManagerMsg)
			}

			m, ok := definition.FindManager(managers, decision.ManagerID)
			if !ok {
				log.Error("unknown or inactive manager", "manager_id", decision.ManagerID)
				execCtx.ReactHistory = append(execCtx.ReactHistory,
					fmt.Sprintf("[ORCHESTRATOR_OBSERVATION]: Tentativa de chamar um manager inválido '%s'.", decision.ManagerID))
				continue
			}

			log.Info("delegating to manager", "manager_id", m.ID, "new_question", decision.NewQuestion)
			suspended, err := o.delegate(ctx, execCtx, m, decision.NewQuestion)
			if err != nil {
				// The react template is gone; retrying the loop cannot help.
				// Whatever earlier steps gathered still reaches the answer.
				log.Error("delegation step failed", "manager_id", m.ID, "error", err)
				return o.completeWith(ctx, execCtx, managers, "")
			}
			if suspended {
				log.Info("execution paused awaiting user input")
				return o.finishPending(ctx, execCtx)
			}

		default:
			log.Error("unknown delegator decision", "decision", decision.Decision)
			return o.finishCompleted(ctx, execCtx, decisionErrorAnswer)
		}
	}

	log.Warn("orchestration cycle limit reached", "max_cycles", o.maxCycles)
	return o.completeWith(ctx, execCtx, managers, "")
}

// delegate runs one manager over an isolated step context and folds the
// step's results and history back into the root context. The fold happens
// even when the step errored, so partial work is never dropped.
func (o *Orchestrator) delegate(ctx context.Context, execCtx *execution.Context, m definition.Manager, newQuestion string) (bool, error) {
	o.execLog.AddManager(execCtx.SessionID, m.ID, newQuestion)

	step := execCtx.StepContext(newQuestion)
	suspended, err := o.steps.Execute(ctx, m, step, execCtx.UserQuestion)

	execCtx.PreviousResults = execution.MergeResults(execCtx.PreviousResults, step.PreviousResults)
	execCtx.ReactHistory = execution.AppendHistory(execCtx.ReactHistory, step.ReactHistory)
	if step.FinalOutput != "" {
		execCtx.FinalOutput = step.FinalOutput
	}
	if suspended {
		execCtx.PendingActions = step.PendingActions
	}
	return suspended, err
}

// completeWith synthesizes the final answer from the accumulated context.
// When the consolidator comes back empty it falls back to the delegator's
// own answer text, then to the last manager's final output.
func (o *Orchestrator) completeWith(ctx context.Context, execCtx *execution.Context, managers []definition.Manager, draft string) Response {
	finalAnswer := o.decider.Synthesize(ctx, execCtx, collectGuidelines(execCtx, managers))
	if finalAnswer == "" {
		finalAnswer = draft
	}
	if finalAnswer == "" {
		finalAnswer = execCtx.FinalOutput
	}
	return o.finishCompleted(ctx, execCtx, finalAnswer)
}

func (o *Orchestrator) finishCompleted(ctx context.Context, execCtx *execution.Context, finalAnswer string) Response {
	o.convo.LogMessage(ctx, execCtx.SessionID, execCtx.ExecutionID, "system", "orchestrator", finalAnswer)
	o.execLog.SetFinalOutput(execCtx.SessionID, finalAnswer)
	o.execLog.Finalize(ctx, execCtx.SessionID, execution.StatusCompleted)
	return Response{Type: TypeCompleted, SessionID: execCtx.SessionID, Response: finalAnswer}
}

// finishPending suspends the execution: the pending actions are persisted
// with the log so the flow can resume when the user answers. A suspension
// without pending actions is an internal inconsistency.
func (o *Orchestrator) finishPending(ctx context.Context, execCtx *execution.Context) Response {
	if len(execCtx.PendingActions) == 0 {
		o.log.Error("pending response requested without pending actions", "session_id", execCtx.SessionID)
		o.execLog.Finalize(ctx, execCtx.SessionID, execution.StatusFailed)
		return Response{Type: TypeError, SessionID: execCtx.SessionID, Message: internalErrorMessage}
	}

	o.execLog.SetPendingActions(execCtx.SessionID, execCtx.PendingActions)
	o.execLog.Finalize(ctx, execCtx.SessionID, execution.StatusPendingUserInput)

	return Response{
		Type:           TypePending,
		SessionID:      execCtx.SessionID,
		Message:        pendingMessage,
		RequiredParams: execCtx.PendingActions[0].RequiredParams,
		Context:        contextPayload(execCtx),
	}
}

// collectGuidelines walks the agents that produced results, in first-seen
// order, and wraps each populated response guideline with its agent's
// description so the consolidator knows which results the rule styles.
func collectGuidelines(execCtx *execution.Context, managers []definition.Manager) []string {
	var guidelines []string
	seen := make(map[string]bool)
	for _, outcome := range execCtx.PreviousResults {
		if seen[outcome.AgentID] {
			continue
		}
		seen[outcome.AgentID] = true

		ag, ok := definition.FindAgent(managers, outcome.AgentID)
		if !ok || ag.ResponseGuideline == "" {
			continue
		}
		guidelines = append(guidelines, fmt.Sprintf(
			"Para os resultados do especialista '%s', siga esta regra de formato: '%s'",
			ag.Description, ag.ResponseGuideline))
	}
	return guidelines
}

// contextPayload serializes the context for the pending response, so the
// caller can hand it back once the user supplies the missing parameters.
func contextPayload(execCtx *execution.Context) map[string]any {
	raw, err := json.Marshal(execCtx)
	if err != nil {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}
