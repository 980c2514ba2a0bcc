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

// Package execution carries the state that flows through one question:
// the execution context handed between orchestrator, managers and agents,
// and the durable execution log behind it.
package execution

import (
	"encoding/json"
	"fmt"
)

// ToolOutcome is one tool result accumulated during an execution. The
// pair (AgentID, ToolName) identifies it for merging.
type ToolOutcome struct {
	AgentID  string `json:"agent_id" bson:"agent_id"`
	ToolName string `json:"tool_name" bson:"tool_name"`
	Output   any    `json:"output" bson:"output"`
}

// PendingAction records a tool call that stopped for user input.
type PendingAction struct {
	AgentID        string   `json:"agent_id" bson:"agent_id"`
	RequiredParams []string `json:"required_params" bson:"required_params"`
}

// Context is the working state of one question. Managers receive deep
// copies and the orchestrator merges their changes back, so two delegation
// steps never share mutable state.
type Context struct {
	ExecutionID  string `json:"execution_id,omitempty"`
	UserID       string `json:"user_id"`
	SessionID    string `json:"session_id"`
	UserQuestion string `json:"user_question"`

	PreviousResults []ToolOutcome   `json:"previous_results"`
	ReactHistory    []string        `json:"react_history"`
	FinalOutput     string          `json:"final_output,omitempty"`
	PendingActions  []PendingAction `json:"pending_actions,omitempty"`
	UserData        map[string]any  `json:"user_data,omitempty"`
	PlanState       map[string]any  `json:"plan_state,omitempty"`
}

// Snapshot returns a deep copy of the context.
func (c *Context) Snapshot() *Context {
	if c == nil {
		return nil
	}
	cp := &Context{
		ExecutionID:  c.ExecutionID,
		UserID:       c.UserID,
		SessionID:    c.SessionID,
		UserQuestion: c.UserQuestion,
		FinalOutput:  c.FinalOutput,
	}
	if c.PreviousResults != nil {
		cp.PreviousResults = make([]ToolOutcome, len(c.PreviousResults))
		for i, r := range c.PreviousResults {
			cp.PreviousResults[i] = ToolOutcome{
				AgentID:  r.AgentID,
				ToolName: r.ToolName,
				Output:   deepCopyValue(r.Output),
			}
		}
	}
	if c.ReactHistory != nil {
		cp.ReactHistory = append([]string(nil), c.ReactHistory...)
	}
	if c.PendingActions != nil {
		cp.PendingActions = make([]PendingAction, len(c.PendingActions))
		for i, p := range c.PendingActions {
			cp.PendingActions[i] = PendingAction{
				AgentID:        p.AgentID,
				RequiredParams: append([]string(nil), p.RequiredParams...),
			}
		}
	}
	cp.UserData = deepCopyMap(c.UserData)
	cp.PlanState = deepCopyMap(c.PlanState)
	return cp
}

// ResultsMap renders the accumulated outcomes as the nested
// {agent_id: {tool_name: output}} shape used in prompts and logs.
func (c *Context) ResultsMap() map[string]map[string]any {
	out := make(map[string]map[string]any, len(c.PreviousResults))
	for _, r := range c.PreviousResults {
		agent, ok := out[r.AgentID]
		if !ok {
			agent = make(map[string]any)
			out[r.AgentID] = agent
		}
		agent[r.ToolName] = r.Output
	}
	return out
}

// RecordResult stores one tool outcome, overwriting an earlier outcome of
// the same (agent, tool) pair.
func (c *Context) RecordResult(agentID, toolName string, output any) {
	for i, r := range c.PreviousResults {
		if r.AgentID == agentID && r.ToolName == toolName {
			c.PreviousResults[i].Output = output
			return
		}
	}
	c.PreviousResults = append(c.PreviousResults, ToolOutcome{
		AgentID:  agentID,
		ToolName: toolName,
		Output:   output,
	})
}

// StepContext builds the context a manager receives for one delegation:
// a deep copy with a fresh react history and the step's own question.
// Previous results carry over so later steps can build on earlier data.
func (c *Context) StepContext(newQuestion string) *Context {
	step := c.Snapshot()
	step.ReactHistory = nil
	step.UserQuestion = newQuestion
	return step
}

// MergeResults unions two outcome sets keyed by (AgentID, ToolName).
// Everything in initial survives; local entries win on key collisions.
// Key order is first-seen: initial order, then new local keys.
func MergeResults(initial, local []ToolOutcome) []ToolOutcome {
	type key struct{ agent, tool string }

	index := make(map[key]int, len(initial))
	merged := make([]ToolOutcome, 0, len(initial)+len(local))

	for _, r := range initial {
		k := key{r.AgentID, r.ToolName}
		if i, ok := index[k]; ok {
			merged[i] = r
			continue
		}
		index[k] = len(merged)
		merged = append(merged, r)
	}
	for _, r := range local {
		k := key{r.AgentID, r.ToolName}
		if i, ok := index[k]; ok {
			merged[i] = r
			continue
		}
		index[k] = len(merged)
		merged = append(merged, r)
	}
	return merged
}

// AppendHistory restores the snapshot prefix and appends the entries added
// after it. The snapshot is never truncated or reordered.
func AppendHistory(snapshot, appended []string) []string {
	out := make([]string, 0, len(snapshot)+len(appended))
	out = append(out, snapshot...)
	out = append(out, appended...)
	return out
}

// deepCopyValue copies arbitrary JSON-shaped values. Values that cannot
// round-trip through JSON are kept as-is; tool outputs are JSON-shaped by
// construction.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64:
		return t
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return v
		}
		var copied any
		if err := json.Unmarshal(raw, &copied); err != nil {
			return v
		}
		return copied
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

// Summarize caps the stringified output at max runes, appending "..."
// when truncated. Used for the compact result summaries in the log.
func Summarize(output any, max int) string {
	var s string
	switch t := output.(type) {
	case nil:
		s = ""
	case string:
		s = t
	default:
		raw, err := json.Marshal(output)
		if err != nil {
			s = fmt.Sprintf("%v", output)
		} else {
			s = string(raw)
		}
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
