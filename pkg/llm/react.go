package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
)

// Cycle is the parsed output of one react turn. Sections the model did
// not emit stay empty; an empty cycle is a no-op for the caller.
type Cycle struct {
	Thought     string
	Action      string
	FinalAnswer string
}

// RunReactCycle runs one thought/action turn for a manager. The returned
// error is reserved for a missing prompt template; generation failures
// degrade into an empty cycle so the loop can keep its bookkeeping.
func (a *Adapter) RunReactCycle(ctx context.Context, userID string, manager definition.Manager, execCtx *execution.Context, history []string, originalQuestion string) (Cycle, error) {
	template, err := a.templates.Load(TemplateReactCycle)
	if err != nil {
		return Cycle{}, err
	}

	historyStr := "Nenhum histórico ainda."
	if len(history) > 0 {
		historyStr = strings.Join(history, "\n")
	}

	prompt := Fill(template, map[string]string{
		"user_id":                userID,
		"manager_id":             manager.ID,
		"manager_description":    manager.Description,
		"step_objective":         execCtx.UserQuestion,
		"original_user_question": originalQuestion,
		"previous_results":       jsonPretty(execCtx.ResultsMap()),
		"history":                historyStr,
		"available_tools":        formatManagerTools(manager),
		"current_date":           a.currentDate(),
	})

	response, err := a.generator.Generate(ctx, Request{System: a.templates.SystemInstruction(), Prompt: prompt})
	if err != nil {
		a.log.Error("react generation failed", "manager_id", manager.ID, "error", err)
		return Cycle{}, nil
	}
	a.log.Debug("react response", "manager_id", manager.ID, "response", response)

	return ParseCycle(response), nil
}

// Each section runs from its tag to the nearest other tag or the end of
// the reply. A repeated occurrence of the section's own tag does not end
// it; only the two sibling tags do.
var (
	thoughtPattern     = regexp.MustCompile(`(?is)\[THOUGHT\]:(.*?)(?:\[ACTION\]|\[FINAL_ANSWER\]|$)`)
	actionSectionPat   = regexp.MustCompile(`(?is)\[ACTION\]:(.*?)(?:\[THOUGHT\]|\[FINAL_ANSWER\]|$)`)
	finalAnswerPattern = regexp.MustCompile(`(?is)\[FINAL_ANSWER\]:(.*?)(?:\[THOUGHT\]|\[ACTION\]|$)`)
)

// ParseCycle splits a raw react reply into its labeled sections. Matching
// is case-insensitive and tolerates sections in any order.
func ParseCycle(response string) Cycle {
	return Cycle{
		Thought:     firstGroup(thoughtPattern, response),
		Action:      firstGroup(actionSectionPat, response),
		FinalAnswer: firstGroup(finalAnswerPattern, response),
	}
}

func firstGroup(pattern *regexp.Regexp, s string) string {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ActionCall is a tool invocation decoded from an action section.
type ActionCall struct {
	ToolName string
	Params   map[string]any
}

// actionPattern accepts the functional form toolName(k=v, flag, ...).
var actionPattern = regexp.MustCompile(`^(\w+)\(([^)]*)\)`)

// ParseAction decodes an action section. The JSON form
// {"tool_name": ..., "params": {...}} wins over the functional form;
// ok is false when neither applies.
func ParseAction(action string) (call ActionCall, ok bool) {
	if block, found := jsonBlock(action); found {
		var raw struct {
			ToolName string         `json:"tool_name"`
			Params   map[string]any `json:"params"`
		}
		if err := json.Unmarshal([]byte(block), &raw); err == nil && raw.ToolName != "" {
			if raw.Params == nil {
				raw.Params = make(map[string]any)
			}
			return ActionCall{ToolName: raw.ToolName, Params: raw.Params}, true
		}
	}

	m := actionPattern.FindStringSubmatch(strings.TrimSpace(action))
	if m == nil {
		return ActionCall{}, false
	}
	return ActionCall{ToolName: m[1], Params: parseCallParams(m[2])}, true
}

// parseCallParams splits the comma-separated argument list of the
// functional form. Quoted values lose their quotes; a bare token becomes
// a boolean flag.
func parseCallParams(list string) map[string]any {
	params := make(map[string]any)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if key, value, found := strings.Cut(part, "="); found {
			params[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
		} else {
			params[part] = true
		}
	}
	return params
}
