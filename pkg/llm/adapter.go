package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taricklorran/AGENT-TCC/pkg/conversation"
	"github.com/taricklorran/AGENT-TCC/pkg/definition"
)

// Adapter binds a text generator to the prompt templates and exposes the
// three calls the orchestration flow makes: the delegation decision, the
// react cycle and the final-response consolidation.
type Adapter struct {
	generator Generator
	templates *Templates
	log       *slog.Logger
	now       func() time.Time
}

// NewAdapter builds an Adapter on top of a generator and a template store.
func NewAdapter(generator Generator, templates *Templates, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		generator: generator,
		templates: templates,
		log:       log,
		now:       time.Now,
	}
}

// currentDate renders the wall clock the way the prompts expect it.
func (a *Adapter) currentDate() string {
	return a.now().Format("02/01/2006 15:04")
}

// Run sends a raw prompt under the default system instruction. The
// definition-driven prompt tools execute through here.
func (a *Adapter) Run(ctx context.Context, prompt string) (string, error) {
	return a.generator.Generate(ctx, Request{System: a.templates.SystemInstruction(), Prompt: prompt})
}

// toolSummary is the compact tool description embedded in the
// delegator prompt.
type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  string `json:"parameters"`
}

// managerSummary is one entry of the manager catalog embedded in the
// delegator prompt. Keeping it lean saves prompt tokens.
type managerSummary struct {
	ManagerID   string        `json:"manager_id"`
	Description string        `json:"description"`
	Tools       []toolSummary `json:"tools"`
}

// summarizeManagers flattens the active managers into the compact catalog
// the delegator reasons over. Managers whose agents expose no active tool
// are omitted entirely.
func summarizeManagers(managers []definition.Manager) []managerSummary {
	summaries := make([]managerSummary, 0, len(managers))
	for _, m := range managers {
		if !m.Active {
			continue
		}
		summary := managerSummary{ManagerID: m.ID, Description: m.Description}
		for _, agent := range m.Agents {
			if !agent.Active {
				continue
			}
			for _, t := range agent.Tools {
				if !t.Active {
					continue
				}
				summary.Tools = append(summary.Tools, toolSummary{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.ParameterSummary(),
				})
			}
		}
		if len(summary.Tools) > 0 {
			summaries = append(summaries, summary)
		}
	}
	return summaries
}

// formatManagerTools renders the active tools of a manager grouped by
// agent, in the shape the react prompt teaches the model to call them.
func formatManagerTools(manager definition.Manager) string {
	var lines []string
	for _, agent := range manager.Agents {
		if !agent.Active {
			continue
		}
		var toolLines []string
		for _, t := range agent.Tools {
			if !t.Active {
				continue
			}
			toolLines = append(toolLines, fmt.Sprintf("  - %s(%s): %s", t.Name, paramList(t.Parameters), t.Description))
		}
		if len(toolLines) > 0 {
			lines = append(lines, fmt.Sprintf("Agente: %s (%s)", agent.ID, agent.Description))
			lines = append(lines, toolLines...)
		}
	}
	return strings.Join(lines, "\n")
}

func paramList(params []definition.Parameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.Name+": "+p.Type)
	}
	return strings.Join(parts, ", ")
}

// chatEntry is how one conversation message appears inside a prompt.
type chatEntry struct {
	Role      string `json:"role"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// formatChatHistory renders recent conversation messages as a JSON array
// for prompt embedding.
func formatChatHistory(history []conversation.Message) string {
	if len(history) == 0 {
		return "[]"
	}
	entries := make([]chatEntry, 0, len(history))
	for _, m := range history {
		entry := chatEntry{Role: m.Role, UserID: m.UserID, Message: m.Message}
		if !m.Timestamp.IsZero() {
			entry.Timestamp = m.Timestamp.Format("2006-01-02 15:04:05")
		}
		entries = append(entries, entry)
	}
	return jsonPretty(entries)
}

// jsonPretty marshals v with two-space indentation and without HTML
// escaping, so accented text and URLs survive verbatim in prompts.
func jsonPretty(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// jsonBlock extracts the substring spanning the first '{' through the
// last '}' of s. Model replies often wrap JSON in prose or code fences.
func jsonBlock(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
