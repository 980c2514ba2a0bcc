// Package prompttool implements the generic LLM-prompt execution engine.
// One registered instance serves every prompt-kind tool in the catalog:
// the prompt template comes from the tool definition, the parameters fill
// its placeholders and the model's reply is the tool output.
package prompttool

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/taricklorran/AGENT-TCC/pkg/tool"
)

// Runner executes one raw prompt and returns the model's reply.
type Runner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Tool runs definition-provided prompt templates through the model.
type Tool struct {
	runner Runner
	log    *slog.Logger
}

func New(runner Runner, log *slog.Logger) *Tool {
	if log == nil {
		log = slog.Default()
	}
	return &Tool{runner: runner, log: log}
}

func (t *Tool) Name() string { return tool.KeyPromptExecution }

func (t *Tool) Description() string {
	return "Um motor de execução para ferramentas baseadas em prompts de LLM."
}

func (t *Tool) Execute(ctx context.Context, inv tool.Invocation) tool.Result {
	def := inv.Definition
	if def == nil || def.PromptTemplate == "" {
		var name string
		if def != nil {
			name = def.Name
		}
		return tool.Result{Success: false, Output: fmt.Sprintf("Ferramenta '%s' não possui um template de prompt configurado.", name)}
	}

	prompt, missing := fillTemplate(def.PromptTemplate, inv.Params)
	if missing != "" {
		return tool.Result{Success: false, Output: fmt.Sprintf("Erro ao formatar o prompt para '%s'. Parâmetro ausente: '%s'", def.Name, missing)}
	}

	output, err := t.runner.Run(ctx, prompt)
	if err != nil {
		t.log.Error("prompt tool generation failed", "tool", def.Name, "error", err)
		return tool.Result{Success: false, Output: fmt.Sprintf("Ocorreu um erro ao executar o prompt na LLM: %v", err)}
	}
	return tool.Result{Success: true, Output: output}
}

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// fillTemplate substitutes every {name} placeholder with its parameter.
// Unlike the orchestration templates, a placeholder without a parameter is
// an error here; missing reports the first one found.
func fillTemplate(template string, params map[string]any) (filled, missing string) {
	filled = placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := params[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return m
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	})
	if missing != "" {
		return "", missing
	}
	return filled, ""
}

var _ tool.Tool = (*Tool)(nil)
