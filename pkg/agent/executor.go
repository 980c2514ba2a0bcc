// Package agent executes catalog tools on behalf of an agent: it validates
// required parameters, maps the tool kind to its registry implementation
// and shields the caller from panicking tools.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
	"github.com/taricklorran/AGENT-TCC/pkg/tool"
)

// Executor invokes tools through the registry.
type Executor struct {
	registry *tool.Registry
	log      *slog.Logger
}

func NewExecutor(registry *tool.Registry, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{registry: registry, log: log}
}

// Execute runs one tool of the agent. Every failure mode comes back as a
// Result; the react loop turns it into an observation and keeps going.
func (e *Executor) Execute(ctx context.Context, ag *definition.Agent, toolName string, params map[string]any, execCtx *execution.Context) (result tool.Result) {
	if ag == nil || toolName == "" {
		return tool.Result{Success: false, Output: "Agente ou ferramenta inválidos"}
	}

	ctx, span := startToolSpan(ctx, ag.ID, toolName)
	defer span.End()
	defer func() { recordToolMetrics(ctx, toolName, result.Success) }()

	e.log.Info("executing tool", "agent_id", ag.ID, "tool", toolName)

	// The lookup is exact: a react action whose casing differs from the
	// catalog name does not execute.
	toolDef, ok := ag.FindTool(toolName)
	if !ok {
		return tool.Result{Success: false, Output: "Agente ou ferramenta inválidos"}
	}

	if missing := toolDef.MissingParams(params); len(missing) > 0 {
		return tool.Result{
			Success:        false,
			NextStep:       tool.NextStepRequestUserInput,
			RequiredParams: missing,
			Output: fmt.Sprintf("Parâmetros necessários para a ferramenta '%s': %s",
				toolName, strings.Join(missing, ", ")),
		}
	}

	key := dispatchKey(toolDef)
	impl, err := e.registry.Get(key)
	if err != nil {
		return tool.Result{
			Success: false,
			Output:  fmt.Sprintf("Implementação '%s' não encontrada no registro", key),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("tool execution panicked", "agent_id", ag.ID, "tool", toolName, "panic", r)
			result = tool.Result{
				Success: false,
				Output:  fmt.Sprintf("Erro na execução da ferramenta '%s': %v", toolName, r),
			}
		}
	}()

	inv := tool.Invocation{Params: params, Context: execCtx}
	if toolDef.Kind != definition.ToolKindNative {
		def := toolDef
		inv.Definition = &def
	}
	return impl.Execute(ctx, inv)
}

func dispatchKey(def definition.Tool) string {
	switch def.Kind {
	case definition.ToolKindLLMPrompt:
		return tool.KeyPromptExecution
	case definition.ToolKindAPI:
		return tool.KeyAPIExecution
	default:
		return def.Name
	}
}
