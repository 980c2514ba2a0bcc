package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
	"github.com/taricklorran/AGENT-TCC/pkg/tool"
)

type recordingTool struct {
	name      string
	result    tool.Result
	panicWith any
	got       *tool.Invocation
}

func (r *recordingTool) Name() string        { return r.name }
func (r *recordingTool) Description() string { return "registro de chamadas" }
func (r *recordingTool) Execute(_ context.Context, inv tool.Invocation) tool.Result {
	r.got = &inv
	if r.panicWith != nil {
		panic(r.panicWith)
	}
	return r.result
}

func testAgent() *definition.Agent {
	return &definition.Agent{
		ID:     "agent_fin",
		Active: true,
		Tools: []definition.Tool{
			{
				Name: "consultaSaldo",
				Kind: definition.ToolKindAPI,
				Parameters: []definition.Parameter{
					{Name: "conta", Type: "string", Required: true},
				},
			},
			{
				Name: "resumoExtrato",
				Kind: definition.ToolKindLLMPrompt,
			},
			{
				Name: "listCapabilities",
				Kind: definition.ToolKindNative,
			},
		},
	}
}

func TestExecutor_InvalidAgentOrTool(t *testing.T) {
	e := NewExecutor(tool.NewRegistry(nil), nil)

	result := e.Execute(context.Background(), nil, "consultaSaldo", nil, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "Agente ou ferramenta inválidos", result.Output)

	result = e.Execute(context.Background(), testAgent(), "", nil, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "Agente ou ferramenta inválidos", result.Output)

	// Unknown tool name, including a casing mismatch, is the same failure.
	result = e.Execute(context.Background(), testAgent(), "consultasaldo", nil, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "Agente ou ferramenta inválidos", result.Output)
}

func TestExecutor_MissingParamsRequestUserInput(t *testing.T) {
	e := NewExecutor(tool.NewRegistry(nil), nil)

	result := e.Execute(context.Background(), testAgent(), "consultaSaldo", map[string]any{}, nil)

	assert.False(t, result.Success)
	assert.Equal(t, tool.NextStepRequestUserInput, result.NextStep)
	assert.Equal(t, []string{"conta"}, result.RequiredParams)
	assert.Equal(t, "Parâmetros necessários para a ferramenta 'consultaSaldo': conta", result.Output)
}

func TestExecutor_DispatchByKind(t *testing.T) {
	registry := tool.NewRegistry(nil)
	api := &recordingTool{name: tool.KeyAPIExecution, result: tool.Result{Success: true, Output: "api"}}
	prompt := &recordingTool{name: tool.KeyPromptExecution, result: tool.Result{Success: true, Output: "prompt"}}
	native := &recordingTool{name: "listCapabilities", result: tool.Result{Success: true, Output: "nativo"}}
	registry.Register(api)
	registry.Register(prompt)
	registry.Register(native)

	e := NewExecutor(registry, nil)
	execCtx := &execution.Context{SessionID: "s1", UserID: "u1"}

	result := e.Execute(context.Background(), testAgent(), "consultaSaldo", map[string]any{"conta": "123"}, execCtx)
	assert.Equal(t, "api", result.Output)
	require.NotNil(t, api.got)
	require.NotNil(t, api.got.Definition, "catalog kinds receive their definition")
	assert.Equal(t, "consultaSaldo", api.got.Definition.Name)
	assert.Equal(t, execCtx, api.got.Context)
	assert.Equal(t, "123", api.got.Params["conta"])

	result = e.Execute(context.Background(), testAgent(), "resumoExtrato", nil, execCtx)
	assert.Equal(t, "prompt", result.Output)
	require.NotNil(t, prompt.got)
	require.NotNil(t, prompt.got.Definition)

	result = e.Execute(context.Background(), testAgent(), "listCapabilities", nil, execCtx)
	assert.Equal(t, "nativo", result.Output)
	require.NotNil(t, native.got)
	assert.Nil(t, native.got.Definition, "native tools carry everything they need")
}

func TestExecutor_RegistryMiss(t *testing.T) {
	e := NewExecutor(tool.NewRegistry(nil), nil)

	result := e.Execute(context.Background(), testAgent(), "consultaSaldo", map[string]any{"conta": "123"}, nil)

	assert.False(t, result.Success)
	assert.Equal(t, "Implementação 'ExecutarAPI' não encontrada no registro", result.Output)

	result = e.Execute(context.Background(), testAgent(), "listCapabilities", nil, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "Implementação 'listCapabilities' não encontrada no registro", result.Output)
}

func TestExecutor_RecoversFromPanic(t *testing.T) {
	registry := tool.NewRegistry(nil)
	registry.Register(&recordingTool{name: "listCapabilities", panicWith: "estado inconsistente"})

	e := NewExecutor(registry, nil)
	result := e.Execute(context.Background(), testAgent(), "listCapabilities", nil, nil)

	assert.False(t, result.Success)
	assert.Equal(t, "Erro na execução da ferramenta 'listCapabilities': estado inconsistente", result.Output)
}
