package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taricklorran/AGENT-TCC/pkg/conversation"
	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
)

type stubGenerator struct {
	response string
	err      error
	requests []Request
}

func (s *stubGenerator) Generate(_ context.Context, req Request) (string, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

const delegatorTestTemplate = `Usuário: {user_id}
Conversa: {chat_history}
Pergunta: {user_input}
Managers: {available_managers}
Resultados: {previous_results}
Raciocínio: {react_history}
Data: {current_date}`

func newTestAdapter(t *testing.T, gen Generator, templateContent string) *Adapter {
	t.Helper()
	dir := t.TempDir()
	if templateContent != "" {
		writeTemplate(t, dir, TemplateDelegator, templateContent)
		writeTemplate(t, dir, TemplateReactCycle, templateContent)
	}
	return NewAdapter(gen, NewTemplates(dir, nil), nil)
}

func testManagers() []definition.Manager {
	return []definition.Manager{
		{
			ID:          "manager_bancario",
			Description: "Operações bancárias",
			Active:      true,
			Agents: []definition.Agent{
				{
					ID:          "agente_contas",
					Description: "Consultas de conta corrente",
					Active:      true,
					Tools: []definition.Tool{
						{
							Name:        "consultaSaldo",
							Description: "Consulta o saldo da conta",
							Kind:        definition.ToolKindAPI,
							Active:      true,
							Parameters: []definition.Parameter{
								{Name: "conta", Type: "string", Required: true},
							},
						},
					},
				},
			},
		},
		{
			ID:          "manager_inativo",
			Description: "Desativado",
			Active:      false,
			Agents: []definition.Agent{
				{ID: "x", Active: true, Tools: []definition.Tool{{Name: "t", Active: true}}},
			},
		},
	}
}

func TestDecideNextStepParsesDecision(t *testing.T) {
	gen := &stubGenerator{response: "Claro, aqui está:\n```json\n" +
		`{"decision": "call_manager", "thought": "preciso do saldo", "manager_id": "manager_bancario", "new_question": "consulte o saldo"}` +
		"\n```"}
	adapter := newTestAdapter(t, gen, delegatorTestTemplate)

	execCtx := &execution.Context{
		UserID:       "user-1",
		SessionID:    "sess-1",
		UserQuestion: "Qual meu saldo?",
	}
	decision := adapter.DecideNextStep(context.Background(), execCtx, testManagers(), nil)

	assert.Equal(t, DecisionCallManager, decision.Decision)
	assert.Equal(t, "manager_bancario", decision.ManagerID)
	assert.Equal(t, "consulte o saldo", decision.NewQuestion)
	assert.Equal(t, "preciso do saldo", decision.Thought)
}

func TestDecideNextStepFillsPrompt(t *testing.T) {
	gen := &stubGenerator{response: `{"decision": "final_answer", "final_answer": "ok"}`}
	adapter := newTestAdapter(t, gen, delegatorTestTemplate)
	adapter.now = fixedClock(t)

	execCtx := &execution.Context{
		UserID:       "user-1",
		SessionID:    "sess-1",
		UserQuestion: "Qual meu saldo?",
		ReactHistory: []string{"[THOUGHT]: primeiro passo"},
	}
	execCtx.RecordResult("agente_contas", "consultaSaldo", map[string]any{"saldo": "R$ 10"})

	history := []conversation.Message{{Role: conversation.RoleUser, UserID: "user-1", Message: "oi"}}
	adapter.DecideNextStep(context.Background(), execCtx, testManagers(), history)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, delegatorSystemInstruction, req.System)
	assert.Contains(t, req.Prompt, "Usuário: user-1")
	assert.Contains(t, req.Prompt, "Pergunta: Qual meu saldo?")
	assert.Contains(t, req.Prompt, `"manager_id": "manager_bancario"`)
	assert.NotContains(t, req.Prompt, "manager_inativo")
	assert.Contains(t, req.Prompt, `"parameters": "conta: string"`)
	assert.Contains(t, req.Prompt, `"saldo": "R$ 10"`)
	assert.Contains(t, req.Prompt, "[THOUGHT]: primeiro passo")
	assert.Contains(t, req.Prompt, `"message": "oi"`)
	assert.Contains(t, req.Prompt, "Data: 01/07/2025 10:30")
}

func TestDecideNextStepEmptyContextFallbacks(t *testing.T) {
	gen := &stubGenerator{response: `{"decision": "final_answer", "final_answer": "ok"}`}
	adapter := newTestAdapter(t, gen, delegatorTestTemplate)

	execCtx := &execution.Context{UserID: "user-1", UserQuestion: "oi"}
	adapter.DecideNextStep(context.Background(), execCtx, nil, nil)

	require.Len(t, gen.requests, 1)
	assert.Contains(t, gen.requests[0].Prompt, "Nenhum histórico de raciocínio ainda.")
	assert.Contains(t, gen.requests[0].Prompt, "Conversa: []")
}

func TestDecideNextStepUnparsableResponse(t *testing.T) {
	gen := &stubGenerator{response: "não sei o que fazer"}
	adapter := newTestAdapter(t, gen, delegatorTestTemplate)

	decision := adapter.DecideNextStep(context.Background(), &execution.Context{}, nil, nil)

	assert.Equal(t, DecisionFinalAnswer, decision.Decision)
	assert.Equal(t, delegatorUnparsableAnswer, decision.FinalAnswer)
}

func TestDecideNextStepGenerationError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}
	adapter := newTestAdapter(t, gen, delegatorTestTemplate)

	decision := adapter.DecideNextStep(context.Background(), &execution.Context{}, nil, nil)

	assert.Equal(t, DecisionFinalAnswer, decision.Decision)
	assert.Equal(t, delegatorUnparsableAnswer, decision.FinalAnswer)
}

func TestDecideNextStepMissingTemplate(t *testing.T) {
	gen := &stubGenerator{}
	adapter := newTestAdapter(t, gen, "")

	decision := adapter.DecideNextStep(context.Background(), &execution.Context{}, nil, nil)

	assert.Equal(t, DecisionError, decision.Decision)
	assert.Equal(t, delegatorTemplateMissingAnswer, decision.FinalAnswer)
	assert.Empty(t, gen.requests)
}

func TestParseDecisionExtractsEmbeddedJSON(t *testing.T) {
	decision, err := ParseDecision(`prefixo {"decision": "final_answer", "final_answer": "pronto"} sufixo`)
	require.NoError(t, err)
	assert.Equal(t, DecisionFinalAnswer, decision.Decision)
	assert.Equal(t, "pronto", decision.FinalAnswer)
}

func TestParseDecisionNoJSON(t *testing.T) {
	_, err := ParseDecision("sem objeto algum")
	assert.Error(t, err)
}

func TestParseDecisionIgnoresUnknownFields(t *testing.T) {
	decision, err := ParseDecision(`{"decision": "call_manager", "manager_id": "m", "new_question": "q", "confidence": 0.9}`)
	require.NoError(t, err)
	assert.Equal(t, "m", decision.ManagerID)
}
