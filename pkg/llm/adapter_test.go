package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taricklorran/AGENT-TCC/pkg/conversation"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
)

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	ts, err := time.Parse("02/01/2006 15:04", "01/07/2025 10:30")
	require.NoError(t, err)
	return func() time.Time { return ts }
}

func TestSummarizeManagersSkipsInactiveAndEmpty(t *testing.T) {
	summaries := summarizeManagers(testManagers())

	require.Len(t, summaries, 1)
	assert.Equal(t, "manager_bancario", summaries[0].ManagerID)
	require.Len(t, summaries[0].Tools, 1)
	assert.Equal(t, "consultaSaldo", summaries[0].Tools[0].Name)
	assert.Equal(t, "conta: string", summaries[0].Tools[0].Parameters)
}

func TestFormatManagerToolsGroupsByAgent(t *testing.T) {
	out := formatManagerTools(testManagers()[0])

	assert.Equal(t, "Agente: agente_contas (Consultas de conta corrente)\n"+
		"  - consultaSaldo(conta: string): Consulta o saldo da conta", out)
}

func TestFormatManagerToolsOmitsAgentsWithoutActiveTools(t *testing.T) {
	manager := testManagers()[0]
	manager.Agents[0].Tools[0].Active = false

	assert.Empty(t, formatManagerTools(manager))
}

func TestFormatChatHistory(t *testing.T) {
	ts := time.Date(2025, 7, 1, 10, 30, 0, 0, time.UTC)
	out := formatChatHistory([]conversation.Message{
		{Role: conversation.RoleUser, UserID: "user-1", Message: "qual meu saldo?", Timestamp: ts},
		{Role: conversation.RoleSystem, UserID: conversation.OrchestratorUserID, Message: "R$ 10,00"},
	})

	assert.Contains(t, out, `"role": "user"`)
	assert.Contains(t, out, `"message": "qual meu saldo?"`)
	assert.Contains(t, out, `"timestamp": "2025-07-01 10:30:00"`)
	assert.Contains(t, out, `"user_id": "orchestrator"`)

	assert.Equal(t, "[]", formatChatHistory(nil))
}

func TestJSONPrettyKeepsAccentsAndHTML(t *testing.T) {
	out := jsonPretty(map[string]string{"msg": "saldo é <b>R$ 10</b> & nada mais"})
	assert.Contains(t, out, "saldo é <b>R$ 10</b> & nada mais")
}

func TestJSONBlock(t *testing.T) {
	block, ok := jsonBlock("antes {\"a\": {\"b\": 1}} depois")
	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, block)

	_, ok = jsonBlock("sem chaves")
	assert.False(t, ok)

	_, ok = jsonBlock("} invertido {")
	assert.False(t, ok)
}

func TestRunReactCycleFillsPrompt(t *testing.T) {
	gen := &stubGenerator{response: "[THOUGHT]: verificando\n[ACTION]: consultaSaldo(conta=\"1\")"}
	adapter := newTestAdapter(t, gen, "Objetivo: {step_objective}\nOriginal: {original_user_question}\n"+
		"Manager: {manager_id} ({manager_description})\nFerramentas:\n{available_tools}\nHistórico: {history}")

	execCtx := &execution.Context{UserID: "user-1", UserQuestion: "consulte o saldo"}
	cycle, err := adapter.RunReactCycle(context.Background(), "user-1", testManagers()[0], execCtx, nil, "Qual meu saldo?")
	require.NoError(t, err)

	assert.Equal(t, "verificando", cycle.Thought)
	assert.Equal(t, `consultaSaldo(conta="1")`, cycle.Action)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, FallbackSystemInstruction, req.System)
	assert.Contains(t, req.Prompt, "Objetivo: consulte o saldo")
	assert.Contains(t, req.Prompt, "Original: Qual meu saldo?")
	assert.Contains(t, req.Prompt, "Agente: agente_contas")
	assert.Contains(t, req.Prompt, "Histórico: Nenhum histórico ainda.")
}

func TestRunReactCycleGenerationErrorYieldsEmptyCycle(t *testing.T) {
	gen := &stubGenerator{err: errors.New("timeout")}
	adapter := newTestAdapter(t, gen, "{step_objective}")

	cycle, err := adapter.RunReactCycle(context.Background(), "u", testManagers()[0], &execution.Context{}, nil, "q")
	require.NoError(t, err)
	assert.Equal(t, Cycle{}, cycle)
}

func TestRunReactCycleMissingTemplate(t *testing.T) {
	adapter := newTestAdapter(t, &stubGenerator{}, "")

	_, err := adapter.RunReactCycle(context.Background(), "u", testManagers()[0], &execution.Context{}, nil, "q")
	assert.Error(t, err)
}

func TestSynthesizeBuildsConsolidationPrompt(t *testing.T) {
	gen := &stubGenerator{response: "  Seu saldo é R$ 10,00.  "}
	adapter := newTestAdapter(t, gen, delegatorTestTemplate)

	execCtx := &execution.Context{UserQuestion: "Qual meu saldo?", ReactHistory: []string{"[THOUGHT]: consultando"}}
	execCtx.RecordResult("agente_contas", "consultaSaldo", map[string]any{"saldo": "R$ 10,00"})

	answer := adapter.Synthesize(context.Background(), execCtx, []string{"use moeda brasileira"})
	assert.Equal(t, "Seu saldo é R$ 10,00.", answer)

	require.Len(t, gen.requests, 1)
	prompt := gen.requests[0].Prompt
	assert.Contains(t, prompt, "## 🤖 Persona")
	assert.Contains(t, prompt, "### Pergunta Original do Usuário:\nQual meu saldo?")
	assert.Contains(t, prompt, `"saldo": "R$ 10,00"`)
	assert.Contains(t, prompt, "[THOUGHT]: consultando")
	assert.Contains(t, prompt, "### 📜 Regras de Formatação Obrigatórias")
	assert.Contains(t, prompt, "- use moeda brasileira")
	assert.Contains(t, prompt, "Agora, gere a resposta final para o usuário.")
}

func TestSynthesizeWithoutGuidelines(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	adapter := newTestAdapter(t, gen, delegatorTestTemplate)

	adapter.Synthesize(context.Background(), &execution.Context{UserQuestion: "oi"}, nil)

	require.Len(t, gen.requests, 1)
	assert.NotContains(t, gen.requests[0].Prompt, "Regras de Formatação Obrigatórias")
}

func TestSynthesizeGenerationErrorReturnsEmpty(t *testing.T) {
	gen := &stubGenerator{err: errors.New("offline")}
	adapter := newTestAdapter(t, gen, delegatorTestTemplate)

	assert.Empty(t, adapter.Synthesize(context.Background(), &execution.Context{}, nil))
}
