package execution

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogStore struct {
	inserted  []*Record
	insertErr error
	latest    *Record
	latestErr error
}

func (f *fakeLogStore) Insert(_ context.Context, record *Record) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, record)
	return nil
}

func (f *fakeLogStore) LatestBySession(_ context.Context, _ string) (*Record, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

func newTestLogger(store LogStore) *Logger {
	return NewLogger(store, Metadata{APIVersion: "1.0.0", LLMModel: "gemini-2.5-flash-preview-05-20"}, nil)
}

func TestLoggerLifecycle(t *testing.T) {
	store := &fakeLogStore{}
	logger := newTestLogger(store)

	logger.Start("sess-1", "exec_0a1b2c3d", "user-1", "Qual o saldo?")
	logger.AddManager("sess-1", "manager_financeiro", "Consulte o saldo atual")
	logger.LogThought("sess-1", "manager_financeiro", "preciso consultar o saldo")
	logger.LogAction("sess-1", "manager_financeiro", `{"tool_name": "consultaSaldo", "params": {}}`)
	logger.LogToolResult("sess-1", "manager_financeiro", "agent_fin", "consultaSaldo", true, "R$ 10")
	logger.LogObservation("sess-1", "manager_financeiro", "R$ 10")
	logger.LogFinalAnswer("sess-1", "manager_financeiro", "O saldo é R$ 10")
	logger.SetFinalOutput("sess-1", "Seu saldo atual é R$ 10.")
	logger.Finalize(context.Background(), "sess-1", StatusCompleted)

	require.Len(t, store.inserted, 1)
	record := store.inserted[0]
	assert.Equal(t, "exec_0a1b2c3d", record.ExecutionID)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, StatusCompleted, record.Status)
	assert.Equal(t, "Seu saldo atual é R$ 10.", record.FinalOutput)
	assert.Equal(t, []string{"manager_financeiro"}, record.Orchestrator)
	assert.False(t, record.EndTimestamp.IsZero())
	assert.GreaterOrEqual(t, record.DurationMS, int64(0))
	assert.Equal(t, "orchestrator", record.Metadata.ExecutionMode)

	require.Len(t, record.Managers, 1)
	ml := record.Managers[0]
	assert.Equal(t, "Consulte o saldo atual", ml.NewQuestion)
	assert.Equal(t, []string{
		"[THOUGHT]: preciso consultar o saldo",
		`[ACTION]: {"tool_name": "consultaSaldo", "params": {}}`,
		"[OBSERVATION]: R$ 10",
		"[FINAL_ANSWER]: O saldo é R$ 10",
	}, ml.ReactHistory)

	result := ml.PreviousResults["agent_fin"]["consultaSaldo"]
	assert.True(t, result.Success)
	assert.Equal(t, "R$ 10", result.OutputSummary)
	assert.Equal(t, "R$ 10", result.FullOutput)

	// The registry entry is gone, a second finalize inserts nothing.
	logger.Finalize(context.Background(), "sess-1", StatusFailed)
	assert.Len(t, store.inserted, 1)
}

func TestLoggerPrefixedEntriesAreNotDoubled(t *testing.T) {
	store := &fakeLogStore{}
	logger := newTestLogger(store)

	logger.Start("sess-1", "exec_0a1b2c3d", "user-1", "pergunta")
	logger.AddManager("sess-1", "manager_x", "objetivo")
	logger.LogThought("sess-1", "manager_x", "  [THOUGHT]: já prefixado  ")
	logger.LogObservation("sess-1", "manager_x", "[OBSERVATION]: Limite máximo de ciclos atingido")
	logger.Finalize(context.Background(), "sess-1", StatusCompleted)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, []string{
		"[THOUGHT]: já prefixado",
		"[OBSERVATION]: Limite máximo de ciclos atingido",
	}, store.inserted[0].Managers[0].ReactHistory)
}

func TestLoggerRepeatedManagerKeepsOrchestratorUnique(t *testing.T) {
	store := &fakeLogStore{}
	logger := newTestLogger(store)

	logger.Start("sess-1", "exec_0a1b2c3d", "user-1", "pergunta")
	logger.AddManager("sess-1", "manager_x", "passo um")
	logger.AddManager("sess-1", "manager_y", "passo dois")
	logger.AddManager("sess-1", "manager_x", "passo três")
	logger.Finalize(context.Background(), "sess-1", StatusCompleted)

	require.Len(t, store.inserted, 1)
	record := store.inserted[0]
	assert.Equal(t, []string{"manager_x", "manager_y"}, record.Orchestrator)
	assert.Len(t, record.Managers, 3)
}

func TestLoggerToolResultSummaryIsCapped(t *testing.T) {
	store := &fakeLogStore{}
	logger := newTestLogger(store)

	long := strings.Repeat("x", 500)
	logger.Start("sess-1", "exec_0a1b2c3d", "user-1", "pergunta")
	logger.AddManager("sess-1", "manager_x", "objetivo")
	logger.LogToolResult("sess-1", "manager_x", "agent_a", "ferramenta", false, long)
	logger.Finalize(context.Background(), "sess-1", StatusFailed)

	require.Len(t, store.inserted, 1)
	result := store.inserted[0].Managers[0].PreviousResults["agent_a"]["ferramenta"]
	assert.False(t, result.Success)
	assert.Len(t, result.OutputSummary, 303)
	assert.True(t, strings.HasSuffix(result.OutputSummary, "..."))
	assert.Equal(t, long, result.FullOutput)
}

func TestLoggerFinalizeSwallowsStoreErrors(t *testing.T) {
	store := &fakeLogStore{insertErr: errors.New("mongo indisponível")}
	logger := newTestLogger(store)

	logger.Start("sess-1", "exec_0a1b2c3d", "user-1", "pergunta")
	// Must not panic nor return the error; the entry is still dropped.
	logger.Finalize(context.Background(), "sess-1", StatusCompleted)
	logger.Finalize(context.Background(), "sess-1", StatusCompleted)
	assert.Empty(t, store.inserted)
}

func TestLoggerDiscardSkipsPersistence(t *testing.T) {
	store := &fakeLogStore{}
	logger := newTestLogger(store)

	logger.Start("sess-1", "exec_0a1b2c3d", "user-1", "pergunta")
	logger.Discard("sess-1")
	logger.Finalize(context.Background(), "sess-1", StatusCompleted)
	assert.Empty(t, store.inserted)
}

func TestLoggerEntriesForUnknownSessionAreIgnored(t *testing.T) {
	store := &fakeLogStore{}
	logger := newTestLogger(store)

	logger.AddManager("fantasma", "manager_x", "objetivo")
	logger.LogThought("fantasma", "manager_x", "pensamento")
	logger.SetFinalOutput("fantasma", "saída")
	logger.Finalize(context.Background(), "fantasma", StatusCompleted)
	assert.Empty(t, store.inserted)
}

func TestLoggerReconstructConsolidatesManagers(t *testing.T) {
	store := &fakeLogStore{
		latest: &Record{
			SessionID:    "sess-1",
			ExecutionID:  "exec_9f8e7d6c",
			UserID:       "user-1",
			UserQuestion: "Qual o saldo e o tempo?",
			FinalOutput:  "",
			PendingActions: []PendingAction{
				{AgentID: "agent_fin", RequiredParams: []string{"conta"}},
			},
			Managers: []ManagerLog{
				{
					ManagerID:    "manager_financeiro",
					ReactHistory: []string{"[THOUGHT]: consultar saldo", "[ACTION]: consultaSaldo()"},
					PreviousResults: map[string]map[string]ToolLogResult{
						"agent_fin": {"consultaSaldo": {Success: true, FullOutput: "R$ 10"}},
					},
				},
				{
					ManagerID:    "manager_clima",
					ReactHistory: []string{"[THOUGHT]: consultar tempo"},
					PreviousResults: map[string]map[string]ToolLogResult{
						"agent_fin":   {"consultaSaldo": {Success: true, FullOutput: "R$ 20"}},
						"agent_clima": {"previsaoTempo": {Success: true, FullOutput: "sol"}},
					},
				},
			},
		},
	}
	logger := newTestLogger(store)

	restored, err := logger.Reconstruct(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "exec_9f8e7d6c", restored.ExecutionID)
	assert.Equal(t, "Qual o saldo e o tempo?", restored.UserQuestion)
	assert.Equal(t, map[string]any{"user_id": "user-1"}, restored.UserData)
	assert.Equal(t, []string{
		"[THOUGHT]: consultar saldo",
		"[ACTION]: consultaSaldo()",
		"[THOUGHT]: consultar tempo",
	}, restored.ReactHistory)
	require.Len(t, restored.PendingActions, 1)
	assert.Equal(t, []string{"conta"}, restored.PendingActions[0].RequiredParams)

	m := restored.ResultsMap()
	assert.Equal(t, "R$ 20", m["agent_fin"]["consultaSaldo"], "the newer delegation's output wins")
	assert.Equal(t, "sol", m["agent_clima"]["previsaoTempo"])
}

func TestLoggerReconstructNotFound(t *testing.T) {
	store := &fakeLogStore{latestErr: ErrNotFound}
	logger := newTestLogger(store)

	_, err := logger.Reconstruct(context.Background(), "sess-x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewExecutionIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for range 64 {
		id := NewExecutionID()
		require.Len(t, id, 13)
		assert.True(t, strings.HasPrefix(id, "exec_"))
		for _, r := range id[5:] {
			assert.Contains(t, "0123456789abcdef", string(r))
		}
		seen[id] = true
	}
	assert.Greater(t, len(seen), 1)
}
