package memorytool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taricklorran/AGENT-TCC/pkg/execution"
	"github.com/taricklorran/AGENT-TCC/pkg/memory"
	"github.com/taricklorran/AGENT-TCC/pkg/tool"
)

type stubSearcher struct {
	hits   []memory.Hit
	err    error
	userID string
	vector []float32
	limit  int
}

func (s *stubSearcher) Search(_ context.Context, userID string, vector []float32, limit int) ([]memory.Hit, error) {
	s.userID = userID
	s.vector = vector
	s.limit = limit
	return s.hits, s.err
}

type stubEmbedder struct {
	vector []float32
	err    error
	text   string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.text = text
	return s.vector, s.err
}

func invocation(query any) tool.Invocation {
	params := map[string]any{}
	if query != nil {
		params["query"] = query
	}
	return tool.Invocation{
		Params:  params,
		Context: &execution.Context{UserData: map[string]any{"user_id": "user-1"}},
	}
}

func TestExecuteFormatsRecalledMemories(t *testing.T) {
	searcher := &stubSearcher{hits: []memory.Hit{
		{
			Summary:         "Usuário pediu o saldo da conta.",
			ConversationEnd: time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC),
			Score:           0.9174,
		},
		{
			Summary:         "Usuário contestou uma cobrança.",
			ConversationEnd: time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC),
			Score:           0.8,
		},
	}}
	embedder := &stubEmbedder{vector: []float32{0.1, 0.2}}

	result := New(searcher, embedder, nil).Execute(context.Background(), invocation("saldo"))

	require.True(t, result.Success)
	assert.Equal(t, "Encontrei as seguintes memórias relevantes de conversas passadas:\n"+
		"Memória de 30/06/2025:\n'Usuário pediu o saldo da conta.' (similaridade: 0.92)\n\n"+
		"Memória de 02/05/2025:\n'Usuário contestou uma cobrança.' (similaridade: 0.80)",
		result.Output)

	assert.Equal(t, "saldo", embedder.text)
	assert.Equal(t, "user-1", searcher.userID)
	assert.Equal(t, []float32{0.1, 0.2}, searcher.vector)
	assert.Equal(t, 3, searcher.limit)
}

func TestExecuteWithoutHits(t *testing.T) {
	result := New(&stubSearcher{}, &stubEmbedder{vector: []float32{1}}, nil).
		Execute(context.Background(), invocation("férias"))

	require.True(t, result.Success)
	assert.Equal(t, "Nenhuma memória relevante encontrada em conversas passadas.", result.Output)
}

func TestExecuteWithoutStore(t *testing.T) {
	result := New(nil, &stubEmbedder{}, nil).Execute(context.Background(), invocation("saldo"))

	assert.False(t, result.Success)
	assert.Equal(t, "Ferramenta de memória não disponível devido a erro de conexão.", result.Output)
}

func TestExecuteWithoutQuery(t *testing.T) {
	for _, query := range []any{nil, "", 42} {
		result := New(&stubSearcher{}, &stubEmbedder{}, nil).Execute(context.Background(), invocation(query))

		assert.False(t, result.Success)
		assert.Equal(t, "Parâmetro 'query' não fornecido para a busca na memória.", result.Output)
	}
}

func TestExecuteWithoutUser(t *testing.T) {
	inv := tool.Invocation{
		Params:  map[string]any{"query": "saldo"},
		Context: &execution.Context{},
	}

	result := New(&stubSearcher{}, &stubEmbedder{}, nil).Execute(context.Background(), inv)

	assert.False(t, result.Success)
	assert.Equal(t, "Não foi possível identificar o usuário para a busca na memória.", result.Output)
}

func TestExecuteEmbeddingFailure(t *testing.T) {
	embedder := &stubEmbedder{err: memory.ErrEmbedding}

	result := New(&stubSearcher{}, embedder, nil).Execute(context.Background(), invocation("saldo"))

	assert.False(t, result.Success)
	assert.Equal(t, "Não foi possível processar a busca na memória de longo prazo.", result.Output)
}

func TestExecuteSearchFailure(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("connection refused")}

	result := New(searcher, &stubEmbedder{vector: []float32{1}}, nil).
		Execute(context.Background(), invocation("saldo"))

	assert.False(t, result.Success)
	assert.Equal(t, "Erro ao executar a busca na memória (Qdrant): connection refused", result.Output)
}
