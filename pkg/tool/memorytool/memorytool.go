// Package memorytool implements the built-in long-term memory search. It
// embeds the query, filters the vector store by user and hands the top
// matches back to the react loop as readable Portuguese snippets.
package memorytool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/memory"
	"github.com/taricklorran/AGENT-TCC/pkg/tool"
)

// hitLimit caps how many memories one search hands back to the model.
const hitLimit = 3

// Searcher is the vector lookup the tool performs. *memory.Store
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, userID string, vector []float32, limit int) ([]memory.Hit, error)
}

// Tool recalls summaries of past conversations. A nil store or embedder is
// tolerated so a failed Qdrant connection at startup degrades to a polite
// message instead of crashing every request.
type Tool struct {
	store Searcher
	embed memory.Embedder
	log   *slog.Logger
}

func New(store Searcher, embed memory.Embedder, log *slog.Logger) *Tool {
	if log == nil {
		log = slog.Default()
	}
	return &Tool{store: store, embed: embed, log: log}
}

func (t *Tool) Name() string { return definition.MemorySearchToolName }

func (t *Tool) Description() string {
	return "Use para buscar informações ou contexto de conversas que aconteceram há mais de um dia. Ótima para perguntas como 'lembra quando falamos sobre X?' ou 'qual foi a decisão sobre Y?'."
}

func (t *Tool) Execute(ctx context.Context, inv tool.Invocation) tool.Result {
	if t.store == nil {
		return tool.Result{Success: false, Output: "Ferramenta de memória não disponível devido a erro de conexão."}
	}

	query, _ := inv.Params["query"].(string)
	if query == "" {
		return tool.Result{Success: false, Output: "Parâmetro 'query' não fornecido para a busca na memória."}
	}

	userID := ""
	if inv.Context != nil {
		userID, _ = inv.Context.UserData["user_id"].(string)
	}
	if userID == "" {
		return tool.Result{Success: false, Output: "Não foi possível identificar o usuário para a busca na memória."}
	}

	vector, err := t.embedQuery(ctx, query)
	if err != nil {
		t.log.Error("memory search embedding failed", "error", err)
		return tool.Result{Success: false, Output: "Não foi possível processar a busca na memória de longo prazo."}
	}

	hits, err := t.store.Search(ctx, userID, vector, hitLimit)
	if err != nil {
		return tool.Result{Success: false, Output: fmt.Sprintf("Erro ao executar a busca na memória (Qdrant): %v", err)}
	}
	if len(hits) == 0 {
		return tool.Result{Success: true, Output: "Nenhuma memória relevante encontrada em conversas passadas."}
	}

	formatted := make([]string, len(hits))
	for i, hit := range hits {
		formatted[i] = fmt.Sprintf("Memória de %s:\n'%s' (similaridade: %.2f)",
			hit.ConversationEnd.Format("02/01/2006"), hit.Summary, hit.Score)
	}
	return tool.Result{
		Success: true,
		Output:  "Encontrei as seguintes memórias relevantes de conversas passadas:\n" + strings.Join(formatted, "\n\n"),
	}
}

func (t *Tool) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if t.embed == nil {
		return nil, fmt.Errorf("%w: embedder not configured", memory.ErrEmbedding)
	}
	vector, err := t.embed.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty vector", memory.ErrEmbedding)
	}
	return vector, nil
}

var _ tool.Tool = (*Tool)(nil)
