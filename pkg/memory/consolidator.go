package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/taricklorran/AGENT-TCC/pkg/conversation"
	"github.com/taricklorran/AGENT-TCC/pkg/llm"
)

// summaryPrompt condenses one conversation into a recallable memory.
const summaryPrompt = `Resuma a seguinte conversa entre um usuário e um assistente de IA em um ou dois parágrafos.
Foque nos principais problemas resolvidos, informações chave trocadas e no resultado final.
Não inclua saudações ou despedidas, vá direto ao ponto.

CONVERSA:
%s

RESUMO CONCISO:`

// ConversationSource yields idle sessions and deletes them once
// memorized. The conversation store satisfies it.
type ConversationSource interface {
	IdleSessions(ctx context.Context, cutoff time.Time) ([]conversation.IdleSession, error)
	DeleteSessions(ctx context.Context, sessionIDs []string) (int64, error)
}

// VectorStore is the slice of Store the consolidator writes through.
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, rec Record) error
}

type tokenCounter interface {
	Count(text string) int
}

// ConsolidatorOptions tunes the batch pass.
type ConsolidatorOptions struct {
	// MinIdle is how long a session must stay quiet before it is
	// considered finished and worth memorizing.
	MinIdle time.Duration
	// TokenBudget caps the transcript handed to the summarizer. Zero
	// disables the cap.
	TokenBudget int
}

// Stats reports one consolidation pass.
type Stats struct {
	SessionsSeen    int
	Memorized       int
	Skipped         int
	MessagesDeleted int64
}

// Consolidator moves finished conversations from the short-term Mongo
// history into Qdrant: summarize, embed, upsert, then delete the source
// messages.
type Consolidator struct {
	source  ConversationSource
	store   VectorStore
	embed   Embedder
	gen     llm.Generator
	tokens  tokenCounter
	minIdle time.Duration
	budget  int
	log     *slog.Logger
	now     func() time.Time
}

func NewConsolidator(source ConversationSource, store VectorStore, embed Embedder, gen llm.Generator, opts ConsolidatorOptions, log *slog.Logger) *Consolidator {
	if log == nil {
		log = slog.Default()
	}
	c := &Consolidator{
		source:  source,
		store:   store,
		embed:   embed,
		gen:     gen,
		minIdle: opts.MinIdle,
		budget:  opts.TokenBudget,
		log:     log,
		now:     time.Now,
	}
	if c.budget > 0 {
		encoding, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Warn("token encoding unavailable, transcript cap disabled", "error", err)
		} else {
			c.tokens = &tiktokenCounter{encoding: encoding}
		}
	}
	return c
}

// Run executes one consolidation pass. Per-session failures are logged
// and skipped; only infrastructure failures (listing or deleting the
// source sessions, ensuring the collection) abort the pass.
func (c *Consolidator) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.store.EnsureCollection(ctx); err != nil {
		return stats, err
	}

	cutoff := c.now().UTC().Add(-c.minIdle)
	sessions, err := c.source.IdleSessions(ctx, cutoff)
	if err != nil {
		return stats, err
	}
	stats.SessionsSeen = len(sessions)
	c.log.Info("memory consolidation started", "sessions", len(sessions), "cutoff", cutoff)

	var memorized []string
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if len(session.Messages) == 0 {
			continue
		}
		if err := c.memorize(ctx, session); err != nil {
			stats.Skipped++
			c.log.Warn("session skipped", "session_id", session.SessionID, "error", err)
			continue
		}
		stats.Memorized++
		memorized = append(memorized, session.SessionID)
	}

	if len(memorized) > 0 {
		deleted, err := c.source.DeleteSessions(ctx, memorized)
		if err != nil {
			return stats, fmt.Errorf("clear memorized sessions: %w", err)
		}
		stats.MessagesDeleted = deleted
	}

	c.log.Info("memory consolidation finished",
		"memorized", stats.Memorized, "skipped", stats.Skipped, "messages_deleted", stats.MessagesDeleted)
	return stats, nil
}

func (c *Consolidator) memorize(ctx context.Context, session conversation.IdleSession) error {
	summary, err := c.summarize(ctx, session.Messages)
	if err != nil {
		return err
	}
	vector, err := c.embed.Embed(ctx, summary)
	if err != nil {
		return err
	}
	return c.store.Upsert(ctx, Record{
		UserID:            session.UserID,
		SessionID:         session.SessionID,
		Summary:           summary,
		ConversationStart: session.Messages[0].Timestamp,
		ConversationEnd:   session.Messages[len(session.Messages)-1].Timestamp,
		ProcessedAt:       c.now().UTC(),
		Vector:            vector,
	})
}

func (c *Consolidator) summarize(ctx context.Context, messages []conversation.Message) (string, error) {
	transcript := c.transcript(messages)
	reply, err := c.gen.Generate(ctx, llm.Request{Prompt: fmt.Sprintf(summaryPrompt, transcript)})
	if err != nil {
		return "", fmt.Errorf("summarize conversation: %w", err)
	}
	summary := strings.TrimSpace(reply)
	if summary == "" {
		return "", errors.New("summarizer returned an empty summary")
	}
	return summary, nil
}

// transcript renders "role: message" lines. When a budget is set, the
// most recent lines that fit win; the newest line always survives.
func (c *Consolidator) transcript(messages []conversation.Message) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = m.Role + ": " + m.Message
	}
	if c.tokens == nil || c.budget <= 0 {
		return strings.Join(lines, "\n")
	}

	total := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		total += c.tokens.Count(lines[i])
		if total > c.budget {
			break
		}
		start = i
	}
	if start == len(lines) {
		start = len(lines) - 1
	}
	return strings.Join(lines[start:], "\n")
}

type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func (t *tiktokenCounter) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}
