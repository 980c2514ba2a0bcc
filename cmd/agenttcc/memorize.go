package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taricklorran/AGENT-TCC/pkg/config"
	"github.com/taricklorran/AGENT-TCC/pkg/conversation"
	"github.com/taricklorran/AGENT-TCC/pkg/llm"
	"github.com/taricklorran/AGENT-TCC/pkg/memory"
)

// MemorizeCmd runs one long-term memory pass: summarize conversations idle
// beyond the configured window, embed and upsert the summaries into Qdrant
// and delete the memorized messages from the short-term history.
type MemorizeCmd struct{}

func (c *MemorizeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	log := slog.Default()

	mongoClient, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	convo, err := conversation.NewStore(ctx, conversation.StoreOptions{
		Client:   mongoClient,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	store, err := memory.NewStore(memory.StoreOptions{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Memory.Collection,
	}, log)
	if err != nil {
		return err
	}

	// The batch summarizes with the cheaper model, not the orchestration one.
	gemini, err := llm.NewClient(llm.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Memory.SummaryModel,
	})
	if err != nil {
		return err
	}
	embedder := memory.NewGeminiEmbedder(gemini.GenAI(), cfg.Gemini.EmbeddingModel)

	consolidator := memory.NewConsolidator(convo, store, embedder, gemini, memory.ConsolidatorOptions{
		MinIdle:     cfg.Memory.MinIdle,
		TokenBudget: cfg.Memory.TokenBudget,
	}, log)

	stats, err := consolidator.Run(ctx)
	if err != nil {
		return fmt.Errorf("memory consolidation: %w", err)
	}

	fmt.Printf("Sessions seen:     %d\n", stats.SessionsSeen)
	fmt.Printf("Memorized:         %d\n", stats.Memorized)
	fmt.Printf("Skipped:           %d\n", stats.Skipped)
	fmt.Printf("Messages deleted:  %d\n", stats.MessagesDeleted)
	return nil
}
