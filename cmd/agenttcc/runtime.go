package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taricklorran/AGENT-TCC/pkg/agent"
	"github.com/taricklorran/AGENT-TCC/pkg/config"
	"github.com/taricklorran/AGENT-TCC/pkg/conversation"
	"github.com/taricklorran/AGENT-TCC/pkg/definition"
	"github.com/taricklorran/AGENT-TCC/pkg/execution"
	"github.com/taricklorran/AGENT-TCC/pkg/llm"
	"github.com/taricklorran/AGENT-TCC/pkg/manager"
	"github.com/taricklorran/AGENT-TCC/pkg/memory"
	"github.com/taricklorran/AGENT-TCC/pkg/observability"
	"github.com/taricklorran/AGENT-TCC/pkg/orchestrator"
	"github.com/taricklorran/AGENT-TCC/pkg/tool"
	"github.com/taricklorran/AGENT-TCC/pkg/tool/apitool"
	"github.com/taricklorran/AGENT-TCC/pkg/tool/capabilitytool"
	"github.com/taricklorran/AGENT-TCC/pkg/tool/memorytool"
	"github.com/taricklorran/AGENT-TCC/pkg/tool/prompttool"
)

// connectMongo connects and pings, so a bad URI fails at startup instead
// of on the first request.
func connectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	return client, nil
}

// initObservability builds and initializes the tracing/metrics manager.
func initObservability(ctx context.Context, cfg config.ObservabilityConfig) (*observability.Manager, error) {
	obs := observability.NewManager(cfg)
	if err := obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize observability: %w", err)
	}
	return obs, nil
}

// shutdownObservability flushes pending spans under a fresh timeout; the
// root context is already cancelled by the time deferred shutdown runs.
func shutdownObservability(obs *observability.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		slog.Warn("observability shutdown failed", "error", err)
	}
}

// appRuntime bundles the orchestration graph one worker process drives.
type appRuntime struct {
	Orchestrator *orchestrator.Orchestrator
	Templates    *llm.Templates
}

// buildRuntime wires the worker-side dependency graph: catalog loader,
// conversation and execution stores, the Gemini adapter, the tool registry
// and the two-level executors, bottom up.
func buildRuntime(ctx context.Context, cfg *config.Config, mongoClient *mongo.Client, log *slog.Logger) (*appRuntime, error) {
	catalog := definition.NewStore(definition.StoreOptions{
		Client:   mongoClient,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	loader := definition.NewLoader(catalog, log)

	convo, err := conversation.NewStore(ctx, conversation.StoreOptions{
		Client:   mongoClient,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	execStore, err := execution.NewStore(ctx, execution.StoreOptions{
		Client:   mongoClient,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return nil, err
	}
	execLog := execution.NewLogger(execStore, execution.Metadata{
		APIVersion: cfg.APIVersion,
		LLMModel:   cfg.Gemini.Model,
	}, log)

	gemini, err := llm.NewClient(llm.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	})
	if err != nil {
		return nil, err
	}
	templates := llm.NewTemplates(cfg.Prompts.Dir, log)
	adapter := llm.NewAdapter(gemini, templates, log)

	registry := tool.NewRegistry(log)
	registry.Register(capabilitytool.New(loader, log))
	registry.Register(prompttool.New(adapter, log))
	registry.Register(apitool.New(nil, log))
	registry.Register(memorytool.New(memorySearcher(cfg, log), memory.NewGeminiEmbedder(gemini.GenAI(), cfg.Gemini.EmbeddingModel), log))

	agents := agent.NewExecutor(registry, log)
	steps := manager.NewExecutor(adapter, agents, execLog, cfg.Orchestrator.MaxReactCycles, log)

	orch := orchestrator.New(orchestrator.Options{
		Definitions:   loader,
		Decider:       adapter,
		Steps:         steps,
		Conversation:  convo,
		ExecutionLog:  execLog,
		MaxCycles:     cfg.Orchestrator.MaxCycles,
		HistoryWindow: cfg.Orchestrator.HistoryWindow,
		Logger:        log,
	})

	return &appRuntime{Orchestrator: orch, Templates: templates}, nil
}

// memorySearcher opens the Qdrant store for the recall tool. An
// unreachable Qdrant degrades the tool to its polite unavailable message
// instead of taking the worker down, so the nil stays an interface nil.
func memorySearcher(cfg *config.Config, log *slog.Logger) memorytool.Searcher {
	store, err := memory.NewStore(memory.StoreOptions{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Memory.Collection,
	}, log)
	if err != nil {
		log.Warn("long-term memory store unavailable", "error", err)
		return nil
	}
	return store
}
