package main

import (
	"context"
	"log/slog"

	"github.com/taricklorran/AGENT-TCC/pkg/config"
	"github.com/taricklorran/AGENT-TCC/pkg/queue"
	"github.com/taricklorran/AGENT-TCC/pkg/worker"
)

// WorkCmd starts the queue worker: it consumes tasks from the Redis stream
// and runs the full orchestration flow for each one.
type WorkCmd struct {
	Concurrency int `help:"Number of concurrent consumers (overrides WORKER_CONCURRENCY)."`
}

func (c *WorkCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Concurrency > 0 {
		cfg.Worker.Concurrency = c.Concurrency
	}

	obs, err := initObservability(ctx, cfg.Observability)
	if err != nil {
		return err
	}
	defer shutdownObservability(obs)

	mongoClient, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	log := slog.Default()
	rt, err := buildRuntime(ctx, cfg, mongoClient, log)
	if err != nil {
		return err
	}

	if cfg.Prompts.Watch {
		go func() {
			if err := rt.Templates.Watch(ctx); err != nil && ctx.Err() == nil {
				log.Error("prompt template watch error", "error", err)
			}
		}()
	}

	redisClient, err := queue.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	q := queue.New(redisClient, cfg.Worker, log)
	w := worker.New(q, rt.Orchestrator, cfg.Worker, obs.GetMetrics(), log)

	log.Info("worker ready",
		"concurrency", cfg.Worker.Concurrency,
		"stream", cfg.Worker.Stream,
		"group", cfg.Worker.Group,
		"model", cfg.Gemini.Model)
	return w.Run(ctx)
}
