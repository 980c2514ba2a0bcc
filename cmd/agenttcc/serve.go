package main

import (
	"log/slog"

	"github.com/taricklorran/AGENT-TCC/pkg/config"
	"github.com/taricklorran/AGENT-TCC/pkg/queue"
	"github.com/taricklorran/AGENT-TCC/pkg/server"
)

// ServeCmd starts the HTTP API: it accepts tasks and enqueues them for the
// workers, it never talks to the LLM itself.
type ServeCmd struct {
	Host string `help:"Bind address (overrides SERVER_HOST)."`
	Port int    `help:"Port to listen on (overrides SERVER_PORT)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	obs, err := initObservability(ctx, cfg.Observability)
	if err != nil {
		return err
	}
	defer shutdownObservability(obs)

	client, err := queue.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	log := slog.Default()
	q := queue.New(client, cfg.Worker, log)
	srv := server.New(q, obs, cfg.Server, log)

	log.Info("HTTP API ready",
		"address", cfg.Server.Address(),
		"stream", cfg.Worker.Stream,
		"metrics", cfg.Observability.MetricsEnabled,
		"tracing", cfg.Observability.TracingEnabled)
	return srv.Start(ctx)
}
