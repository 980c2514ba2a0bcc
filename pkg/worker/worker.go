// Copyright 2025 Tarick Lorran
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package worker consumes queued tasks, runs each through the orchestrator
// under a per-job deadline and reports the outcome to the task's webhook.
// The callback fires on every terminal state, completion and failure alike;
// only a worker crash leaves an entry pending, and the reclaimer retries it
// until the delivery count runs out.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taricklorran/AGENT-TCC/pkg/config"
	"github.com/taricklorran/AGENT-TCC/pkg/observability"
	"github.com/taricklorran/AGENT-TCC/pkg/orchestrator"
	"github.com/taricklorran/AGENT-TCC/pkg/queue"
)

// Callback statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	emptyOutputMessage     = "Nenhuma resposta gerada."
	terminalFailureMessage = "A tarefa falhou após todas as tentativas."
)

const (
	fetchBlock      = 5 * time.Second
	reclaimInterval = time.Minute
	claimBatch      = 16
	ackTimeout      = 10 * time.Second
)

// Runner is the orchestration entrypoint a worker drives.
type Runner interface {
	Run(ctx context.Context, userID, sessionID, question string) orchestrator.Response
}

// Broker yields task deliveries and acknowledges them.
type Broker interface {
	EnsureGroup(ctx context.Context) error
	Fetch(ctx context.Context, consumer string, count int64, block time.Duration) ([]queue.Delivery, error)
	Claim(ctx context.Context, consumer string, minIdle time.Duration, count int64) ([]queue.Delivery, error)
	Ack(ctx context.Context, id string) error
}

var (
	_ Runner = (*orchestrator.Orchestrator)(nil)
	_ Broker = (*queue.Queue)(nil)
)

// Worker runs the consume loop.
type Worker struct {
	broker  Broker
	runner  Runner
	config  config.WorkerConfig
	metrics *observability.Metrics
	client  *http.Client
	log     *slog.Logger
}

// New builds a worker. metrics may be nil; log defaults to slog.Default().
func New(broker Broker, runner Runner, cfg config.WorkerConfig, metrics *observability.Metrics, log *slog.Logger) *Worker {
	cfg.SetDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		broker:  broker,
		runner:  runner,
		config:  cfg,
		metrics: metrics,
		client:  &http.Client{Timeout: cfg.CallbackTimeout},
		log:     log,
	}
}

// Run consumes the stream until the context is canceled. It spawns one
// consumer goroutine per configured concurrency slot, each with its own
// consumer name, plus a reclaimer that takes over deliveries abandoned for
// longer than the job time limit.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.broker.EnsureGroup(ctx); err != nil {
		return err
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.config.Concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d-%s", host, i, uuid.NewString()[:8])
		g.Go(func() error {
			return w.consume(ctx, consumer)
		})
	}
	g.Go(func() error {
		return w.reclaim(ctx, host+"-reclaimer")
	})

	w.log.Info("worker started",
		"stream", w.config.Stream, "group", w.config.Group, "concurrency", w.config.Concurrency)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *Worker) consume(ctx context.Context, consumer string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := w.broker.Fetch(ctx, consumer, 1, fetchBlock)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("fetch failed", "consumer", consumer, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, d := range deliveries {
			w.process(ctx, d)
		}
	}
}

func (w *Worker) reclaim(ctx context.Context, consumer string) error {
	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		deliveries, err := w.broker.Claim(ctx, consumer, w.config.TimeLimit, claimBatch)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("claim failed", "error", err)
			continue
		}

		for _, d := range deliveries {
			w.process(ctx, d)
		}
	}
}

// process drives one delivery to a terminal state. The deferred finish
// always runs, so the callback and the ack happen on completion, failure
// and panic alike.
func (w *Worker) process(ctx context.Context, d queue.Delivery) {
	ctx, span := startJobSpan(ctx, d.Job.TaskID)
	defer span.End()

	log := w.log.With("task_id", d.Job.TaskID, "delivery", d.Count)
	out := outcome{status: StatusFailed, output: terminalFailureMessage}

	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r)
			out = outcome{status: StatusFailed, output: terminalFailureMessage}
		}
		w.finish(ctx, d, out, log)
	}()

	if d.Count > int64(w.config.MaxRetries) {
		log.Error("delivery limit exceeded, failing task")
		return
	}

	log.Info("processing task", "user_id", d.Job.UserID, "session_id", d.Job.SessionID)

	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, w.config.TimeLimit)
	defer cancel()

	resp := w.runner.Run(jobCtx, d.Job.UserID, d.Job.SessionID, d.Job.UserInput)

	out = outcomeFor(resp)
	w.metrics.RecordJob(ctx, out.status, time.Since(start))

	if out.status == StatusFailed {
		log.Error("task failed", "message", out.output)
	} else {
		log.Info("task finished", "type", resp.Type)
	}
}

// finish reports the outcome and acks the entry. Shutdown must not cut off
// the callback or the ack of a job that already ran, so the context is
// detached from cancellation and rebounded.
func (w *Worker) finish(ctx context.Context, d queue.Delivery, out outcome, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.CallbackTimeout+ackTimeout)
	defer cancel()

	w.sendCallback(ctx, d.Job, out, log)
	if err := w.broker.Ack(ctx, d.ID); err != nil {
		log.Error("ack failed", "id", d.ID, "error", err)
	}
}

// sendCallback reports the task outcome to the webhook. Errors are logged
// and swallowed: a broken webhook never fails or retries the job.
func (w *Worker) sendCallback(ctx context.Context, job queue.Job, out outcome, log *slog.Logger) {
	if job.CallbackDetails.WebhookURL == "" {
		return
	}

	payload, err := json.Marshal(callbackPayload{
		TaskID:         job.TaskID,
		Status:         out.status,
		AddressingInfo: job.CallbackDetails.AddressingInfo,
		FinalOutput:    out.output,
	})
	if err != nil {
		log.Error("marshal callback", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.CallbackDetails.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		log.Error("build callback request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		log.Error("callback delivery failed", "url", job.CallbackDetails.WebhookURL, "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		log.Warn("callback rejected", "url", job.CallbackDetails.WebhookURL, "status", resp.StatusCode)
		return
	}
	log.Info("callback delivered", "status", out.status)
}

// callbackPayload is the webhook body. addressing_info is echoed verbatim,
// null included, so receivers can rely on the key being present.
type callbackPayload struct {
	TaskID         string `json:"task_id"`
	Status         string `json:"status"`
	AddressingInfo any    `json:"addressing_info"`
	FinalOutput    string `json:"final_output"`
}

type outcome struct {
	status string
	output string
}

// outcomeFor maps an orchestration response to the callback payload. Error
// responses come from deterministic checks (payload validation, internal
// invariants), so they fail the task immediately instead of burning
// redeliveries on an input that cannot succeed.
func outcomeFor(resp orchestrator.Response) outcome {
	if resp.Type == orchestrator.TypeError {
		return outcome{
			status: StatusFailed,
			output: firstNonEmpty(resp.Response, resp.Message, terminalFailureMessage),
		}
	}
	return outcome{
		status: StatusCompleted,
		output: firstNonEmpty(resp.Response, resp.Message, emptyOutputMessage),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
