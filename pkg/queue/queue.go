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

// Package queue moves accepted tasks from the API to the workers over a
// Redis Stream consumed through a consumer group. Delivery is at-least-once:
// a job is acked only after the worker finishes with it, and entries left
// pending by a dead worker are reclaimed with XAUTOCLAIM.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taricklorran/AGENT-TCC/pkg/config"
)

// payloadField is the stream entry field holding the JSON job.
const payloadField = "job"

// CallbackDetails tells the worker where to report the task outcome.
// AddressingInfo is opaque and echoed back verbatim.
type CallbackDetails struct {
	WebhookURL     string `json:"webhook_url,omitempty"`
	AddressingInfo any    `json:"addressing_info,omitempty"`
}

// Job is the unit of work the API enqueues and a worker processes.
type Job struct {
	TaskID          string          `json:"task_id"`
	UserID          string          `json:"user_id"`
	SessionID       string          `json:"session_id"`
	UserInput       string          `json:"user_input"`
	CallbackDetails CallbackDetails `json:"callback_details"`
}

// Delivery is one received stream entry plus the metadata needed to ack it.
// Count is the number of times the entry has been delivered, this one
// included.
type Delivery struct {
	ID    string
	Job   Job
	Count int64
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Queue is the task stream. The same value serves producers and consumers.
type Queue struct {
	client *redis.Client
	stream string
	group  string
	log    *slog.Logger
}

// New builds a Queue over an existing client. The caller keeps ownership of
// the client and closes it on shutdown.
func New(client *redis.Client, cfg config.WorkerConfig, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		client: client,
		stream: cfg.Stream,
		group:  cfg.Group,
		log:    log,
	}
}

// Enqueue appends the job to the stream and returns the entry ID.
func (q *Queue) Enqueue(ctx context.Context, job Job) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal task %s: %w", job.TaskID, err)
	}

	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{payloadField: string(payload)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue task %s: %w", job.TaskID, err)
	}
	return id, nil
}

// EnsureGroup creates the consumer group, including the stream itself when
// absent. Calling it for an existing group is a no-op. The group starts at
// the beginning of the stream so a backlog enqueued before the first worker
// came up is not skipped.
func (q *Queue) EnsureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("create consumer group %q: %w", q.group, err)
	}
	return nil
}

// Fetch blocks up to the given duration waiting for new entries assigned to
// this consumer. It returns nil when the wait times out.
func (q *Queue) Fetch(ctx context.Context, consumer string, count int64, block time.Duration) ([]Delivery, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read group %q: %w", q.group, err)
	}

	var out []Delivery
	for _, stream := range streams {
		out = append(out, q.deliveries(ctx, stream.Messages, nil)...)
	}
	return out, nil
}

// Claim takes over pending entries idle for at least minIdle, typically ones
// whose worker died mid-job. Delivery counts come from the pending entries
// list so the caller can give up on jobs that keep failing.
func (q *Queue) Claim(ctx context.Context, consumer string, minIdle time.Duration, count int64) ([]Delivery, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("autoclaim: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   q.stream,
		Group:    q.group,
		Start:    msgs[0].ID,
		End:      msgs[len(msgs)-1].ID,
		Count:    int64(len(msgs)),
		Consumer: consumer,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("pending entries: %w", err)
	}

	counts := make(map[string]int64, len(pending))
	for _, p := range pending {
		counts[p.ID] = p.RetryCount
	}
	return q.deliveries(ctx, msgs, counts), nil
}

// Ack marks the entry as done and removes it from the pending list.
func (q *Queue) Ack(ctx context.Context, id string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, id).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	return nil
}

// deliveries decodes stream entries. A payload that cannot be decoded never
// becomes processable, so it is acked away instead of redelivering forever.
func (q *Queue) deliveries(ctx context.Context, msgs []redis.XMessage, counts map[string]int64) []Delivery {
	out := make([]Delivery, 0, len(msgs))
	for _, msg := range msgs {
		job, err := decode(msg)
		if err != nil {
			q.log.Warn("discarding malformed job", "id", msg.ID, "error", err)
			if ackErr := q.Ack(ctx, msg.ID); ackErr != nil {
				q.log.Error("ack malformed job", "id", msg.ID, "error", ackErr)
			}
			continue
		}

		count := int64(1)
		if counts != nil {
			// A claimed entry has been delivered at least twice.
			count = counts[msg.ID]
			if count < 2 {
				count = 2
			}
		}
		out = append(out, Delivery{ID: msg.ID, Job: job, Count: count})
	}
	return out
}

func decode(msg redis.XMessage) (Job, error) {
	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		return Job{}, fmt.Errorf("entry %s has no %q field", msg.ID, payloadField)
	}
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return Job{}, fmt.Errorf("decode entry %s: %w", msg.ID, err)
	}
	return job, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
