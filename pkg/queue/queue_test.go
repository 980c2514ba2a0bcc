package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taricklorran/AGENT-TCC/pkg/config"
)

func workerConfig() config.WorkerConfig {
	return config.WorkerConfig{Stream: "agent_tasks", Group: "agent_workers"}
}

func TestJobPayloadShape(t *testing.T) {
	job := Job{
		TaskID:    "task-1",
		UserID:    "12",
		SessionID: "sess-1",
		UserInput: "Qual meu saldo?",
		CallbackDetails: CallbackDetails{
			WebhookURL:     "https://example.com/hook",
			AddressingInfo: map[string]any{"chat_id": "555"},
		},
	}

	payload, err := json.Marshal(job)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))

	// These keys are read by external callers; they must not drift.
	assert.Equal(t, "task-1", raw["task_id"])
	assert.Equal(t, "12", raw["user_id"])
	assert.Equal(t, "sess-1", raw["session_id"])
	assert.Equal(t, "Qual meu saldo?", raw["user_input"])

	details, ok := raw["callback_details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/hook", details["webhook_url"])
	assert.Equal(t, map[string]any{"chat_id": "555"}, details["addressing_info"])
}

func TestDecode(t *testing.T) {
	valid := `{"task_id":"t1","user_id":"12","session_id":"s1","user_input":"oi",` +
		`"callback_details":{"webhook_url":"https://example.com/hook","addressing_info":"555"}}`

	tests := []struct {
		name    string
		values  map[string]any
		wantErr bool
	}{
		{name: "valid", values: map[string]any{"job": valid}},
		{name: "missing field", values: map[string]any{"other": "x"}, wantErr: true},
		{name: "non-string field", values: map[string]any{"job": 42}, wantErr: true},
		{name: "invalid json", values: map[string]any{"job": "{"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := decode(redis.XMessage{ID: "1-0", Values: tt.values})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "t1", job.TaskID)
			assert.Equal(t, "12", job.UserID)
			assert.Equal(t, "oi", job.UserInput)
			assert.Equal(t, "https://example.com/hook", job.CallbackDetails.WebhookURL)
			assert.Equal(t, "555", job.CallbackDetails.AddressingInfo)
		})
	}
}

func TestDeliveriesCounts(t *testing.T) {
	q := New(nil, workerConfig(), nil)
	payload := func(task string) map[string]any {
		return map[string]any{"job": `{"task_id":"` + task + `","user_id":"1","user_input":"oi"}`}
	}
	msgs := []redis.XMessage{
		{ID: "1-0", Values: payload("a")},
		{ID: "2-0", Values: payload("b")},
	}

	fresh := q.deliveries(context.Background(), msgs, nil)
	require.Len(t, fresh, 2)
	assert.Equal(t, int64(1), fresh[0].Count)
	assert.Equal(t, int64(1), fresh[1].Count)

	claimed := q.deliveries(context.Background(), msgs, map[string]int64{"1-0": 4})
	require.Len(t, claimed, 2)
	assert.Equal(t, int64(4), claimed[0].Count)
	// Entries absent from the pending list still count as redelivered.
	assert.Equal(t, int64(2), claimed[1].Count)
}

func TestIsBusyGroup(t *testing.T) {
	assert.True(t, isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroup(errors.New("connection refused")))
	assert.False(t, isBusyGroup(nil))
}
