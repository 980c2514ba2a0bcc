package execution

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when no execution log exists for a session.
var ErrNotFound = errors.New("not found")

// Status of an execution log record.
type Status string

const (
	StatusInProgress       Status = "in_progress"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusPendingUserInput Status = "pending_user_input"
)

// NewExecutionID mints the public execution identifier, "exec_" plus
// 8 hex characters. It is assigned once per execution and shared by the
// execution log and the conversation log.
func NewExecutionID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to time
		return "exec_" + hex.EncodeToString([]byte(time.Now().Format("150405")))[:8]
	}
	return "exec_" + hex.EncodeToString(b[:])
}

// ToolLogResult is the per-invocation result stored in the log: a compact
// summary for browsing plus the full output for context reconstruction.
type ToolLogResult struct {
	Success       bool   `bson:"success" json:"success"`
	OutputSummary string `bson:"output_summary" json:"output_summary"`
	FullOutput    any    `bson:"full_output" json:"full_output"`
}

// ManagerLog captures one delegation to a manager.
type ManagerLog struct {
	ManagerID       string                              `bson:"manager_id" json:"manager_id"`
	NewQuestion     string                              `bson:"new_question" json:"new_question"`
	PreviousResults map[string]map[string]ToolLogResult `bson:"previous_results" json:"previous_results"`
	ReactHistory    []string                            `bson:"react_history" json:"react_history"`
}

// Metadata describes the runtime that produced an execution.
type Metadata struct {
	APIVersion    string `bson:"api_version" json:"api_version"`
	LLMModel      string `bson:"llm_model" json:"llm_model"`
	ExecutionMode string `bson:"execution_mode" json:"execution_mode"`
}

// Record is the durable log of one execution. It is built up in memory
// while the execution runs and inserted exactly once on finalize.
type Record struct {
	SessionID      string          `bson:"session_id" json:"session_id"`
	ExecutionID    string          `bson:"execution_id" json:"execution_id"`
	UserID         string          `bson:"user_id" json:"user_id"`
	UserQuestion   string          `bson:"user_question" json:"user_question"`
	StartTimestamp time.Time       `bson:"start_timestamp" json:"start_timestamp"`
	EndTimestamp   time.Time       `bson:"end_timestamp,omitempty" json:"end_timestamp,omitempty"`
	DurationMS     int64           `bson:"duration_ms" json:"duration_ms"`
	Status         Status          `bson:"status" json:"status"`
	Orchestrator   []string        `bson:"orchestrator" json:"orchestrator"`
	Managers       []ManagerLog    `bson:"managers" json:"managers"`
	FinalOutput    string          `bson:"final_output" json:"final_output"`
	PendingActions []PendingAction `bson:"pending_actions" json:"pending_actions"`
	Metadata       Metadata        `bson:"metadata" json:"metadata"`
}

// LogStore persists finalized records and serves them back for resume.
// *Store satisfies it.
type LogStore interface {
	Insert(ctx context.Context, record *Record) error
	LatestBySession(ctx context.Context, sessionID string) (*Record, error)
}

// Logger accumulates the hierarchical log of active executions in memory,
// keyed by session, and flushes each one to the store exactly once.
// Persistence failures are logged and swallowed: logging never takes an
// execution down.
type Logger struct {
	mu       sync.Mutex
	registry map[string]*Record
	store    LogStore
	meta     Metadata
	log      *slog.Logger
}

func NewLogger(store LogStore, meta Metadata, log *slog.Logger) *Logger {
	if meta.ExecutionMode == "" {
		meta.ExecutionMode = "orchestrator"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Logger{
		registry: make(map[string]*Record),
		store:    store,
		meta:     meta,
		log:      log,
	}
}

// Start opens the in-memory record for an execution.
func (l *Logger) Start(sessionID, executionID, userID, question string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registry[sessionID] = &Record{
		SessionID:      sessionID,
		ExecutionID:    executionID,
		UserID:         userID,
		UserQuestion:   question,
		StartTimestamp: time.Now().UTC(),
		Status:         StatusInProgress,
		Orchestrator:   []string{},
		Managers:       []ManagerLog{},
		PendingActions: []PendingAction{},
		Metadata:       l.meta,
	}
}

// AddManager appends a delegation entry. The manager ID is also recorded
// in the orchestrator sequence, once.
func (l *Logger) AddManager(sessionID, managerID, newQuestion string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.registry[sessionID]
	if !ok {
		return
	}
	record.Managers = append(record.Managers, ManagerLog{
		ManagerID:       managerID,
		NewQuestion:     newQuestion,
		PreviousResults: make(map[string]map[string]ToolLogResult),
		ReactHistory:    []string{},
	})
	for _, id := range record.Orchestrator {
		if id == managerID {
			return
		}
	}
	record.Orchestrator = append(record.Orchestrator, managerID)
}

func (l *Logger) managerLog(sessionID, managerID string) *ManagerLog {
	record, ok := l.registry[sessionID]
	if !ok {
		return nil
	}
	for i := range record.Managers {
		if record.Managers[i].ManagerID == managerID {
			return &record.Managers[i]
		}
	}
	return nil
}

func (l *Logger) addReactEntry(sessionID, managerID, entry, label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ml := l.managerLog(sessionID, managerID)
	if ml == nil {
		return
	}
	entry = strings.TrimSpace(entry)
	if !strings.HasPrefix(entry, label) {
		entry = label + ": " + entry
	}
	ml.ReactHistory = append(ml.ReactHistory, entry)
}

func (l *Logger) LogThought(sessionID, managerID, thought string) {
	l.addReactEntry(sessionID, managerID, thought, "[THOUGHT]")
}

func (l *Logger) LogAction(sessionID, managerID, action string) {
	l.addReactEntry(sessionID, managerID, action, "[ACTION]")
}

func (l *Logger) LogObservation(sessionID, managerID, observation string) {
	l.addReactEntry(sessionID, managerID, observation, "[OBSERVATION]")
}

func (l *Logger) LogFinalAnswer(sessionID, managerID, finalAnswer string) {
	l.addReactEntry(sessionID, managerID, finalAnswer, "[FINAL_ANSWER]")
}

// LogToolResult records one tool invocation under the manager's entry.
// The summary is the stringified output capped at 300 characters.
func (l *Logger) LogToolResult(sessionID, managerID, agentID, toolName string, success bool, output any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ml := l.managerLog(sessionID, managerID)
	if ml == nil {
		return
	}
	agentResults, ok := ml.PreviousResults[agentID]
	if !ok {
		agentResults = make(map[string]ToolLogResult)
		ml.PreviousResults[agentID] = agentResults
	}
	agentResults[toolName] = ToolLogResult{
		Success:       success,
		OutputSummary: Summarize(output, 300),
		FullOutput:    output,
	}
}

// SetFinalOutput records the synthesized response.
func (l *Logger) SetFinalOutput(sessionID, output string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if record, ok := l.registry[sessionID]; ok {
		record.FinalOutput = output
	}
}

// SetPendingActions records the actions awaiting user input.
func (l *Logger) SetPendingActions(sessionID string, actions []PendingAction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if record, ok := l.registry[sessionID]; ok {
		record.PendingActions = actions
	}
}

// Finalize stamps the end time and status, inserts the record and drops
// it from the registry. Insert failures are logged, never returned.
func (l *Logger) Finalize(ctx context.Context, sessionID string, status Status) {
	l.mu.Lock()
	record, ok := l.registry[sessionID]
	if ok {
		delete(l.registry, sessionID)
	}
	l.mu.Unlock()
	if !ok {
		return
	}

	record.EndTimestamp = time.Now().UTC()
	record.DurationMS = record.EndTimestamp.Sub(record.StartTimestamp).Milliseconds()
	record.Status = status

	if l.store == nil {
		l.log.Error("cannot persist execution log, no store configured", "session_id", sessionID)
		return
	}
	if err := l.store.Insert(ctx, record); err != nil {
		l.log.Error("failed to persist execution log",
			"session_id", sessionID, "execution_id", record.ExecutionID, "error", err)
	}
}

// Discard drops the in-memory record without persisting, for jobs aborted
// before final logging.
func (l *Logger) Discard(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.registry, sessionID)
}

// Reconstruct rebuilds a context from the latest persisted log of the
// session, consolidating every manager's results and history. Tool
// outputs come back from full_output. Returns ErrNotFound when the
// session has no log.
func (l *Logger) Reconstruct(ctx context.Context, sessionID string) (*Context, error) {
	if l.store == nil {
		return nil, ErrNotFound
	}
	record, err := l.store.LatestBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	restored := &Context{
		ExecutionID:    record.ExecutionID,
		SessionID:      record.SessionID,
		UserID:         record.UserID,
		UserQuestion:   record.UserQuestion,
		FinalOutput:    record.FinalOutput,
		PendingActions: append([]PendingAction(nil), record.PendingActions...),
		UserData:       map[string]any{"user_id": record.UserID},
	}
	for _, ml := range record.Managers {
		restored.ReactHistory = append(restored.ReactHistory, ml.ReactHistory...)
		agentIDs := make([]string, 0, len(ml.PreviousResults))
		for agentID := range ml.PreviousResults {
			agentIDs = append(agentIDs, agentID)
		}
		sort.Strings(agentIDs)
		for _, agentID := range agentIDs {
			tools := ml.PreviousResults[agentID]
			toolNames := make([]string, 0, len(tools))
			for name := range tools {
				toolNames = append(toolNames, name)
			}
			sort.Strings(toolNames)
			for _, name := range toolNames {
				restored.RecordResult(agentID, name, tools[name].FullOutput)
			}
		}
	}
	return restored, nil
}
