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

// Package conversation persists the per-session message history that feeds
// the delegator's chat context and the long-term memory batch job.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Message roles. The orchestrator writes the user question as RoleUser and
// its final answer as RoleSystem.
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// OrchestratorUserID marks system messages authored by the orchestrator.
const OrchestratorUserID = "orchestrator"

const defaultCollection = "conversation_history"

// Message is one conversation log document.
type Message struct {
	SessionID   string    `bson:"session_id" json:"session_id"`
	ExecutionID string    `bson:"execution_id,omitempty" json:"execution_id,omitempty"`
	Role        string    `bson:"role" json:"role"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Message     string    `bson:"message" json:"message"`
	Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
}

// StoreOptions configures the conversation store.
type StoreOptions struct {
	// Client is the connected MongoDB client. Required.
	Client *mongo.Client
	// Database is the database name. Required.
	Database string
	// Collection overrides the default "conversation_history" collection.
	Collection string
	// Timeout bounds each operation when the caller's context has no
	// deadline. Defaults to 10 seconds.
	Timeout time.Duration
	// Logger receives the swallowed persistence errors. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Store reads and writes conversation history. Writes are best-effort:
// persistence failures are logged, never surfaced, so logging can never
// take an execution down. Full-history reads go through a per-session
// cache that is invalidated on every write and always hands out copies.
type Store struct {
	collection *mongo.Collection
	timeout    time.Duration
	log        *slog.Logger
	cache      *sessionCache
}

// NewStore creates the store and ensures the session_id and
// (session_id, timestamp) indexes.
func NewStore(ctx context.Context, opts StoreOptions) (*Store, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("mongodb conversation store: client is required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("mongodb conversation store: database is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		collection: opts.Client.Database(opts.Database).Collection(collection),
		timeout:    timeout,
		log:        log,
		cache:      newSessionCache(),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongodb conversation store indexes: %w", err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// LogMessage appends one message to the session history and invalidates
// the session's cache entry.
func (s *Store) LogMessage(ctx context.Context, sessionID, executionID, role, userID, text string) {
	defer s.cache.Invalidate(sessionID)

	msg := Message{
		SessionID:   sessionID,
		ExecutionID: executionID,
		Role:        role,
		UserID:      userID,
		Message:     text,
		Timestamp:   time.Now().UTC(),
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.collection.InsertOne(ctx, msg); err != nil {
		s.log.Error("failed to persist conversation message",
			"session_id", sessionID, "role", role, "error", err)
	}
}

// History returns the whole session in chronological order. The result is
// a private copy; mutating it never affects the cache. A read failure is
// logged and yields an empty history.
func (s *Store) History(ctx context.Context, sessionID string) []Message {
	if cached, ok := s.cache.Get(sessionID); ok {
		return cached
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		s.log.Warn("failed to read conversation history", "session_id", sessionID, "error", err)
		return nil
	}
	defer cursor.Close(ctx)
	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		s.log.Warn("failed to decode conversation history", "session_id", sessionID, "error", err)
		return nil
	}
	s.cache.Put(sessionID, messages)
	return copyMessages(messages)
}

// LastMessages returns the latest n messages in chronological order, with
// only the fields the delegator prompt consumes (role, user_id, message,
// timestamp). The cache is not consulted. A read failure is logged and
// yields an empty slice.
func (s *Store) LastMessages(ctx context.Context, sessionID string, n int) []Message {
	if n <= 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(n)).
		SetProjection(bson.M{"role": 1, "user_id": 1, "message": 1, "timestamp": 1, "_id": 0})
	cursor, err := s.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		s.log.Warn("failed to read recent conversation messages", "session_id", sessionID, "error", err)
		return nil
	}
	defer cursor.Close(ctx)
	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		s.log.Warn("failed to decode recent conversation messages", "session_id", sessionID, "error", err)
		return nil
	}
	reverseMessages(messages)
	return messages
}

// ClearSession deletes every message of the session and drops its cache
// entry.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	defer s.cache.Invalidate(sessionID)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.collection.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("mongodb clear session %q: %w", sessionID, err)
	}
	return nil
}

// IdleSession is one session grouped for long-term memory consolidation:
// the full transcript in chronological order plus the owning user.
type IdleSession struct {
	SessionID       string    `bson:"_id"`
	LastMessageTime time.Time `bson:"last_message_time"`
	UserID          string    `bson:"user_id"`
	Messages        []Message `bson:"messages"`
}

// IdleSessions groups messages by session and returns the sessions whose
// last message is older than cutoff.
func (s *Store) IdleSessions(ctx context.Context, cutoff time.Time) ([]IdleSession, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$session_id"},
			{Key: "last_message_time", Value: bson.D{{Key: "$last", Value: "$timestamp"}}},
			{Key: "messages", Value: bson.D{{Key: "$push", Value: "$$ROOT"}}},
			{Key: "user_id", Value: bson.D{{Key: "$first", Value: "$user_id"}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "last_message_time", Value: bson.D{{Key: "$lt", Value: cutoff}}}}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodb group idle sessions: %w", err)
	}
	defer cursor.Close(ctx)
	var sessions []IdleSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("mongodb decode idle sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSessions removes every message of the given sessions, returning
// how many messages were deleted.
func (s *Store) DeleteSessions(ctx context.Context, sessionIDs []string) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}
	defer func() {
		for _, id := range sessionIDs {
			s.cache.Invalidate(id)
		}
	}()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	result, err := s.collection.DeleteMany(ctx, bson.M{"session_id": bson.M{"$in": sessionIDs}})
	if err != nil {
		return 0, fmt.Errorf("mongodb delete consolidated sessions: %w", err)
	}
	return result.DeletedCount, nil
}

func reverseMessages(messages []Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
