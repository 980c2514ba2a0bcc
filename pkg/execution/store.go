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

package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultCollection = "execution_logs"

// StoreOptions configures the execution log store.
type StoreOptions struct {
	// Client is the connected MongoDB client. Required.
	Client *mongo.Client
	// Database is the database name. Required.
	Database string
	// Collection overrides the default "execution_logs" collection.
	Collection string
	// Timeout bounds each operation when the caller's context has no
	// deadline. Defaults to 10 seconds.
	Timeout time.Duration
}

// Store persists execution log records in MongoDB.
type Store struct {
	collection *mongo.Collection
	timeout    time.Duration
}

var _ LogStore = (*Store)(nil)

// NewStore creates the store and ensures its indexes: execution_id is
// unique, session_id serves the resume lookup.
func NewStore(ctx context.Context, opts StoreOptions) (*Store, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("mongodb execution store: client is required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("mongodb execution store: database is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Store{
		collection: opts.Client.Database(opts.Database).Collection(collection),
		timeout:    timeout,
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
		{
			Keys:    bson.D{{Key: "execution_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "session_id", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("mongodb execution store indexes: %w", err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Insert persists one finalized record.
func (s *Store) Insert(ctx context.Context, record *Record) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("mongodb insert execution log %q: %w", record.ExecutionID, err)
	}
	return nil
}

// LatestBySession returns the most recent record of the session, by start
// timestamp. Returns ErrNotFound when the session has none.
func (s *Store) LatestBySession(ctx context.Context, sessionID string) (*Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	opts := options.FindOne().SetSort(bson.D{{Key: "start_timestamp", Value: -1}})
	var record Record
	err := s.collection.FindOne(ctx, bson.M{"session_id": sessionID}, opts).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb latest execution log for session %q: %w", sessionID, err)
	}
	return &record, nil
}

