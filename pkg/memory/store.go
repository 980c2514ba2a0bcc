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

// Package memory implements long-term memory: conversation summaries
// stored as 768-dim cosine vectors in Qdrant, written by the
// consolidation batch and read back by the recall tool.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// VectorSize is fixed by the embedding model contract.
const VectorSize = 768

const defaultCollection = "long_term_memory"

// Record is one consolidated conversation ready for upsert.
type Record struct {
	UserID            string
	SessionID         string
	Summary           string
	ConversationStart time.Time
	ConversationEnd   time.Time
	ProcessedAt       time.Time
	Vector            []float32
}

// Hit is one recalled memory.
type Hit struct {
	Summary         string
	ConversationEnd time.Time
	Score           float32
}

// StoreOptions configures the Qdrant connection.
type StoreOptions struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Store holds the user's long-term memories in a Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
	log        *slog.Logger
}

func NewStore(opts StoreOptions, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if opts.Collection == "" {
		opts.Collection = defaultCollection
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	return &Store{client: client, collection: opts.Collection, log: log}, nil
}

// EnsureCollection creates the memory collection when absent. An existing
// collection is never touched: recreating it would erase every memory.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection %q: %w", s.collection, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("create qdrant collection %q: %w", s.collection, err)
	}
	s.log.Info("qdrant collection created", "collection", s.collection)
	return nil
}

// Upsert writes one memory under a fresh UUID point id.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	fields := map[string]any{
		"user_id":            rec.UserID,
		"session_id":         rec.SessionID,
		"summary":            rec.Summary,
		"conversation_start": rec.ConversationStart.UTC().Format(time.RFC3339),
		"conversation_end":   rec.ConversationEnd.UTC().Format(time.RFC3339),
		"processed_at":       rec.ProcessedAt.UTC().Format(time.RFC3339),
	}
	payload := make(map[string]*qdrant.Value, len(fields))
	for key, value := range fields {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("encode memory payload field %q: %w", key, err)
		}
		payload[key] = val
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(uuid.NewString()),
		Vectors: qdrant.NewVectors(rec.Vector...),
		Payload: payload,
	}
	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("upsert memory for session %q: %w", rec.SessionID, err)
	}
	return nil
}

// Search returns the user's memories nearest to the query vector, best
// score first.
func (s *Store) Search(ctx context.Context, userID string, vector []float32, limit int) ([]Hit, error) {
	request := &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				{
					ConditionOneOf: &qdrant.Condition_Field{
						Field: &qdrant.FieldCondition{
							Key: "user_id",
							Match: &qdrant.Match{
								MatchValue: &qdrant.Match_Keyword{Keyword: userID},
							},
						},
					},
				},
			},
		},
	}

	response, err := s.client.GetPointsClient().Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search qdrant collection %q: %w", s.collection, err)
	}

	hits := make([]Hit, 0, len(response.Result))
	for _, point := range response.Result {
		hit := Hit{Score: point.Score}
		if v, ok := point.Payload["summary"]; ok {
			hit.Summary = v.GetStringValue()
		}
		if v, ok := point.Payload["conversation_end"]; ok {
			if ts, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
				hit.ConversationEnd = ts
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
