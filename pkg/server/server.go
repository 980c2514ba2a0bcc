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

// Package server exposes the HTTP intake API. POST /api/v1/ask accepts a
// question, enqueues it for the worker pool and answers 202 immediately;
// the result reaches the caller later through the task's webhook.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/taricklorran/AGENT-TCC/pkg/config"
	"github.com/taricklorran/AGENT-TCC/pkg/observability"
	"github.com/taricklorran/AGENT-TCC/pkg/queue"
)

// APIVersion is reported by the health endpoint.
const APIVersion = "1.0.0"

const acceptedMessage = "Sua requisição foi aceita e está sendo processada em segundo plano."

const shutdownGrace = 10 * time.Second

// Enqueuer hands accepted tasks to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) (string, error)
}

var _ Enqueuer = (*queue.Queue)(nil)

// Server is the intake HTTP server.
type Server struct {
	queue   Enqueuer
	obs     *observability.Manager
	httpSrv *http.Server
	log     *slog.Logger
}

// New builds the server. obs may be nil when observability is not wired;
// log defaults to slog.Default().
func New(q Enqueuer, obs *observability.Manager, cfg config.ServerConfig, log *slog.Logger) *Server {
	if obs == nil {
		obs = observability.NoopManager()
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{queue: q, obs: obs, log: log}
	s.httpSrv = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(s.obs.GetTracer("agenttcc.http"), s.obs.GetMetrics()))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.obs.MetricsHandler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
	})

	return r
}

// Start serves until the context is canceled, then drains in-flight
// requests within the shutdown grace period.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

// askRequest is the intake body. Missing task and session ids are minted
// server-side so the caller can always track the task.
type askRequest struct {
	UserInput       string                `json:"user_input"`
	UserID          string                `json:"user_id"`
	SessionID       string                `json:"session_id"`
	TaskID          string                `json:"task_id"`
	CallbackDetails queue.CallbackDetails `json:"callback_details"`
}

type askResponse struct {
	Message   string `json:"message"`
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Corpo da requisição inválido: %v", err))
		return
	}
	if req.UserInput == "" || req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id e user_input são obrigatórios.")
		return
	}

	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	job := queue.Job{
		TaskID:          taskID,
		UserID:          req.UserID,
		SessionID:       sessionID,
		UserInput:       req.UserInput,
		CallbackDetails: req.CallbackDetails,
	}

	if _, err := s.queue.Enqueue(r.Context(), job); err != nil {
		s.log.Error("enqueue failed", "task_id", taskID, "error", err)
		s.writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("Não foi possível enfileirar a tarefa para processamento: %v", err))
		return
	}

	s.log.Info("task enqueued", "task_id", taskID, "user_id", req.UserID, "session_id", sessionID)

	s.writeJSON(w, http.StatusAccepted, askResponse{
		Message:   acceptedMessage,
		TaskID:    taskID,
		SessionID: sessionID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": APIVersion,
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response", "error", err)
	}
}

// writeError renders errors as {"detail": ...}. Existing clients parse
// this shape.
func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
