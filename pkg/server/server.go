// Copyright 2025 Kadir Pekel
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

// Package server hosts the delegation tool behind a small HTTP surface.
//
// Routes:
//   - POST /invocations  {"prompt": "..."} -> {"result": "..."}
//   - GET  /ping         liveness probe, never authenticated
//
// When a JWT validator is configured, /invocations requires a valid bearer
// token.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/relay/pkg/auth"
	"github.com/kadirpekel/relay/pkg/tool"
)

const shutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	// ListenAddr is the bind address, e.g. ":8080".
	ListenAddr string

	// Tool handles each invocation. Required.
	Tool tool.CallableTool

	// Validator, when set, gates /invocations behind bearer auth.
	Validator *auth.JWTValidator

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the HTTP host for the delegation tool.
type Server struct {
	cfg    Config
	logger *slog.Logger
	server *http.Server
}

// New creates a server. It does not start listening.
func New(cfg Config) (*Server, error) {
	if cfg.Tool == nil {
		return nil, fmt.Errorf("a tool is required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, logger: logger}
	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens and serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.ListenAddr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.logger.Info("server shutting down")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/ping", s.handlePing)

	r.Group(func(r chi.Router) {
		if s.cfg.Validator != nil {
			r.Use(s.cfg.Validator.Middleware)
		}
		r.Post("/invocations", s.handleInvocation)
	})

	return r
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type invocationRequest struct {
	Prompt string `json:"prompt"`
}

type invocationResponse struct {
	Result string `json:"result"`
}

func (s *Server) handleInvocation(w http.ResponseWriter, r *http.Request) {
	var req invocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	result, err := s.cfg.Tool.Call(r.Context(), map[string]any{"request": req.Prompt})
	if err != nil {
		s.logger.Error("invocation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "invocation failed")
		return
	}

	text, _ := result["result"].(string)
	writeJSON(w, http.StatusOK, invocationResponse{Result: text})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
