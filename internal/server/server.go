// Package server implements the HTTP server that exposes the course
// assistant via a small JSON API. The server is started by the
// `coursepilot serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KP1729/coursepilot/internal/logging"
	"github.com/KP1729/coursepilot/internal/orchestrator"
	"github.com/KP1729/coursepilot/internal/search"
)

// maxQueryBytes caps the POST /api/query request body. Questions are short;
// anything larger is rejected before JSON decoding.
const maxQueryBytes = 64 << 10

// New constructs a Server from the provided answerer, course lister, and config.
func New(answerer Answerer, courses CourseLister, cfg *Config) (*Server, error) {
	if answerer == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// A query turn can include two LLM calls plus tool execution.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	reg := prometheus.NewRegistry()

	s := &Server{
		answerer: answerer,
		courses:  courses,
		sessions: cfg.Sessions,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: API key not configured, authentication disabled")
	}
	protect := func(h http.Handler) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/query", protect(s.instrument("query", http.HandlerFunc(s.handleQuery))))
	mux.Handle("GET /api/courses", protect(s.instrument("courses", http.HandlerFunc(s.handleCourses))))
	mux.Handle("POST /api/session/clear", protect(s.instrument("session_clear", http.HandlerFunc(s.handleSessionClear))))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleQuery handles POST /api/query. It runs one question-answering turn
// and returns the assistant's answer, cited sources, and the session id to
// use for follow-up questions.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBytes)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	ans, err := s.answerer.Answer(r.Context(), req.Query, req.SessionID)
	elapsed := time.Since(start)

	if err != nil {
		outcome, status, msg := classifyAnswerError(err)
		s.metrics.observeQuery(outcome, elapsed)
		log.Error("query failed",
			slog.String("outcome", outcome),
			slog.Any("error", err),
		)
		http.Error(w, msg, status)
		return
	}

	s.metrics.observeQuery("ok", elapsed)

	resp := queryResponse{
		Answer:    ans.Text,
		Sources:   make([]querySource, 0, len(ans.Sources)),
		SessionID: ans.SessionID,
	}
	for _, src := range ans.Sources {
		resp.Sources = append(resp.Sources, querySource{
			Course: src.CourseTitle,
			Lesson: src.Lesson,
			Link:   src.Link,
		})
	}

	writeJSON(w, http.StatusOK, resp, log)
}

// classifyAnswerError maps an Answer error onto a metrics outcome label,
// an HTTP status, and a client-safe message.
func classifyAnswerError(err error) (outcome string, status int, msg string) {
	switch {
	case errors.Is(err, search.ErrIndexUnavailable):
		return "unavailable", http.StatusServiceUnavailable, "search index unavailable"
	case errors.Is(err, orchestrator.ErrGenerationFailure):
		return "error", http.StatusBadGateway, "answer generation failed"
	default:
		return "error", http.StatusInternalServerError, "internal error"
	}
}

// handleCourses handles GET /api/courses. It returns every ingested course
// with its lesson count, ordered by title.
func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.courses == nil {
		http.Error(w, "course catalog not configured", http.StatusServiceUnavailable)
		return
	}

	summaries, err := s.courses.Courses(r.Context())
	if err != nil {
		log.Error("course listing failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := coursesResponse{
		Total:   len(summaries),
		Courses: make([]courseEntry, 0, len(summaries)),
	}
	for _, c := range summaries {
		resp.Courses = append(resp.Courses, courseEntry{
			Title:      c.Title,
			Link:       c.Link,
			Instructor: c.Instructor,
			Lessons:    c.LessonCount,
		})
	}

	writeJSON(w, http.StatusOK, resp, log)
}

// handleSessionClear handles POST /api/session/clear. It drops the stored
// history of the given conversation so the next query starts fresh.
func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.sessions == nil {
		http.Error(w, "session store not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBytes)

	var req sessionClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	s.sessions.Clear(req.SessionID)
	log.Debug("session cleared", slog.String("session_id", req.SessionID))

	writeJSON(w, http.StatusOK, sessionClearResponse{
		Status:    "cleared",
		SessionID: req.SessionID,
	}, log)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logging.FromContext(r.Context()))
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}
