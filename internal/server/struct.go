package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/KP1729/coursepilot/internal/catalog"
	"github.com/KP1729/coursepilot/internal/orchestrator"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for a full LLM round trip including tool calls.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Sessions backs POST /api/session/clear. If nil, the route returns 503.
	Sessions SessionClearer
}

// Answerer runs one question-answering turn. *orchestrator.Orchestrator
// satisfies it; tests inject a fake.
type Answerer interface {
	// Answer resolves query within the given session and returns the
	// assistant's reply with its cited sources.
	Answer(ctx context.Context, query, sessionID string) (*orchestrator.Answer, error)
}

// CourseLister returns the set of ingested courses. *catalog.Catalog
// satisfies it.
type CourseLister interface {
	Courses(ctx context.Context) ([]catalog.CourseSummary, error)
}

// SessionClearer drops the stored history of a conversation.
// *session.Store satisfies it.
type SessionClearer interface {
	Clear(sessionID string)
}

// Server is the HTTP server that exposes the course assistant API.
type Server struct {
	// answerer handles all POST /api/query turns.
	answerer Answerer
	// courses backs GET /api/courses.
	courses CourseLister
	// sessions backs POST /api/session/clear.
	sessions SessionClearer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds this server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
	// SessionID resumes an existing conversation. Empty starts a new one.
	SessionID string `json:"session_id,omitempty"`
}

// querySource is one cited source in a query response.
type querySource struct {
	// Course is the exact course title.
	Course string `json:"course"`
	// Lesson is the lesson number, omitted for course-level material.
	Lesson *int `json:"lesson,omitempty"`
	// Link is the lesson or course URL when one is known.
	Link string `json:"link,omitempty"`
}

// queryResponse is the JSON body returned by POST /api/query.
type queryResponse struct {
	// Answer is the assistant's reply text.
	Answer string `json:"answer"`
	// Sources lists the course material the answer drew on.
	Sources []querySource `json:"sources"`
	// SessionID identifies the conversation for follow-up turns.
	SessionID string `json:"session_id"`
}

// sessionClearRequest is the JSON body for POST /api/session/clear.
type sessionClearRequest struct {
	// SessionID is the conversation whose history should be dropped.
	SessionID string `json:"session_id"`
}

// sessionClearResponse is the JSON body returned by POST /api/session/clear.
type sessionClearResponse struct {
	// Status is always "cleared" on success.
	Status string `json:"status"`
	// SessionID echoes the cleared conversation id.
	SessionID string `json:"session_id"`
}

// courseEntry is one course in the GET /api/courses response.
type courseEntry struct {
	// Title is the exact course title.
	Title string `json:"title"`
	// Link is the course URL, if any.
	Link string `json:"link,omitempty"`
	// Instructor is the course instructor, if any.
	Instructor string `json:"instructor,omitempty"`
	// Lessons is the number of numbered lessons in the course.
	Lessons int `json:"lessons"`
}

// coursesResponse is the JSON body returned by GET /api/courses.
type coursesResponse struct {
	// Total is the number of ingested courses.
	Total int `json:"total"`
	// Courses lists every ingested course, ordered by title.
	Courses []courseEntry `json:"courses"`
}
