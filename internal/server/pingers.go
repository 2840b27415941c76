package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// LLMPinger probes an LLM backend by sending a minimal single-message generate
// request. It satisfies the Pinger interface and is used by GET /api/ready.
// Note that each probe consumes a small number of tokens on metered backends.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.ToolCallingChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a one-word generate request to the backend.
// Returns nil if the backend responds, or a descriptive error otherwise.
func (p *LLMPinger) Ping(ctx context.Context) error {
	msgs := []*schema.Message{
		schema.UserMessage("ping"),
	}
	resp, err := p.model.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// dbPinger is the probe surface shared by the vector indices and the course
// catalog.
type dbPinger interface {
	Ping(ctx context.Context) error
}

// QdrantPinger probes a Qdrant-backed index, which forwards to the Qdrant
// HealthCheck RPC. It satisfies the Pinger interface and is used by
// GET /api/ready.
type QdrantPinger struct {
	index dbPinger
}

// NewQdrantPinger constructs a QdrantPinger for the given index.
func NewQdrantPinger(index dbPinger) *QdrantPinger {
	return &QdrantPinger{index: index}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping checks that the Qdrant instance backing the index is reachable.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if err := p.index.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// CatalogPinger probes the course catalog database connection.
// It satisfies the Pinger interface and is used by GET /api/ready.
type CatalogPinger struct {
	db dbPinger
}

// NewCatalogPinger constructs a CatalogPinger for the given catalog.
func NewCatalogPinger(db dbPinger) *CatalogPinger {
	return &CatalogPinger{db: db}
}

// Name returns the dependency label used in readiness responses.
func (p *CatalogPinger) Name() string { return "catalog" }

// Ping verifies the catalog database is reachable.
func (p *CatalogPinger) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}
