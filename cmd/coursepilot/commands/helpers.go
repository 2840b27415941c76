package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/KP1729/coursepilot/internal/catalog"
	"github.com/KP1729/coursepilot/internal/embedder"
	"github.com/KP1729/coursepilot/internal/index"
	"github.com/KP1729/coursepilot/internal/search"
)

// searchStack bundles the retrieval dependencies shared by the ask, ingest,
// and serve commands: the embedder, the two Qdrant-backed indices, and the
// course catalog.
type searchStack struct {
	embedder index.Embedder
	identity *index.QdrantIdentityIndex
	content  *index.QdrantContentIndex
	catalog  *catalog.Catalog
}

// buildSearchStack connects to Qdrant and the catalog database using the
// QDRANT_* and COURSEPILOT_* environment variables. Callers must invoke
// cleanup when done.
func buildSearchStack(ctx context.Context, log *slog.Logger) (stack *searchStack, cleanup func(), err error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	prefix := getEnvOrDefault("QDRANT_COLLECTION", "coursepilot")
	apiKey := os.Getenv("QDRANT_API_KEY")
	useTLS := os.Getenv("QDRANT_TLS") == "true"
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

	identity, err := index.NewQdrantIdentityIndex(ctx, &index.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: prefix + "-courses",
		VectorSize: vectorSize,
		APIKey:     apiKey,
		UseTLS:     useTLS,
		MinScore:   getEnvFloat32("SEARCH_MIN_COURSE_SCORE", 0),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	content, err := index.NewQdrantContentIndex(ctx, &index.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: prefix + "-chunks",
		VectorSize: vectorSize,
		APIKey:     apiKey,
		UseTLS:     useTLS,
	})
	if err != nil {
		identity.Close()
		return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	dbPath := os.Getenv("COURSEPILOT_CATALOG_DB")
	if dbPath == "" {
		dbPath, err = catalog.DefaultDBPath()
		if err != nil {
			identity.Close()
			content.Close()
			return nil, nil, fmt.Errorf("failed to resolve catalog path: %w", err)
		}
	}
	cat, err := catalog.Open(dbPath)
	if err != nil {
		identity.Close()
		content.Close()
		return nil, nil, fmt.Errorf("failed to open catalog at %s: %w", dbPath, err)
	}

	log.Info("search stack ready",
		slog.String("qdrant", fmt.Sprintf("%s:%d", host, port)),
		slog.String("catalog", dbPath),
	)

	stack = &searchStack{
		embedder: emb,
		identity: identity,
		content:  content,
		catalog:  cat,
	}
	cleanup = func() {
		identity.Close()
		content.Close()
		_ = cat.Close()
	}
	return stack, cleanup, nil
}

// newRetriever builds the two-stage retriever on top of the stack, with the
// catalog serving citation links.
func (s *searchStack) newRetriever() (*search.Retriever, error) {
	return search.NewRetriever(s.embedder, s.identity, s.content,
		search.WithMaxResults(getEnvInt("SEARCH_MAX_RESULTS", 0)),
		search.WithLinkResolver(s.catalog),
	)
}

// getEnvOrDefault returns the env var value or fallback if unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as an int, or fallback on absence or
// parse failure.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat32 returns the env var parsed as a float32, or fallback on
// absence or parse failure.
func getEnvFloat32(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}
