package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/KP1729/coursepilot/internal/embedder"
	"github.com/KP1729/coursepilot/internal/ingestion"
	"github.com/KP1729/coursepilot/internal/logging"
)

// NewIngestCmd constructs the `coursepilot ingest` command, which runs the
// course document ingestion pipeline to populate the vector indices and the
// course catalog.
func NewIngestCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest course documents into the vector store",
		Long: `Parse and index a folder of course transcript documents.

Each .txt file in the folder is parsed into a course with lessons, chunked,
embedded, and upserted into the Qdrant vector store. Course metadata is
recorded in the local catalog database. Courses already ingested are skipped,
so re-running is safe.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name prefix (default: coursepilot)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  coursepilot ingest --dir ./docs
  COURSEPILOT_DOCS_DIR=./courses coursepilot ingest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if dir == "" {
				dir = getEnvOrDefault("COURSEPILOT_DOCS_DIR", "./docs")
			}

			if err := embedder.ValidateForSearch(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			stack, closeStack, err := buildSearchStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeStack()

			pipeline, err := ingestion.NewPipeline(stack.embedder, stack.identity, stack.content, stack.catalog, &ingestion.Config{
				ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
				ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion", slog.String("dir", dir))

			stats, err := pipeline.IngestFolder(ctx, dir, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int("courses_added", stats.CoursesAdded),
				slog.Int("chunks_added", stats.ChunksAdded),
				slog.Int("skipped", stats.Skipped),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d courses (%d chunks), skipped %d files.\n",
				stats.CoursesAdded, stats.ChunksAdded, stats.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Folder of course documents to ingest (default: $COURSEPILOT_DOCS_DIR or ./docs)")

	return cmd
}
