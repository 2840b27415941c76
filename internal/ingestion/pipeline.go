// Package ingestion implements the course document ingestion pipeline.
// It walks a folder of course transcript files, parses each into a course
// with lessons, chunks the lesson text, embeds the chunks, and upserts the
// results into the identity and content indices. Courses already present in
// the catalog are skipped so re-running ingestion is idempotent.
// This pipeline is invoked by the `coursepilot ingest` CLI command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KP1729/coursepilot/internal/course"
	"github.com/KP1729/coursepilot/internal/index"
	"github.com/KP1729/coursepilot/internal/logging"
)

// Registrar records ingested courses and answers duplicate checks.
// *catalog.Catalog satisfies it.
type Registrar interface {
	// AddCourse registers a course atomically, returning added=false when
	// the title is already present.
	AddCourse(ctx context.Context, crs *course.Course, chunkCount int) (bool, error)
	// RemoveCourse unregisters a course. Unknown titles are a no-op.
	RemoveCourse(ctx context.Context, title string) error
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per content chunk.
	// Defaults to 800 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters carried between consecutive
	// chunks. Defaults to 100 if zero.
	ChunkOverlap int
}

// Stats summarizes one ingestion run.
type Stats struct {
	// CoursesAdded is the number of new courses indexed.
	CoursesAdded int
	// ChunksAdded is the total number of content chunks indexed.
	ChunksAdded int
	// Skipped is the number of files skipped (duplicates and malformed).
	Skipped int
}

// Pipeline orchestrates the parse → dedup → chunk → embed → upsert flow
// for a folder of course documents.
type Pipeline struct {
	embedder  index.Embedder
	identity  index.IdentityIndex
	content   index.ContentIndex
	registrar Registrar
	chunker   *course.Chunker
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder index.Embedder, identity index.IdentityIndex, content index.ContentIndex, registrar Registrar, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if identity == nil {
		return nil, fmt.Errorf("ingestion: identity index must not be nil")
	}
	if content == nil {
		return nil, fmt.Errorf("ingestion: content index must not be nil")
	}
	if registrar == nil {
		return nil, fmt.Errorf("ingestion: registrar must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	chunker := course.NewChunker(&course.ChunkerConfig{
		Size:    cfg.ChunkSize,
		Overlap: cfg.ChunkOverlap,
	})

	return &Pipeline{
		embedder:  embedder,
		identity:  identity,
		content:   content,
		registrar: registrar,
		chunker:   chunker,
	}, nil
}

// IngestFolder ingests every .txt file directly inside dir, in lexical
// order. Malformed documents are skipped with a log line; processing
// continues with the remaining files. Duplicate course titles are skipped
// without re-indexing. Progress is reported via the optional callback.
func (p *Pipeline) IngestFolder(ctx context.Context, dir string, progress func(msg string)) (*Stats, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: reading %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	stats := &Stats{}
	for _, path := range files {
		added, chunks, err := p.ingestFile(ctx, path)
		if errors.Is(err, course.ErrMalformedDocument) {
			log.Warn("skipping malformed course document",
				slog.String("file", path),
				slog.Any("error", err),
			)
			stats.Skipped++
			continue
		}
		if err != nil {
			return stats, err
		}
		if !added {
			progress(fmt.Sprintf("skipping %s: course already ingested", filepath.Base(path)))
			stats.Skipped++
			continue
		}
		stats.CoursesAdded++
		stats.ChunksAdded += chunks
		progress(fmt.Sprintf("ingested %s (%d chunks)", filepath.Base(path), chunks))
	}
	return stats, nil
}

// ingestFile parses one course file and indexes it. The course becomes
// query-visible only after identity record, content chunks, and catalog
// entry have all been written.
func (p *Pipeline) ingestFile(ctx context.Context, path string) (added bool, chunkCount int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, 0, fmt.Errorf("ingestion: reading %s: %w", path, err)
	}

	crs, chunks, err := course.Parse(string(raw), p.chunker)
	if err != nil {
		return false, 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	added, err = p.registrar.AddCourse(ctx, crs, len(chunks))
	if err != nil {
		return false, 0, fmt.Errorf("ingestion: registering %s: %w", crs.Title, err)
	}
	if !added {
		return false, 0, nil
	}

	if err := p.indexCourse(ctx, crs, chunks); err != nil {
		// Unregister the course again so a re-run retries it instead of
		// skipping it as already ingested.
		if rerr := p.registrar.RemoveCourse(ctx, crs.Title); rerr != nil {
			logging.FromContext(ctx).Error("unregistering course after index failure",
				slog.String("course", crs.Title),
				slog.Any("error", rerr),
			)
		}
		return false, 0, err
	}
	return true, len(chunks), nil
}

// indexCourse writes the identity record and the content chunks.
func (p *Pipeline) indexCourse(ctx context.Context, crs *course.Course, chunks []course.Chunk) error {
	// The course title embedding drives fuzzy course-name resolution.
	titleVecs, err := p.embedder.Embed(ctx, []string{crs.Title})
	if err != nil {
		return fmt.Errorf("ingestion: embedding title %q: %w", crs.Title, err)
	}
	if len(titleVecs) == 0 {
		return fmt.Errorf("ingestion: embedder returned no vector for title %q", crs.Title)
	}

	lessonCount := 0
	for _, l := range crs.Lessons {
		if l.Number != nil {
			lessonCount++
		}
	}
	rec := index.CourseRecord{
		Title:       crs.Title,
		Link:        crs.Link,
		Instructor:  crs.Instructor,
		LessonCount: lessonCount,
	}
	if err := p.identity.UpsertCourse(ctx, rec, titleVecs[0]); err != nil {
		return fmt.Errorf("ingestion: upserting course %q: %w", crs.Title, err)
	}

	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("ingestion: embedding chunks for %q: %w", crs.Title, err)
	}

	recs := make([]index.ChunkRecord, 0, len(chunks))
	for _, c := range chunks {
		recs = append(recs, index.ChunkRecord{
			ID:          chunkID(crs.Title, c.Index),
			CourseTitle: c.CourseTitle,
			Lesson:      c.Lesson,
			Index:       c.Index,
			Text:        c.Text,
		})
	}
	if err := p.content.UpsertChunks(ctx, recs, embeddings); err != nil {
		return fmt.Errorf("ingestion: upserting chunks for %q: %w", crs.Title, err)
	}
	return nil
}

// chunkID generates a deterministic ID for a content chunk from its course
// title and position.
func chunkID(courseTitle string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", courseTitle, chunkIndex)
}
