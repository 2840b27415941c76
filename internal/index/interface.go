// Package index defines the two vector indices behind course search: an
// identity index holding one record per course (used to resolve free-text
// course references to a canonical title) and a content index holding one
// record per chunk (used for filtered semantic search). Concrete backends
// (Qdrant, in-memory) satisfy these interfaces; the similarity math itself
// belongs to the backend, this package owns only the record schema and
// filter construction.
package index

import (
	"context"
)

// CourseRecord is an identity-index entry: one per course, keyed and
// embedded on the title, carrying the full course metadata so a resolved
// match can drive filter construction without a second lookup.
type CourseRecord struct {
	// Title is the canonical course title and the record key.
	Title string

	// Link is the optional course URL.
	Link string

	// Instructor is the optional instructor name.
	Instructor string

	// LessonCount is the number of lessons the course was ingested with.
	LessonCount int
}

// ChunkRecord is a content-index entry: one per chunk.
type ChunkRecord struct {
	// ID is the deterministic record identifier derived from the course
	// title and chunk index.
	ID string

	// CourseTitle is the owning course's canonical title.
	CourseTitle string

	// Lesson is the owning lesson number, or nil for chunks from an
	// unnumbered course body.
	Lesson *int

	// Index is the chunk's position within its course.
	Index int

	// Text is the enriched chunk text.
	Text string

	// Score is the similarity score assigned at query time (0.0–1.0).
	// Zero on records that were never retrieved.
	Score float32
}

// Filter is an optional conjunction of constraints applied to content
// search as a hard pre-filter, never a re-rank: excluded records are not
// returned regardless of similarity. A nil field imposes no constraint;
// both fields present combine by AND.
type Filter struct {
	// CourseTitle, when non-nil, restricts results to the named course.
	CourseTitle *string

	// Lesson, when non-nil, restricts results to the given lesson number.
	Lesson *int
}

// Embedder converts text into dense vector embeddings. Implementations must
// be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// IdentityIndex resolves free-text course references against the stored
// course identities. Implementations must be safe for concurrent use.
type IdentityIndex interface {
	// UpsertCourse stores or replaces the identity record for one course.
	// The embedding is the vector of the course title text.
	UpsertCourse(ctx context.Context, rec CourseRecord, embedding []float32) error

	// ResolveCourse returns the single best-matching course record for the
	// query embedding. ok is false — with no error — when the index is
	// empty or the best match falls below the backend's similarity floor.
	ResolveCourse(ctx context.Context, embedding []float32) (rec CourseRecord, score float32, ok bool, err error)

	// Close releases backend resources.
	Close() error
}

// ContentIndex stores chunk records and serves filtered similarity search.
// Implementations must be safe for concurrent use.
type ContentIndex interface {
	// UpsertChunks stores or replaces a batch of chunk records. embeddings
	// must be parallel to recs.
	UpsertChunks(ctx context.Context, recs []ChunkRecord, embeddings [][]float32) error

	// Search returns up to k records ranked by descending similarity,
	// restricted to those matching the filter. A nil filter matches all.
	Search(ctx context.Context, embedding []float32, k int, f *Filter) ([]ChunkRecord, error)

	// Close releases backend resources.
	Close() error
}
