// Package search implements two-stage retrieval over the course indices:
// an optional fuzzy course-name resolution against the identity index,
// followed by a filtered similarity search against the content index.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/KP1729/coursepilot/internal/index"
)

// Source identifies where a retrieved chunk came from, in a form suitable
// for citation back to the user.
type Source struct {
	// CourseTitle is the exact title of the course the chunk belongs to.
	CourseTitle string

	// Lesson is the lesson number, or nil for course-level material.
	Lesson *int

	// Link is the lesson (or course) URL when one is known, else empty.
	Link string
}

// Result pairs a retrieved chunk with its citation source.
type Result struct {
	Chunk  index.ChunkRecord
	Source Source
}

// LinkResolver looks up the URL for a lesson or course. A nil resolver is
// valid; sources then carry no links.
type LinkResolver interface {
	// LessonLink returns the URL of the given lesson within a course.
	// An empty string with nil error means no link is recorded.
	LessonLink(ctx context.Context, courseTitle string, lesson int) (string, error)

	// CourseLink returns the URL of the course itself.
	CourseLink(ctx context.Context, courseTitle string) (string, error)
}

// Retriever resolves loose course references and runs filtered semantic
// search over course content. Safe for concurrent use.
type Retriever struct {
	embedder index.Embedder
	identity index.IdentityIndex
	content  index.ContentIndex
	links    LinkResolver

	// maxResults is the result cap applied to every search.
	maxResults int

	// retryDelay is the pause before the single retry on backend failure.
	retryDelay time.Duration
}

// Option customizes a Retriever.
type Option func(*Retriever)

// WithMaxResults overrides the default result cap of 5.
func WithMaxResults(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.maxResults = n
		}
	}
}

// WithLinkResolver attaches a resolver used to populate Source links.
func WithLinkResolver(lr LinkResolver) Option {
	return func(r *Retriever) { r.links = lr }
}

// WithRetryDelay overrides the pause before the single backend retry.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Retriever) { r.retryDelay = d }
}

// NewRetriever constructs a Retriever over the given embedder and indices.
func NewRetriever(embedder index.Embedder, identity index.IdentityIndex, content index.ContentIndex, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("search: embedder must not be nil")
	}
	if identity == nil {
		return nil, fmt.Errorf("search: identity index must not be nil")
	}
	if content == nil {
		return nil, fmt.Errorf("search: content index must not be nil")
	}
	r := &Retriever{
		embedder:   embedder,
		identity:   identity,
		content:    content,
		maxResults: 5,
		retryDelay: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Search runs the two-stage retrieval. courseRef may be a partial or
// informal course name; when non-empty it is resolved against the identity
// index and the content search is filtered to the resolved course.
// lessonNumber, when non-nil, further restricts results to that lesson.
//
// Returns ErrUnknownCourse when courseRef resolves to nothing acceptable,
// ErrNoResults when the filtered search is empty, and ErrIndexUnavailable
// when the backend stays unreachable after one retry.
func (r *Retriever) Search(ctx context.Context, query, courseRef string, lessonNumber *int) ([]Result, error) {
	queryVec, err := r.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	var filter *index.Filter
	if courseRef != "" || lessonNumber != nil {
		filter = &index.Filter{Lesson: lessonNumber}
	}
	if courseRef != "" {
		title, err := r.resolveCourse(ctx, courseRef)
		if err != nil {
			return nil, err
		}
		filter.CourseTitle = &title
	}

	chunks, err := r.searchContent(ctx, queryVec, filter)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoResults
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, Result{
			Chunk:  c,
			Source: r.sourceFor(ctx, c),
		})
	}
	return results, nil
}

// ResolveCourseTitle resolves a loose course reference to the exact title
// of the best-matching indexed course. Returns ErrUnknownCourse when no
// course matches with acceptable confidence.
func (r *Retriever) ResolveCourseTitle(ctx context.Context, courseRef string) (string, error) {
	return r.resolveCourse(ctx, courseRef)
}

// resolveCourse embeds the loose course reference and asks the identity
// index for the best match.
func (r *Retriever) resolveCourse(ctx context.Context, courseRef string) (string, error) {
	refVec, err := r.embed(ctx, courseRef)
	if err != nil {
		return "", err
	}

	var (
		rec index.CourseRecord
		ok  bool
	)
	err = r.withRetry(ctx, func() error {
		var inner error
		rec, _, ok, inner = r.identity.ResolveCourse(ctx, refVec)
		return inner
	})
	if err != nil {
		return "", fmt.Errorf("%w: resolving course %q: %v", ErrIndexUnavailable, courseRef, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCourse, courseRef)
	}
	return rec.Title, nil
}

// embed turns text into its vector, retrying the embedding call like any
// other backend call. A dead embedder makes retrieval unavailable, so
// failures carry ErrIndexUnavailable.
func (r *Retriever) embed(ctx context.Context, text string) ([]float32, error) {
	var embeddings [][]float32
	err := r.withRetry(ctx, func() error {
		var inner error
		embeddings, inner = r.embedder.Embed(ctx, []string{text})
		return inner
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding %q: %v", ErrIndexUnavailable, text, err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("search: embedder returned no vector for %q", text)
	}
	return embeddings[0], nil
}

func (r *Retriever) searchContent(ctx context.Context, queryVec []float32, filter *index.Filter) ([]index.ChunkRecord, error) {
	var chunks []index.ChunkRecord
	err := r.withRetry(ctx, func() error {
		var inner error
		chunks, inner = r.content.Search(ctx, queryVec, r.maxResults, filter)
		return inner
	})
	if err != nil {
		return nil, fmt.Errorf("%w: content search: %v", ErrIndexUnavailable, err)
	}
	return chunks, nil
}

// withRetry runs fn and, on failure, retries exactly once after a short
// pause, honoring context cancellation.
func (r *Retriever) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.retryDelay):
	}
	return fn()
}

// sourceFor builds the citation for a chunk, resolving the lesson or
// course link when a resolver is configured. Link lookup failures degrade
// to a missing link rather than failing the search.
func (r *Retriever) sourceFor(ctx context.Context, c index.ChunkRecord) Source {
	s := Source{CourseTitle: c.CourseTitle, Lesson: c.Lesson}
	if r.links == nil {
		return s
	}
	if c.Lesson != nil {
		if link, err := r.links.LessonLink(ctx, c.CourseTitle, *c.Lesson); err == nil {
			s.Link = link
		}
		return s
	}
	if link, err := r.links.CourseLink(ctx, c.CourseTitle); err == nil {
		s.Link = link
	}
	return s
}
