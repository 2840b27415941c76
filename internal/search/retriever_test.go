package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/KP1729/coursepilot/internal/index"
)

// fakeEmbedder returns a fixed vector per known text and a zero-ish default
// for everything else, so similarity outcomes are fully deterministic.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, []float32{0.01, 0.01, 0.01})
	}
	return out, nil
}

// flakyContentIndex fails the first failures calls, then delegates to the
// in-memory index.
type flakyContentIndex struct {
	*index.MemoryContentIndex
	failures int
	calls    int
}

func (f *flakyContentIndex) Search(ctx context.Context, embedding []float32, k int, flt *index.Filter) ([]index.ChunkRecord, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("connection refused")
	}
	return f.MemoryContentIndex.Search(ctx, embedding, k, flt)
}

// staticLinks resolves lesson links from a fixed table.
type staticLinks struct {
	lessons map[string]string
}

func (s *staticLinks) LessonLink(_ context.Context, courseTitle string, lesson int) (string, error) {
	link, ok := s.lessons[fmt.Sprintf("%s/%d", courseTitle, lesson)]
	if !ok {
		return "", nil
	}
	return link, nil
}

func (s *staticLinks) CourseLink(_ context.Context, courseTitle string) (string, error) {
	return "", nil
}

func intPtr(n int) *int { return &n }

// seedIndices builds an identity and a content index with two courses.
// "Intro to Go" has lessons 1 and 2; "Databases" has lesson 1.
func seedIndices(t *testing.T, emb *fakeEmbedder) (*index.MemoryIdentityIndex, *index.MemoryContentIndex) {
	t.Helper()
	ctx := context.Background()

	emb.vectors = map[string][]float32{
		"Intro to Go":       {1, 0, 0},
		"Databases":         {0, 1, 0},
		"go course":         {0.9, 0.1, 0},
		"unrelated gibber":  {0, 0, 1},
		"what is a struct?": {0.8, 0.2, 0},
	}

	identity := index.NewMemoryIdentityIndex(0.35)
	for _, title := range []string{"Intro to Go", "Databases"} {
		err := identity.UpsertCourse(ctx, index.CourseRecord{Title: title}, emb.vectors[title])
		if err != nil {
			t.Fatalf("seeding identity index: %v", err)
		}
	}

	content := index.NewMemoryContentIndex()
	recs := []index.ChunkRecord{
		{ID: "go-0", CourseTitle: "Intro to Go", Lesson: intPtr(1), Index: 0, Text: "Structs group fields."},
		{ID: "go-1", CourseTitle: "Intro to Go", Lesson: intPtr(2), Index: 1, Text: "Methods attach behavior."},
		{ID: "db-0", CourseTitle: "Databases", Lesson: intPtr(1), Index: 0, Text: "Indexes speed up lookups."},
	}
	vecs := [][]float32{
		{0.85, 0.15, 0},
		{0.7, 0.3, 0},
		{0.1, 0.9, 0},
	}
	if err := content.UpsertChunks(ctx, recs, vecs); err != nil {
		t.Fatalf("seeding content index: %v", err)
	}
	return identity, content
}

func Test_Retriever_ResolvesPartialCourseName(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	identity, content := seedIndices(t, emb)
	r, err := NewRetriever(emb, identity, content)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := r.Search(context.Background(), "what is a struct?", "go course", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results, got none")
	}
	for _, res := range results {
		if res.Chunk.CourseTitle != "Intro to Go" {
			t.Errorf("result from course %q, want %q", res.Chunk.CourseTitle, "Intro to Go")
		}
	}
}

func Test_Retriever_LessonFilterNarrowsResults(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	identity, content := seedIndices(t, emb)
	r, err := NewRetriever(emb, identity, content)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := r.Search(context.Background(), "what is a struct?", "go course", intPtr(2))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if got := results[0].Chunk.ID; got != "go-1" {
		t.Errorf("got chunk %q, want go-1", got)
	}
}

func Test_Retriever_UnknownCourse(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	identity, content := seedIndices(t, emb)
	r, err := NewRetriever(emb, identity, content)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	_, err = r.Search(context.Background(), "anything", "unrelated gibber", nil)
	if !errors.Is(err, ErrUnknownCourse) {
		t.Fatalf("got %v, want ErrUnknownCourse", err)
	}
}

func Test_Retriever_NoResults(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	identity, content := seedIndices(t, emb)
	r, err := NewRetriever(emb, identity, content)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	// Lesson 7 exists in no course, so the filtered search is empty.
	_, err = r.Search(context.Background(), "what is a struct?", "go course", intPtr(7))
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("got %v, want ErrNoResults", err)
	}
}

func Test_Retriever_RetriesOnceThenSucceeds(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	identity, content := seedIndices(t, emb)
	flaky := &flakyContentIndex{MemoryContentIndex: content, failures: 1}
	r, err := NewRetriever(emb, identity, flaky, WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := r.Search(context.Background(), "what is a struct?", "", nil)
	if err != nil {
		t.Fatalf("Search after transient failure: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results after retry, got none")
	}
	if flaky.calls != 2 {
		t.Errorf("backend called %d times, want 2", flaky.calls)
	}
}

func Test_Retriever_IndexUnavailableAfterRetry(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	identity, content := seedIndices(t, emb)
	flaky := &flakyContentIndex{MemoryContentIndex: content, failures: 2}
	r, err := NewRetriever(emb, identity, flaky, WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	_, err = r.Search(context.Background(), "what is a struct?", "", nil)
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("got %v, want ErrIndexUnavailable", err)
	}
	if flaky.calls != 2 {
		t.Errorf("backend called %d times, want exactly 2", flaky.calls)
	}
}

// flakyEmbedder fails the first failures calls, then delegates to the
// deterministic fake.
type flakyEmbedder struct {
	*fakeEmbedder
	failures int
	calls    int
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("connection refused")
	}
	return f.fakeEmbedder.Embed(ctx, texts)
}

func Test_Retriever_EmbedderRetriesOnceThenSucceeds(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	identity, content := seedIndices(t, emb)
	flaky := &flakyEmbedder{fakeEmbedder: emb, failures: 1}
	r, err := NewRetriever(flaky, identity, content, WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := r.Search(context.Background(), "what is a struct?", "", nil)
	if err != nil {
		t.Fatalf("Search after transient embed failure: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results after retry, got none")
	}
	if flaky.calls != 2 {
		t.Errorf("embedder called %d times, want 2", flaky.calls)
	}
}

func Test_Retriever_EmbedderDownIsIndexUnavailable(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	identity, content := seedIndices(t, emb)
	flaky := &flakyEmbedder{fakeEmbedder: emb, failures: 2}
	r, err := NewRetriever(flaky, identity, content, WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	_, err = r.Search(context.Background(), "what is a struct?", "", nil)
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("got %v, want ErrIndexUnavailable", err)
	}
	if flaky.calls != 2 {
		t.Errorf("embedder called %d times, want exactly 2", flaky.calls)
	}
}

func Test_Retriever_MaxResultsCap(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	identity, content := seedIndices(t, emb)
	r, err := NewRetriever(emb, identity, content, WithMaxResults(1))
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := r.Search(context.Background(), "what is a struct?", "", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1 with cap applied", len(results))
	}
}

func Test_Retriever_SourcesCarryLessonLinks(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	identity, content := seedIndices(t, emb)
	links := &staticLinks{lessons: map[string]string{
		"Intro to Go/1": "https://example.com/go/lesson-1",
	}}
	r, err := NewRetriever(emb, identity, content, WithLinkResolver(links))
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := r.Search(context.Background(), "what is a struct?", "go course", intPtr(1))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	src := results[0].Source
	if src.CourseTitle != "Intro to Go" || src.Lesson == nil || *src.Lesson != 1 {
		t.Errorf("unexpected source %+v", src)
	}
	if src.Link != "https://example.com/go/lesson-1" {
		t.Errorf("got link %q, want lesson link", src.Link)
	}
}
