package index

import (
	"context"
	"testing"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func Test_MemoryIdentity_ResolveBestMatch(t *testing.T) {
	t.Parallel()
	s := NewMemoryIdentityIndex(0.2)
	ctx := context.Background()

	if err := s.UpsertCourse(ctx, CourseRecord{Title: "Intro"}, []float32{1, 0, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertCourse(ctx, CourseRecord{Title: "Advanced"}, []float32{0, 1, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rec, score, ok, err := s.ResolveCourse(ctx, []float32{0.9, 0.1, 0})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if rec.Title != "Intro" {
		t.Errorf("want Intro, got %q", rec.Title)
	}
	if score <= 0 {
		t.Errorf("want positive score, got %f", score)
	}
}

func Test_MemoryIdentity_NoMatchBelowFloor(t *testing.T) {
	t.Parallel()
	s := NewMemoryIdentityIndex(0.9)
	ctx := context.Background()

	if err := s.UpsertCourse(ctx, CourseRecord{Title: "Intro"}, []float32{1, 0, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	_, _, ok, err := s.ResolveCourse(ctx, []float32{0, 1, 0})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ok {
		t.Error("orthogonal query should not resolve above a 0.9 floor")
	}
}

func Test_MemoryIdentity_EmptyIndexResolvesNothing(t *testing.T) {
	t.Parallel()
	s := NewMemoryIdentityIndex(0)

	_, _, ok, err := s.ResolveCourse(context.Background(), []float32{1, 0})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ok {
		t.Error("empty index must report no match")
	}
}

func Test_MemoryIdentity_UpsertReplacesByTitle(t *testing.T) {
	t.Parallel()
	s := NewMemoryIdentityIndex(0)
	ctx := context.Background()

	if err := s.UpsertCourse(ctx, CourseRecord{Title: "Intro", LessonCount: 1}, []float32{1, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertCourse(ctx, CourseRecord{Title: "Intro", LessonCount: 2}, []float32{1, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if s.Len() != 1 {
		t.Fatalf("want 1 record after re-upsert, got %d", s.Len())
	}
	rec, _, ok, err := s.ResolveCourse(ctx, []float32{1, 0})
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}
	if rec.LessonCount != 2 {
		t.Errorf("want replaced record, got LessonCount=%d", rec.LessonCount)
	}
}

// seedContent fills a content index with three chunks across two courses.
func seedContent(t *testing.T, s *MemoryContentIndex) {
	t.Helper()
	recs := []ChunkRecord{
		{ID: "a0", CourseTitle: "Intro", Lesson: intPtr(1), Index: 0, Text: "intro lesson one"},
		{ID: "a1", CourseTitle: "Intro", Lesson: intPtr(2), Index: 1, Text: "intro lesson two"},
		{ID: "b0", CourseTitle: "Advanced", Lesson: intPtr(1), Index: 0, Text: "advanced lesson one"},
	}
	vecs := [][]float32{{1, 0, 0}, {0.8, 0.2, 0}, {0, 0, 1}}
	if err := s.UpsertChunks(context.Background(), recs, vecs); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func Test_MemoryContent_SearchRanksBySimilarity(t *testing.T) {
	t.Parallel()
	s := NewMemoryContentIndex()
	seedContent(t, s)

	got, err := s.Search(context.Background(), []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %d", len(got))
	}
	if got[0].ID != "a0" {
		t.Errorf("want a0 ranked first, got %q", got[0].ID)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("results not in descending score order: %f < %f", got[0].Score, got[1].Score)
	}
}

func Test_MemoryContent_FilterIsHardConstraint(t *testing.T) {
	t.Parallel()
	s := NewMemoryContentIndex()
	seedContent(t, s)
	ctx := context.Background()

	tests := []struct {
		name    string
		filter  *Filter
		wantIDs map[string]bool
	}{
		{"course only", &Filter{CourseTitle: strPtr("Advanced")}, map[string]bool{"b0": true}},
		{"lesson only", &Filter{Lesson: intPtr(1)}, map[string]bool{"a0": true, "b0": true}},
		{"course and lesson", &Filter{CourseTitle: strPtr("Intro"), Lesson: intPtr(2)}, map[string]bool{"a1": true}},
		{"no constraint", nil, map[string]bool{"a0": true, "a1": true, "b0": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := s.Search(ctx, []float32{1, 0, 0}, 10, tt.filter)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("want %d results, got %d", len(tt.wantIDs), len(got))
			}
			for _, rec := range got {
				if !tt.wantIDs[rec.ID] {
					t.Errorf("unexpected result %q for filter %+v", rec.ID, tt.filter)
				}
			}
		})
	}
}

func Test_MemoryContent_FilterExcludesRegardlessOfScore(t *testing.T) {
	t.Parallel()
	s := NewMemoryContentIndex()
	seedContent(t, s)

	// a0 is the perfect match for this query but belongs to Intro.
	got, err := s.Search(context.Background(), []float32{1, 0, 0}, 10, &Filter{CourseTitle: strPtr("Advanced")})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, rec := range got {
		if rec.CourseTitle != "Advanced" {
			t.Errorf("filter leaked record from %q", rec.CourseTitle)
		}
	}
}

func Test_MemoryContent_UpsertReplacesByID(t *testing.T) {
	t.Parallel()
	s := NewMemoryContentIndex()
	ctx := context.Background()

	recs := []ChunkRecord{{ID: "x", CourseTitle: "Intro", Index: 0, Text: "first"}}
	if err := s.UpsertChunks(ctx, recs, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	recs[0].Text = "second"
	if err := s.UpsertChunks(ctx, recs, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	if s.Len() != 1 {
		t.Fatalf("want 1 record, got %d", s.Len())
	}
	got, err := s.Search(ctx, []float32{1, 0}, 1, nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("search: %v (%d results)", err, len(got))
	}
	if got[0].Text != "second" {
		t.Errorf("want replaced text, got %q", got[0].Text)
	}
}

func Test_MemoryContent_MismatchedBatchRejected(t *testing.T) {
	t.Parallel()
	s := NewMemoryContentIndex()

	err := s.UpsertChunks(context.Background(), []ChunkRecord{{ID: "x"}}, nil)
	if err == nil {
		t.Fatal("want error for mismatched records/embeddings")
	}
}
