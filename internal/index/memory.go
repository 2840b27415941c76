package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIdentityIndex is an in-process IdentityIndex using brute-force cosine
// similarity. It backs tests and small local corpora where running Qdrant is
// not worth the setup.
type MemoryIdentityIndex struct {
	// mu guards courses and vectors.
	mu sync.RWMutex

	// courses holds one record per course title.
	courses map[string]CourseRecord

	// vectors holds the title embedding per course title.
	vectors map[string][]float32

	// minScore is the similarity floor for ResolveCourse.
	minScore float32
}

// NewMemoryIdentityIndex constructs an empty in-memory identity index.
// minScore <= 0 selects the default similarity floor.
func NewMemoryIdentityIndex(minScore float32) *MemoryIdentityIndex {
	if minScore <= 0 {
		minScore = defaultMinCourseScore
	}
	return &MemoryIdentityIndex{
		courses:  make(map[string]CourseRecord),
		vectors:  make(map[string][]float32),
		minScore: minScore,
	}
}

// UpsertCourse stores or replaces the identity record keyed by title.
func (s *MemoryIdentityIndex) UpsertCourse(_ context.Context, rec CourseRecord, embedding []float32) error {
	if rec.Title == "" {
		return fmt.Errorf("memory index: course record has empty title")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[rec.Title] = rec
	s.vectors[rec.Title] = embedding
	return nil
}

// ResolveCourse returns the best-scoring stored course, or ok=false when the
// index is empty or the best score is below the floor.
func (s *MemoryIdentityIndex) ResolveCourse(_ context.Context, embedding []float32) (CourseRecord, float32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best CourseRecord
	var bestScore float32 = -2
	for title, vec := range s.vectors {
		if score := cosine(embedding, vec); score > bestScore {
			bestScore = score
			best = s.courses[title]
		}
	}
	if bestScore < s.minScore {
		return CourseRecord{}, 0, false, nil
	}
	return best, bestScore, true, nil
}

// Close is a no-op for the in-memory index.
func (s *MemoryIdentityIndex) Close() error { return nil }

// Len returns the number of stored course identities.
func (s *MemoryIdentityIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses)
}

// MemoryContentIndex is an in-process ContentIndex using brute-force cosine
// similarity with the same hard-filter semantics as the Qdrant backend.
type MemoryContentIndex struct {
	// mu guards recs and vectors.
	mu sync.RWMutex

	// recs holds chunk records keyed by record ID.
	recs map[string]ChunkRecord

	// vectors holds the chunk embedding per record ID.
	vectors map[string][]float32
}

// NewMemoryContentIndex constructs an empty in-memory content index.
func NewMemoryContentIndex() *MemoryContentIndex {
	return &MemoryContentIndex{
		recs:    make(map[string]ChunkRecord),
		vectors: make(map[string][]float32),
	}
}

// UpsertChunks stores or replaces a batch of chunk records keyed by ID.
func (s *MemoryContentIndex) UpsertChunks(_ context.Context, recs []ChunkRecord, embeddings [][]float32) error {
	if len(recs) != len(embeddings) {
		return fmt.Errorf("memory index: %d records but %d embeddings", len(recs), len(embeddings))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("memory index: chunk record %d has empty ID", i)
		}
		s.recs[rec.ID] = rec
		s.vectors[rec.ID] = embeddings[i]
	}
	return nil
}

// Search scores every record passing the filter and returns the top k by
// descending similarity. Filtering happens before ranking: excluded records
// never appear regardless of score.
func (s *MemoryContentIndex) Search(_ context.Context, embedding []float32, k int, f *Filter) ([]ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ChunkRecord
	for id, rec := range s.recs {
		if !matches(f, rec) {
			continue
		}
		rec.Score = cosine(embedding, s.vectors[id])
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		// Deterministic order for equal scores.
		return out[i].ID < out[j].ID
	})

	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Close is a no-op for the in-memory index.
func (s *MemoryContentIndex) Close() error { return nil }

// Len returns the number of stored chunk records.
func (s *MemoryContentIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// matches reports whether rec passes the filter conjunction.
func matches(f *Filter, rec ChunkRecord) bool {
	if f == nil {
		return true
	}
	if f.CourseTitle != nil && rec.CourseTitle != *f.CourseTitle {
		return false
	}
	if f.Lesson != nil {
		if rec.Lesson == nil || *rec.Lesson != *f.Lesson {
			return false
		}
	}
	return true
}

// cosine returns the cosine similarity of a and b, or 0 when either vector
// is empty or zero-length in magnitude.
func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
