package index

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// defaultMinCourseScore is the similarity floor below which a top-1 identity
// match is treated as "no match" rather than a resolution.
const defaultMinCourseScore = 0.35

// QdrantConfig holds connection parameters for the Qdrant-backed indices.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MinScore is the similarity floor for identity resolution.
	// Defaults to defaultMinCourseScore if zero. Ignored by the content index.
	MinScore float32
}

// qdrantBase holds the client and collection plumbing shared by the two
// Qdrant-backed indices.
type qdrantBase struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// newQdrantBase connects to Qdrant and ensures the target collection exists.
func newQdrantBase(ctx context.Context, cfg *QdrantConfig) (*qdrantBase, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	b := &qdrantBase{client: client, cfg: cfg}
	if err := b.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (b *qdrantBase) ensureCollection(ctx context.Context) error {
	exists, err := b.client.CollectionExists(ctx, b.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     b.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", b.cfg.Collection, err)
	}
	return nil
}

// Ping probes the Qdrant instance via its native HealthCheck RPC.
func (b *qdrantBase) Ping(ctx context.Context) error {
	if _, err := b.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (b *qdrantBase) Close() error {
	return b.client.Close()
}

// QdrantIdentityIndex implements IdentityIndex on a Qdrant collection with
// one point per course, embedded on the title text.
type QdrantIdentityIndex struct {
	*qdrantBase

	// minScore is the similarity floor for ResolveCourse.
	minScore float32
}

// NewQdrantIdentityIndex creates the identity index, ensuring its collection
// exists.
func NewQdrantIdentityIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIdentityIndex, error) {
	base, err := newQdrantBase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = defaultMinCourseScore
	}
	return &QdrantIdentityIndex{qdrantBase: base, minScore: minScore}, nil
}

// UpsertCourse stores or replaces the identity record for one course.
// The point ID is derived from the title so re-ingesting a course replaces
// its record instead of duplicating it.
func (s *QdrantIdentityIndex) UpsertCourse(ctx context.Context, rec CourseRecord, embedding []float32) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(pointID(rec.Title)),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]any{
			"title":        rec.Title,
			"link":         rec.Link,
			"instructor":   rec.Instructor,
			"lesson_count": rec.LessonCount,
		}),
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("qdrant: identity upsert failed: %w", err)
	}
	return nil
}

// ResolveCourse runs a top-1 similarity search over the course identities.
// Matches below the similarity floor are reported as "no match", not errors.
func (s *QdrantIdentityIndex) ResolveCourse(ctx context.Context, embedding []float32) (CourseRecord, float32, bool, error) {
	limit := uint64(1)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &s.minScore,
	})
	if err != nil {
		return CourseRecord{}, 0, false, fmt.Errorf("qdrant: identity query failed: %w", err)
	}
	if len(results) == 0 {
		return CourseRecord{}, 0, false, nil
	}

	r := results[0]
	rec := CourseRecord{}
	if p := r.Payload; p != nil {
		if v, ok := p["title"]; ok {
			rec.Title = v.GetStringValue()
		}
		if v, ok := p["link"]; ok {
			rec.Link = v.GetStringValue()
		}
		if v, ok := p["instructor"]; ok {
			rec.Instructor = v.GetStringValue()
		}
		if v, ok := p["lesson_count"]; ok {
			rec.LessonCount = int(v.GetIntegerValue())
		}
	}
	return rec, r.Score, true, nil
}

// QdrantContentIndex implements ContentIndex on a Qdrant collection with one
// point per chunk, supporting hard metadata filters on course and lesson.
type QdrantContentIndex struct {
	*qdrantBase
}

// NewQdrantContentIndex creates the content index, ensuring its collection
// exists.
func NewQdrantContentIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantContentIndex, error) {
	base, err := newQdrantBase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &QdrantContentIndex{qdrantBase: base}, nil
}

// UpsertChunks stores or replaces a batch of chunk records. embeddings must
// be parallel to recs.
func (s *QdrantContentIndex) UpsertChunks(ctx context.Context, recs []ChunkRecord, embeddings [][]float32) error {
	if len(recs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d records but %d embeddings", len(recs), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(recs))
	for i, rec := range recs {
		payload := map[string]any{
			"text":         rec.Text,
			"course_title": rec.CourseTitle,
			"chunk_index":  rec.Index,
		}
		if rec.Lesson != nil {
			payload["lesson_number"] = *rec.Lesson
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(rec.ID)),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: content upsert failed: %w", err)
	}
	return nil
}

// Search performs a cosine similarity search restricted to records matching
// the filter, returning up to k results ranked by descending similarity.
func (s *QdrantContentIndex) Search(ctx context.Context, embedding []float32, k int, f *Filter) ([]ChunkRecord, error) {
	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		Filter:         buildQdrantFilter(f),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: content query failed: %w", err)
	}

	recs := make([]ChunkRecord, 0, len(results))
	for _, r := range results {
		rec := ChunkRecord{
			ID:    r.Id.GetUuid(),
			Score: r.Score,
		}
		if p := r.Payload; p != nil {
			if v, ok := p["text"]; ok {
				rec.Text = v.GetStringValue()
			}
			if v, ok := p["course_title"]; ok {
				rec.CourseTitle = v.GetStringValue()
			}
			if v, ok := p["chunk_index"]; ok {
				rec.Index = int(v.GetIntegerValue())
			}
			if v, ok := p["lesson_number"]; ok {
				n := int(v.GetIntegerValue())
				rec.Lesson = &n
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// buildQdrantFilter translates a Filter into Qdrant match conditions joined
// by AND. Absent terms impose no constraint; a nil filter returns nil so the
// query is unrestricted.
func buildQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil || (f.CourseTitle == nil && f.Lesson == nil) {
		return nil
	}

	var must []*qdrant.Condition
	if f.CourseTitle != nil {
		must = append(must, qdrant.NewMatch("course_title", *f.CourseTitle))
	}
	if f.Lesson != nil {
		must = append(must, qdrant.NewMatchInt("lesson_number", int64(*f.Lesson)))
	}
	return &qdrant.Filter{Must: must}
}

// pointID derives a deterministic UUID-shaped point identifier from a record
// key so upserts replace rather than duplicate.
func pointID(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x-%x-%x-%x-%x", h[0:4], h[4:6], h[6:8], h[8:10], h[10:16])
}
