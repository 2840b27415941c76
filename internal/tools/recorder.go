package tools

import (
	"strconv"
	"sync"

	"github.com/KP1729/coursepilot/internal/search"
)

// SourceRecorder collects the sources touched by tool calls during a single
// conversation turn, deduplicated by (course, lesson) in first-seen order.
// One recorder is created per turn and discarded after the answer is built.
type SourceRecorder struct {
	mu      sync.Mutex
	seen    map[string]bool
	sources []search.Source
}

// NewSourceRecorder constructs an empty recorder.
func NewSourceRecorder() *SourceRecorder {
	return &SourceRecorder{seen: make(map[string]bool)}
}

// Record adds the sources, skipping any (course, lesson) pair already seen.
func (r *SourceRecorder) Record(sources ...search.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sources {
		key := s.CourseTitle
		if s.Lesson != nil {
			key += "\x00" + strconv.Itoa(*s.Lesson)
		}
		if r.seen[key] {
			continue
		}
		r.seen[key] = true
		r.sources = append(r.sources, s)
	}
}

// Sources returns the recorded sources in first-seen order.
func (r *SourceRecorder) Sources() []search.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]search.Source, len(r.sources))
	copy(out, r.sources)
	return out
}
