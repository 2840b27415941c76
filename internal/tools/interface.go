// Package tools defines the course-aware tools the assistant can invoke
// during a conversation. Each tool satisfies Eino's tool.InvokableTool
// interface so it can be bound directly to a tool-calling chat model.
// Recoverable retrieval problems (unknown course, empty results) are
// reported to the model as explanatory tool output, never as errors, so
// the model can relay them conversationally.
package tools

import (
	"context"

	"github.com/KP1729/coursepilot/internal/catalog"
	"github.com/KP1729/coursepilot/internal/search"
)

// CourseTool is the interface all course tools satisfy. It extends the
// basic Eino tool contract with accessors so the orchestrator can log and
// route tool calls by name without type assertions.
type CourseTool interface {
	// Name returns the unique tool name registered with the model.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string
}

// Searcher runs filtered semantic search over course content.
// *search.Retriever satisfies it; tests inject fakes.
type Searcher interface {
	// Search returns ranked results for the query, optionally restricted to
	// a resolved course and lesson.
	Search(ctx context.Context, query, courseRef string, lessonNumber *int) ([]search.Result, error)
}

// CourseResolver resolves loose course references to exact titles.
type CourseResolver interface {
	// ResolveCourseTitle returns the exact title of the best-matching
	// course, or search.ErrUnknownCourse.
	ResolveCourseTitle(ctx context.Context, courseRef string) (string, error)
}

// OutlineProvider returns the structure of an ingested course.
// *catalog.Catalog satisfies it.
type OutlineProvider interface {
	// Outline returns the course summary and its lessons, or
	// catalog.ErrCourseNotFound.
	Outline(ctx context.Context, title string) (*catalog.Outline, error)
}
