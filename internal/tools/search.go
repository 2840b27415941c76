package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/KP1729/coursepilot/internal/search"
)

// SearchTool is an Eino tool that runs semantic search over indexed course
// content and returns formatted excerpts for the model to ground its answer
// on. Sources of returned excerpts are recorded for citation.
type SearchTool struct {
	searcher Searcher
	recorder *SourceRecorder
}

// searchInput is the JSON-serialisable input schema for SearchTool.
type searchInput struct {
	// Query is what to look for in the course materials.
	Query string `json:"query"`

	// CourseName optionally narrows the search to one course. Partial
	// names are resolved against the indexed course titles.
	CourseName string `json:"course_name,omitempty"`

	// LessonNumber optionally narrows the search to one lesson.
	LessonNumber *int `json:"lesson_number,omitempty"`
}

// NewSearchTool constructs a SearchTool over the given searcher, recording
// result sources on the recorder.
func NewSearchTool(searcher Searcher, recorder *SourceRecorder) *SearchTool {
	return &SearchTool{searcher: searcher, recorder: recorder}
}

// Name returns the tool name registered with the model.
func (t *SearchTool) Name() string { return "search_course_content" }

// Description returns the LLM-facing description of this tool.
func (t *SearchTool) Description() string {
	return "Searches the indexed course materials for content relevant to a query. " +
		"Use this for questions about specific course content or detailed educational materials. " +
		"Optionally restrict the search to one course and/or one lesson."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *SearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "What to search for in the course content.",
				Required: true,
			},
			"course_name": {
				Type: schema.String,
				Desc: "Course title to search within. Partial names are matched, e.g. 'MCP' or 'Introduction'.",
			},
			"lesson_number": {
				Type: schema.Integer,
				Desc: "Specific lesson number to search within, e.g. 3.",
			},
		}),
	}, nil
}

// InvokableRun executes the search given a JSON-encoded input string.
// Unknown courses and empty result sets are reported as explanatory output
// strings so the model can tell the user; only malformed input or backend
// outages surface as errors.
func (t *SearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input searchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("search_course_content: invalid input: %w", err)
	}
	if input.Query == "" {
		return "", fmt.Errorf("search_course_content: query is required")
	}

	results, err := t.searcher.Search(ctx, input.Query, input.CourseName, input.LessonNumber)
	if errors.Is(err, search.ErrUnknownCourse) {
		return fmt.Sprintf("No course found matching '%s'.", input.CourseName), nil
	}
	if errors.Is(err, search.ErrNoResults) {
		return noResultsMessage(input), nil
	}
	if err != nil {
		return "", fmt.Errorf("search_course_content: %w", err)
	}

	if t.recorder != nil {
		for _, res := range results {
			t.recorder.Record(res.Source)
		}
	}
	return formatResults(results), nil
}

// noResultsMessage describes an empty result set, naming the filters that
// were in effect.
func noResultsMessage(input searchInput) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if input.CourseName != "" {
		fmt.Fprintf(&b, " in course '%s'", input.CourseName)
	}
	if input.LessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *input.LessonNumber)
	}
	b.WriteString(".")
	return b.String()
}

// formatResults renders results as headed text blocks the model can quote.
func formatResults(results []search.Result) string {
	blocks := make([]string, 0, len(results))
	for _, res := range results {
		header := "[" + res.Source.CourseTitle
		if res.Source.Lesson != nil {
			header += fmt.Sprintf(" - Lesson %d", *res.Source.Lesson)
		}
		header += "]"
		blocks = append(blocks, header+"\n"+res.Chunk.Text)
	}
	return strings.Join(blocks, "\n\n")
}
