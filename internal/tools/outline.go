package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/KP1729/coursepilot/internal/catalog"
	"github.com/KP1729/coursepilot/internal/search"
)

// OutlineTool is an Eino tool that returns the structure of a course: its
// title, link, instructor, and the full numbered lesson list. The loose
// course name is resolved the same way search resolves it.
type OutlineTool struct {
	resolver CourseResolver
	outlines OutlineProvider
}

// outlineInput is the JSON-serialisable input schema for OutlineTool.
type outlineInput struct {
	// CourseName is the course to describe. Partial names are resolved.
	CourseName string `json:"course_name"`
}

// OutlineToolName is the tool name registered with the model. The
// orchestrator matches on it to return outline output verbatim.
const OutlineToolName = "get_course_outline"

// NewOutlineTool constructs an OutlineTool from a course resolver and an
// outline provider.
func NewOutlineTool(resolver CourseResolver, outlines OutlineProvider) *OutlineTool {
	return &OutlineTool{resolver: resolver, outlines: outlines}
}

// Name returns the tool name registered with the model.
func (t *OutlineTool) Name() string { return OutlineToolName }

// Description returns the LLM-facing description of this tool.
func (t *OutlineTool) Description() string {
	return "Returns the outline of a course: title, course link, and the complete " +
		"numbered lesson list. Use this for questions about a course's structure " +
		"or what lessons it contains."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *OutlineTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"course_name": {
				Type:     schema.String,
				Desc:     "Course title to describe. Partial names are matched, e.g. 'MCP'.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun resolves the course name and renders its outline. Unknown
// courses are reported as explanatory output strings, not errors.
func (t *OutlineTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input outlineInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("get_course_outline: invalid input: %w", err)
	}
	if input.CourseName == "" {
		return "", fmt.Errorf("get_course_outline: course_name is required")
	}

	title, err := t.resolver.ResolveCourseTitle(ctx, input.CourseName)
	if errors.Is(err, search.ErrUnknownCourse) {
		return fmt.Sprintf("No course found matching '%s'.", input.CourseName), nil
	}
	if err != nil {
		return "", fmt.Errorf("get_course_outline: %w", err)
	}

	outline, err := t.outlines.Outline(ctx, title)
	if errors.Is(err, catalog.ErrCourseNotFound) {
		// Indexed but not catalogued; treat like an unknown course.
		return fmt.Sprintf("No course found matching '%s'.", input.CourseName), nil
	}
	if err != nil {
		return "", fmt.Errorf("get_course_outline: %w", err)
	}

	return formatOutline(outline), nil
}

// formatOutline renders an outline as a text block for the model to relay.
func formatOutline(o *catalog.Outline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", o.Course.Title)
	if o.Course.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", o.Course.Link)
	}
	if o.Course.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", o.Course.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(o.Lessons))
	for _, l := range o.Lessons {
		fmt.Fprintf(&b, "%d. %s\n", l.Number, l.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}
