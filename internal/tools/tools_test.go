package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/KP1729/coursepilot/internal/catalog"
	"github.com/KP1729/coursepilot/internal/index"
	"github.com/KP1729/coursepilot/internal/search"
)

func intPtr(n int) *int { return &n }

// fakeSearcher returns canned results or a canned error.
type fakeSearcher struct {
	results []search.Result
	err     error

	gotQuery  string
	gotCourse string
	gotLesson *int
}

func (f *fakeSearcher) Search(_ context.Context, query, courseRef string, lessonNumber *int) ([]search.Result, error) {
	f.gotQuery, f.gotCourse, f.gotLesson = query, courseRef, lessonNumber
	return f.results, f.err
}

// fakeResolver resolves any reference to a fixed title, or errors.
type fakeResolver struct {
	title string
	err   error
}

func (f *fakeResolver) ResolveCourseTitle(context.Context, string) (string, error) {
	return f.title, f.err
}

// fakeOutlines serves one outline by title.
type fakeOutlines struct {
	outline *catalog.Outline
	err     error
}

func (f *fakeOutlines) Outline(context.Context, string) (*catalog.Outline, error) {
	return f.outline, f.err
}

func sampleResults() []search.Result {
	return []search.Result{
		{
			Chunk:  index.ChunkRecord{Text: "Structs group related fields."},
			Source: search.Source{CourseTitle: "Intro to Go", Lesson: intPtr(2)},
		},
		{
			Chunk:  index.ChunkRecord{Text: "Methods attach behavior to types."},
			Source: search.Source{CourseTitle: "Intro to Go", Lesson: intPtr(2)},
		},
	}
}

func Test_SearchTool_FormatsHeadedBlocks(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: sampleResults()}
	tool := NewSearchTool(searcher, NewSourceRecorder())

	out, err := tool.InvokableRun(context.Background(),
		`{"query":"what is a struct?","course_name":"go","lesson_number":2}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}

	if searcher.gotQuery != "what is a struct?" || searcher.gotCourse != "go" {
		t.Errorf("searcher got %q / %q", searcher.gotQuery, searcher.gotCourse)
	}
	if searcher.gotLesson == nil || *searcher.gotLesson != 2 {
		t.Errorf("searcher lesson filter: %v", searcher.gotLesson)
	}
	if !strings.Contains(out, "[Intro to Go - Lesson 2]") {
		t.Errorf("output missing header:\n%s", out)
	}
	if !strings.Contains(out, "Structs group related fields.") {
		t.Errorf("output missing chunk text:\n%s", out)
	}
}

func Test_SearchTool_RecordsDedupedSources(t *testing.T) {
	t.Parallel()

	rec := NewSourceRecorder()
	tool := NewSearchTool(&fakeSearcher{results: sampleResults()}, rec)

	if _, err := tool.InvokableRun(context.Background(), `{"query":"q"}`); err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}

	sources := rec.Sources()
	if len(sources) != 1 {
		t.Fatalf("want 1 deduped source, got %d", len(sources))
	}
	if sources[0].CourseTitle != "Intro to Go" {
		t.Errorf("source: %+v", sources[0])
	}
}

func Test_SearchTool_UnknownCourseIsSoftFailure(t *testing.T) {
	t.Parallel()

	tool := NewSearchTool(&fakeSearcher{err: search.ErrUnknownCourse}, NewSourceRecorder())
	out, err := tool.InvokableRun(context.Background(), `{"query":"q","course_name":"Basket Weaving"}`)
	if err != nil {
		t.Fatalf("unknown course must not be an error, got %v", err)
	}
	if !strings.Contains(out, "No course found matching 'Basket Weaving'") {
		t.Errorf("output: %q", out)
	}
}

func Test_SearchTool_NoResultsNamesFilters(t *testing.T) {
	t.Parallel()

	tool := NewSearchTool(&fakeSearcher{err: search.ErrNoResults}, NewSourceRecorder())
	out, err := tool.InvokableRun(context.Background(),
		`{"query":"q","course_name":"Intro to Go","lesson_number":3}`)
	if err != nil {
		t.Fatalf("no results must not be an error, got %v", err)
	}
	want := "No relevant content found in course 'Intro to Go' in lesson 3."
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func Test_SearchTool_InputValidation(t *testing.T) {
	t.Parallel()

	tool := NewSearchTool(&fakeSearcher{}, NewSourceRecorder())

	if _, err := tool.InvokableRun(context.Background(), `{not json`); err == nil {
		t.Error("malformed JSON accepted")
	}
	if _, err := tool.InvokableRun(context.Background(), `{"course_name":"x"}`); err == nil {
		t.Error("missing query accepted")
	}
}

func Test_OutlineTool_RendersLessonList(t *testing.T) {
	t.Parallel()

	outline := &catalog.Outline{
		Course: catalog.CourseSummary{
			Title:      "Intro to Go",
			Link:       "https://example.com/go",
			Instructor: "R. Pike",
		},
		Lessons: []catalog.LessonSummary{
			{Number: 1, Title: "Getting Started"},
			{Number: 2, Title: "Structs and Methods"},
		},
	}
	tool := NewOutlineTool(&fakeResolver{title: "Intro to Go"}, &fakeOutlines{outline: outline})

	out, err := tool.InvokableRun(context.Background(), `{"course_name":"go"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	for _, want := range []string{
		"Course: Intro to Go",
		"Course Link: https://example.com/go",
		"Lessons (2):",
		"1. Getting Started",
		"2. Structs and Methods",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func Test_OutlineTool_UnknownCourseIsSoftFailure(t *testing.T) {
	t.Parallel()

	tool := NewOutlineTool(&fakeResolver{err: search.ErrUnknownCourse}, &fakeOutlines{})
	out, err := tool.InvokableRun(context.Background(), `{"course_name":"Basket Weaving"}`)
	if err != nil {
		t.Fatalf("unknown course must not be an error, got %v", err)
	}
	if !strings.Contains(out, "No course found matching 'Basket Weaving'") {
		t.Errorf("output: %q", out)
	}
}

func Test_SourceRecorder_DedupPreservesFirstSeenOrder(t *testing.T) {
	t.Parallel()

	rec := NewSourceRecorder()
	rec.Record(
		search.Source{CourseTitle: "A", Lesson: intPtr(1), Link: "first"},
		search.Source{CourseTitle: "B", Lesson: nil},
		search.Source{CourseTitle: "A", Lesson: intPtr(1), Link: "second"},
		search.Source{CourseTitle: "A", Lesson: intPtr(2)},
	)

	got := rec.Sources()
	if len(got) != 3 {
		t.Fatalf("want 3 sources, got %d", len(got))
	}
	if got[0].CourseTitle != "A" || got[0].Link != "first" {
		t.Errorf("first source replaced: %+v", got[0])
	}
	if got[1].CourseTitle != "B" || got[2].CourseTitle != "A" {
		t.Errorf("order not preserved: %+v", got)
	}
	if got[2].Lesson == nil || *got[2].Lesson != 2 {
		t.Errorf("distinct lesson dropped: %+v", got[2])
	}
}
