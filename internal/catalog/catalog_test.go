package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/KP1729/coursepilot/internal/course"
)

// openTestCatalog opens an in-memory Catalog for use in tests.
func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory catalog: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func intPtr(n int) *int { return &n }

func sampleCourse() *course.Course {
	return &course.Course{
		Title:      "Intro to Go",
		Link:       "https://example.com/go",
		Instructor: "R. Pike",
		Lessons: []course.Lesson{
			{Number: intPtr(1), Title: "Getting Started", Link: "https://example.com/go/1"},
			{Number: intPtr(2), Title: "Structs and Methods", Link: "https://example.com/go/2"},
			{Number: nil, Title: "", Body: "preamble text"},
		},
	}
}

func Test_Catalog_AddCourseAndOutline(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	added, err := c.AddCourse(ctx, sampleCourse(), 12)
	if err != nil {
		t.Fatalf("add course: %v", err)
	}
	if !added {
		t.Fatal("first add reported duplicate")
	}

	o, err := c.Outline(ctx, "Intro to Go")
	if err != nil {
		t.Fatalf("outline: %v", err)
	}
	if o.Course.Instructor != "R. Pike" || o.Course.ChunkCount != 12 {
		t.Errorf("course header mismatch: %+v", o.Course)
	}
	// The unnumbered preamble lesson is not part of the outline.
	if len(o.Lessons) != 2 {
		t.Fatalf("want 2 lessons, got %d", len(o.Lessons))
	}
	if o.Lessons[0].Number != 1 || o.Lessons[1].Number != 2 {
		t.Errorf("lessons out of order: %+v", o.Lessons)
	}
	if o.Lessons[1].Title != "Structs and Methods" {
		t.Errorf("lesson 2 title: got %q", o.Lessons[1].Title)
	}
}

func Test_Catalog_DuplicateTitleSkipped(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	if _, err := c.AddCourse(ctx, sampleCourse(), 12); err != nil {
		t.Fatalf("first add: %v", err)
	}

	// Same title with different metadata must be rejected without changes.
	dup := sampleCourse()
	dup.Instructor = "Someone Else"
	added, err := c.AddCourse(ctx, dup, 99)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if added {
		t.Fatal("duplicate add reported success")
	}

	o, err := c.Outline(ctx, "Intro to Go")
	if err != nil {
		t.Fatalf("outline: %v", err)
	}
	if o.Course.Instructor != "R. Pike" || o.Course.ChunkCount != 12 {
		t.Errorf("duplicate add modified existing course: %+v", o.Course)
	}
}

func Test_Catalog_RemoveCourseAllowsReAdd(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	if _, err := c.AddCourse(ctx, sampleCourse(), 12); err != nil {
		t.Fatalf("add course: %v", err)
	}

	if err := c.RemoveCourse(ctx, "Intro to Go"); err != nil {
		t.Fatalf("remove course: %v", err)
	}
	if _, err := c.Outline(ctx, "Intro to Go"); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("outline after removal: %v, want ErrCourseNotFound", err)
	}

	added, err := c.AddCourse(ctx, sampleCourse(), 12)
	if err != nil {
		t.Fatalf("re-add course: %v", err)
	}
	if !added {
		t.Error("re-add after removal reported duplicate")
	}
}

func Test_Catalog_RemoveUnknownCourseIsNoOp(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)

	if err := c.RemoveCourse(context.Background(), "Never Ingested"); err != nil {
		t.Errorf("removing unknown course: %v", err)
	}
}

func Test_Catalog_CoursesOrderedByTitle(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	for _, title := range []string{"Zed Course", "Algorithms"} {
		crs := sampleCourse()
		crs.Title = title
		if _, err := c.AddCourse(ctx, crs, 1); err != nil {
			t.Fatalf("add %q: %v", title, err)
		}
	}

	list, err := c.Courses(ctx)
	if err != nil {
		t.Fatalf("courses: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("want 2 courses, got %d", len(list))
	}
	if list[0].Title != "Algorithms" || list[1].Title != "Zed Course" {
		t.Errorf("wrong ordering: %q, %q", list[0].Title, list[1].Title)
	}
	if list[0].LessonCount != 2 {
		t.Errorf("lesson count: got %d, want 2", list[0].LessonCount)
	}
}

func Test_Catalog_OutlineUnknownCourse(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)

	_, err := c.Outline(context.Background(), "Nope")
	if !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("got %v, want ErrCourseNotFound", err)
	}
}

func Test_Catalog_LessonAndCourseLinks(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	if _, err := c.AddCourse(ctx, sampleCourse(), 12); err != nil {
		t.Fatalf("add course: %v", err)
	}

	link, err := c.LessonLink(ctx, "Intro to Go", 2)
	if err != nil {
		t.Fatalf("lesson link: %v", err)
	}
	if link != "https://example.com/go/2" {
		t.Errorf("lesson link: got %q", link)
	}

	// Unknown lesson degrades to an empty link, not an error.
	link, err = c.LessonLink(ctx, "Intro to Go", 9)
	if err != nil {
		t.Fatalf("unknown lesson link: %v", err)
	}
	if link != "" {
		t.Errorf("unknown lesson link: got %q, want empty", link)
	}

	link, err = c.CourseLink(ctx, "Intro to Go")
	if err != nil {
		t.Fatalf("course link: %v", err)
	}
	if link != "https://example.com/go" {
		t.Errorf("course link: got %q", link)
	}
}
