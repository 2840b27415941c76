package course

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedDocument indicates a course file that cannot be ingested:
// a missing or empty title line, or a lesson number that repeats within the
// course. Malformed files are skipped by the ingestion pipeline, not fatal.
var ErrMalformedDocument = errors.New("malformed course document")

// Header line prefixes of the course file format. The first three non-empty
// lines of a file are matched against these; only the title is mandatory.
const (
	titlePrefix      = "Course Title:"
	linkPrefix       = "Course Link:"
	instructorPrefix = "Course Instructor:"
	lessonLinkPrefix = "Lesson Link:"
)

// lessonMarker matches lesson heading lines such as "Lesson 3: Advanced Topics".
var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// Parse turns raw course file text into a Course and its ordered Chunks.
//
// The file format is three header lines (title mandatory, link and instructor
// optional), then lesson sections introduced by "Lesson N: Title" markers,
// each optionally followed by a "Lesson Link:" line. Text between markers is
// the lesson body. A file without markers is treated as one unnumbered span.
//
// Each lesson body is chunked; the first chunk of each lesson is prefixed
// with the lesson number and title so it is self-describing out of context,
// and the final chunk of the final lesson carries the course title as a
// trailing marker. Chunk indices continue across lessons.
func Parse(raw string, chunker *Chunker) (*Course, []Chunk, error) {
	if chunker == nil {
		chunker = NewChunker(nil)
	}

	lines := strings.Split(raw, "\n")

	c, rest, err := parseHeader(lines)
	if err != nil {
		return nil, nil, err
	}

	if err := parseLessons(c, rest); err != nil {
		return nil, nil, err
	}

	chunks := buildChunks(c, chunker)
	return c, chunks, nil
}

// parseHeader consumes the first three non-empty lines as course metadata and
// returns the remaining lines. The title line is mandatory; link and
// instructor lines are optional and may appear in any of the three slots.
func parseHeader(lines []string) (*Course, []string, error) {
	c := &Course{}
	consumed := 0
	seen := 0

scan:
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			consumed = i + 1
			continue
		}
		if lessonMarker.MatchString(trimmed) {
			break
		}

		switch {
		case strings.HasPrefix(trimmed, titlePrefix):
			c.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, titlePrefix))
		case strings.HasPrefix(trimmed, linkPrefix):
			c.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, linkPrefix))
		case strings.HasPrefix(trimmed, instructorPrefix):
			c.Instructor = strings.TrimSpace(strings.TrimPrefix(trimmed, instructorPrefix))
		default:
			// Not a header line — the body starts here.
			break scan
		}

		seen++
		consumed = i + 1
		if seen == 3 {
			break
		}
	}

	if c.Title == "" {
		return nil, nil, fmt.Errorf("%w: missing or empty %q line", ErrMalformedDocument, titlePrefix)
	}
	return c, lines[consumed:], nil
}

// parseLessons scans the body lines for lesson markers and fills c.Lessons.
// Without any marker the whole body becomes one unnumbered lesson.
func parseLessons(c *Course, lines []string) error {
	seenNumbers := make(map[int]bool)
	var current *Lesson
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		c.Lessons = append(c.Lessons, *current)
		current, body = nil, nil
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if m := lessonMarker.FindStringSubmatch(line); m != nil {
			flush()

			n, err := strconv.Atoi(m[1])
			if err != nil {
				return fmt.Errorf("%w: bad lesson number %q", ErrMalformedDocument, m[1])
			}
			if seenNumbers[n] {
				return fmt.Errorf("%w: lesson %d appears more than once", ErrMalformedDocument, n)
			}
			seenNumbers[n] = true

			num := n
			current = &Lesson{Number: &num, Title: strings.TrimSpace(m[2])}

			// An optional link line directly after the marker belongs to
			// this lesson, not its body.
			if i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if strings.HasPrefix(next, lessonLinkPrefix) {
					current.Link = strings.TrimSpace(strings.TrimPrefix(next, lessonLinkPrefix))
					i++
				}
			}
			continue
		}

		if current != nil {
			body = append(body, lines[i])
		} else if line != "" {
			// Body text before any marker: start the unnumbered span.
			current = &Lesson{}
			body = append(body, lines[i])
		}
	}
	flush()

	return nil
}

// buildChunks runs the chunker over every lesson body and applies the
// context markers. Empty lesson bodies produce no chunks.
func buildChunks(c *Course, chunker *Chunker) []Chunk {
	var chunks []Chunk
	idx := 0

	lastLesson := -1
	for i := range c.Lessons {
		if c.Lessons[i].Body != "" {
			lastLesson = i
		}
	}

	for i := range c.Lessons {
		lesson := &c.Lessons[i]
		parts := chunker.Split(lesson.Body)

		for j, text := range parts {
			if j == 0 && lesson.Number != nil {
				text = LessonPrefix(*lesson.Number, lesson.Title) + text
			}
			if i == lastLesson && j == len(parts)-1 {
				text += CourseSuffix(c.Title)
			}
			chunks = append(chunks, Chunk{
				CourseTitle: c.Title,
				Lesson:      lesson.Number,
				Index:       idx,
				Text:        text,
			})
			idx++
		}
	}
	return chunks
}

// LessonPrefix is the fixed template prepended to the first chunk of each
// numbered lesson so the chunk identifies itself out of context.
func LessonPrefix(number int, title string) string {
	return fmt.Sprintf("Lesson %d - %s: ", number, title)
}

// CourseSuffix is the fixed template appended to the final chunk of the final
// lesson, carrying the course title as a trailing context marker.
func CourseSuffix(title string) string {
	return fmt.Sprintf(" [course: %s]", title)
}
