// Package catalog provides a SQLite-backed registry of ingested courses.
// It is the system of record for which course titles exist (so re-ingestion
// can skip duplicates), for lesson metadata used to build course outlines,
// and for the lesson links cited in answer sources.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/KP1729/coursepilot/internal/course"
)

// ErrCourseNotFound is returned by Outline when no course with the given
// title has been ingested.
var ErrCourseNotFound = errors.New("catalog: course not found")

// CourseSummary is a lightweight view of one ingested course.
type CourseSummary struct {
	// Title is the exact course title.
	Title string
	// Link is the course URL, if any.
	Link string
	// Instructor is the course instructor, if any.
	Instructor string
	// LessonCount is the number of numbered lessons in the course.
	LessonCount int
	// ChunkCount is how many content chunks the course contributed.
	ChunkCount int
}

// LessonSummary is one numbered lesson within a course outline.
type LessonSummary struct {
	// Number is the lesson number as declared in the source document.
	Number int
	// Title is the lesson title.
	Title string
	// Link is the lesson URL, if any.
	Link string
}

// Outline is the full structure of one course.
type Outline struct {
	Course  CourseSummary
	Lessons []LessonSummary
}

// Catalog is a course metadata registry backed by a local SQLite database.
type Catalog struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the course catalog database.
// It resolves to ~/.coursepilot/catalog.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("catalog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".coursepilot")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("catalog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a Catalog at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Catalog, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// migrate creates the schema if it does not already exist.
func (c *Catalog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS courses (
    title        TEXT    PRIMARY KEY,
    link         TEXT    NOT NULL DEFAULT '',
    instructor   TEXT    NOT NULL DEFAULT '',
    chunk_count  INTEGER NOT NULL DEFAULT 0,
    added_at     INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS lessons (
    course_title TEXT    NOT NULL REFERENCES courses(title) ON DELETE CASCADE,
    number       INTEGER NOT NULL,
    title        TEXT    NOT NULL DEFAULT '',
    link         TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (course_title, number)
);
`
	if _, err := c.db.Exec(ddl); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// AddCourse registers a parsed course and its numbered lessons in a single
// transaction. It returns added=false without modifying anything when a
// course with the same title is already registered, which makes repeated
// ingestion of the same documents folder idempotent.
func (c *Catalog) AddCourse(ctx context.Context, crs *course.Course, chunkCount int) (added bool, err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("catalog: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses WHERE title = ?`, crs.Title).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("catalog: existence check: %w", err)
	}
	if exists > 0 {
		_ = tx.Rollback()
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO courses (title, link, instructor, chunk_count, added_at) VALUES (?, ?, ?, ?, ?)`,
		crs.Title, crs.Link, crs.Instructor, chunkCount, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("catalog: insert course: %w", err)
	}

	for _, l := range crs.Lessons {
		if l.Number == nil {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO lessons (course_title, number, title, link) VALUES (?, ?, ?, ?)`,
			crs.Title, *l.Number, l.Title, l.Link)
		if err != nil {
			return false, fmt.Errorf("catalog: insert lesson %d: %w", *l.Number, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("catalog: commit: %w", err)
	}
	return true, nil
}

// RemoveCourse deletes a registered course and its lessons in a single
// transaction. Removing an unregistered title is a no-op. The ingestion
// pipeline uses it to roll back the catalog entry when indexing fails, so
// a re-run does not skip the course as already ingested.
func (c *Catalog) RemoveCourse(ctx context.Context, title string) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM lessons WHERE course_title = ?`, title); err != nil {
		return fmt.Errorf("catalog: delete lessons: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM courses WHERE title = ?`, title); err != nil {
		return fmt.Errorf("catalog: delete course: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit: %w", err)
	}
	return nil
}

// Courses returns summaries for every registered course, ordered by title.
func (c *Catalog) Courses(ctx context.Context) ([]CourseSummary, error) {
	const q = `
SELECT c.title, c.link, c.instructor, c.chunk_count,
       (SELECT COUNT(*) FROM lessons l WHERE l.course_title = c.title)
FROM   courses c
ORDER  BY c.title ASC`

	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: list courses: %w", err)
	}
	defer rows.Close()

	var out []CourseSummary
	for rows.Next() {
		var s CourseSummary
		if err := rows.Scan(&s.Title, &s.Link, &s.Instructor, &s.ChunkCount, &s.LessonCount); err != nil {
			return nil, fmt.Errorf("catalog: scan course: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: course rows: %w", err)
	}
	return out, nil
}

// Outline returns the course summary plus its lessons ordered by number.
// Returns ErrCourseNotFound when the title is not registered.
func (c *Catalog) Outline(ctx context.Context, title string) (*Outline, error) {
	var o Outline
	err := c.db.QueryRowContext(ctx,
		`SELECT title, link, instructor, chunk_count FROM courses WHERE title = ?`, title).
		Scan(&o.Course.Title, &o.Course.Link, &o.Course.Instructor, &o.Course.ChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrCourseNotFound, title)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: outline header: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT number, title, link FROM lessons WHERE course_title = ? ORDER BY number ASC`, title)
	if err != nil {
		return nil, fmt.Errorf("catalog: outline lessons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l LessonSummary
		if err := rows.Scan(&l.Number, &l.Title, &l.Link); err != nil {
			return nil, fmt.Errorf("catalog: scan lesson: %w", err)
		}
		o.Lessons = append(o.Lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: lesson rows: %w", err)
	}
	o.Course.LessonCount = len(o.Lessons)
	return &o, nil
}

// LessonLink returns the URL of the given lesson, or "" when none is
// recorded. Satisfies the retriever's link resolver.
func (c *Catalog) LessonLink(ctx context.Context, courseTitle string, lesson int) (string, error) {
	var link string
	err := c.db.QueryRowContext(ctx,
		`SELECT link FROM lessons WHERE course_title = ? AND number = ?`, courseTitle, lesson).
		Scan(&link)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: lesson link: %w", err)
	}
	return link, nil
}

// CourseLink returns the URL of the course itself, or "" when unknown.
func (c *Catalog) CourseLink(ctx context.Context, courseTitle string) (string, error) {
	var link string
	err := c.db.QueryRowContext(ctx,
		`SELECT link FROM courses WHERE title = ?`, courseTitle).Scan(&link)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: course link: %w", err)
	}
	return link, nil
}

// Ping verifies the database connection is alive. Used by readiness probes.
func (c *Catalog) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("catalog: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (c *Catalog) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}
