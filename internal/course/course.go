// Package course defines the course-document data model and the text
// processing pipeline that turns raw course files into searchable passages:
// a sentence-aware Chunker and a document parser for the course file format.
// The resulting Course metadata and Chunks are what the ingestion pipeline
// feeds into the identity and content indices.
package course

// Course is the metadata for a single ingested course file. The title is the
// course's identity: two files carrying the same title are the same course.
// A Course is immutable once parsed.
type Course struct {
	// Title is the unique course identifier.
	Title string

	// Link is the optional course URL.
	Link string

	// Instructor is the optional instructor name.
	Instructor string

	// Lessons is the ordered list of lessons as they appear in the file.
	Lessons []Lesson
}

// Lesson is a single lesson span within a Course. Lessons never exist
// outside their owning Course.
type Lesson struct {
	// Number is the lesson number as given in the source file. It is nil
	// when the document had no lesson markers and the whole body was
	// treated as one unnumbered span.
	Number *int

	// Title is the lesson title from the marker line (empty for the
	// unnumbered span).
	Title string

	// Link is the optional lesson URL captured from a "Lesson Link:" line.
	Link string

	// Body is the raw lesson text between this marker and the next.
	Body string
}

// Chunk is the atomic retrieval unit: a bounded, context-enriched passage of
// lesson text. Chunks are immutable once created.
type Chunk struct {
	// CourseTitle is the title of the owning course.
	CourseTitle string

	// Lesson is the owning lesson number, or nil for chunks produced from
	// an unnumbered course body.
	Lesson *int

	// Index is the position of this chunk within the whole course. It is
	// assigned from a single counter that runs across lesson boundaries,
	// starting at 0.
	Index int

	// Text is the enriched chunk text, including any lesson or course
	// context markers added during parsing.
	Text string
}
