package search

import "errors"

// Sentinel errors returned by the Retriever. Callers match them with
// errors.Is to distinguish recoverable conditions (bad course name, empty
// results) from backend outages.
var (
	// ErrUnknownCourse means the course reference could not be resolved to
	// any indexed course with acceptable confidence.
	ErrUnknownCourse = errors.New("search: no course matches the given name")

	// ErrNoResults means the content search completed but matched nothing
	// under the active filters.
	ErrNoResults = errors.New("search: no content matched the query")

	// ErrIndexUnavailable means the vector backend could not be reached,
	// even after a retry.
	ErrIndexUnavailable = errors.New("search: vector index unavailable")
)
