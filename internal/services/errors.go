package services

import "errors"

// Store-level failure taxonomy. Handlers map these onto HTTP statuses;
// anything not listed here reaches the caller as a generic internal error.
var (
	ErrNotFound      = errors.New("no matching active row")
	ErrDuplicateTag  = errors.New("tag name already exists under this parent")
	ErrEmptyName     = errors.New("tag name is empty")
	ErrCycleDetected = errors.New("reparenting would create a tag cycle")
	ErrConstraint    = errors.New("constraint violation")
)

// BatchError is one failed path inside a bulk operation.
type BatchError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// BatchResult is the aggregate outcome of a bulk operation. A failure on one
// path never rolls back or blocks its siblings; each item commits alone.
type BatchResult struct {
	Succeeded []string     `json:"succeeded"`
	Failed    []BatchError `json:"failed"`
}

func newBatchResult() *BatchResult {
	return &BatchResult{Succeeded: []string{}, Failed: []BatchError{}}
}

func (r *BatchResult) ok(path string) {
	r.Succeeded = append(r.Succeeded, path)
}

func (r *BatchResult) fail(path string, err error) {
	r.Failed = append(r.Failed, BatchError{Path: path, Error: err.Error()})
}
