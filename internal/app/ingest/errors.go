package ingest

import (
	"fmt"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// ParseError indicates the CSV content was malformed or yielded no usable
// rows. It is fatal: no writes are attempted.
type ParseError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse error: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return shared.ErrValidation
}

// ValidationError indicates the import request itself was invalid
// (missing company, period or date). Fatal, no writes.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid import input: %s %s", e.Field, e.Reason)
}

// Unwrap returns the validation sentinel.
func (e *ValidationError) Unwrap() error {
	return shared.ErrValidation
}

// ChunkError indicates one chunk's reconciliation transaction failed.
// Previously committed chunks are retained; the import as a whole is
// reported failed and is safe to re-run.
type ChunkError struct {
	Chunk int
	Err   error
}

// Error implements the error interface.
func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d failed: %v", e.Chunk, e.Err)
}

// Unwrap returns the underlying error.
func (e *ChunkError) Unwrap() error {
	return e.Err
}
