package pool

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Failure taxonomy returned to callers. None of these are retried
// internally; Conflict and AlreadyClaimed tell the caller to re-read and
// decide, the rest indicate caller errors.
var (
	ErrNotFound          = errors.New("pool item not found")
	ErrAlreadyClaimed    = errors.New("pool item already claimed")
	ErrNotOwner          = errors.New("actor does not own the pool item")
	ErrInvalidTransition = errors.New("invalid transition for pool item state")
	ErrConflict          = errors.New("pool item was modified concurrently")
)

// ValidationError reports a malformed completion or cancellation payload
// with one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) add(field, msg string) {
	e.Fields[field] = msg
}

// err returns the error itself when any field failed, nil otherwise.
func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Fields[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
