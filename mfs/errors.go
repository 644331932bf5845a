package mfs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no child's virtual name matches a path
	// component.
	ErrNotFound = errors.New("no such virtual entry")
	// ErrInvalidDescent is returned when a path addresses a file as if it were
	// a directory.
	ErrInvalidDescent = errors.New("virtual path descends through a non-directory")
	// ErrUnsupported is returned for writes and for content the handle cannot
	// serve.
	ErrUnsupported = errors.New("operation not supported by a read-only mapped tree")
	// ErrUpstream wraps I/O failures of the backing filesystem or of a content
	// producer.
	ErrUpstream = errors.New("backing store failure")
)

func upstream(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrUpstream, op, path, err)
}
