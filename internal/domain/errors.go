package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCumulativeColumn means no column in a source matched any detection rule.
	ErrNoCumulativeColumn = errors.New("no cumulative column found")

	// ErrMissingColumn means a required entity or period column is absent.
	ErrMissingColumn = errors.New("missing required column")
)

// FileAccessError reports a source file that could not be opened or read.
// It is fatal for that source only.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("access %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// IsFileAccess reports whether err wraps a *FileAccessError.
func IsFileAccess(err error) bool {
	var fae *FileAccessError
	return errors.As(err, &fae)
}
