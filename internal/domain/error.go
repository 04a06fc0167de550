package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrConflict           = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Ingestion errors
	ErrEmptyContent = errors.New("failed to get any text content from url")
	ErrUnknownTask  = errors.New("unknown task")
)

// ConflictError is returned when a URL has already been submitted.
// It carries the existing job so callers can report it.
type ConflictError struct {
	JobID  string
	Status string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("url has already been submitted: job %s is %s", e.JobID, e.Status)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type FetchErrorKind string

const (
	FetchTransient FetchErrorKind = "transient"
	FetchPermanent FetchErrorKind = "permanent"
)

// FetchError reports a failed retrieval of a URL. StatusCode is zero for
// transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Kind       FetchErrorKind
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (%s): http %d: %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Transient() bool { return e.Kind == FetchTransient }

// IndexError wraps a failure of the retrieval index.
type IndexError struct {
	Op  string // "upsert" | "query"
	Err error
}

func (e *IndexError) Error() string { return fmt.Sprintf("index %s: %v", e.Op, e.Err) }

func (e *IndexError) Unwrap() error { return e.Err }

// GenerationError wraps a failure of the language model call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation failed: %v", e.Err) }

func (e *GenerationError) Unwrap() error { return e.Err }
