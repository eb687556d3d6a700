package models

import "errors"

// Failure categories shared by every ingest path. Producers wrap these so
// callers can branch with errors.Is.
var (
	// ErrUnsupportedFormat is returned for uploads outside the supported extensions.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrParse is returned when a file or remote payload cannot be normalized.
	ErrParse = errors.New("parse error")
	// ErrRemoteFetch is returned when the remote service cannot be reached or refuses a request.
	ErrRemoteFetch = errors.New("remote fetch failed")
	// ErrValidation is returned by the advisory validators.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence is returned when a transaction was rolled back.
	ErrPersistence = errors.New("persistence failed")
	// ErrDuplicate is returned when a workout with the same identity is already stored.
	ErrDuplicate = errors.New("workout already imported")
	// ErrNotFound is returned when a workout id does not exist.
	ErrNotFound = errors.New("workout not found")
)
