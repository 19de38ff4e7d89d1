package store

import "github.com/evalgrid/postit/internal/errors"

var (
	// ErrQueryUnsupported is returned by stores that cannot list referencing
	// annotations; callers fall back to the annotations they hold in memory.
	ErrQueryUnsupported = errors.NewStd("store: reference query unsupported")

	// ErrNotFound is returned when an annotation does not exist.
	ErrNotFound = errors.NewStd("store: annotation not found")
)
