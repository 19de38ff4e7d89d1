package repository

import "github.com/evalgrid/postit/internal/errors"

// Sentinel errors for repository operations.
var (
	// ErrAnnotationNotFound indicates the requested annotation does not exist.
	ErrAnnotationNotFound = errors.NewStd("annotation not found")

	// ErrCriterionNotFound indicates the requested criterion does not exist.
	ErrCriterionNotFound = errors.NewStd("criterion not found")

	// ErrPracticeNotFound indicates the requested practice does not exist.
	ErrPracticeNotFound = errors.NewStd("practice not found")

	// ErrActivityNotFound indicates the requested activity does not exist.
	ErrActivityNotFound = errors.NewStd("activity not found")

	// ErrDomainNotFound indicates the requested grid does not exist.
	ErrDomainNotFound = errors.NewStd("domain not found")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")
)
