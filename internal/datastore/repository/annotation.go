package repository

import (
	"context"

	"github.com/evalgrid/postit/internal/datastore/entities"
)

// AnnotationRepository provides access to the annotations table.
type AnnotationRepository interface {
	// Create inserts a and fills in its ID.
	Create(ctx context.Context, a *entities.Annotation) error

	// GetByID retrieves an annotation. Returns ErrAnnotationNotFound if missing.
	GetByID(ctx context.Context, id uint) (*entities.Annotation, error)

	// UpdateAssignment writes the criterion, practice, domain, label and
	// step override columns of a to row id, including NULLs.
	// Returns ErrAnnotationNotFound if no row matched.
	UpdateAssignment(ctx context.Context, id uint, a *entities.Annotation) error

	// Delete removes an annotation. Returns ErrAnnotationNotFound if missing.
	Delete(ctx context.Context, id uint) error

	// ListReferencing returns annotations of activityID whose criterion
	// equals criterionID or whose practice equals practiceID. Nil ids
	// match nothing.
	ListReferencing(ctx context.Context, activityID uint, criterionID, practiceID *uint) ([]*entities.Annotation, error)

	// ListByActivity returns all annotations of an activity ordered by ID.
	ListByActivity(ctx context.Context, activityID uint) ([]*entities.Annotation, error)
}
