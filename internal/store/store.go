// Package store defines the persistence boundary of the assignment engine.
package store

import (
	"context"

	"github.com/evalgrid/postit/internal/assignment"
)

// AssociationKind names the two activity association tables.
type AssociationKind string

const (
	KindCriterion AssociationKind = "criterion"
	KindPractice  AssociationKind = "practice"
)

// Valid reports whether k is a known kind.
func (k AssociationKind) Valid() bool {
	return k == KindCriterion || k == KindPractice
}

// AssignmentFields are the annotation columns written on save.
type AssignmentFields = assignment.Fields

// Reference selects sibling annotations by criterion and/or practice.
// When both are set, an annotation matching either one is returned.
type Reference struct {
	CriterionID *uint
	PracticeID  *uint
}

// Empty reports whether no id is set.
func (r Reference) Empty() bool {
	return r.CriterionID == nil && r.PracticeID == nil
}

// Store is what the engine needs from persistence. Every method may block.
type Store interface {
	GetAnnotation(ctx context.Context, id uint) (assignment.Annotation, error)
	SaveAnnotation(ctx context.Context, id uint, fields AssignmentFields) error
	DeleteAnnotation(ctx context.Context, id uint) error

	// ListAnnotationsReferencing returns annotations of activityID that use
	// the referenced criterion or practice. Implementations that cannot
	// query return an error matching ErrQueryUnsupported.
	ListAnnotationsReferencing(ctx context.Context, activityID uint, ref Reference) ([]assignment.Annotation, error)

	UpsertActivityAssociation(ctx context.Context, activityID uint, kind AssociationKind, id uint) error
	DeleteActivityAssociation(ctx context.Context, activityID uint, kind AssociationKind, id uint) error
}
