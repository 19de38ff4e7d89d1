package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evalgrid/postit/internal/datastore/entities"
)

// Kind selects one of the activity association tables.
type Kind string

const (
	KindCriterion Kind = "criterion"
	KindPractice  Kind = "practice"
)

// AssociationRepository manages activity_criteria and activity_practices.
type AssociationRepository interface {
	// Upsert links targetID to activityID. An existing link is left alone;
	// created reports whether a row was inserted.
	Upsert(ctx context.Context, kind Kind, activityID, targetID uint) (created bool, err error)

	// Delete removes the link. A missing link is not an error.
	Delete(ctx context.Context, kind Kind, activityID, targetID uint) error

	// List returns the linked ids of one kind, ascending.
	List(ctx context.Context, kind Kind, activityID uint) ([]uint, error)
}

type associationRepository struct {
	db *gorm.DB
}

// NewAssociationRepository creates a new AssociationRepository.
func NewAssociationRepository(db *gorm.DB) AssociationRepository {
	return &associationRepository{db: db}
}

// target returns a row for kind and the name of its target column.
func target(kind Kind, activityID, targetID uint) (row any, column string, err error) {
	switch kind {
	case KindCriterion:
		return &entities.ActivityCriterion{ActivityID: activityID, CriterionID: targetID}, "criterion_id", nil
	case KindPractice:
		return &entities.ActivityPractice{ActivityID: activityID, PracticeID: targetID}, "practice_id", nil
	default:
		return nil, "", ErrInvalidInput
	}
}

func (r *associationRepository) Upsert(ctx context.Context, kind Kind, activityID, targetID uint) (bool, error) {
	row, _, err := target(kind, activityID, targetID)
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *associationRepository) Delete(ctx context.Context, kind Kind, activityID, targetID uint) error {
	row, column, err := target(kind, activityID, targetID)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("activity_id = ? AND "+column+" = ?", activityID, targetID).
		Delete(row).Error
}

func (r *associationRepository) List(ctx context.Context, kind Kind, activityID uint) ([]uint, error) {
	row, column, err := target(kind, activityID, 0)
	if err != nil {
		return nil, err
	}
	var ids []uint
	err = r.db.WithContext(ctx).
		Model(row).
		Where("activity_id = ?", activityID).
		Order(column+" ASC").
		Pluck(column, &ids).Error
	return ids, err
}
