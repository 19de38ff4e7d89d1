package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/evalgrid/postit/internal/datastore/entities"
)

// assignmentColumns are the columns UpdateAssignment writes.
var assignmentColumns = []string{
	"criterion_id",
	"criterion_label",
	"domain_id",
	"practice_id",
	"practice_label",
	"step_override",
}

type annotationRepository struct {
	db *gorm.DB
}

// NewAnnotationRepository creates a new AnnotationRepository.
func NewAnnotationRepository(db *gorm.DB) AnnotationRepository {
	return &annotationRepository{db: db}
}

func (r *annotationRepository) Create(ctx context.Context, a *entities.Annotation) error {
	if a == nil || a.ActivityID == 0 {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *annotationRepository) GetByID(ctx context.Context, id uint) (*entities.Annotation, error) {
	var a entities.Annotation
	err := r.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnnotationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *annotationRepository) UpdateAssignment(ctx context.Context, id uint, a *entities.Annotation) error {
	if a == nil || id == 0 {
		return ErrInvalidInput
	}
	result := r.db.WithContext(ctx).
		Model(&entities.Annotation{ID: id}).
		Select(assignmentColumns).
		Updates(a)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// MySQL reports unchanged rows as unaffected
	var n int64
	if err := r.db.WithContext(ctx).Model(&entities.Annotation{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrAnnotationNotFound
	}
	return nil
}

func (r *annotationRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.Annotation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAnnotationNotFound
	}
	return nil
}

func (r *annotationRepository) ListReferencing(ctx context.Context, activityID uint, criterionID, practiceID *uint) ([]*entities.Annotation, error) {
	var out []*entities.Annotation
	if criterionID == nil && practiceID == nil {
		return out, nil
	}

	// criterion and practice matches are OR'ed within the activity
	match := r.db.WithContext(ctx)
	switch {
	case criterionID != nil && practiceID != nil:
		match = match.Where("criterion_id = ?", *criterionID).Or("practice_id = ?", *practiceID)
	case criterionID != nil:
		match = match.Where("criterion_id = ?", *criterionID)
	default:
		match = match.Where("practice_id = ?", *practiceID)
	}

	err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Where(match).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *annotationRepository) ListByActivity(ctx context.Context, activityID uint) ([]*entities.Annotation, error) {
	var out []*entities.Annotation
	err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
