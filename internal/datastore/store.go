package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/datastore/repository"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/logger"
	"github.com/evalgrid/postit/internal/observability/metrics"
	"github.com/evalgrid/postit/internal/store"
)

// Table names used as metric labels.
const (
	tableAnnotations = "annotations"
	tableCriteria    = "activity_criteria"
	tablePractices   = "activity_practices"
)

// GormStore implements store.Store over the GORM repositories.
type GormStore struct {
	db           *gorm.DB
	annotations  repository.AnnotationRepository
	associations repository.AssociationRepository
	catalog      repository.CatalogRepository
	metrics      metrics.Recorder
	log          logger.Logger
}

// StoreOption configures a GormStore.
type StoreOption func(*GormStore)

// WithMetrics records per-operation counts and durations.
func WithMetrics(r metrics.Recorder) StoreOption {
	return func(s *GormStore) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) StoreOption {
	return func(s *GormStore) { s.log = l }
}

// NewGormStore builds a store on db. The schema must already exist.
func NewGormStore(db *gorm.DB, opts ...StoreOption) *GormStore {
	s := &GormStore{
		db:           db,
		annotations:  repository.NewAnnotationRepository(db),
		associations: repository.NewAssociationRepository(db),
		catalog:      repository.NewCatalogRepository(db),
		metrics:      metrics.NewNoOpRecorder(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = moduleLogger(s.log)
	return s
}

// Catalog exposes the catalog repository for lookups and seeding.
func (s *GormStore) Catalog() repository.CatalogRepository {
	return s.catalog
}

// observe records one statement's metrics.
func (s *GormStore) observe(op, table string, start time.Time, err error) {
	name := op + ":" + table
	s.metrics.RecordDuration(name, time.Since(start).Seconds())
	s.reportPool()
	if err != nil {
		s.metrics.RecordError(name, string(errors.CategoryDatabase))
		return
	}
	s.metrics.RecordOperation(name, metrics.StatusSuccess)
}

// reportPool publishes connection pool stats when the recorder takes them.
func (s *GormStore) reportPool() {
	pr, ok := s.metrics.(metrics.PoolRecorder)
	if !ok {
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	stats := sqlDB.Stats()
	pr.UpdateConnectionMetrics(stats.InUse, stats.Idle, stats.MaxOpenConnections)
}

func (s *GormStore) dbError(err error, operation string, ctx ...any) error {
	b := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)
	for i := 0; i+1 < len(ctx); i += 2 {
		b = b.Context(fmt.Sprint(ctx[i]), ctx[i+1])
	}
	return b.Build()
}

func kindOf(kind store.AssociationKind) (repository.Kind, string, error) {
	switch kind {
	case store.KindCriterion:
		return repository.KindCriterion, tableCriteria, nil
	case store.KindPractice:
		return repository.KindPractice, tablePractices, nil
	default:
		return "", "", errors.Newf("unknown association kind %q", kind).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
}

// GetAnnotation loads one annotation. A missing row matches store.ErrNotFound.
func (s *GormStore) GetAnnotation(ctx context.Context, id uint) (assignment.Annotation, error) {
	start := time.Now()
	e, err := s.annotations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrAnnotationNotFound) {
		s.observe(metrics.OpDbQuery, tableAnnotations, start, nil)
		return assignment.Annotation{}, errors.New(fmt.Errorf("annotation %d: %w", id, store.ErrNotFound)).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("annotation_id", id).
			Build()
	}
	s.observe(metrics.OpDbQuery, tableAnnotations, start, err)
	if err != nil {
		return assignment.Annotation{}, s.dbError(err, "get_annotation", "annotation_id", id)
	}
	return toAssignment(e), nil
}

// SaveAnnotation writes the assignment columns of annotation id.
func (s *GormStore) SaveAnnotation(ctx context.Context, id uint, fields store.AssignmentFields) error {
	start := time.Now()
	err := s.annotations.UpdateAssignment(ctx, id, fieldsEntity(fields))
	s.observe(metrics.OpDbUpdate, tableAnnotations, start, err)
	switch {
	case errors.Is(err, repository.ErrAnnotationNotFound):
		return errors.New(fmt.Errorf("annotation %d: %w", id, store.ErrNotFound)).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("annotation_id", id).
			Build()
	case err != nil:
		return s.dbError(err, "save_annotation", "annotation_id", id)
	}
	return nil
}

// DeleteAnnotation removes annotation id. Deleting a missing row succeeds.
func (s *GormStore) DeleteAnnotation(ctx context.Context, id uint) error {
	start := time.Now()
	err := s.annotations.Delete(ctx, id)
	if errors.Is(err, repository.ErrAnnotationNotFound) {
		s.log.Debug("annotation already gone", logger.Uint64("annotation_id", uint64(id)))
		err = nil
	}
	s.observe(metrics.OpDbDelete, tableAnnotations, start, err)
	if err != nil {
		return s.dbError(err, "delete_annotation", "annotation_id", id)
	}
	return nil
}

// ListAnnotationsReferencing queries siblings in the database.
func (s *GormStore) ListAnnotationsReferencing(ctx context.Context, activityID uint, ref store.Reference) ([]assignment.Annotation, error) {
	start := time.Now()
	rows, err := s.annotations.ListReferencing(ctx, activityID, ref.CriterionID, ref.PracticeID)
	s.observe(metrics.OpDbQuery, tableAnnotations, start, err)
	if err != nil {
		return nil, s.dbError(err, "list_referencing", "activity_id", activityID)
	}
	out := make([]assignment.Annotation, 0, len(rows))
	for _, e := range rows {
		out = append(out, toAssignment(e))
	}
	return out, nil
}

// UpsertActivityAssociation links id to the activity if not yet linked.
func (s *GormStore) UpsertActivityAssociation(ctx context.Context, activityID uint, kind store.AssociationKind, id uint) error {
	k, table, err := kindOf(kind)
	if err != nil {
		return err
	}
	start := time.Now()
	created, err := s.associations.Upsert(ctx, k, activityID, id)
	s.observe(metrics.OpDbInsert, table, start, err)
	if err != nil {
		return s.dbError(err, "upsert_association", "activity_id", activityID, "kind", kind, "id", id)
	}
	if created {
		s.log.Debug("association inserted",
			logger.Uint64("activity_id", uint64(activityID)),
			logger.String("kind", string(kind)),
			logger.Uint64("id", uint64(id)))
	}
	return nil
}

// DeleteActivityAssociation unlinks id from the activity.
func (s *GormStore) DeleteActivityAssociation(ctx context.Context, activityID uint, kind store.AssociationKind, id uint) error {
	k, table, err := kindOf(kind)
	if err != nil {
		return err
	}
	start := time.Now()
	err = s.associations.Delete(ctx, k, activityID, id)
	s.observe(metrics.OpDbDelete, table, start, err)
	if err != nil {
		return s.dbError(err, "delete_association", "activity_id", activityID, "kind", kind, "id", id)
	}
	return nil
}

// CreateAnnotation inserts a new annotation and returns it with its ID.
// Assignment fields are stored as given.
func (s *GormStore) CreateAnnotation(ctx context.Context, a assignment.Annotation) (assignment.Annotation, error) {
	if a.PracticeID != nil && a.CriterionID == nil {
		return assignment.Annotation{}, errors.Newf("practice without criterion").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	e := toEntity(a)
	e.ID = 0
	start := time.Now()
	err := s.annotations.Create(ctx, e)
	s.observe(metrics.OpDbInsert, tableAnnotations, start, err)
	if err != nil {
		return assignment.Annotation{}, s.dbError(err, "create_annotation", "activity_id", a.ActivityID)
	}
	return toAssignment(e), nil
}

// ListAnnotations returns all annotations of an activity ordered by ID.
func (s *GormStore) ListAnnotations(ctx context.Context, activityID uint) ([]assignment.Annotation, error) {
	start := time.Now()
	rows, err := s.annotations.ListByActivity(ctx, activityID)
	s.observe(metrics.OpDbQuery, tableAnnotations, start, err)
	if err != nil {
		return nil, s.dbError(err, "list_annotations", "activity_id", activityID)
	}
	out := make([]assignment.Annotation, 0, len(rows))
	for _, e := range rows {
		out = append(out, toAssignment(e))
	}
	return out, nil
}

// Associations returns the ids linked to an activity.
func (s *GormStore) Associations(ctx context.Context, activityID uint, kind store.AssociationKind) ([]uint, error) {
	k, table, err := kindOf(kind)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	ids, err := s.associations.List(ctx, k, activityID)
	s.observe(metrics.OpDbQuery, table, start, err)
	if err != nil {
		return nil, s.dbError(err, "list_associations", "activity_id", activityID, "kind", kind)
	}
	return ids, nil
}

var _ store.Store = (*GormStore)(nil)
