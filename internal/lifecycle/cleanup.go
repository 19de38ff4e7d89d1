// Package lifecycle persists annotation assignments and releases activity
// associations that no other annotation of the activity still uses.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/logger"
	"github.com/evalgrid/postit/internal/pending"
	"github.com/evalgrid/postit/internal/store"
)

var (
	// ErrStoreWriteFailed marks a save or delete the store rejected.
	ErrStoreWriteFailed = errors.NewStd("store write failed")
	// ErrOrphanCleanupFailed marks a failed reference check or association release.
	ErrOrphanCleanupFailed = errors.NewStd("orphan cleanup failed")
)

// Association actions reported to the Recorder.
const (
	ActionInserted = "inserted"
	ActionReleased = "released"
	ActionKept     = "kept"
)

// Recorder receives cleanup metrics.
type Recorder interface {
	RecordAssociation(kind, action string)
	RecordLifecycle(operation, status string, seconds float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordAssociation(string, string)        {}
func (nopRecorder) RecordLifecycle(string, string, float64) {}

// Cleanup runs save and delete against a store.
type Cleanup struct {
	store store.Store
	log   logger.Logger
	rec   Recorder
}

// Option configures Cleanup.
type Option func(*Cleanup)

// WithLogger sets the logger; Cleanup logs under the "lifecycle" module.
func WithLogger(l logger.Logger) Option {
	return func(c *Cleanup) { c.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Cleanup) {
		if r != nil {
			c.rec = r
		}
	}
}

// New returns a Cleanup over s.
func New(s store.Store, opts ...Option) *Cleanup {
	c := &Cleanup{store: s, rec: nopRecorder{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewSlogLogger(nil, logger.LogLevelError, nil)
	}
	c.log = c.log.Module("lifecycle")
	return c
}

// SaveResult reports what a successful save did.
type SaveResult struct {
	CriteriaInserted  []uint
	PracticesInserted []uint
	// ReconcileErr is set when association reconciliation failed after the
	// annotation itself was written. The save is not rolled back.
	ReconcileErr error
}

// Save writes a's assignment fields, then makes sure every criterion and
// practice in play in maps is associated with activityID. Nothing is
// removed here. A failed write returns an error wrapping
// ErrStoreWriteFailed; a failed reconciliation is logged and reported in
// the result only.
func (c *Cleanup) Save(ctx context.Context, a assignment.Annotation, activityID uint, maps *pending.Maps) (SaveResult, error) {
	start := time.Now()
	log := c.log.WithContext(ctx).With(
		logger.Uint64("annotation_id", uint64(a.ID)),
		logger.Uint64("activity_id", uint64(activityID)))

	if err := c.store.SaveAnnotation(ctx, a.ID, a.Fields()); err != nil {
		c.rec.RecordLifecycle("save", "error", time.Since(start).Seconds())
		log.Warn("annotation save rejected", logger.Error(err))
		return SaveResult{}, errors.New(fmt.Errorf("%w: annotation %d: %w", ErrStoreWriteFailed, a.ID, err)).
			Component("lifecycle").
			Category(errors.CategoryStoreWrite).
			AnnotationContext(a.ID, activityID).
			Priority(errors.PriorityMedium).
			Timing("save_annotation", time.Since(start)).
			Build()
	}

	var result SaveResult
	if maps != nil {
		var errs []error
		result.CriteriaInserted, errs = c.reconcile(ctx, activityID, store.KindCriterion, maps.ValuesDistinctNonNull(store.KindCriterion), errs)
		result.PracticesInserted, errs = c.reconcile(ctx, activityID, store.KindPractice, maps.ValuesDistinctNonNull(store.KindPractice), errs)
		if len(errs) > 0 {
			result.ReconcileErr = errors.New(errors.Join(errs...)).
				Component("lifecycle").
				Category(errors.CategoryReconcile).
				AnnotationContext(a.ID, activityID).
				Context("operation", "reconcile_associations").
				Build()
			log.Warn("association reconcile incomplete", logger.Error(result.ReconcileErr))
		}
	}

	status := "success"
	if result.ReconcileErr != nil {
		status = "partial"
	}
	c.rec.RecordLifecycle("save", status, time.Since(start).Seconds())
	log.Debug("annotation saved",
		logger.Int("criteria_in_play", len(result.CriteriaInserted)),
		logger.Int("practices_in_play", len(result.PracticesInserted)))
	return result, nil
}

// reconcile upserts each id and collects failures into errs.
func (c *Cleanup) reconcile(ctx context.Context, activityID uint, kind store.AssociationKind, ids []uint, errs []error) ([]uint, []error) {
	var done []uint
	for _, id := range ids {
		if err := c.store.UpsertActivityAssociation(ctx, activityID, kind, id); err != nil {
			errs = append(errs, fmt.Errorf("upsert %s %d: %w", kind, id, err))
			continue
		}
		c.rec.RecordAssociation(string(kind), ActionInserted)
		done = append(done, id)
	}
	return done, errs
}

// DeleteResult reports which associations a delete released.
type DeleteResult struct {
	CriterionReleased bool
	PracticeReleased  bool
	UsedFallback      bool // siblings were found by scanning the in-memory annotations
}

// Delete removes a and releases its criterion and practice associations
// when no other annotation of activityID references them. The steps run in
// a fixed order: criterion check and release, practice check and release,
// then the row delete. A failure before the row delete returns an error
// wrapping ErrOrphanCleanupFailed and leaves the row in place.
//
// inMemory is scanned instead of the store when the store cannot list
// referencing annotations.
func (c *Cleanup) Delete(ctx context.Context, a assignment.Annotation, activityID uint, inMemory []assignment.Annotation) (DeleteResult, error) {
	start := time.Now()
	log := c.log.WithContext(ctx).With(
		logger.Uint64("annotation_id", uint64(a.ID)),
		logger.Uint64("activity_id", uint64(activityID)))

	var result DeleteResult
	steps := []struct {
		kind     store.AssociationKind
		id       *uint
		ref      store.Reference
		released *bool
	}{
		{store.KindCriterion, a.CriterionID, store.Reference{CriterionID: a.CriterionID}, &result.CriterionReleased},
		{store.KindPractice, a.PracticeID, store.Reference{PracticeID: a.PracticeID}, &result.PracticeReleased},
	}

	for _, step := range steps {
		if step.id == nil || *step.id == 0 {
			continue
		}
		released, fallback, err := c.release(ctx, a.ID, activityID, step.kind, *step.id, step.ref, inMemory)
		result.UsedFallback = result.UsedFallback || fallback
		if err != nil {
			c.rec.RecordLifecycle("delete", "error", time.Since(start).Seconds())
			log.Error("orphan cleanup failed",
				logger.String("kind", string(step.kind)),
				logger.Uint64("id", uint64(*step.id)),
				logger.Error(err))
			return result, errors.New(fmt.Errorf("%w: %w", ErrOrphanCleanupFailed, err)).
				Component("lifecycle").
				Category(errors.CategoryOrphanCleanup).
				AnnotationContext(a.ID, activityID).
				Priority(errors.PriorityHigh).
				Timing("release_"+string(step.kind), time.Since(start)).
				Build()
		}
		*step.released = released
	}

	if err := c.store.DeleteAnnotation(ctx, a.ID); err != nil {
		c.rec.RecordLifecycle("delete", "error", time.Since(start).Seconds())
		log.Warn("annotation delete rejected", logger.Error(err))
		return result, errors.New(fmt.Errorf("%w: annotation %d: %w", ErrStoreWriteFailed, a.ID, err)).
			Component("lifecycle").
			Category(errors.CategoryStoreWrite).
			AnnotationContext(a.ID, activityID).
			Priority(errors.PriorityMedium).
			Timing("delete_annotation", time.Since(start)).
			Build()
	}

	c.rec.RecordLifecycle("delete", "success", time.Since(start).Seconds())
	log.Info("annotation deleted",
		logger.Bool("criterion_released", result.CriterionReleased),
		logger.Bool("practice_released", result.PracticeReleased),
		logger.Bool("fallback_scan", result.UsedFallback))
	return result, nil
}

// release deletes the association for id unless a sibling still uses it.
func (c *Cleanup) release(ctx context.Context, annotationID, activityID uint, kind store.AssociationKind, id uint, ref store.Reference, inMemory []assignment.Annotation) (released, fallback bool, err error) {
	siblings, err := c.store.ListAnnotationsReferencing(ctx, activityID, ref)
	if errors.Is(err, store.ErrQueryUnsupported) {
		fallback = true
		siblings, err = store.FilterReferencing(inMemory, activityID, ref, annotationID), nil
	}
	if err != nil {
		return false, fallback, fmt.Errorf("reference check for %s %d: %w", kind, id, err)
	}

	for _, s := range siblings {
		if s.ID != annotationID {
			c.rec.RecordAssociation(string(kind), ActionKept)
			c.log.Debug("association kept, still referenced",
				logger.String("kind", string(kind)),
				logger.Uint64("id", uint64(id)),
				logger.Uint64("sibling_id", uint64(s.ID)))
			return false, fallback, nil
		}
	}

	if err := c.store.DeleteActivityAssociation(ctx, activityID, kind, id); err != nil {
		return false, fallback, fmt.Errorf("release %s %d: %w", kind, id, err)
	}
	c.rec.RecordAssociation(string(kind), ActionReleased)
	return true, fallback, nil
}
