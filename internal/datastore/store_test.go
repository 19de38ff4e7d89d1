package datastore

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/conf"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/lifecycle"
	"github.com/evalgrid/postit/internal/logger"
	"github.com/evalgrid/postit/internal/observability/metrics"
	"github.com/evalgrid/postit/internal/pending"
	"github.com/evalgrid/postit/internal/store"
)

type fixture struct {
	store     *GormStore
	rec       *metrics.TestRecorder
	activity  uint
	other     uint
	criterion assignment.Candidate
	practice  assignment.Candidate
}

func setupTestStore(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	mgr, err := NewSQLiteManager(SQLiteConfig{
		Path:   ":memory:",
		Logger: logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize())

	rec := metrics.NewTestRecorder()
	s := NewGormStore(mgr.DB(), WithMetrics(rec))

	cat := s.Catalog()
	grid, err := cat.GetOrCreateDomain(ctx, "Customer care")
	require.NoError(t, err)
	crit, err := cat.GetOrCreateCriterion(ctx, "Politeness", &grid.ID)
	require.NoError(t, err)
	prac, err := cat.GetOrCreatePractice(ctx, "Active listening")
	require.NoError(t, err)
	act, err := cat.GetOrCreateActivity(ctx, "Call 2026-03-02 14:00")
	require.NoError(t, err)
	other, err := cat.GetOrCreateActivity(ctx, "Call 2026-03-02 15:30")
	require.NoError(t, err)

	return &fixture{
		store:     s,
		rec:       rec,
		activity:  act.ID,
		other:     other.ID,
		criterion: assignment.Candidate{ID: crit.ID, Label: crit.Name, DomainID: crit.DomainID},
		practice:  assignment.Candidate{ID: prac.ID, Label: prac.Name},
	}
}

func (f *fixture) create(t *testing.T, activityID uint, criterion, practice bool) assignment.Annotation {
	t.Helper()
	a := assignment.NewAnnotation(0, activityID, "customer asked twice")
	a.SelectedSourcePassage = "could you repeat that"
	if criterion {
		a = assignment.ToggleCriterion(a, f.criterion).Annotation
	}
	if practice {
		a = assignment.TogglePractice(a, f.practice).Annotation
	}
	created, err := f.store.CreateAnnotation(context.Background(), a)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	return created
}

func TestGormStoreSaveAndReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setupTestStore(t)

	a := f.create(t, f.activity, false, false)
	got, err := f.store.GetAnnotation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.Unassigned, got.CriterionLabel)
	assert.Nil(t, got.CriterionID)
	assert.Equal(t, "could you repeat that", got.SelectedSourcePassage)

	a = assignment.ToggleCriterion(a, f.criterion).Annotation
	a = assignment.TogglePractice(a, f.practice).Annotation
	a.StepOverride = assignment.StepPtr(assignment.StepPractice)
	require.NoError(t, f.store.SaveAnnotation(ctx, a.ID, a.Fields()))

	got, err = f.store.GetAnnotation(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Equal(a), "got %+v want %+v", got, a)

	// clearing writes NULLs
	cleared := assignment.ToggleCriterion(a, f.criterion).Annotation
	require.NoError(t, f.store.SaveAnnotation(ctx, a.ID, cleared.Fields()))
	got, err = f.store.GetAnnotation(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CriterionID)
	assert.Nil(t, got.PracticeID)
	assert.Nil(t, got.DomainID)
	assert.Equal(t, assignment.Unassigned, got.PracticeLabel)

	assert.Positive(t, f.rec.GetOperationCount("db_update:annotations", metrics.StatusSuccess))
}

func TestGormStoreNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setupTestStore(t)

	_, err := f.store.GetAnnotation(ctx, 4242)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, errors.IsNotFound(err))

	err = f.store.SaveAnnotation(ctx, 4242, assignment.NewAnnotation(4242, f.activity, "").Fields())
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.NoError(t, f.store.DeleteAnnotation(ctx, 4242), "deleting a missing row succeeds")
}

func TestGormStoreSaveSameValuesTwice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setupTestStore(t)

	a := f.create(t, f.activity, true, false)
	require.NoError(t, f.store.SaveAnnotation(ctx, a.ID, a.Fields()))
	require.NoError(t, f.store.SaveAnnotation(ctx, a.ID, a.Fields()))
}

func TestListAnnotationsReferencing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setupTestStore(t)

	both := f.create(t, f.activity, true, true)
	onlyCriterion := f.create(t, f.activity, true, false)
	f.create(t, f.activity, false, false)
	f.create(t, f.other, true, true)

	got, err := f.store.ListAnnotationsReferencing(ctx, f.activity, store.Reference{CriterionID: &f.criterion.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{both.ID, onlyCriterion.ID}, ids(got))

	got, err = f.store.ListAnnotationsReferencing(ctx, f.activity, store.Reference{PracticeID: &f.practice.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{both.ID}, ids(got))

	got, err = f.store.ListAnnotationsReferencing(ctx, f.activity, store.Reference{
		CriterionID: &f.criterion.ID,
		PracticeID:  &f.practice.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{both.ID, onlyCriterion.ID}, ids(got), "criterion or practice match, same activity only")

	got, err = f.store.ListAnnotationsReferencing(ctx, f.activity, store.Reference{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func ids(as []assignment.Annotation) []uint {
	out := make([]uint, 0, len(as))
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}

func TestActivityAssociations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setupTestStore(t)

	for range 2 {
		require.NoError(t, f.store.UpsertActivityAssociation(ctx, f.activity, store.KindCriterion, f.criterion.ID))
	}
	require.NoError(t, f.store.UpsertActivityAssociation(ctx, f.activity, store.KindPractice, f.practice.ID))

	crit, err := f.store.Associations(ctx, f.activity, store.KindCriterion)
	require.NoError(t, err)
	assert.Equal(t, []uint{f.criterion.ID}, crit)

	require.NoError(t, f.store.DeleteActivityAssociation(ctx, f.activity, store.KindCriterion, f.criterion.ID))
	require.NoError(t, f.store.DeleteActivityAssociation(ctx, f.activity, store.KindCriterion, f.criterion.ID))
	crit, err = f.store.Associations(ctx, f.activity, store.KindCriterion)
	require.NoError(t, err)
	assert.Empty(t, crit)

	prac, err := f.store.Associations(ctx, f.activity, store.KindPractice)
	require.NoError(t, err)
	assert.Equal(t, []uint{f.practice.ID}, prac)

	err = f.store.UpsertActivityAssociation(ctx, f.activity, store.AssociationKind("grid"), 1)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestCreateAnnotationRejectsPracticeWithoutCriterion(t *testing.T) {
	t.Parallel()
	f := setupTestStore(t)

	a := assignment.NewAnnotation(0, f.activity, "")
	a.PracticeID = &f.practice.ID
	_, err := f.store.CreateAnnotation(context.Background(), a)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestLifecycleOnSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setupTestStore(t)

	one := f.create(t, f.activity, false, false)
	two := f.create(t, f.activity, false, false)
	cleanup := lifecycle.New(f.store)

	// annotation two takes the criterion, one takes criterion and practice
	maps := pending.New()
	two = assignment.ToggleCriterion(two, f.criterion).Annotation
	maps.Set(store.KindCriterion, two.ID, two.CriterionID)
	_, err := cleanup.Save(ctx, two, f.activity, maps)
	require.NoError(t, err)

	one = assignment.ToggleCriterion(one, f.criterion).Annotation
	one = assignment.TogglePractice(one, f.practice).Annotation
	maps.Set(store.KindCriterion, one.ID, one.CriterionID)
	maps.Set(store.KindPractice, one.ID, one.PracticeID)
	res, err := cleanup.Save(ctx, one, f.activity, maps)
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	del, err := cleanup.Delete(ctx, one, f.activity, nil)
	require.NoError(t, err)
	assert.False(t, del.CriterionReleased, "annotation two still uses the criterion")
	assert.True(t, del.PracticeReleased)

	crit, err := f.store.Associations(ctx, f.activity, store.KindCriterion)
	require.NoError(t, err)
	assert.Equal(t, []uint{f.criterion.ID}, crit)
	prac, err := f.store.Associations(ctx, f.activity, store.KindPractice)
	require.NoError(t, err)
	assert.Empty(t, prac)

	_, err = f.store.GetAnnotation(ctx, one.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	del, err = cleanup.Delete(ctx, two, f.activity, nil)
	require.NoError(t, err)
	assert.True(t, del.CriterionReleased)
	crit, err = f.store.Associations(ctx, f.activity, store.KindCriterion)
	require.NoError(t, err)
	assert.Empty(t, crit)
}

func TestOpenRejectsBadSettings(t *testing.T) {
	t.Parallel()

	_, err := NewSQLiteManager(SQLiteConfig{})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = Open(&conf.StoreSettings{Driver: "oracle"}, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

// poolRecorder also captures connection pool gauges.
type poolRecorder struct {
	*metrics.TestRecorder
	updates int
	maxConn int
}

func (p *poolRecorder) UpdateConnectionMetrics(_, _, maxConn int) {
	p.updates++
	p.maxConn = maxConn
}

func TestGormStoreReportsConnectionPool(t *testing.T) {
	t.Parallel()
	f := setupTestStore(t)

	rec := &poolRecorder{TestRecorder: metrics.NewTestRecorder()}
	s := NewGormStore(f.store.db, WithMetrics(rec))

	_, err := s.GetAnnotation(context.Background(), 4242)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, s.UpsertActivityAssociation(context.Background(), f.activity, store.KindCriterion, f.criterion.ID))

	assert.Equal(t, 2, rec.updates)
	assert.Equal(t, 1, rec.maxConn, "sqlite runs on a single connection")
}
