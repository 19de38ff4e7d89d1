package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/evalgrid/postit/internal/datastore/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=ON"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(entities.All()...))
	return db
}

func TestCatalogGetOrCreateIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewCatalogRepository(setupTestDB(t))

	grid, err := repo.GetOrCreateDomain(ctx, "Sales")
	require.NoError(t, err)
	first, err := repo.GetOrCreateCriterion(ctx, "  Greeting ", &grid.ID)
	require.NoError(t, err)
	again, err := repo.GetOrCreateCriterion(ctx, "Greeting", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Greeting", again.Name)
	require.NotNil(t, again.DomainID, "existing criterion keeps its grid")
	assert.Equal(t, grid.ID, *again.DomainID)

	_, err = repo.GetOrCreatePractice(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	all, err := repo.ListCriteria(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCatalogNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewCatalogRepository(setupTestDB(t))

	_, err := repo.GetCriterion(ctx, 7)
	assert.ErrorIs(t, err, ErrCriterionNotFound)
	_, err = repo.GetPractice(ctx, 7)
	assert.ErrorIs(t, err, ErrPracticeNotFound)
	_, err = repo.GetActivity(ctx, 7)
	assert.ErrorIs(t, err, ErrActivityNotFound)
}

func TestAnnotationRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)
	catalog := NewCatalogRepository(db)
	repo := NewAnnotationRepository(db)

	act, err := catalog.GetOrCreateActivity(ctx, "Chat 118")
	require.NoError(t, err)
	crit, err := catalog.GetOrCreateCriterion(ctx, "Empathy", nil)
	require.NoError(t, err)

	a := &entities.Annotation{ActivityID: act.ID, Text: "long silence", CriterionLabel: "Unassigned", PracticeLabel: "Unassigned"}
	require.NoError(t, repo.Create(ctx, a))
	require.NotZero(t, a.ID)

	require.NoError(t, repo.UpdateAssignment(ctx, a.ID, &entities.Annotation{
		CriterionID:    &crit.ID,
		CriterionLabel: crit.Name,
		PracticeLabel:  "Unassigned",
	}))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CriterionID)
	assert.Equal(t, crit.ID, *got.CriterionID)
	assert.Equal(t, "long silence", got.Text, "text is not an assignment column")

	refs, err := repo.ListReferencing(ctx, act.ID, &crit.ID, nil)
	require.NoError(t, err)
	assert.Len(t, refs, 1)

	err = repo.UpdateAssignment(ctx, 999, &entities.Annotation{})
	assert.ErrorIs(t, err, ErrAnnotationNotFound)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), ErrAnnotationNotFound)
	_, err = repo.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrAnnotationNotFound)

	assert.ErrorIs(t, repo.Create(ctx, &entities.Annotation{}), ErrInvalidInput)
}

func TestAssociationUpsertReportsCreation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)
	catalog := NewCatalogRepository(db)
	repo := NewAssociationRepository(db)

	act, err := catalog.GetOrCreateActivity(ctx, "Call 9")
	require.NoError(t, err)
	prac, err := catalog.GetOrCreatePractice(ctx, "Rephrase")
	require.NoError(t, err)

	created, err := repo.Upsert(ctx, KindPractice, act.ID, prac.ID)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Upsert(ctx, KindPractice, act.ID, prac.ID)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = repo.Upsert(ctx, Kind("grid"), act.ID, prac.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = repo.Upsert(ctx, KindPractice, act.ID, prac.ID+100)
	assert.Error(t, err, "foreign key enforced")
}
