//go:build integration && mysql

// Run with: go test -tags="integration,mysql" ./internal/datastore/...
// Requires a Docker daemon for testcontainers.
package datastore

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/store"
)

func startMySQL(t *testing.T) *MySQLManager {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("postit_test"),
		tcmysql.WithUsername("postit"),
		tcmysql.WithPassword("postit"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	mapped, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	mgr, err := NewMySQLManager(&MySQLConfig{
		Host:     host,
		Port:     port,
		Username: "postit",
		Password: "postit",
		Database: "postit_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize())
	return mgr
}

func TestMySQLStore(t *testing.T) {
	ctx := context.Background()
	mgr := startMySQL(t)
	assert.True(t, mgr.IsMySQL())

	s := NewGormStore(mgr.DB())
	act, err := s.Catalog().GetOrCreateActivity(ctx, "Call 1")
	require.NoError(t, err)
	crit, err := s.Catalog().GetOrCreateCriterion(ctx, "Politeness", nil)
	require.NoError(t, err)

	a, err := s.CreateAnnotation(ctx, assignment.NewAnnotation(0, act.ID, "hold music"))
	require.NoError(t, err)
	a = assignment.ToggleCriterion(a, assignment.Candidate{ID: crit.ID, Label: crit.Name}).Annotation

	require.NoError(t, s.SaveAnnotation(ctx, a.ID, a.Fields()))
	// unchanged rows must not look missing
	require.NoError(t, s.SaveAnnotation(ctx, a.ID, a.Fields()))

	for range 2 {
		require.NoError(t, s.UpsertActivityAssociation(ctx, act.ID, store.KindCriterion, crit.ID))
	}
	ids, err := s.Associations(ctx, act.ID, store.KindCriterion)
	require.NoError(t, err)
	assert.Equal(t, []uint{crit.ID}, ids)

	refs, err := s.ListAnnotationsReferencing(ctx, act.ID, store.Reference{CriterionID: &crit.ID})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.True(t, refs[0].Equal(a))
}
