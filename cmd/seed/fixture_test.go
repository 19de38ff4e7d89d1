package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/catalog"
	"github.com/evalgrid/postit/internal/datastore"
	"github.com/evalgrid/postit/internal/store"
)

func newTarget(t *testing.T) (*datastore.GormStore, *catalog.Catalog) {
	t.Helper()
	m, err := datastore.NewSQLiteManager(datastore.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, m.Initialize())
	t.Cleanup(func() { _ = m.Close() })

	st := datastore.NewGormStore(m.DB())
	return st, catalog.New(st.Catalog(), time.Minute)
}

func TestApplyFixture(t *testing.T) {
	ctx := context.Background()
	st, cat := newTarget(t)

	f, err := ReadFixtureFile("testdata/fixture.yaml")
	require.NoError(t, err)

	rep, err := Apply(ctx, st, cat, f)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Domains)
	assert.Equal(t, 3, rep.Criteria)
	assert.Equal(t, 2, rep.Practices)
	require.Len(t, rep.Activities, 1)
	activity := rep.Activities[0]
	require.Len(t, activity.Annotations, 3)

	listening, err := cat.FindCriterion(ctx, "Active listening")
	require.NoError(t, err)
	require.NotNil(t, listening.DomainID)

	second, err := st.GetAnnotation(ctx, activity.Annotations[1])
	require.NoError(t, err)
	assert.Equal(t, listening.ID, assignment.Deref(second.CriterionID))
	assert.Equal(t, "Active listening", second.CriterionLabel)
	assert.Equal(t, listening.DomainID, second.DomainID)
	assert.Equal(t, "Rephrase the request", second.PracticeLabel)
	assert.Equal(t, "Let me stop you there", second.SelectedSourcePassage)

	third, err := st.GetAnnotation(ctx, activity.Annotations[2])
	require.NoError(t, err)
	assert.Equal(t, "Réactivité", third.CriterionLabel)
	assert.Nil(t, third.DomainID)
	require.NotNil(t, third.StepOverride)
	assert.Equal(t, assignment.StepContext, *third.StepOverride)

	criteria, err := st.Associations(ctx, activity.ID, store.KindCriterion)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{listening.ID, assignment.Deref(third.CriterionID)}, criteria)
	practices, err := st.Associations(ctx, activity.ID, store.KindPractice)
	require.NoError(t, err)
	assert.Equal(t, []uint{assignment.Deref(second.PracticeID)}, practices)
}

func TestApplyTwiceReusesCatalog(t *testing.T) {
	ctx := context.Background()
	st, cat := newTarget(t)
	f, err := ReadFixtureFile("testdata/fixture.yaml")
	require.NoError(t, err)

	first, err := Apply(ctx, st, cat, f)
	require.NoError(t, err)
	second, err := Apply(ctx, st, cat, f)
	require.NoError(t, err)

	assert.Equal(t, first.Activities[0].ID, second.Activities[0].ID)
	criteria, err := st.Catalog().ListCriteria(ctx)
	require.NoError(t, err)
	assert.Len(t, criteria, 3)

	all, err := st.ListAnnotations(ctx, first.Activities[0].ID)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestApplyRejectsBadAnnotations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "practice without criterion",
			doc: `
practices: [Offer a callback]
activities:
  - name: Call
    annotations:
      - text: x
        practice: Offer a callback
`,
		},
		{
			name: "unknown criterion",
			doc: `
activities:
  - name: Call
    annotations:
      - text: x
        criterion: Empathy
`,
		},
		{
			name: "unknown step",
			doc: `
activities:
  - name: Call
    annotations:
      - text: x
        step: review
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, cat := newTarget(t)
			f, err := ReadFixture(strings.NewReader(tt.doc))
			require.NoError(t, err)

			_, err = Apply(context.Background(), st, cat, f)
			assert.Error(t, err)
		})
	}
}

func TestReadFixtureRejectsUnknownKeys(t *testing.T) {
	_, err := ReadFixture(strings.NewReader("grids: []\n"))
	assert.Error(t, err)
}
