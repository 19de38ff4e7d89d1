package workflow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	politeness      = assignment.Candidate{ID: 5, Label: "Politeness", DomainID: assignment.ID(2)}
	activeListening = assignment.Candidate{ID: 9, Label: "Active listening"}
)

type recorder struct {
	mu      sync.Mutex
	changes []StepChange
	cancels []string
}

func (r *recorder) listen(c StepChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) cancelled(_ uint, reason string) {
	r.cancels = append(r.cancels, reason)
}

func (r *recorder) last() StepChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes[len(r.changes)-1]
}

func newTestController(t *testing.T, cfg Config) (*Controller, *ManualScheduler, *recorder) {
	t.Helper()
	sched := NewManualScheduler(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	rec := &recorder{}
	c := New(cfg,
		WithClock(sched),
		WithScheduler(sched),
		WithListener(rec.listen),
		WithCancelListener(rec.cancelled),
	)
	t.Cleanup(c.Close)
	return c, sched, rec
}

func annotationWith(criterion, practice *uint) assignment.Annotation {
	a := assignment.NewAnnotation(1, 10, "")
	a.CriterionID = criterion
	a.PracticeID = practice
	return a
}

func TestEntryStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a        assignment.Annotation
		expected assignment.Step
	}{
		{"nothing assigned", annotationWith(nil, nil), assignment.StepContext},
		{"criterion only", annotationWith(assignment.ID(5), nil), assignment.StepPractice},
		{"complete", annotationWith(assignment.ID(5), assignment.ID(9)), assignment.StepSummary},
		{"override wins", func() assignment.Annotation {
			a := annotationWith(assignment.ID(5), assignment.ID(9))
			a.StepOverride = assignment.StepPtr(assignment.StepCriterion)
			return a
		}(), assignment.StepCriterion},
		{"invalid override ignored", func() assignment.Annotation {
			a := annotationWith(nil, nil)
			a.StepOverride = assignment.StepPtr(assignment.Step(7))
			return a
		}(), assignment.StepContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, EntryStep(tt.a))
		})
	}
}

func TestEntryStepIgnoresText(t *testing.T) {
	t.Parallel()

	pairs := []struct {
		name      string
		criterion *uint
		practice  *uint
		expected  assignment.Step
	}{
		{"nothing assigned", nil, nil, assignment.StepContext},
		{"criterion only", assignment.ID(5), nil, assignment.StepPractice},
		{"practice only", nil, assignment.ID(9), assignment.StepContext},
		{"complete", assignment.ID(5), assignment.ID(9), assignment.StepSummary},
	}

	for _, p := range pairs {
		t.Run(p.name, func(t *testing.T) {
			t.Parallel()
			blank := annotationWith(p.criterion, p.practice)
			written := annotationWith(p.criterion, p.practice)
			written.Text = "caller was put on hold twice"

			require.NotEqual(t, assignment.CompletionPercentage(blank), assignment.CompletionPercentage(written))
			assert.Equal(t, p.expected, EntryStep(blank))
			assert.Equal(t, EntryStep(blank), EntryStep(written))
		})
	}
}

func TestAccessibility(t *testing.T) {
	t.Parallel()

	empty := annotationWith(nil, nil)
	partial := annotationWith(assignment.ID(5), nil)
	full := annotationWith(assignment.ID(5), assignment.ID(9))

	for _, g := range []Gating{GatingStrict, GatingRelaxed} {
		assert.True(t, Accessible(empty, assignment.StepContext, g))
		assert.True(t, Accessible(empty, assignment.StepCriterion, g))
		assert.False(t, Accessible(empty, assignment.StepPractice, g))
		assert.False(t, Accessible(empty, assignment.StepSummary, g))
		assert.True(t, Accessible(partial, assignment.StepPractice, g))
		assert.True(t, Accessible(full, assignment.StepSummary, g))
	}

	assert.False(t, Accessible(partial, assignment.StepSummary, GatingStrict))
	assert.True(t, Accessible(partial, assignment.StepSummary, GatingRelaxed))
}

func TestEntryStepComputedOncePerAnnotation(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t, DefaultConfig())

	a := annotationWith(nil, nil)
	require.Equal(t, assignment.StepContext, c.Select(a))

	_, err := c.Next()
	require.NoError(t, err)

	// same id, new data: no recomputation
	a.Text = "edited"
	assert.Equal(t, assignment.StepCriterion, c.Select(a))

	// different id: entry step recomputed
	b := annotationWith(assignment.ID(5), nil)
	b.ID = 2
	assert.Equal(t, assignment.StepPractice, c.Select(b))
}

func TestScenarioAssignCriterionThenPractice(t *testing.T) {
	t.Parallel()
	c, sched, rec := newTestController(t, DefaultConfig())

	a := annotationWith(nil, nil)
	require.Equal(t, assignment.StepContext, c.Select(a))

	a = assignment.ToggleCriterion(a, politeness).Annotation
	c.Update(a)
	c.NotifyAssigned(TriggerCriterion)

	assert.True(t, c.HasPendingAdvance())
	assert.Equal(t, assignment.StepContext, c.ActiveStep(), "advance waits for the delay")

	sched.Advance(299 * time.Millisecond)
	assert.Equal(t, assignment.StepContext, c.ActiveStep())

	sched.Advance(time.Millisecond)
	assert.Equal(t, assignment.StepPractice, c.ActiveStep())
	assert.Equal(t, StepChange{
		AnnotationID: 1,
		From:         assignment.StepContext,
		To:           assignment.StepPractice,
		Event:        EventAutoAdvance,
		Source:       SourceAuto,
	}, rec.last())

	a = assignment.TogglePractice(a, activeListening).Annotation
	c.Update(a)
	c.NotifyAssigned(TriggerPractice)
	sched.Advance(time.Second)

	assert.Equal(t, assignment.StepSummary, c.ActiveStep())
	assert.True(t, assignment.IsComplete(a))
	steps := c.Steps()
	for _, s := range steps {
		assert.True(t, s.Accessible, "step %s", s.Step)
		assert.True(t, s.Completed, "step %s", s.Step)
	}
}

func TestNextBlockedWithoutCriterion(t *testing.T) {
	t.Parallel()
	c, _, rec := newTestController(t, DefaultConfig())

	c.Select(annotationWith(nil, nil))
	_, err := c.Next()
	require.NoError(t, err)
	require.Equal(t, assignment.StepCriterion, c.ActiveStep())
	assert.False(t, c.CanProceed())

	before := len(rec.changes)
	step, err := c.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationBlocked)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidationBlocked))
	assert.Equal(t, assignment.StepCriterion, step)
	assert.Len(t, rec.changes, before, "blocked Next emits no change")
}

func TestStepClickInaccessibleRejected(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t, DefaultConfig())

	c.Select(annotationWith(nil, nil))
	step, err := c.GoTo(assignment.StepPractice)

	assert.ErrorIs(t, err, ErrStepInaccessible)
	assert.Equal(t, assignment.StepContext, step)
	assert.Equal(t, assignment.StepContext, c.ActiveStep())

	step, err = c.GoTo(assignment.StepCriterion)
	require.NoError(t, err)
	assert.Equal(t, assignment.StepCriterion, step)
}

func TestUserNavigationCancelsPendingAdvance(t *testing.T) {
	t.Parallel()
	c, sched, rec := newTestController(t, DefaultConfig())

	a := annotationWith(nil, nil)
	c.Select(a)
	_, _ = c.GoTo(assignment.StepCriterion)
	sched.Advance(time.Second) // let the grace window pass

	a = assignment.ToggleCriterion(a, politeness).Annotation
	c.Update(a)
	c.NotifyAssigned(TriggerCriterion)
	require.True(t, c.HasPendingAdvance())

	_, err := c.Back()
	require.NoError(t, err)
	assert.False(t, c.HasPendingAdvance())
	assert.Equal(t, []string{"user navigation"}, rec.cancels)

	sched.Advance(time.Second)
	assert.Equal(t, assignment.StepContext, c.ActiveStep(), "cancelled advance never fires")
	assert.Zero(t, sched.Pending())
}

func TestManualNavigationSuppressesAutoAdvance(t *testing.T) {
	t.Parallel()
	c, sched, _ := newTestController(t, DefaultConfig())

	a := annotationWith(nil, nil)
	c.Select(a)
	_, _ = c.Next()
	assert.True(t, c.IsManualNavigation())

	a = assignment.ToggleCriterion(a, politeness).Annotation
	c.Update(a)
	c.NotifyAssigned(TriggerCriterion)
	assert.False(t, c.HasPendingAdvance())
	assert.Equal(t, assignment.StepCriterion, c.ActiveStep())

	sched.Advance(500 * time.Millisecond)
	assert.False(t, c.IsManualNavigation(), "grace window elapsed")

	c.NotifyAssigned(TriggerCriterion)
	sched.Advance(300 * time.Millisecond)
	assert.Equal(t, assignment.StepPractice, c.ActiveStep())
}

func TestSelectingOtherAnnotationCancelsAdvance(t *testing.T) {
	t.Parallel()
	c, sched, _ := newTestController(t, DefaultConfig())

	a := annotationWith(nil, nil)
	c.Select(a)
	a = assignment.ToggleCriterion(a, politeness).Annotation
	c.Update(a)
	c.NotifyAssigned(TriggerCriterion)

	b := assignment.NewAnnotation(2, 10, "")
	c.Select(b)
	assert.False(t, c.HasPendingAdvance())

	sched.Advance(time.Second)
	assert.Equal(t, assignment.StepContext, c.ActiveStep())
	sel, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, uint(2), sel.ID)
}

func TestAutoAdvanceOnlyForward(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.AutoAdvanceDelay = 0
	c, _, _ := newTestController(t, cfg)

	a := annotationWith(assignment.ID(5), assignment.ID(9))
	require.Equal(t, assignment.StepSummary, c.Select(a))

	// switching criterion on the summary must not move backward
	a.CriterionID = assignment.ID(6)
	c.Update(a)
	c.NotifyAssigned(TriggerCriterion)
	assert.Equal(t, assignment.StepSummary, c.ActiveStep())
}

func TestAutoAdvanceRequiresAccessibleTarget(t *testing.T) {
	t.Parallel()
	c, sched, _ := newTestController(t, DefaultConfig())

	a := annotationWith(nil, nil)
	c.Select(a)
	a = assignment.ToggleCriterion(a, politeness).Annotation
	c.Update(a)
	c.NotifyAssigned(TriggerCriterion)

	// criterion cleared before the timer fires
	a = assignment.ToggleCriterion(a, politeness).Annotation
	c.Update(a)
	assert.False(t, c.HasPendingAdvance())

	sched.Advance(time.Second)
	assert.Equal(t, assignment.StepContext, c.ActiveStep())
}

func TestClearingCriterionRealignsStep(t *testing.T) {
	t.Parallel()
	c, _, rec := newTestController(t, DefaultConfig())

	a := annotationWith(assignment.ID(5), assignment.ID(9))
	a.CriterionLabel = "Politeness"
	require.Equal(t, assignment.StepSummary, c.Select(a))

	out := assignment.ToggleCriterion(a, politeness)
	require.Equal(t, assignment.Cleared, out.Kind)

	assert.Equal(t, assignment.StepCriterion, c.Update(out.Annotation))
	assert.Equal(t, EventRealign, rec.last().Event)
	assert.Equal(t, SourceAuto, rec.last().Source)
}

func TestRelaxedGatingSummaryWithCriterionOnly(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Gating = GatingRelaxed
	c, _, _ := newTestController(t, cfg)

	c.Select(annotationWith(assignment.ID(5), nil))
	step, err := c.GoTo(assignment.StepSummary)
	require.NoError(t, err)
	assert.Equal(t, assignment.StepSummary, step)
	assert.Equal(t, GatingRelaxed, c.Gating())
}

func TestNavigationWithoutSelection(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestController(t, DefaultConfig())

	_, err := c.Next()
	assert.ErrorIs(t, err, ErrNoSelection)
	_, err = c.Back()
	assert.ErrorIs(t, err, ErrNoSelection)
	_, err = c.GoTo(assignment.StepContext)
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.False(t, c.CanProceed())
}

func TestBackAndNextWalk(t *testing.T) {
	t.Parallel()
	c, _, rec := newTestController(t, DefaultConfig())

	c.Select(annotationWith(assignment.ID(5), nil))
	require.Equal(t, assignment.StepPractice, c.ActiveStep())

	step, _ := c.Back()
	assert.Equal(t, assignment.StepCriterion, step)
	step, _ = c.Back()
	assert.Equal(t, assignment.StepContext, step)
	step, _ = c.Back()
	assert.Equal(t, assignment.StepContext, step, "back on context is a no-op")

	step, _ = c.Next()
	assert.Equal(t, assignment.StepCriterion, step)
	step, _ = c.Next()
	assert.Equal(t, assignment.StepPractice, step)
	step, _ = c.Next()
	assert.Equal(t, assignment.StepSummary, step, "Next from practice is unguarded")
	assert.Equal(t, SourceUser, rec.last().Source)
}

func TestSystemTimerAutoAdvance(t *testing.T) {
	t.Parallel()
	done := make(chan struct{})
	c := New(Config{AutoAdvanceDelay: 10 * time.Millisecond, Gating: GatingStrict},
		WithListener(func(sc StepChange) {
			if sc.Event == EventAutoAdvance {
				close(done)
			}
		}))
	defer c.Close()

	a := annotationWith(nil, nil)
	c.Select(a)
	c.Update(assignment.ToggleCriterion(a, politeness).Annotation)
	c.NotifyAssigned(TriggerCriterion)

	testutil.WaitForChannel(t, done, testutil.ShortTestTimeout, "auto-advance did not fire")
	assert.Equal(t, assignment.StepPractice, c.ActiveStep())
}

func TestSystemTimerCancelledDoesNotLeak(t *testing.T) {
	t.Parallel()
	c := New(Config{AutoAdvanceDelay: time.Hour, Gating: GatingStrict})

	a := annotationWith(nil, nil)
	c.Select(a)
	c.Update(assignment.ToggleCriterion(a, politeness).Annotation)
	c.NotifyAssigned(TriggerCriterion)
	require.True(t, c.HasPendingAdvance())

	c.Close()
	assert.False(t, c.HasPendingAdvance())
}
