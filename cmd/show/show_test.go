package show

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/workflow"
)

func TestWriteUnassigned(t *testing.T) {
	var buf bytes.Buffer
	a := assignment.NewAnnotation(4, 2, "Greeting came late")

	require.NoError(t, Write(&buf, a, workflow.GatingStrict))

	out := buf.String()
	assert.Contains(t, out, "annotation 4 (activity 2)")
	assert.Contains(t, out, "criterion:  Unassigned")
	assert.Contains(t, out, "complete:   false (25%)")
	assert.Contains(t, out, "entry step: context\n")
	assert.Contains(t, out, "practice:   locked")
	assert.Contains(t, out, "summary:    locked")
}

func TestWriteGating(t *testing.T) {
	a := assignment.NewAnnotation(4, 2, "")
	a.CriterionID = assignment.ID(7)
	a.CriterionLabel = "Politeness"

	tests := []struct {
		name    string
		gating  workflow.Gating
		summary string
	}{
		{"strict", workflow.GatingStrict, "summary:    locked"},
		{"relaxed", workflow.GatingRelaxed, "summary:    accessible"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, a, tt.gating))

			out := buf.String()
			assert.Contains(t, out, "criterion:  Politeness (#7)")
			assert.Contains(t, out, "entry step: practice")
			assert.Contains(t, out, "practice:   accessible")
			assert.Contains(t, out, tt.summary)
		})
	}
}

func TestWriteOverride(t *testing.T) {
	var buf bytes.Buffer
	a := assignment.NewAnnotation(4, 2, "x")
	a.StepOverride = assignment.StepPtr(assignment.StepCriterion)

	require.NoError(t, Write(&buf, a, workflow.GatingStrict))
	assert.Contains(t, buf.String(), "entry step: criterion (override)")
}
