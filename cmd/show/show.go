// Package show provides the show command, which prints how the workflow
// would open an annotation.
package show

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/evalgrid/postit/internal/app"
	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/workflow"
)

// Command creates and returns the show command
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "show <annotation-id>",
		Short: "Show an annotation's entry step, step accessibility and completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 0)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid annotation id %q", args[0])
			}
			st, err := ctx.Store(cmd.Context())
			if err != nil {
				return err
			}
			a, err := st.GetAnnotation(cmd.Context(), uint(id))
			if err != nil {
				return err
			}
			return Write(cmd.OutOrStdout(), a, ctx.SessionConfig().Workflow.Gating)
		},
	}
}

// Write prints a's assignment and how each workflow step treats it.
func Write(w io.Writer, a assignment.Annotation, gating workflow.Gating) error {
	entry := workflow.EntryStep(a)

	lines := []string{
		fmt.Sprintf("annotation %d (activity %d)", a.ID, a.ActivityID),
		fmt.Sprintf("  text:       %q", a.Text),
		fmt.Sprintf("  criterion:  %s", describe(a.CriterionLabel, a.CriterionID)),
		fmt.Sprintf("  practice:   %s", describe(a.PracticeLabel, a.PracticeID)),
		fmt.Sprintf("  complete:   %t (%d%%)", assignment.IsComplete(a), assignment.CompletionPercentage(a)),
		fmt.Sprintf("  entry step: %s", entry),
	}
	if a.StepOverride != nil {
		lines[len(lines)-1] += " (override)"
	}
	for k := assignment.StepContext; k <= assignment.StepSummary; k++ {
		state := "locked"
		if workflow.Accessible(a, k, gating) {
			state = "accessible"
		}
		lines = append(lines, fmt.Sprintf("  %-10s  %s", k.String()+":", state))
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func describe(label string, id *uint) string {
	if id == nil {
		return assignment.Unassigned
	}
	return fmt.Sprintf("%s (#%d)", label, *id)
}
