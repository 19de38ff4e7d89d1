// Package replay provides the replay command, which drives an assignment
// session through a YAML script against the configured store.
package replay

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evalgrid/postit/internal/app"
	"github.com/evalgrid/postit/internal/logger"
	"github.com/evalgrid/postit/internal/session"
	"github.com/evalgrid/postit/internal/workflow"
)

// replayEpoch starts the replay clock so output does not depend on wall time.
var replayEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Command creates and returns the replay command
func Command(ctx *app.Context) *cobra.Command {
	var dumpMetrics bool

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Drive an assignment session through a scripted sequence of actions",
		Long: `Replay runs the selections, toggles, navigation, saves and deletes of a
script on one activity and prints the workflow step state after each action.
Time only moves on "wait" actions, so auto-advance timing is reproducible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := ReadScriptFile(args[0])
			if err != nil {
				return err
			}
			st, err := ctx.Store(cmd.Context())
			if err != nil {
				return err
			}
			cat, err := ctx.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := st.Catalog().GetActivity(cmd.Context(), script.Activity); err != nil {
				return fmt.Errorf("activity %d: %w", script.Activity, err)
			}
			annotations, err := st.ListAnnotations(cmd.Context(), script.Activity)
			if err != nil {
				return err
			}

			clock := workflow.NewManualScheduler(replayEpoch)
			opts := append(ctx.SessionOptions(), session.WithClock(clock), session.WithScheduler(clock))
			sess := session.New(script.Activity, st, ctx.SessionConfig(), opts...)
			defer sess.Close()
			if err := sess.Track(annotations...); err != nil {
				return err
			}

			ctx.Log("replay").Info("replay started",
				logger.String("script", args[0]),
				logger.String("session_id", sess.ID()),
				logger.Uint64("activity_id", uint64(script.Activity)),
				logger.Int("actions", len(script.Actions)))

			out := cmd.OutOrStdout()
			runErr := NewRunner(sess, cat, clock, out).Run(cmd.Context(), script)

			if dumpMetrics && ctx.Metrics != nil {
				fmt.Fprintln(out)
				if err := ctx.Metrics.WriteText(out); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dumpMetrics, "metrics", false, "Print gathered metrics after the run")

	return cmd
}
