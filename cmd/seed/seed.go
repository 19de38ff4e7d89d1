// Package seed provides the seed command, which loads grids, criteria,
// practices, activities and post-its from a YAML fixture.
package seed

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evalgrid/postit/internal/app"
	"github.com/evalgrid/postit/internal/logger"
)

// Command creates and returns the seed command
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load catalog entries and annotations from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ReadFixtureFile(args[0])
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

			rep, err := Apply(cmd.Context(), st, cat, f)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}

			ctx.Log("seed").Info("fixture loaded",
				logger.String("file", args[0]),
				logger.Int("domains", rep.Domains),
				logger.Int("criteria", rep.Criteria),
				logger.Int("practices", rep.Practices),
				logger.Int("activities", len(rep.Activities)))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d domains, %d criteria, %d practices\n", rep.Domains, rep.Criteria, rep.Practices)
			for _, a := range rep.Activities {
				fmt.Fprintf(out, "activity %d %q: annotations %v\n", a.ID, a.Name, a.Annotations)
			}
			return nil
		},
	}
}
