package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evalgrid/postit/cmd/migrate"
	"github.com/evalgrid/postit/cmd/replay"
	"github.com/evalgrid/postit/cmd/seed"
	"github.com/evalgrid/postit/cmd/show"
	"github.com/evalgrid/postit/cmd/version"
	"github.com/evalgrid/postit/internal/app"
	"github.com/evalgrid/postit/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *app.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "postit",
		Short:         "Post-it assignment workflow CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, &configFile)

	versionCmd := version.Command(ctx)
	rootCmd.AddCommand(
		migrate.Command(ctx),
		seed.Command(ctx),
		replay.Command(ctx),
		show.Command(ctx),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no configuration
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(ctx, configFile, cmd)
	}

	return rootCmd
}

// initialize loads settings, letting command-line flags take precedence,
// and sets up logging, metrics and error reporting.
func initialize(ctx *app.Context, configFile string, cmd *cobra.Command) error {
	settings, err := conf.LoadWithFlags(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	ctx.Settings = settings

	if err := ctx.Setup(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to config file (default: ./config.yaml or ~/.config/postit/config.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
}
