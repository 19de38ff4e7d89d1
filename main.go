package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/evalgrid/postit/cmd"
	"github.com/evalgrid/postit/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx := app.NewContext(nil)
	rootCmd := cmd.RootCommand(appCtx)

	err := rootCmd.ExecuteContext(ctx)
	if cerr := appCtx.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
