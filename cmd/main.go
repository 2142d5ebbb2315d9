package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/badgeidle/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "badgeidle",
		Usage:    "Idle items with card drops remaining until none are left",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := app.Run(ctx, os.Args)
	runner.Close()

	switch {
	case err == nil:
	case errors.Is(err, shared.ErrMissingCredentials):
		logger.Info("no account credentials supplied, nothing to do")
	default:
		logger.Fatalf("application error: %v", err)
	}
}
