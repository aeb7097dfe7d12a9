package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"PaperPromoter/internal/app"
	"PaperPromoter/internal/config"
	"PaperPromoter/internal/logging"
)

// Exit codes.
const (
	exitOK             = 0
	exitConfig         = 1
	exitProjectFailure = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	logger := logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return exitConfig
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	summary, err := application.Run(ctx)
	if err != nil {
		logger.Error("application stopped", "error", err)
		return exitConfig
	}

	if summary.Failed > 0 && cfg.Run.FailOnProjectError {
		logger.Warn("run completed with project failures", "failed", summary.Failed, "projects", summary.FailedIDs())
		return exitProjectFailure
	}
	return exitOK
}
