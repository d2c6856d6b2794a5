// Package main is the entry point for the fortuneai server.
//
// main stays minimal: read configuration, create the logger, make sure the
// data directory exists, hand everything to internal/server. All actual
// logic lives in imported packages.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/fortuneai/internal/config"
	"github.com/sakif/fortuneai/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.Load()
	if err != nil {
		// A missing required variable gets a precise remediation message
		// instead of a bare error dump.
		var missing *config.MissingVarError
		if errors.As(err, &missing) {
			fmt.Fprintf(os.Stderr, "fortuneai: %s is required. %s\n", missing.Var, missing.Hint)
			os.Exit(1)
		}
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// os.MkdirAll is a no-op when the directory already exists.
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server shuts down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
