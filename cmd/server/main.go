// Package main is the entry point for the Po-it API server.
//
// MAIN PACKAGE IN GO:
// The main package is kept minimal. Its job is to:
//  1. Read configuration (internal/config: defaults, .env, environment)
//  2. Create the logger
//  3. Start the server
//
// All actual logic lives in imported packages (internal/server,
// internal/service, ...). See cmd/poitctl for seeding data and minting
// tokens.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/poit/internal/config"
	"github.com/sakif/poit/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Log levels (from least to most severe): Debug → Info → Warn → Error.
	// LOG_LEVEL=debug also shows one line per listing with page stats.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
