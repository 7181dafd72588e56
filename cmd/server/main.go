// Package main is the entry point for the promptcraft API server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (file, env vars, flags)
// 2. Create dependencies (logger, generative client, ...)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/sakif/promptcraft/internal/config"
	"github.com/sakif/promptcraft/internal/genai"
	"github.com/sakif/promptcraft/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// === 1. PARSE FLAGS ===
	// Flags override the config file and the environment; a zero value
	// means "not given".
	var (
		configPath string
		port       int
		dbPath     string
	)
	flagSet := pflag.NewFlagSet("promptcraft", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.IntVar(&port, "port", 0, "port to listen on (default 8080)")
	flagSet.StringVar(&dbPath, "db", "", "SQLite database path (default data/promptcraft.db)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// === 2. LOAD CONFIGURATION ===
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// === 3. SET UP LOGGING ===
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// === 4. DATABASE DIRECTORY ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	if cfg.Database.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dbDir, err)
		}
	}

	// === 5. GENERATIVE MODEL ===
	// Without an API key the server still starts; generation answers 503.
	generator, err := genai.New(cfg.GenAI)
	if err != nil {
		return fmt.Errorf("configuring generative model: %w", err)
	}
	if generator == nil {
		logger.Warn("GENAI_API_KEY not set, generation is disabled")
	} else {
		logger.Info("generative model configured",
			slog.String("provider", cfg.GenAI.Provider),
			slog.String("model", cfg.GenAI.Model),
		)
	}

	// === 6. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger, generator)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}
