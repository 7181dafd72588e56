// Command seed creates the demo accounts. Running it twice is harmless:
// accounts that already exist are skipped.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/auth"
	"github.com/sakif/promptcraft/internal/config"
	sqliteRepo "github.com/sakif/promptcraft/internal/repository/sqlite"
	"github.com/sakif/promptcraft/internal/service"
)

const demoPassword = "password123"

var demoUsers = []struct {
	username string
	gender   string
}{
	{"john.doe", "male"},
	{"sally.smith", "female"},
	{"richie.rich", "male"},
	{"bob.rose", "male"},
	{"amanda.brown", "female"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, dbPath string
	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.StringVar(&dbPath, "db", "", "SQLite database path (default data/promptcraft.db)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	logger := cfg.Log.NewLogger(os.Stdout)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	// Seeding never issues tokens, but AuthService needs a token service; a
	// throwaway secret is enough when none is configured.
	secret := cfg.Auth.JWTSecret
	if len(secret) < 16 {
		secret = "seed-only-signing-secret"
	}
	tokens, err := auth.NewTokenService(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(db, db, tokens,
		auth.NewPasswordServiceWithCost(cfg.Auth.BcryptCost), logger)

	ctx := context.Background()
	created := 0
	for _, u := range demoUsers {
		_, err := authService.Register(ctx, service.RegisterInput{
			Username: u.username,
			Email:    u.username + "@promptify.com",
			Password: demoPassword,
			Gender:   u.gender,
		})
		switch {
		case errors.Is(err, apperror.ErrConflict):
			logger.Info("user already exists, skipping", slog.String("username", u.username))
		case err != nil:
			return fmt.Errorf("seeding %s: %w", u.username, err)
		default:
			created++
		}
	}

	logger.Info("seed complete", slog.Int("created", created), slog.Int("total", len(demoUsers)))
	return nil
}
