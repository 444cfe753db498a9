package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/liamcoop/mbsrules/internal/logger"
)

// migrator is the subset of *migrate.Migrate the commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
}

// databaseURL picks the flag value, then MBSRULES_DATABASE_URL, then DATABASE_URL.
func databaseURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("MBSRULES_DATABASE_URL"); v != "" {
		return v
	}
	return os.Getenv("DATABASE_URL")
}

// run executes one migration command. It returns a short description of what happened.
func run(m migrator, command string, args []string) (string, error) {
	switch command {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			return "No migrations to run (database is up to date)", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to run migrations: %w", err)
		}
		return "Migrations completed successfully", nil

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return "", fmt.Errorf("failed to rollback migrations: %w", err)
		}
		return "Rollback completed successfully", nil

	case "steps":
		n, err := intArg(command, args)
		if err != nil {
			return "", err
		}
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return "", fmt.Errorf("failed to apply %d steps: %w", n, err)
		}
		return fmt.Sprintf("Applied %d steps", n), nil

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return "No migrations applied", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to get version: %w", err)
		}
		return fmt.Sprintf("Current version: %d (dirty: %v)", version, dirty), nil

	case "force":
		version, err := intArg(command, args)
		if err != nil {
			return "", err
		}
		if err := m.Force(version); err != nil {
			return "", fmt.Errorf("failed to force version: %w", err)
		}
		return fmt.Sprintf("Forced version to: %d", version), nil

	default:
		return "", fmt.Errorf("unknown command: %s (use: up, down, steps, version, force)", command)
	}
}

func intArg(command string, args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%s command requires a number: -command %s <n>", command, command)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[0], err)
	}
	return n, nil
}

func main() {
	var dbURL string
	var migrationsPath string
	var command string

	flag.StringVar(&dbURL, "database", "", "Database URL (default: MBSRULES_DATABASE_URL or DATABASE_URL)")
	flag.StringVar(&migrationsPath, "path", "migrations", "Path to migrations directory")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, steps, version, force")
	flag.Parse()

	dbURL = databaseURL(dbURL)
	if dbURL == "" {
		logger.Fatal("Database URL is required. Use -database flag or MBSRULES_DATABASE_URL environment variable")
	}

	logger.Info("Connecting to database", "migrations", migrationsPath, "command", command)

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), dbURL)
	if err != nil {
		logger.Fatal("Failed to create migration instance", "error", err)
	}
	defer m.Close()

	msg, err := run(m, command, flag.Args())
	if err != nil {
		logger.Fatal("Migration command failed", "command", command, "error", err)
	}
	logger.Info(msg)
}
