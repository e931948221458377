// Command migration applies the raw archive schema.
//
// Usage:
//
//	matchpulse-migration up
//	matchpulse-migration down 1
//	matchpulse-migration version
//	matchpulse-migration force 1
//	matchpulse-migration goto 1
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/riskibarqy/matchpulse/internal/config"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

var logger = logging.New(logging.Options{Level: logging.LevelInfo, Format: logging.FormatConsole})

func main() {
	_ = godotenv.Load(".env")
	defer func() { _ = logger.Sync() }()

	var migrationsDir string
	root := &cobra.Command{
		Use:          "matchpulse-migration",
		Short:        "Manage the raw feed archive schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&migrationsDir, "dir", "", "migrations directory (default: MIGRATIONS_DIR or ./db/migrations)")

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(migrationsDir, func(m *migrate.Migrate) error {
				if err := ignoreNoChange(m.Up()); err != nil {
					return err
				}
				logger.Info("migrations applied")
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := parseSteps(args)
			if err != nil {
				return err
			}
			return withMigrator(migrationsDir, func(m *migrate.Migrate) error {
				if err := ignoreNoChange(m.Steps(-steps)); err != nil {
					return err
				}
				logger.Info("migrations rolled back", "steps", steps)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(migrationsDir, func(m *migrate.Migrate) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Println("version: none")
					fmt.Println("dirty: false")
					return nil
				}
				if err != nil {
					return fmt.Errorf("read version: %w", err)
				}
				fmt.Printf("version: %d\n", version)
				fmt.Printf("dirty: %t\n", dirty)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(migrationsDir, func(m *migrate.Migrate) error {
				if err := m.Force(version); err != nil {
					return fmt.Errorf("force version %d: %w", version, err)
				}
				logger.Info("version forced", "version", version)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "goto <version>",
		Aliases: []string{"migrate"},
		Short:   "Migrate up or down to a version",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid target version %q: %w", args[0], err)
			}
			return withMigrator(migrationsDir, func(m *migrate.Migrate) error {
				if err := ignoreNoChange(m.Migrate(uint(target))); err != nil {
					return err
				}
				logger.Info("migrated", "version", target)
				return nil
			})
		},
	})

	if err := root.Execute(); err != nil {
		logger.Error("migration failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func withMigrator(dir string, fn func(m *migrate.Migrate) error) error {
	database, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	if database.URL == "" {
		return fmt.Errorf("DB_URL is required")
	}

	migrationsDir, err := resolveMigrationsDir(dir)
	if err != nil {
		return err
	}

	sourceURL := "file://" + filepath.ToSlash(migrationsDir)
	m, err := migrate.New(sourceURL, database.DSN())
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("close migration source", "error", srcErr)
		}
		if dbErr != nil {
			logger.Warn("close migration db", "error", dbErr)
		}
	}()

	logger.Info("migration source", "dir", migrationsDir, "database", database.Name())
	return fn(m)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migration changes")
		return nil
	}
	return err
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid down steps %q: %w", args[0], err)
	}
	if steps <= 0 {
		return 0, fmt.Errorf("down steps must be > 0")
	}
	return steps, nil
}

func parseVersion(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("version must be >= 0")
	}
	return value, nil
}

func resolveMigrationsDir(flagDir string) (string, error) {
	candidates := []string{
		strings.TrimSpace(flagDir),
		strings.TrimSpace(os.Getenv("MIGRATIONS_DIR")),
		"./db/migrations",
		"/app/db/migrations",
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
	}
	return "", fmt.Errorf("migration directory not found (checked --dir, MIGRATIONS_DIR, ./db/migrations, /app/db/migrations)")
}
