package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/logger"
)

type command func(m *migrate.Migrate, args []string) error

var commands = map[string]command{
	"up":      up,
	"down":    down,
	"force":   force,
	"version": version,
}

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q: %w", args[0], usage())
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	m, err := migrate.New(database.MigrationsPath, database.NewConfig(cfg).URL())
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err := errors.Join(srcErr, dbErr); err != nil {
			logger.Get().Warnf("Failed to close migrate: %v", err)
		}
	}()

	return cmd(m, args[1:])
}

func usage() error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("usage: migrate <%s> [N]", strings.Join(names, "|"))
}

// intArg parses the optional numeric argument, returning def when absent.
func intArg(args []string, def int, name string) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, args[0])
	}
	return n, nil
}

// up applies all pending migrations, or the next N when given.
func up(m *migrate.Migrate, args []string) error {
	steps, err := intArg(args, 0, "step count")
	if err != nil {
		return err
	}
	if steps > 0 {
		err = m.Steps(steps)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return version(m, nil)
}

func down(m *migrate.Migrate, args []string) error {
	steps, err := intArg(args, 1, "step count")
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	logger.Get().Infof("Rolled back %d migration(s)", steps)
	return nil
}

// force marks a version clean after a failed migration was fixed by hand.
func force(m *migrate.Migrate, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: migrate force <version>")
	}
	v, err := intArg(args, 0, "version")
	if err != nil {
		return err
	}
	if err := m.Force(v); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}
	logger.Get().Infof("Forced schema version to %d", v)
	return nil
}

func version(m *migrate.Migrate, _ []string) error {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Get().Info("No migrations applied")
		return nil
	case err != nil:
		return fmt.Errorf("failed to read version: %w", err)
	}
	logger.Get().Infow("Schema version", "version", v, "dirty", dirty)
	return nil
}
