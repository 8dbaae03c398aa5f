package infra

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies all pending database migrations from dir.
// A relative dir is resolved by walking up from the working directory.
func RunMigrations(dsn, dir string, logger *slog.Logger) error {
	migrationDir, err := FindMigrationDir(dir)
	if err != nil {
		return err
	}

	m, err := migrate.New("file://"+migrationDir, dsn)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied", "version", version, "dirty", dirty, "dir", migrationDir)
	return nil
}

// FindMigrationDir resolves dir against the working directory and its parents.
func FindMigrationDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	for cur := cwd; ; cur = filepath.Dir(cur) {
		candidate := filepath.Join(cur, dir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		if cur == filepath.Dir(cur) {
			break
		}
	}
	return "", fmt.Errorf("migration dir %q not found above %s", dir, cwd)
}
