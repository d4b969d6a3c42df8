package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every embedded up migration in file name order. The
// migrations are idempotent, so running them twice is harmless.
func Migrate(ctx context.Context, db *sql.DB) error {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}

	return nil
}

// MigrationNames lists the embedded migration files matching name, for
// the migrations command.
func MigrationNames(name string) []string {
	entries, _ := fs.ReadDir(migrationFiles, "migrations")

	var out []string
	for _, entry := range entries {
		if strings.Contains(entry.Name(), name) {
			out = append(out, entry.Name())
		}
	}
	return out
}

// MigrationContent returns the SQL of one embedded migration file.
func MigrationContent(file string) ([]byte, error) {
	return migrationFiles.ReadFile("migrations/" + file)
}
