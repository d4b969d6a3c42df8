package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/vncsmyrnk/rankedpoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/rankedpoll/internal/config"
)

// Usage: migrations [name]
//
// Without a name every up migration is applied. With a name, the single
// embedded file matching it (for example "create_polls.down") is run.
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		connStr = config.PostgresURL()
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if len(args) == 0 {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		slog.Info("migrations applied")
		return nil
	}

	files := postgres.MigrationNames(args[0])
	if len(files) != 1 {
		return fmt.Errorf("expected one migration matching %q, found %d", args[0], len(files))
	}

	content, err := postgres.MigrationContent(files[0])
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute %s: %w", files[0], err)
	}

	slog.Info("migration file executed", "file", files[0])
	return nil
}
