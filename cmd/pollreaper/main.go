package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/vncsmyrnk/rankedpoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/rankedpoll/internal/adapters/repository/sqlite"
	"github.com/vncsmyrnk/rankedpoll/internal/config"
	"github.com/vncsmyrnk/rankedpoll/internal/core/ports"
	"github.com/vncsmyrnk/rankedpoll/internal/core/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("pollreaper", os.Args[1:])
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	// Use a timeout for the job so it never hangs on a stuck database.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, purger, err := openPurger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	sweepService := services.NewSweepService(purger)

	logger.Info("starting expired poll sweep")

	n, err := sweepService.SweepExpiredPolls(ctx)
	if err != nil {
		return err
	}

	logger.Info("expired poll sweep completed", "purged", n)
	return nil
}

func openPurger(ctx context.Context, cfg config.Config) (*sql.DB, ports.ExpiredPollPurger, error) {
	if cfg.StoreDriver == config.DriverPostgres {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, postgres.NewPollRepository(db, cfg.PollDuration), nil
	}

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	repo := sqlite.NewPollRepository(db, cfg.PollDuration)
	if err := repo.InitSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}
