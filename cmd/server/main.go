package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/vncsmyrnk/rankedpoll/internal/adapters/handler/http"
	"github.com/vncsmyrnk/rankedpoll/internal/adapters/realtime"
	"github.com/vncsmyrnk/rankedpoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/rankedpoll/internal/adapters/repository/sqlite"
	"github.com/vncsmyrnk/rankedpoll/internal/config"
	"github.com/vncsmyrnk/rankedpoll/internal/core/ports"
	"github.com/vncsmyrnk/rankedpoll/internal/core/services"
)

type store interface {
	ports.PollStore
	ports.ExpiredPollPurger
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("server", os.Args[1:])
	if err != nil {
		return err
	}
	if err := cfg.RequireSecret(); err != nil {
		return err
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, pollStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	tokens := services.NewTokenService(cfg.JWTSecret)
	pollService := services.NewPollService(pollStore, tokens, cfg.PollDuration,
		services.WithOperationTimeout(cfg.StoreTimeout),
		services.WithLogger(logger),
	)
	sweepService := services.NewSweepService(pollStore)
	hub := realtime.NewHub(logger)

	handler := http.NewHandler(
		http.NewPollHandler(pollService),
		http.NewSocketHandler(pollService, tokens, hub, cfg.CORSOrigins, logger),
		tokens,
		cfg.CORSOrigins,
	)
	server := &stdhttp.Server{Addr: cfg.Addr(), Handler: handler}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "addr", server.Addr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := sweepService.SweepExpiredPolls(gctx)
				if err != nil {
					logger.Error("sweep failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("expired polls purged", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("gracefully shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (*sql.DB, store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to reach database: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, postgres.NewPollRepository(db, cfg.PollDuration), nil

	default:
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
}
