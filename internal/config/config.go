package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port          int
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	PollDuration  time.Duration
	JWTSecret     string
	CORSOrigins   []string
	StoreTimeout  time.Duration
	SweepInterval time.Duration
	LogLevel      slog.Level
}

// Load reads an optional .env file and then parses args against the
// process environment.
func Load(name string, args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return Parse(name, args, os.Getenv)
}

// Parse builds the configuration. Flags win over environment variables,
// which win over defaults.
func Parse(name string, args []string, getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	var (
		cfg           Config
		port          string
		pollDuration  int
		origins       string
		storeTimeout  string
		sweepInterval string
		logLevel      string
	)

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&port, "port", env("PORT", "8080"), "HTTP listen port")
	fs.StringVar(&cfg.StoreDriver, "store", env("STORE_DRIVER", DriverSQLite), "session store driver (postgres or sqlite)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", getenv("DATABASE_URL"), "PostgreSQL connection URL")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", env("SQLITE_PATH", "polls.db"), "SQLite database file, or :memory:")
	fs.StringVar(&origins, "cors-origins", env("CORS_ORIGINS", "http://localhost:5173"), "comma separated allowed origins")
	fs.StringVar(&storeTimeout, "store-timeout", env("STORE_TIMEOUT", "5s"), "timeout for each poll operation")
	fs.StringVar(&sweepInterval, "sweep-interval", env("SWEEP_INTERVAL", "1m"), "interval between expired poll sweeps")
	fs.StringVar(&logLevel, "log-level", env("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	defaultDuration, err := strconv.Atoi(env("POLL_DURATION", "7200"))
	if err != nil {
		return Config{}, errors.New("invalid POLL_DURATION env variable")
	}
	fs.IntVar(&pollDuration, "poll-duration", defaultDuration, "poll lifetime in seconds")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.Port, err = strconv.Atoi(port)
	if err != nil || cfg.Port <= 0 {
		return Config{}, fmt.Errorf("invalid port %q", port)
	}

	if pollDuration <= 0 {
		return Config{}, errors.New("poll duration must be positive")
	}
	cfg.PollDuration = time.Duration(pollDuration) * time.Second

	if cfg.StoreTimeout, err = time.ParseDuration(storeTimeout); err != nil {
		return Config{}, fmt.Errorf("invalid store timeout: %w", err)
	}
	if cfg.StoreTimeout <= 0 {
		return Config{}, errors.New("store timeout must be positive")
	}
	if cfg.SweepInterval, err = time.ParseDuration(sweepInterval); err != nil {
		return Config{}, fmt.Errorf("invalid sweep interval: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, errors.New("sweep interval must be positive")
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return Config{}, fmt.Errorf("invalid log level: %w", err)
	}

	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = postgresURL(getenv)
		}
	case DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	cfg.JWTSecret = getenv("JWT_SECRET")

	return cfg, nil
}

// RequireSecret reports an error when no token signing secret is set.
// Only commands that issue or verify identity tokens need one.
func (c Config) RequireSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET required")
	}
	return nil
}

// PostgresURL returns the connection URL described by the POSTGRES_*
// variables.
func PostgresURL() string {
	return postgresURL(os.Getenv)
}

func postgresURL(getenv func(string) string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getenv("POSTGRES_USER"),
		getenv("POSTGRES_PASSWORD"),
		getenv("POSTGRES_HOST"),
		getenv("POSTGRES_PORT"),
		getenv("POSTGRES_DB"),
	)
}

// NewLogger returns the JSON logger used by every command.
func (c Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

func (c Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}
