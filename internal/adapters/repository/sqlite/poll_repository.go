package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
)

//go:embed schema.sql
var schema string

// keyPattern restricts the object keys spliced into JSON paths.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Open opens a SQLite database at path. All access goes through a single
// connection so writers never contend for the file lock.
func Open(path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

type PollRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

type Option func(*PollRepository)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(r *PollRepository) {
		r.now = now
	}
}

func NewPollRepository(db *sql.DB, ttl time.Duration, opts ...Option) *PollRepository {
	r := &PollRepository{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PollRepository) InitSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *PollRepository) CreatePoll(ctx context.Context, poll *domain.Poll) error {
	poll.Normalize()
	doc, err := json.Marshal(poll)
	if err != nil {
		return fmt.Errorf("failed to encode poll: %w", err)
	}

	now := r.now()
	query := `INSERT INTO polls (id, doc, created_at, expires_at) VALUES (?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, poll.ID, string(doc), now.UnixMilli(), now.Add(r.ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: failed to insert poll: %w", domain.ErrStoreFailure, err)
	}
	return nil
}

func (r *PollRepository) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	query := `SELECT doc FROM polls WHERE id = ? AND expires_at > ?`

	var doc string
	err := r.db.QueryRowContext(ctx, query, pollID, r.now().UnixMilli()).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("%w: failed to get poll: %w", domain.ErrStoreFailure, err)
	}

	var poll domain.Poll
	if err := json.Unmarshal([]byte(doc), &poll); err != nil {
		return nil, fmt.Errorf("%w: failed to decode poll: %w", domain.ErrStoreFailure, err)
	}
	poll.Normalize()
	return &poll, nil
}

func (r *PollRepository) SetParticipant(ctx context.Context, pollID, userID, name string) error {
	return r.setPath(ctx, "set participant", pollID, "participants", userID, name)
}

func (r *PollRepository) DeleteParticipant(ctx context.Context, pollID, userID string) error {
	return r.removePath(ctx, "delete participant", pollID, "participants", userID)
}

func (r *PollRepository) SetNomination(ctx context.Context, pollID, nominationID string, nomination domain.Nomination) error {
	return r.setPath(ctx, "set nomination", pollID, "nominations", nominationID, nomination)
}

func (r *PollRepository) DeleteNomination(ctx context.Context, pollID, nominationID string) error {
	return r.removePath(ctx, "delete nomination", pollID, "nominations", nominationID)
}

func (r *PollRepository) SetRankings(ctx context.Context, pollID, userID string, ballot domain.Ballot) error {
	return r.setPath(ctx, "set rankings", pollID, "rankings", userID, ballot)
}

func (r *PollRepository) MarkStarted(ctx context.Context, pollID string) error {
	return r.update(ctx, "mark started", pollID, `json_set(doc, '$.hasStarted', json('true'))`)
}

func (r *PollRepository) SetResults(ctx context.Context, pollID string, results domain.Results) error {
	if results == nil {
		results = domain.Results{}
	}
	value, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return r.update(ctx, "set results", pollID, `json_set(doc, '$.results', json(?))`, string(value))
}

func (r *PollRepository) DeletePoll(ctx context.Context, pollID string) error {
	query := `DELETE FROM polls WHERE id = ? AND expires_at > ?`
	res, err := r.db.ExecContext(ctx, query, pollID, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: failed to delete poll: %w", domain.ErrStoreFailure, err)
	}
	return requireRow(res)
}

func (r *PollRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM polls WHERE expires_at <= ?`, r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to purge polls: %w", domain.ErrStoreFailure, err)
	}
	return res.RowsAffected()
}

func (r *PollRepository) setPath(ctx context.Context, op, pollID, field, key string, value any) error {
	path, err := memberPath(field, key)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", field, err)
	}
	return r.update(ctx, op, pollID, `json_set(doc, ?, json(?))`, path, string(encoded))
}

func (r *PollRepository) removePath(ctx context.Context, op, pollID, field, key string) error {
	path, err := memberPath(field, key)
	if err != nil {
		return err
	}
	return r.update(ctx, op, pollID, `json_remove(doc, ?)`, path)
}

// update rewrites one path of a live poll document in a single statement.
func (r *PollRepository) update(ctx context.Context, op, pollID, expr string, args ...any) error {
	query := `UPDATE polls SET doc = ` + expr + ` WHERE id = ? AND expires_at > ?`
	args = append(args, pollID, r.now().UnixMilli())

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to %s: %w", domain.ErrStoreFailure, op, err)
	}
	return requireRow(res)
}

func memberPath(field, key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: malformed %s key", domain.ErrValidation, field)
	}
	return `$.` + field + `."` + key + `"`, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreFailure, err)
	}
	if n == 0 {
		return domain.ErrPollNotFound
	}
	return nil
}
