package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
)

// PollRepository keeps each poll as one JSONB document. Writes use
// jsonb_set and #- on a single path so concurrent writers to different
// fields never overwrite each other.
type PollRepository struct {
	db  *sql.DB
	ttl time.Duration
}

func NewPollRepository(db *sql.DB, ttl time.Duration) *PollRepository {
	return &PollRepository{
		db:  db,
		ttl: ttl,
	}
}

func (r *PollRepository) CreatePoll(ctx context.Context, poll *domain.Poll) error {
	poll.Normalize()
	doc, err := json.Marshal(poll)
	if err != nil {
		return fmt.Errorf("failed to encode poll: %w", err)
	}

	query := `
		INSERT INTO polls (id, doc, expires_at)
		VALUES ($1, $2::jsonb, NOW() + make_interval(secs => $3::double precision))
	`
	_, err = r.db.ExecContext(ctx, query, poll.ID, string(doc), r.ttl.Seconds())
	if err != nil {
		return fmt.Errorf("%w: failed to insert poll: %w", domain.ErrStoreFailure, err)
	}
	return nil
}

func (r *PollRepository) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	query := `
		SELECT doc
		FROM polls
		WHERE id = $1 AND expires_at > NOW()
	`

	var doc []byte
	err := r.db.QueryRowContext(ctx, query, pollID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("%w: failed to get poll: %w", domain.ErrStoreFailure, err)
	}

	var poll domain.Poll
	if err := json.Unmarshal(doc, &poll); err != nil {
		return nil, fmt.Errorf("%w: failed to decode poll: %w", domain.ErrStoreFailure, err)
	}
	poll.Normalize()
	return &poll, nil
}

func (r *PollRepository) SetParticipant(ctx context.Context, pollID, userID, name string) error {
	return r.update(ctx, "set participant", pollID,
		`jsonb_set(doc, ARRAY['participants', $2::text], to_jsonb($3::text))`, userID, name)
}

func (r *PollRepository) DeleteParticipant(ctx context.Context, pollID, userID string) error {
	return r.update(ctx, "delete participant", pollID,
		`doc #- ARRAY['participants', $2::text]`, userID)
}

func (r *PollRepository) SetNomination(ctx context.Context, pollID, nominationID string, nomination domain.Nomination) error {
	value, err := json.Marshal(nomination)
	if err != nil {
		return fmt.Errorf("failed to encode nomination: %w", err)
	}
	return r.update(ctx, "set nomination", pollID,
		`jsonb_set(doc, ARRAY['nominations', $2::text], $3::jsonb)`, nominationID, string(value))
}

func (r *PollRepository) DeleteNomination(ctx context.Context, pollID, nominationID string) error {
	return r.update(ctx, "delete nomination", pollID,
		`doc #- ARRAY['nominations', $2::text]`, nominationID)
}

func (r *PollRepository) MarkStarted(ctx context.Context, pollID string) error {
	return r.update(ctx, "mark started", pollID,
		`jsonb_set(doc, '{hasStarted}', 'true'::jsonb)`)
}

func (r *PollRepository) SetRankings(ctx context.Context, pollID, userID string, ballot domain.Ballot) error {
	if ballot == nil {
		ballot = domain.Ballot{}
	}
	value, err := json.Marshal(ballot)
	if err != nil {
		return fmt.Errorf("failed to encode rankings: %w", err)
	}
	return r.update(ctx, "set rankings", pollID,
		`jsonb_set(doc, ARRAY['rankings', $2::text], $3::jsonb)`, userID, string(value))
}

func (r *PollRepository) SetResults(ctx context.Context, pollID string, results domain.Results) error {
	if results == nil {
		results = domain.Results{}
	}
	value, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return r.update(ctx, "set results", pollID,
		`jsonb_set(doc, '{results}', $2::jsonb)`, string(value))
}

func (r *PollRepository) DeletePoll(ctx context.Context, pollID string) error {
	query := `DELETE FROM polls WHERE id = $1 AND expires_at > NOW()`
	res, err := r.db.ExecContext(ctx, query, pollID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete poll: %w", domain.ErrStoreFailure, err)
	}
	return requireRow(res)
}

func (r *PollRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM polls WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to purge polls: %w", domain.ErrStoreFailure, err)
	}
	return res.RowsAffected()
}

// update applies expr, which may reference $2 onwards, to the document of
// a live poll. $1 is always the poll id.
func (r *PollRepository) update(ctx context.Context, op, pollID, expr string, args ...any) error {
	query := `UPDATE polls SET doc = ` + expr + ` WHERE id = $1 AND expires_at > NOW()`

	res, err := r.db.ExecContext(ctx, query, append([]any{pollID}, args...)...)
	if err != nil {
		return fmt.Errorf("%w: failed to %s: %w", domain.ErrStoreFailure, op, err)
	}
	return requireRow(res)
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
