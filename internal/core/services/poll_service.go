package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
	"github.com/vncsmyrnk/rankedpoll/internal/core/ports"
)

const defaultOperationTimeout = 5 * time.Second

type pollService struct {
	store     ports.PollStore
	tokens    ports.TokenService
	ttl       time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	newPollID func() (string, error)
}

type PollServiceOption func(*pollService)

// WithOperationTimeout bounds every store round trip made by one call.
func WithOperationTimeout(d time.Duration) PollServiceOption {
	return func(s *pollService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) PollServiceOption {
	return func(s *pollService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPollService returns the coordinator for poll sessions. ttl is the
// lifetime of a poll and of the identity tokens issued for it.
func NewPollService(store ports.PollStore, tokens ports.TokenService, ttl time.Duration, opts ...PollServiceOption) ports.PollService {
	s := &pollService{
		store:     store,
		tokens:    tokens,
		ttl:       ttl,
		timeout:   defaultOperationTimeout,
		logger:    slog.Default(),
		newPollID: newPollID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *pollService) CreatePoll(ctx context.Context, input ports.CreatePollInput) (*ports.PollSession, error) {
	if err := domain.ValidateTopic(input.Topic); err != nil {
		return nil, err
	}
	if err := domain.ValidateVotesPerVoter(input.VotesPerVoter); err != nil {
		return nil, err
	}
	if err := domain.ValidateName(input.Name); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pollID, err := s.newPollID()
	if err != nil {
		return nil, err
	}
	adminID := newUserID()

	poll := domain.NewPoll(pollID, input.Topic, input.VotesPerVoter, adminID)
	if err := s.store.CreatePoll(ctx, poll); err != nil {
		return nil, s.fail("create poll", pollID, err)
	}

	s.logger.Debug("poll created", "poll_id", pollID, "admin_id", adminID, "ttl", s.ttl)

	token, err := s.tokens.Issue(domain.Identity{PollID: pollID, UserID: adminID, Name: input.Name}, s.ttl)
	if err != nil {
		return nil, err
	}

	return &ports.PollSession{Poll: poll, AccessToken: token}, nil
}

func (s *pollService) JoinPoll(ctx context.Context, input ports.JoinPollInput) (*ports.PollSession, error) {
	if err := domain.ValidateName(input.Name); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.load(ctx, input.PollID)
	if err != nil {
		return nil, err
	}
	if !poll.CanModifyMembership() {
		return nil, domain.ErrAlreadyStarted
	}

	// Membership is written when the participant's socket connects, not here.
	userID := newUserID()
	s.logger.Debug("participant joining", "poll_id", poll.ID, "user_id", userID)

	token, err := s.tokens.Issue(domain.Identity{PollID: poll.ID, UserID: userID, Name: input.Name}, s.ttl)
	if err != nil {
		return nil, err
	}

	return &ports.PollSession{Poll: poll, AccessToken: token}, nil
}

func (s *pollService) RejoinPoll(ctx context.Context, identity domain.Identity) (*domain.Poll, error) {
	s.logger.Debug("participant rejoining", "poll_id", identity.PollID, "user_id", identity.UserID)
	return s.AddParticipant(ctx, identity.PollID, identity.UserID, identity.Name)
}

func (s *pollService) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.load(ctx, pollID)
}

func (s *pollService) RequireAdmin(ctx context.Context, pollID, actorID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.loadAsAdmin(ctx, pollID, actorID)
	return err
}

// AddParticipant records userID as a participant. Once voting has started
// only participants already on the poll may reconnect, and nothing is
// written for them.
func (s *pollService) AddParticipant(ctx context.Context, pollID, userID, name string) (*domain.Poll, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.CanModifyMembership() {
		if poll.HasParticipant(userID) {
			return poll, nil
		}
		return nil, domain.ErrAlreadyStarted
	}

	if err := s.store.SetParticipant(ctx, pollID, userID, name); err != nil {
		return nil, s.fail("add participant", pollID, err)
	}
	return s.load(ctx, pollID)
}

// RemoveParticipant drops userID from the poll. After voting has started
// membership is frozen and the current snapshot is returned unchanged.
func (s *pollService) RemoveParticipant(ctx context.Context, pollID, userID string) (*domain.Poll, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.CanModifyMembership() {
		return poll, nil
	}

	if err := s.store.DeleteParticipant(ctx, pollID, userID); err != nil {
		return nil, s.fail("remove participant", pollID, err)
	}
	return s.load(ctx, pollID)
}

func (s *pollService) AddNomination(ctx context.Context, input ports.AddNominationInput) (*domain.Poll, error) {
	if err := domain.ValidateNominationText(input.Text); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.load(ctx, input.PollID)
	if err != nil {
		return nil, err
	}
	if !poll.CanModifyNominations() {
		return nil, domain.ErrAlreadyStarted
	}

	nominationID, err := newNominationID()
	if err != nil {
		return nil, err
	}

	nomination := domain.Nomination{UserID: input.UserID, Text: input.Text}
	if err := s.store.SetNomination(ctx, input.PollID, nominationID, nomination); err != nil {
		return nil, s.fail("add nomination", input.PollID, err)
	}
	return s.load(ctx, input.PollID)
}

func (s *pollService) RemoveNomination(ctx context.Context, pollID, nominationID string) (*domain.Poll, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.CanModifyNominations() {
		return nil, domain.ErrAlreadyStarted
	}
	if _, ok := poll.Nominations[nominationID]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNominationNotFound, nominationID)
	}

	if err := s.store.DeleteNomination(ctx, pollID, nominationID); err != nil {
		return nil, s.fail("remove nomination", pollID, err)
	}
	return s.load(ctx, pollID)
}

func (s *pollService) StartPoll(ctx context.Context, pollID, actorID string) (*domain.Poll, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.loadAsAdmin(ctx, pollID, actorID)
	if err != nil {
		return nil, err
	}
	if poll.HasStarted {
		return nil, domain.ErrAlreadyStarted
	}

	if err := s.store.MarkStarted(ctx, pollID); err != nil {
		return nil, s.fail("start poll", pollID, err)
	}
	s.logger.Debug("poll started", "poll_id", pollID)

	return s.load(ctx, pollID)
}

func (s *pollService) CancelPoll(ctx context.Context, pollID, actorID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.loadAsAdmin(ctx, pollID, actorID); err != nil {
		return err
	}

	if err := s.store.DeletePoll(ctx, pollID); err != nil {
		return s.fail("cancel poll", pollID, err)
	}
	s.logger.Debug("poll cancelled", "poll_id", pollID)

	return nil
}

func (s *pollService) load(ctx context.Context, pollID string) (*domain.Poll, error) {
	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, s.fail("get poll", pollID, err)
	}
	poll.Normalize()
	return poll, nil
}

func (s *pollService) loadAsAdmin(ctx context.Context, pollID, actorID string) (*domain.Poll, error) {
	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.IsAdmin(actorID) {
		return nil, domain.ErrNotAdmin
	}
	return poll, nil
}

// fail logs store failures before handing them back; domain errors pass
// through untouched.
func (s *pollService) fail(op, pollID string, err error) error {
	if domain.IsDomain(err) {
		return err
	}
	s.logger.Error("session store operation failed", "op", op, "poll_id", pollID, "error", err)
	return fmt.Errorf("failed to %s: %w", op, err)
}
