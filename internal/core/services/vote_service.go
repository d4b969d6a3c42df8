package services

import (
	"context"

	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
	"github.com/vncsmyrnk/rankedpoll/internal/core/ports"
)

// SubmitRankings stores the caller's ballot, replacing any earlier one.
func (s *pollService) SubmitRankings(ctx context.Context, input ports.SubmitRankingsInput) (*domain.Poll, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.load(ctx, input.PollID)
	if err != nil {
		return nil, err
	}
	if !poll.CanSubmitRanking() {
		return nil, domain.ErrNotStarted
	}
	if err := input.Rankings.Validate(poll); err != nil {
		return nil, err
	}

	if err := s.store.SetRankings(ctx, input.PollID, input.UserID, input.Rankings); err != nil {
		return nil, s.fail("submit rankings", input.PollID, err)
	}
	return s.load(ctx, input.PollID)
}

// ComputeResults tallies the current ballots and stores the outcome.
// Calling it again recomputes and overwrites the results.
func (s *pollService) ComputeResults(ctx context.Context, pollID, actorID string) (*domain.Poll, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.loadAsAdmin(ctx, pollID, actorID)
	if err != nil {
		return nil, err
	}
	if !poll.HasStarted {
		return nil, domain.ErrNotStarted
	}

	results := domain.Tally(poll.Rankings, poll.Nominations, poll.VotesPerVoter)
	s.logger.Debug("results computed", "poll_id", pollID, "ballots", len(poll.Rankings), "entries", len(results))

	if err := s.store.SetResults(ctx, pollID, results); err != nil {
		return nil, s.fail("store results", pollID, err)
	}
	return s.load(ctx, pollID)
}
