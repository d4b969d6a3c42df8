package ports

import (
	"context"

	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
)

// PollStore persists one document per poll. Every write touches a single
// field of the document and fails with domain.ErrPollNotFound when the
// document is absent or expired. There are no multi-field transactions.
type PollStore interface {
	CreatePoll(ctx context.Context, poll *domain.Poll) error
	GetPoll(ctx context.Context, pollID string) (*domain.Poll, error)
	SetParticipant(ctx context.Context, pollID, userID, name string) error
	DeleteParticipant(ctx context.Context, pollID, userID string) error
	SetNomination(ctx context.Context, pollID, nominationID string, nomination domain.Nomination) error
	DeleteNomination(ctx context.Context, pollID, nominationID string) error
	MarkStarted(ctx context.Context, pollID string) error
	SetRankings(ctx context.Context, pollID, userID string, ballot domain.Ballot) error
	SetResults(ctx context.Context, pollID string, results domain.Results) error
	DeletePoll(ctx context.Context, pollID string) error
}

type CreatePollInput struct {
	Topic         string
	VotesPerVoter int
	Name          string
}

type JoinPollInput struct {
	PollID string
	Name   string
}

type AddNominationInput struct {
	PollID string
	UserID string
	Text   string
}

type SubmitRankingsInput struct {
	PollID   string
	UserID   string
	Rankings domain.Ballot
}

// PollSession is a poll snapshot together with the identity token issued
// to the participant that created or joined it.
type PollSession struct {
	Poll        *domain.Poll `json:"poll"`
	AccessToken string       `json:"accessToken"`
}

// PollService coordinates every change to a poll. Each mutating call
// re-reads the poll after writing and returns that snapshot.
type PollService interface {
	CreatePoll(ctx context.Context, input CreatePollInput) (*PollSession, error)
	JoinPoll(ctx context.Context, input JoinPollInput) (*PollSession, error)
	RejoinPoll(ctx context.Context, identity domain.Identity) (*domain.Poll, error)
	GetPoll(ctx context.Context, pollID string) (*domain.Poll, error)
	RequireAdmin(ctx context.Context, pollID, actorID string) error

	AddParticipant(ctx context.Context, pollID, userID, name string) (*domain.Poll, error)
	RemoveParticipant(ctx context.Context, pollID, userID string) (*domain.Poll, error)
	AddNomination(ctx context.Context, input AddNominationInput) (*domain.Poll, error)
	RemoveNomination(ctx context.Context, pollID, nominationID string) (*domain.Poll, error)

	StartPoll(ctx context.Context, pollID, actorID string) (*domain.Poll, error)
	SubmitRankings(ctx context.Context, input SubmitRankingsInput) (*domain.Poll, error)
	ComputeResults(ctx context.Context, pollID, actorID string) (*domain.Poll, error)
	CancelPoll(ctx context.Context, pollID, actorID string) error
}
