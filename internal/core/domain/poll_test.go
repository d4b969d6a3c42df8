package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoll_InitialState(t *testing.T) {
	p := NewPoll("ABC123", "Lunch?", 2, "admin")

	assert.False(t, p.HasStarted)
	assert.Empty(t, p.Participants)
	assert.Empty(t, p.Nominations)
	assert.Empty(t, p.Rankings)
	assert.Empty(t, p.Results)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "ABC123",
		"topic": "Lunch?",
		"votesPerVoter": 2,
		"adminID": "admin",
		"hasStarted": false,
		"participants": {},
		"nominations": {},
		"rankings": {},
		"results": []
	}`, string(raw))
}

func TestPoll_Guards(t *testing.T) {
	p := NewPoll("ABC123", "Lunch?", 2, "admin")

	assert.True(t, p.CanModifyMembership())
	assert.True(t, p.CanModifyNominations())
	assert.False(t, p.CanSubmitRanking())

	p.HasStarted = true

	assert.False(t, p.CanModifyMembership())
	assert.False(t, p.CanModifyNominations())
	assert.True(t, p.CanSubmitRanking())
}

func TestPoll_IsAdmin(t *testing.T) {
	p := NewPoll("ABC123", "Lunch?", 2, "admin")

	assert.True(t, p.IsAdmin("admin"))
	assert.False(t, p.IsAdmin("someone"))
	assert.False(t, p.IsAdmin(""))

	// Admin rights do not depend on being a connected participant.
	delete(p.Participants, "admin")
	assert.True(t, p.IsAdmin("admin"))
}

func TestPoll_Normalize(t *testing.T) {
	var p Poll
	require.NoError(t, json.Unmarshal([]byte(`{"id":"X","results":null}`), &p))

	p.Normalize()

	assert.NotNil(t, p.Participants)
	assert.NotNil(t, p.Nominations)
	assert.NotNil(t, p.Rankings)
	assert.NotNil(t, p.Results)
}

func TestBallot_Validate(t *testing.T) {
	p := NewPoll("ABC123", "Lunch?", 2, "admin")
	p.Nominations = nominationsOf("a", "b", "c")

	tests := []struct {
		name    string
		ballot  Ballot
		wantErr error
	}{
		{"ok", Ballot{"a", "b"}, nil},
		{"partial", Ballot{"c"}, nil},
		{"empty", Ballot{}, ErrValidation},
		{"too long", Ballot{"a", "b", "c"}, ErrValidation},
		{"duplicate", Ballot{"a", "a"}, ErrValidation},
		{"unknown", Ballot{"a", "zzz"}, ErrNominationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ballot.Validate(p)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidation(t *testing.T) {
	assert.NoError(t, ValidateTopic("Where to eat"))
	assert.ErrorIs(t, ValidateTopic("   "), ErrValidation)
	assert.ErrorIs(t, ValidateTopic(string(make([]rune, MaxTopicLength+1))), ErrValidation)

	assert.NoError(t, ValidateName("Alice"))
	assert.ErrorIs(t, ValidateName(""), ErrValidation)

	assert.NoError(t, ValidateNominationText("Tacos"))
	assert.ErrorIs(t, ValidateNominationText(""), ErrValidation)

	assert.NoError(t, ValidateVotesPerVoter(MinVotesPerVoter))
	assert.NoError(t, ValidateVotesPerVoter(MaxVotesPerVoter))
	assert.ErrorIs(t, ValidateVotesPerVoter(0), ErrValidation)
	assert.ErrorIs(t, ValidateVotesPerVoter(MaxVotesPerVoter+1), ErrValidation)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrPollNotFound, KindNotFound},
		{fmt.Errorf("%w: x", ErrNominationNotFound), KindNotFound},
		{ErrAlreadyStarted, KindAlreadyStarted},
		{ErrNotStarted, KindNotStarted},
		{ErrNotAdmin, KindUnauthorized},
		{ErrInvalidToken, KindUnauthorized},
		{fmt.Errorf("%w: bad", ErrValidation), KindValidationFailed},
		{fmt.Errorf("%w: %w", ErrStoreFailure, errors.New("conn refused")), KindStoreFailure},
		{errors.New("boom"), KindStoreFailure},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), tt.err.Error())
	}
	assert.True(t, IsDomain(ErrNotStarted))
	assert.False(t, IsDomain(ErrStoreFailure))
}
