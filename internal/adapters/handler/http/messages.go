package http

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
)

const (
	actionRemoveParticipant = "remove_participant"
	actionNominate          = "nominate"
	actionRemoveNomination  = "remove_nomination"
	actionStartVote         = "start_vote"
	actionSubmitRankings    = "submit_rankings"
	actionClosePoll         = "close_poll"
	actionCancelPoll        = "cancel_poll"
)

// action is one inbound socket message. The set of implementations is
// closed; every value has been validated by decodeAction.
type action interface {
	adminOnly() bool
}

type removeParticipantAction struct {
	ID string `json:"id"`
}

type nominateAction struct {
	Text string `json:"text"`
}

type removeNominationAction struct {
	ID string `json:"id"`
}

type startVoteAction struct{}

type submitRankingsAction struct {
	Rankings domain.Ballot `json:"rankings"`
}

type closePollAction struct{}

type cancelPollAction struct{}

func (removeParticipantAction) adminOnly() bool { return true }
func (nominateAction) adminOnly() bool          { return false }
func (removeNominationAction) adminOnly() bool  { return true }
func (startVoteAction) adminOnly() bool         { return true }
func (submitRankingsAction) adminOnly() bool    { return false }
func (closePollAction) adminOnly() bool         { return true }
func (cancelPollAction) adminOnly() bool        { return true }

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func decodeAction(raw []byte) (action, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed message", domain.ErrValidation)
	}

	switch env.Event {
	case actionRemoveParticipant:
		var a removeParticipantAction
		if err := decodeData(env.Data, &a); err != nil {
			return nil, err
		}
		if a.ID == "" {
			return nil, fmt.Errorf("%w: participant id is required", domain.ErrValidation)
		}
		return a, nil

	case actionNominate:
		var a nominateAction
		if err := decodeData(env.Data, &a); err != nil {
			return nil, err
		}
		if err := domain.ValidateNominationText(a.Text); err != nil {
			return nil, err
		}
		return a, nil

	case actionRemoveNomination:
		var a removeNominationAction
		if err := decodeData(env.Data, &a); err != nil {
			return nil, err
		}
		if a.ID == "" {
			return nil, fmt.Errorf("%w: nomination id is required", domain.ErrValidation)
		}
		return a, nil

	case actionSubmitRankings:
		var a submitRankingsAction
		if err := decodeData(env.Data, &a); err != nil {
			return nil, err
		}
		if len(a.Rankings) == 0 {
			return nil, fmt.Errorf("%w: rankings are required", domain.ErrValidation)
		}
		return a, nil

	case actionStartVote:
		return startVoteAction{}, nil
	case actionClosePoll:
		return closePollAction{}, nil
	case actionCancelPoll:
		return cancelPollAction{}, nil
	}

	return nil, fmt.Errorf("%w: unknown event %q", domain.ErrValidation, env.Event)
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", domain.ErrValidation)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid data: %v", domain.ErrValidation, err)
	}
	return nil
}
