package domain

type Poll struct {
	ID            string       `json:"id"`
	Topic         string       `json:"topic"`
	VotesPerVoter int          `json:"votesPerVoter"`
	AdminID       string       `json:"adminID"`
	HasStarted    bool         `json:"hasStarted"`
	Participants  Participants `json:"participants"`
	Nominations   Nominations  `json:"nominations"`
	Rankings      Rankings     `json:"rankings"`
	Results       Results      `json:"results"`
}

// Participants maps participant id to display name.
type Participants map[string]string

// Nominations maps nomination id to the nomination.
type Nominations map[string]Nomination

// Rankings maps participant id to that participant's ballot.
type Rankings map[string]Ballot

type Nomination struct {
	UserID string `json:"userID"`
	Text   string `json:"text"`
}

// NewPoll returns a poll in its initial, not started state.
func NewPoll(id, topic string, votesPerVoter int, adminID string) *Poll {
	return &Poll{
		ID:            id,
		Topic:         topic,
		VotesPerVoter: votesPerVoter,
		AdminID:       adminID,
		Participants:  Participants{},
		Nominations:   Nominations{},
		Rankings:      Rankings{},
		Results:       Results{},
	}
}

// Normalize replaces nil collections with empty ones so that snapshots
// always serialize as {} and [] rather than null.
func (p *Poll) Normalize() {
	if p.Participants == nil {
		p.Participants = Participants{}
	}
	if p.Nominations == nil {
		p.Nominations = Nominations{}
	}
	if p.Rankings == nil {
		p.Rankings = Rankings{}
	}
	if p.Results == nil {
		p.Results = Results{}
	}
}

func (p *Poll) CanModifyMembership() bool {
	return !p.HasStarted
}

func (p *Poll) CanModifyNominations() bool {
	return !p.HasStarted
}

func (p *Poll) CanSubmitRanking() bool {
	return p.HasStarted
}

func (p *Poll) IsAdmin(actorID string) bool {
	return actorID != "" && actorID == p.AdminID
}

func (p *Poll) HasParticipant(userID string) bool {
	_, ok := p.Participants[userID]
	return ok
}
