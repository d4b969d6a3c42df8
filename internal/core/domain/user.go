package domain

// Identity is the verified claim a participant presents: who they are and
// which poll the claim is scoped to.
type Identity struct {
	PollID string
	UserID string
	Name   string
}
