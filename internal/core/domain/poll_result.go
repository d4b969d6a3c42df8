package domain

// Result is one ranked entry of a computed tally.
type Result struct {
	NominationID   string `json:"nominationID"`
	NominationText string `json:"nominationText"`
	Score          int    `json:"score"`
}

// Results are ordered from most to least preferred.
type Results []Result
