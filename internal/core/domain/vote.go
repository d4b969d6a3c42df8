package domain

import "fmt"

// Ballot is one participant's ordered preference of nomination ids, most
// preferred first.
type Ballot []string

// Validate checks a submitted ballot against the poll it is cast in.
func (b Ballot) Validate(p *Poll) error {
	if len(b) == 0 {
		return fmt.Errorf("%w: rankings must not be empty", ErrValidation)
	}
	if len(b) > p.VotesPerVoter {
		return fmt.Errorf("%w: at most %d rankings allowed", ErrValidation, p.VotesPerVoter)
	}

	seen := make(map[string]struct{}, len(b))
	for _, id := range b {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: nomination %q ranked twice", ErrValidation, id)
		}
		seen[id] = struct{}{}

		if _, ok := p.Nominations[id]; !ok {
			return fmt.Errorf("%w: %q", ErrNominationNotFound, id)
		}
	}
	return nil
}

// effective returns the entries of b that count towards a tally: the
// first limit entries, restricted to known nominations, first occurrence
// only.
func (b Ballot) effective(limit int, nominations Nominations) []string {
	if limit > 0 && len(b) > limit {
		b = b[:limit]
	}

	out := make([]string, 0, len(b))
	seen := make(map[string]struct{}, len(b))
	for _, id := range b {
		if _, ok := nominations[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
