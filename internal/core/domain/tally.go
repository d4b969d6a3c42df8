package domain

import (
	"slices"
	"sort"
)

type standing struct {
	id    string
	score int
}

// Tally computes an instant-runoff result. Every ballot is cut to its
// first votesPerVoter entries and entries naming unknown nominations are
// skipped. Each round a ballot counts for its highest ranked candidate
// still in the running; a candidate holding more than half of the votes
// cast that round wins, otherwise every candidate tied for the fewest
// votes is eliminated.
//
// The result lists the winner first, then any candidates still in the
// running when counting stopped, then eliminated candidates with later
// eliminations ranked higher. Ties are broken by ascending nomination id.
// Tally has no side effects and returns an empty result when there are no
// nominations or no countable ballots.
func Tally(rankings Rankings, nominations Nominations, votesPerVoter int) Results {
	if len(nominations) == 0 {
		return Results{}
	}

	candidates := make([]string, 0, len(nominations))
	for id := range nominations {
		candidates = append(candidates, id)
	}
	sort.Strings(candidates)

	ballots := make([][]string, 0, len(rankings))
	for _, ballot := range rankings {
		if b := ballot.effective(votesPerVoter, nominations); len(b) > 0 {
			ballots = append(ballots, b)
		}
	}
	if len(ballots) == 0 {
		return Results{}
	}

	active := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		active[id] = true
	}

	var (
		winner     string
		finalists  []standing
		eliminated [][]standing
	)

	for len(active) > 0 {
		remaining := make([]string, 0, len(active))
		for _, id := range candidates {
			if active[id] {
				remaining = append(remaining, id)
			}
		}

		counts := make(map[string]int, len(remaining))
		cast := 0
		for _, b := range ballots {
			for _, id := range b {
				if active[id] {
					counts[id]++
					cast++
					break
				}
			}
		}

		if cast == 0 {
			finalists = standings(remaining, counts)
			break
		}

		leader := remaining[0]
		for _, id := range remaining[1:] {
			if counts[id] > counts[leader] {
				leader = id
			}
		}
		if counts[leader]*2 > cast {
			winner = leader
			finalists = standings(remaining, counts)
			break
		}

		fewest := counts[remaining[0]]
		for _, id := range remaining[1:] {
			fewest = min(fewest, counts[id])
		}

		var round []standing
		for _, id := range remaining {
			if counts[id] == fewest {
				round = append(round, standing{id: id, score: counts[id]})
				delete(active, id)
			}
		}
		eliminated = append(eliminated, round)
	}

	results := make(Results, 0, len(candidates))
	add := func(s standing) {
		results = append(results, Result{
			NominationID:   s.id,
			NominationText: nominations[s.id].Text,
			Score:          s.score,
		})
	}

	sort.SliceStable(finalists, func(i, j int) bool {
		return finalists[i].score > finalists[j].score
	})
	for _, s := range finalists {
		if s.id == winner {
			add(s)
		}
	}
	for _, s := range finalists {
		if s.id != winner {
			add(s)
		}
	}

	for _, round := range slices.Backward(eliminated) {
		for _, s := range round {
			add(s)
		}
	}

	return results
}

// standings pairs ids, which are already in ascending order, with their
// round counts.
func standings(ids []string, counts map[string]int) []standing {
	out := make([]standing, 0, len(ids))
	for _, id := range ids {
		out = append(out, standing{id: id, score: counts[id]})
	}
	return out
}
