package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nominationsOf(ids ...string) Nominations {
	n := Nominations{}
	for _, id := range ids {
		n[id] = Nomination{UserID: "u-" + id, Text: "option " + id}
	}
	return n
}

func TestTally_RunoffEliminatesLowestAndFindsMajority(t *testing.T) {
	rankings := Rankings{
		"v1": {"a", "b"},
		"v2": {"a", "c"},
		"v3": {"b", "a"},
		"v4": {"c", "b"},
		"v5": {"b", "c"},
	}

	results := Tally(rankings, nominationsOf("a", "b", "c"), 2)

	require.Len(t, results, 3)
	assert.Equal(t, Result{NominationID: "b", NominationText: "option b", Score: 3}, results[0])
	assert.Equal(t, Result{NominationID: "a", NominationText: "option a", Score: 2}, results[1])
	assert.Equal(t, Result{NominationID: "c", NominationText: "option c", Score: 1}, results[2])
}

func TestTally_FirstRoundMajority(t *testing.T) {
	rankings := Rankings{
		"v1": {"a"},
		"v2": {"a", "b"},
		"v3": {"b"},
	}

	results := Tally(rankings, nominationsOf("a", "b", "c"), 3)

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].NominationID)
	assert.Equal(t, 2, results[0].Score)
	assert.Equal(t, "b", results[1].NominationID)
	assert.Equal(t, 1, results[1].Score)
	assert.Equal(t, "c", results[2].NominationID)
	assert.Equal(t, 0, results[2].Score)
}

func TestTally_EmptyInputs(t *testing.T) {
	t.Run("no nominations", func(t *testing.T) {
		results := Tally(Rankings{"v1": {"a"}}, Nominations{}, 1)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("no ballots", func(t *testing.T) {
		results := Tally(Rankings{}, nominationsOf("a", "b"), 1)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("only stale ballots", func(t *testing.T) {
		results := Tally(Rankings{"v1": {"gone"}}, nominationsOf("a"), 1)
		assert.Empty(t, results)
	})
}

func TestTally_SkipsRemovedNominations(t *testing.T) {
	rankings := Rankings{
		"v1": {"removed", "a"},
		"v2": {"b"},
		"v3": {"removed", "removed", "a"},
	}

	results := Tally(rankings, nominationsOf("a", "b"), 3)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].NominationID)
	assert.Equal(t, 2, results[0].Score)
	assert.Equal(t, "b", results[1].NominationID)
}

func TestTally_TruncatesToVotesPerVoter(t *testing.T) {
	// With one vote each, the second preferences must not matter and all
	// three candidates tie and are eliminated together.
	rankings := Rankings{
		"v1": {"c", "a"},
		"v2": {"a", "c"},
		"v3": {"b", "a"},
	}

	results := Tally(rankings, nominationsOf("a", "b", "c"), 1)

	require.Len(t, results, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, results[i].NominationID)
		assert.Equal(t, 1, results[i].Score)
	}
}

func TestTally_TiedLowestEliminatedTogether(t *testing.T) {
	rankings := Rankings{
		"v1": {"a"},
		"v2": {"b"},
		"v3": {"b"},
		"v4": {"c"},
		"v5": {"a"},
	}

	results := Tally(rankings, nominationsOf("a", "b", "c"), 1)

	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, idsOf(results))
	assert.Equal(t, []int{2, 2, 1}, scoresOf(results))
}

func TestTally_LaterEliminationRanksHigher(t *testing.T) {
	rankings := Rankings{
		"v1": {"a"},
		"v2": {"a"},
		"v3": {"a"},
		"v4": {"b", "a"},
		"v5": {"b", "c"},
		"v6": {"c", "b"},
		"v7": {"d", "c"},
	}

	results := Tally(rankings, nominationsOf("a", "b", "c", "d"), 2)

	// Round 1: a=3 b=2 c=1 d=1 -> c, d out. Round 2: a=3 b=3 (v6 moves
	// to b, v7 exhausted) -> both tie at the bottom and go out together.
	assert.Equal(t, []string{"a", "b", "c", "d"}, idsOf(results))
	assert.Equal(t, []int{3, 3, 1, 1}, scoresOf(results))
}

func TestTally_IsDeterministic(t *testing.T) {
	rankings := Rankings{}
	ids := []string{"a", "b", "c", "d", "e"}
	for i := range 40 {
		ballot := Ballot{ids[i%5], ids[(i*3+1)%5], ids[(i*7+2)%5]}
		rankings[string(rune('A'+i))] = ballot
	}
	nominations := nominationsOf(ids...)

	first := Tally(rankings, nominations, 3)
	for range 20 {
		assert.Equal(t, first, Tally(rankings, nominations, 3))
	}
}

func idsOf(results Results) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.NominationID)
	}
	return out
}

func scoresOf(results Results) []int {
	out := make([]int, 0, len(results))
	for _, r := range results {
		out = append(out, r.Score)
	}
	return out
}
