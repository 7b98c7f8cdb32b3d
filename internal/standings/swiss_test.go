package standings

import (
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairSwiss(t *testing.T) {
	teams := makeTeams(4)
	a, b, c, d := teams[0], teams[1], teams[2], teams[3]

	t.Run("Pairs by standing", func(t *testing.T) {
		matches := []bracket.Match{
			result(1, a, c, 1, 0),
			result(1, b, d, 1, 0),
		}
		pairs, bye := PairSwiss(matches, teams)
		assert.Nil(t, bye)
		assert.Equal(t, []bracket.SwissPair{
			{Team1ID: a.ID, Team2ID: b.ID},
			{Team1ID: c.ID, Team2ID: d.ID},
		}, pairs)
	})

	t.Run("Avoids rematches", func(t *testing.T) {
		// Standings are A, B, C, D but A already met both B and C
		matches := []bracket.Match{
			result(1, a, b, 1, 0),
			result(1, c, d, 1, 0),
			result(2, a, c, 1, 0),
			result(2, b, d, 1, 0),
		}
		pairs, bye := PairSwiss(matches, teams)
		assert.Nil(t, bye)
		assert.Equal(t, []bracket.SwissPair{
			{Team1ID: a.ID, Team2ID: d.ID},
			{Team1ID: b.ID, Team2ID: c.ID},
		}, pairs)
	})

	t.Run("Rematch when nothing else is left", func(t *testing.T) {
		pair := teams[:2]
		pairs, bye := PairSwiss([]bracket.Match{result(1, a, b, 0, 1)}, pair)
		assert.Nil(t, bye)
		require.Len(t, pairs, 1)
		assert.Equal(t, bracket.SwissPair{Team1ID: b.ID, Team2ID: a.ID}, pairs[0])
	})
}

func TestPairSwiss_Bye(t *testing.T) {
	t.Run("Lowest ranked team sits out", func(t *testing.T) {
		teams := makeTeams(5)
		a, b, c, d, e := teams[0], teams[1], teams[2], teams[3], teams[4]

		matches := []bracket.Match{
			result(1, a, c, 1, 0),
			result(1, b, d, 1, 0),
			bye(1, e),
		}
		pairs, got := PairSwiss(matches, teams)
		require.NotNil(t, got)
		assert.Equal(t, d.ID, *got)
		assert.Equal(t, []bracket.SwissPair{
			{Team1ID: a.ID, Team2ID: b.ID},
			{Team1ID: e.ID, Team2ID: c.ID},
		}, pairs)
	})

	t.Run("Teams with a bye are skipped", func(t *testing.T) {
		teams := makeTeams(3)
		a, b, c := teams[0], teams[1], teams[2]

		matches := []bracket.Match{
			result(1, a, b, 1, 0),
			bye(1, c),
			result(2, a, c, 1, 0),
			bye(2, b),
		}
		pairs, got := PairSwiss(matches, teams)
		require.NotNil(t, got)
		assert.Equal(t, a.ID, *got, "only team without a bye")
		require.Len(t, pairs, 1)
		assert.ElementsMatch(t, []any{b.ID, c.ID}, []any{pairs[0].Team1ID, pairs[0].Team2ID})
	})
}
