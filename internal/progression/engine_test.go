package progression

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshot(t *testing.T, format bracket.Format, n int) *Snapshot {
	t.Helper()
	tournament := bracket.Tournament{
		ID:     uuid.New(),
		Name:   "Test",
		Format: format,
		Status: bracket.TournamentOngoing,
		BestOf: 1,
	}
	teams := make([]bracket.Team, n)
	for i := range teams {
		teams[i] = bracket.Team{ID: uuid.New(), TournamentID: tournament.ID, Name: fmt.Sprintf("Team %d", i+1), Seed: i + 1}
	}
	matches, err := bracket.Generate(tournament.ID, teams, bracket.GenerateOptions{Format: format, BestOf: 1})
	require.NoError(t, err)
	return &Snapshot{Tournament: tournament, Teams: teams, Matches: matches}
}

// apply writes a plan into the snapshot the way the store does.
func apply(t *testing.T, snap *Snapshot, plan Plan) {
	t.Helper()
	for _, w := range plan.SlotWrites {
		i, ok := bracket.IndexOf(snap.Matches, w.MatchID)
		require.True(t, ok)
		require.Nil(t, snap.Matches[i].Team(w.Slot), "slot written twice")
		snap.Matches[i].SetTeam(w.Slot, utils.Ptr(w.TeamID))
	}
	for _, b := range plan.Byes {
		i, ok := bracket.IndexOf(snap.Matches, b.MatchID)
		require.True(t, ok)
		snap.Matches[i].Status = bracket.MatchCompleted
		snap.Matches[i].WinnerID = utils.Ptr(b.WinnerID)
	}
	if plan.Reset != nil {
		i, ok := bracket.IndexOf(snap.Matches, plan.Reset.MatchID)
		require.True(t, ok)
		m := &snap.Matches[i]
		m.Team1ID, m.Team2ID = utils.Ptr(plan.Reset.Team1ID), utils.Ptr(plan.Reset.Team2ID)
		m.Score1, m.Score2 = 0, 0
		m.Status = bracket.MatchPending
		m.WinnerID, m.LoserID = nil, nil
	}
	if plan.TournamentCompleted {
		snap.Tournament.Status = bracket.TournamentCompleted
	}
}

// play completes a match for winner and applies the resulting plan.
func play(t *testing.T, snap *Snapshot, matchID, winner uuid.UUID) Plan {
	t.Helper()
	i, ok := bracket.IndexOf(snap.Matches, matchID)
	require.True(t, ok)
	m := &snap.Matches[i]
	require.True(t, m.HasTeam(winner))

	loser := m.Opponent(winner)
	m.Status = bracket.MatchCompleted
	m.WinnerID = utils.Ptr(winner)
	m.LoserID = loser
	if m.Team1ID != nil && *m.Team1ID == winner {
		m.Score1 = 1
	} else {
		m.Score2 = 1
	}

	plan, err := Decide(*snap, matchID, winner, loser)
	require.NoError(t, err)
	apply(t, snap, plan)
	return plan
}

func find(t *testing.T, snap *Snapshot, segment bracket.Segment, round, number int) *bracket.Match {
	t.Helper()
	i, ok := bracket.Find(snap.Matches, segment, round, number)
	require.True(t, ok, "match %s r%d m%d", segment, round, number)
	return &snap.Matches[i]
}

func playable(snap *Snapshot) *bracket.Match {
	for i := range snap.Matches {
		m := &snap.Matches[i]
		if !m.IsCompleted() && !m.IsBye && m.Team1ID != nil && m.Team2ID != nil {
			return m
		}
	}
	return nil
}

// run plays the bracket to the end, pick chooses each winner. Returns the
// number of played matches and the last plan.
func run(t *testing.T, snap *Snapshot, pick func(m *bracket.Match) uuid.UUID) (int, Plan) {
	t.Helper()
	played := 0
	for guard := 0; guard < 4*len(snap.Matches); guard++ {
		m := playable(snap)
		require.NotNil(t, m, "bracket stuck after %d matches", played)

		plan := play(t, snap, m.ID, pick(m))
		played++
		if plan.TournamentCompleted {
			return played, plan
		}
	}
	t.Fatalf("bracket did not finish")
	return 0, Plan{}
}

func team1Wins(m *bracket.Match) uuid.UUID { return *m.Team1ID }

func TestSingleElimination_TopSeedWins(t *testing.T) {
	for k := 1; k <= 5; k++ {
		n := 1 << k
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			snap := newSnapshot(t, bracket.SingleElimination, n)

			played, _ := run(t, snap, team1Wins)
			assert.Equal(t, n-1, played)

			final := find(t, snap, bracket.NoSegment, k, 1)
			assert.Equal(t, snap.Teams[0].ID, *final.WinnerID)
			assert.Equal(t, bracket.TournamentCompleted, snap.Tournament.Status)
		})
	}
}

func TestSingleElimination_WithByes(t *testing.T) {
	for _, n := range []int{3, 5, 6, 7, 11} {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			snap := newSnapshot(t, bracket.SingleElimination, n)
			played, _ := run(t, snap, team1Wins)
			assert.Equal(t, n-1, played)

			final := find(t, snap, bracket.NoSegment, bracket.MaxRound(snap.Matches, bracket.NoSegment), 1)
			assert.Equal(t, snap.Teams[0].ID, *final.WinnerID)
		})
	}
}

func TestSingleElimination_FourTeamScenario(t *testing.T) {
	snap := newSnapshot(t, bracket.SingleElimination, 4)
	a, b, c, d := snap.Teams[0].ID, snap.Teams[1].ID, snap.Teams[2].ID, snap.Teams[3].ID

	m1 := find(t, snap, bracket.NoSegment, 1, 1)
	m2 := find(t, snap, bracket.NoSegment, 1, 2)
	assert.Equal(t, []uuid.UUID{a, d}, []uuid.UUID{*m1.Team1ID, *m1.Team2ID})
	assert.Equal(t, []uuid.UUID{b, c}, []uuid.UUID{*m2.Team1ID, *m2.Team2ID})

	plan := play(t, snap, m1.ID, a)
	assert.False(t, plan.TournamentCompleted)
	require.Len(t, plan.SlotWrites, 1)
	assert.Equal(t, bracket.Team1Slot, plan.SlotWrites[0].Slot)

	plan = play(t, snap, m2.ID, b)
	assert.False(t, plan.TournamentCompleted)

	final := find(t, snap, bracket.NoSegment, 2, 1)
	assert.Equal(t, a, *final.Team1ID)
	assert.Equal(t, b, *final.Team2ID)

	plan = play(t, snap, final.ID, b)
	assert.True(t, plan.TournamentCompleted)
	assert.Empty(t, plan.SlotWrites)
	assert.Equal(t, b, *find(t, snap, bracket.NoSegment, 2, 1).WinnerID)
}

func TestDoubleElimination_FourTeamScenario(t *testing.T) {
	snap := newSnapshot(t, bracket.DoubleElimination, 4)
	a, b, c, d := snap.Teams[0].ID, snap.Teams[1].ID, snap.Teams[2].ID, snap.Teams[3].ID

	play(t, snap, find(t, snap, bracket.WinnersSegment, 1, 1).ID, a)
	play(t, snap, find(t, snap, bracket.WinnersSegment, 1, 2).ID, c)

	lb1 := find(t, snap, bracket.LosersSegment, 1, 1)
	assert.Equal(t, d, *lb1.Team1ID)
	assert.Equal(t, b, *lb1.Team2ID)

	play(t, snap, lb1.ID, d)
	play(t, snap, find(t, snap, bracket.WinnersSegment, 2, 1).ID, a)
	play(t, snap, find(t, snap, bracket.LosersSegment, 2, 1).ID, d)

	gf := find(t, snap, bracket.GrandFinalSegment, 1, 1)
	assert.Equal(t, a, *gf.Team1ID)
	assert.Equal(t, d, *gf.Team2ID)

	plan := play(t, snap, gf.ID, d)
	assert.False(t, plan.TournamentCompleted)
	require.NotNil(t, plan.Reset)

	reset := find(t, snap, bracket.ResetFinalSegment, 1, 1)
	assert.Equal(t, a, *reset.Team1ID)
	assert.Equal(t, d, *reset.Team2ID)
	assert.Equal(t, 0, reset.Score1)
	assert.Equal(t, 0, reset.Score2)
	assert.Equal(t, bracket.MatchPending, reset.Status)

	plan = play(t, snap, reset.ID, d)
	assert.True(t, plan.TournamentCompleted)
}

func TestDoubleElimination_GrandFinalWonByWinnersChampion(t *testing.T) {
	snap := newSnapshot(t, bracket.DoubleElimination, 4)
	_, plan := run(t, snap, team1Wins)

	assert.True(t, plan.TournamentCompleted)
	assert.Nil(t, plan.Reset)
	gf := find(t, snap, bracket.GrandFinalSegment, 1, 1)
	assert.Equal(t, snap.Teams[0].ID, *gf.WinnerID)
	assert.Nil(t, find(t, snap, bracket.ResetFinalSegment, 1, 1).Team1ID)
}

// A team that loses once in the winners bracket and then wins every losers
// match meets the winners champion in the grand final as team2.
func TestDoubleElimination_LoseOncePath(t *testing.T) {
	for _, n := range []int{4, 8, 16} {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			snap := newSnapshot(t, bracket.DoubleElimination, n)
			top, underdog := snap.Teams[0].ID, snap.Teams[n-1].ID

			pick := func(m *bracket.Match) uuid.UUID {
				switch {
				case m.HasTeam(top) && m.Segment == bracket.WinnersSegment:
					return top
				case m.HasTeam(underdog) && m.Segment != bracket.WinnersSegment:
					return underdog
				}
				return *m.Team1ID
			}

			for {
				m := playable(snap)
				require.NotNil(t, m)
				if bracket.IsGrandFinal(m) {
					break
				}
				play(t, snap, m.ID, pick(m))
			}

			gf := find(t, snap, bracket.GrandFinalSegment, 1, 1)
			assert.Equal(t, top, *gf.Team1ID)
			assert.Equal(t, underdog, *gf.Team2ID)

			plan := play(t, snap, gf.ID, underdog)
			assert.False(t, plan.TournamentCompleted)

			reset := find(t, snap, bracket.ResetFinalSegment, 1, 1)
			assert.Equal(t, top, *reset.Team1ID)
			assert.Equal(t, underdog, *reset.Team2ID)
			assert.Equal(t, bracket.MatchPending, reset.Status)
		})
	}
}

// Plays whole brackets with random winners and checks that everyone except
// the champion is eliminated by exactly two losses.
func TestDoubleElimination_RandomBrackets(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 6, 7, 8, 9, 12, 16} {
		for seed := int64(1); seed <= 5; seed++ {
			t.Run(fmt.Sprintf("%d teams seed %d", n, seed), func(t *testing.T) {
				rng := rand.New(rand.NewSource(seed))
				snap := newSnapshot(t, bracket.DoubleElimination, n)

				_, plan := run(t, snap, func(m *bracket.Match) uuid.UUID {
					if rng.Intn(2) == 0 {
						return *m.Team1ID
					}
					return *m.Team2ID
				})
				assert.Empty(t, plan.Anomalies)

				losses := make(map[uuid.UUID]int)
				var final *bracket.Match
				for i := range snap.Matches {
					m := &snap.Matches[i]
					if m.IsCompleted() && m.LoserID != nil {
						losses[*m.LoserID]++
					}
					if m.IsCompleted() && (bracket.IsGrandFinal(m) || bracket.IsResetFinal(m)) {
						if final == nil || bracket.IsResetFinal(m) {
							final = m
						}
					}
				}
				require.NotNil(t, final)
				champ := *final.WinnerID

				for _, team := range snap.Teams {
					if team.ID == champ {
						assert.LessOrEqual(t, losses[team.ID], 1)
						continue
					}
					assert.Equal(t, 2, losses[team.ID], "team %s", team.Name)
				}
			})
		}
	}
}

func TestDecide_Idempotence(t *testing.T) {
	snap := newSnapshot(t, bracket.SingleElimination, 4)
	m1 := find(t, snap, bracket.NoSegment, 1, 1)
	winner := *m1.Team1ID
	loser := m1.Team2ID

	play(t, snap, m1.ID, winner)

	_, err := Decide(*snap, m1.ID, winner, loser)
	assert.ErrorIs(t, err, bracket.ErrInvalidState)

	final := find(t, snap, bracket.NoSegment, 2, 1)
	assert.Equal(t, winner, *final.Team1ID)
	assert.Nil(t, final.Team2ID)
}

func TestDecide_Validation(t *testing.T) {
	snap := newSnapshot(t, bracket.SingleElimination, 4)
	m1 := find(t, snap, bracket.NoSegment, 1, 1)
	m2 := find(t, snap, bracket.NoSegment, 1, 2)
	a, d := *m1.Team1ID, *m1.Team2ID
	b := *m2.Team1ID

	completed := *snap
	completed.Matches = append([]bracket.Match(nil), snap.Matches...)
	i, _ := bracket.IndexOf(completed.Matches, m1.ID)
	completed.Matches[i].Status = bracket.MatchCompleted
	completed.Matches[i].WinnerID = utils.Ptr(a)

	finished := completed
	finished.Tournament.Status = bracket.TournamentCompleted

	tests := []struct {
		name   string
		snap   Snapshot
		match  uuid.UUID
		winner uuid.UUID
		loser  *uuid.UUID
		err    error
	}{
		{"Unknown match", completed, uuid.New(), a, nil, bracket.ErrNotFound},
		{"Match not completed", *snap, m1.ID, a, &d, bracket.ErrInvalidState},
		{"Winner not in match", completed, m1.ID, b, nil, bracket.ErrInvalidState},
		{"Loser not the opponent", completed, m1.ID, a, &b, bracket.ErrInvalidState},
		{"Loser equals winner", completed, m1.ID, a, &a, bracket.ErrInvalidState},
		{"Tournament completed", finished, m1.ID, a, &d, bracket.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decide(tt.snap, tt.match, tt.winner, tt.loser)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	// A failed decision leaves the snapshot untouched
	assert.Nil(t, find(t, snap, bracket.NoSegment, 2, 1).Team1ID)
}

func TestDecide_MissingGrandFinal(t *testing.T) {
	snap := newSnapshot(t, bracket.DoubleElimination, 4)
	i, _ := bracket.Find(snap.Matches, bracket.GrandFinalSegment, 1, 1)
	snap.Matches = append(snap.Matches[:i], snap.Matches[i+1:]...)

	play(t, snap, find(t, snap, bracket.WinnersSegment, 1, 1).ID, snap.Teams[0].ID)
	play(t, snap, find(t, snap, bracket.WinnersSegment, 1, 2).ID, snap.Teams[1].ID)

	plan := play(t, snap, find(t, snap, bracket.WinnersSegment, 2, 1).ID, snap.Teams[0].ID)
	assert.True(t, plan.TournamentCompleted)
	assert.NotEmpty(t, plan.Anomalies)
}

func TestDecide_MissingResetFinal(t *testing.T) {
	snap := newSnapshot(t, bracket.DoubleElimination, 2)
	i, _ := bracket.Find(snap.Matches, bracket.ResetFinalSegment, 1, 1)
	snap.Matches = append(snap.Matches[:i], snap.Matches[i+1:]...)

	top, other := snap.Teams[0].ID, snap.Teams[1].ID
	plan := play(t, snap, find(t, snap, bracket.WinnersSegment, 1, 1).ID, top)
	assert.False(t, plan.TournamentCompleted)

	gf := find(t, snap, bracket.GrandFinalSegment, 1, 1)
	assert.Equal(t, top, *gf.Team1ID)
	assert.Equal(t, other, *gf.Team2ID)

	plan = play(t, snap, gf.ID, other)
	assert.True(t, plan.TournamentCompleted)
	assert.NotEmpty(t, plan.Anomalies)
}

func TestGauntlet(t *testing.T) {
	snap := newSnapshot(t, bracket.Gauntlet, 4)
	challenger := snap.Teams[3].ID

	played, plan := run(t, snap, func(m *bracket.Match) uuid.UUID { return *m.Team2ID })
	assert.Equal(t, 3, played)
	assert.True(t, plan.TournamentCompleted)

	for r := 1; r <= 3; r++ {
		m := find(t, snap, bracket.NoSegment, r, 1)
		assert.Equal(t, challenger, *m.Team2ID)
		assert.Equal(t, snap.Teams[3-r].ID, *m.Team1ID)
	}
}

func TestRoundRobin_CompletesWhenAllPlayed(t *testing.T) {
	snap := newSnapshot(t, bracket.RoundRobin, 4)

	played := 0
	for m := playable(snap); m != nil; m = playable(snap) {
		plan := play(t, snap, m.ID, *m.Team1ID)
		played++
		assert.Empty(t, plan.SlotWrites)
		assert.Len(t, plan.Standings, 4)
		assert.Equal(t, played == 6, plan.TournamentCompleted)
	}
	assert.Equal(t, 6, played)
}

func TestSwiss_NotCompleteBeforeTargetRounds(t *testing.T) {
	snap := newSnapshot(t, bracket.Swiss, 4)

	var plan Plan
	for m := playable(snap); m != nil; m = playable(snap) {
		plan = play(t, snap, m.ID, *m.Team1ID)
	}
	assert.False(t, plan.TournamentCompleted)
	assert.False(t, IsComplete(&snap.Tournament, len(snap.Teams), snap.Matches))

	snap.Tournament.SwissRounds = 1
	assert.True(t, IsComplete(&snap.Tournament, len(snap.Teams), snap.Matches))
}
