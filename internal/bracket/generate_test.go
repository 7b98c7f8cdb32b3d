package bracket

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededTeams(n int) []Team {
	tID := uuid.New()
	teams := make([]Team, n)
	for i := range teams {
		teams[i] = Team{ID: uuid.New(), TournamentID: tID, Name: fmt.Sprintf("Team %d", i+1), Seed: i + 1}
	}
	return teams
}

func countSegment(matches []Match, segment Segment) int {
	n := 0
	for _, m := range matches {
		if m.Segment == segment {
			n++
		}
	}
	return n
}

func TestRound1Pairs(t *testing.T) {
	testCases := []struct {
		name     string
		size     int
		expected [][2]int
	}{
		{
			name:     "2 teams",
			size:     2,
			expected: [][2]int{{0, 1}},
		},
		{
			name:     "4 teams",
			size:     4,
			expected: [][2]int{{0, 3}, {1, 2}},
		},
		{
			name:     "8 teams",
			size:     8,
			expected: [][2]int{{0, 7}, {3, 4}, {1, 6}, {2, 5}},
		},
		{
			name:     "Non-power of 2 (7 teams)",
			size:     bracketSize(7),
			expected: [][2]int{{0, 7}, {3, 4}, {1, 6}, {2, 5}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, round1Pairs(tc.size))
		})
	}
}

func TestGenerate_Rejects(t *testing.T) {
	teams := seededTeams(3)
	dupID := []Team{teams[0], teams[1], teams[0]}
	dupName := []Team{teams[0], {ID: uuid.New(), Name: " team 1 "}}

	tests := []struct {
		name  string
		teams []Team
		opts  GenerateOptions
	}{
		{"No teams", nil, GenerateOptions{Format: SingleElimination}},
		{"One team", teams[:1], GenerateOptions{Format: DoubleElimination}},
		{"Duplicate id", dupID, GenerateOptions{Format: SingleElimination}},
		{"Duplicate name", dupName, GenerateOptions{Format: RoundRobin}},
		{"Unknown format", teams, GenerateOptions{Format: "ladder"}},
		{"Too many groups", teams, GenerateOptions{Format: GroupStage, GroupCount: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(uuid.New(), tt.teams, tt.opts)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestGenerate_SingleElimination(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 7, 8, 13, 16} {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			teams := seededTeams(n)
			matches, err := Generate(uuid.New(), teams, GenerateOptions{Format: SingleElimination, BestOf: 3})
			require.NoError(t, err)

			size := bracketSize(n)
			assert.Len(t, matches, size-1)

			byes := 0
			for _, m := range matches {
				assert.Equal(t, NoSegment, m.Segment)
				assert.Equal(t, 3, m.BestOf)
				if m.IsBye {
					byes++
					assert.Equal(t, 1, m.RoundNumber)
					assert.Equal(t, MatchCompleted, m.Status)
					assert.Equal(t, m.Team1ID, m.WinnerID)
					assert.Nil(t, m.Team2ID)
				} else {
					assert.Equal(t, MatchPending, m.Status)
				}
			}
			assert.Equal(t, size-n, byes)

			// Every bye winner already waits in round 2
			placed := 0
			for _, i := range RoundIndices(matches, NoSegment, 2) {
				if matches[i].Team1ID != nil {
					placed++
				}
				if matches[i].Team2ID != nil {
					placed++
				}
			}
			assert.Equal(t, byes, placed)
		})
	}
}

func TestGenerate_ByesGoToTopSeeds(t *testing.T) {
	teams := seededTeams(5)
	matches, err := Generate(uuid.New(), teams, GenerateOptions{Format: SingleElimination})
	require.NoError(t, err)

	var byeSeeds []uuid.UUID
	for _, i := range RoundIndices(matches, NoSegment, 1) {
		if matches[i].IsBye {
			byeSeeds = append(byeSeeds, *matches[i].Team1ID)
		}
	}
	assert.ElementsMatch(t, []uuid.UUID{teams[0].ID, teams[1].ID, teams[2].ID}, byeSeeds)
}

func TestGenerate_DoubleElimination(t *testing.T) {
	tests := []struct {
		teams         int
		winners       int
		losers        int
		losersRounds  int
		losersByes    int
		openingDrops  int
	}{
		{teams: 2, winners: 1, losers: 0, losersRounds: 0},
		{teams: 3, winners: 3, losers: 2, losersRounds: 2, losersByes: 1, openingDrops: 1},
		{teams: 4, winners: 3, losers: 2, losersRounds: 2, openingDrops: 2},
		{teams: 5, winners: 7, losers: 5, losersRounds: 4, losersByes: 2, openingDrops: 1},
		{teams: 8, winners: 7, losers: 6, losersRounds: 4, openingDrops: 4},
		{teams: 16, winners: 15, losers: 14, losersRounds: 6, openingDrops: 8},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d teams", tt.teams), func(t *testing.T) {
			matches, err := Generate(uuid.New(), seededTeams(tt.teams), GenerateOptions{Format: DoubleElimination})
			require.NoError(t, err)

			assert.Equal(t, tt.winners, countSegment(matches, WinnersSegment))
			assert.Equal(t, tt.losers, countSegment(matches, LosersSegment))
			assert.Equal(t, 1, countSegment(matches, GrandFinalSegment))
			assert.Equal(t, 1, countSegment(matches, ResetFinalSegment))
			assert.Equal(t, tt.losersRounds, MaxRound(matches, LosersSegment))

			byes := 0
			for _, m := range matches {
				if m.Segment == LosersSegment && m.IsBye {
					byes++
					assert.Equal(t, MatchPending, m.Status)
				}
			}
			assert.Equal(t, tt.losersByes, byes)

			if tt.losersRounds > 0 {
				assert.Len(t, RoundIndices(matches, LosersSegment, 1), (tt.openingDrops+1)/2)
			}

			// Round numbers are contiguous
			for r := 1; r <= tt.losersRounds; r++ {
				assert.True(t, RoundExists(matches, LosersSegment, r))
			}

			i, ok := Find(matches, ResetFinalSegment, 1, 1)
			require.True(t, ok)
			assert.Nil(t, matches[i].Team1ID)
			assert.Nil(t, matches[i].Team2ID)
		})
	}
}

func TestGenerate_Gauntlet(t *testing.T) {
	teams := seededTeams(4)
	matches, err := Generate(uuid.New(), teams, GenerateOptions{Format: Gauntlet})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, teams[2].ID, *matches[0].Team1ID)
	assert.Equal(t, teams[3].ID, *matches[0].Team2ID)
	assert.Equal(t, teams[1].ID, *matches[1].Team1ID)
	assert.Nil(t, matches[1].Team2ID)
	assert.Equal(t, teams[0].ID, *matches[2].Team1ID)
	assert.Equal(t, 3, matches[2].RoundNumber)
}

func TestGenerate_RoundRobin(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 6} {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			teams := seededTeams(n)
			matches, err := Generate(uuid.New(), teams, GenerateOptions{Format: RoundRobin})
			require.NoError(t, err)
			assert.Len(t, matches, n*(n-1)/2)

			seen := make(map[[2]uuid.UUID]bool)
			perRound := make(map[int]map[uuid.UUID]bool)
			for _, m := range matches {
				key := [2]uuid.UUID{*m.Team1ID, *m.Team2ID}
				assert.False(t, seen[key], "pairing repeated")
				seen[key] = true

				if perRound[m.RoundNumber] == nil {
					perRound[m.RoundNumber] = make(map[uuid.UUID]bool)
				}
				assert.False(t, perRound[m.RoundNumber][*m.Team1ID], "team plays twice in a round")
				assert.False(t, perRound[m.RoundNumber][*m.Team2ID], "team plays twice in a round")
				perRound[m.RoundNumber][*m.Team1ID] = true
				perRound[m.RoundNumber][*m.Team2ID] = true
			}
		})
	}
}

func TestGenerate_GroupStage(t *testing.T) {
	teams := seededTeams(8)
	matches, err := Generate(uuid.New(), teams, GenerateOptions{Format: GroupStage, GroupCount: 2})
	require.NoError(t, err)
	assert.Len(t, matches, 12)

	groups := SnakeGroups(teams, 2)
	require.Len(t, groups, 2)
	// A: 1 4 5 8, B: 2 3 6 7
	assert.Equal(t, []int{1, 4, 5, 8}, seedsOf(groups[0]))
	assert.Equal(t, []int{2, 3, 6, 7}, seedsOf(groups[1]))

	for _, m := range matches {
		assert.Contains(t, []string{"A", "B"}, m.Group)
	}
}

func seedsOf(teams []Team) []int {
	seeds := make([]int, len(teams))
	for i, t := range teams {
		seeds[i] = t.Seed
	}
	return seeds
}

func TestGroupLabel(t *testing.T) {
	assert.Equal(t, "A", GroupLabel(0))
	assert.Equal(t, "Z", GroupLabel(25))
	assert.Equal(t, "AA", GroupLabel(26))
}

func TestGenerate_SwissOpening(t *testing.T) {
	teams := seededTeams(5)
	matches, err := Generate(uuid.New(), teams, GenerateOptions{Format: Swiss})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, teams[0].ID, *matches[0].Team1ID)
	assert.Equal(t, teams[2].ID, *matches[0].Team2ID)
	assert.Equal(t, teams[1].ID, *matches[1].Team1ID)
	assert.Equal(t, teams[3].ID, *matches[1].Team2ID)

	bye := matches[2]
	assert.True(t, bye.IsBye)
	assert.Equal(t, MatchCompleted, bye.Status)
	assert.Equal(t, teams[4].ID, *bye.WinnerID)
}
