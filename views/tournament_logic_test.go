package views

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teamsFor(tournamentID uuid.UUID, names ...string) []bracket.Team {
	teams := make([]bracket.Team, len(names))
	for i, n := range names {
		teams[i] = bracket.Team{ID: uuid.New(), TournamentID: tournamentID, Name: n, Seed: i + 1}
	}
	return teams
}

func TestPrepareBracketData_DoubleElimination(t *testing.T) {
	tID := uuid.New()
	teams := teamsFor(tID, "A", "B", "C", "D")
	matches, err := bracket.Generate(tID, teams, bracket.GenerateOptions{Format: bracket.DoubleElimination})
	require.NoError(t, err)

	// Storage order is not display order
	for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
		matches[i], matches[j] = matches[j], matches[i]
	}

	data := PrepareBracketData(teams, matches)
	require.Len(t, data.Sections, 3)
	assert.Equal(t, "Winners Bracket", data.Sections[0].Title)
	assert.Equal(t, "Losers Bracket", data.Sections[1].Title)
	assert.Equal(t, "Finals", data.Sections[2].Title)

	winners := data.Sections[0].Rounds
	require.Len(t, winners, 2)
	assert.Equal(t, "Round 1", winners[0].Title)
	require.Len(t, winners[0].Matches, 2)
	assert.Equal(t, 1, winners[0].Matches[0].MatchNumber)
	assert.Equal(t, 2, winners[0].Matches[1].MatchNumber)

	finals := data.Sections[2].Rounds
	require.Len(t, finals, 2)
	assert.Equal(t, "Grand Final", finals[0].Title)
	assert.Equal(t, "Reset Final", finals[1].Title)
	assert.Len(t, data.TeamMap, 4)
}

func TestPrepareBracketData_Groups(t *testing.T) {
	tID := uuid.New()
	teams := teamsFor(tID, "A", "B", "C", "D", "E", "F")
	matches, err := bracket.Generate(tID, teams, bracket.GenerateOptions{Format: bracket.GroupStage, GroupCount: 2})
	require.NoError(t, err)

	data := PrepareBracketData(teams, matches)
	require.Len(t, data.Sections, 2)
	assert.Equal(t, "Group A", data.Sections[0].Title)
	assert.Equal(t, "Group B", data.Sections[1].Title)
	assert.Len(t, data.Sections[0].Rounds, 3)
}

func TestTeamName(t *testing.T) {
	teams := map[uuid.UUID]bracket.Team{}
	id := uuid.New()
	teams[id] = bracket.Team{ID: id, Name: "Alpha"}

	assert.Equal(t, "TBD", TeamName(teams, nil))
	assert.Equal(t, "Alpha", TeamName(teams, &id))
	missing := uuid.New()
	assert.Equal(t, "Unknown", TeamName(teams, &missing))
}

func TestTournamentViewEscapesNames(t *testing.T) {
	tID := uuid.New()
	teams := teamsFor(tID, "<script>", "B")
	matches, err := bracket.Generate(tID, teams, bracket.GenerateOptions{Format: bracket.SingleElimination})
	require.NoError(t, err)

	tournament := &bracket.Tournament{ID: tID, Name: "Cup & Co", Format: bracket.SingleElimination, Status: bracket.TournamentOngoing, BestOf: 1}
	var buf bytes.Buffer
	require.NoError(t, TournamentView(tournament, teams, matches, nil, &matches[0].ID).Render(t.Context(), &buf))

	html := buf.String()
	assert.Contains(t, html, "Cup &amp; Co")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, fmt.Sprintf(`href="/matches/%s"`, matches[0].ID))
}
