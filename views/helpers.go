package views

import (
	"context"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/middleware"
	"github.com/AdamBeresnev/op-tournament/internal/organizer"
	"github.com/google/uuid"
)

func GetOrganizer(ctx context.Context) *organizer.Organizer {
	return middleware.GetAuthenticatedOrganizer(ctx)
}

// TeamName resolves a slot for display, empty slots read "TBD".
func TeamName(teams map[uuid.UUID]bracket.Team, id *uuid.UUID) string {
	if id == nil {
		return "TBD"
	}
	if t, ok := teams[*id]; ok {
		return t.Name
	}
	return "Unknown"
}

func FormatLabel(f bracket.Format) string {
	switch f {
	case bracket.SingleElimination:
		return "Single Elimination"
	case bracket.DoubleElimination:
		return "Double Elimination"
	case bracket.RoundRobin:
		return "Round Robin"
	case bracket.Swiss:
		return "Swiss"
	case bracket.GroupStage:
		return "Group Stage"
	case bracket.Gauntlet:
		return "Gauntlet"
	}
	return string(f)
}

var formatOptions = []bracket.Format{
	bracket.SingleElimination,
	bracket.DoubleElimination,
	bracket.RoundRobin,
	bracket.Swiss,
	bracket.GroupStage,
	bracket.Gauntlet,
}

func teamLabel(t *bracket.Team) string {
	if t == nil {
		return "TBD"
	}
	return t.Name
}

func playable(m *bracket.Match, team1, team2 *bracket.Team) bool {
	return team1 != nil && team2 != nil && !m.IsBye
}

func canStart(m *bracket.Match, team1, team2 *bracket.Team) bool {
	return (m.Status == bracket.MatchPending || m.Status == bracket.MatchReady) && playable(m, team1, team2)
}

// Disputed matches are settled through resolve before a result can be reported again.
func canReport(m *bracket.Match, team1, team2 *bracket.Team) bool {
	return m.Status != bracket.MatchCompleted && m.Status != bracket.MatchDisputed && playable(m, team1, team2)
}
