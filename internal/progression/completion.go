package progression

import (
	"github.com/AdamBeresnev/op-tournament/internal/bracket"
)

// IsComplete reports whether the tournament has a final result given its
// matches. It is the only place that decides completion.
func IsComplete(t *bracket.Tournament, teamCount int, matches []bracket.Match) bool {
	if len(matches) == 0 {
		return false
	}

	switch t.Format {
	case bracket.SingleElimination, bracket.Gauntlet:
		return lastRoundDone(matches, bracket.NoSegment)
	case bracket.DoubleElimination:
		return doubleElimDone(matches)
	case bracket.RoundRobin, bracket.GroupStage:
		return allDone(matches)
	case bracket.Swiss:
		round := bracket.MaxRound(matches, bracket.NoSegment)
		return round >= t.SwissRoundTarget(teamCount) && roundDone(matches, round)
	}
	return false
}

func lastRoundDone(matches []bracket.Match, segment bracket.Segment) bool {
	round := bracket.MaxRound(matches, segment)
	return round > 0 && roundDone(matches, round)
}

func roundDone(matches []bracket.Match, round int) bool {
	found := false
	for i := range matches {
		if matches[i].RoundNumber != round {
			continue
		}
		found = true
		if !matches[i].IsCompleted() {
			return false
		}
	}
	return found
}

func allDone(matches []bracket.Match) bool {
	for i := range matches {
		if !matches[i].IsCompleted() {
			return false
		}
	}
	return true
}

func doubleElimDone(matches []bracket.Match) bool {
	if i, ok := bracket.Find(matches, bracket.ResetFinalSegment, 1, 1); ok && matches[i].IsCompleted() {
		return true
	}

	i, ok := bracket.Find(matches, bracket.GrandFinalSegment, 1, 1)
	if !ok || !matches[i].IsCompleted() {
		return false
	}
	gf := &matches[i]
	if gf.WinnerID != nil && gf.Team1ID != nil && *gf.WinnerID == *gf.Team1ID {
		return true
	}

	// Losers champion won but there is nowhere to play the reset
	_, hasReset := bracket.Find(matches, bracket.ResetFinalSegment, 1, 1)
	return !hasReset
}
