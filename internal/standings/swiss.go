package standings

import (
	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
)

// PairSwiss pairs the next swiss round. Teams are ordered by the current
// standings and paired top down with as few rematches as possible. With an odd
// count the lowest ranked team that has not had a bye sits out.
func PairSwiss(matches []bracket.Match, teams []bracket.Team) ([]bracket.SwissPair, *uuid.UUID) {
	rows := Compute(matches, teams)
	table := tally(matches, teams)

	var bye *uuid.UUID
	if len(rows)%2 != 0 {
		pick := len(rows) - 1
		for i := len(rows) - 1; i >= 0; i-- {
			if table[rows[i].TeamID].Byes == 0 {
				pick = i
				break
			}
		}
		bye = utils.Ptr(rows[pick].TeamID)
		rows = append(rows[:pick:pick], rows[pick+1:]...)
	}

	order := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		order[i] = r.TeamID
	}
	played := previousOpponents(matches)

	for budget := 0; budget <= len(order)/2; budget++ {
		if pairs, ok := pairUp(order, played, budget); ok {
			return pairs, bye
		}
	}
	// Unreachable, the last budget allows every pairing to be a rematch
	return nil, bye
}

func previousOpponents(matches []bracket.Match) map[[2]uuid.UUID]bool {
	played := make(map[[2]uuid.UUID]bool)
	for i := range matches {
		m := &matches[i]
		if m.Team1ID == nil || m.Team2ID == nil {
			continue
		}
		played[[2]uuid.UUID{*m.Team1ID, *m.Team2ID}] = true
		played[[2]uuid.UUID{*m.Team2ID, *m.Team1ID}] = true
	}
	return played
}

// pairUp pairs the first remaining team with the closest ranked partner,
// backtracking when that leaves the rest unpairable within the rematch budget.
func pairUp(order []uuid.UUID, played map[[2]uuid.UUID]bool, budget int) ([]bracket.SwissPair, bool) {
	if len(order) == 0 {
		return []bracket.SwissPair{}, true
	}

	top := order[0]
	for i := 1; i < len(order); i++ {
		cost := 0
		if played[[2]uuid.UUID{top, order[i]}] {
			cost = 1
		}
		if cost > budget {
			continue
		}

		rest := make([]uuid.UUID, 0, len(order)-2)
		rest = append(rest, order[1:i]...)
		rest = append(rest, order[i+1:]...)

		if pairs, ok := pairUp(rest, played, budget-cost); ok {
			return append([]bracket.SwissPair{{Team1ID: top, Team2ID: order[i]}}, pairs...), true
		}
	}
	return nil, false
}
