package bracket

import (
	"sort"

	"github.com/google/uuid"
)

// SlotRef points at one team slot of one match.
type SlotRef struct {
	MatchID uuid.UUID
	Slot    Slot
}

// RoundIndices returns the positions in matches of every match in the given
// segment and round, ordered by match number.
func RoundIndices(matches []Match, segment Segment, round int) []int {
	var idx []int
	for i := range matches {
		if matches[i].Segment == segment && matches[i].RoundNumber == round {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return matches[idx[a]].MatchNumber < matches[idx[b]].MatchNumber
	})
	return idx
}

func RoundExists(matches []Match, segment Segment, round int) bool {
	for i := range matches {
		if matches[i].Segment == segment && matches[i].RoundNumber == round {
			return true
		}
	}
	return false
}

// Find returns the position of the match with the given coordinates.
func Find(matches []Match, segment Segment, round, number int) (int, bool) {
	for i := range matches {
		m := &matches[i]
		if m.Segment == segment && m.RoundNumber == round && m.MatchNumber == number {
			return i, true
		}
	}
	return -1, false
}

func IndexOf(matches []Match, id uuid.UUID) (int, bool) {
	for i := range matches {
		if matches[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Successor computes where the winner of m goes inside its own segment.
// Round r match at zero-based index i feeds round r+1 match at index i/2, even
// indices take the team1 slot. The second return value is false when m is in
// the last round of its segment.
func Successor(matches []Match, m *Match) (SlotRef, bool) {
	current := RoundIndices(matches, m.Segment, m.RoundNumber)
	pos := -1
	for i, idx := range current {
		if matches[idx].ID == m.ID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return SlotRef{}, false
	}

	next := RoundIndices(matches, m.Segment, m.RoundNumber+1)
	if len(next) == 0 || pos/2 >= len(next) {
		return SlotRef{}, false
	}

	slot := Team1Slot
	if pos%2 != 0 {
		slot = Team2Slot
	}
	return SlotRef{MatchID: matches[next[pos/2]].ID, Slot: slot}, true
}

// FirstEmptySlot scans a round in ascending match number and returns the first
// open team1 slot, or failing that the first open team2 slot. Completed matches
// are skipped and so are the team2 slots of bye matches, which never fill.
func FirstEmptySlot(matches []Match, segment Segment, round int) (SlotRef, bool) {
	idx := RoundIndices(matches, segment, round)
	for _, i := range idx {
		m := &matches[i]
		if !m.IsCompleted() && m.Team1ID == nil {
			return SlotRef{MatchID: m.ID, Slot: Team1Slot}, true
		}
	}
	for _, i := range idx {
		m := &matches[i]
		if !m.IsCompleted() && !m.IsBye && m.Team2ID == nil {
			return SlotRef{MatchID: m.ID, Slot: Team2Slot}, true
		}
	}
	return SlotRef{}, false
}

// IsGrandFinal decides whether m is the grand final of a double elimination
// bracket. The generator tags it explicitly so no match number arithmetic is
// needed.
func IsGrandFinal(m *Match) bool {
	return m.Segment == GrandFinalSegment
}

func IsResetFinal(m *Match) bool {
	return m.Segment == ResetFinalSegment
}

// DropRound maps a winners bracket round to the losers bracket round its
// losers drop into. Round 1 losers open the losers bracket, later losers enter
// the even "major" rounds where they meet losers bracket survivors.
func DropRound(winnersRound int) int {
	if winnersRound <= 1 {
		return 1
	}
	return 2 * (winnersRound - 1)
}

// MaxRound returns the highest round number in a segment, 0 when it is empty.
func MaxRound(matches []Match, segment Segment) int {
	max := 0
	for i := range matches {
		if matches[i].Segment == segment && matches[i].RoundNumber > max {
			max = matches[i].RoundNumber
		}
	}
	return max
}
