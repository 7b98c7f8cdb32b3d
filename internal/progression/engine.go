// Package progression decides how a finished match moves teams through the
// bracket. Decide works on a snapshot and returns a Plan; nothing here touches
// storage, the caller applies the plan in the same transaction it read from.
package progression

import (
	"fmt"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/standings"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
)

// Snapshot is one consistent read of a tournament and every match it owns.
type Snapshot struct {
	Tournament bracket.Tournament
	Teams      []bracket.Team
	Matches    []bracket.Match
}

// SlotWrite fills an empty slot. Slots are written once, so the write is only
// valid while the slot is still empty.
type SlotWrite struct {
	MatchID uuid.UUID
	Slot    bracket.Slot
	TeamID  uuid.UUID
}

// ByeResolution completes a bye match whose only team just arrived.
type ByeResolution struct {
	MatchID  uuid.UUID
	WinnerID uuid.UUID
}

// ResetWrite repopulates the reset final after the losers bracket champion won
// the grand final.
type ResetWrite struct {
	MatchID uuid.UUID
	Team1ID uuid.UUID
	Team2ID uuid.UUID
}

type Plan struct {
	SlotWrites          []SlotWrite
	Byes                []ByeResolution
	Reset               *ResetWrite
	TournamentCompleted bool

	// Standings of pool formats after this result
	Standings []standings.Standing

	// Structural problems that were resolved by ending the tournament
	Anomalies []string
}

type planner struct {
	tournament bracket.Tournament
	teamCount  int
	matches    []bracket.Match
	plan       Plan
	forceEnd   bool
}

// Decide computes every write caused by the completion of matchID. The match
// must already be completed in the snapshot with winnerID as its winner.
func Decide(snap Snapshot, matchID, winnerID uuid.UUID, loserID *uuid.UUID) (Plan, error) {
	p := &planner{
		tournament: snap.Tournament,
		teamCount:  len(snap.Teams),
		matches:    make([]bracket.Match, len(snap.Matches)),
	}
	copy(p.matches, snap.Matches)

	idx, ok := bracket.IndexOf(p.matches, matchID)
	if !ok {
		return Plan{}, fmt.Errorf("%w: match %s", bracket.ErrNotFound, matchID)
	}
	m := &p.matches[idx]
	if m.TournamentID != snap.Tournament.ID {
		return Plan{}, fmt.Errorf("%w: match %s belongs to another tournament", bracket.ErrInvalidState, matchID)
	}
	if snap.Tournament.Status == bracket.TournamentCompleted {
		return Plan{}, fmt.Errorf("%w: tournament %s is already completed", bracket.ErrInvalidState, snap.Tournament.ID)
	}
	if !m.IsCompleted() {
		return Plan{}, fmt.Errorf("%w: match %s is %s, not completed", bracket.ErrInvalidState, matchID, m.Status)
	}
	if !m.HasTeam(winnerID) {
		return Plan{}, fmt.Errorf("%w: winner %s is not part of match %s", bracket.ErrInvalidState, winnerID, matchID)
	}
	if loserID != nil {
		opponent := m.Opponent(winnerID)
		if *loserID == winnerID || opponent == nil || *opponent != *loserID {
			return Plan{}, fmt.Errorf("%w: loser %s is not the opponent of %s", bracket.ErrInvalidState, *loserID, winnerID)
		}
	}

	if err := p.advance(idx, winnerID, loserID); err != nil {
		return Plan{}, err
	}

	if p.tournament.Format.IsPool() {
		p.plan.Standings = standings.Compute(p.matches, snap.Teams)
	}
	p.plan.TournamentCompleted = p.forceEnd || IsComplete(&p.tournament, p.teamCount, p.matches)
	return p.plan, nil
}

func (p *planner) advance(idx int, winner uuid.UUID, loser *uuid.UUID) error {
	switch p.tournament.Format {
	case bracket.SingleElimination:
		return p.advanceSingle(idx, winner)
	case bracket.DoubleElimination:
		return p.advanceDouble(idx, winner, loser)
	case bracket.Gauntlet:
		return p.advanceGauntlet(idx, winner)
	case bracket.RoundRobin, bracket.Swiss, bracket.GroupStage:
		// Pools have no successor slots, standings and completion cover them
		return nil
	}
	return fmt.Errorf("%w: unsupported format %q", bracket.ErrInvalidState, p.tournament.Format)
}

func (p *planner) advanceSingle(idx int, winner uuid.UUID) error {
	next, ok := bracket.Successor(p.matches, &p.matches[idx])
	if !ok {
		// That was the final
		return nil
	}
	return p.fill(next, winner)
}

func (p *planner) advanceGauntlet(idx int, winner uuid.UUID) error {
	m := &p.matches[idx]
	j, ok := bracket.Find(p.matches, m.Segment, m.RoundNumber+1, 1)
	if !ok {
		return nil
	}
	return p.fill(bracket.SlotRef{MatchID: p.matches[j].ID, Slot: bracket.Team2Slot}, winner)
}

func (p *planner) advanceDouble(idx int, winner uuid.UUID, loser *uuid.UUID) error {
	m := &p.matches[idx]
	switch {
	case bracket.IsGrandFinal(m):
		return p.grandFinal(idx, winner)
	case bracket.IsResetFinal(m):
		return nil
	case m.Segment == bracket.LosersSegment:
		return p.advanceLosers(idx, winner)
	}

	if next, ok := bracket.Successor(p.matches, m); ok {
		if err := p.fill(next, winner); err != nil {
			return err
		}
	} else if err := p.toGrandFinal(bracket.Team1Slot, winner); err != nil {
		return err
	}

	if loser != nil {
		return p.dropLoser(m.RoundNumber, *loser)
	}
	return nil
}

func (p *planner) advanceLosers(idx int, winner uuid.UUID) error {
	m := &p.matches[idx]
	next := m.RoundNumber + 1
	if !bracket.RoundExists(p.matches, bracket.LosersSegment, next) {
		// Losers bracket champion
		return p.toGrandFinal(bracket.Team2Slot, winner)
	}
	ref, ok := bracket.FirstEmptySlot(p.matches, bracket.LosersSegment, next)
	if !ok {
		return fmt.Errorf("%w: losers round %d has no open slot", bracket.ErrStructuralInconsistency, next)
	}
	return p.fill(ref, winner)
}

func (p *planner) dropLoser(winnersRound int, loser uuid.UUID) error {
	if bracket.MaxRound(p.matches, bracket.LosersSegment) == 0 {
		// Two team bracket, the loser goes straight to the grand final
		return p.toGrandFinal(bracket.Team2Slot, loser)
	}

	target := bracket.DropRound(winnersRound)
	if !bracket.RoundExists(p.matches, bracket.LosersSegment, target) {
		p.anomaly("losers round %d missing for the loser of winners round %d", target, winnersRound)
		return nil
	}
	ref, ok := bracket.FirstEmptySlot(p.matches, bracket.LosersSegment, target)
	if !ok {
		return fmt.Errorf("%w: losers round %d has no open slot", bracket.ErrStructuralInconsistency, target)
	}
	return p.fill(ref, loser)
}

func (p *planner) toGrandFinal(slot bracket.Slot, team uuid.UUID) error {
	j, ok := bracket.Find(p.matches, bracket.GrandFinalSegment, 1, 1)
	if !ok {
		p.anomaly("grand final missing")
		return nil
	}
	return p.fill(bracket.SlotRef{MatchID: p.matches[j].ID, Slot: slot}, team)
}

func (p *planner) grandFinal(idx int, winner uuid.UUID) error {
	gf := &p.matches[idx]
	if gf.Team1ID != nil && *gf.Team1ID == winner {
		// Winners bracket champion never lost, event over
		return nil
	}

	j, ok := bracket.Find(p.matches, bracket.ResetFinalSegment, 1, 1)
	if !ok {
		p.anomaly("reset final missing after the losers bracket champion won the grand final")
		return nil
	}
	if gf.Team1ID == nil || gf.Team2ID == nil {
		return fmt.Errorf("%w: grand final %s has an empty slot", bracket.ErrStructuralInconsistency, gf.ID)
	}

	reset := &p.matches[j]
	if reset.IsCompleted() {
		return fmt.Errorf("%w: reset final %s already played", bracket.ErrInvalidState, reset.ID)
	}
	reset.Team1ID = utils.Ptr(*gf.Team1ID)
	reset.Team2ID = utils.Ptr(*gf.Team2ID)
	reset.Score1, reset.Score2 = 0, 0
	reset.Status = bracket.MatchPending
	reset.WinnerID, reset.LoserID = nil, nil

	p.plan.Reset = &ResetWrite{MatchID: reset.ID, Team1ID: *gf.Team1ID, Team2ID: *gf.Team2ID}
	return nil
}

// fill writes team into an empty slot of the working copy and records it. A
// bye match resolves on arrival and its team keeps moving.
func (p *planner) fill(ref bracket.SlotRef, team uuid.UUID) error {
	j, ok := bracket.IndexOf(p.matches, ref.MatchID)
	if !ok {
		return fmt.Errorf("%w: successor match %s", bracket.ErrStructuralInconsistency, ref.MatchID)
	}
	m := &p.matches[j]
	if current := m.Team(ref.Slot); current != nil {
		return fmt.Errorf("%w: %s of match %s is already filled", bracket.ErrInvalidState, ref.Slot, m.ID)
	}

	m.SetTeam(ref.Slot, utils.Ptr(team))
	p.plan.SlotWrites = append(p.plan.SlotWrites, SlotWrite{MatchID: m.ID, Slot: ref.Slot, TeamID: team})

	if !m.IsBye || m.IsCompleted() {
		return nil
	}
	m.Status = bracket.MatchCompleted
	m.WinnerID = utils.Ptr(team)
	p.plan.Byes = append(p.plan.Byes, ByeResolution{MatchID: m.ID, WinnerID: team})
	return p.advance(j, team, nil)
}

func (p *planner) anomaly(format string, args ...any) {
	p.plan.Anomalies = append(p.plan.Anomalies, fmt.Sprintf(format, args...))
	p.forceEnd = true
}
