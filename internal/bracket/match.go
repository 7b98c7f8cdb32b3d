package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchReady      MatchStatus = "ready"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchDisputed   MatchStatus = "disputed"
)

// Segment tags which part of a double elimination bracket a match belongs to.
// Every other format leaves it empty.
type Segment string

const (
	NoSegment         Segment = ""
	WinnersSegment    Segment = "winners"
	LosersSegment     Segment = "losers"
	GrandFinalSegment Segment = "grand_final"
	ResetFinalSegment Segment = "reset_final"
)

type Slot int

const (
	Team1Slot Slot = 1
	Team2Slot Slot = 2
)

func (s Slot) String() string {
	if s == Team1Slot {
		return "team1"
	}
	return "team2"
}

type Match struct {
	ID           uuid.UUID `db:"id"`
	TournamentID uuid.UUID `db:"tournament_id"`

	// Position in the tournament, the bracket graph is derived from these
	Segment     Segment `db:"bracket_segment"`
	Group       string  `db:"group_label"`
	RoundNumber int     `db:"round_number"`
	MatchNumber int     `db:"match_number"`

	Team1ID *uuid.UUID `db:"team1_id"`
	Team2ID *uuid.UUID `db:"team2_id"`

	Score1 int         `db:"score1"`
	Score2 int         `db:"score2"`
	BestOf int         `db:"best_of"`
	Status MatchStatus `db:"status"`

	WinnerID *uuid.UUID `db:"winner_id"`
	LoserID  *uuid.UUID `db:"loser_id"`

	// A bye match only ever receives one team and resolves without scoring
	IsBye bool `db:"is_bye"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (m *Match) Team(slot Slot) *uuid.UUID {
	if slot == Team1Slot {
		return m.Team1ID
	}
	return m.Team2ID
}

func (m *Match) SetTeam(slot Slot, id *uuid.UUID) {
	if slot == Team1Slot {
		m.Team1ID = id
	} else {
		m.Team2ID = id
	}
}

func (m *Match) HasTeam(id uuid.UUID) bool {
	return (m.Team1ID != nil && *m.Team1ID == id) || (m.Team2ID != nil && *m.Team2ID == id)
}

// Opponent returns the other team of the match, nil when id is not playing or
// the other slot is still empty.
func (m *Match) Opponent(id uuid.UUID) *uuid.UUID {
	switch {
	case m.Team1ID != nil && *m.Team1ID == id:
		return m.Team2ID
	case m.Team2ID != nil && *m.Team2ID == id:
		return m.Team1ID
	}
	return nil
}

func (m *Match) IsCompleted() bool {
	return m.Status == MatchCompleted
}

func (m *Match) IsWinner(slot Slot) bool {
	team := m.Team(slot)
	return m.IsCompleted() && team != nil && m.WinnerID != nil && *m.WinnerID == *team
}

func (m *Match) IsLoser(slot Slot) bool {
	team := m.Team(slot)
	return m.IsCompleted() && team != nil && m.LoserID != nil && *m.LoserID == *team
}
