package bracket

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentDraft     TournamentStatus = "draft"
	TournamentOngoing   TournamentStatus = "ongoing"
	TournamentCompleted TournamentStatus = "completed"
)

type Format string

const (
	SingleElimination Format = "single_elimination"
	DoubleElimination Format = "double_elimination"
	RoundRobin        Format = "round_robin"
	Swiss             Format = "swiss"
	GroupStage        Format = "group_stage"
	Gauntlet          Format = "gauntlet"
)

var formats = []Format{SingleElimination, DoubleElimination, RoundRobin, Swiss, GroupStage, Gauntlet}

func ParseFormat(s string) (Format, error) {
	for _, f := range formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrInvalidState, s)
}

// IsPool reports whether the format ranks teams by standings instead of
// pushing winners through a bracket.
func (f Format) IsPool() bool {
	return f == RoundRobin || f == Swiss || f == GroupStage
}

type Tournament struct {
	ID          uuid.UUID        `db:"id"`
	OwnerID     uuid.UUID        `db:"owner_id"`
	Name        string           `db:"name"`
	Format      Format           `db:"format"`
	Status      TournamentStatus `db:"status"`
	BestOf      int              `db:"best_of"`
	SwissRounds int              `db:"swiss_rounds"`
	GroupCount  int              `db:"group_count"`
	CreatedAt   time.Time        `db:"created_at"`
}

// SwissRoundTarget is the number of swiss rounds to play before the event ends.
// Defaults to ceil(log2(teams)) when the organizer did not pick one.
func (t *Tournament) SwissRoundTarget(teamCount int) int {
	if t.SwissRounds > 0 {
		return t.SwissRounds
	}
	if teamCount < 2 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(teamCount))))
}

type Team struct {
	ID           uuid.UUID `db:"id"`
	TournamentID uuid.UUID `db:"tournament_id"`
	Name         string    `db:"name"`
	Seed         int       `db:"seed"`
	CreatedAt    time.Time `db:"created_at"`
}
