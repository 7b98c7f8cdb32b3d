// Package standings ranks teams of pool formats from their completed matches.
// Everything here is derived on demand, nothing is stored.
package standings

import (
	"sort"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
)

type Standing struct {
	TeamID       uuid.UUID `json:"team_id"`
	Group        string    `json:"group,omitempty"`
	Rank         int       `json:"rank"`
	Played       int       `json:"played"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Byes         int       `json:"byes"`
	ScoreFor     int       `json:"score_for"`
	ScoreAgainst int       `json:"score_against"`
	Buchholz     int       `json:"buchholz"`

	seed      int
	opponents []uuid.UUID
}

func (s *Standing) ScoreDiff() int {
	return s.ScoreFor - s.ScoreAgainst
}

// Compute ranks every team. Teams are ranked inside their group; results come
// back ordered by group, then rank. Ordering is wins, then Buchholz (sum of the
// opponents' wins), then score difference, then score for, then seed.
func Compute(matches []bracket.Match, teams []bracket.Team) []Standing {
	table := tally(matches, teams)

	rows := make([]Standing, 0, len(table))
	for _, s := range table {
		rows = append(rows, *s)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Group != rows[j].Group {
			return rows[i].Group < rows[j].Group
		}
		return less(&rows[i], &rows[j])
	})

	rank := 0
	for i := range rows {
		if i == 0 || rows[i].Group != rows[i-1].Group {
			rank = 0
		}
		rank++
		rows[i].Rank = rank
	}
	return rows
}

func less(a, b *Standing) bool {
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	if a.Buchholz != b.Buchholz {
		return a.Buchholz > b.Buchholz
	}
	if a.ScoreDiff() != b.ScoreDiff() {
		return a.ScoreDiff() > b.ScoreDiff()
	}
	if a.ScoreFor != b.ScoreFor {
		return a.ScoreFor > b.ScoreFor
	}
	return a.seed < b.seed
}

func tally(matches []bracket.Match, teams []bracket.Team) map[uuid.UUID]*Standing {
	table := make(map[uuid.UUID]*Standing, len(teams))
	for _, t := range teams {
		table[t.ID] = &Standing{TeamID: t.ID, seed: t.Seed}
	}

	for i := range matches {
		m := &matches[i]
		for _, id := range []*uuid.UUID{m.Team1ID, m.Team2ID} {
			if id == nil {
				continue
			}
			if s, ok := table[*id]; ok && m.Group != "" {
				s.Group = m.Group
			}
		}

		if !m.IsCompleted() || m.WinnerID == nil {
			continue
		}
		winner, ok := table[*m.WinnerID]
		if !ok {
			continue
		}
		if m.IsBye {
			winner.Wins++
			winner.Byes++
			continue
		}

		loserID := m.Opponent(*m.WinnerID)
		if loserID == nil {
			continue
		}
		loser, ok := table[*loserID]
		if !ok {
			continue
		}

		winnerScore, loserScore := m.Score1, m.Score2
		if m.Team2ID != nil && *m.Team2ID == *m.WinnerID {
			winnerScore, loserScore = m.Score2, m.Score1
		}

		winner.Played++
		winner.Wins++
		winner.ScoreFor += winnerScore
		winner.ScoreAgainst += loserScore
		winner.opponents = append(winner.opponents, loser.TeamID)

		loser.Played++
		loser.Losses++
		loser.ScoreFor += loserScore
		loser.ScoreAgainst += winnerScore
		loser.opponents = append(loser.opponents, winner.TeamID)
	}

	for _, s := range table {
		s.Buchholz = 0
		for _, opp := range s.opponents {
			s.Buchholz += table[opp].Wins
		}
	}
	return table
}
