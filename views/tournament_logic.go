package views

import (
	"fmt"
	"sort"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
)

type RoundColumn struct {
	Title   string
	Matches []bracket.Match
}

// Section is one independently drawn part of the bracket: a group, the
// winners or losers side, or the finals.
type Section struct {
	Title  string
	Rounds []RoundColumn
}

type BracketData struct {
	Sections []Section
	TeamMap  map[uuid.UUID]bracket.Team
}

type sectionKey struct {
	segment bracket.Segment
	group   string
}

func PrepareBracketData(teams []bracket.Team, matches []bracket.Match) BracketData {
	teamMap := make(map[uuid.UUID]bracket.Team)
	for _, t := range teams {
		teamMap[t.ID] = t
	}

	rounds := make(map[sectionKey]map[int][]bracket.Match)
	var keys []sectionKey
	for _, m := range matches {
		key := sectionKey{segment: m.Segment, group: m.Group}
		// Both finals are drawn as one section
		if m.Segment == bracket.ResetFinalSegment {
			key.segment = bracket.GrandFinalSegment
		}
		if _, exists := rounds[key]; !exists {
			rounds[key] = make(map[int][]bracket.Match)
			keys = append(keys, key)
		}
		round := m.RoundNumber
		if m.Segment == bracket.ResetFinalSegment {
			round = 2
		}
		rounds[key][round] = append(rounds[key][round], m)
	}

	sort.Slice(keys, func(i, j int) bool {
		if segmentOrder(keys[i].segment) != segmentOrder(keys[j].segment) {
			return segmentOrder(keys[i].segment) < segmentOrder(keys[j].segment)
		}
		return keys[i].group < keys[j].group
	})

	sections := make([]Section, 0, len(keys))
	for _, key := range keys {
		byRound := rounds[key]
		roundNums := make([]int, 0, len(byRound))
		for r := range byRound {
			roundNums = append(roundNums, r)
		}
		sort.Ints(roundNums)
		sortRounds(byRound, roundNums)

		section := Section{Title: sectionTitle(key)}
		for _, r := range roundNums {
			section.Rounds = append(section.Rounds, RoundColumn{
				Title:   roundTitle(key.segment, r),
				Matches: byRound[r],
			})
		}
		sections = append(sections, section)
	}

	return BracketData{Sections: sections, TeamMap: teamMap}
}

func segmentOrder(s bracket.Segment) int {
	switch s {
	case bracket.WinnersSegment:
		return 1
	case bracket.LosersSegment:
		return 2
	case bracket.GrandFinalSegment:
		return 3
	}
	return 0
}

func sectionTitle(key sectionKey) string {
	switch key.segment {
	case bracket.WinnersSegment:
		return "Winners Bracket"
	case bracket.LosersSegment:
		return "Losers Bracket"
	case bracket.GrandFinalSegment:
		return "Finals"
	}
	if key.group != "" {
		return "Group " + key.group
	}
	return "Bracket"
}

func roundTitle(segment bracket.Segment, round int) string {
	if segment == bracket.GrandFinalSegment {
		if round == 1 {
			return "Grand Final"
		}
		return "Reset Final"
	}
	return fmt.Sprintf("Round %d", round)
}

func sortRounds(rounds map[int][]bracket.Match, roundNums []int) {
	for _, r := range roundNums {
		sort.Slice(rounds[r], func(i, j int) bool {
			return rounds[r][i].MatchNumber < rounds[r][j].MatchNumber
		})
	}
}
