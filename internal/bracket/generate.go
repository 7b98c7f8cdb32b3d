package bracket

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
)

type GenerateOptions struct {
	Format     Format
	BestOf     int
	GroupCount int
}

// Generate builds every match of a new tournament. Teams must be ordered by
// seed. Later rounds are created as empty placeholders so advancing a result
// only ever fills slots.
func Generate(tournamentID uuid.UUID, teams []Team, opts GenerateOptions) ([]Match, error) {
	if len(teams) < 2 {
		return nil, fmt.Errorf("%w: at least 2 teams are required, got %d", ErrInvalidState, len(teams))
	}
	if err := checkDuplicates(teams); err != nil {
		return nil, err
	}
	bestOf := opts.BestOf
	if bestOf <= 0 {
		bestOf = 1
	}

	switch opts.Format {
	case SingleElimination:
		return generateSingleElim(tournamentID, teams, bestOf), nil
	case DoubleElimination:
		return generateDoubleElim(tournamentID, teams, bestOf), nil
	case Gauntlet:
		return generateGauntlet(tournamentID, teams, bestOf), nil
	case RoundRobin:
		return roundRobin(tournamentID, teams, "", bestOf), nil
	case GroupStage:
		return generateGroupStage(tournamentID, teams, opts.GroupCount, bestOf)
	case Swiss:
		return generateSwissOpening(tournamentID, teams, bestOf), nil
	}
	return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidState, opts.Format)
}

func checkDuplicates(teams []Team) error {
	ids := make(map[uuid.UUID]struct{}, len(teams))
	names := make(map[string]struct{}, len(teams))
	for _, t := range teams {
		if _, ok := ids[t.ID]; ok {
			return fmt.Errorf("%w: duplicate team id %s", ErrInvalidState, t.ID)
		}
		ids[t.ID] = struct{}{}

		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			continue
		}
		if _, ok := names[name]; ok {
			return fmt.Errorf("%w: duplicate team name %q", ErrInvalidState, t.Name)
		}
		names[name] = struct{}{}
	}
	return nil
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func bracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// round1Pairs returns zero-based seed pairs for the opening round in bracket
// order: 1v8, 4v5, 2v7, 3v6 for eight slots. Top seeds never meet early.
func round1Pairs(size int) [][2]int {
	if size == 0 {
		return [][2]int{}
	}

	order := []int{0}
	for len(order) < size {
		var next []int
		currentCount := len(order) * 2

		for _, seed := range order {
			next = append(next, seed)
			next = append(next, (currentCount-1)-seed)
		}
		order = next
	}

	pairs := make([][2]int, 0, size/2)
	for i := 0; i < len(order); i += 2 {
		pairs = append(pairs, [2]int{order[i], order[i+1]})
	}

	return pairs
}

func newMatch(tournamentID uuid.UUID, segment Segment, round, number, bestOf int) Match {
	return Match{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Segment:      segment,
		RoundNumber:  round,
		MatchNumber:  number,
		BestOf:       bestOf,
		Status:       MatchPending,
	}
}

// eliminationTree lays out a full knockout tree for size slots in one segment.
func eliminationTree(tournamentID uuid.UUID, segment Segment, size, bestOf int) []Match {
	rounds := int(math.Log2(float64(size)))
	matches := make([]Match, 0, size-1)
	for r := 1; r <= rounds; r++ {
		for i := 1; i <= size>>r; i++ {
			matches = append(matches, newMatch(tournamentID, segment, r, i, bestOf))
		}
	}
	return matches
}

// seedOpeningRound places teams into round 1 and resolves byes. Returns the
// number of round 1 matches that will actually be played.
func seedOpeningRound(matches []Match, segment Segment, teams []Team) int {
	size := bracketSize(len(teams))
	round1 := RoundIndices(matches, segment, 1)
	played := 0

	for i, pair := range round1Pairs(size) {
		m := &matches[round1[i]]
		if pair[0] < len(teams) {
			m.Team1ID = utils.Ptr(teams[pair[0]].ID)
		}
		if pair[1] < len(teams) {
			m.Team2ID = utils.Ptr(teams[pair[1]].ID)
		}

		if m.Team2ID != nil {
			played++
			continue
		}

		// Top seed with nobody to play, walk it straight into round 2
		m.IsBye = true
		m.Status = MatchCompleted
		m.WinnerID = m.Team1ID
		if next, ok := Successor(matches, m); ok {
			j, _ := IndexOf(matches, next.MatchID)
			matches[j].SetTeam(next.Slot, m.Team1ID)
		}
	}
	return played
}

func generateSingleElim(tournamentID uuid.UUID, teams []Team, bestOf int) []Match {
	matches := eliminationTree(tournamentID, NoSegment, bracketSize(len(teams)), bestOf)
	seedOpeningRound(matches, NoSegment, teams)
	return matches
}

func generateDoubleElim(tournamentID uuid.UUID, teams []Team, bestOf int) []Match {
	size := bracketSize(len(teams))
	matches := eliminationTree(tournamentID, WinnersSegment, size, bestOf)
	played := seedOpeningRound(matches, WinnersSegment, teams)

	winnersRounds := int(math.Log2(float64(size)))
	matches = append(matches, losersBracket(tournamentID, size, winnersRounds, played, bestOf)...)

	matches = append(matches,
		newMatch(tournamentID, GrandFinalSegment, 1, 1, bestOf),
		newMatch(tournamentID, ResetFinalSegment, 1, 1, bestOf),
	)
	return matches
}

// losersBracket sizes each losers round from the number of teams that can
// reach it. Entrants fill team1 slots first, so a round with an odd entrant
// count ends with exactly one bye match.
func losersBracket(tournamentID uuid.UUID, size, winnersRounds, openingDrops, bestOf int) []Match {
	var matches []Match
	survivors := 0
	for r := 1; r <= 2*(winnersRounds-1); r++ {
		var entrants int
		switch {
		case r == 1:
			entrants = openingDrops
		case r%2 == 0:
			// Major round, losers of winners round r/2+1 drop in
			entrants = survivors + size>>(r/2+1)
		default:
			entrants = survivors
		}

		count := (entrants + 1) / 2
		for i := 1; i <= count; i++ {
			m := newMatch(tournamentID, LosersSegment, r, i, bestOf)
			m.IsBye = entrants%2 == 1 && i == count
			matches = append(matches, m)
		}
		survivors = count
	}
	return matches
}

func generateGauntlet(tournamentID uuid.UUID, teams []Team, bestOf int) []Match {
	n := len(teams)
	matches := make([]Match, 0, n-1)
	for r := 1; r < n; r++ {
		m := newMatch(tournamentID, NoSegment, r, 1, bestOf)
		m.Team1ID = utils.Ptr(teams[n-1-r].ID)
		if r == 1 {
			m.Team2ID = utils.Ptr(teams[n-1].ID)
		}
		matches = append(matches, m)
	}
	return matches
}

// roundRobin schedules every pairing once with the circle method, one team is
// kept fixed while the rest rotate.
func roundRobin(tournamentID uuid.UUID, teams []Team, group string, bestOf int) []Match {
	players := make([]int, len(teams))
	for i := range teams {
		players[i] = i
	}
	if len(players)%2 != 0 {
		players = append(players, -1)
	}
	n := len(players)

	var matches []Match
	for r := 1; r < n; r++ {
		number := 0
		for i := 0; i < n/2; i++ {
			a, b := players[i], players[n-1-i]
			if a < 0 || b < 0 {
				continue
			}
			if a > b {
				a, b = b, a
			}
			number++
			m := newMatch(tournamentID, NoSegment, r, number, bestOf)
			m.Group = group
			m.Team1ID = utils.Ptr(teams[a].ID)
			m.Team2ID = utils.Ptr(teams[b].ID)
			matches = append(matches, m)
		}
		players = append([]int{players[0], players[n-1]}, players[1:n-1]...)
	}
	return matches
}

func generateGroupStage(tournamentID uuid.UUID, teams []Team, groupCount, bestOf int) ([]Match, error) {
	if groupCount <= 0 {
		groupCount = (len(teams) + 3) / 4
	}
	if groupCount > len(teams)/2 {
		return nil, fmt.Errorf("%w: %d groups need at least %d teams", ErrInvalidState, groupCount, groupCount*2)
	}

	groups := SnakeGroups(teams, groupCount)
	var matches []Match
	for g, members := range groups {
		matches = append(matches, roundRobin(tournamentID, members, GroupLabel(g), bestOf)...)
	}
	return matches, nil
}

// SnakeGroups deals seeded teams into groups back and forth so every group gets
// a comparable spread of seeds.
func SnakeGroups(teams []Team, groupCount int) [][]Team {
	groups := make([][]Team, groupCount)
	for i, t := range teams {
		row, col := i/groupCount, i%groupCount
		if row%2 == 1 {
			col = groupCount - 1 - col
		}
		groups[col] = append(groups[col], t)
	}
	return groups
}

func GroupLabel(i int) string {
	label := ""
	for {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
		if i < 0 {
			return label
		}
	}
}

// SwissPair is one pairing of a swiss round, Team1 being the higher ranked team.
type SwissPair struct {
	Team1ID uuid.UUID
	Team2ID uuid.UUID
}

// BuildSwissRound turns pairings into match records. A bye is recorded as a
// completed single team match so it counts as a win in the standings.
func BuildSwissRound(tournamentID uuid.UUID, round, bestOf int, pairs []SwissPair, bye *uuid.UUID) []Match {
	matches := make([]Match, 0, len(pairs)+1)
	for i, p := range pairs {
		m := newMatch(tournamentID, NoSegment, round, i+1, bestOf)
		m.Team1ID = utils.Ptr(p.Team1ID)
		m.Team2ID = utils.Ptr(p.Team2ID)
		matches = append(matches, m)
	}
	if bye != nil {
		m := newMatch(tournamentID, NoSegment, round, len(pairs)+1, bestOf)
		m.Team1ID = utils.Ptr(*bye)
		m.WinnerID = utils.Ptr(*bye)
		m.IsBye = true
		m.Status = MatchCompleted
		matches = append(matches, m)
	}
	return matches
}

// Opening swiss round pairs the top half of the seeds against the bottom half,
// the lowest seed sits out when the count is odd.
func generateSwissOpening(tournamentID uuid.UUID, teams []Team, bestOf int) []Match {
	ordered := make([]Team, len(teams))
	copy(ordered, teams)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seed < ordered[j].Seed })

	var bye *uuid.UUID
	if len(ordered)%2 != 0 {
		bye = utils.Ptr(ordered[len(ordered)-1].ID)
		ordered = ordered[:len(ordered)-1]
	}

	half := len(ordered) / 2
	pairs := make([]SwissPair, 0, half)
	for i := 0; i < half; i++ {
		pairs = append(pairs, SwissPair{Team1ID: ordered[i].ID, Team2ID: ordered[i+half].ID})
	}
	return BuildSwissRound(tournamentID, 1, bestOf, pairs, bye)
}
