package service

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
)

// ParseTeamList reads one team name per line in seed order. Blank lines and
// lines starting with # are skipped.
func ParseTeamList(text string) ([]TeamInput, error) {
	var teams []TeamInput
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(line) > maxTeamName {
			return nil, fmt.Errorf("%w: team name '%s' exceeds %d characters", bracket.ErrInvalidState, line, maxTeamName)
		}
		teams = append(teams, TeamInput{Name: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read team list: %w", err)
	}
	return teams, nil
}
