package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/standings"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type StandingsService struct {
	db       *sqlx.DB
	store    *store.TournamentStore
	notifier Notifier
}

func NewStandingsService(db *sqlx.DB, store *store.TournamentStore, notifier Notifier) *StandingsService {
	return &StandingsService{db: db, store: store, notifier: notifier}
}

// Standings ranks the teams of a round robin, swiss or group stage tournament.
func (s *StandingsService) Standings(ctx context.Context, tournamentID uuid.UUID) ([]standings.Standing, error) {
	tournament, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !tournament.Format.IsPool() {
		return nil, fmt.Errorf("%w: %s has no standings", bracket.ErrInvalidState, tournament.Format)
	}

	teams, err := s.store.GetTeams(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	matches, err := s.store.GetMatches(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	return standings.Compute(matches, teams), nil
}

// PairNextSwissRound pairs and stores the next swiss round once the current one
// has been fully played.
func (s *StandingsService) PairNextSwissRound(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Format != bracket.Swiss {
		return nil, fmt.Errorf("%w: %s is not a swiss tournament", bracket.ErrInvalidState, tournament.ID)
	}
	if tournament.Status == bracket.TournamentCompleted {
		return nil, fmt.Errorf("%w: tournament %s is already completed", bracket.ErrInvalidState, tournament.ID)
	}

	teams, err := s.store.GetTeamsTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	matches, err := s.store.GetMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}

	current := bracket.MaxRound(matches, bracket.NoSegment)
	for i := range matches {
		if matches[i].RoundNumber == current && !matches[i].IsCompleted() {
			return nil, fmt.Errorf("%w: round %d is still being played", bracket.ErrInvalidState, current)
		}
	}
	if target := tournament.SwissRoundTarget(len(teams)); current >= target {
		return nil, fmt.Errorf("%w: all %d swiss rounds have been played", bracket.ErrInvalidState, target)
	}

	pairs, bye := standings.PairSwiss(matches, teams)
	round := bracket.BuildSwissRound(tournamentID, current+1, tournament.BestOf, pairs, bye)
	if err := s.store.CreateMatches(ctx, tx, round); err != nil {
		return nil, fmt.Errorf("failed to create swiss round: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Publish(tournamentID, EventBracketUpdated, map[string]any{"round": current + 1})
	}
	return round, nil
}
