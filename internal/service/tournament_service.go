package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/standings"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

const (
	maxTournamentName = 100
	maxTeamName       = 50
)

type TournamentService struct {
	db    *sqlx.DB
	store *store.TournamentStore
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore) *TournamentService {
	return &TournamentService{db: db, store: store}
}

type TeamInput struct {
	Name string
}

type CreateTournamentInput struct {
	OwnerID     uuid.UUID
	Name        string
	Format      bracket.Format
	BestOf      int
	SwissRounds int
	GroupCount  int
	// Ordered by seed, first is seed 1
	Teams []TeamInput
}

type TournamentData struct {
	Tournament  *bracket.Tournament
	Teams       []bracket.Team
	Matches     []bracket.Match
	Standings   []standings.Standing
	NextMatchID *uuid.UUID
}

func (in *CreateTournamentInput) validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: tournament name is required", bracket.ErrInvalidState)
	}
	if len(name) > maxTournamentName {
		return fmt.Errorf("%w: tournament name exceeds %d characters", bracket.ErrInvalidState, maxTournamentName)
	}
	if in.BestOf < 0 || (in.BestOf > 0 && in.BestOf%2 == 0) {
		return fmt.Errorf("%w: best of must be a positive odd number, got %d", bracket.ErrInvalidState, in.BestOf)
	}
	if in.SwissRounds < 0 || in.GroupCount < 0 {
		return fmt.Errorf("%w: swiss rounds and group count must not be negative", bracket.ErrInvalidState)
	}
	for _, t := range in.Teams {
		n := strings.TrimSpace(t.Name)
		if n == "" {
			return fmt.Errorf("%w: team name is required", bracket.ErrInvalidState)
		}
		if len(n) > maxTeamName {
			return fmt.Errorf("%w: team name '%s' exceeds %d characters", bracket.ErrInvalidState, n, maxTeamName)
		}
	}
	return nil
}

// CreateTournament stores the tournament with its seeded teams and every match
// of the generated bracket in one transaction.
func (s *TournamentService) CreateTournament(ctx context.Context, in CreateTournamentInput) (uuid.UUID, error) {
	if err := in.validate(); err != nil {
		return uuid.Nil, err
	}
	bestOf := in.BestOf
	if bestOf == 0 {
		bestOf = 1
	}

	tournamentID := uuid.New()
	tournament := bracket.Tournament{
		ID:          tournamentID,
		OwnerID:     in.OwnerID,
		Name:        strings.TrimSpace(in.Name),
		Format:      in.Format,
		Status:      bracket.TournamentOngoing,
		BestOf:      bestOf,
		SwissRounds: in.SwissRounds,
		GroupCount:  in.GroupCount,
	}

	teams := make([]bracket.Team, 0, len(in.Teams))
	for i, input := range in.Teams {
		teams = append(teams, bracket.Team{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Name:         strings.TrimSpace(input.Name),
			Seed:         i + 1,
		})
	}

	matches, err := bracket.Generate(tournamentID, teams, bracket.GenerateOptions{
		Format:     in.Format,
		BestOf:     bestOf,
		GroupCount: in.GroupCount,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate bracket: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateTournament(ctx, tx, &tournament); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	if err := s.store.CreateTeams(ctx, tx, teams); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create teams: %w", err)
	}
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create matches: %w", err)
	}

	return tournamentID, tx.Commit()
}

// GetTournamentData loads a tournament with its teams and matches. The three
// reads run concurrently, so they are not one snapshot; the view tolerates that.
func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	var (
		tournament *bracket.Tournament
		teams      []bracket.Team
		matches    []bracket.Match
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = s.store.GetTournament(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = s.store.GetTeams(gctx, id)
		if err != nil {
			return fmt.Errorf("failed to get teams: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		matches, err = s.store.GetMatches(gctx, id)
		if err != nil {
			return fmt.Errorf("failed to get matches: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := &TournamentData{
		Tournament:  tournament,
		Teams:       teams,
		Matches:     matches,
		NextMatchID: nextPlayable(matches),
	}
	if tournament.Format.IsPool() {
		data.Standings = standings.Compute(matches, teams)
	}
	return data, nil
}

func (s *TournamentService) ListTournaments(ctx context.Context, ownerID uuid.UUID) ([]bracket.Tournament, error) {
	return s.store.ListTournamentsByOwner(ctx, ownerID)
}

// nextPlayable returns the first match that has both teams and no result yet.
func nextPlayable(matches []bracket.Match) *uuid.UUID {
	for i := range matches {
		m := &matches[i]
		if m.IsCompleted() || m.IsBye || m.Team1ID == nil || m.Team2ID == nil {
			continue
		}
		id := m.ID
		return &id
	}
	return nil
}
