package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/progression"
	"github.com/AdamBeresnev/op-tournament/internal/standings"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Notifier receives an event after a change has been committed.
type Notifier interface {
	Publish(tournamentID uuid.UUID, eventType string, payload any)
}

const (
	EventBracketUpdated = "bracket.updated"
	EventMatchUpdated   = "match.updated"
)

type MatchService struct {
	db       *sqlx.DB
	store    *store.TournamentStore
	notifier Notifier
}

// NewMatchService builds the service, notifier may be nil.
func NewMatchService(db *sqlx.DB, store *store.TournamentStore, notifier Notifier) *MatchService {
	return &MatchService{db: db, store: store, notifier: notifier}
}

type MatchData struct {
	Tournament *bracket.Tournament
	Match      *bracket.Match
	Team1      *bracket.Team
	Team2      *bracket.Team
}

type ResultInput struct {
	MatchID  uuid.UUID
	Score1   int
	Score2   int
	WinnerID uuid.UUID
	// Defaults to the winner's opponent
	LoserID *uuid.UUID
}

type Outcome struct {
	TournamentID        uuid.UUID            `json:"tournament_id"`
	MatchID             uuid.UUID            `json:"match_id"`
	TournamentCompleted bool                 `json:"tournament_completed"`
	Standings           []standings.Standing `json:"standings,omitempty"`
	Anomalies           []string             `json:"anomalies,omitempty"`
}

func (s *MatchService) GetMatchViewData(ctx context.Context, matchID uuid.UUID) (*MatchData, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	tournament, err := s.store.GetTournament(ctx, match.TournamentID)
	if err != nil {
		return nil, err
	}
	teams, err := s.store.GetTeams(ctx, match.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}

	data := &MatchData{Tournament: tournament, Match: match}
	for i := range teams {
		if utils.PtrEqual(match.Team1ID, &teams[i].ID) {
			data.Team1 = &teams[i]
		}
		if utils.PtrEqual(match.Team2ID, &teams[i].ID) {
			data.Team2 = &teams[i]
		}
	}
	return data, nil
}

// ReportResult records the score of a match and advances the bracket in the
// same transaction. Either every write lands or none does.
func (s *MatchService) ReportResult(ctx context.Context, in ResultInput) (*Outcome, error) {
	if in.Score1 < 0 || in.Score2 < 0 {
		return nil, fmt.Errorf("%w: scores must not be negative", bracket.ErrInvalidState)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, in.MatchID)
	if err != nil {
		return nil, err
	}
	loserID, err := checkResult(match, in)
	if err != nil {
		return nil, err
	}

	snap, err := s.snapshotTx(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, err
	}
	if snap.Tournament.Status == bracket.TournamentCompleted {
		return nil, fmt.Errorf("%w: tournament %s is already completed", bracket.ErrInvalidState, snap.Tournament.ID)
	}

	previous := match.Status
	match.Score1, match.Score2 = in.Score1, in.Score2
	match.WinnerID = utils.Ptr(in.WinnerID)
	match.LoserID = utils.Ptr(loserID)
	match.Status = bracket.MatchCompleted
	if err := s.store.CompleteMatchTx(ctx, tx, match, previous); err != nil {
		return nil, err
	}

	idx, ok := bracket.IndexOf(snap.Matches, match.ID)
	if !ok {
		return nil, fmt.Errorf("%w: match %s missing from its tournament", bracket.ErrStructuralInconsistency, match.ID)
	}
	snap.Matches[idx] = *match

	plan, err := progression.Decide(snap, match.ID, in.WinnerID, match.LoserID)
	if err != nil {
		return nil, err
	}
	if err := s.applyPlanTx(ctx, tx, &snap.Tournament, plan); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, a := range plan.Anomalies {
		slog.Warn("bracket anomaly, tournament ended early", "tournament_id", snap.Tournament.ID, "match_id", match.ID, "anomaly", a)
	}

	outcome := &Outcome{
		TournamentID:        snap.Tournament.ID,
		MatchID:             match.ID,
		TournamentCompleted: plan.TournamentCompleted,
		Standings:           plan.Standings,
		Anomalies:           plan.Anomalies,
	}
	s.notify(snap.Tournament.ID, EventBracketUpdated, outcome)
	return outcome, nil
}

// checkResult validates a submission against the stored match and returns the
// loser.
func checkResult(match *bracket.Match, in ResultInput) (uuid.UUID, error) {
	switch match.Status {
	case bracket.MatchCompleted:
		return uuid.Nil, fmt.Errorf("%w: match %s already has a result", bracket.ErrInvalidState, match.ID)
	case bracket.MatchDisputed:
		return uuid.Nil, fmt.Errorf("%w: match %s is disputed", bracket.ErrInvalidState, match.ID)
	}
	if match.IsBye {
		return uuid.Nil, fmt.Errorf("%w: match %s is a bye", bracket.ErrInvalidState, match.ID)
	}
	if match.Team1ID == nil || match.Team2ID == nil {
		return uuid.Nil, fmt.Errorf("%w: match %s is still waiting for a team", bracket.ErrInvalidState, match.ID)
	}
	if !match.HasTeam(in.WinnerID) {
		return uuid.Nil, fmt.Errorf("%w: winner is not part of this match", bracket.ErrInvalidState)
	}

	loser := *match.Opponent(in.WinnerID)
	if in.LoserID != nil && *in.LoserID != loser {
		return uuid.Nil, fmt.Errorf("%w: loser must be the winner's opponent", bracket.ErrInvalidState)
	}

	winnerScore, loserScore := in.Score1, in.Score2
	if *match.Team2ID == in.WinnerID {
		winnerScore, loserScore = in.Score2, in.Score1
	}
	if winnerScore < loserScore {
		return uuid.Nil, fmt.Errorf("%w: winner scored %d against %d", bracket.ErrInvalidState, winnerScore, loserScore)
	}
	if match.BestOf > 1 && winnerScore > match.BestOf/2+1 {
		return uuid.Nil, fmt.Errorf("%w: best of %d is decided at %d wins", bracket.ErrInvalidState, match.BestOf, match.BestOf/2+1)
	}
	return loser, nil
}

func (s *MatchService) snapshotTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (progression.Snapshot, error) {
	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return progression.Snapshot{}, err
	}
	teams, err := s.store.GetTeamsTx(ctx, tx, tournamentID)
	if err != nil {
		return progression.Snapshot{}, fmt.Errorf("failed to get teams: %w", err)
	}
	matches, err := s.store.GetMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return progression.Snapshot{}, fmt.Errorf("failed to get matches: %w", err)
	}
	return progression.Snapshot{Tournament: *tournament, Teams: teams, Matches: matches}, nil
}

// applyPlanTx writes a plan in the order it was decided. Every write is guarded
// so a concurrent writer makes the whole transaction fail instead of being
// overwritten.
func (s *MatchService) applyPlanTx(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, plan progression.Plan) error {
	for _, w := range plan.SlotWrites {
		if err := s.store.FillSlotTx(ctx, tx, w.MatchID, w.Slot, w.TeamID); err != nil {
			return err
		}
	}
	for _, b := range plan.Byes {
		if err := s.store.ResolveByeTx(ctx, tx, b.MatchID, b.WinnerID); err != nil {
			return err
		}
	}
	if plan.Reset != nil {
		if err := s.store.ResetFinalTx(ctx, tx, plan.Reset.MatchID, plan.Reset.Team1ID, plan.Reset.Team2ID); err != nil {
			return err
		}
	}
	if plan.TournamentCompleted {
		if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, tournament.Status, bracket.TournamentCompleted); err != nil {
			return err
		}
	}
	return nil
}

// StartMatch marks a match with both teams present as being played.
func (s *MatchService) StartMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	return s.transition(ctx, matchID, bracket.MatchInProgress, func(m *bracket.Match) error {
		if m.Status != bracket.MatchPending && m.Status != bracket.MatchReady {
			return fmt.Errorf("%w: match %s is %s", bracket.ErrInvalidState, m.ID, m.Status)
		}
		if m.IsBye || m.Team1ID == nil || m.Team2ID == nil {
			return fmt.Errorf("%w: match %s is still waiting for a team", bracket.ErrInvalidState, m.ID)
		}
		return nil
	})
}

// DisputeMatch freezes a match in progress until an organizer resolves it.
func (s *MatchService) DisputeMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	return s.transition(ctx, matchID, bracket.MatchDisputed, func(m *bracket.Match) error {
		if m.Status != bracket.MatchInProgress {
			return fmt.Errorf("%w: only a match in progress can be disputed, match %s is %s", bracket.ErrInvalidState, m.ID, m.Status)
		}
		return nil
	})
}

// ResolveDispute puts a disputed match back in progress so a result can be
// reported.
func (s *MatchService) ResolveDispute(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	return s.transition(ctx, matchID, bracket.MatchInProgress, func(m *bracket.Match) error {
		if m.Status != bracket.MatchDisputed {
			return fmt.Errorf("%w: match %s is not disputed", bracket.ErrInvalidState, m.ID)
		}
		return nil
	})
}

func (s *MatchService) transition(ctx context.Context, matchID uuid.UUID, to bracket.MatchStatus, check func(*bracket.Match) error) (*bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	tournament, err := s.store.GetTournamentTx(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status == bracket.TournamentCompleted {
		return nil, fmt.Errorf("%w: tournament %s is already completed", bracket.ErrInvalidState, tournament.ID)
	}
	if err := check(match); err != nil {
		return nil, err
	}

	if err := s.store.UpdateMatchStatusTx(ctx, tx, match.ID, match.Status, to); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	match.Status = to
	s.notify(match.TournamentID, EventMatchUpdated, map[string]any{"match_id": match.ID, "status": to})
	return match, nil
}

func (s *MatchService) notify(tournamentID uuid.UUID, eventType string, payload any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(tournamentID, eventType, payload)
}
