package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const (
	getTournamentQuery = "SELECT * FROM tournaments WHERE id = ?"
	getTeamsQuery      = "SELECT * FROM teams WHERE tournament_id = ? ORDER BY seed ASC"
	getMatchesQuery    = `
		SELECT * FROM matches WHERE tournament_id = ?
		ORDER BY group_label ASC, bracket_segment ASC, round_number ASC, match_number ASC
	`
	getMatchQuery = "SELECT * FROM matches WHERE id = ?"
)

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, owner_id, name, format, status, best_of, swiss_rounds, group_count)
        VALUES (:id, :owner_id, :name, :format, :status, :best_of, :swiss_rounds, :group_count)`, tournament)
	return err
}

func (s *TournamentStore) CreateTeams(ctx context.Context, tx *sqlx.Tx, teams []bracket.Team) error {
	if len(teams) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO teams (id, tournament_id, name, seed)
            VALUES (:id, :tournament_id, :name, :seed)`, teams)
	return err
}

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, bracket_segment, group_label, round_number, match_number, team1_id, team2_id, score1, score2, best_of, status, winner_id, loser_id, is_bye)
		VALUES (:id, :tournament_id, :bracket_segment, :group_label, :round_number, :match_number, :team1_id, :team2_id, :score1, :score2, :best_of, :status, :winner_id, :loser_id, :is_bye)`, matches)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, s.db, id)
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, tx, id)
}

func getTournament(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := sqlx.GetContext(ctx, q, &tournament, getTournamentQuery, id); err != nil {
		return nil, notFound(err, "tournament", id)
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournamentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments WHERE owner_id = ? ORDER BY created_at DESC", ownerID)
	return tournaments, err
}

func (s *TournamentStore) GetTeams(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := s.db.SelectContext(ctx, &teams, getTeamsQuery, tournamentID)
	return teams, err
}

func (s *TournamentStore) GetTeamsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := tx.SelectContext(ctx, &teams, getTeamsQuery, tournamentID)
	return teams, err
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.db.SelectContext(ctx, &matches, getMatchesQuery, tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := tx.SelectContext(ctx, &matches, getMatchesQuery, tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, s.db, id)
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, tx, id)
}

func getMatch(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := sqlx.GetContext(ctx, q, &match, getMatchQuery, id); err != nil {
		return nil, notFound(err, "match", id)
	}
	return &match, nil
}

// CompleteMatchTx records the result of a match. The update only lands while
// the match is still in the status it was read in.
func (s *TournamentStore) CompleteMatchTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match, from bracket.MatchStatus) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE matches SET score1 = ?, score2 = ?, status = ?, winner_id = ?, loser_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`,
		match.Score1, match.Score2, bracket.MatchCompleted, match.WinnerID, match.LoserID, match.ID, from)
	if err != nil {
		return fmt.Errorf("failed to complete match: %w", err)
	}
	return expectOne(res, "match %s is no longer %s", match.ID, from)
}

func (s *TournamentStore) UpdateMatchStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to bracket.MatchStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE matches SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update match status: %w", err)
	}
	return expectOne(res, "match %s is no longer %s", id, from)
}

// FillSlotTx writes a team into a slot that must still be empty.
func (s *TournamentStore) FillSlotTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot bracket.Slot, teamID uuid.UUID) error {
	query := `UPDATE matches SET team1_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND team1_id IS NULL`
	if slot == bracket.Team2Slot {
		query = `UPDATE matches SET team2_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND team2_id IS NULL`
	}
	res, err := tx.ExecContext(ctx, query, teamID, matchID)
	if err != nil {
		return fmt.Errorf("failed to fill %s of match %s: %w", slot, matchID, err)
	}
	return expectOne(res, "%s of match %s was filled concurrently", slot, matchID)
}

func (s *TournamentStore) ResolveByeTx(ctx context.Context, tx *sqlx.Tx, matchID, winnerID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE matches SET status = ?, winner_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_bye = 1 AND status != ?`,
		bracket.MatchCompleted, winnerID, matchID, bracket.MatchCompleted)
	if err != nil {
		return fmt.Errorf("failed to resolve bye %s: %w", matchID, err)
	}
	return expectOne(res, "bye %s was resolved concurrently", matchID)
}

// ResetFinalTx puts both grand finalists into the reset final with a clean
// score sheet.
func (s *TournamentStore) ResetFinalTx(ctx context.Context, tx *sqlx.Tx, matchID, team1ID, team2ID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE matches SET team1_id = ?, team2_id = ?, score1 = 0, score2 = 0, status = ?,
		winner_id = NULL, loser_id = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status != ?`,
		team1ID, team2ID, bracket.MatchPending, matchID, bracket.MatchCompleted)
	if err != nil {
		return fmt.Errorf("failed to populate reset final: %w", err)
	}
	return expectOne(res, "reset final %s was already played", matchID)
}

func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to bracket.TournamentStatus) error {
	res, err := tx.ExecContext(ctx, "UPDATE tournaments SET status = ? WHERE id = ? AND status = ?", to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	return expectOne(res, "tournament %s is no longer %s", id, from)
}

func notFound(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", bracket.ErrNotFound, kind, id)
	}
	return fmt.Errorf("failed to get %s: %w", kind, err)
}

func expectOne(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s", bracket.ErrConcurrentUpdate, fmt.Sprintf(format, args...))
	}
	return nil
}
