package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/db"
	"github.com/AdamBeresnev/op-tournament/internal/organizer"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	// Every connection to :memory: is a separate database
	database.SetMaxOpenConns(1)

	err = db.RunMigrations(database.DB)
	require.NoError(t, err, "Failed to apply migrations")

	return database
}

func seedOrganizer(t *testing.T, database *sqlx.DB) uuid.UUID {
	t.Helper()
	err := NewOrganizerStore(database).CreateOrganizer(context.Background(), &organizer.Organizer{
		ID:       organizer.GuestID,
		Email:    "guest@example.com",
		Username: "Guest",
	})
	require.NoError(t, err)
	return organizer.GuestID
}

// seedTournament stores a tournament with n seeded teams and returns both.
func seedTournament(t *testing.T, database *sqlx.DB, format bracket.Format, n int) (*bracket.Tournament, []bracket.Team) {
	t.Helper()
	ctx := context.Background()
	store := NewTournamentStore(database)

	tournament := &bracket.Tournament{
		ID:      uuid.New(),
		OwnerID: seedOrganizer(t, database),
		Name:    "Test Tournament",
		Format:  format,
		Status:  bracket.TournamentOngoing,
		BestOf:  1,
	}
	teams := make([]bracket.Team, n)
	for i := range teams {
		teams[i] = bracket.Team{ID: uuid.New(), TournamentID: tournament.ID, Name: string(rune('A' + i)), Seed: i + 1}
	}

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateTournament(ctx, tx, tournament))
	require.NoError(t, store.CreateTeams(ctx, tx, teams))
	require.NoError(t, tx.Commit())
	return tournament, teams
}

func TestCreateTournament(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)

	tournament := &bracket.Tournament{
		ID:          uuid.New(),
		OwnerID:     seedOrganizer(t, db),
		Name:        "Test Tournament",
		Format:      bracket.Swiss,
		Status:      bracket.TournamentOngoing,
		BestOf:      3,
		SwissRounds: 4,
	}

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	err = store.CreateTournament(context.Background(), tx, tournament)
	require.NoError(t, err)

	err = tx.Commit()
	require.NoError(t, err)

	fetched, err := store.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, tournament.OwnerID, fetched.OwnerID)
	assert.Equal(t, tournament.Name, fetched.Name)
	assert.Equal(t, tournament.Status, fetched.Status)
	assert.Equal(t, tournament.Format, fetched.Format)
	assert.Equal(t, 3, fetched.BestOf)
	assert.Equal(t, 4, fetched.SwissRounds)
	assert.WithinDuration(t, time.Now().UTC(), fetched.CreatedAt, time.Minute)

	owned, err := store.ListTournamentsByOwner(context.Background(), tournament.OwnerID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, tournament.ID, owned[0].ID)
}

func TestGetTournamentNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := NewTournamentStore(db).GetTournament(context.Background(), uuid.New())
	assert.ErrorIs(t, err, bracket.ErrNotFound)

	_, err = NewTournamentStore(db).GetMatch(context.Background(), uuid.New())
	assert.ErrorIs(t, err, bracket.ErrNotFound)
}

func TestCreateTeams(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tournament, teams := seedTournament(t, db, bracket.SingleElimination, 3)

	fetched, err := NewTournamentStore(db).GetTeams(context.Background(), tournament.ID)
	require.NoError(t, err)

	require.Len(t, fetched, 3)
	for i := range teams {
		assert.Equal(t, teams[i].ID, fetched[i].ID)
		assert.Equal(t, teams[i].Name, fetched[i].Name)
		assert.Equal(t, i+1, fetched[i].Seed)
	}
}

func TestCreateMatches(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	tournament, teams := seedTournament(t, db, bracket.DoubleElimination, 3)

	matches, err := bracket.Generate(tournament.ID, teams, bracket.GenerateOptions{Format: bracket.DoubleElimination, BestOf: 1})
	require.NoError(t, err)

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(context.Background(), tx, matches))
	require.NoError(t, tx.Commit())

	fetched, err := store.GetMatches(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetched, len(matches))

	byID := make(map[uuid.UUID]bracket.Match, len(fetched))
	for _, m := range fetched {
		byID[m.ID] = m
	}
	for _, want := range matches {
		got, ok := byID[want.ID]
		require.True(t, ok)
		assert.Equal(t, want.Segment, got.Segment)
		assert.Equal(t, want.RoundNumber, got.RoundNumber)
		assert.Equal(t, want.MatchNumber, got.MatchNumber)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.IsBye, got.IsBye)
		assert.Equal(t, want.Team1ID, got.Team1ID)
		assert.Equal(t, want.Team2ID, got.Team2ID)
		assert.Equal(t, want.WinnerID, got.WinnerID)
	}
}

func TestFillSlotTx(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewTournamentStore(db)
	tournament, teams := seedTournament(t, db, bracket.SingleElimination, 2)

	match := bracket.Match{
		ID:           uuid.New(),
		TournamentID: tournament.ID,
		RoundNumber:  2,
		MatchNumber:  1,
		BestOf:       1,
		Status:       bracket.MatchPending,
	}
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(ctx, tx, []bracket.Match{match}))
	require.NoError(t, tx.Commit())

	tests := []struct {
		name    string
		slot    bracket.Slot
		team    uuid.UUID
		wantErr error
	}{
		{"Empty team1 slot", bracket.Team1Slot, teams[0].ID, nil},
		{"Filled team1 slot", bracket.Team1Slot, teams[1].ID, bracket.ErrConcurrentUpdate},
		{"Empty team2 slot", bracket.Team2Slot, teams[1].ID, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := db.BeginTxx(ctx, nil)
			require.NoError(t, err)
			defer tx.Rollback()

			err = store.FillSlotTx(ctx, tx, match.ID, tt.slot, tt.team)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, tx.Commit())
		})
	}

	fetched, err := store.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, teams[0].ID, utils.OrZero(fetched.Team1ID))
	assert.Equal(t, teams[1].ID, utils.OrZero(fetched.Team2ID))
}

func TestCompleteMatchTx(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewTournamentStore(db)
	tournament, teams := seedTournament(t, db, bracket.SingleElimination, 2)

	match := bracket.Match{
		ID:           uuid.New(),
		TournamentID: tournament.ID,
		RoundNumber:  1,
		MatchNumber:  1,
		Team1ID:      utils.Ptr(teams[0].ID),
		Team2ID:      utils.Ptr(teams[1].ID),
		BestOf:       3,
		Status:       bracket.MatchPending,
	}
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(ctx, tx, []bracket.Match{match}))
	require.NoError(t, tx.Commit())

	match.Score1, match.Score2 = 2, 1
	match.WinnerID = utils.Ptr(teams[0].ID)
	match.LoserID = utils.Ptr(teams[1].ID)

	tx, err = db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CompleteMatchTx(ctx, tx, &match, bracket.MatchPending))
	require.NoError(t, tx.Commit())

	// A second writer that read the match as pending loses
	tx, err = db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	err = store.CompleteMatchTx(ctx, tx, &match, bracket.MatchPending)
	assert.ErrorIs(t, err, bracket.ErrConcurrentUpdate)
	require.NoError(t, tx.Rollback())

	fetched, err := store.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, fetched.Status)
	assert.Equal(t, 2, fetched.Score1)
	assert.Equal(t, 1, fetched.Score2)
	assert.Equal(t, teams[0].ID, utils.OrZero(fetched.WinnerID))
	assert.Equal(t, teams[1].ID, utils.OrZero(fetched.LoserID))
}

func TestResetFinalTx(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewTournamentStore(db)
	tournament, teams := seedTournament(t, db, bracket.DoubleElimination, 2)

	reset := bracket.Match{
		ID:           uuid.New(),
		TournamentID: tournament.ID,
		Segment:      bracket.ResetFinalSegment,
		RoundNumber:  1,
		MatchNumber:  1,
		BestOf:       1,
		Status:       bracket.MatchPending,
	}
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(ctx, tx, []bracket.Match{reset}))
	require.NoError(t, store.ResetFinalTx(ctx, tx, reset.ID, teams[0].ID, teams[1].ID))
	require.NoError(t, store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, bracket.TournamentOngoing, bracket.TournamentCompleted))
	require.NoError(t, tx.Commit())

	fetched, err := store.GetMatch(ctx, reset.ID)
	require.NoError(t, err)
	assert.Equal(t, teams[0].ID, utils.OrZero(fetched.Team1ID))
	assert.Equal(t, teams[1].ID, utils.OrZero(fetched.Team2ID))
	assert.Equal(t, 0, fetched.Score1)
	assert.Equal(t, bracket.MatchPending, fetched.Status)

	tx, err = db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	err = store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, bracket.TournamentOngoing, bracket.TournamentCompleted)
	assert.ErrorIs(t, err, bracket.ErrConcurrentUpdate)
}
