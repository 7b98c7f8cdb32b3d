package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/db"
	"github.com/AdamBeresnev/op-tournament/internal/service"
	"github.com/AdamBeresnev/op-tournament/internal/standings"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/AdamBeresnev/op-tournament/views"
	"github.com/google/uuid"
)

var rootCmd = &cobra.Command{
	Use:   "bracketctl",
	Short: "Run tournaments from the terminal",
	Long: `bracketctl works on the same database as the web server.
Tournaments created here belong to the guest organizer, so they show up after a guest login.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("OP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("db", "tournament.db", "sqlite database path")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(transitionCmd("start", "Mark a match as in progress", func(s *services) transitionFunc { return s.matches.StartMatch }))
	rootCmd.AddCommand(transitionCmd("dispute", "Dispute a match in progress", func(s *services) transitionFunc { return s.matches.DisputeMatch }))
	rootCmd.AddCommand(transitionCmd("resolve", "Resolve a disputed match", func(s *services) transitionFunc { return s.matches.ResolveDispute }))
	rootCmd.AddCommand(standingsCmd())
	rootCmd.AddCommand(swissNextCmd())
}

type services struct {
	tournaments *service.TournamentService
	matches     *service.MatchService
	standings   *service.StandingsService
	organizers  *service.OrganizerService
}

type transitionFunc func(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error)

func openDB() (*sqlx.DB, error) {
	conn, err := db.InitDB(viper.GetString("db_path"))
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(conn.DB); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func withServices(ctx context.Context, fn func(context.Context, *services) error) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()

	tournamentStore := store.NewTournamentStore(conn)
	s := &services{
		tournaments: service.NewTournamentService(conn, tournamentStore),
		matches:     service.NewMatchService(conn, tournamentStore, nil),
		standings:   service.NewStandingsService(conn, tournamentStore, nil),
		organizers:  service.NewOrganizerService(store.NewOrganizerStore(conn)),
	}
	return fn(ctx, s)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var (
		name, format, teamsFile    string
		teams                      []string
		bestOf, swissRounds, group int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tournament and generate its bracket",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := bracket.ParseFormat(format)
			if err != nil {
				return err
			}

			var inputs []service.TeamInput
			if teamsFile != "" {
				b, err := os.ReadFile(teamsFile)
				if err != nil {
					return fmt.Errorf("failed to read teams file: %w", err)
				}
				if inputs, err = service.ParseTeamList(string(b)); err != nil {
					return err
				}
			}
			for _, t := range teams {
				inputs = append(inputs, service.TeamInput{Name: t})
			}

			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				guest, err := s.organizers.EnsureGuest(ctx)
				if err != nil {
					return err
				}
				id, err := s.tournaments.CreateTournament(ctx, service.CreateTournamentInput{
					OwnerID:     guest.ID,
					Name:        name,
					Format:      f,
					BestOf:      bestOf,
					SwissRounds: swissRounds,
					GroupCount:  group,
					Teams:       inputs,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), map[string]uuid.UUID{"id": id})
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "tournament name")
	cmd.Flags().StringVar(&format, "format", string(bracket.SingleElimination), "single_elimination, double_elimination, round_robin, swiss, group_stage or gauntlet")
	cmd.Flags().StringVar(&teamsFile, "teams-file", "", "file with one team per line in seed order")
	cmd.Flags().StringArrayVar(&teams, "team", nil, "team name, repeat in seed order")
	cmd.Flags().IntVar(&bestOf, "best-of", 1, "games per match, odd")
	cmd.Flags().IntVar(&swissRounds, "swiss-rounds", 0, "swiss rounds to play, 0 picks log2 of the team count")
	cmd.Flags().IntVar(&group, "groups", 0, "group count for group_stage")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the guest organizer's tournaments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				guest, err := s.organizers.EnsureGuest(ctx)
				if err != nil {
					return err
				}
				items, err := s.tournaments.ListTournaments(ctx, guest.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Name", "Format", "Status"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Format, t.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <tournament-id>",
		Short: "Show every match of a tournament",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id: %w", err)
			}
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				data, err := s.tournaments.GetTournamentData(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), data)
				}
				renderTournament(cmd.OutOrStdout(), data)
				return nil
			})
		},
	}
}

func renderTournament(w io.Writer, data *service.TournamentData) {
	t := data.Tournament
	fmt.Fprintf(w, "%s (%s, best of %d, %s)\n", t.Name, views.FormatLabel(t.Format), t.BestOf, t.Status)

	bd := views.PrepareBracketData(data.Teams, data.Matches)
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Section", "Round", "#", "Team 1", "Team 2", "Score", "Status", "Match ID"})
	for _, section := range bd.Sections {
		for _, round := range section.Rounds {
			for _, m := range round.Matches {
				status := string(m.Status)
				if m.IsBye {
					status = "bye"
				}
				tw.AppendRow(table.Row{
					section.Title, round.Title, m.MatchNumber,
					views.TeamName(bd.TeamMap, m.Team1ID), views.TeamName(bd.TeamMap, m.Team2ID),
					fmt.Sprintf("%d-%d", m.Score1, m.Score2), status, m.ID,
				})
			}
		}
		tw.AppendSeparator()
	}
	tw.Render()

	if len(data.Standings) > 0 {
		renderStandings(w, data.Standings, bd.TeamMap)
	}
}

func renderStandings(w io.Writer, rows []standings.Standing, teams map[uuid.UUID]bracket.Team) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Rank", "Group", "Team", "W", "L", "Byes", "Diff", "Buchholz"})
	for _, s := range rows {
		tw.AppendRow(table.Row{s.Rank, s.Group, views.TeamName(teams, &s.TeamID), s.Wins, s.Losses, s.Byes, s.ScoreDiff(), s.Buchholz})
	}
	tw.Render()
}

func reportCmd() *cobra.Command {
	var (
		score1, score2 int
		winner         string
	)
	cmd := &cobra.Command{
		Use:   "report <match-id>",
		Short: "Report a match result and advance the bracket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid match id: %w", err)
			}
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				data, err := s.matches.GetMatchViewData(ctx, matchID)
				if err != nil {
					return err
				}

				var winnerID *uuid.UUID
				switch {
				case winner != "":
					id, err := resolveTeam(data, winner)
					if err != nil {
						return err
					}
					winnerID = &id
				case score1 > score2:
					winnerID = data.Match.Team1ID
				case score2 > score1:
					winnerID = data.Match.Team2ID
				}
				if winnerID == nil {
					return fmt.Errorf("%w: pass --winner or a decisive score", bracket.ErrInvalidState)
				}

				outcome, err := s.matches.ReportResult(ctx, service.ResultInput{
					MatchID:  matchID,
					Score1:   score1,
					Score2:   score2,
					WinnerID: *winnerID,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), outcome)
				}
				for _, a := range outcome.Anomalies {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", a)
				}
				if outcome.TournamentCompleted {
					fmt.Fprintln(cmd.OutOrStdout(), "result recorded, tournament completed")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "result recorded")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&score1, "score1", 0, "team 1 score")
	cmd.Flags().IntVar(&score2, "score2", 0, "team 2 score")
	cmd.Flags().StringVar(&winner, "winner", "", "winner team id or name, defaults to the higher score")
	return cmd
}

// resolveTeam matches a team of the match by id or case-insensitive name.
func resolveTeam(data *service.MatchData, ref string) (uuid.UUID, error) {
	for _, t := range []*bracket.Team{data.Team1, data.Team2} {
		if t == nil {
			continue
		}
		if t.ID.String() == ref || strings.EqualFold(t.Name, ref) {
			return t.ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("%w: %q is not playing match %s", bracket.ErrInvalidState, ref, data.Match.ID)
}

func transitionCmd(use, short string, pick func(*services) transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <match-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid match id: %w", err)
			}
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				m, err := pick(s)(ctx, matchID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), m)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "match %s is %s\n", m.ID, m.Status)
				return nil
			})
		},
	}
}

func standingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "standings <tournament-id>",
		Short: "Rank the teams of a round robin, swiss or group stage tournament",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id: %w", err)
			}
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				data, err := s.tournaments.GetTournamentData(ctx, id)
				if err != nil {
					return err
				}
				rows, err := s.standings.Standings(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), rows)
				}
				renderStandings(cmd.OutOrStdout(), rows, views.PrepareBracketData(data.Teams, nil).TeamMap)
				return nil
			})
		},
	}
}

func swissNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "swiss-next <tournament-id>",
		Short: "Pair the next swiss round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id: %w", err)
			}
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				round, err := s.standings.PairNextSwissRound(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), round)
				}
				data, err := s.tournaments.GetTournamentData(ctx, id)
				if err != nil {
					return err
				}
				renderTournament(cmd.OutOrStdout(), data)
				return nil
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
