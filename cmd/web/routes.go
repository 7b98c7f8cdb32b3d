package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/httputil"
	"github.com/AdamBeresnev/op-tournament/internal/live"
	"github.com/AdamBeresnev/op-tournament/internal/middleware"
	"github.com/AdamBeresnev/op-tournament/internal/service"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/AdamBeresnev/op-tournament/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
)

type server struct {
	sessions    *scs.SessionManager
	hub         *live.Hub
	tournaments *service.TournamentService
	matches     *service.MatchService
	standings   *service.StandingsService
	organizers  *service.OrganizerService
}

func newRouter(dbConn *sqlx.DB, sessionManager *scs.SessionManager, hub *live.Hub, limiter *middleware.RateLimiter) http.Handler {
	tournamentStore := store.NewTournamentStore(dbConn)
	organizerStore := store.NewOrganizerStore(dbConn)
	s := &server{
		sessions:    sessionManager,
		hub:         hub,
		tournaments: service.NewTournamentService(dbConn, tournamentStore),
		matches:     service.NewMatchService(dbConn, tournamentStore, hub),
		standings:   service.NewStandingsService(dbConn, tournamentStore, hub),
		organizers:  service.NewOrganizerService(organizerStore),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sessionManager.LoadAndSave)
	r.Use(middleware.LoadOrganizer(sessionManager, organizerStore))

	// Serve static files
	fileServer := http.FileServer(http.Dir("./static"))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/", s.index)
		r.Get("/tournaments", s.index)
		r.Get("/tournaments/create", func(w http.ResponseWriter, r *http.Request) {
			views.Render(w, r, views.CreateTournamentPage())
		})
		r.Post("/tournaments", s.createTournament)
		r.Post("/tournaments/{id}/swiss/next", s.pairSwissRound)

		r.Post("/matches/{id}/start", s.matchTransition(s.matches.StartMatch))
		r.Post("/matches/{id}/dispute", s.matchTransition(s.matches.DisputeMatch))
		r.Post("/matches/{id}/resolve", s.matchTransition(s.matches.ResolveDispute))
		r.With(limiter.Middleware).Post("/matches/{id}/result", s.reportResult)
	})

	// Spectators can follow a tournament without an account
	r.Get("/tournaments/{id}", s.showTournament)
	r.Get("/tournaments/{id}/standings", s.showStandings)
	r.Get("/tournaments/{id}/live", func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "tournament")
		if !ok {
			return
		}
		hub.ServeWS(w, r, id)
	})
	r.Get("/matches/{id}", s.showMatch)

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		o, err := s.organizers.FindOrCreateByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create organizer", err)
			return
		}

		s.signIn(r.Context(), o.ID)
		http.Redirect(w, r, "/", http.StatusFound)
	})

	r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		providers := make([]string, 0, len(goth.GetProviders()))
		for name := range goth.GetProviders() {
			providers = append(providers, name)
		}
		sort.Strings(providers)
		views.Render(w, r, views.LoginPage(providers))
	})

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		o, err := s.organizers.EnsureGuest(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to login as guest", err)
			return
		}

		s.signIn(r.Context(), o.ID)
		http.Redirect(w, r, "/", http.StatusFound)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		sessionManager.Destroy(r.Context())
		if r.Header.Get("HX-Request") != "" {
			w.Header().Set("HX-Redirect", "/login")
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	return r
}

func (s *server) signIn(ctx context.Context, id uuid.UUID) {
	// New token on privilege change
	if err := s.sessions.RenewToken(ctx); err != nil {
		slog.Error("failed to renew session token", "error", err)
	}
	s.sessions.Put(ctx, middleware.SessionKey, id.String())
}

func parseID(w http.ResponseWriter, r *http.Request, kind string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Invalid %s ID", kind), err)
		return uuid.Nil, false
	}
	return id, true
}

// requireOwner rejects changes from anyone but the organizer who created the
// tournament.
func requireOwner(w http.ResponseWriter, r *http.Request, tournament *bracket.Tournament) bool {
	id, _ := middleware.GetOrganizerIDFromContext(r.Context())
	if tournament.OwnerID != id {
		httputil.Forbidden(w, "Only the organizer of this tournament can change it")
		return false
	}
	return true
}

// redirect sends browsers back to a page after a form post, htmx requests get
// the location in a header.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func (s *server) index(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.GetOrganizerIDFromContext(r.Context())
	tournaments, err := s.tournaments.ListTournaments(r.Context(), ownerID)
	if err != nil {
		httputil.InternalServerError(w, "Failed to get tournaments", err)
		return
	}
	if httputil.WantsJSON(r) {
		httputil.JSON(w, http.StatusOK, tournaments)
		return
	}
	views.Render(w, r, views.Index(tournaments))
}

type createTournamentRequest struct {
	Name        string   `json:"name"`
	Format      string   `json:"format"`
	BestOf      int      `json:"best_of"`
	SwissRounds int      `json:"swiss_rounds"`
	GroupCount  int      `json:"group_count"`
	Teams       []string `json:"teams"`
}

func (s *server) createTournament(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.GetOrganizerIDFromContext(r.Context())
	isJSON := r.Header.Get("Content-Type") == "application/json"

	var req createTournamentRequest
	var teams []service.TeamInput
	if isJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, "Invalid JSON body", err)
			return
		}
		for _, name := range req.Teams {
			teams = append(teams, service.TeamInput{Name: name})
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		req.Name = r.Form.Get("name")
		req.Format = r.Form.Get("format")
		req.BestOf = formInt(r, "best_of")
		req.SwissRounds = formInt(r, "swiss_rounds")
		req.GroupCount = formInt(r, "group_count")

		var err error
		if teams, err = service.ParseTeamList(r.Form.Get("teams")); err != nil {
			httputil.Error(w, "Invalid team list", err)
			return
		}
	}

	format, err := bracket.ParseFormat(req.Format)
	if err != nil {
		httputil.Error(w, "Invalid format", err)
		return
	}

	id, err := s.tournaments.CreateTournament(r.Context(), service.CreateTournamentInput{
		OwnerID:     ownerID,
		Name:        req.Name,
		Format:      format,
		BestOf:      req.BestOf,
		SwissRounds: req.SwissRounds,
		GroupCount:  req.GroupCount,
		Teams:       teams,
	})
	if err != nil {
		httputil.Error(w, "Failed to create tournament", err)
		return
	}

	if isJSON || httputil.WantsJSON(r) {
		httputil.JSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id})
		return
	}
	redirect(w, r, fmt.Sprintf("/tournaments/%s", id))
}

func formInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.Form.Get(key))
	if err != nil {
		return 0
	}
	return n
}

func (s *server) showTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "tournament")
	if !ok {
		return
	}

	data, err := s.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to get tournament", err)
		return
	}

	if httputil.WantsJSON(r) {
		httputil.JSON(w, http.StatusOK, data)
		return
	}
	views.Render(w, r, views.TournamentView(data.Tournament, data.Teams, data.Matches, data.Standings, data.NextMatchID))
}

func (s *server) showStandings(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "tournament")
	if !ok {
		return
	}
	rows, err := s.standings.Standings(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to get standings", err)
		return
	}
	httputil.JSON(w, http.StatusOK, rows)
}

func (s *server) pairSwissRound(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "tournament")
	if !ok {
		return
	}
	data, err := s.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to get tournament", err)
		return
	}
	if !requireOwner(w, r, data.Tournament) {
		return
	}

	round, err := s.standings.PairNextSwissRound(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to pair the next round", err)
		return
	}
	if httputil.WantsJSON(r) {
		httputil.JSON(w, http.StatusCreated, round)
		return
	}
	redirect(w, r, fmt.Sprintf("/tournaments/%s", id))
}

func (s *server) showMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "match")
	if !ok {
		return
	}
	data, err := s.matches.GetMatchViewData(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to get match data", err)
		return
	}
	if httputil.WantsJSON(r) {
		httputil.JSON(w, http.StatusOK, data)
		return
	}
	views.Render(w, r, views.MatchView(data.Match, data.Team1, data.Team2))
}

type resultRequest struct {
	Score1   int        `json:"score1"`
	Score2   int        `json:"score2"`
	WinnerID *uuid.UUID `json:"winner_id"`
	LoserID  *uuid.UUID `json:"loser_id"`
}

func (s *server) reportResult(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "match")
	if !ok {
		return
	}

	var req resultRequest
	isJSON := r.Header.Get("Content-Type") == "application/json"
	if isJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, "Invalid JSON body", err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		req.Score1 = formInt(r, "score1")
		req.Score2 = formInt(r, "score2")
	}

	data, err := s.matches.GetMatchViewData(r.Context(), id)
	if err != nil {
		httputil.Error(w, "Failed to get match data", err)
		return
	}
	if !requireOwner(w, r, data.Tournament) {
		return
	}

	winner := req.WinnerID
	if winner == nil {
		// Without an explicit winner the higher score decides
		switch {
		case req.Score1 > req.Score2:
			winner = data.Match.Team1ID
		case req.Score2 > req.Score1:
			winner = data.Match.Team2ID
		}
		if winner == nil {
			httputil.BadRequest(w, "A winner is required, scores are tied or the slot is empty", nil)
			return
		}
	}

	outcome, err := s.matches.ReportResult(r.Context(), service.ResultInput{
		MatchID:  id,
		Score1:   req.Score1,
		Score2:   req.Score2,
		WinnerID: *winner,
		LoserID:  req.LoserID,
	})
	if err != nil {
		httputil.Error(w, "Failed to report result", err)
		return
	}

	if isJSON || httputil.WantsJSON(r) {
		httputil.JSON(w, http.StatusOK, outcome)
		return
	}
	redirect(w, r, fmt.Sprintf("/tournaments/%s", outcome.TournamentID))
}

type transitionFunc func(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error)

func (s *server) matchTransition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "match")
		if !ok {
			return
		}
		data, err := s.matches.GetMatchViewData(r.Context(), id)
		if err != nil {
			httputil.Error(w, "Failed to get match data", err)
			return
		}
		if !requireOwner(w, r, data.Tournament) {
			return
		}

		match, err := fn(r.Context(), id)
		if err != nil {
			httputil.Error(w, "Failed to update match", err)
			return
		}
		if httputil.WantsJSON(r) {
			httputil.JSON(w, http.StatusOK, match)
			return
		}
		redirect(w, r, fmt.Sprintf("/matches/%s", match.ID))
	}
}
