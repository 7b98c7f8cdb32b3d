package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/op-tournament/internal/config"
	"github.com/AdamBeresnev/op-tournament/internal/organizer"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
)

type ContextKey string

const OrganizerIDKey ContextKey = "organizerID"

// SessionKey is where the signed in organizer id lives in the session.
const SessionKey = "organizerID"

// InitAuth registers the OAuth providers that have credentials configured.
func InitAuth(cfg *config.Config) {
	var providers []goth.Provider
	if cfg.Discord.Enabled() {
		providers = append(providers, discord.New(cfg.Discord.Key, cfg.Discord.Secret, cfg.Discord.CallbackURL, discord.ScopeIdentify, discord.ScopeEmail))
	}
	if cfg.Google.Enabled() {
		providers = append(providers, google.New(cfg.Google.Key, cfg.Google.Secret, cfg.Google.CallbackURL, "email", "profile"))
	}
	if len(providers) == 0 {
		slog.Warn("no OAuth providers configured, only guest login is available")
		return
	}
	goth.UseProviders(providers...)
}

// LoadOrganizer puts the signed in organizer, if any, into the request context.
func LoadOrganizer(sessionManager *scs.SessionManager, organizerStore *store.OrganizerStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idStr := sessionManager.GetString(r.Context(), SessionKey)
			if idStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(idStr)
			if err != nil {
				sessionManager.Remove(r.Context(), SessionKey)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), OrganizerIDKey, id)

			// Add the organizer to context so that we can easily get it whenever we want
			if o, err := organizerStore.GetOrganizer(ctx, id); err == nil {
				ctx = context.WithValue(ctx, organizer.OrganizerKey, o)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth sends anonymous browsers to the login page and answers API
// clients with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetOrganizerIDFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

func WithOrganizerID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, OrganizerIDKey, id)
}

func GetOrganizerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(OrganizerIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}

func GetAuthenticatedOrganizer(ctx context.Context) *organizer.Organizer {
	val := ctx.Value(organizer.OrganizerKey)
	if val == nil {
		return nil
	}
	o, ok := val.(*organizer.Organizer)
	if !ok {
		return nil
	}
	return o
}
