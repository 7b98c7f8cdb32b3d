package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/op-tournament/internal/organizer"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/markbates/goth"
)

type OrganizerService struct {
	store *store.OrganizerStore
}

func NewOrganizerService(store *store.OrganizerStore) *OrganizerService {
	return &OrganizerService{store: store}
}

func (s *OrganizerService) FindOrCreateByProvider(ctx context.Context, gothUser goth.User) (*organizer.Organizer, error) {
	o, err := s.store.GetOrganizerByProvider(ctx, gothUser.Provider, gothUser.UserID)

	if err == nil {
		if utils.OrZero(o.AvatarURL) != gothUser.AvatarURL || o.Username != displayName(gothUser) {
			o.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			o.Username = displayName(gothUser)
			if err := s.store.UpdateOrganizerProfile(ctx, o); err != nil {
				return nil, err
			}
		}
		return o, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		newOrganizer := &organizer.Organizer{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   displayName(gothUser),
			Provider:   utils.Ptr(gothUser.Provider),
			ProviderID: utils.Ptr(gothUser.UserID),
			AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
		}
		err := s.store.CreateOrganizer(ctx, newOrganizer)
		return newOrganizer, err
	}

	return nil, err
}

func displayName(u goth.User) string {
	if u.NickName != "" {
		return u.NickName
	}
	return u.Name
}

// EnsureGuest returns the shared guest organizer, creating it on first use.
func (s *OrganizerService) EnsureGuest(ctx context.Context) (*organizer.Organizer, error) {
	o, err := s.store.GetOrganizer(ctx, organizer.GuestID)
	if err == nil {
		return o, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		guest := &organizer.Organizer{
			ID:       organizer.GuestID,
			Email:    "guest@op-tournament.app",
			Username: "Guest Organizer",
		}
		err := s.store.CreateOrganizer(ctx, guest)
		return guest, err
	}
	return nil, err
}
