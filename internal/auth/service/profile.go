package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/mcauth/internal/auth/store"
	"github.com/aussiebroadwan/mcauth/pkg/authsdk"
	"github.com/aussiebroadwan/mcauth/pkg/slogx"
)

// Authenticator is the part of the SDK client the service drives.
// *authsdk.SDKClient satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, prompt authsdk.PromptFunc) (*authsdk.Profile, error)
	Refresh(ctx context.Context, profile *authsdk.Profile) error
}

// Outcome reports what Ensure had to do to produce a usable profile.
type Outcome int

const (
	OutcomeReused Outcome = iota
	OutcomeRefreshed
	OutcomeLoggedIn
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReused:
		return "reused"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeLoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// ErrNoProfile is returned by operations that need a stored profile when none exists.
var ErrNoProfile = errors.New("no stored profile, login first")

type ProfileService struct {
	Store  store.ProfileStore
	Client Authenticator
	Prompt authsdk.PromptFunc

	// Now defaults to time.Now when nil.
	Now func() time.Time
}

func (s *ProfileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Ensure returns a profile with a usable game token. A stored profile is
// reused as is while its token is valid and refreshed once it has expired.
// A missing or unreadable profile leads to a fresh interactive login. Every
// change is saved before returning.
func (s *ProfileService) Ensure(ctx context.Context) (authsdk.Profile, Outcome, error) {
	log := slogx.FromContext(ctx)

	profile, err := s.Store.Load(ctx)
	switch {
	case err == nil:
		if !profile.NeedsRefresh(s.now()) {
			return profile, OutcomeReused, nil
		}
		if err := s.refreshAndSave(ctx, &profile); err != nil {
			return authsdk.Profile{}, OutcomeRefreshed, err
		}
		return profile, OutcomeRefreshed, nil

	case errors.Is(err, store.ErrCorrupted):
		log.Error(fmt.Sprintf("%s seems to be corrupted, try to login again.", s.Store.Location()), "error", err)

	case errors.Is(err, store.ErrNotFound):
		log.Debug("no stored profile", "location", s.Store.Location())

	default:
		return authsdk.Profile{}, OutcomeLoggedIn, fmt.Errorf("failed to load profile: %w", err)
	}

	profile, err = s.Login(ctx)
	if err != nil {
		return authsdk.Profile{}, OutcomeLoggedIn, err
	}
	return profile, OutcomeLoggedIn, nil
}

// Login always runs the interactive flow and replaces whatever is stored.
func (s *ProfileService) Login(ctx context.Context) (authsdk.Profile, error) {
	p, err := s.Client.Authenticate(ctx, s.Prompt)
	if err != nil {
		return authsdk.Profile{}, err
	}

	if err := s.Store.Save(ctx, *p); err != nil {
		return authsdk.Profile{}, fmt.Errorf("failed to save profile: %w", err)
	}

	slogx.FromContext(ctx).Info("profile saved", "name", p.Name, "location", s.Store.Location())
	return *p, nil
}

// Refresh forces a token refresh for the stored profile, expired or not.
func (s *ProfileService) Refresh(ctx context.Context) (authsdk.Profile, error) {
	profile, err := s.Show(ctx)
	if err != nil {
		return authsdk.Profile{}, err
	}

	if err := s.refreshAndSave(ctx, &profile); err != nil {
		return authsdk.Profile{}, err
	}
	return profile, nil
}

// Show loads the stored profile without touching the network.
func (s *ProfileService) Show(ctx context.Context) (authsdk.Profile, error) {
	profile, err := s.Store.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return authsdk.Profile{}, ErrNoProfile
	}
	if err != nil {
		return authsdk.Profile{}, err
	}
	return profile, nil
}

// Logout forgets the stored profile.
func (s *ProfileService) Logout(ctx context.Context) error {
	if err := s.Store.Delete(ctx); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("profile removed", "location", s.Store.Location())
	return nil
}

func (s *ProfileService) refreshAndSave(ctx context.Context, profile *authsdk.Profile) error {
	updated := *profile
	if err := s.Client.Refresh(ctx, &updated); err != nil {
		return err
	}

	if err := s.Store.Save(ctx, updated); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	*profile = updated
	return nil
}
