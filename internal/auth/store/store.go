package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/mcauth/pkg/authsdk"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrCorrupted = errors.New("store: profile is corrupted")
)

// ProfileStore persists the signed-in profile between runs. Concrete drivers
// (file, sqlite) implement this. Each store instance holds exactly one profile.
type ProfileStore interface {
	// Load returns ErrNotFound when nothing has been saved yet and
	// ErrCorrupted when the stored data can't be decoded.
	Load(ctx context.Context) (authsdk.Profile, error)

	// Save replaces the stored profile.
	Save(ctx context.Context, p authsdk.Profile) error

	// Delete removes the stored profile. Deleting nothing is not an error.
	Delete(ctx context.Context) error

	// Location describes where the profile lives, for messages.
	Location() string

	// Close releases any underlying resources.
	Close() error
}

// Sealer encrypts profile bytes at rest. *cryptox.Sealer satisfies it.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// Encode serialises p, sealing it when sealer is non-nil.
func Encode(p authsdk.Profile, sealer Sealer) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("store: encode profile: %w", err)
	}

	if sealer == nil {
		return data, nil
	}

	sealed, err := sealer.Seal(data)
	if err != nil {
		return nil, fmt.Errorf("store: seal profile: %w", err)
	}
	return sealed, nil
}

// Decode reverses Encode. Any failure, including a wrong passphrase, comes back
// wrapped in ErrCorrupted so callers can fall back to a fresh login.
func Decode(data []byte, sealer Sealer) (authsdk.Profile, error) {
	if sealer != nil {
		opened, err := sealer.Open(data)
		if err != nil {
			return authsdk.Profile{}, fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
		data = opened
	}

	var p authsdk.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return authsdk.Profile{}, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	if p.ID == "" || p.Name == "" {
		return authsdk.Profile{}, fmt.Errorf("%w: missing id or name", ErrCorrupted)
	}
	if p.GameToken.Value == "" || p.RefreshToken.Value == "" {
		return authsdk.Profile{}, fmt.Errorf("%w: missing game or refresh token", ErrCorrupted)
	}

	return p, nil
}
