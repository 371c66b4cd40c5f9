package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/mcauth/internal/auth/store"
	"github.com/aussiebroadwan/mcauth/pkg/authsdk"
	_ "modernc.org/sqlite"
)

// DefaultSlot names the profile row used when the caller doesn't pick one.
const DefaultSlot = "default"

type Store struct {
	db     *sql.DB
	dsn    string
	slot   string
	sealer store.Sealer
	now    func() time.Time
}

var _ store.ProfileStore = (*Store)(nil)

// NewStore opens the database at dsn. Call ApplyMigrations before first use.
// sealer may be nil to keep the profile JSON readable in the database.
func NewStore(dsn, slot string, sealer store.Sealer) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One writer at a time; sqlite would otherwise return SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if slot == "" {
		slot = DefaultSlot
	}

	return &Store{
		db:     db,
		dsn:    dsn,
		slot:   slot,
		sealer: sealer,
		now:    time.Now,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Location() string {
	return fmt.Sprintf("%s (slot %q)", s.dsn, s.slot)
}

const selectProfile = `SELECT data, sealed FROM profiles WHERE slot = ?`

func (s *Store) Load(ctx context.Context) (authsdk.Profile, error) {
	var (
		data   []byte
		sealed bool
	)

	err := s.db.QueryRowContext(ctx, selectProfile, s.slot).Scan(&data, &sealed)
	if err != nil {
		return authsdk.Profile{}, mapNotFound(err)
	}

	if !sealed {
		return store.Decode(data, nil)
	}
	if s.sealer == nil {
		return authsdk.Profile{}, fmt.Errorf("%w: profile is sealed but no key is configured", store.ErrCorrupted)
	}
	return store.Decode(data, s.sealer)
}

const upsertProfile = `
INSERT INTO profiles (slot, profile_id, name, data, sealed, game_token_expires_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET
    profile_id            = excluded.profile_id,
    name                  = excluded.name,
    data                  = excluded.data,
    sealed                = excluded.sealed,
    game_token_expires_at = excluded.game_token_expires_at,
    updated_at            = excluded.updated_at`

func (s *Store) Save(ctx context.Context, p authsdk.Profile) error {
	data, err := store.Encode(p, s.sealer)
	if err != nil {
		return err
	}

	now := s.now().UTC().Unix()
	_, err = s.db.ExecContext(ctx, upsertProfile,
		s.slot,
		p.ID,
		p.Name,
		data,
		s.sealer != nil,
		mapExpiry(p.GameToken),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite store: save profile: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE slot = ?`, s.slot); err != nil {
		return fmt.Errorf("sqlite store: delete profile: %w", err)
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapExpiry keeps the no-expiry sentinel as NULL.
func mapExpiry(t authsdk.Token) sql.NullInt64 {
	if !t.HasExpiry() {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: t.NotAfter.UTC().Unix(), Valid: true}
}
