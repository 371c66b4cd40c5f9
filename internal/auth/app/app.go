package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/mcauth/internal/auth/service"
	"github.com/aussiebroadwan/mcauth/internal/auth/store"
	"github.com/aussiebroadwan/mcauth/internal/auth/store/drivers/file"
	"github.com/aussiebroadwan/mcauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/mcauth/pkg/authsdk"
	"github.com/aussiebroadwan/mcauth/pkg/cryptox"
	"github.com/aussiebroadwan/mcauth/pkg/httpx"
	"github.com/aussiebroadwan/mcauth/pkg/idx"
	"github.com/aussiebroadwan/mcauth/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application holds the wired dependencies of one CLI run.
type Application struct {
	cfg    Config
	logger *slog.Logger
	runID  idx.ID

	store  store.ProfileStore
	client *authsdk.SDKClient

	Profiles *service.ProfileService
}

// Option tweaks the application during construction, mostly for tests.
type Option func(*Application)

// WithEndpoints points the SDK client at other authorities.
func WithEndpoints(e authsdk.Endpoints) Option {
	return func(app *Application) { app.client.Endpoints = e }
}

// WithLogger replaces the logger built from the config.
func WithLogger(l *slog.Logger) Option {
	return func(app *Application) { app.logger = l }
}

// New validates cfg and wires the store, SDK client and profile service.
// prompt receives the sign-in instructions during an interactive login.
func New(cfg Config, prompt authsdk.PromptFunc, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "mcauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		runID: idx.New(),
	}

	app.client = authsdk.NewSDKClient(cfg.ClientID)
	app.client.HTTPClient = newHTTPClient(cfg)

	for _, opt := range opts {
		opt(app)
	}

	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	app.store = s

	app.Profiles = &service.ProfileService{
		Store:  s,
		Client: app.client,
		Prompt: prompt,
	}

	return app, nil
}

// Context attaches the run-scoped logger to ctx.
func (app *Application) Context(ctx context.Context) context.Context {
	ctx = slogx.WithContext(ctx, app.logger)
	return slogx.WithRunID(ctx, app.runID.String())
}

func (app *Application) Logger() *slog.Logger { return app.logger }

// Close releases the profile store.
func (app *Application) Close() error {
	if app.store == nil {
		return nil
	}
	return app.store.Close()
}

// newHTTPClient stacks logging over outbound rate limiting over the default transport.
func newHTTPClient(cfg Config) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	limited := httpx.NewRateLimitTransport(base, cfg.OutboundLimit, httpx.HostKeyExtractor)

	return &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: slogx.NewTransport(limited),
	}
}

func openStore(cfg Config) (store.ProfileStore, error) {
	var sealer store.Sealer
	if cfg.ProfileKey != "" {
		s, err := cryptox.NewSealer(cfg.ProfileKey)
		if err != nil {
			return nil, err
		}
		sealer = s
	}

	switch cfg.Store {
	case StoreSQLite:
		path, err := file.ExpandHome(cfg.DatabaseFile)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}

		db, err := sqlite.NewStore(path, cfg.ProfileSlot, sealer)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		return db, nil

	default:
		return file.NewStore(cfg.ProfilePath, sealer)
	}
}
