package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aussiebroadwan/mcauth/pkg/httpx"
	"github.com/joho/godotenv"
)

// DefaultClientID is baked in at build time with
// -ldflags "-X github.com/aussiebroadwan/mcauth/internal/auth/app.DefaultClientID=..."
var DefaultClientID = ""

// DefaultProfilePath is where the launcher expects the signed-in profile.
const DefaultProfilePath = "~/.local/share/minecraft.nix/profile.json"

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

type Config struct {
	ClientID     string        // Required: Azure application (client) id
	ProfilePath  string        // Optional: profile JSON path for the file store (default: DefaultProfilePath)
	Store        string        // Optional: profile store driver (file, sqlite) (default: file)
	DatabaseFile string        // Optional: SQLite database path for the sqlite store (default: ~/.local/share/minecraft.nix/mcauth.db)
	ProfileSlot  string        // Optional: row key in the sqlite store (default: default)
	ProfileKey   string        // Optional: passphrase sealing the stored profile; empty keeps it plain JSON
	HTTPTimeout  time.Duration // Per request timeout for the authorities (default: 30s)
	Env          string        // Environment (dev, prod) (default: prod)
	LogLevel     string        // Log level (debug, info, warn, error) (default: info)
	LogFormat    string        // Log format (json, text) (default: text)

	OutboundLimit httpx.RateLimitConfig
}

// LoadConfig reads the configuration from the environment, after loading the
// nearest .env file if there is one.
func LoadConfig() Config {
	loadDotEnv()

	return Config{
		ClientID:      getEnvOrDefault("MCAUTH_CLIENT_ID", DefaultClientID),
		ProfilePath:   getEnvOrDefault("MCAUTH_PROFILE_PATH", DefaultProfilePath),
		Store:         getEnvOrDefault("MCAUTH_STORE", StoreFile),
		DatabaseFile:  getEnvOrDefault("MCAUTH_DATABASE_FILE", "~/.local/share/minecraft.nix/mcauth.db"),
		ProfileSlot:   getEnvOrDefault("MCAUTH_PROFILE_SLOT", "default"),
		ProfileKey:    os.Getenv("MCAUTH_PROFILE_KEY"),
		HTTPTimeout:   getEnvDurationOrDefault("MCAUTH_HTTP_TIMEOUT", 30*time.Second),
		Env:           getEnvOrDefault("ENV", "prod"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvOrDefault("LOG_FORMAT", "text"),
		OutboundLimit: httpx.ParseRateLimitFromEnv("OUTBOUND", httpx.OutboundLimit),
	}
}

// Validate reports configuration that would make every login fail.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("no client id configured, set MCAUTH_CLIENT_ID")
	}

	switch c.Store {
	case StoreFile:
		if c.ProfilePath == "" {
			return errors.New("profile path must not be empty")
		}
	case StoreSQLite:
		if c.DatabaseFile == "" {
			return errors.New("database file must not be empty")
		}
	default:
		return fmt.Errorf("unknown profile store %q (want %s or %s)", c.Store, StoreFile, StoreSQLite)
	}

	if c.HTTPTimeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	return nil
}

// loadDotEnv walks up from the working directory and loads the first .env it finds.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1m", "30s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
