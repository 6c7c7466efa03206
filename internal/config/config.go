package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Credential store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config is the runtime configuration shared by the CLI and the server.
type Config struct {
	// GoogleClientID and GoogleClientSecret fill in credentials that were
	// persisted without their OAuth client.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	// GoogleTokenURL overrides the token endpoint used for refresh.
	GoogleTokenURL string `env:"GOOGLE_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`

	CredentialStore string `env:"CREDENTIAL_STORE" envDefault:"file"`
	CredentialDir   string `env:"CREDENTIAL_DIR" envDefault:"./credentials"`
	CredentialDB    string `env:"CREDENTIAL_DB_PATH" envDefault:"./credentials.db"`
	// EncryptionKey is a base64 encoded 32 byte AES key. Empty disables
	// encryption of persisted tokens.
	EncryptionKey string `env:"CREDENTIAL_ENCRYPTION_KEY"`

	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	RefreshTimeout  time.Duration `env:"REFRESH_TIMEOUT" envDefault:"15s"`
	ExpirySkew      time.Duration `env:"TOKEN_EXPIRY_SKEW" envDefault:"1m"`

	DefaultUser       string `env:"DEFAULT_USER" envDefault:"default"`
	OrganizerCalendar string `env:"ORGANIZER_CALENDAR" envDefault:"primary"`
	// FailOnProviderErrors makes any per-calendar error abort scheduling
	// instead of proceeding with partial data.
	FailOnProviderErrors bool `env:"FAIL_ON_PROVIDER_ERRORS"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enum values, durations and the encryption key size.
func (c Config) Validate() error {
	switch c.CredentialStore {
	case StoreFile:
		if c.CredentialDir == "" {
			return fmt.Errorf("CREDENTIAL_DIR is required for the %q credential store", StoreFile)
		}
	case StoreSQLite:
		if c.CredentialDB == "" {
			return fmt.Errorf("CREDENTIAL_DB_PATH is required for the %q credential store", StoreSQLite)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid credential store %q, must be one of: file, sqlite, memory", c.CredentialStore)
	}

	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("REFRESH_TIMEOUT must be positive, got %s", c.RefreshTimeout)
	}
	if c.ExpirySkew < 0 {
		return fmt.Errorf("TOKEN_EXPIRY_SKEW must not be negative, got %s", c.ExpirySkew)
	}
	if c.DefaultUser == "" {
		return fmt.Errorf("DEFAULT_USER must not be empty")
	}
	if c.OrganizerCalendar == "" {
		return fmt.Errorf("ORGANIZER_CALENDAR must not be empty")
	}

	if c.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY is not valid base64: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
	}
	return nil
}
