// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/keyvend/keyvend/internal/model"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Snapshot storage. When DATABASE_URL is set the snapshot lives in
	// Postgres; otherwise it is a JSON file at SNAPSHOT_PATH.
	SnapshotPath string `env:"SNAPSHOT_PATH" envDefault:"data.json"`
	DatabaseURL  string `env:"DATABASE_URL"`

	// Cache (Redis), optional.
	RedisURL string `env:"REDIS_URL"`

	// Telegram Bot API
	BotToken string `env:"BOT_TOKEN,required,notEmpty"`

	// Entitlements. CommunityIDs is a comma-separated list of chat ids.
	CommunityIDs     string `env:"COMMUNITY_IDS" envDefault:""`
	KeysPerCommunity int    `env:"KEYS_PER_COMMUNITY" envDefault:"3"`

	// Key issuance
	KeyValidity time.Duration `env:"KEY_VALIDITY" envDefault:"720h"`

	// TON payments
	WalletAddress    string        `env:"WALLET_ADDRESS" envDefault:""`
	TonAPIBaseURL    string        `env:"TONAPI_BASE_URL" envDefault:"https://tonapi.io"`
	TonAPIKey        string        `env:"TONAPI_KEY" envDefault:""`
	PaymentAmountTON float64       `env:"PAYMENT_AMOUNT_TON" envDefault:"0.5"`
	PaymentPoll      time.Duration `env:"PAYMENT_POLL_INTERVAL" envDefault:"60s"`

	// Membership cache
	MembershipCacheTTL time.Duration `env:"MEMBERSHIP_CACHE_TTL" envDefault:"5m"`

	// Service tokens for frontend collaborators. Semicolon-separated
	// entries of the form name:scope+scope:argon2hash. Colons are safe
	// separators because PHC hashes use $ and , internally.
	ServiceTokens string `env:"SERVICE_TOKENS" envDefault:""`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCommunityIDs parses the comma-separated community list.
func (c *Config) GetCommunityIDs() ([]int64, error) {
	if c.CommunityIDs == "" {
		return nil, nil
	}

	parts := strings.Split(c.CommunityIDs, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid community id %q: %w", trimmed, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetServiceTokens parses the configured token entries.
func (c *Config) GetServiceTokens() ([]model.ServiceToken, error) {
	if c.ServiceTokens == "" {
		return nil, nil
	}

	entries := strings.Split(c.ServiceTokens, ";")
	tokens := make([]model.ServiceToken, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid service token entry %q: want name:scopes:hash", entry)
		}

		scopes := strings.Split(parts[1], "+")
		for _, scope := range scopes {
			if scope != model.ScopeRead && scope != model.ScopeWrite && scope != model.ScopeAdmin {
				return nil, fmt.Errorf("invalid scope %q in token %q", scope, parts[0])
			}
		}

		tokens = append(tokens, model.ServiceToken{
			Name:   parts[0],
			Scopes: scopes,
			Hash:   parts[2],
		})
	}
	return tokens, nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
