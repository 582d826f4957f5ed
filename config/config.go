// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (e.g., Twitch chat), use ValidateChatReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Chat transports.
const (
	TransportTwitch  = "twitch"
	TransportConsole = "console"
)

// TokenProvider is the oauth_tokens row holding the bot's Twitch token.
const TokenProvider = "twitch"

type Config struct {
	// Chat
	Transport      string
	AnnounceOnline bool

	// Twitch
	TwitchChannel      string
	TwitchBotUsername  string
	TwitchOAuthToken   string
	TwitchClientID     string
	TwitchClientSecret string
	TwitchRefreshToken string
	TwitchRedirectURI  string

	// Token refresh
	RefreshInterval time.Duration
	RefreshWindow   time.Duration

	// Database
	DBDsn         string
	EncryptionKey string

	// HTTP
	HTTPAddr   string
	AdminToken string
}

// Load reads environment variables and applies defaults. It doesn't fail if Twitch creds are missing;
// use ValidateChatReady() when the Twitch transport is selected. An empty DB_DSN keeps pins in memory.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Transport = strings.ToLower(strings.TrimSpace(os.Getenv("CHAT_TRANSPORT")))
	if cfg.Transport == "" {
		cfg.Transport = TransportTwitch
	}
	if cfg.Transport != TransportTwitch && cfg.Transport != TransportConsole {
		return nil, fmt.Errorf("invalid CHAT_TRANSPORT %q: want %s or %s", cfg.Transport, TransportTwitch, TransportConsole)
	}

	cfg.AnnounceOnline = true
	if v := os.Getenv("ANNOUNCE_ONLINE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ANNOUNCE_ONLINE: %w", err)
		}
		cfg.AnnounceOnline = b
	}

	cfg.TwitchChannel = strings.TrimPrefix(os.Getenv("TWITCH_CHANNEL"), "#")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchRefreshToken = os.Getenv("TWITCH_REFRESH_TOKEN")
	cfg.TwitchRedirectURI = os.Getenv("TWITCH_REDIRECT_URI")

	var err error
	if cfg.RefreshInterval, err = duration("OAUTH_REFRESH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshWindow, err = duration("OAUTH_REFRESH_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}

	// DB (empty disables persistence)
	cfg.DBDsn = os.Getenv("DB_DSN")
	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")

	// HTTP
	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	return cfg, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// ValidateChatReady checks the fields the Twitch transport needs. The token may
// come from the database instead of TWITCH_OAUTH_TOKEN when DB_DSN is set.
func (c *Config) ValidateChatReady() error {
	if c.TwitchChannel == "" || c.TwitchBotUsername == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME")
	}
	if c.TwitchOAuthToken == "" && c.DBDsn == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_OAUTH_TOKEN (or DB_DSN with a stored token)")
	}
	return nil
}

// RefreshEnabled reports whether stored tokens can be refreshed.
func (c *Config) RefreshEnabled() bool {
	return c.DBDsn != "" && c.TwitchClientID != "" && c.TwitchClientSecret != ""
}
