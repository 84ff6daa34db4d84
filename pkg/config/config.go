// Package config holds the library's runtime settings: endpoints, auth and
// the sync layer's timing knobs. Defaults first, then an optional .env file,
// then process environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything Open needs to assemble a board.
type Config struct {
	// StoreBaseURL is the row store's REST endpoint.
	StoreBaseURL string
	// FeedBaseURL is the change feed's websocket endpoint.
	FeedBaseURL string
	// AuthToken is the bearer token for both endpoints. Empty runs
	// unauthenticated (read-only boards).
	AuthToken string
	// OwnerID scopes collections to one band's board.
	OwnerID string

	CacheTTL         time.Duration
	DebounceWindow   time.Duration
	MaxSubscriptions int
	RetryBase        time.Duration
	MaxRetries       int
	// InitTimeout bounds the whole startup sequence. Past it the board
	// proceeds degraded: no live subscriptions, cache and fetch only.
	InitTimeout time.Duration
	// OptimisticGrace is how long a superseded speculative entry lingers.
	OptimisticGrace time.Duration
}

// LoadDefaults populates the development defaults.
func (c *Config) LoadDefaults() {
	c.StoreBaseURL = "http://localhost:8090"
	c.FeedBaseURL = "ws://localhost:8090"
	c.CacheTTL = 30 * time.Second
	c.DebounceWindow = 50 * time.Millisecond
	c.MaxSubscriptions = 5
	c.RetryBase = 500 * time.Millisecond
	c.MaxRetries = 3
	c.InitTimeout = 8 * time.Second
	c.OptimisticGrace = 100 * time.Millisecond
}

// Load builds a Config from defaults overlaid with the environment. A .env
// file in the working directory is honored when present.
func Load() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	_ = godotenv.Load()
	cfg.fromEnv()
	return cfg
}

func (c *Config) fromEnv() {
	setString(&c.StoreBaseURL, "SETLIVE_STORE_URL")
	setString(&c.FeedBaseURL, "SETLIVE_FEED_URL")
	setString(&c.AuthToken, "SETLIVE_AUTH_TOKEN")
	setString(&c.OwnerID, "SETLIVE_OWNER_ID")
	setDuration(&c.CacheTTL, "SETLIVE_CACHE_TTL")
	setDuration(&c.DebounceWindow, "SETLIVE_DEBOUNCE_WINDOW")
	setInt(&c.MaxSubscriptions, "SETLIVE_MAX_SUBSCRIPTIONS")
	setDuration(&c.RetryBase, "SETLIVE_RETRY_BASE")
	setInt(&c.MaxRetries, "SETLIVE_MAX_RETRIES")
	setDuration(&c.InitTimeout, "SETLIVE_INIT_TIMEOUT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
