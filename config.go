package goSession

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MrEthical07/goSession/tokenstore"
)

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	API        APIConfig        `envPrefix:"API_"`
	Storage    StorageConfig    `envPrefix:"STORAGE_"`
	Validation ValidationConfig `envPrefix:"VALIDATION_"`
	Session    SessionConfig    `envPrefix:"SESSION_"`
	Events     EventsConfig     `envPrefix:"EVENTS_"`
	Metrics    MetricsConfig    `envPrefix:"METRICS_"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig defines a public type used by goSession APIs.
//
// APIConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type APIConfig struct {
	BaseURL   string        `env:"BASE_URL"`
	Timeout   time.Duration `env:"TIMEOUT"`
	UserAgent string        `env:"USER_AGENT"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig selects the persistent token store. TokenKey is the single key the
// session token lives under.
type StorageConfig struct {
	Backend     string        `env:"BACKEND"`
	TokenKey    string        `env:"TOKEN_KEY"`
	FilePath    string        `env:"FILE_PATH"`
	RedisAddr   string        `env:"REDIS_ADDR"`
	RedisPrefix string        `env:"REDIS_PREFIX"`
	RedisTTL    time.Duration `env:"REDIS_TTL"`
	SQLitePath  string        `env:"SQLITE_PATH"`
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig holds the local length thresholds checked before any network call.
type ValidationConfig struct {
	MinPasswordLength int `env:"MIN_PASSWORD_LENGTH"`
	MaxPasswordLength int `env:"MAX_PASSWORD_LENGTH"`
	MinUsernameLength int `env:"MIN_USERNAME_LENGTH"`
	MaxUsernameLength int `env:"MAX_USERNAME_LENGTH"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goSession APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	SignUpChain            SignUpChain `env:"SIGN_UP_CHAIN"`
	CheckEmailBeforeSignUp bool        `env:"CHECK_EMAIL_BEFORE_SIGN_UP"`
	// DiscardExpiredTokens drops a stored token at startup when its unverified JWT exp
	// claim has passed. Opaque tokens are always kept.
	DiscardExpiredTokens bool `env:"DISCARD_EXPIRED_TOKENS"`
}

/*
====================================
EVENTS / METRICS CONFIG
====================================
*/

// EventsConfig controls the asynchronous event dispatcher.
type EventsConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig defines a public type used by goSession APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"ENABLE_LATENCY_HISTOGRAMS"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultTokenKey is the storage key used when none is configured.
const DefaultTokenKey = "authToken"

// EnvPrefix prefixes every environment variable read by [ConfigFromEnv].
const EnvPrefix = "ALGOLEARN_"

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8080",
			Timeout:   15 * time.Second,
			UserAgent: "goSession/1",
		},
		Storage: StorageConfig{
			Backend:     tokenstore.BackendFile,
			TokenKey:    DefaultTokenKey,
			RedisPrefix: "gs",
		},
		Validation: ValidationConfig{
			MinPasswordLength: 8,
			MaxPasswordLength: 128,
			MinUsernameLength: 3,
			MaxUsernameLength: 32,
		},
		Session: SessionConfig{
			SignUpChain:            ChainRegisterToken,
			CheckEmailBeforeSignUp: false,
			DiscardExpiredTokens:   false,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// ConfigFromEnv overlays ALGOLEARN_* environment variables on [DefaultConfig].
// Unset variables keep their default.
func ConfigFromEnv() (Config, error) {
	return configFromEnv(env.Options{Prefix: EnvPrefix})
}

func configFromEnv(opts env.Options) (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// API
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("API BaseURL must be an absolute http(s) URL")
		}
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}

	// Storage
	switch c.Storage.Backend {
	case tokenstore.BackendFile, tokenstore.BackendMemory, tokenstore.BackendSQLite:
	case tokenstore.BackendRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("Storage RedisAddr is required for the redis backend")
		}
	default:
		return fmt.Errorf("Storage Backend %q is not supported", c.Storage.Backend)
	}
	if c.Storage.TokenKey == "" {
		return errors.New("Storage TokenKey must not be empty")
	}
	if c.Storage.RedisTTL < 0 {
		return errors.New("Storage RedisTTL must be >= 0")
	}

	// Validation
	if c.Validation.MinPasswordLength < 1 {
		return errors.New("Validation MinPasswordLength must be >= 1")
	}
	if c.Validation.MaxPasswordLength < c.Validation.MinPasswordLength {
		return errors.New("Validation MaxPasswordLength must be >= MinPasswordLength")
	}
	if c.Validation.MinUsernameLength < 1 {
		return errors.New("Validation MinUsernameLength must be >= 1")
	}
	if c.Validation.MaxUsernameLength < c.Validation.MinUsernameLength {
		return errors.New("Validation MaxUsernameLength must be >= MinUsernameLength")
	}

	// Session
	if c.Session.SignUpChain > ChainNone {
		return errors.New("Session SignUpChain is invalid")
	}

	// Events
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when events are enabled")
	}

	return nil
}
