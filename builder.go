package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/tokenstore"
)

// Builder defines a public type used by goSession APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	store  tokenstore.Store
	api    AuthAPI
	logger *slog.Logger
	sink   EventSink
	now    func() time.Time

	built bool
}

// binder is implemented by API clients that read the session token through a
// middleware.TokenSource, such as *api.Client.
type binder interface {
	Bind(source middleware.TokenSource, onFailure middleware.AuthFailureFunc)
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithTokenStore supplies the persistent token store. When unset, Build opens the
// backend named by Config.Storage and Close releases it.
func (b *Builder) WithTokenStore(store tokenstore.Store) *Builder {
	b.store = store
	return b
}

// WithAPI supplies the backend client. When unset, Build creates an *api.Client from
// Config.API. A client that has a Bind method is bound to the built Manager.
func (b *Builder) WithAPI(client AuthAPI) *Builder {
	b.api = client
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink enables event delivery to sink.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	if sink != nil {
		b.config.Events.Enabled = true
	}
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles a Manager in StateLoading. The
// Manager reads the store only when Initialize is called.
//
// Build may return an error when the configuration is invalid or the storage backend
// cannot be opened.
func (b *Builder) Build(ctx context.Context) (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		config:  cfg,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		now:     now,
		state:   StateLoading,
		ready:   make(chan struct{}),
	}

	client := b.api
	if client == nil {
		c, err := api.New(api.Config{
			BaseURL:   cfg.API.BaseURL,
			Timeout:   cfg.API.Timeout,
			UserAgent: cfg.API.UserAgent,
		})
		if err != nil {
			return nil, fmt.Errorf("build api client: %w", err)
		}
		client = c
	}
	if bc, ok := client.(binder); ok {
		bc.Bind(m, m.OnAuthFailure)
	}
	m.api = client

	store := b.store
	if store == nil {
		s, closeFn, err := tokenstore.Open(ctx, tokenstore.Options{
			Backend:     cfg.Storage.Backend,
			Source:      "goSession",
			FileDir:     cfg.Storage.FilePath,
			RedisAddr:   cfg.Storage.RedisAddr,
			RedisPrefix: cfg.Storage.RedisPrefix,
			RedisTTL:    cfg.Storage.RedisTTL,
			SQLitePath:  cfg.Storage.SQLitePath,
		})
		if err != nil {
			return nil, fmt.Errorf("open token store: %w", err)
		}
		store = s
		m.closers = append(m.closers, closeFn)
	}
	m.store = store

	m.events = newEventDispatcher(cfg.Events, b.sink)

	b.built = true
	return m, nil
}
