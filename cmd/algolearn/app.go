package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/tokenstore"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	logLevel string
	apiURL   string
	storeDir string
	events   bool
}

// app is one restored session plus the collaborators a command needs.
type app struct {
	manager     *goSession.Manager
	client      *api.Client
	profiles    *profile.Cache
	logger      *slog.Logger
	unsubscribe func()
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func loadConfig(opts *globalOptions) (goSession.Config, error) {
	cfg, err := goSession.ConfigFromEnv()
	if err != nil {
		return goSession.Config{}, err
	}
	if opts.apiURL != "" {
		cfg.API.BaseURL = opts.apiURL
	}
	if opts.storeDir != "" {
		cfg.Storage.Backend = tokenstore.BackendFile
		cfg.Storage.FilePath = opts.storeDir
	}
	if cfg.API.UserAgent == goSession.DefaultConfig().API.UserAgent {
		cfg.API.UserAgent = appName + "/" + Version
	}
	if err := cfg.Validate(); err != nil {
		return goSession.Config{}, err
	}
	return cfg, nil
}

// openApp builds the Manager and waits for the stored session to be restored.
func openApp(ctx context.Context, opts *globalOptions, stderr io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(stderr, opts.logLevel)

	client, err := api.New(api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	b := goSession.New().WithConfig(cfg).WithAPI(client).WithLogger(logger)
	if opts.events {
		b = b.WithEventSink(goSession.NewJSONWriterSink(stderr))
	}
	m, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}

	cache := profile.New(client, m)
	unsubscribe := m.Subscribe(func(c goSession.Change) {
		if c.TokenChanged {
			cache.Invalidate()
		}
	})

	m.Initialize(ctx)
	logger.Debug("session restored", "state", m.State().String())

	return &app{
		manager:     m,
		client:      client,
		profiles:    cache,
		logger:      logger,
		unsubscribe: unsubscribe,
	}, nil
}

func (a *app) Close() error {
	if a == nil {
		return nil
	}
	a.unsubscribe()
	return a.manager.Close()
}

// withApp opens the session, runs fn and closes the session, joining any
// close error with fn's result.
func withApp(ctx context.Context, opts *globalOptions, stderr io.Writer, fn func(*app) error) (err error) {
	a, err := openApp(ctx, opts, stderr)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	return fn(a)
}
