// Package app provides the application context and dependency management
// for the foundry CLI.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/foundry"
	"github.com/agentstation/foundry/internal/config"
	"github.com/agentstation/foundry/pkg/errors"
)

// App holds the CLI configuration, the logger and the lazily built
// Foundry instance.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// lazy-initialized, singleton
	mu      sync.RWMutex
	foundry foundry.Foundry
	opts    []foundry.Option
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		config:  LoadConfig(),
	}

	logger := NewLogger(app.config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the CLI configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the requested output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Foundry returns the Foundry instance, loading the ingestion
// configuration on first use.
func (a *App) Foundry() (foundry.Foundry, error) {
	a.mu.RLock()
	if a.foundry != nil {
		f := a.foundry
		a.mu.RUnlock()
		return f, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.foundry != nil {
		return a.foundry, nil
	}

	cfg, err := config.Load(config.Options{File: a.config.ConfigFile})
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("file", cfg.File).Str("hostname", cfg.Connection.Hostname).Msg("Configuration loaded")

	f, err := foundry.New(cfg, a.opts...)
	if err != nil {
		return nil, errors.WrapResource("create", "foundry", "", err)
	}
	a.foundry = f
	return f, nil
}

// Shutdown releases resources held by the application.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.foundry = nil
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithFoundry sets a prebuilt Foundry instance (useful for testing).
func WithFoundry(f foundry.Foundry) Option {
	return func(a *App) error {
		a.foundry = f
		return nil
	}
}

// WithFoundryOptions passes options to foundry.New when the instance is built.
func WithFoundryOptions(opts ...foundry.Option) Option {
	return func(a *App) error {
		a.opts = append(a.opts, opts...)
		return nil
	}
}
