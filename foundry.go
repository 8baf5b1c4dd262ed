// Package foundry ingests research metadata into a catalogue.
//
// A run loads a manifest of projects, experiments, datasets and datafiles,
// normalizes every record, matches it against the catalogue and creates
// whatever is missing. Objects that conflict with the catalogue are blocked
// together with every descendant that has no other unblocked parent.
package foundry

import (
	"context"
	"net/http"
	"sync"

	"github.com/spf13/afero"

	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/internal/config"
	"github.com/agentstation/foundry/internal/metrics"
	"github.com/agentstation/foundry/internal/raid"
	"github.com/agentstation/foundry/internal/transport"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/logging"
)

// Introspection describes the catalogue's optional features.
type Introspection = catalogue.Introspection

// Assignment counts identifiers handed out by AssignRAiDs.
type Assignment = raid.Assignment

// Foundry ingests manifests into a catalogue.
type Foundry interface {
	// Ingest loads the manifest at source and writes it to the catalogue.
	Ingest(ctx context.Context, source string, opts ...ingest.Option) (*ingest.Result, error)

	// Validate normalizes the manifest at source without contacting the catalogue.
	Validate(ctx context.Context, source string) (*Report, error)

	// Introspect reports the catalogue's feature switches.
	Introspect(ctx context.Context) (Introspection, error)

	// AssignRAiDs mints identifiers for projects and experiments lacking one
	// and saves the manifest back to dest.
	AssignRAiDs(ctx context.Context, source, dest string) (Assignment, error)

	// OnCreated registers a callback for objects created during a run.
	OnCreated(ObjectHook)

	// OnUpdated registers a callback for objects overwritten during a run.
	OnUpdated(ObjectHook)

	// OnSkipped registers a callback for objects already in the catalogue.
	OnSkipped(ObjectHook)

	// OnFailed registers a callback for blocked and failed objects.
	OnFailed(FailureHook)
}

// foundry is the internal implementation of the Foundry interface
type foundry struct {
	cfg     *config.Config
	fs      afero.Fs
	http    *http.Client
	metrics *metrics.Metrics
	hooks   *hooks

	mu     sync.Mutex
	client catalogue.Client
	minter raid.Minter
}

// New creates a Foundry from cfg.
func New(cfg *config.Config, opts ...Option) (Foundry, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("foundry", "configuration is required", nil)
	}
	f := &foundry{
		cfg:     cfg,
		fs:      afero.NewOsFs(),
		metrics: metrics.New(),
		hooks:   newHooks(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, errors.WrapResource("apply", "option", "", err)
		}
	}
	return f, nil
}

// catalogue returns the catalogue client, creating the REST client on first use.
func (f *foundry) catalogue() (catalogue.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}

	conn := f.cfg.Connection
	t, err := transport.New(conn.Hostname,
		&transport.APIKeyAuth{Username: f.cfg.Auth.Username, APIKey: f.cfg.Auth.APIKey},
		transport.WithHTTPClient(f.http),
		transport.WithService("catalogue"),
		transport.WithTimeout(conn.Timeout),
		transport.WithMaxTries(conn.MaxRetries),
		transport.WithProxy(conn.Proxy.HTTP, conn.Proxy.HTTPS),
		transport.WithVerifyCertificate(conn.VerifyCertificate),
		transport.WithObserver(f.metrics.ObserveRequest),
	)
	if err != nil {
		return nil, err
	}
	f.client = catalogue.NewREST(t)
	return f.client, nil
}

// raidMinter returns the RAiD client, creating it on first use.
func (f *foundry) raidMinter() (raid.Minter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.minter != nil {
		return f.minter, nil
	}
	if !f.cfg.RAiD.Enabled() {
		return nil, errors.NewConfigError("raid", "raid.url is not configured", nil)
	}
	c, err := raid.New(f.cfg.RAiD.URL, f.cfg.RAiD.Token,
		transport.WithHTTPClient(f.http),
		transport.WithObserver(f.metrics.ObserveRequest),
	)
	if err != nil {
		return nil, err
	}
	f.minter = c
	return c, nil
}

// Introspect implements Foundry.
func (f *foundry) Introspect(ctx context.Context) (Introspection, error) {
	client, err := f.catalogue()
	if err != nil {
		return Introspection{}, err
	}
	intro, err := client.Introspect(ctx)
	if err != nil {
		return Introspection{}, errors.WrapResource("introspect", "catalogue", f.cfg.Connection.Hostname, err)
	}
	if p := f.cfg.Ingestion.ProjectsEnabled; p != nil {
		intro.ProjectsEnabled = *p
	}
	logging.FromContext(ctx).Debug().Bool("projects_enabled", intro.ProjectsEnabled).Msg("Catalogue introspected")
	return intro, nil
}
