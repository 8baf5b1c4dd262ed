package foundry

import (
	"net/http"

	"github.com/spf13/afero"

	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/internal/metrics"
	"github.com/agentstation/foundry/internal/raid"
)

// Option is a function that configures a Foundry instance
type Option func(*foundry) error

// WithFs sets the filesystem manifests, staged files and results live on.
func WithFs(fs afero.Fs) Option {
	return func(f *foundry) error {
		if fs != nil {
			f.fs = fs
		}
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for the catalogue, RAiD and S3.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *foundry) error {
		f.http = hc
		return nil
	}
}

// WithCatalogue replaces the REST catalogue client.
func WithCatalogue(c catalogue.Client) Option {
	return func(f *foundry) error {
		f.client = c
		return nil
	}
}

// WithMinter replaces the RAiD client.
func WithMinter(m raid.Minter) Option {
	return func(f *foundry) error {
		f.minter = m
		return nil
	}
}

// WithMetrics sets the collector runs are recorded in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *foundry) error {
		if m != nil {
			f.metrics = m
		}
		return nil
	}
}
