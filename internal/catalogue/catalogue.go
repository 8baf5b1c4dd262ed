// Package catalogue is the client for the research-data catalogue's REST API.
// The pipeline depends only on the Client interface, so tests and dry runs
// can substitute an in-memory catalogue.
package catalogue

import (
	"context"

	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// Client is the capability the ingestion pipeline needs from the catalogue.
type Client interface {
	// Get returns every object of objectType matching query, following pagination.
	Get(ctx context.Context, objectType records.ObjectType, query Query) ([]Object, error)

	// Create POSTs payload to the objectType collection.
	Create(ctx context.Context, objectType records.ObjectType, payload any) (WriteResponse, error)

	// Update PUTs payload to the object's detail endpoint.
	Update(ctx context.Context, target uri.URI, payload any) (WriteResponse, error)

	// Introspect reports which optional catalogue features are enabled.
	Introspect(ctx context.Context) (Introspection, error)
}

// Query holds GET filter parameters.
type Query map[string]string

// Object is a catalogue object as returned by the API.
type Object map[string]any

// ResourceURI returns the object's resource_uri, if present and well formed.
func (o Object) ResourceURI() (uri.URI, bool) {
	raw, ok := o["resource_uri"].(string)
	if !ok || raw == "" {
		return uri.URI{}, false
	}
	u, err := uri.Parse(raw)
	if err != nil {
		return uri.URI{}, false
	}
	return u, true
}

// WriteResponse is the outcome of a successful POST or PUT.
type WriteResponse struct {
	StatusCode int
	Object     Object // decoded body, nil when the endpoint returns none
	Location   string
}

// URI extracts the written object's URI from the body or the Location header.
func (w WriteResponse) URI() (uri.URI, bool) {
	if u, ok := w.Object.ResourceURI(); ok {
		return u, true
	}
	if w.Location != "" {
		if u, err := uri.FromLocation(w.Location); err == nil {
			return u, true
		}
	}
	return uri.URI{}, false
}

// Introspection describes catalogue-wide feature switches.
type Introspection struct {
	ProjectsEnabled    bool     `json:"projects_enabled"`
	ExperimentOnlyACLs bool     `json:"experiment_only_acls"`
	IdentifiersEnabled bool     `json:"identifiers_enabled"`
	IdentifiedObjects  []string `json:"identified_objects"`
	ProfilesEnabled    bool     `json:"profiles_enabled"`
	ProfiledObjects    []string `json:"profiled_objects"`
}

// HasIdentifiers reports whether identifier lookups are supported for t.
func (i Introspection) HasIdentifiers(t records.ObjectType) bool {
	if !i.IdentifiersEnabled {
		return false
	}
	for _, o := range i.IdentifiedObjects {
		if records.ObjectType(o) == t {
			return true
		}
	}
	return false
}
