// Package forge writes resolved records to the catalogue.
package forge

import (
	"context"
	"strconv"

	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// Result describes a completed write.
type Result struct {
	URI     uri.URI
	NoURI   bool // the write succeeded but the endpoint named no resource
	Updated bool

	// ParameterSet is the URI of the attached parameter set, if any.
	ParameterSet uri.URI
	// ParameterSetErr is set when the object was written but its
	// parameters were not.
	ParameterSetErr error
}

// Forge issues create and update requests.
type Forge struct {
	client       catalogue.Client
	nonReturning map[records.ObjectType]bool
}

// Option configures a Forge.
type Option func(*Forge)

// WithNonReturning marks object types whose create endpoint returns no
// resource URI. Parameter set types are always non-returning.
func WithNonReturning(types ...records.ObjectType) Option {
	return func(f *Forge) {
		for _, t := range types {
			f.nonReturning[t] = true
		}
	}
}

// New creates a Forge. Datafiles are non-returning by default.
func New(client catalogue.Client, opts ...Option) *Forge {
	f := &Forge{
		client:       client,
		nonReturning: map[records.ObjectType]bool{records.TypeDatafile: true},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Forge) isNonReturning(t records.ObjectType) bool {
	if f.nonReturning[t] {
		return true
	}
	for _, core := range records.IngestionOrder {
		if t == core.ParameterSetType() {
			return true
		}
	}
	return false
}

// Write POSTs payload to t's collection, or PUTs it to existing when
// existing is set, and extracts the written object's URI.
func (f *Forge) Write(ctx context.Context, t records.ObjectType, payload any, existing uri.URI) (Result, error) {
	var (
		resp catalogue.WriteResponse
		err  error
		res  Result
	)
	if existing.IsZero() {
		resp, err = f.client.Create(ctx, t, payload)
	} else {
		resp, err = f.client.Update(ctx, existing, payload)
		res.Updated = true
	}
	if err != nil {
		return Result{}, errors.WrapResource(writeVerb(existing), t.String(), existing.String(), err)
	}

	if u, ok := resp.URI(); ok {
		res.URI = u
		return res, nil
	}
	if !existing.IsZero() {
		res.URI = existing
		return res, nil
	}
	if f.isNonReturning(t) {
		res.NoURI = true
		return res, nil
	}
	return Result{}, errors.WrapResource("create", t.String(), "", errors.ErrNoResourceURI)
}

// CreateOrUpdate writes obj and then attaches params to it. A parameter
// set failure is logged and reported in the result; the object itself is
// already written, so it is not an error.
func (f *Forge) CreateOrUpdate(ctx context.Context, obj records.Object, params *records.ParameterSet, existing uri.URI) (Result, error) {
	t := obj.ObjectType()
	logger := logging.FromContext(ctx)

	res, err := f.Write(ctx, t, obj, existing)
	if err != nil {
		logger.Error().Err(err).Msg("Write failed")
		return Result{}, err
	}

	event := logger.Info()
	if res.NoURI {
		event = logger.Debug()
	}
	event.Str("uri", res.URI.String()).Bool("updated", res.Updated).Msg("Object written")

	if params.Len() == 0 {
		return res, nil
	}
	if res.NoURI {
		// The parameter set needs an owner; for non-returning types look it up.
		owner, err := f.lookupOwner(ctx, obj)
		if err != nil {
			res.ParameterSetErr = err
			logger.Warn().Err(err).Msg("Parameters not attached, written object not found")
			return res, nil
		}
		res.URI = owner
	}

	psURI, err := f.writeParameters(ctx, t, res.URI, params, res.Updated)
	if err != nil {
		res.ParameterSetErr = err
		logger.Warn().Err(err).Int("parameters", params.Len()).Msg("Parameters not attached")
		return res, nil
	}
	res.ParameterSet = psURI
	logger.Debug().Str("parameter_set", psURI.String()).Int("parameters", params.Len()).Msg("Parameters attached")
	return res, nil
}

// writeParameters POSTs a parameter set owned by owner. When overwriting an
// existing object whose parameter set under the same schema is known, the
// set is PUT instead.
func (f *Forge) writeParameters(ctx context.Context, t records.ObjectType, owner uri.URI, params *records.ParameterSet, overwrite bool) (uri.URI, error) {
	psType := t.ParameterSetType()
	payload := map[string]any{
		"schema":     params.Schema,
		"parameters": params.Parameters,
		t.String():   owner.String(),
	}

	var prior uri.URI
	if overwrite {
		sets, err := f.client.Get(ctx, psType, catalogue.Query{t.String(): strconv.Itoa(owner.ID)})
		if err != nil {
			return uri.URI{}, err
		}
		for _, set := range sets {
			if records.Stringify(set["schema"]) != params.Schema {
				continue
			}
			if u, ok := set.ResourceURI(); ok {
				prior = u
				break
			}
		}
	}

	res, err := f.Write(ctx, psType, payload, prior)
	if err != nil {
		return uri.URI{}, err
	}
	return res.URI, nil
}

func (f *Forge) lookupOwner(ctx context.Context, obj records.Object) (uri.URI, error) {
	lookup := obj.Lookup()
	objs, err := f.client.Get(ctx, lookup.Type, catalogue.Query(lookup.Query))
	if err != nil {
		return uri.URI{}, err
	}
	if len(objs) != 1 {
		return uri.URI{}, errors.NewUnableToFindUniqueError(lookup.Type.String(), lookup.Key, nil)
	}
	u, ok := objs[0].ResourceURI()
	if !ok {
		return uri.URI{}, errors.ErrNoResourceURI
	}
	return u, nil
}

func writeVerb(existing uri.URI) string {
	if existing.IsZero() {
		return "create"
	}
	return "update"
}
