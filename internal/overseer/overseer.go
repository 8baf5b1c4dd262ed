// Package overseer looks objects up in the catalogue. It finds candidate
// matches for a record and resolves reference strings (names, identifiers
// or URIs) to resource URIs. It holds no per-run state beyond caches.
package overseer

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// MatchedBy records which lookup produced a set of candidates.
type MatchedBy int

const (
	// ByNaturalKey means the candidates share the record's natural key.
	ByNaturalKey MatchedBy = iota
	// ByIdentifier means a persistent or alternate identifier matched.
	ByIdentifier
)

// String implements fmt.Stringer.
func (m MatchedBy) String() string {
	if m == ByIdentifier {
		return "identifier"
	}
	return "natural key"
}

// Overseer queries the catalogue on behalf of the resolver.
type Overseer struct {
	client catalogue.Client
	cache  *lru.Cache[string, uri.URI]

	mu            sync.Mutex
	introspection *catalogue.Introspection
	identified    map[records.ObjectType]bool

	// refMu guards remembered and ambiguous. remembered holds every
	// reference recorded by Remember, so a second object claiming the same
	// reference is noticed even after the cache evicted the first.
	refMu      sync.Mutex
	remembered map[string]uri.URI
	ambiguous  map[string]bool
}

// Option configures an Overseer.
type Option func(*Overseer)

// WithIntrospection fixes the catalogue capabilities instead of asking
// the catalogue for them.
func WithIntrospection(i catalogue.Introspection) Option {
	return func(o *Overseer) {
		o.introspection = &i
	}
}

// WithIdentifiedObjects overrides which object types support identifier
// lookups, whatever the catalogue reports.
func WithIdentifiedObjects(types ...records.ObjectType) Option {
	return func(o *Overseer) {
		o.identified = make(map[records.ObjectType]bool, len(types))
		for _, t := range types {
			o.identified[t] = true
		}
	}
}

// New creates an Overseer with a resolution cache of the given size.
// A size of zero uses the default.
func New(client catalogue.Client, cacheSize int, opts ...Option) (*Overseer, error) {
	if cacheSize <= 0 {
		cacheSize = constants.ResolutionCacheSize
	}
	cache, err := lru.New[string, uri.URI](cacheSize)
	if err != nil {
		return nil, errors.NewConfigError("overseer", "creating resolution cache", err)
	}
	o := &Overseer{
		client:     client,
		cache:      cache,
		remembered: make(map[string]uri.URI),
		ambiguous:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Introspection returns the catalogue capabilities, fetching them once.
func (o *Overseer) Introspection(ctx context.Context) (catalogue.Introspection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.introspection != nil {
		return *o.introspection, nil
	}
	i, err := o.client.Introspect(ctx)
	if err != nil {
		return catalogue.Introspection{}, err
	}
	o.introspection = &i

	logging.FromContext(ctx).Debug().
		Bool("projects_enabled", i.ProjectsEnabled).
		Bool("identifiers_enabled", i.IdentifiersEnabled).
		Strs("identified_objects", i.IdentifiedObjects).
		Msg("Catalogue introspection")
	return i, nil
}

// HasIdentifiers reports whether identifier lookups are used for t.
func (o *Overseer) HasIdentifiers(ctx context.Context, t records.ObjectType) (bool, error) {
	if o.identified != nil {
		return o.identified[t], nil
	}
	i, err := o.Introspection(ctx)
	if err != nil {
		return false, err
	}
	return i.HasIdentifiers(t), nil
}

// FindMatches returns the catalogue objects that could be the record
// described by lookup. Each identifier is tried in turn when identifier
// lookups are enabled; the natural key is queried only if none matched.
func (o *Overseer) FindMatches(ctx context.Context, lookup records.Lookup) ([]catalogue.Object, MatchedBy, error) {
	logger := logging.FromContext(ctx)

	if len(lookup.Identifiers) > 0 {
		enabled, err := o.HasIdentifiers(ctx, lookup.Type)
		if err != nil {
			return nil, ByNaturalKey, err
		}
		if enabled {
			for _, id := range lookup.Identifiers {
				objs, err := o.client.Get(ctx, lookup.Type, catalogue.Query{"identifier": id})
				if err != nil {
					return nil, ByIdentifier, err
				}
				if len(objs) > 0 {
					logger.Debug().
						Str("lookup_type", lookup.Type.String()).
						Str("identifier", id).
						Int("candidates", len(objs)).
						Msg("Identifier lookup matched")
					return objs, ByIdentifier, nil
				}
			}
		}
	}

	objs, err := o.client.Get(ctx, lookup.Type, catalogue.Query(lookup.Query))
	if err != nil {
		return nil, ByNaturalKey, err
	}
	logger.Debug().
		Str("lookup_type", lookup.Type.String()).
		Str("key", lookup.Key).
		Int("candidates", len(objs)).
		Msg("Natural key lookup")
	return objs, ByNaturalKey, nil
}

// ResolveReference turns a reference to an object of type t into its URI.
// A reference that is already a URI of type t is returned as is. Otherwise
// it is tried as an identifier and then as a natural key. No match yields a
// NotFoundError and several yield an UnableToFindUniqueError.
func (o *Overseer) ResolveReference(ctx context.Context, t records.ObjectType, ref string) (uri.URI, error) {
	if uri.IsURI(ref, t.String()) {
		return uri.MustParse(ref), nil
	}
	key := cacheKey(t, ref)
	if u, ok := o.lookupCached(key); ok {
		return u, nil
	}

	var objs []catalogue.Object
	enabled, err := o.HasIdentifiers(ctx, t)
	if err != nil {
		return uri.URI{}, err
	}
	if enabled {
		if objs, err = o.client.Get(ctx, t, catalogue.Query{"identifier": ref}); err != nil {
			return uri.URI{}, err
		}
	}
	if len(objs) == 0 {
		if objs, err = o.client.Get(ctx, t, catalogue.Query{t.MatchField(): ref}); err != nil {
			return uri.URI{}, err
		}
	}

	switch len(objs) {
	case 0:
		return uri.URI{}, errors.NewNotFoundError(t.String(), ref)
	case 1:
		u, ok := objs[0].ResourceURI()
		if !ok {
			return uri.URI{}, errors.NewNotFoundError(t.String(), ref)
		}
		o.cacheResolved(key, u)
		return u, nil
	default:
		matches := make([]string, 0, len(objs))
		for _, obj := range objs {
			if u, ok := obj.ResourceURI(); ok {
				matches = append(matches, u.String())
			}
		}
		return uri.URI{}, errors.NewUnableToFindUniqueError(t.String(), ref, matches)
	}
}

// Remember records that refs identify u, so later references resolve
// without a catalogue query. A reference already remembered or resolved
// to a different object becomes ambiguous: it is dropped from the cache
// and every later resolution goes to the catalogue, which reports it as
// not unique.
func (o *Overseer) Remember(t records.ObjectType, u uri.URI, refs ...string) {
	o.refMu.Lock()
	defer o.refMu.Unlock()

	for _, ref := range refs {
		if ref == "" {
			continue
		}
		key := cacheKey(t, ref)
		if o.ambiguous[key] {
			continue
		}
		prev, seen := o.remembered[key]
		if !seen {
			prev, seen = o.cache.Peek(key)
		}
		if seen && prev != u {
			o.ambiguous[key] = true
			delete(o.remembered, key)
			o.cache.Remove(key)
			continue
		}
		o.remembered[key] = u
	}
}

// Ambiguous reports whether ref was remembered for more than one object of type t.
func (o *Overseer) Ambiguous(t records.ObjectType, ref string) bool {
	o.refMu.Lock()
	defer o.refMu.Unlock()
	return o.ambiguous[cacheKey(t, ref)]
}

func (o *Overseer) lookupCached(key string) (uri.URI, bool) {
	o.refMu.Lock()
	defer o.refMu.Unlock()

	if o.ambiguous[key] {
		return uri.URI{}, false
	}
	if u, ok := o.remembered[key]; ok {
		return u, true
	}
	return o.cache.Get(key)
}

func (o *Overseer) cacheResolved(key string, u uri.URI) {
	o.refMu.Lock()
	defer o.refMu.Unlock()
	if !o.ambiguous[key] {
		o.cache.Add(key, u)
	}
}

func cacheKey(t records.ObjectType, ref string) string {
	return string(t) + "\x00" + ref
}
