// Package crucible is the reconciliation core. It decides whether a record
// already exists in the catalogue, resolves its parent references and
// enforces cascade blocking: once an object is blocked, every child whose
// parents are all blocked is blocked too.
package crucible

import (
	"context"
	"sort"

	"github.com/agentstation/foundry/internal/overseer"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// Crucible matches and prepares records for writing.
type Crucible struct {
	overseer  *overseer.Overseer
	overwrite bool
}

// Option configures a Crucible.
type Option func(*Crucible)

// WithOverwrite lets a partial match found through a persistent identifier
// be updated instead of blocked.
func WithOverwrite(overwrite bool) Option {
	return func(c *Crucible) {
		c.overwrite = overwrite
	}
}

// New creates a Crucible.
func New(o *overseer.Overseer, opts ...Option) *Crucible {
	c := &Crucible{overseer: o}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Overseer returns the lookup service the crucible resolves through.
func (c *Crucible) Overseer() *overseer.Overseer {
	return c.overseer
}

// ResolveAndMatch looks obj up and classifies it. A partial match blocks
// obj's natural key and identifiers in state and returns a
// PartialMatchError; no write may follow.
func (c *Crucible) ResolveAndMatch(ctx context.Context, state *State, obj records.Object) (MatchResult, error) {
	lookup := obj.Lookup()
	logger := logging.FromContext(ctx)

	candidates, by, err := c.overseer.FindMatches(ctx, lookup)
	if err != nil {
		return MatchResult{}, err
	}
	res, err := Match(obj, candidates)
	if err != nil {
		logger.Error().Err(err).Msg("Catalogue holds duplicate objects")
		return MatchResult{}, err
	}
	res.MatchedBy = by

	switch res.Outcome {
	case OutcomeMatch:
		logger.Info().Str("uri", res.URI.String()).Str("matched_by", by.String()).Msg("Matched existing object")
		c.overseer.Remember(lookup.Type, res.URI, append([]string{lookup.Key}, lookup.Identifiers...)...)
		return res, nil

	case OutcomePartial:
		if c.overwrite && by == overseer.ByIdentifier && len(candidates) == 1 && !res.URI.IsZero() {
			res.Outcome = OutcomeUpdate
			logger.Info().Str("uri", res.URI.String()).Msg("Identifier match differs, will overwrite")
			return res, nil
		}

		state.Block(lookup.Type, append([]string{lookup.Key}, lookup.Identifiers...)...)
		for _, conflict := range res.Conflicts {
			logger.Warn().
				Str("field", conflict.Field).
				Interface("local", conflict.Local).
				Interface("remote", conflict.Remote).
				Msg("Conflicting value")
		}
		candidate := "candidate without resource_uri"
		if !res.URI.IsZero() {
			candidate = res.URI.String()
		}
		err := &errors.PartialMatchError{
			ObjectType: lookup.Type.String(),
			Key:        lookup.Key,
			Candidate:  candidate,
			Conflicts:  res.Conflicts,
		}
		logger.Warn().Err(err).Msg("Partial match, object blocked")
		return res, err
	}

	logger.Debug().Msg("No existing object")
	return res, nil
}

// PrepareProject resolves the project's institutions.
func (c *Crucible) PrepareProject(ctx context.Context, _ *State, p *records.RefinedProject) (*records.Project, error) {
	institutions, err := c.resolveAll(ctx, records.TypeProject, p.Name, records.TypeInstitution, p.Institutions)
	if err != nil {
		return nil, err
	}
	return &records.Project{ProjectFields: p.ProjectFields, Institutions: institutions}, nil
}

// PrepareExperiment drops blocked projects and resolves the rest. When the
// catalogue has projects disabled the experiment carries no project links.
func (c *Crucible) PrepareExperiment(ctx context.Context, state *State, e *records.RefinedExperiment) (*records.Experiment, error) {
	out := &records.Experiment{ExperimentFields: e.ExperimentFields}

	intro, err := c.overseer.Introspection(ctx)
	if err != nil {
		return nil, err
	}
	if !intro.ProjectsEnabled || len(e.Projects) == 0 {
		return out, nil
	}

	parents, err := c.surviving(ctx, state, records.TypeExperiment, e.Title, e.Identifiers, records.TypeProject, e.Projects)
	if err != nil {
		return nil, err
	}
	if out.Projects, err = c.resolveAll(ctx, records.TypeExperiment, e.Title, records.TypeProject, parents); err != nil {
		return nil, err
	}
	return out, nil
}

// PrepareDataset drops blocked experiments, resolves the rest and the instrument.
func (c *Crucible) PrepareDataset(ctx context.Context, state *State, d *records.RefinedDataset) (*records.Dataset, error) {
	parents, err := c.surviving(ctx, state, records.TypeDataset, d.Description, d.Identifiers, records.TypeExperiment, d.Experiments)
	if err != nil {
		return nil, err
	}
	experiments, err := c.resolveAll(ctx, records.TypeDataset, d.Description, records.TypeExperiment, parents)
	if err != nil {
		return nil, err
	}
	instrument, err := c.resolve(ctx, records.TypeDataset, d.Description, records.TypeInstrument, d.Instrument)
	if err != nil {
		return nil, err
	}
	return &records.Dataset{DatasetFields: d.DatasetFields, Experiments: experiments, Instrument: instrument}, nil
}

// PrepareDatafile blocks the datafile if its dataset is blocked and
// otherwise resolves the dataset.
func (c *Crucible) PrepareDatafile(ctx context.Context, state *State, f *records.RefinedDatafile) (*records.Datafile, error) {
	name := f.RelativePath()
	if _, err := c.surviving(ctx, state, records.TypeDatafile, name, nil, records.TypeDataset, []string{f.Dataset}); err != nil {
		return nil, err
	}
	dataset, err := c.resolve(ctx, records.TypeDatafile, name, records.TypeDataset, f.Dataset)
	if err != nil {
		return nil, err
	}
	return &records.Datafile{DatafileFields: f.DatafileFields, Dataset: dataset}, nil
}

// surviving removes references blocked for parentType. When none are left
// the child is blocked as well and a BlockedError is returned.
func (c *Crucible) surviving(ctx context.Context, state *State, t records.ObjectType, name string, ids []string, parentType records.ObjectType, refs []string) ([]string, error) {
	kept := state.Unblocked(parentType, refs)
	if len(kept) == len(refs) {
		return kept, nil
	}

	logger := logging.FromContext(ctx)
	if len(kept) > 0 {
		logger.Warn().
			Int("dropped", len(refs)-len(kept)).
			Strs("remaining", kept).
			Msgf("Ignoring blocked %s references", parentType)
		return kept, nil
	}

	state.Block(t, append([]string{name}, ids...)...)
	err := errors.NewBlockedError(t.String(), name, parentType.String(), refs)
	logger.Warn().Err(err).Msg("Object blocked")
	return nil, err
}

func (c *Crucible) resolveAll(ctx context.Context, t records.ObjectType, name string, refType records.ObjectType, refs []string) ([]uri.URI, error) {
	out := make([]uri.URI, 0, len(refs))
	seen := make(map[uri.URI]bool, len(refs))
	for _, ref := range refs {
		u, err := c.resolve(ctx, t, name, refType, ref)
		if err != nil {
			return nil, err
		}
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out, nil
}

// resolve maps a missing reference to a HierarchyError naming the child.
func (c *Crucible) resolve(ctx context.Context, t records.ObjectType, name string, refType records.ObjectType, ref string) (uri.URI, error) {
	u, err := c.overseer.ResolveReference(ctx, refType, ref)
	if err == nil {
		return u, nil
	}
	if errors.IsNotFound(err) {
		herr := errors.NewHierarchyError(t.String(), name, refType.String(), ref)
		logging.FromContext(ctx).Warn().Err(herr).Msg("Unresolved reference")
		return uri.URI{}, herr
	}
	if errors.IsNotUnique(err) {
		logging.FromContext(ctx).Error().Err(err).Str("reference", ref).Msg("Ambiguous reference")
	}
	return uri.URI{}, err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
