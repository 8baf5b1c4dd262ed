// Package factory drives an ingestion run. Object types are processed in
// dependency order and every type completes before the next starts, so a
// parent blocked during the run is known before its children are examined.
package factory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/foundry/internal/conveyor"
	"github.com/agentstation/foundry/internal/crucible"
	"github.com/agentstation/foundry/internal/forge"
	"github.com/agentstation/foundry/internal/manifest"
	"github.com/agentstation/foundry/internal/metrics"
	"github.com/agentstation/foundry/internal/smelter"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// Factory ingests manifests.
type Factory struct {
	smelter  *smelter.Smelter
	crucible *crucible.Crucible
	forge    *forge.Forge

	conveyor *conveyor.Conveyor
	metrics  *metrics.Metrics
	fs       afero.Fs
	opts     *ingest.Options
	observer func(Event)
}

// Outcome is what happened to one object during a run.
type Outcome string

// Object outcomes.
const (
	Created Outcome = "created"
	Updated Outcome = "updated"
	Skipped Outcome = "skipped"
	Blocked Outcome = "blocked"
	Failed  Outcome = "error"
)

// Event reports the outcome for one object. Observers may be called
// concurrently when Concurrency is above one.
type Event struct {
	Type    records.ObjectType
	Name    string
	URI     uri.URI
	Outcome Outcome
	Err     error
}

// Option configures a Factory.
type Option func(*Factory)

// WithConveyor transfers staged datafiles after they are ingested.
func WithConveyor(c *conveyor.Conveyor) Option {
	return func(f *Factory) {
		f.conveyor = c
	}
}

// WithMetrics records stage timings and run outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Factory) {
		f.metrics = m
	}
}

// WithFs sets the filesystem the result dump is written to.
func WithFs(fs afero.Fs) Option {
	return func(f *Factory) {
		if fs != nil {
			f.fs = fs
		}
	}
}

// WithOptions sets the run options.
func WithOptions(opts *ingest.Options) Option {
	return func(f *Factory) {
		if opts != nil {
			f.opts = opts
		}
	}
}

// WithObserver is called once per object after its outcome is recorded.
func WithObserver(fn func(Event)) Option {
	return func(f *Factory) {
		f.observer = fn
	}
}

// New creates a Factory from the pipeline stages.
func New(s *smelter.Smelter, c *crucible.Crucible, fg *forge.Forge, opts ...Option) *Factory {
	f := &Factory{
		smelter:  s,
		crucible: c,
		forge:    fg,
		fs:       afero.NewOsFs(),
		opts:     ingest.Defaults(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ingest runs every record in m through the pipeline. Per-object failures
// are logged and recorded in the result; an error is returned only when the
// run could not start, was cancelled or its result could not be written.
func (f *Factory) Ingest(ctx context.Context, m *manifest.Manifest) (*ingest.Result, error) {
	if err := f.opts.Validate(); err != nil {
		return nil, err
	}
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.FromContext(ctx)
	result := ingest.NewResult(runID, f.opts.DryRun)

	intro, err := f.crucible.Overseer().Introspection(ctx)
	if err != nil {
		return nil, errors.WrapResource("introspect", "catalogue", "", err)
	}

	logger.Info().
		Int("records", m.Len()).
		Bool("dry_run", f.opts.DryRun).
		Int("concurrency", f.opts.Concurrency).
		Msg("Starting ingestion")

	state := crucible.NewState()
	var datafiles collected

	for _, t := range records.IngestionOrder {
		if !f.opts.Includes(t) {
			continue
		}
		raws := m.Records(t)
		if t == records.TypeProject && !intro.ProjectsEnabled && len(raws) > 0 {
			logger.Warn().Int("projects", len(raws)).Msg("Projects are disabled in the catalogue, skipping them")
			continue
		}

		start := time.Now()
		if err := f.ingestType(ctx, state, t, raws, result.For(t), &datafiles); err != nil {
			result.Finish()
			return result, err
		}
		elapsed := time.Since(start)
		result.For(t).Duration = elapsed
		if f.metrics != nil {
			f.metrics.ObserveStage(t, elapsed)
		}
		logger.Info().Dur("elapsed", elapsed).Msg(result.TypeSummary(t))
	}

	if err := f.transfer(ctx, result, datafiles.list()); err != nil {
		result.Finish()
		return result, err
	}

	result.Finish()
	if f.metrics != nil {
		f.metrics.RecordResult(result)
	}
	logger.Info().Dur("elapsed", result.Duration()).Msg(result.Summary())

	if f.opts.ResultPath != "" {
		if err := result.WriteJSON(f.fs, f.opts.ResultPath); err != nil {
			logger.Error().Err(err).Str("path", f.opts.ResultPath).Msg("Writing ingestion result failed")
			return result, err
		}
		logger.Debug().Str("path", f.opts.ResultPath).Msg("Ingestion result written")
	}
	return result, nil
}

// ingestType processes every record of one type, up to Concurrency at a time.
func (f *Factory) ingestType(ctx context.Context, state *crucible.State, t records.ObjectType, raws []records.Raw, tr *ingest.TypeResult, datafiles *collected) error {
	ctx = logging.WithObjectType(ctx, t.String())
	logging.FromContext(ctx).Debug().Int("records", len(raws)).Msg("Ingesting type")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Concurrency)
	for _, raw := range raws {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			f.ingestOne(gctx, state, raw, tr, datafiles)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return errors.WrapResource("ingest", t.String(), "", err)
	}
	return nil
}

// ingestOne smelts, prepares, matches and writes a single record.
func (f *Factory) ingestOne(ctx context.Context, state *crucible.State, raw records.Raw, tr *ingest.TypeResult, datafiles *collected) {
	name := raw.Name()
	ctx = logging.WithObject(ctx, name)
	logger := logging.FromContext(ctx)

	emit := func(o Outcome, u uri.URI, err error) {
		if f.observer != nil {
			f.observer(Event{Type: raw.Type, Name: name, URI: u, Outcome: o, Err: err})
		}
	}
	fail := func(stage string, err error) {
		if errors.IsBlocked(err) {
			tr.AddBlocked(name)
			logger.Warn().Err(err).Str("stage", stage).Msg("Object blocked")
			emit(Blocked, uri.URI{}, err)
			return
		}
		tr.AddError(name)
		logger.Error().Err(err).Str("stage", stage).Str("source", raw.Source).Msg("Object not ingested")
		emit(Failed, uri.URI{}, err)
	}

	smelted, err := f.smelter.Smelt(ctx, raw)
	if err != nil {
		fail("smelt", err)
		return
	}

	obj, err := f.prepare(ctx, state, smelted)
	if err != nil {
		fail("prepare", err)
		return
	}
	name = obj.DisplayName()

	match, err := f.crucible.ResolveAndMatch(ctx, state, obj)
	if err != nil {
		fail("match", err)
		return
	}

	switch match.Outcome {
	case crucible.OutcomeMatch:
		tr.AddSkipped(name, match.URI)
		datafiles.add(obj)
		emit(Skipped, match.URI, nil)
		return
	case crucible.OutcomeUpdate:
		res, err := f.forge.CreateOrUpdate(ctx, obj, smelted.Parameters, match.URI)
		if err != nil {
			fail("update", err)
			return
		}
		tr.AddUpdated(name, res.URI)
		datafiles.add(obj)
		emit(Updated, res.URI, nil)
		return
	}

	res, err := f.forge.CreateOrUpdate(ctx, obj, smelted.Parameters, uri.URI{})
	if err != nil {
		fail("create", err)
		return
	}

	if !res.NoURI {
		lookup := obj.Lookup()
		f.crucible.Overseer().Remember(lookup.Type, res.URI, append([]string{lookup.Key}, lookup.Identifiers...)...)
	}
	// res.URI is set for non-returning objects whose owner was looked up
	tr.AddSuccess(name, res.URI)
	datafiles.add(obj)
	emit(Created, res.URI, nil)
}

// prepare resolves the refined record's references.
func (f *Factory) prepare(ctx context.Context, state *crucible.State, s smelter.Smelted) (records.Object, error) {
	switch rec := s.Record.(type) {
	case *records.RefinedProject:
		return f.crucible.PrepareProject(ctx, state, rec)
	case *records.RefinedExperiment:
		return f.crucible.PrepareExperiment(ctx, state, rec)
	case *records.RefinedDataset:
		return f.crucible.PrepareDataset(ctx, state, rec)
	case *records.RefinedDatafile:
		return f.crucible.PrepareDatafile(ctx, state, rec)
	}
	return nil, errors.NewValidationError("type", s.Type, "not an ingestible object type")
}

// transfer moves staged datafiles into the storage box. It is skipped in
// dry runs and when no conveyor is configured.
func (f *Factory) transfer(ctx context.Context, result *ingest.Result, files []records.Datafile) error {
	if f.conveyor == nil || !f.opts.Transfer || len(files) == 0 {
		return nil
	}
	logger := logging.FromContext(ctx)
	if f.opts.DryRun {
		logger.Info().Int("datafiles", len(files)).Msg("Dry run, skipping datafile transfer")
		return nil
	}

	tr, err := f.conveyor.Transfer(logging.WithOperation(ctx, "transfer"), files)
	result.Transfer = tr
	if err != nil {
		logger.Error().Err(err).Msg("Datafile transfer interrupted")
		return err
	}
	return nil
}

// collected gathers datafiles that exist in the catalogue after the run.
type collected struct {
	mu    sync.Mutex
	files []records.Datafile
}

func (c *collected) add(obj records.Object) {
	df, ok := obj.(*records.Datafile)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = append(c.files, *df)
}

func (c *collected) list() []records.Datafile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]records.Datafile(nil), c.files...)
}
