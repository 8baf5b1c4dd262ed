package foundry

import (
	"context"

	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/internal/catalogue/memory"
	"github.com/agentstation/foundry/internal/conveyor"
	"github.com/agentstation/foundry/internal/crucible"
	"github.com/agentstation/foundry/internal/factory"
	"github.com/agentstation/foundry/internal/forge"
	"github.com/agentstation/foundry/internal/idstore"
	"github.com/agentstation/foundry/internal/manifest"
	"github.com/agentstation/foundry/internal/matcher"
	"github.com/agentstation/foundry/internal/overseer"
	"github.com/agentstation/foundry/internal/raid"
	"github.com/agentstation/foundry/internal/smelter"
	"github.com/agentstation/foundry/internal/storage"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
)

// Ingest implements Foundry.
func (f *foundry) Ingest(ctx context.Context, source string, opts ...ingest.Option) (*ingest.Result, error) {
	options := f.options().Apply(opts...)
	if err := options.Validate(); err != nil {
		return nil, err
	}

	m, err := f.load(ctx, source)
	if err != nil {
		return nil, err
	}

	client, err := f.catalogue()
	if err != nil {
		return nil, err
	}
	if options.DryRun {
		client = memory.NewDryRun(client)
	}

	o, intro, err := f.overseer(ctx, client)
	if err != nil {
		return nil, err
	}

	factoryOpts := []factory.Option{
		factory.WithFs(f.fs),
		factory.WithOptions(options),
		factory.WithMetrics(f.metrics),
		factory.WithObserver(f.hooks.trigger),
	}
	if options.Transfer && f.cfg.Storage != nil {
		c, err := f.conveyor(ctx)
		if err != nil {
			return nil, err
		}
		factoryOpts = append(factoryOpts, factory.WithConveyor(c))
	}

	fac := factory.New(
		f.smelter(intro),
		crucible.New(o, crucible.WithOverwrite(options.Overwrite)),
		forge.New(client),
		factoryOpts...,
	)
	result, err := fac.Ingest(ctx, m)

	if path := f.cfg.Ingestion.MetricsPath; path != "" && result != nil {
		if werr := f.metrics.WriteTextfile(path); werr != nil {
			logging.FromContext(ctx).Warn().Err(werr).Str("path", path).Msg("Writing metrics failed")
		}
	}
	return result, err
}

// options derives the run defaults from configuration.
func (f *foundry) options() *ingest.Options {
	o := ingest.Defaults()
	o.Overwrite = f.cfg.Ingestion.Overwrite
	if f.cfg.Ingestion.Concurrency > 0 {
		o.Concurrency = f.cfg.Ingestion.Concurrency
	}
	if f.cfg.Ingestion.ResultPath != "" {
		o.ResultPath = f.cfg.Ingestion.ResultPath
	}
	return o
}

// load reads the manifest, dropping excluded and system datafiles.
func (f *foundry) load(ctx context.Context, source string) (*manifest.Manifest, error) {
	if source == "" {
		source = f.cfg.General.SourceDirectory
	}
	if source == "" {
		return nil, errors.NewValidationError("source", source, "no manifest given and general.source_directory is not set")
	}
	filter, err := matcher.NewFilter(f.cfg.Ingestion.Exclude, true)
	if err != nil {
		return nil, errors.NewConfigError("ingestion", "invalid exclude pattern", err)
	}
	return manifest.NewLoader(f.fs, manifest.WithFilter(filter)).Load(ctx, source)
}

// overseer builds the lookup service, applying configured overrides of the
// catalogue's feature switches.
func (f *foundry) overseer(ctx context.Context, client catalogue.Client) (*overseer.Overseer, catalogue.Introspection, error) {
	intro, err := client.Introspect(ctx)
	if err != nil {
		return nil, catalogue.Introspection{}, errors.WrapResource("introspect", "catalogue", f.cfg.Connection.Hostname, err)
	}
	if p := f.cfg.Ingestion.ProjectsEnabled; p != nil {
		intro.ProjectsEnabled = *p
	}

	opts := []overseer.Option{overseer.WithIntrospection(intro)}
	if types := f.cfg.IdentifiedObjects(); types != nil {
		opts = append(opts, overseer.WithIdentifiedObjects(types...))
	}
	o, err := overseer.New(client, 0, opts...)
	if err != nil {
		return nil, catalogue.Introspection{}, err
	}
	return o, intro, nil
}

func (f *foundry) smelter(intro catalogue.Introspection) *smelter.Smelter {
	cfg := smelter.Config{
		DefaultSchema:      f.cfg.DefaultSchema.Map(),
		DefaultInstitution: f.cfg.General.DefaultInstitution,
		ProjectsEnabled:    intro.ProjectsEnabled,
		Location:           f.cfg.Location(),
	}
	if s := f.cfg.Storage; s != nil {
		cfg.StorageBox = s.Name
		cfg.StagingRoot = s.StagingRoot
	}
	return smelter.New(cfg, smelter.WithFs(f.fs))
}

func (f *foundry) conveyor(ctx context.Context) (*conveyor.Conveyor, error) {
	cfg := f.cfg.Storage.Config
	// replicas name their box by slug
	cfg.Name = smelter.Slugify(cfg.Name)
	box, err := storage.Open(ctx, cfg, storage.WithFs(f.fs), storage.WithHTTPClient(f.http))
	if err != nil {
		return nil, err
	}
	return conveyor.New(box, f.fs, f.cfg.Storage.StagingRoot,
		conveyor.WithObserver(func(o conveyor.Outcome, n int64) {
			f.metrics.ObserveTransfer(string(o), n)
		}),
	), nil
}

// Report is the outcome of validating a manifest.
type Report struct {
	Valid    map[records.ObjectType]int
	Invalid  []Invalid
	Excluded []string
}

// Invalid names a record that failed normalization.
type Invalid struct {
	Type   records.ObjectType
	Name   string
	Source string
	Err    error
}

// OK reports whether every record normalized.
func (r *Report) OK() bool {
	return len(r.Invalid) == 0
}

// Validate implements Foundry. Records are normalized only; references are
// not resolved, so the catalogue is never contacted.
func (f *foundry) Validate(ctx context.Context, source string) (*Report, error) {
	m, err := f.load(ctx, source)
	if err != nil {
		return nil, err
	}

	projectsEnabled := true
	if p := f.cfg.Ingestion.ProjectsEnabled; p != nil {
		projectsEnabled = *p
	}
	s := f.smelter(catalogue.Introspection{ProjectsEnabled: projectsEnabled})

	report := &Report{Valid: map[records.ObjectType]int{}, Excluded: m.Excluded}
	for _, t := range records.IngestionOrder {
		for _, raw := range m.Records(t) {
			if _, err := s.Smelt(ctx, raw); err != nil {
				report.Invalid = append(report.Invalid, Invalid{Type: t, Name: raw.Name(), Source: raw.Source, Err: err})
				continue
			}
			report.Valid[t]++
		}
	}
	logging.FromContext(ctx).Info().
		Int("invalid", len(report.Invalid)).
		Int("excluded", len(report.Excluded)).
		Msg("Manifest validated")
	return report, nil
}

// AssignRAiDs implements Foundry.
func (f *foundry) AssignRAiDs(ctx context.Context, source, dest string) (Assignment, error) {
	minter, err := f.raidMinter()
	if err != nil {
		return Assignment{}, err
	}
	m, err := f.load(ctx, source)
	if err != nil {
		return Assignment{}, err
	}
	store, err := idstore.Open(f.fs, f.cfg.RAiD.Store)
	if err != nil {
		return Assignment{}, err
	}

	a := raid.NewAssigner(minter, store,
		raid.WithContentPath(f.cfg.RAiD.ContentPath),
		raid.WithNamePrefix(f.cfg.RAiD.NamePrefix),
	)
	res, err := a.Assign(ctx, m)
	if err != nil {
		return res, err
	}
	if dest == "" {
		return res, nil
	}
	if err := manifest.NewLoader(f.fs).Save(m, dest); err != nil {
		return res, err
	}
	return res, nil
}
