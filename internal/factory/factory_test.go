package factory

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/internal/catalogue/memory"
	"github.com/agentstation/foundry/internal/conveyor"
	"github.com/agentstation/foundry/internal/crucible"
	"github.com/agentstation/foundry/internal/forge"
	"github.com/agentstation/foundry/internal/manifest"
	"github.com/agentstation/foundry/internal/metrics"
	"github.com/agentstation/foundry/internal/overseer"
	"github.com/agentstation/foundry/internal/smelter"
	"github.com/agentstation/foundry/internal/storage"
	"github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

type fixture struct {
	cat *memory.Catalogue
	fs  afero.Fs
}

func newFixture(t *testing.T, opts ...memory.Option) *fixture {
	t.Helper()
	cat := memory.New(append([]memory.Option{memory.WithoutResponseBody(records.TypeDatafile)}, opts...)...)
	cat.Add(records.TypeInstitution, catalogue.Object{"name": "Inst"})
	cat.Add(records.TypeInstrument, catalogue.Object{"name": "Scope"})

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/staging/run1/a.dat", []byte("0123456789"), 0o644))
	return &fixture{cat: cat, fs: fs}
}

func (fx *fixture) factory(t *testing.T, opts ...Option) *Factory {
	t.Helper()
	intro, err := fx.cat.Introspect(context.Background())
	require.NoError(t, err)

	s := smelter.New(smelter.Config{
		DefaultSchema: map[records.ObjectType]string{
			records.TypeProject:    "http://x/project",
			records.TypeExperiment: "http://x/experiment",
			records.TypeDataset:    "http://x/dataset",
			records.TypeDatafile:   "http://x/datafile",
		},
		StorageBox:      "vault",
		StagingRoot:     "/staging",
		ProjectsEnabled: intro.ProjectsEnabled,
	}, smelter.WithFs(fx.fs))

	o, err := overseer.New(fx.cat, 0)
	require.NoError(t, err)

	options := ingest.Defaults().Apply(ingest.WithResultPath("/out/result.json"))
	return New(s, crucible.New(o), forge.New(fx.cat),
		append([]Option{WithFs(fx.fs), WithOptions(options)}, opts...)...)
}

func projectRaw() records.Raw {
	return records.NewRaw(records.TypeProject, map[string]any{
		"name":                   "Proj-A",
		"description":            "D1",
		"principal_investigator": "abc123",
		"institution":            "Inst",
	})
}

func hierarchy() *manifest.Manifest {
	m := manifest.New("/staging")
	m.Projects = append(m.Projects, projectRaw())
	m.Experiments = append(m.Experiments, records.NewRaw(records.TypeExperiment, map[string]any{
		"title":       "Exp-1",
		"description": "E",
		"projects":    "Proj-A",
	}))
	m.Datasets = append(m.Datasets, records.NewRaw(records.TypeDataset, map[string]any{
		"description": "DS-1",
		"experiments": "Exp-1",
		"instrument":  "Scope",
	}))
	m.Datafiles = append(m.Datafiles, records.NewRaw(records.TypeDatafile, map[string]any{
		"dataset":   "DS-1",
		"file_path": "/staging/run1/a.dat",
	}))
	return m
}

func TestIngest_ProjectOnly(t *testing.T) {
	fx := newFixture(t)
	m := manifest.New("")
	m.Projects = append(m.Projects, projectRaw())

	res, err := fx.factory(t).Ingest(context.Background(), m)
	require.NoError(t, err)

	pr := res.For(records.TypeProject)
	require.Len(t, pr.Success, 1)
	assert.Equal(t, "Proj-A", pr.Success[0].Name)
	assert.Equal(t, uri.New("project", 3), pr.Success[0].URI)
	assert.Equal(t, "/api/v1/project/3/", pr.Success[0].URI.String())

	assert.Len(t, fx.cat.CallsFor("POST", records.TypeProject), 1)
	assert.Empty(t, fx.cat.CallsFor("POST", records.TypeProject.ParameterSetType()))
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.HasFailures())
}

func TestIngest_HierarchyIsIdempotent(t *testing.T) {
	fx := newFixture(t)

	first, err := fx.factory(t).Ingest(context.Background(), hierarchy())
	require.NoError(t, err)
	for _, typ := range records.IngestionOrder {
		assert.Equal(t, 1, first.For(typ).Counts().Success, typ.String())
	}
	df := first.For(records.TypeDatafile).Success
	require.Len(t, df, 1)
	assert.Equal(t, "run1/a.dat", df[0].Name)
	assert.True(t, df[0].URI.IsZero())
	writes := len(fx.cat.Calls())

	second, err := fx.factory(t).Ingest(context.Background(), hierarchy())
	require.NoError(t, err)
	for _, typ := range records.IngestionOrder {
		c := second.For(typ).Counts()
		assert.Equal(t, 0, c.Success, typ.String())
		assert.Equal(t, 1, c.Skipped, typ.String())
	}
	assert.Len(t, fx.cat.Calls(), writes)
}

func TestIngest_CascadeBlocking(t *testing.T) {
	fx := newFixture(t)
	fx.cat.Add(records.TypeProject, catalogue.Object{
		"name":                   "Proj-A",
		"description":            "something else",
		"principal_investigator": "abc123",
	})

	res, err := fx.factory(t).Ingest(context.Background(), hierarchy())
	require.NoError(t, err)

	assert.Equal(t, []string{"Proj-A"}, res.For(records.TypeProject).Blocked)
	assert.Equal(t, []string{"Exp-1"}, res.For(records.TypeExperiment).Blocked)
	assert.Equal(t, []string{"DS-1"}, res.For(records.TypeDataset).Blocked)
	assert.Len(t, res.For(records.TypeDatafile).Blocked, 1)
	assert.Empty(t, fx.cat.Calls())
	assert.Equal(t, 4, res.Totals().Blocked)
}

func TestIngest_AmbiguousParentReference(t *testing.T) {
	fx := newFixture(t)
	fx.cat.Add(records.TypeInstrument, catalogue.Object{"name": "Scope2"})
	m := hierarchy()
	m.Datasets = append(m.Datasets, records.NewRaw(records.TypeDataset, map[string]any{
		"description": "DS-1",
		"experiments": "Exp-1",
		"instrument":  "Scope2",
	}))

	res, err := fx.factory(t).Ingest(context.Background(), m)
	require.NoError(t, err)

	assert.Len(t, res.For(records.TypeDataset).Success, 2)
	df := res.For(records.TypeDatafile)
	assert.Empty(t, df.Success)
	assert.Empty(t, df.Blocked)
	assert.Len(t, df.Error, 1)
	assert.Empty(t, fx.cat.CallsFor("POST", records.TypeDatafile))
	assert.True(t, res.HasFailures())
}

func TestIngest_DatafileParametersRecordOwner(t *testing.T) {
	fx := newFixture(t)
	m := hierarchy()
	m.Datafiles[0].Fields["exposure"] = "10"

	res, err := fx.factory(t).Ingest(context.Background(), m)
	require.NoError(t, err)

	df := res.For(records.TypeDatafile).Success
	require.Len(t, df, 1)
	require.False(t, df[0].URI.IsZero())
	assert.Equal(t, records.TypeDatafile.String(), df[0].URI.Type)

	stored, err := fx.cat.Get(context.Background(), records.TypeDatafile, nil)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	u, ok := stored[0].ResourceURI()
	require.True(t, ok)
	assert.Equal(t, u, df[0].URI)
	assert.Len(t, fx.cat.CallsFor("POST", records.TypeDatafile.ParameterSetType()), 1)
}

func TestIngest_LogFieldsNotRepeated(t *testing.T) {
	fx := newFixture(t)
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	_, err := fx.factory(t).Ingest(ctx, hierarchy())
	require.NoError(t, err)

	lines := tl.Lines()
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.LessOrEqual(t, strings.Count(line, `"object_type":`), 1, line)
		assert.LessOrEqual(t, strings.Count(line, `"name":`), 1, line)
	}
}

func TestIngest_SmeltErrorIsRecorded(t *testing.T) {
	fx := newFixture(t)
	m := manifest.New("")
	bad := projectRaw()
	delete(bad.Fields, "description")
	m.Projects = append(m.Projects, bad)

	res, err := fx.factory(t).Ingest(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []string{"Proj-A"}, res.For(records.TypeProject).Error)
	assert.True(t, res.HasFailures())
	assert.Empty(t, fx.cat.Calls())
}

func TestIngest_ProjectsDisabled(t *testing.T) {
	fx := newFixture(t, memory.WithIntrospection(catalogue.Introspection{ProjectsEnabled: false}))
	m := manifest.New("")
	m.Projects = append(m.Projects, projectRaw())
	m.Experiments = append(m.Experiments, records.NewRaw(records.TypeExperiment, map[string]any{
		"title":       "Exp-1",
		"description": "E",
	}))

	res, err := fx.factory(t).Ingest(context.Background(), m)
	require.NoError(t, err)
	assert.Zero(t, res.For(records.TypeProject).Counts().Total())
	assert.Equal(t, 1, res.For(records.TypeExperiment).Counts().Success)
	assert.Empty(t, fx.cat.CallsFor("POST", records.TypeProject))
}

func TestIngest_WritesResult(t *testing.T) {
	fx := newFixture(t)
	m := manifest.New("")
	m.Projects = append(m.Projects, projectRaw())

	_, err := fx.factory(t).Ingest(context.Background(), m)
	require.NoError(t, err)

	data, err := afero.ReadFile(fx.fs, "/out/result.json")
	require.NoError(t, err)
	var dump map[string]any
	require.NoError(t, json.Unmarshal(data, &dump))
	assert.Contains(t, dump, "projects")
	assert.Contains(t, dump, "datafiles")
}

func TestIngest_TransfersDatafiles(t *testing.T) {
	fx := newFixture(t)
	box, err := storage.NewFileSystem("vault", fx.fs, "/vault")
	require.NoError(t, err)
	m := metrics.New()

	res, err := fx.factory(t,
		WithConveyor(conveyor.New(box, fx.fs, "/staging")),
		WithMetrics(m),
	).Ingest(context.Background(), hierarchy())
	require.NoError(t, err)

	require.NotNil(t, res.Transfer)
	assert.Equal(t, 1, res.Transfer.Transferred)
	assert.Equal(t, int64(10), res.Transfer.Bytes)

	data, err := afero.ReadFile(fx.fs, "/vault/run1/a.dat")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestIngest_DryRunSkipsTransfer(t *testing.T) {
	fx := newFixture(t)
	box, err := storage.NewFileSystem("vault", fx.fs, "/vault")
	require.NoError(t, err)

	intro, err := fx.cat.Introspect(context.Background())
	require.NoError(t, err)
	dry := memory.NewDryRun(fx.cat)
	o, err := overseer.New(dry, 0, overseer.WithIntrospection(intro))
	require.NoError(t, err)
	s := smelter.New(smelter.Config{
		DefaultSchema: map[records.ObjectType]string{
			records.TypeProject:    "http://x/project",
			records.TypeExperiment: "http://x/experiment",
			records.TypeDataset:    "http://x/dataset",
			records.TypeDatafile:   "http://x/datafile",
		},
		StorageBox:      "vault",
		StagingRoot:     "/staging",
		ProjectsEnabled: true,
	}, smelter.WithFs(fx.fs))
	f := New(s, crucible.New(o), forge.New(dry),
		WithFs(fx.fs),
		WithConveyor(conveyor.New(box, fx.fs, "/staging")),
		WithOptions(ingest.Defaults().Apply(ingest.WithDryRun(true), ingest.WithResultPath(""))),
	)

	res, err := f.Ingest(context.Background(), hierarchy())
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	for _, typ := range records.IngestionOrder {
		assert.Equal(t, 1, res.For(typ).Counts().Success, typ.String())
	}
	assert.Nil(t, res.Transfer)
	assert.Empty(t, fx.cat.Calls())
	assert.NotEmpty(t, dry.Writes())

	exists, err := afero.Exists(fx.fs, "/vault/run1/a.dat")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIngest_Cancelled(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.factory(t).Ingest(ctx, hierarchy())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngest_InvalidOptions(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.factory(t, WithOptions(&ingest.Options{Concurrency: 0})).Ingest(context.Background(), hierarchy())
	assert.Error(t, err)
}

func TestIngest_Observer(t *testing.T) {
	fx := newFixture(t)
	var events []Event
	f := fx.factory(t, WithObserver(func(e Event) { events = append(events, e) }))

	_, err := f.Ingest(context.Background(), hierarchy())
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, Created, events[0].Outcome)
	assert.Equal(t, records.TypeProject, events[0].Type)
	assert.Equal(t, "/api/v1/project/3/", events[0].URI.String())
	assert.Equal(t, records.TypeDatafile, events[3].Type)
}
