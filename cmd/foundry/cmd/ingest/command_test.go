package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry"
	"github.com/agentstation/foundry/internal/appcontext"
	pkgingest "github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

func run(t *testing.T, f *appcontext.MockFoundry, format string, args ...string) (string, error) {
	t.Helper()
	app := &appcontext.Mock{
		FoundryFunc: func() (foundry.Foundry, error) { return f, nil },
		Format:      format,
	}
	cmd := NewCommand(app)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngest_PassesOptions(t *testing.T) {
	var (
		source string
		got    *pkgingest.Options
	)
	f := &appcontext.MockFoundry{
		IngestFunc: func(_ context.Context, src string, opts ...pkgingest.Option) (*pkgingest.Result, error) {
			source = src
			got = pkgingest.Defaults().Apply(opts...)
			return pkgingest.NewResult("run", got.DryRun), nil
		},
	}

	_, err := run(t, f, "json", "manifest.yaml",
		"--dry-run", "--overwrite", "--concurrency", "4", "--timeout", "1m",
		"--types", "project,experiment", "--no-transfer", "--result", "out.json")
	require.NoError(t, err)

	assert.Equal(t, "manifest.yaml", source)
	assert.True(t, got.DryRun)
	assert.True(t, got.Overwrite)
	assert.Equal(t, 4, got.Concurrency)
	assert.Equal(t, time.Minute, got.Timeout)
	assert.Equal(t, []records.ObjectType{records.TypeProject, records.TypeExperiment}, got.Types)
	assert.False(t, got.Transfer)
	assert.Equal(t, "out.json", got.ResultPath)
}

func TestIngest_DefaultsUntouched(t *testing.T) {
	var opts []pkgingest.Option
	f := &appcontext.MockFoundry{
		IngestFunc: func(_ context.Context, _ string, o ...pkgingest.Option) (*pkgingest.Result, error) {
			opts = o
			return pkgingest.NewResult("run", false), nil
		},
	}
	_, err := run(t, f, "json")
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestIngest_UnknownType(t *testing.T) {
	_, err := run(t, &appcontext.MockFoundry{}, "json", "m.yaml", "--types", "instrument,bogus")
	assert.Error(t, err)
}

func TestIngest_JSONOutput(t *testing.T) {
	f := &appcontext.MockFoundry{
		IngestFunc: func(context.Context, string, ...pkgingest.Option) (*pkgingest.Result, error) {
			r := pkgingest.NewResult("run-7", false)
			r.For(records.TypeProject).AddSuccess("Proj-A", uri.New("project", 3))
			r.Finish()
			return r, nil
		},
	}
	out, err := run(t, f, "json", "m.yaml")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, out, "/api/v1/project/3/")
}

func TestIngest_TableOutput(t *testing.T) {
	f := &appcontext.MockFoundry{
		IngestFunc: func(context.Context, string, ...pkgingest.Option) (*pkgingest.Result, error) {
			r := pkgingest.NewResult("run", false)
			r.For(records.TypeDataset).AddSkipped("DS-1", uri.New("dataset", 5))
			return r, nil
		},
	}
	out, err := run(t, f, "wide", "m.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "DS-1")
	assert.Contains(t, out, "/api/v1/dataset/5/")
}

func TestIngest_FailuresExitNonZero(t *testing.T) {
	f := &appcontext.MockFoundry{
		IngestFunc: func(context.Context, string, ...pkgingest.Option) (*pkgingest.Result, error) {
			r := pkgingest.NewResult("run", false)
			r.For(records.TypeProject).AddBlocked("Proj-A")
			return r, nil
		},
	}
	out, err := run(t, f, "table", "m.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 blocked")
	assert.NotEmpty(t, out, "result is printed before failing")
}

func TestIngest_FoundryError(t *testing.T) {
	app := &appcontext.Mock{}
	cmd := NewCommand(app)
	cmd.SetArgs([]string{"m.yaml"})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
