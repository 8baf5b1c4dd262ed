package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agentstation/foundry"
	"github.com/agentstation/foundry/internal/appcontext"
	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/internal/catalogue/memory"
	"github.com/agentstation/foundry/pkg/records"
)

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	logger := zerolog.Nop()
	app, err := New("1.0.0", "abc123", "2025-01-01", "test",
		append([]Option{WithConfig(&Config{}), WithLogger(&logger)}, opts...)...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return app
}

func TestApp_New(t *testing.T) {
	app := newTestApp(t)

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2025-01-01" {
		t.Errorf("Date() = %s, want 2025-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
}

func TestApp_FoundrySingleton(t *testing.T) {
	app := newTestApp(t, WithFoundry(&appcontext.MockFoundry{}))

	var wg sync.WaitGroup
	got := make([]foundry.Foundry, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := app.Foundry()
			if err != nil {
				t.Errorf("Foundry() failed: %v", err)
			}
			got[i] = f
		}(i)
	}
	wg.Wait()

	for _, f := range got[1:] {
		if f != got[0] {
			t.Fatal("Foundry() returned different instances")
		}
	}
}

func TestApp_FoundryMissingConfig(t *testing.T) {
	app := newTestApp(t)
	app.config.ConfigFile = filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := app.Foundry(); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

const testConfigYAML = `general:
  default_institution: Inst
auth:
  username: ingest
  api_key: secret
connection:
  hostname: https://catalogue.example.org
default_schema:
  project: http://x/project
  experiment: http://x/experiment
  dataset: http://x/dataset
  datafile: http://x/datafile
ingestion:
  result_path: %s
`

const testManifestYAML = `projects:
  - name: Proj-A
    description: D1
    principal_investigator: abc123
`

func TestApp_ExecuteIngest(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "foundry.yaml")
	manifestPath := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(cfgPath, []byte(fmt.Sprintf(testConfigYAML, filepath.Join(dir, "result.json"))), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(manifestPath, []byte(testManifestYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cat := memory.New()
	cat.Add(records.TypeInstitution, catalogue.Object{"name": "Inst"})
	app := newTestApp(t, WithFoundryOptions(foundry.WithCatalogue(cat)))

	root := app.createRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ingest", manifestPath, "--config", cfgPath, "-o", "json", "--no-transfer", "-q"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if !strings.Contains(out.String(), "Proj-A") {
		t.Errorf("output does not list the project: %s", out.String())
	}
	if n := len(cat.CallsFor("POST", records.TypeProject)); n != 1 {
		t.Errorf("project POSTs = %d, want 1", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "result.json")); err != nil {
		t.Errorf("result file not written: %v", err)
	}
}

func TestApp_InvalidFormat(t *testing.T) {
	app := newTestApp(t, WithFoundry(&appcontext.MockFoundry{}))
	if err := app.Execute(context.Background(), []string{"introspect", "-o", "xml"}); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestApp_VersionCommand(t *testing.T) {
	app := newTestApp(t)
	root := app.createRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "foundry 1.0.0") {
		t.Errorf("version output = %q", out.String())
	}
}
