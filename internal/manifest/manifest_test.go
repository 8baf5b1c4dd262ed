package manifest

import (
	"context"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry/internal/matcher"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
)

func osFixture(t *testing.T) afero.Fs {
	t.Helper()
	data, err := os.ReadFile("testdata/manifest.yaml")
	require.NoError(t, err)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/manifest.yaml", data, 0o644))
	return fs
}

func TestLoadYAML(t *testing.T) {
	fs := osFixture(t)
	m, err := NewLoader(fs).Load(context.Background(), "/in/manifest.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/staging", m.SourceRoot)
	require.Len(t, m.Projects, 1)
	assert.Len(t, m.Experiments, 1)
	assert.Len(t, m.Datasets, 1)
	assert.Len(t, m.Datafiles, 3)
	assert.Equal(t, 6, m.Len())

	p := m.Projects[0]
	assert.Equal(t, records.TypeProject, p.Type)
	assert.Equal(t, "Proj-A", p.Name())
	assert.Equal(t, "/in/manifest.yaml#projects[0]", p.Source)
	meta, ok := p.Fields["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ARC", meta["Funding Body"])

	assert.Equal(t, []string{"Proj-A"}, m.Experiments[0].Strings("projects"))
	size, _ := m.Datafiles[0].String("size")
	assert.Equal(t, "1024", size)
}

func TestLoadFiltersDatafiles(t *testing.T) {
	fs := osFixture(t)
	filter, err := matcher.NewFilter([]string{"*.tmp"}, true)
	require.NoError(t, err)

	m, err := NewLoader(fs, WithFilter(filter)).Load(context.Background(), "/in/manifest.yaml")
	require.NoError(t, err)
	require.Len(t, m.Datafiles, 1)
	p, _ := m.Datafiles[0].String("file_path")
	assert.Equal(t, "/staging/raw/scan01.tif", p)
	assert.Equal(t, []string{"/staging/raw/.DS_Store", "/staging/raw/notes.tmp"}, m.Excluded)
}

func TestLoadJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `{"source_data_root": "/s", "projects": [{"name": "P", "size": 3}], "datafiles": []}`
	require.NoError(t, afero.WriteFile(fs, "/m.json", []byte(doc), 0o644))

	m, err := NewLoader(fs).Load(context.Background(), "/m.json")
	require.NoError(t, err)
	require.Len(t, m.Projects, 1)
	assert.Empty(t, m.Datafiles)
	assert.Equal(t, float64(3), m.Projects[0].Fields["size"])
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := NewLoader(fs)
	ctx := context.Background()

	_, err := l.Load(ctx, "/missing.yaml")
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, afero.WriteFile(fs, "/m.txt", []byte("x"), 0o644))
	_, err = l.Load(ctx, "/m.txt")
	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)

	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte("{"), 0o644))
	_, err = l.Load(ctx, "/bad.json")
	assert.ErrorAs(t, err, &parseErr)
}

func TestSaveAndLoadDir(t *testing.T) {
	fs := osFixture(t)
	l := NewLoader(fs)
	ctx := context.Background()

	m, err := l.Load(ctx, "/in/manifest.yaml")
	require.NoError(t, err)

	// Enough datafiles that lexical order would put 10 before 2.
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Add(records.NewRaw(records.TypeDatafile, map[string]any{
			"file_path": "/staging/extra/" + string(rune('a'+i)) + ".dat",
		})))
	}
	require.NoError(t, l.Save(m, "/out"))
	require.NoError(t, afero.WriteFile(fs, "/out/datafiles/._13.json", []byte("junk"), 0o644))

	loaded, err := l.Load(ctx, "/out")
	require.NoError(t, err)
	assert.Equal(t, m.SourceRoot, loaded.SourceRoot)
	assert.Equal(t, m.Len(), loaded.Len())
	assert.Equal(t, "Proj-A", loaded.Projects[0].Name())

	last, _ := loaded.Datafiles[len(loaded.Datafiles)-1].String("file_path")
	assert.Equal(t, "/staging/extra/j.dat", last)
}

func TestAdd(t *testing.T) {
	m := New("/s")
	assert.Error(t, m.Add(records.NewRaw(records.TypeInstitution, nil)))
	require.NoError(t, m.Add(records.NewRaw(records.TypeDataset, nil)))
	assert.Len(t, m.Records(records.TypeDataset), 1)
	assert.Nil(t, m.Records(records.TypeSchema))
}
