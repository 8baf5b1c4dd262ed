package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

func TestCatalogue_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	c := New()

	resp, err := c.Create(ctx, records.TypeProject, map[string]any{"name": "Proj-A", "description": "D1"})
	require.NoError(t, err)
	u, ok := resp.URI()
	require.True(t, ok)
	assert.Equal(t, uri.New("project", 1), u)

	objs, err := c.Get(ctx, records.TypeProject, catalogue.Query{"name": "Proj-A"})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "D1", objs[0]["description"])

	objs, err = c.Get(ctx, records.TypeProject, catalogue.Query{"name": "Proj-B"})
	require.NoError(t, err)
	assert.Empty(t, objs)

	assert.Len(t, c.CallsFor("POST", records.TypeProject), 1)
	assert.Equal(t, 2, c.Reads())
}

func TestMatches(t *testing.T) {
	obj := catalogue.Object{
		"filename":    "a.tif",
		"size":        float64(1024),
		"dataset":     "/api/v1/dataset/7/",
		"experiments": []any{"/api/v1/experiment/2/", "/api/v1/experiment/3/"},
		"identifiers": []any{"raid-1", "alt-1"},
	}

	tests := []struct {
		name  string
		query catalogue.Query
		want  bool
	}{
		{"empty", nil, true},
		{"string", catalogue.Query{"filename": "a.tif"}, true},
		{"number", catalogue.Query{"size": "1024"}, true},
		{"uri by id", catalogue.Query{"dataset": "7"}, true},
		{"uri by id mismatch", catalogue.Query{"dataset": "8"}, false},
		{"list membership", catalogue.Query{"experiments": "3"}, true},
		{"identifier", catalogue.Query{"identifier": "alt-1"}, true},
		{"identifier missing", catalogue.Query{"identifier": "raid-2"}, false},
		{"pagination ignored", catalogue.Query{"limit": "10", "offset": "0"}, true},
		{"absent field", catalogue.Query{"directory": "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(obj, tt.query))
		})
	}
}

func TestCatalogue_Update(t *testing.T) {
	ctx := context.Background()
	c := New()
	u := c.Add(records.TypeExperiment, catalogue.Object{"title": "E", "description": "old"})

	resp, err := c.Update(ctx, u, map[string]any{"description": "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", resp.Object["description"])
	assert.Equal(t, "E", resp.Object["title"])

	_, err = c.Update(ctx, uri.New("experiment", 99), map[string]any{})
	assert.True(t, errors.IsNotFound(err))
}

func TestCatalogue_WithoutResponseBody(t *testing.T) {
	c := New(WithoutResponseBody(records.TypeProject.ParameterSetType()))
	resp, err := c.Create(context.Background(), records.TypeProject.ParameterSetType(), map[string]any{"schema": "s"})
	require.NoError(t, err)
	_, ok := resp.URI()
	assert.False(t, ok)
}

func TestDryRun(t *testing.T) {
	ctx := context.Background()
	remote := New()
	existing := remote.Add(records.TypeProject, catalogue.Object{"name": "Existing"})

	d := NewDryRun(remote)

	resp, err := d.Create(ctx, records.TypeProject, map[string]any{"name": "New"})
	require.NoError(t, err)
	created, ok := resp.URI()
	require.True(t, ok)
	assert.GreaterOrEqual(t, created.ID, dryRunStartID)

	objs, err := d.Get(ctx, records.TypeProject, nil)
	require.NoError(t, err)
	assert.Len(t, objs, 2)

	_, err = d.Update(ctx, existing, map[string]any{"name": "Renamed"})
	require.NoError(t, err)

	assert.Empty(t, remote.Calls(), "remote catalogue must not be written")
	assert.Len(t, d.Writes(), 2)

	remoteObjs := remote.Objects(records.TypeProject)
	require.Len(t, remoteObjs, 1)
	assert.Equal(t, "Existing", remoteObjs[0]["name"])
}
