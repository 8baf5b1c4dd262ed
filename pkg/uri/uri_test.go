package uri_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/uri"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uri.URI
		wantErr bool
	}{
		{name: "project", input: "/api/v1/project/12/", want: uri.New("project", 12)},
		{name: "parameter set", input: "/api/v1/datasetparameterset/3/", want: uri.New("datasetparameterset", 3)},
		{name: "missing prefix", input: "/api/v2/project/1/", wantErr: true},
		{name: "missing trailing slash", input: "/api/v1/project/1", wantErr: true},
		{name: "non numeric id", input: "/api/v1/project/abc/", wantErr: true},
		{name: "negative id", input: "/api/v1/project/-1/", wantErr: true},
		{name: "missing id", input: "/api/v1/project/", wantErr: true},
		{name: "extra segment", input: "/api/v1/project/1/2/", wantErr: true},
		{name: "bad type", input: "/api/v1/Pro-ject/1/", wantErr: true},
		{name: "plain name", input: "Proj-A", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := uri.Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrMalformedURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestIsURI(t *testing.T) {
	assert.True(t, uri.IsURI("/api/v1/experiment/4/", "experiment"))
	assert.False(t, uri.IsURI("/api/v1/experiment/4/", "project"))
	assert.False(t, uri.IsURI("experiment 4", "experiment"))
}

func TestFromLocation(t *testing.T) {
	got, err := uri.FromLocation("https://catalogue.example.org/api/v1/dataset/99/")
	require.NoError(t, err)
	assert.Equal(t, uri.New("dataset", 99), got)

	_, err = uri.FromLocation("")
	assert.Error(t, err)
}

func TestJSON(t *testing.T) {
	type payload struct {
		Project  uri.URI   `json:"project"`
		Projects []uri.URI `json:"projects"`
	}
	in := payload{Project: uri.New("project", 1), Projects: []uri.URI{uri.New("project", 2)}}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"project":"/api/v1/project/1/","projects":["/api/v1/project/2/"]}`, string(data))

	var out payload
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestZero(t *testing.T) {
	var u uri.URI
	assert.True(t, u.IsZero())
	assert.Equal(t, "", u.String())
}
