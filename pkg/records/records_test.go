package records

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry/pkg/uri"
)

func TestObjectTypeRelations(t *testing.T) {
	assert.Equal(t, TypeProject, TypeExperiment.ParentType())
	assert.Equal(t, TypeExperiment, TypeDataset.ParentType())
	assert.Equal(t, TypeDataset, TypeDatafile.ParentType())
	assert.Empty(t, TypeProject.ParentType())

	assert.Equal(t, ObjectType("datasetparameterset"), TypeDataset.ParameterSetType())
	assert.Equal(t, "title", TypeExperiment.MatchField())
	assert.Equal(t, []string{"name", "description", "principal_investigator"}, TypeProject.ComparisonKeys())
	assert.Equal(t, []string{"filename", "size", "md5sum"}, TypeDatafile.ComparisonKeys())
}

func TestParseObjectType(t *testing.T) {
	got, err := ParseObjectType(" Dataset ")
	require.NoError(t, err)
	assert.Equal(t, TypeDataset, got)

	_, err = ParseObjectType("instrument")
	assert.Error(t, err)
}

func TestRawAccessors(t *testing.T) {
	raw := NewRaw(TypeProject, map[string]any{
		"name":        "Proj-A",
		"institution": []any{"Inst", ""},
		"locked":      "true",
		"size":        float64(1024),
		"empty":       "",
	})

	assert.Equal(t, "Proj-A", raw.Name())
	assert.Equal(t, []string{"Inst"}, raw.Strings("institution"))
	locked, ok := raw.Bool("locked")
	assert.True(t, ok)
	assert.True(t, locked)
	size, ok := raw.String("size")
	assert.True(t, ok)
	assert.Equal(t, "1024", size)
	assert.False(t, raw.Has("empty"))
	assert.Equal(t, "<unnamed dataset>", NewRaw(TypeDataset, nil).Name())
}

func TestProjectPayload(t *testing.T) {
	p := &Project{
		ProjectFields: ProjectFields{
			Name:                  "Proj-A",
			Description:           "D1",
			PrincipalInvestigator: "abc123",
			Access: Access{
				Users: []UserACL{{User: "abc123", IsOwner: true, CanDownload: true, SeeSensitive: true}},
			},
		},
		Institutions: []uri.URI{uri.New("institution", 1)},
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Proj-A",
		"description": "D1",
		"principal_investigator": "abc123",
		"institution": ["/api/v1/institution/1/"],
		"users": [{"user": "abc123", "is_owner": true, "can_download": true, "see_sensitive": true}]
	}`, string(data))
}

func TestDatafileLookup(t *testing.T) {
	f := &Datafile{
		DatafileFields: DatafileFields{Filename: "a.tif", Directory: "raw", Size: 10, MD5Sum: "d41d8cd98f00b204e9800998ecf8427e"},
		Dataset:        uri.New("dataset", 7),
	}
	lookup := f.Lookup()
	assert.Equal(t, "raw/a.tif", lookup.Key)
	assert.Equal(t, map[string]string{"filename": "a.tif", "directory": "raw", "dataset": "7"}, lookup.Query)
	assert.Empty(t, lookup.Identifiers)
}

func TestDatasetLookupIncludesInstrument(t *testing.T) {
	d := &Dataset{
		DatasetFields: DatasetFields{Description: "scan 1", Identifiers: []string{"ds-1", "ds-1", ""}},
		Instrument:    uri.New("instrument", 3),
	}
	lookup := d.Lookup()
	assert.Equal(t, "3", lookup.Query["instrument"])
	assert.Equal(t, []string{"ds-1"}, lookup.Identifiers)
}

func TestParameterSetLen(t *testing.T) {
	var ps *ParameterSet
	assert.Equal(t, 0, ps.Len())
	assert.Equal(t, 1, (&ParameterSet{Parameters: []Parameter{{Name: "k", Value: 1}}}).Len())
}

func TestParseDataClassification(t *testing.T) {
	c, err := ParseDataClassification("Sensitive")
	require.NoError(t, err)
	assert.Equal(t, ClassificationSensitive, c)
	_, err = ParseDataClassification("secret")
	assert.Error(t, err)
}
