package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry"
	"github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"table", "JSON", "yaml", "wide", ""} {
		_, err := ParseFormat(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(FormatTable).Format(&buf, Data{
		Headers: []string{"object_type", "count"},
		Rows:    [][]string{{"project", "2"}},
	})
	require.NoError(t, err)
	assert.Contains(t, strings.ToUpper(buf.String()), "OBJECT TYPE")
	assert.Contains(t, buf.String(), "project")
}

func TestTableFormatter_FallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, buf.String())
}

func TestYAMLFormatter(t *testing.T) {
	r := ingest.NewResult("run-1", false)
	r.For(records.TypeProject).AddSuccess("Proj-A", uri.New("project", 3))

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, r))
	assert.Contains(t, buf.String(), "run_id: run-1")
	assert.Contains(t, buf.String(), "/api/v1/project/3/")
}

func TestResultTable(t *testing.T) {
	r := ingest.NewResult("run-1", false)
	r.For(records.TypeProject).AddSuccess("Proj-A", uri.New("project", 3))
	r.For(records.TypeExperiment).AddBlocked("Exp-1")
	r.Transfer = &ingest.TransferResult{Transferred: 1, Bytes: 2048}

	d := ResultTable(r, false)
	require.Len(t, d.Rows, 5)
	assert.Equal(t, []string{"project", "1", "0", "0", "0", "0"}, d.Rows[0][:6])
	assert.Equal(t, "1", d.Rows[1][4])
	assert.Equal(t, "transfer", d.Rows[4][0])
	assert.Equal(t, "2.0 kB", d.Rows[4][6])

	wide := ResultTable(r, true)
	require.Len(t, wide.Rows, 2)
	assert.Equal(t, []string{"project", "Proj-A", "created", "/api/v1/project/3/"}, wide.Rows[0])
	assert.Equal(t, []string{"experiment", "Exp-1", "blocked", ""}, wide.Rows[1])
}

func TestReportTable(t *testing.T) {
	d := ReportTable(&foundry.Report{Invalid: []foundry.Invalid{{
		Type: records.TypeDataset, Name: "DS-1", Source: "m.yaml#datasets[0]", Err: errors.New("no schema"),
	}}})
	assert.Equal(t, [][]string{{"dataset", "DS-1", "m.yaml#datasets[0]", "no schema"}}, d.Rows)
}

func TestIntrospectionTable(t *testing.T) {
	d := IntrospectionTable(foundry.Introspection{ProjectsEnabled: true, IdentifiedObjects: []string{"project", "dataset"}})
	assert.Equal(t, []string{"projects_enabled", "true"}, d.Rows[0])
	assert.Equal(t, []string{"identified_objects", "dataset, project"}, d.Rows[3])
}
