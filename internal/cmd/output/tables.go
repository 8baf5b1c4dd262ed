package output

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/agentstation/foundry"
	"github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/records"
)

// ResultTable summarizes a run with one row per object type. The wide
// form lists every object instead.
func ResultTable(r *ingest.Result, wide bool) Data {
	if wide {
		return resultObjects(r)
	}
	d := Data{
		Headers:         []string{"type", "created", "updated", "skipped", "blocked", "errors", "elapsed"},
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight},
	}
	for _, t := range records.IngestionOrder {
		tr := r.For(t)
		c := tr.Counts()
		d.Rows = append(d.Rows, []string{
			t.String(),
			strconv.Itoa(c.Success),
			strconv.Itoa(c.Updated),
			strconv.Itoa(c.Skipped),
			strconv.Itoa(c.Blocked),
			strconv.Itoa(c.Error),
			tr.Duration.Round(1e6).String(),
		})
	}
	if r.Transfer != nil {
		d.Rows = append(d.Rows, []string{
			"transfer",
			strconv.Itoa(r.Transfer.Transferred),
			"",
			strconv.Itoa(r.Transfer.Skipped),
			"",
			strconv.Itoa(len(r.Transfer.Failed)),
			humanize.Bytes(uint64(max(r.Transfer.Bytes, 0))),
		})
	}
	return d
}

func resultObjects(r *ingest.Result) Data {
	d := Data{Headers: []string{"type", "name", "outcome", "uri"}}
	for _, t := range records.IngestionOrder {
		tr := r.For(t)
		add := func(outcome string, entries []ingest.Entry) {
			for _, e := range entries {
				d.Rows = append(d.Rows, []string{t.String(), e.Name, outcome, e.URI.String()})
			}
		}
		add("created", tr.Success)
		add("updated", tr.Updated)
		add("skipped", tr.Skipped)
		for _, name := range tr.Blocked {
			d.Rows = append(d.Rows, []string{t.String(), name, "blocked", ""})
		}
		for _, name := range tr.Error {
			d.Rows = append(d.Rows, []string{t.String(), name, "error", ""})
		}
	}
	return d
}

// ReportTable lists the records that failed validation.
func ReportTable(r *foundry.Report) Data {
	d := Data{Headers: []string{"type", "name", "source", "error"}}
	for _, inv := range r.Invalid {
		d.Rows = append(d.Rows, []string{inv.Type.String(), inv.Name, inv.Source, inv.Err.Error()})
	}
	return d
}

// IntrospectionTable shows the catalogue's feature switches.
func IntrospectionTable(i foundry.Introspection) Data {
	list := func(s []string) string {
		s = append([]string(nil), s...)
		sort.Strings(s)
		return strings.Join(s, ", ")
	}
	return Data{
		Headers: []string{"setting", "value"},
		Rows: [][]string{
			{"projects_enabled", strconv.FormatBool(i.ProjectsEnabled)},
			{"experiment_only_acls", strconv.FormatBool(i.ExperimentOnlyACLs)},
			{"identifiers_enabled", strconv.FormatBool(i.IdentifiersEnabled)},
			{"identified_objects", list(i.IdentifiedObjects)},
			{"profiles_enabled", strconv.FormatBool(i.ProfilesEnabled)},
			{"profiled_objects", list(i.ProfiledObjects)},
		},
	}
}
