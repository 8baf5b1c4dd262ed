package smelter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
)

// aliases maps the friendlier manifest key names onto catalogue field names.
var aliases = map[records.ObjectType]map[string]string{
	records.TypeProject: {
		"project_name":    "name",
		"lead_researcher": "principal_investigator",
		"project_id":      "persistent_id",
	},
	records.TypeExperiment: {
		"experiment_name": "title",
		"experiment_id":   "persistent_id",
		"project_id":      "projects",
	},
	records.TypeDataset: {
		"dataset_name":  "description",
		"experiment_id": "experiments",
		"dataset_id":    "persistent_id",
		"instrument_id": "instrument",
	},
	records.TypeDatafile: {
		"dataset_id": "dataset",
	},
}

// reader tracks which keys of a raw record were consumed as core fields.
// Whatever is left over becomes parameters.
type reader struct {
	raw  records.Raw
	used map[string]bool
}

func newReader(raw records.Raw) *reader {
	fields := make(map[string]any, len(raw.Fields))
	conv := aliases[raw.Type]
	for k, v := range raw.Fields {
		if to, ok := conv[k]; ok {
			if _, clash := raw.Fields[to]; !clash {
				k = to
			}
		}
		fields[k] = v
	}
	return &reader{
		raw:  records.Raw{Type: raw.Type, Fields: fields, Source: raw.Source},
		used: make(map[string]bool),
	}
}

func (r *reader) take(key string) (string, bool) {
	r.used[key] = true
	return r.raw.String(key)
}

func (r *reader) str(key string) string {
	s, _ := r.take(key)
	return strings.TrimSpace(s)
}

func (r *reader) list(key string) []string {
	r.used[key] = true
	var out []string
	for _, s := range r.raw.Strings(key) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *reader) boolean(key string) bool {
	r.used[key] = true
	b, _ := r.raw.Bool(key)
	return b
}

func (r *reader) value(key string) (any, bool) {
	r.used[key] = true
	v, ok := r.raw.Fields[key]
	return v, ok && r.raw.Has(key)
}

func (r *reader) integer(key string) (int64, bool, error) {
	v, ok := r.value(key)
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case uint64:
		return int64(n), true, nil //nolint:gosec // file sizes fit in int64
	case float64:
		if n != float64(int64(n)) {
			return 0, false, errors.NewValidationError(key, v, "must be a whole number")
		}
		return int64(n), true, nil
	}
	parsed, err := strconv.ParseInt(records.Stringify(v), 10, 64)
	if err != nil {
		return 0, false, errors.NewValidationError(key, v, "must be a whole number")
	}
	return parsed, true, nil
}

// timestamp renders a date or datetime field as RFC 3339.
func (r *reader) timestamp(key string, loc *time.Location) (string, error) {
	v, ok := r.value(key)
	if !ok {
		return "", nil
	}
	t, err := parseTime(v, loc)
	if err != nil {
		return "", errors.NewValidationError(key, v, err.Error())
	}
	return t.UTC().Format(time.RFC3339), nil
}

// identifiers collects persistent_id, alternate_ids and identifiers, in
// that order, without duplicates.
func (r *reader) identifiers() []string {
	var ids []string
	for _, key := range []string{"persistent_id", "alternate_ids", "identifiers"} {
		for _, id := range r.list(key) {
			ids = appendUnique(ids, id)
		}
	}
	return ids
}

// parameters builds the parameter set from every unconsumed key and the
// entries of a metadata map. Metadata keys are snake-cased and prefixed with
// the object type. Empty values are dropped; no parameters means nil.
func (r *reader) parameters(schema string) *records.ParameterSet {
	r.used["schema"] = true

	var params []records.Parameter
	for _, key := range r.raw.Keys() {
		if r.used[key] || key == "metadata" || !r.raw.Has(key) {
			continue
		}
		params = append(params, records.Parameter{Name: key, Value: parameterValue(r.raw.Fields[key])})
	}

	if meta, ok := r.raw.Fields["metadata"].(map[string]any); ok {
		prefix := r.raw.Type.String() + "_"
		for key, v := range meta {
			if v == nil || v == "" {
				continue
			}
			name := prefix + strings.ToLower(strings.Join(strings.Fields(key), "_"))
			params = append(params, records.Parameter{Name: name, Value: parameterValue(v)})
		}
	}

	if len(params) == 0 {
		return nil
	}
	sort.SliceStable(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return &records.ParameterSet{Schema: schema, Parameters: params}
}

// parameterValue keeps scalars as they are and encodes anything else as JSON text.
func parameterValue(v any) any {
	switch x := v.(type) {
	case string, bool, int, int64, uint64, float64:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"02/01/2006",
}

func parseTime(v any, loc *time.Location) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s := strings.TrimSpace(records.Stringify(v))
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
