package records

import (
	"fmt"
	"sort"
	"strconv"
)

// Raw is a record as parsed from an input source.
type Raw struct {
	Type   ObjectType
	Fields map[string]any
	Source string
}

// NewRaw creates a Raw record of the given type.
func NewRaw(t ObjectType, fields map[string]any) Raw {
	if fields == nil {
		fields = map[string]any{}
	}
	return Raw{Type: t, Fields: fields}
}

// Has reports whether key is present with a non-empty value.
func (r Raw) Has(key string) bool {
	v, ok := r.Fields[key]
	return ok && !isEmpty(v)
}

// String returns the value of key rendered as a string.
func (r Raw) String(key string) (string, bool) {
	v, ok := r.Fields[key]
	if !ok || isEmpty(v) {
		return "", false
	}
	return Stringify(v), true
}

// Strings returns the value of key as a string slice. A scalar becomes a
// single element slice.
func (r Raw) Strings(key string) []string {
	v, ok := r.Fields[key]
	if !ok || isEmpty(v) {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if !isEmpty(item) {
				out = append(out, Stringify(item))
			}
		}
		return out
	default:
		return []string{Stringify(v)}
	}
}

// Bool returns the value of key interpreted as a boolean.
func (r Raw) Bool(key string) (bool, bool) {
	v, ok := r.Fields[key]
	if !ok || isEmpty(v) {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}

// Keys returns the record's field names in sorted order.
func (r Raw) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Name returns the natural-key value for log and report messages.
func (r Raw) Name() string {
	if name, ok := r.String(r.Type.MatchField()); ok {
		return name
	}
	return "<unnamed " + r.Type.String() + ">"
}

// Stringify renders a scalar field value. Integral floats print without a
// fractional part so that 1024 from JSON compares equal to 1024 from YAML.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return Stringify(float64(x))
	case uint64:
		return strconv.FormatUint(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
