// Package uri parses and builds catalogue resource URIs of the form
// /api/v1/<type>/<id>/.
package uri

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
)

// URI identifies a single catalogue resource.
type URI struct {
	Type string
	ID   int
}

// New builds a URI for the given object type and numeric ID.
func New(objectType string, id int) URI {
	return URI{Type: objectType, ID: id}
}

// Parse validates s and extracts the object type and ID.
func Parse(s string) (URI, error) {
	rest, ok := strings.CutPrefix(s, constants.APIPrefix)
	if !ok {
		return URI{}, errors.NewMalformedURIError(s, "missing "+constants.APIPrefix+" prefix")
	}
	rest, ok = strings.CutSuffix(rest, "/")
	if !ok {
		return URI{}, errors.NewMalformedURIError(s, "missing trailing slash")
	}
	objectType, rawID, ok := strings.Cut(rest, "/")
	if !ok || objectType == "" || rawID == "" || strings.Contains(rawID, "/") {
		return URI{}, errors.NewMalformedURIError(s, "expected <type>/<id>")
	}
	if !isIdentifier(objectType) {
		return URI{}, errors.NewMalformedURIError(s, "invalid object type "+strconv.Quote(objectType))
	}
	if !isDigits(rawID) {
		return URI{}, errors.NewMalformedURIError(s, "id must be numeric")
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return URI{}, errors.NewMalformedURIError(s, err.Error())
	}
	return URI{Type: objectType, ID: id}, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(s string) URI {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// IsURI reports whether s is a well-formed URI for objectType.
func IsURI(s, objectType string) bool {
	u, err := Parse(s)
	return err == nil && u.Type == objectType
}

// FromLocation extracts a URI from a Location header, which may be absolute.
func FromLocation(location string) (URI, error) {
	if location == "" {
		return URI{}, errors.NewMalformedURIError(location, "empty location")
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return URI{}, errors.NewMalformedURIError(location, err.Error())
	}
	return Parse(parsed.Path)
}

// String renders the URI in catalogue form.
func (u URI) String() string {
	if u.IsZero() {
		return ""
	}
	return constants.APIPrefix + u.Type + "/" + strconv.Itoa(u.ID) + "/"
}

// IsZero reports whether u is the zero URI.
func (u URI) IsZero() bool {
	return u.Type == "" && u.ID == 0
}

// MarshalText implements encoding.TextMarshaler.
func (u URI) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *URI) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*u = URI{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Strings renders a slice of URIs.
func Strings(uris []URI) []string {
	out := make([]string, len(uris))
	for i, u := range uris {
		out[i] = u.String()
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isIdentifier(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '_' {
			return false
		}
	}
	return true
}
