package records

import (
	"fmt"
	"strings"
)

// DataClassification ranks sensitivity; larger values are less sensitive.
type DataClassification int

// Classification levels. Gaps allow intermediate levels.
const (
	ClassificationRestricted DataClassification = 1
	ClassificationSensitive  DataClassification = 25
	ClassificationInternal   DataClassification = 50
	ClassificationPublic     DataClassification = 100
)

// ParseDataClassification accepts a level name or its number.
func ParseDataClassification(s string) (DataClassification, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "restricted", "1":
		return ClassificationRestricted, nil
	case "sensitive", "25":
		return ClassificationSensitive, nil
	case "internal", "50":
		return ClassificationInternal, nil
	case "public", "100":
		return ClassificationPublic, nil
	}
	return 0, fmt.Errorf("unknown data classification %q", s)
}

// UserACL grants a user access to an object.
type UserACL struct {
	User         string `json:"user"`
	IsOwner      bool   `json:"is_owner"`
	CanDownload  bool   `json:"can_download"`
	SeeSensitive bool   `json:"see_sensitive"`
}

// GroupACL grants a group access to an object.
type GroupACL struct {
	Group        string `json:"group"`
	IsOwner      bool   `json:"is_owner"`
	CanDownload  bool   `json:"can_download"`
	SeeSensitive bool   `json:"see_sensitive"`
}

// Access holds the access-control lists and classification shared by
// projects, experiments and datasets.
type Access struct {
	Users              []UserACL           `json:"users,omitempty"`
	Groups             []GroupACL          `json:"groups,omitempty"`
	DataClassification *DataClassification `json:"data_classification,omitempty"`
}

// Parameter is a single metadata value.
type Parameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ParameterSet is metadata attached to an object after it is written.
type ParameterSet struct {
	Schema     string      `json:"schema"`
	Parameters []Parameter `json:"parameters"`
}

// Len returns the number of parameters; nil sets have none.
func (ps *ParameterSet) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.Parameters)
}

// Replica locates a datafile's bytes within a storage box.
type Replica struct {
	URI      string `json:"uri"`
	Location string `json:"location"`
	Protocol string `json:"protocol"`
}

func identifierList(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
