// Package records defines the object model ingested into the catalogue.
//
// Every object exists in three forms. A Raw record is what an input source
// produced: a type tag and a loosely typed field map. A Refined record is the
// smelter's output, with typed core fields and references still expressed as
// names or identifiers. A resolved record (Project, Experiment, Dataset,
// Datafile) has every reference replaced by a catalogue URI and is the only
// form that is ever written.
package records

import (
	"fmt"
	"strings"
)

// ObjectType names a catalogue resource collection.
type ObjectType string

// Object types handled by the pipeline.
const (
	TypeProject    ObjectType = "project"
	TypeExperiment ObjectType = "experiment"
	TypeDataset    ObjectType = "dataset"
	TypeDatafile   ObjectType = "datafile"

	TypeInstitution ObjectType = "institution"
	TypeInstrument  ObjectType = "instrument"
	TypeFacility    ObjectType = "facility"
	TypeStorageBox  ObjectType = "storagebox"
	TypeSchema      ObjectType = "schema"
)

// IngestionOrder is the dependency order in which object types are processed.
var IngestionOrder = []ObjectType{TypeProject, TypeExperiment, TypeDataset, TypeDatafile}

// ParseObjectType converts a string to one of the ingested object types.
func ParseObjectType(s string) (ObjectType, error) {
	t := ObjectType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range IngestionOrder {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown object type %q", s)
}

// String implements fmt.Stringer.
func (t ObjectType) String() string {
	return string(t)
}

// ParameterSetType is the collection holding parameter sets for t.
func (t ObjectType) ParameterSetType() ObjectType {
	return t + "parameterset"
}

// ParentType returns the type that objects of t reference as parents.
// Projects have no parent.
func (t ObjectType) ParentType() ObjectType {
	switch t {
	case TypeExperiment:
		return TypeProject
	case TypeDataset:
		return TypeExperiment
	case TypeDatafile:
		return TypeDataset
	}
	return ""
}

// MatchField is the natural-key field used to search for existing objects.
func (t ObjectType) MatchField() string {
	switch t {
	case TypeProject, TypeInstitution, TypeInstrument, TypeFacility, TypeStorageBox, TypeSchema:
		return "name"
	case TypeExperiment:
		return "title"
	case TypeDataset:
		return "description"
	case TypeDatafile:
		return "filename"
	}
	return "name"
}

// ComparisonKeys are the fields that must agree exactly for a candidate to be a match.
func (t ObjectType) ComparisonKeys() []string {
	switch t {
	case TypeProject:
		return []string{"name", "description", "principal_investigator"}
	case TypeExperiment:
		return []string{"title", "description"}
	case TypeDataset:
		return []string{"description"}
	case TypeDatafile:
		return []string{"filename", "size", "md5sum"}
	}
	return []string{t.MatchField()}
}

// Lookup describes how to search the catalogue for an existing object.
type Lookup struct {
	Type        ObjectType
	Key         string            // display value of the natural key
	Query       map[string]string // natural-key query parameters
	Identifiers []string          // persistent identifier first, then alternates
}

// Object is implemented by every resolved record.
type Object interface {
	ObjectType() ObjectType
	DisplayName() string
	Lookup() Lookup
	ComparisonValues() map[string]any
}
