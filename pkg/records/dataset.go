package records

import (
	"strconv"

	"github.com/agentstation/foundry/pkg/uri"
)

// DatasetFields are the dataset core fields shared by the refined and resolved forms.
type DatasetFields struct {
	Description string   `json:"description" validate:"required"`
	Directory   string   `json:"directory,omitempty"`
	Immutable   bool     `json:"immutable"`
	Identifiers []string `json:"identifiers,omitempty"`
	Access
}

// RefinedDataset is a normalized dataset whose experiments and instrument are still references.
type RefinedDataset struct {
	DatasetFields
	Experiments []string `json:"-" key:"experiments" validate:"required,min=1,dive,required"`
	Instrument  string   `json:"-" key:"instrument" validate:"required"`
	Schema      string   `json:"-" key:"schema" validate:"required"`
}

// Dataset is a dataset ready to be written.
type Dataset struct {
	DatasetFields
	Experiments []uri.URI `json:"experiments"`
	Instrument  uri.URI   `json:"instrument"`
}

// ObjectType implements Object.
func (d *Dataset) ObjectType() ObjectType { return TypeDataset }

// DisplayName implements Object.
func (d *Dataset) DisplayName() string { return d.Description }

// Lookup implements Object. The instrument narrows the description search.
func (d *Dataset) Lookup() Lookup {
	query := map[string]string{"description": d.Description}
	if !d.Instrument.IsZero() {
		query["instrument"] = strconv.Itoa(d.Instrument.ID)
	}
	return Lookup{
		Type:        TypeDataset,
		Key:         d.Description,
		Query:       query,
		Identifiers: identifierList(d.Identifiers),
	}
}

// ComparisonValues implements Object.
func (d *Dataset) ComparisonValues() map[string]any {
	return map[string]any{
		"description": d.Description,
	}
}
