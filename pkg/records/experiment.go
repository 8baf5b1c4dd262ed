package records

import "github.com/agentstation/foundry/pkg/uri"

// ExperimentFields are the experiment core fields shared by the refined and resolved forms.
type ExperimentFields struct {
	Title           string   `json:"title" validate:"required"`
	Description     string   `json:"description" validate:"required"`
	InstitutionName string   `json:"institution_name,omitempty"`
	CreatedBy       string   `json:"created_by,omitempty"`
	URL             string   `json:"url,omitempty"`
	Locked          bool     `json:"locked"`
	StartTime       string   `json:"start_time,omitempty"`
	EndTime         string   `json:"end_time,omitempty"`
	EmbargoUntil    string   `json:"embargo_until,omitempty"`
	Identifiers     []string `json:"identifiers,omitempty"`
	Access
}

// RefinedExperiment is a normalized experiment whose projects are still names or identifiers.
type RefinedExperiment struct {
	ExperimentFields
	Projects []string `json:"-" key:"projects"`
	Schema   string   `json:"-" key:"schema" validate:"required"`
}

// Experiment is an experiment ready to be written. Projects is empty when
// the catalogue has projects disabled.
type Experiment struct {
	ExperimentFields
	Projects []uri.URI `json:"projects,omitempty"`
}

// ObjectType implements Object.
func (e *Experiment) ObjectType() ObjectType { return TypeExperiment }

// DisplayName implements Object.
func (e *Experiment) DisplayName() string { return e.Title }

// Lookup implements Object.
func (e *Experiment) Lookup() Lookup {
	return Lookup{
		Type:        TypeExperiment,
		Key:         e.Title,
		Query:       map[string]string{"title": e.Title},
		Identifiers: identifierList(e.Identifiers),
	}
}

// ComparisonValues implements Object.
func (e *Experiment) ComparisonValues() map[string]any {
	return map[string]any{
		"title":       e.Title,
		"description": e.Description,
	}
}
