package records

import "github.com/agentstation/foundry/pkg/uri"

// ProjectFields are the project core fields shared by the refined and resolved forms.
type ProjectFields struct {
	Name                  string   `json:"name" validate:"required"`
	Description           string   `json:"description" validate:"required"`
	PrincipalInvestigator string   `json:"principal_investigator" validate:"required"`
	URL                   string   `json:"url,omitempty"`
	StartTime             string   `json:"start_time,omitempty"`
	EndTime               string   `json:"end_time,omitempty"`
	EmbargoUntil          string   `json:"embargo_until,omitempty"`
	Identifiers           []string `json:"identifiers,omitempty"`
	Access
}

// RefinedProject is a normalized project whose institutions are still names.
type RefinedProject struct {
	ProjectFields
	Institutions []string `json:"-" key:"institution" validate:"required,min=1,dive,required"`
	Schema       string   `json:"-" key:"schema" validate:"required"`
}

// Project is a project ready to be written.
type Project struct {
	ProjectFields
	Institutions []uri.URI `json:"institution"`
}

// ObjectType implements Object.
func (p *Project) ObjectType() ObjectType { return TypeProject }

// DisplayName implements Object.
func (p *Project) DisplayName() string { return p.Name }

// Lookup implements Object.
func (p *Project) Lookup() Lookup {
	return Lookup{
		Type:        TypeProject,
		Key:         p.Name,
		Query:       map[string]string{"name": p.Name},
		Identifiers: identifierList(p.Identifiers),
	}
}

// ComparisonValues implements Object.
func (p *Project) ComparisonValues() map[string]any {
	return map[string]any{
		"name":                   p.Name,
		"description":            p.Description,
		"principal_investigator": p.PrincipalInvestigator,
	}
}
