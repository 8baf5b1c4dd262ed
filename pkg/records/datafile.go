package records

import (
	"path"
	"strconv"

	"github.com/agentstation/foundry/pkg/uri"
)

// DatafileFields are the datafile core fields shared by the refined and resolved forms.
type DatafileFields struct {
	Filename  string    `json:"filename" validate:"required"`
	Directory string    `json:"directory"`
	MD5Sum    string    `json:"md5sum" validate:"required,len=32,hexadecimal"`
	Mimetype  string    `json:"mimetype" validate:"required"`
	Size      int64     `json:"size" validate:"gte=0"`
	Replicas  []Replica `json:"replicas" validate:"required,min=1"`
}

// RefinedDatafile is a normalized datafile whose dataset is still a reference.
type RefinedDatafile struct {
	DatafileFields
	Dataset string `json:"-" key:"dataset" validate:"required"`
	Schema  string `json:"-" key:"schema" validate:"required"`

	// SourcePath is the staged file the replica was derived from.
	SourcePath string `json:"-" key:"file_path"`
}

// Datafile is a datafile ready to be written.
type Datafile struct {
	DatafileFields
	Dataset uri.URI `json:"dataset"`
}

// RelativePath joins the datafile's directory and filename.
func (f *DatafileFields) RelativePath() string {
	return path.Join(f.Directory, f.Filename)
}

// ObjectType implements Object.
func (d *Datafile) ObjectType() ObjectType { return TypeDatafile }

// DisplayName implements Object.
func (d *Datafile) DisplayName() string { return d.RelativePath() }

// Lookup implements Object. Datafiles carry no identifiers.
func (d *Datafile) Lookup() Lookup {
	return Lookup{
		Type: TypeDatafile,
		Key:  d.RelativePath(),
		Query: map[string]string{
			"filename":  d.Filename,
			"directory": d.Directory,
			"dataset":   strconv.Itoa(d.Dataset.ID),
		},
	}
}

// ComparisonValues implements Object.
func (d *Datafile) ComparisonValues() map[string]any {
	return map[string]any{
		"filename": d.Filename,
		"size":     d.Size,
		"md5sum":   d.MD5Sum,
	}
}
