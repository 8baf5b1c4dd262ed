// Package manifest loads ingestion manifests: the raw projects,
// experiments, datasets and datafiles of one run plus the staging root the
// datafiles were extracted from.
//
// A manifest is either a single YAML or JSON document with the keys
// source_data_root, projects, experiments, datasets and datafiles, or a
// directory holding source.json and one JSON file per record under
// projects/, experiments/, datasets/ and datafiles/.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"

	"github.com/agentstation/foundry/internal/matcher"
	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
)

const sourceFile = "source.json"

// Manifest holds the raw records of one ingestion run.
type Manifest struct {
	SourceRoot  string
	Projects    []records.Raw
	Experiments []records.Raw
	Datasets    []records.Raw
	Datafiles   []records.Raw

	// Excluded lists datafile paths dropped by the loader's filter.
	Excluded []string
}

// New returns an empty manifest for files staged under sourceRoot.
func New(sourceRoot string) *Manifest {
	return &Manifest{SourceRoot: sourceRoot}
}

// Records returns the records of type t.
func (m *Manifest) Records(t records.ObjectType) []records.Raw {
	switch t {
	case records.TypeProject:
		return m.Projects
	case records.TypeExperiment:
		return m.Experiments
	case records.TypeDataset:
		return m.Datasets
	case records.TypeDatafile:
		return m.Datafiles
	}
	return nil
}

// Add appends raw to the list for its type.
func (m *Manifest) Add(raw records.Raw) error {
	switch raw.Type {
	case records.TypeProject:
		m.Projects = append(m.Projects, raw)
	case records.TypeExperiment:
		m.Experiments = append(m.Experiments, raw)
	case records.TypeDataset:
		m.Datasets = append(m.Datasets, raw)
	case records.TypeDatafile:
		m.Datafiles = append(m.Datafiles, raw)
	default:
		return errors.NewValidationError("type", raw.Type, "not an ingestible object type")
	}
	return nil
}

// Len is the total number of records.
func (m *Manifest) Len() int {
	return len(m.Projects) + len(m.Experiments) + len(m.Datasets) + len(m.Datafiles)
}

// document is the single-file manifest layout.
type document struct {
	SourceDataRoot string           `json:"source_data_root"`
	Projects       []map[string]any `json:"projects"`
	Experiments    []map[string]any `json:"experiments"`
	Datasets       []map[string]any `json:"datasets"`
	Datafiles      []map[string]any `json:"datafiles"`
}

// Loader reads manifests from a filesystem.
type Loader struct {
	fs     afero.Fs
	filter *matcher.Filter
}

// Option configures a Loader.
type Option func(*Loader)

// WithFilter drops datafiles whose path the filter excludes.
func WithFilter(f *matcher.Filter) Option {
	return func(l *Loader) {
		l.filter = f
	}
}

// NewLoader creates a Loader over fs.
func NewLoader(fs afero.Fs, opts ...Option) *Loader {
	l := &Loader{fs: fs}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the manifest at p, a YAML or JSON file or a manifest directory.
func (l *Loader) Load(ctx context.Context, p string) (*Manifest, error) {
	fi, err := l.fs.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("manifest", p)
		}
		return nil, errors.WrapIO("stat", p, err)
	}

	var m *Manifest
	if fi.IsDir() {
		m, err = l.loadDir(ctx, p)
	} else {
		m, err = l.loadFile(p)
	}
	if err != nil {
		return nil, err
	}

	l.applyFilter(ctx, m)
	logging.FromContext(ctx).Info().
		Str("manifest", p).
		Int("projects", len(m.Projects)).
		Int("experiments", len(m.Experiments)).
		Int("datasets", len(m.Datasets)).
		Int("datafiles", len(m.Datafiles)).
		Int("excluded", len(m.Excluded)).
		Msg("Manifest loaded")
	return m, nil
}

func (l *Loader) loadFile(p string) (*Manifest, error) {
	data, err := afero.ReadFile(l.fs, p)
	if err != nil {
		return nil, errors.WrapIO("read", p, err)
	}

	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, errors.WrapParse("yaml", p, err)
		}
	case ".json":
	default:
		return nil, errors.NewParseError("manifest", p, "unsupported manifest extension", nil)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("json", p, err)
	}

	m := New(doc.SourceDataRoot)
	for _, group := range []struct {
		t    records.ObjectType
		objs []map[string]any
	}{
		{records.TypeProject, doc.Projects},
		{records.TypeExperiment, doc.Experiments},
		{records.TypeDataset, doc.Datasets},
		{records.TypeDatafile, doc.Datafiles},
	} {
		for i, fields := range group.objs {
			raw := records.NewRaw(group.t, fields)
			raw.Source = fmt.Sprintf("%s#%ss[%d]", p, group.t, i)
			_ = m.Add(raw)
		}
	}
	return m, nil
}

func (l *Loader) loadDir(ctx context.Context, dir string) (*Manifest, error) {
	src := path.Join(dir, sourceFile)
	data, err := afero.ReadFile(l.fs, src)
	if err != nil {
		return nil, errors.WrapIO("read", src, err)
	}
	var info struct {
		SourceDataRoot string `json:"source_data_root"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, errors.WrapParse("json", src, err)
	}

	m := New(info.SourceDataRoot)
	for _, t := range records.IngestionOrder {
		sub := path.Join(dir, t.String()+"s")
		files, err := l.jsonFiles(sub)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := afero.ReadFile(l.fs, f)
			if err != nil {
				return nil, errors.WrapIO("read", f, err)
			}
			fields := map[string]any{}
			if err := json.Unmarshal(data, &fields); err != nil {
				return nil, errors.WrapParse("json", f, err)
			}
			raw := records.NewRaw(t, fields)
			raw.Source = f
			_ = m.Add(raw)
		}
	}
	return m, nil
}

// jsonFiles lists the record files of one object directory in numeric order.
// A missing directory holds no records.
func (l *Loader) jsonFiles(dir string) ([]string, error) {
	exists, err := afero.DirExists(l.fs, dir)
	if err != nil {
		return nil, errors.WrapIO("stat", dir, err)
	}
	if !exists {
		return nil, nil
	}
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, errors.WrapIO("read", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" || matcher.IsSystemFile(e.Name()) {
			continue
		}
		files = append(files, path.Join(dir, e.Name()))
	}
	sort.Slice(files, func(i, j int) bool {
		a, b := path.Base(files[i]), path.Base(files[j])
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return files, nil
}

func (l *Loader) applyFilter(ctx context.Context, m *Manifest) {
	if l.filter == nil {
		return
	}
	kept := m.Datafiles[:0]
	for _, raw := range m.Datafiles {
		p := datafilePath(raw)
		if p != "" && l.filter.Exclude(p) {
			logging.FromContext(ctx).Debug().Str("path", p).Msg("Datafile excluded")
			m.Excluded = append(m.Excluded, p)
			continue
		}
		kept = append(kept, raw)
	}
	m.Datafiles = kept
}

func datafilePath(raw records.Raw) string {
	if p, ok := raw.String("file_path"); ok {
		return p
	}
	name, _ := raw.String("filename")
	dir, _ := raw.String("directory")
	return path.Join(dir, name)
}

// Save writes m to dir in the directory layout.
func (l *Loader) Save(m *Manifest, dir string) error {
	if err := l.fs.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("mkdir", dir, err)
	}
	if err := l.writeJSON(path.Join(dir, sourceFile), map[string]string{"source_data_root": m.SourceRoot}); err != nil {
		return err
	}
	for _, t := range records.IngestionOrder {
		sub := path.Join(dir, t.String()+"s")
		if err := l.fs.MkdirAll(sub, constants.DirPermissions); err != nil {
			return errors.WrapIO("mkdir", sub, err)
		}
		for i, raw := range m.Records(t) {
			if err := l.writeJSON(path.Join(sub, fmt.Sprintf("%d.json", i)), raw.Fields); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Loader) writeJSON(p string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return errors.WrapParse("json", p, err)
	}
	if err := afero.WriteFile(l.fs, p, buf.Bytes(), constants.FilePermissions); err != nil {
		return errors.WrapIO("write", p, err)
	}
	return nil
}
