package smelter

import (
	"context"
	"path"
	"strings"

	"github.com/agentstation/foundry/internal/checksum"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
)

// Project normalizes a raw project.
func (s *Smelter) Project(ctx context.Context, raw records.Raw) (*records.RefinedProject, *records.ParameterSet, error) {
	r := newReader(raw)

	schema, err := s.schema(r)
	if err != nil {
		return nil, nil, err
	}
	institutions := r.list("institution")
	if len(institutions) == 0 {
		if s.cfg.DefaultInstitution == "" {
			return nil, nil, errors.NewMissingInstitutionError(raw.Type.String(), raw.Name())
		}
		institutions = []string{s.cfg.DefaultInstitution}
	}
	acc, err := r.access()
	if err != nil {
		return nil, nil, err
	}

	p := &records.RefinedProject{
		ProjectFields: records.ProjectFields{
			Name:                  r.str("name"),
			Description:           r.str("description"),
			PrincipalInvestigator: r.str("principal_investigator"),
			URL:                   r.str("url"),
			Identifiers:           r.identifiers(),
			Access:                acc,
		},
		Institutions: institutions,
		Schema:       schema,
	}
	if err := s.times(r, &p.StartTime, &p.EndTime, &p.EmbargoUntil); err != nil {
		return nil, nil, err
	}
	if err := s.check(ctx, raw, p); err != nil {
		return nil, nil, err
	}
	return p, r.parameters(schema), nil
}

// Experiment normalizes a raw experiment.
func (s *Smelter) Experiment(ctx context.Context, raw records.Raw) (*records.RefinedExperiment, *records.ParameterSet, error) {
	r := newReader(raw)

	schema, err := s.schema(r)
	if err != nil {
		return nil, nil, err
	}
	acc, err := r.access()
	if err != nil {
		return nil, nil, err
	}

	e := &records.RefinedExperiment{
		ExperimentFields: records.ExperimentFields{
			Title:           r.str("title"),
			Description:     r.str("description"),
			InstitutionName: r.str("institution_name"),
			CreatedBy:       r.str("created_by"),
			URL:             r.str("url"),
			Locked:          r.boolean("locked"),
			Identifiers:     r.identifiers(),
			Access:          acc,
		},
		Projects: r.list("projects"),
		Schema:   schema,
	}
	if err := s.times(r, &e.StartTime, &e.EndTime, &e.EmbargoUntil); err != nil {
		return nil, nil, err
	}
	if err := s.check(ctx, raw, e); err != nil {
		return nil, nil, err
	}
	if s.cfg.ProjectsEnabled && len(e.Projects) == 0 {
		return nil, nil, errors.NewSanityCheckError(raw.Type.String(), raw.Name(), []string{"projects"})
	}
	return e, r.parameters(schema), nil
}

// Dataset normalizes a raw dataset.
func (s *Smelter) Dataset(ctx context.Context, raw records.Raw) (*records.RefinedDataset, *records.ParameterSet, error) {
	r := newReader(raw)

	schema, err := s.schema(r)
	if err != nil {
		return nil, nil, err
	}
	acc, err := r.access()
	if err != nil {
		return nil, nil, err
	}

	d := &records.RefinedDataset{
		DatasetFields: records.DatasetFields{
			Description: r.str("description"),
			Directory:   cleanDir(r.str("directory")),
			Immutable:   r.boolean("immutable"),
			Identifiers: r.identifiers(),
			Access:      acc,
		},
		Experiments: r.list("experiments"),
		Instrument:  r.str("instrument"),
		Schema:      schema,
	}
	if err := s.check(ctx, raw, d); err != nil {
		return nil, nil, err
	}
	return d, r.parameters(schema), nil
}

// Datafile normalizes a raw datafile. The staged file named by file_path is
// read for any missing checksum, size or mimetype, and its path relative to
// the staging root becomes the replica URI inside the storage box.
func (s *Smelter) Datafile(ctx context.Context, raw records.Raw) (*records.RefinedDatafile, *records.ParameterSet, error) {
	r := newReader(raw)

	schema, err := s.schema(r)
	if err != nil {
		return nil, nil, err
	}

	f := &records.RefinedDatafile{
		DatafileFields: records.DatafileFields{
			Filename:  r.str("filename"),
			Directory: cleanDir(r.str("directory")),
			MD5Sum:    strings.ToLower(r.str("md5sum")),
			Mimetype:  r.str("mimetype"),
		},
		Schema: schema,
	}
	if datasets := r.list("dataset"); len(datasets) > 0 {
		f.Dataset = datasets[0]
	}
	size, hasSize, err := r.integer("size")
	if err != nil {
		return nil, nil, err
	}
	f.Size = size

	box := s.box
	if name := r.str("storage_box"); name != "" {
		box = Slugify(name)
	}
	source := r.str("file_path")

	var missing []string
	if source == "" {
		missing = append(missing, "file_path")
	}
	if box == "" {
		missing = append(missing, "storage_box")
	}
	if len(missing) > 0 {
		return nil, nil, errors.NewSanityCheckError(raw.Type.String(), raw.Name(), missing)
	}

	rel := s.relative(source)
	f.SourcePath = s.staged(source)
	if f.Filename == "" {
		f.Filename = path.Base(rel)
	}
	if f.Directory == "" && !r.raw.Has("directory") {
		f.Directory = cleanDir(path.Dir(rel))
	}
	f.Replicas = []records.Replica{{URI: rel, Location: box, Protocol: "file"}}

	if f.MD5Sum == "" || !hasSize || f.Mimetype == "" {
		digest, err := checksum.File(s.fs, f.SourcePath)
		if err != nil {
			return nil, nil, err
		}
		if f.MD5Sum == "" {
			f.MD5Sum = digest.MD5
		}
		if !hasSize {
			f.Size = digest.Size
		}
		if f.Mimetype == "" {
			f.Mimetype = digest.Mimetype
		}
	}

	if err := s.check(ctx, raw, f); err != nil {
		return nil, nil, err
	}
	return f, r.parameters(schema), nil
}

func (s *Smelter) times(r *reader, start, end, embargo *string) error {
	var err error
	if *start, err = r.timestamp("start_time", s.cfg.Location); err != nil {
		return err
	}
	if *end, err = r.timestamp("end_time", s.cfg.Location); err != nil {
		return err
	}
	*embargo, err = r.timestamp("embargo_until", s.cfg.Location)
	return err
}

// relative strips the staging root from p and returns a clean slash path.
func (s *Smelter) relative(p string) string {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if root := s.cfg.StagingRoot; root != "" {
		root = path.Clean(strings.ReplaceAll(root, "\\", "/"))
		if rel, ok := strings.CutPrefix(p, root+"/"); ok {
			return rel
		}
	}
	return strings.TrimPrefix(p, "/")
}

// staged is where the file is read from: relative paths hang off the staging root.
func (s *Smelter) staged(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if path.IsAbs(p) || s.cfg.StagingRoot == "" {
		return path.Clean(p)
	}
	return path.Join(s.cfg.StagingRoot, p)
}

func cleanDir(d string) string {
	if d == "" {
		return ""
	}
	d = path.Clean(strings.ReplaceAll(d, "\\", "/"))
	if d == "." || d == "/" {
		return ""
	}
	return strings.TrimPrefix(d, "/")
}
