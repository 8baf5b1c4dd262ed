// Package smelter normalizes raw input records into refined records plus
// an optional parameter set.
//
// Each raw key is either a core key of the object's catalogue model or
// metadata. Core keys are copied into the typed refined record; metadata
// becomes the parameter set, which is nil when there is none. Missing
// schemas and institutions are filled from configured defaults.
package smelter

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
)

// Config holds the defaults injected during normalization.
type Config struct {
	// DefaultSchema maps an object type to the schema namespace used when a
	// record names none.
	DefaultSchema map[records.ObjectType]string

	// DefaultInstitution is used for projects without an institution.
	DefaultInstitution string

	// StorageBox names the storage box datafile replicas are placed in.
	StorageBox string

	// StagingRoot is stripped from datafile paths to form replica URIs.
	StagingRoot string

	// ProjectsEnabled makes project references mandatory on experiments.
	ProjectsEnabled bool

	// Location is applied to timestamps without a zone. Defaults to UTC.
	Location *time.Location
}

// Smelter turns raw records into refined ones.
type Smelter struct {
	cfg      Config
	fs       afero.Fs
	validate *validator.Validate
	box      string
}

// Option configures a Smelter.
type Option func(*Smelter)

// WithFs sets the filesystem staged datafiles are read from.
func WithFs(fs afero.Fs) Option {
	return func(s *Smelter) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// New creates a Smelter.
func New(cfg Config, opts ...Option) *Smelter {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Smelter{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		validate: newValidator(),
		box:      Slugify(cfg.StorageBox),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Smelted is the normalized form of any raw record.
type Smelted struct {
	Type       records.ObjectType
	Name       string
	Record     any
	Parameters *records.ParameterSet
}

// Smelt dispatches on the raw record's type.
func (s *Smelter) Smelt(ctx context.Context, raw records.Raw) (Smelted, error) {
	out := Smelted{Type: raw.Type, Name: raw.Name()}
	var err error

	switch raw.Type {
	case records.TypeProject:
		var p *records.RefinedProject
		p, out.Parameters, err = s.Project(ctx, raw)
		out.Record = p
	case records.TypeExperiment:
		var e *records.RefinedExperiment
		e, out.Parameters, err = s.Experiment(ctx, raw)
		out.Record = e
	case records.TypeDataset:
		var d *records.RefinedDataset
		d, out.Parameters, err = s.Dataset(ctx, raw)
		out.Record = d
	case records.TypeDatafile:
		var f *records.RefinedDatafile
		f, out.Parameters, err = s.Datafile(ctx, raw)
		out.Record = f
	default:
		err = errors.NewValidationError("type", raw.Type, "not an ingestible object type")
	}
	if err != nil {
		return Smelted{}, err
	}
	return out, nil
}

// schema resolves the record's schema or the configured default.
func (s *Smelter) schema(r *reader) (string, error) {
	if schema, ok := r.take("schema"); ok {
		return schema, nil
	}
	if def := s.cfg.DefaultSchema[r.raw.Type]; def != "" {
		return def, nil
	}
	return "", errors.NewMissingSchemaError(r.raw.Type.String(), r.raw.Name())
}

// check validates the refined record. Missing required values become a
// SanityCheckError naming every missing key.
func (s *Smelter) check(ctx context.Context, raw records.Raw, v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WrapValidation(raw.Type.String(), err)
	}

	var missing []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "min":
			missing = appendUnique(missing, fe.Field())
		default:
			return errors.NewValidationError(fe.Field(), fe.Value(), "failed "+fe.Tag()+" check")
		}
	}

	logging.FromContext(ctx).Debug().
		Str("record_type", raw.Type.String()).
		Str("record", raw.Name()).
		Strs("missing", missing).
		Msg("Sanity check failed")
	return errors.NewSanityCheckError(raw.Type.String(), raw.Name(), missing)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if key := f.Tag.Get("key"); key != "" {
			return key
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}
