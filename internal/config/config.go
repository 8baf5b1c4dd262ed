// Package config loads the ingestion configuration from a YAML file,
// FOUNDRY_* environment variables and .env files.
package config

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/foundry/internal/storage"
	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
)

// EnvPrefix prefixes every environment variable, e.g. FOUNDRY_AUTH_API_KEY.
const EnvPrefix = "FOUNDRY"

// General holds settings that apply to every object.
type General struct {
	DefaultInstitution string `mapstructure:"default_institution"`
	SourceDirectory    string `mapstructure:"source_directory"`
	Timezone           string `mapstructure:"timezone"`
}

// Auth holds catalogue credentials.
type Auth struct {
	Username string `mapstructure:"username" validate:"required"`
	APIKey   string `mapstructure:"api_key" validate:"required"`
}

// Proxy routes catalogue traffic.
type Proxy struct {
	HTTP  string `mapstructure:"http" validate:"omitempty,url"`
	HTTPS string `mapstructure:"https" validate:"omitempty,url"`
}

// Connection locates the catalogue.
type Connection struct {
	Hostname          string        `mapstructure:"hostname" validate:"required,url"`
	VerifyCertificate bool          `mapstructure:"verify_certificate"`
	Proxy             Proxy         `mapstructure:"proxy"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxRetries        uint          `mapstructure:"max_retries"`
}

// DefaultSchema names the schema injected when a record has none.
type DefaultSchema struct {
	Project    string `mapstructure:"project"`
	Experiment string `mapstructure:"experiment"`
	Dataset    string `mapstructure:"dataset"`
	Datafile   string `mapstructure:"datafile"`
}

// Map returns the schemas keyed by object type, omitting unset ones.
func (d DefaultSchema) Map() map[records.ObjectType]string {
	out := map[records.ObjectType]string{}
	for t, s := range map[records.ObjectType]string{
		records.TypeProject:    d.Project,
		records.TypeExperiment: d.Experiment,
		records.TypeDataset:    d.Dataset,
		records.TypeDatafile:   d.Datafile,
	} {
		if s != "" {
			out[t] = s
		}
	}
	return out
}

// Storage configures the storage box and the staging area.
type Storage struct {
	storage.Config `mapstructure:",squash"`
	StagingRoot    string `mapstructure:"staging_root"`
}

// RAiD configures identifier minting.
type RAiD struct {
	URL         string `mapstructure:"url" validate:"omitempty,url"`
	Token       string `mapstructure:"token"`
	Store       string `mapstructure:"store"`
	ContentPath string `mapstructure:"content_path"`
	NamePrefix  string `mapstructure:"name_prefix"`
}

// Enabled reports whether a RAiD service is configured.
func (r RAiD) Enabled() bool {
	return r.URL != ""
}

// Ingestion tunes a run.
type Ingestion struct {
	Overwrite       bool     `mapstructure:"overwrite"`
	Concurrency     int      `mapstructure:"concurrency" validate:"gte=1"`
	ObjectsWithIDs  []string `mapstructure:"objects_with_ids"`
	ProjectsEnabled *bool    `mapstructure:"projects_enabled"`
	Exclude         []string `mapstructure:"exclude"`
	ResultPath      string   `mapstructure:"result_path"`
	MetricsPath     string   `mapstructure:"metrics_path"`
}

// Config is the complete ingestion configuration.
type Config struct {
	General       General       `mapstructure:"general"`
	Auth          Auth          `mapstructure:"auth"`
	Connection    Connection    `mapstructure:"connection"`
	DefaultSchema DefaultSchema `mapstructure:"default_schema"`
	Storage       *Storage      `mapstructure:"storage"`
	RAiD          RAiD          `mapstructure:"raid"`
	Ingestion     Ingestion     `mapstructure:"ingestion"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Location returns the time zone naive timestamps are read in.
func (c *Config) Location() *time.Location {
	if c.General.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.General.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Options controls Load.
type Options struct {
	File     string   // explicit config file; empty searches the defaults
	EnvFiles []string // .env files to load before reading the environment
	Paths    []string // directories searched for foundry.yaml
}

// Load reads configuration in order of precedence:
// 1. Environment variables (FOUNDRY_AUTH_API_KEY, ...)
// 2. .env files
// 3. Config file (foundry.yaml)
// 4. Defaults
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env", ".env.local"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, errors.NewConfigError("config", "loading "+f, err)
			}
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("foundry")
		v.SetConfigType("yaml")
		paths := opts.Paths
		if paths == nil {
			paths = []string{"."}
			if home, err := os.UserHomeDir(); err == nil {
				paths = append(paths, home+"/.config/foundry")
			}
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !stderrors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "reading config file", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigError("config", "decoding configuration", err)
	}
	cfg.File = v.ConfigFileUsed()
	if cfg.Storage != nil && cfg.Storage.Name == "" && cfg.Storage.Class == "" {
		cfg.Storage = nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connection.verify_certificate", true)
	v.SetDefault("connection.timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("connection.max_retries", constants.MaxRetries)
	v.SetDefault("ingestion.concurrency", 1)
	v.SetDefault("ingestion.result_path", constants.ResultFileName)
	v.SetDefault("raid.store", "raids.json")
}

// bindEnv registers every key so AutomaticEnv sees variables for keys that
// appear in no config file.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"general.default_institution", "general.source_directory", "general.timezone",
		"auth.username", "auth.api_key",
		"connection.hostname", "connection.verify_certificate", "connection.proxy.http",
		"connection.proxy.https", "connection.timeout", "connection.max_retries",
		"default_schema.project", "default_schema.experiment", "default_schema.dataset",
		"default_schema.datafile",
		"storage.name", "storage.class", "storage.target_root_directory", "storage.staging_root",
		"storage.s3.bucket", "storage.s3.region", "storage.s3.endpoint",
		"storage.s3.access_key_id", "storage.s3.secret_access_key", "storage.s3.path_style",
		"raid.url", "raid.token", "raid.store", "raid.content_path", "raid.name_prefix",
		"ingestion.overwrite", "ingestion.concurrency", "ingestion.result_path",
		"ingestion.metrics_path", "ingestion.projects_enabled",
	} {
		_ = v.BindEnv(key)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.NewConfigError("config", strings.Join(msgs, "; "), err)
		}
		return errors.NewConfigError("config", "invalid configuration", err)
	}

	if u, err := url.Parse(c.Connection.Hostname); err == nil && u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewConfigError("config", fmt.Sprintf("connection.hostname %q must be an http(s) URL", c.Connection.Hostname), nil)
	}
	for _, name := range c.Ingestion.ObjectsWithIDs {
		if _, err := records.ParseObjectType(name); err != nil {
			return errors.NewConfigError("config", "ingestion.objects_with_ids", err)
		}
	}
	return nil
}

// IdentifiedObjects returns the object types configured to carry
// identifiers, or nil when the catalogue should be asked.
func (c *Config) IdentifiedObjects() []records.ObjectType {
	if c.Ingestion.ObjectsWithIDs == nil {
		return nil
	}
	out := make([]records.ObjectType, 0, len(c.Ingestion.ObjectsWithIDs))
	for _, name := range c.Ingestion.ObjectsWithIDs {
		if t, err := records.ParseObjectType(name); err == nil {
			out = append(out, t)
		}
	}
	return out
}
