package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry/internal/storage"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
)

const sample = `
general:
  default_institution: Monash
  timezone: Australia/Melbourne
auth:
  username: ingest
  api_key: secret
connection:
  hostname: https://catalogue.example.org
  timeout: 10s
default_schema:
  project: http://x/project
  datafile: http://x/datafile
storage:
  name: Vault
  class: s3
  target_root_directory: ingest
  staging_root: /staging
  s3:
    bucket: data
    region: ap-southeast-2
raid:
  url: https://raid.example.org
  name_prefix: PGG-
ingestion:
  concurrency: 4
  objects_with_ids: [project, experiment]
  projects_enabled: false
  exclude: ["*.tmp"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "foundry.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(Options{File: writeConfig(t, sample), EnvFiles: []string{}})
	require.NoError(t, err)

	assert.Equal(t, "Monash", cfg.General.DefaultInstitution)
	assert.Equal(t, "ingest", cfg.Auth.Username)
	assert.Equal(t, 10*time.Second, cfg.Connection.Timeout)
	assert.True(t, cfg.Connection.VerifyCertificate)
	assert.EqualValues(t, 8, cfg.Connection.MaxRetries)

	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "Vault", cfg.Storage.Name)
	assert.Equal(t, storage.ClassS3, cfg.Storage.Class)
	assert.Equal(t, "/staging", cfg.Storage.StagingRoot)
	require.NotNil(t, cfg.Storage.S3)
	assert.Equal(t, "data", cfg.Storage.S3.Bucket)

	assert.True(t, cfg.RAiD.Enabled())
	assert.Equal(t, "raids.json", cfg.RAiD.Store)
	assert.Equal(t, 4, cfg.Ingestion.Concurrency)
	require.NotNil(t, cfg.Ingestion.ProjectsEnabled)
	assert.False(t, *cfg.Ingestion.ProjectsEnabled)
	assert.Equal(t, []string{"*.tmp"}, cfg.Ingestion.Exclude)
	assert.Equal(t, "ingestion_result.json", cfg.Ingestion.ResultPath)
	assert.Equal(t, []records.ObjectType{records.TypeProject, records.TypeExperiment}, cfg.IdentifiedObjects())

	assert.Equal(t, map[records.ObjectType]string{
		records.TypeProject:  "http://x/project",
		records.TypeDatafile: "http://x/datafile",
	}, cfg.DefaultSchema.Map())
	assert.NotNil(t, cfg.Location())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FOUNDRY_AUTH_API_KEY", "from-env")
	t.Setenv("FOUNDRY_INGESTION_CONCURRENCY", "2")

	cfg, err := Load(Options{File: writeConfig(t, sample), EnvFiles: []string{}})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.APIKey)
	assert.Equal(t, 2, cfg.Ingestion.Concurrency)
}

func TestLoad_DotEnv(t *testing.T) {
	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("FOUNDRY_AUTH_USERNAME=dotenv-user\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("FOUNDRY_AUTH_USERNAME") })

	cfg, err := Load(Options{File: writeConfig(t, sample), EnvFiles: []string{env}})
	require.NoError(t, err)
	assert.Equal(t, "dotenv-user", cfg.Auth.Username)
}

func TestLoad_NoStorage(t *testing.T) {
	body := `
auth: {username: u, api_key: k}
connection: {hostname: "http://localhost:8000"}
`
	cfg, err := Load(Options{File: writeConfig(t, body), EnvFiles: []string{}})
	require.NoError(t, err)
	assert.Nil(t, cfg.Storage)
	assert.False(t, cfg.RAiD.Enabled())
	assert.Nil(t, cfg.IdentifiedObjects())
	assert.Equal(t, "UTC", cfg.Location().String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing credentials", `connection: {hostname: "https://c.example.org"}`},
		{"bad hostname", "auth: {username: u, api_key: k}\nconnection: {hostname: \"ftp://c.example.org\"}"},
		{"zero concurrency", "auth: {username: u, api_key: k}\nconnection: {hostname: \"https://c.example.org\"}\ningestion: {concurrency: 0}"},
		{"unknown object type", "auth: {username: u, api_key: k}\nconnection: {hostname: \"https://c.example.org\"}\ningestion: {objects_with_ids: [instrument]}"},
		{"s3 without settings", "auth: {username: u, api_key: k}\nconnection: {hostname: \"https://c.example.org\"}\nstorage: {name: v, class: s3}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Options{File: writeConfig(t, tt.body), EnvFiles: []string{}})
			var cfgErr *errors.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "absent.yaml"), EnvFiles: []string{}})
	var cfgErr *errors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
