package app

import (
	"os"
)

// Config holds the CLI settings. Ingestion settings live in the file
// named by ConfigFile and are loaded by internal/config.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig builds the CLI configuration from the environment.
// Command-line flags are applied later by UpdateFromFlags.
func LoadConfig() *Config {
	return &Config{
		ConfigFile: os.Getenv("FOUNDRY_CONFIG"),
		Format:     os.Getenv("FOUNDRY_FORMAT"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		LogFormat:  getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput:  getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}
}

// UpdateFromFlags updates config values from parsed command flags so
// they take precedence over the environment.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel, configFile string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if configFile != "" {
		c.ConfigFile = configFile
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
