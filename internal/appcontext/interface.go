// Package appcontext provides the application context interface shared by
// every command, so commands can be tested against a mock.
package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/foundry"
)

// Interface defines what commands need from the application.
type Interface interface {
	// Foundry returns the ingestion service, creating it on first use.
	Foundry() (foundry.Foundry, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, wide).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
