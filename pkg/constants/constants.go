// Package constants provides shared constants used throughout foundry:
// timeouts, retry limits, paging and file permissions.
package constants

import "time"

// Timeout constants
const (
	// DefaultHTTPTimeout is the per-request timeout for catalogue calls
	DefaultHTTPTimeout = 5 * time.Second

	// RAiDHTTPTimeout is the per-request timeout for the RAiD service
	RAiDHTTPTimeout = 30 * time.Second

	// CommandTimeout is the default timeout for short CLI commands
	CommandTimeout = 10 * time.Minute

	// ShutdownTimeout bounds graceful shutdown after an error
	ShutdownTimeout = 5 * time.Second
)

// Retry constants for transient transport failures
const (
	// MaxRetries is the maximum number of attempts for a request answered with 502
	MaxRetries = 8

	// RetryBackoff is the initial backoff interval
	RetryBackoff = 500 * time.Millisecond

	// MaxRetryBackoff caps a single backoff interval
	MaxRetryBackoff = 30 * time.Second
)

// File permission constants
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for files holding identifiers or tokens (rw-------)
	SecureFilePermissions = 0600
)

// Catalogue constants
const (
	// APIPrefix is the path prefix of every catalogue resource
	APIPrefix = "/api/v1/"

	// PageSize is the limit used when paging through GET results
	PageSize = 500

	// ResolutionCacheSize is the number of resolved references kept per run
	ResolutionCacheSize = 4096

	// UserAgent identifies foundry to the catalogue
	UserAgent = "foundry"

	// ResultFileName is the default ingestion result dump
	ResultFileName = "ingestion_result.json"

	// MaxConcurrentTransfers bounds parallel datafile transfers
	MaxConcurrentTransfers = 4
)
