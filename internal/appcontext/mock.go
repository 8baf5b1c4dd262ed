package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/foundry"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/records"
)

// Mock provides a mock implementation of Interface for testing.
// Unset fields fall back to zero values.
type Mock struct {
	FoundryFunc func() (foundry.Foundry, error)
	LoggerFunc  func() *zerolog.Logger
	Format      string
	VersionStr  string
}

// Foundry returns the instance from FoundryFunc.
func (m *Mock) Foundry() (foundry.Foundry, error) {
	if m.FoundryFunc != nil {
		return m.FoundryFunc()
	}
	return nil, errors.NewConfigError("mock", "no foundry configured", nil)
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns Format.
func (m *Mock) OutputFormat() string {
	return m.Format
}

// Version returns VersionStr or "dev".
func (m *Mock) Version() string {
	if m.VersionStr != "" {
		return m.VersionStr
	}
	return "dev"
}

// Commit returns "unknown".
func (m *Mock) Commit() string { return "unknown" }

// Date returns "unknown".
func (m *Mock) Date() string { return "unknown" }

// BuiltBy returns "test".
func (m *Mock) BuiltBy() string { return "test" }

// Ensure Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)

// MockFoundry implements foundry.Foundry with overridable functions.
// Hooks are accepted and ignored.
type MockFoundry struct {
	IngestFunc     func(ctx context.Context, source string, opts ...ingest.Option) (*ingest.Result, error)
	ValidateFunc   func(ctx context.Context, source string) (*foundry.Report, error)
	IntrospectFunc func(ctx context.Context) (foundry.Introspection, error)
	AssignFunc     func(ctx context.Context, source, dest string) (foundry.Assignment, error)
}

// Ingest calls IngestFunc or returns an empty result.
func (m *MockFoundry) Ingest(ctx context.Context, source string, opts ...ingest.Option) (*ingest.Result, error) {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, source, opts...)
	}
	r := ingest.NewResult("mock", false)
	r.Finish()
	return r, nil
}

// Validate calls ValidateFunc or returns an empty report.
func (m *MockFoundry) Validate(ctx context.Context, source string) (*foundry.Report, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, source)
	}
	return &foundry.Report{Valid: map[records.ObjectType]int{}}, nil
}

// Introspect calls IntrospectFunc or reports projects enabled.
func (m *MockFoundry) Introspect(ctx context.Context) (foundry.Introspection, error) {
	if m.IntrospectFunc != nil {
		return m.IntrospectFunc(ctx)
	}
	return foundry.Introspection{ProjectsEnabled: true}, nil
}

// AssignRAiDs calls AssignFunc or assigns nothing.
func (m *MockFoundry) AssignRAiDs(ctx context.Context, source, dest string) (foundry.Assignment, error) {
	if m.AssignFunc != nil {
		return m.AssignFunc(ctx, source, dest)
	}
	return foundry.Assignment{}, nil
}

// OnCreated implements foundry.Foundry.
func (m *MockFoundry) OnCreated(foundry.ObjectHook) {}

// OnUpdated implements foundry.Foundry.
func (m *MockFoundry) OnUpdated(foundry.ObjectHook) {}

// OnSkipped implements foundry.Foundry.
func (m *MockFoundry) OnSkipped(foundry.ObjectHook) {}

// OnFailed implements foundry.Foundry.
func (m *MockFoundry) OnFailed(foundry.FailureHook) {}

var _ foundry.Foundry = (*MockFoundry)(nil)
