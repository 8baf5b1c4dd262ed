package foundry

import (
	"sync"

	"github.com/agentstation/foundry/internal/factory"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// Hook function types for object events
type (
	// ObjectHook is called with the object's type, name and catalogue URI.
	// The URI is zero for datafiles, whose endpoint does not return one.
	ObjectHook func(t records.ObjectType, name string, u uri.URI)

	// FailureHook is called when an object is blocked or fails.
	FailureHook func(t records.ObjectType, name string, err error)
)

// hooks manages event callbacks for ingestion outcomes
type hooks struct {
	mu        sync.RWMutex
	onCreated []ObjectHook
	onUpdated []ObjectHook
	onSkipped []ObjectHook
	onFailed  []FailureHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnCreated implements Foundry.
func (f *foundry) OnCreated(fn ObjectHook) {
	f.hooks.mu.Lock()
	defer f.hooks.mu.Unlock()
	f.hooks.onCreated = append(f.hooks.onCreated, fn)
}

// OnUpdated implements Foundry.
func (f *foundry) OnUpdated(fn ObjectHook) {
	f.hooks.mu.Lock()
	defer f.hooks.mu.Unlock()
	f.hooks.onUpdated = append(f.hooks.onUpdated, fn)
}

// OnSkipped implements Foundry.
func (f *foundry) OnSkipped(fn ObjectHook) {
	f.hooks.mu.Lock()
	defer f.hooks.mu.Unlock()
	f.hooks.onSkipped = append(f.hooks.onSkipped, fn)
}

// OnFailed implements Foundry.
func (f *foundry) OnFailed(fn FailureHook) {
	f.hooks.mu.Lock()
	defer f.hooks.mu.Unlock()
	f.hooks.onFailed = append(f.hooks.onFailed, fn)
}

// trigger dispatches a factory event. Hooks run on the goroutine that
// processed the object.
func (h *hooks) trigger(e factory.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var list []ObjectHook
	switch e.Outcome {
	case factory.Created:
		list = h.onCreated
	case factory.Updated:
		list = h.onUpdated
	case factory.Skipped:
		list = h.onSkipped
	case factory.Blocked, factory.Failed:
		for _, fn := range h.onFailed {
			fn(e.Type, e.Name, e.Err)
		}
		return
	}
	for _, fn := range list {
		fn(e.Type, e.Name, e.URI)
	}
}
