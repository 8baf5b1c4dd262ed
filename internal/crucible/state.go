package crucible

import (
	"sort"
	"sync"

	"github.com/agentstation/foundry/pkg/records"
)

// BlockedSet holds the natural keys and identifiers of blocked objects of
// one type. It only grows during a run.
type BlockedSet struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// Add blocks every non-empty key.
func (b *BlockedSet) Add(keys ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.keys == nil {
		b.keys = make(map[string]struct{})
	}
	for _, k := range keys {
		if k != "" {
			b.keys[k] = struct{}{}
		}
	}
}

// Has reports whether key is blocked.
func (b *BlockedSet) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.keys[key]
	return ok
}

// Len returns the number of blocked keys.
func (b *BlockedSet) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.keys)
}

// Keys returns the blocked keys in sorted order.
func (b *BlockedSet) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.keys))
	for k := range b.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// State is the resolver state of a single ingestion run. The orchestrator
// creates one per run and passes it to every resolver call, in dependency
// order, so that parents are blocked before their children are examined.
type State struct {
	mu      sync.Mutex
	blocked map[records.ObjectType]*BlockedSet
}

// NewState creates an empty run state.
func NewState() *State {
	return &State{blocked: make(map[records.ObjectType]*BlockedSet)}
}

// Blocked returns the blocked set for t.
func (s *State) Blocked(t records.ObjectType) *BlockedSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocked[t]
	if !ok {
		b = &BlockedSet{}
		s.blocked[t] = b
	}
	return b
}

// Block adds keys to the blocked set for t.
func (s *State) Block(t records.ObjectType, keys ...string) {
	s.Blocked(t).Add(keys...)
}

// IsBlocked reports whether key is blocked for t.
func (s *State) IsBlocked(t records.ObjectType, key string) bool {
	return s.Blocked(t).Has(key)
}

// Unblocked returns the references in refs that are not blocked for t.
func (s *State) Unblocked(t records.ObjectType, refs []string) []string {
	b := s.Blocked(t)
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if !b.Has(ref) {
			out = append(out, ref)
		}
	}
	return out
}
