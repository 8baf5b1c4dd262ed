// Package idstore persists the persistent identifiers assigned to objects,
// keyed by object type and natural key, so a later run reuses them instead
// of minting new ones.
package idstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
)

// Store is a name to handle map per object type, saved as one JSON file.
type Store struct {
	mu    sync.RWMutex
	fs    afero.Fs
	path  string
	ids   map[records.ObjectType]map[string]string
	dirty bool
}

// Open loads the store at path. A missing file yields an empty store.
func Open(fs afero.Fs, path string) (*Store, error) {
	s := &Store{fs: fs, path: path, ids: map[records.ObjectType]map[string]string{}}

	data, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.ids); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	return s, nil
}

// Get returns the handle stored for name.
func (s *Store) Get(t records.ObjectType, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.ids[t][name]
	return h, ok
}

// Set records handle for name.
func (s *Store) Set(t records.ObjectType, name, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[t] == nil {
		s.ids[t] = map[string]string{}
	}
	if s.ids[t][name] == handle {
		return
	}
	s.ids[t][name] = handle
	s.dirty = true
}

// Names returns the stored names for t in sorted order.
func (s *Store) Names(t records.ObjectType) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.ids[t]))
	for n := range s.ids[t] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Save writes the store if it changed since it was opened. The file holds
// identifiers only but is written owner-readable.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(s.ids, "", "    ")
	if err != nil {
		return errors.WrapParse("json", s.path, err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapIO("mkdir", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, data, constants.SecureFilePermissions); err != nil {
		return errors.WrapIO("write", s.path, err)
	}
	s.dirty = false
	return nil
}
