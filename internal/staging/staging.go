// Package staging holds in-memory, uncommitted field edits (C10) prior to
// a write-back to disk. It has no teacher counterpart — the teacher writes
// straight through on every copy — so its shape is grounded on oncutf's
// staging/undo-aware rename preview model (original_source/), expressed
// here as a plain map-of-maps guarded by a mutex in the same style as the
// other in-process caches in this module.
package staging

import (
	"sync"

	"renamecore/internal/pathkey"
)

// Change is one field's staged value for one file.
type Change struct {
	KeyPath  pathkey.KeyPath
	OldValue string
	NewValue string
}

// Manager tracks staged, not-yet-written field edits per file.
type Manager struct {
	mu     sync.Mutex
	staged map[pathkey.Key]map[string]Change // field key -> Change
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{staged: make(map[pathkey.Key]map[string]Change)}
}

// Stage records newValue for path/keyPath, remembering oldValue the first
// time a field is staged so Changes can report what would be reverted.
func (m *Manager) Stage(path pathkey.Key, kp pathkey.KeyPath, oldValue, newValue string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.staged[path]
	if !ok {
		fields = make(map[string]Change)
		m.staged[path] = fields
	}

	field := kp.String()
	if existing, ok := fields[field]; ok {
		oldValue = existing.OldValue
	}

	if oldValue == newValue {
		delete(fields, field)
		if len(fields) == 0 {
			delete(m.staged, path)
		}
		return
	}

	fields[field] = Change{KeyPath: kp, OldValue: oldValue, NewValue: newValue}
}

// HasStagedChanges reports whether path (or, if path is empty, any file)
// has at least one staged field.
func (m *Manager) HasStagedChanges(path pathkey.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path == "" {
		return len(m.staged) > 0
	}
	return len(m.staged[path]) > 0
}

// Changes returns every staged change for path.
func (m *Manager) Changes(path pathkey.Key) []Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields := m.staged[path]
	out := make([]Change, 0, len(fields))
	for _, c := range fields {
		out = append(out, c)
	}
	return out
}

// AllPaths returns every file with at least one staged change.
func (m *Manager) AllPaths() []pathkey.Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pathkey.Key, 0, len(m.staged))
	for p := range m.staged {
		out = append(out, p)
	}
	return out
}

// Clear discards every staged change for path, or for every file if path
// is empty.
func (m *Manager) Clear(path pathkey.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path == "" {
		m.staged = make(map[pathkey.Key]map[string]Change)
		return
	}
	delete(m.staged, path)
}

// Commit removes path's staged changes after they have been durably
// written, matching the semantics of Clear for a single file but named
// separately so writeback call sites read as "this succeeded" rather than
// "the user discarded this".
func (m *Manager) Commit(path pathkey.Key) {
	m.Clear(path)
}

// ReconcileAgainstOriginal smart-marks a field as no-longer-modified when
// its staged new value equals the on-disk original again (invariant S2:
// a round-trip edit back to the original value is not a pending change).
func (m *Manager) ReconcileAgainstOriginal(path pathkey.Key, kp pathkey.KeyPath, originalValue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.staged[path]
	if !ok {
		return
	}
	field := kp.String()
	change, ok := fields[field]
	if !ok {
		return
	}
	if change.NewValue == originalValue {
		delete(fields, field)
		if len(fields) == 0 {
			delete(m.staged, path)
		}
	}
}
