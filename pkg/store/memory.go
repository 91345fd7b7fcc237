package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// MemoryStore implements Store using a map.
type MemoryStore struct {
	mu    sync.RWMutex
	units map[int]*types.MountedUnit // keyed by hook id
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		units: make(map[int]*types.MountedUnit),
	}
}

// Put stores a unit.
func (m *MemoryStore) Put(u *types.MountedUnit) error {
	if u == nil {
		return fmt.Errorf("nil unit")
	}
	if u.HookID <= 0 {
		return fmt.Errorf("invalid hook id %d", u.HookID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.units[u.HookID] = u
	return nil
}

// Get retrieves the unit for a hook id.
func (m *MemoryStore) Get(hookID int) (*types.MountedUnit, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.units[hookID]
	return u, ok
}

// Delete removes a unit.
func (m *MemoryStore) Delete(hookID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.units, hookID)
	return nil
}

// IDs returns the stored hook ids in ascending order.
func (m *MemoryStore) IDs() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int, 0, len(m.units))
	for id := range m.units {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of stored units.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.units)
}

// Reset removes every unit.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.units)
}
