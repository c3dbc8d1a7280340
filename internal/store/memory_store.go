package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tessaro/memopipe/internal/models"
)

// MemoryStore is an in-process implementation of Store for tests and hosts
// that run without a database. Stored records are deep-copied through JSON so
// callers can never mutate what the store holds.
type MemoryStore struct {
	mu        sync.RWMutex
	memories  map[string]models.Memory
	encrypted bool
}

// NewMemoryStore creates an in-process store. encryptedCapable declares
// whether the host treats this channel as safe for confidential-and-above
// content.
func NewMemoryStore(encryptedCapable bool) *MemoryStore {
	return &MemoryStore{
		memories:  make(map[string]models.Memory),
		encrypted: encryptedCapable,
	}
}

// Write inserts or overwrites a memory by id.
func (m *MemoryStore) Write(_ context.Context, memory models.Memory) error {
	cloned, err := cloneMemory(memory)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memories[memory.ID] = cloned
	return nil
}

// ReadPartition returns the memories of one (category, contact) partition,
// oldest first.
func (m *MemoryStore) ReadPartition(_ context.Context, category models.Category, contactID string, includeArchived bool) ([]models.Memory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Memory
	for _, mem := range m.memories {
		if mem.Category != category || mem.Provenance.ContactID != contactID {
			continue
		}
		if mem.IsTombstoned() && !includeArchived {
			continue
		}
		cloned, err := cloneMemory(mem)
		if err != nil {
			return nil, err
		}
		out = append(out, cloned)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Get retrieves a single memory by id.
func (m *MemoryStore) Get(_ context.Context, id string) (*models.Memory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.memories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cloned, err := cloneMemory(mem)
	if err != nil {
		return nil, err
	}
	return &cloned, nil
}

// SetVisibility updates a memory's visibility flag.
func (m *MemoryStore) SetVisibility(_ context.Context, id string, v models.Visibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	mem.Visibility = v
	m.memories[id] = mem
	return nil
}

// Stats returns collection statistics computed from the in-process map.
func (m *MemoryStore) Stats(_ context.Context) (*models.PartitionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.PartitionStats{
		TotalMemories: int64(len(m.memories)),
		ByCategory:    make(map[string]int64),
	}
	for _, mem := range m.memories {
		stats.ByCategory[string(mem.Category)]++
		if mem.IsTombstoned() {
			stats.Tombstoned++
		}
	}
	return stats, nil
}

// EncryptedCapable reports the flag the store was created with.
func (m *MemoryStore) EncryptedCapable() bool { return m.encrypted }

// Close is a no-op for the in-process store.
func (m *MemoryStore) Close() error { return nil }

// cloneMemory deep-copies a memory through its JSON form.
func cloneMemory(mem models.Memory) (models.Memory, error) {
	raw, err := json.Marshal(mem)
	if err != nil {
		return models.Memory{}, fmt.Errorf("store: encoding memory %s: %w", mem.ID, err)
	}
	var out models.Memory
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.Memory{}, fmt.Errorf("store: decoding memory %s: %w", mem.ID, err)
	}
	return out, nil
}
