// Package persistence stores serialized games under a save key and moves
// them in and out of the game state.
package persistence

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("save not found")

// Store is a key-value blob store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]SaveInfo, error)
	Close() error
}

// SaveInfo describes one stored save. UpdatedAt is unix milliseconds, zero
// when the backend does not track it.
type SaveInfo struct {
	Key       string `db:"key" json:"key"`
	UpdatedAt int64  `db:"updated_at" json:"updatedAt,omitempty"`
	Size      int    `db:"size" json:"size"`
}

// sortSaves orders most recent first, then by key.
func sortSaves(out []SaveInfo) {
	slices.SortFunc(out, func(a, b SaveInfo) int {
		if c := cmp.Compare(b.UpdatedAt, a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

type memEntry struct {
	value     []byte
	updatedAt int64
}

// MemoryStore keeps saves in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memEntry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.data[key] = memEntry{value: append([]byte(nil), value...), updatedAt: time.Now().UnixMilli()}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]SaveInfo, error) {
	m.mu.RLock()
	out := make([]SaveInfo, 0, len(m.data))
	for k, e := range m.data {
		out = append(out, SaveInfo{Key: k, UpdatedAt: e.updatedAt, Size: len(e.value)})
	}
	m.mu.RUnlock()
	sortSaves(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
