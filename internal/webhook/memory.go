package webhook

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implementa Store en memoria (instancia única / tests).
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*Registration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Registration)}
}

func (m *MemoryStore) Create(_ context.Context, reg *Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *reg
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.byID[reg.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (m *MemoryStore) ListActive(_ context.Context) ([]*Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Registration
	for _, reg := range m.byID {
		if reg.Active {
			cp := *reg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) Deactivate(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	reg.Active = false
	reg.DeactivatedReason = reason
	return nil
}
