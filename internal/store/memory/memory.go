// Package memory implementa el credential store en memoria para deployments
// de instancia única y para tests. Multi-instancia usa store/pg.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/keybridge/internal/store"
)

type Creds struct {
	mu   sync.RWMutex
	byID map[string]*store.SplitCredential
}

func New() *Creds {
	return &Creds{byID: make(map[string]*store.SplitCredential)}
}

// clone evita que los callers muten el registro interno.
func clone(c *store.SplitCredential) *store.SplitCredential {
	cp := *c
	cp.ServerFragment = append([]byte(nil), c.ServerFragment...)
	cp.CallerFragment = append([]byte(nil), c.CallerFragment...)
	cp.DecryptionSecret = append([]byte(nil), c.DecryptionSecret...)
	return &cp
}

func (m *Creds) Get(_ context.Context, keyID string) (*store.SplitCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[keyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(c), nil
}

func (m *Creds) Create(_ context.Context, c *store.SplitCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.KeyID]; ok {
		return store.ErrAlreadyExists
	}
	cp := clone(c)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.byID[c.KeyID] = cp
	return nil
}

func (m *Creds) Deactivate(_ context.Context, keyID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[keyID]
	if !ok {
		return store.ErrNotFound
	}
	if c.Owner != owner {
		return store.ErrNotOwner
	}
	// Sin camino de reactivación: una vez false, queda false.
	c.Active = false
	return nil
}

func (m *Creds) IncrementUsage(_ context.Context, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[keyID]
	if !ok {
		return store.ErrNotFound
	}
	c.UsageCount++
	c.LastUsedAt = time.Now().UTC()
	return nil
}

func (m *Creds) ListByOwner(_ context.Context, owner string) ([]*store.SplitCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*store.SplitCredential
	for _, c := range m.byID {
		if c.Owner == owner {
			out = append(out, clone(c))
		}
	}
	return out, nil
}
