package revocation

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory implementa Store sobre go-cache con TTL por entrada.
// El janitor interno ya purga vencidos; SweepExpired existe además como
// barrido explícito de baja prioridad disparado desde main.
type Memory struct {
	c *gocache.Cache
}

func NewMemory() *Memory {
	// Sin TTL default: cada Put fija el suyo. Janitor cada 5 minutos.
	return &Memory{c: gocache.New(gocache.NoExpiration, 5*time.Minute)}
}

func (m *Memory) Put(_ context.Context, e Entry) error {
	ttl := time.Until(e.ExpiresAt)
	if ttl <= 0 {
		// El token ya venció por su cuenta: revocarlo no agrega nada.
		return nil
	}
	// Add (no Set): una entrada existente nunca se renueva.
	_ = m.c.Add(e.Fingerprint, e, ttl)
	return nil
}

func (m *Memory) Exists(_ context.Context, fingerprint string) (bool, error) {
	_, ok := m.c.Get(fingerprint)
	return ok, nil
}

func (m *Memory) SweepExpired(_ context.Context) (int, error) {
	m.c.DeleteExpired()
	return m.c.ItemCount(), nil
}
