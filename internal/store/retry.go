package store

import (
	"context"
	"errors"
	"time"
)

// WithRetry decora un Credentials con reintentos acotados SOLO en lecturas
// idempotentes (Get/ListByOwner). Las escrituras (Create, Deactivate,
// IncrementUsage) no se reintentan en silencio: reintentar una mutación
// puede duplicar contadores.
func WithRetry(inner Credentials, attempts int, backoff time.Duration) Credentials {
	if attempts < 1 {
		attempts = 1
	}
	return &retrying{inner: inner, attempts: attempts, backoff: backoff}
}

type retrying struct {
	inner    Credentials
	attempts int
	backoff  time.Duration
}

// retriable: errores de dominio (NotFound, NotOwner...) no se reintentan;
// solo fallas de transporte.
func retriable(err error) bool {
	return err != nil &&
		!errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrAlreadyExists) &&
		!errors.Is(err, ErrNotOwner)
}

func (r *retrying) Get(ctx context.Context, keyID string) (*SplitCredential, error) {
	var c *SplitCredential
	var err error
	for i := 0; i < r.attempts; i++ {
		c, err = r.inner.Get(ctx, keyID)
		if !retriable(err) {
			return c, err
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(r.backoff):
		}
	}
	return c, err
}

func (r *retrying) ListByOwner(ctx context.Context, owner string) ([]*SplitCredential, error) {
	var out []*SplitCredential
	var err error
	for i := 0; i < r.attempts; i++ {
		out, err = r.inner.ListByOwner(ctx, owner)
		if !retriable(err) {
			return out, err
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(r.backoff):
		}
	}
	return out, err
}

func (r *retrying) Create(ctx context.Context, c *SplitCredential) error {
	return r.inner.Create(ctx, c)
}

func (r *retrying) Deactivate(ctx context.Context, keyID, owner string) error {
	return r.inner.Deactivate(ctx, keyID, owner)
}

func (r *retrying) IncrementUsage(ctx context.Context, keyID string) error {
	return r.inner.IncrementUsage(ctx, keyID)
}
