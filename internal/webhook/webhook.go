// Package webhook maneja destinos de callback registrados por operadores.
//
// La URL de un destino se valida DOS veces: al registrarla y de nuevo,
// de forma independiente, inmediatamente antes de cada envío. Un destino que
// falla la validación pre-dispatch se desactiva entero (no solo se saltea el
// envío): una URL que se volvió insegura se presume comprometida o mal
// configurada hasta que se re-registre.
package webhook

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("webhook: registration not found")
	ErrNotOwner = errors.New("webhook: owned by another identity")
)

// Registration es un destino de callback.
type Registration struct {
	ID                string
	OwnerID           string
	URL               string
	Active            bool
	CreatedAt         time.Time
	DeactivatedReason string
}

// Store es el registro persistente de destinos.
type Store interface {
	Create(ctx context.Context, reg *Registration) error
	Get(ctx context.Context, id string) (*Registration, error)
	ListActive(ctx context.Context) ([]*Registration, error)
	// Deactivate apaga el destino con una razón; no hay borrado físico.
	Deactivate(ctx context.Context, id, reason string) error
}

// Validator abstrae el safety validator para registro y pre-dispatch.
type Validator interface {
	Validate(rawURL string) error
}
