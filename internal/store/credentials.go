package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound: no existe registro activo para el keyID.
	ErrNotFound = errors.New("credential not found")
	// ErrAlreadyExists: keyID duplicado en Create.
	ErrAlreadyExists = errors.New("credential already exists")
	// ErrNotOwner: la operación está scoped al owner y no coincide.
	ErrNotOwner = errors.New("credential owned by another identity")
)

// SplitCredential es una credencial BYOK bajo gestión.
//
// Invariante: el plaintext original NUNCA se persiste en ningún campo.
// ServerFragment, CallerFragment y DecryptionSecret son material derivado;
// CallerFragment se retiene solo para verificación byte a byte en cada uso,
// nunca se devuelve después de la creación.
type SplitCredential struct {
	KeyID            string
	Provider         string
	ServerFragment   []byte // ct[:mid] || tag || nonce — solo server-side
	CallerFragment   []byte // copia de verificación; el caller es el holder real
	DecryptionSecret []byte // clave simétrica por credencial, solo server-side
	Active           bool
	Owner            string
	UsageCount       int64
	LastUsedAt       time.Time
	CreatedAt        time.Time
}

// Credentials es el contrato del credential store externo.
// Las implementaciones deben dar semántica atómica en IncrementUsage.
type Credentials interface {
	// Get devuelve la credencial por keyID (activa o no) o ErrNotFound.
	Get(ctx context.Context, keyID string) (*SplitCredential, error)

	// Create persiste una credencial nueva. ErrAlreadyExists si el keyID ya existe.
	Create(ctx context.Context, c *SplitCredential) error

	// Deactivate marca la credencial como inactiva de forma irreversible.
	// ErrNotOwner si owner no coincide. La desactivación es el estado terminal:
	// los registros no se borran físicamente mientras apliquen requisitos de
	// auditoría.
	Deactivate(ctx context.Context, keyID, owner string) error

	// IncrementUsage incrementa UsageCount y actualiza LastUsedAt.
	IncrementUsage(ctx context.Context, keyID string) error

	// ListByOwner devuelve las credenciales de un owner (sin material sensible
	// es responsabilidad del handler no serializar fragmentos).
	ListByOwner(ctx context.Context, owner string) ([]*SplitCredential, error)
}
