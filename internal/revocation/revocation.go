// Package revocation trackea tokens de sesión invalidados explícitamente
// (logout). Cada entrada expira sola en el exp natural del token: ninguna
// entrada sobrevive al token que revoca y ninguna se renueva.
package revocation

import (
	"context"
	"time"
)

// Entry mapea un fingerprint de token (nunca el token crudo) a la identidad
// y la IP que lo revocaron, con expiry absoluto igual al exp del token.
type Entry struct {
	Fingerprint string
	OwnerID     string
	SourceIP    string
	ExpiresAt   time.Time
}

// Store es el revocation store externo. Implementaciones: memoria (go-cache,
// instancia única) y redis (multi-instancia, TTL nativo).
type Store interface {
	// Put registra la revocación. Idempotente: una entrada existente no se
	// renueva ni se reemplaza. Entradas ya vencidas no se registran.
	Put(ctx context.Context, e Entry) error

	// Exists indica si el fingerprint está revocado.
	Exists(ctx context.Context, fingerprint string) (bool, error)

	// SweepExpired purga entradas pasadas de su expiry natural y devuelve
	// cuántas quedaron vivas. Jamás borra una entrada antes de tiempo:
	// hacerlo re-admitiría un token revocado.
	SweepExpired(ctx context.Context) (int, error)
}
