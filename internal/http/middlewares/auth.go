package middlewares

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/keybridge/internal/http/errors"
	"github.com/dropDatabas3/keybridge/internal/jwtx"
	"github.com/dropDatabas3/keybridge/internal/revocation"
	"github.com/dropDatabas3/keybridge/internal/security/token"
)

const identityKey ctxKey = iota + 100

func setIdentity(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, identityKey, sub)
}

// GetIdentity devuelve la identidad autenticada del contexto ("" si no hay).
func GetIdentity(ctx context.Context) string {
	sub, _ := ctx.Value(identityKey).(string)
	return sub
}

// BearerToken extrae el token del header Authorization ("" si no hay).
func BearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}

// WithAuth exige sesión válida para endpoints de gestión. La revocación se
// consulta ANTES de verificar la firma, igual que en el pipeline del proxy:
// un token revocado responde TOKEN_REVOKED aunque también estuviera roto.
func WithAuth(issuer *jwtx.Issuer, revoked revocation.Store) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				apperrors.WriteError(w, apperrors.ErrTokenMissing)
				return
			}
			fp := token.Fingerprint(raw)
			rev, err := revoked.Exists(r.Context(), fp)
			if err != nil {
				apperrors.WriteError(w, apperrors.ErrStoreUnavailable)
				return
			}
			if rev {
				apperrors.WriteError(w, apperrors.ErrTokenRevoked)
				return
			}
			claims, err := issuer.Parse(raw)
			if err != nil {
				apperrors.WriteError(w, apperrors.ErrTokenInvalid)
				return
			}
			sub := jwtx.Subject(claims)
			if sub == "" {
				apperrors.WriteError(w, apperrors.ErrTokenInvalid)
				return
			}
			next.ServeHTTP(w, r.WithContext(setIdentity(r.Context(), sub)))
		})
	}
}
