package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/keybridge/internal/access"
	"github.com/dropDatabas3/keybridge/internal/audit"
	apperrors "github.com/dropDatabas3/keybridge/internal/http/errors"
	"github.com/dropDatabas3/keybridge/internal/http/helpers"
	"github.com/dropDatabas3/keybridge/internal/http/middlewares"
	"github.com/dropDatabas3/keybridge/internal/jwtx"
	"github.com/dropDatabas3/keybridge/internal/observability/logger"
	"github.com/dropDatabas3/keybridge/internal/revocation"
	"github.com/dropDatabas3/keybridge/internal/security/password"
	"github.com/dropDatabas3/keybridge/internal/security/token"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// dummyHash mantiene el costo de Verify parejo cuando el usuario no existe.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login maneja POST /v1/auth/login con credenciales de operador.
func (d *Deps) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if appErr := helpers.ReadJSON(w, r, &req); appErr != nil {
		apperrors.WriteError(w, appErr)
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	phc, ok := d.Operators[req.Username]
	if !ok {
		// Misma rama de costo que un usuario real.
		password.Verify(req.Password, dummyHash)
		apperrors.WriteError(w, apperrors.ErrInvalidCredentials)
		return
	}
	if !password.Verify(req.Password, phc) {
		apperrors.WriteError(w, apperrors.ErrInvalidCredentials)
		return
	}

	tok, exp, err := d.Issuer.IssueAccess(req.Username, nil)
	if err != nil {
		logger.From(r.Context()).Error("issue token failed", logger.Err(err))
		apperrors.WriteError(w, apperrors.ErrInternal.WithCause(err))
		return
	}

	audit.Log(r.Context(), "auth.login", map[string]any{"owner_id": req.Username})
	helpers.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
	})
}

// Logout maneja POST /v1/auth/logout: registra el fingerprint del token en
// el revocation store con expiry igual al exp del propio token. La entrada
// nunca se renueva y nunca sobrevive al token.
func (d *Deps) Logout(w http.ResponseWriter, r *http.Request) {
	raw := middlewares.BearerToken(r)
	claims, err := d.Issuer.Parse(raw)
	if err != nil {
		// WithAuth ya validó; esto solo cubre carreras de expiración.
		apperrors.WriteError(w, apperrors.ErrTokenInvalid)
		return
	}

	ip, _ := access.ClientIP(r, d.TrustProxy)
	fp := token.Fingerprint(raw)
	entry := revocation.Entry{
		Fingerprint: fp,
		OwnerID:     jwtx.Subject(claims),
		SourceIP:    ip,
		ExpiresAt:   jwtx.ExpiryOf(claims),
	}
	if err := d.Revoked.Put(r.Context(), entry); err != nil {
		apperrors.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
		return
	}

	audit.Log(r.Context(), "auth.logout", map[string]any{
		"owner_id":    entry.OwnerID,
		"fingerprint": fp,
		"source_ip":   ip,
	})
	w.WriteHeader(http.StatusNoContent)
}
