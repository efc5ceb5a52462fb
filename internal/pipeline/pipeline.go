// Package pipeline implementa la cadena de autorización del gateway:
// address gate → sesión (incl. revocación) → cuota → resolución de
// credencial. Orden fijo, fail-fast: ninguna etapa corre si una anterior
// falló, y el rechazo es terminal para ese request.
//
//	RECEIVED → ADDRESS_CHECKED → SESSION_VALID → QUOTA_OK →
//	CREDENTIAL_RESOLVED → FORWARDED|REJECTED
package pipeline

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dropDatabas3/keybridge/internal/access"
	apperrors "github.com/dropDatabas3/keybridge/internal/http/errors"
	"github.com/dropDatabas3/keybridge/internal/jwtx"
	"github.com/dropDatabas3/keybridge/internal/metrics"
	"github.com/dropDatabas3/keybridge/internal/observability/logger"
	"github.com/dropDatabas3/keybridge/internal/quota"
	"github.com/dropDatabas3/keybridge/internal/revocation"
	"github.com/dropDatabas3/keybridge/internal/security/token"
	"github.com/dropDatabas3/keybridge/internal/splitkey"
)

// Headers BYOK: contrato bit-exacto. Ambos presentes o el request es modo
// server-credential; nunca un modo BYOK parcial/degradado.
const (
	HeaderKeyID    = "X-Split-Key-Id"
	HeaderFragment = "X-Split-Key-Fragment"

	minKeyIDLen    = 8
	minFragmentLen = 16
)

// Etapas, para logs y métricas.
const (
	StageAddress    = "address"
	StageSession    = "session"
	StageQuota      = "quota"
	StageCredential = "credential"
)

var keyIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Method etiqueta el origen de la credencial resuelta.
type Method string

const (
	MethodServerHeld Method = "server"
	MethodBYOK       Method = "byok"
)

// Resolved es el resultado del pipeline: la credencial plaintext etiquetada
// con su método de resolución. Vive exactamente lo que dura la llamada
// forwardeada; el caller la descarta después, pase lo que pase.
type Resolved struct {
	Method     Method
	Provider   string
	Credential string
	Identity   string
	ClientIP   string
}

// ServerCredentials resuelve la credencial server-held de un provider.
type ServerCredentials interface {
	// CredentialFor devuelve la credencial configurada o "" si no hay.
	CredentialFor(ctx context.Context, provider string) (string, error)
}

// StaticServerCredentials es la implementación config-backed.
type StaticServerCredentials map[string]string

func (s StaticServerCredentials) CredentialFor(_ context.Context, provider string) (string, error) {
	return s[provider], nil
}

// Authorizer orquesta las cuatro etapas contra los stores externos.
type Authorizer struct {
	Rules      access.RuleStore
	TrustProxy bool
	Issuer     *jwtx.Issuer
	Revoked    revocation.Store
	Counters   quota.CounterStore
	Engine     *splitkey.Engine
	ServerKeys ServerCredentials

	// RuleRetries acota reintentos del rule lookup (lectura idempotente).
	RuleRetries int
	// StoreTimeout acota cada llamada a store externo.
	StoreTimeout time.Duration
}

func (a *Authorizer) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	t := a.StoreTimeout
	if t <= 0 {
		t = 3 * time.Second
	}
	return context.WithTimeout(ctx, t)
}

// Authorize corre la cadena completa. Devuelve la credencial resuelta o el
// *AppError de la primera etapa que rechazó.
func (a *Authorizer) Authorize(ctx context.Context, r *http.Request, provider string) (*Resolved, *apperrors.AppError) {
	log := logger.From(ctx)

	// ---- Etapa 1: address gate (fail-closed) ----
	ip, err := access.ClientIP(r, a.TrustProxy)
	if err != nil {
		log.Info("pipeline reject", logger.Stage(StageAddress), logger.Reason("unresolvable"))
		metrics.PipelineRejections.WithLabelValues(StageAddress).Inc()
		return nil, apperrors.ErrUnresolvableAddress
	}
	decision, err := a.checkRules(ctx, ip)
	if err != nil {
		// Outage del rule store NO es default-allow: esta etapa cierra.
		log.Warn("rule store unavailable", logger.Stage(StageAddress), logger.Err(err))
		return nil, apperrors.ErrStoreUnavailable
	}
	if !decision.Allowed {
		log.Info("pipeline reject", logger.Stage(StageAddress),
			logger.ClientIP(ip), logger.Reason(decision.Reason))
		metrics.PipelineRejections.WithLabelValues(StageAddress).Inc()
		return nil, apperrors.ErrAddressDenied
	}

	// ---- Etapa 2: sesión (revocación primero, después firma) ----
	raw := bearerToken(r)
	if raw == "" {
		metrics.PipelineRejections.WithLabelValues(StageSession).Inc()
		return nil, apperrors.ErrTokenMissing
	}
	fp := token.Fingerprint(raw)
	sctx, cancel := a.storeCtx(ctx)
	revoked, err := a.Revoked.Exists(sctx, fp)
	cancel()
	if err != nil {
		log.Warn("revocation store unavailable", logger.Stage(StageSession), logger.Err(err))
		return nil, apperrors.ErrStoreUnavailable
	}
	if revoked {
		// Razón distinguible a propósito: "volvé a loguearte" ≠ "token roto".
		log.Info("pipeline reject", logger.Stage(StageSession),
			logger.Fingerprint(fp), logger.Reason("revoked"))
		metrics.PipelineRejections.WithLabelValues(StageSession).Inc()
		return nil, apperrors.ErrTokenRevoked
	}
	claims, err := a.Issuer.Parse(raw)
	if err != nil {
		log.Info("pipeline reject", logger.Stage(StageSession), logger.Reason("invalid"))
		metrics.PipelineRejections.WithLabelValues(StageSession).Inc()
		return nil, apperrors.ErrTokenInvalid
	}
	identity := jwtx.Subject(claims)
	if identity == "" {
		metrics.PipelineRejections.WithLabelValues(StageSession).Inc()
		return nil, apperrors.ErrTokenInvalid
	}

	// ---- Etapa 3: cuota (check-and-increment atómico) ----
	sctx, cancel = a.storeCtx(ctx)
	snap, ok, err := a.Counters.Allow(sctx, identity)
	cancel()
	if err != nil {
		log.Warn("counter store unavailable", logger.Stage(StageQuota), logger.Err(err))
		return nil, apperrors.ErrStoreUnavailable
	}
	if !ok {
		log.Info("pipeline reject", logger.Stage(StageQuota), logger.OwnerID(identity))
		metrics.PipelineRejections.WithLabelValues(StageQuota).Inc()
		return nil, apperrors.ErrQuotaExceeded.WithMeta(snap)
	}

	// ---- Etapa 4: resolución de credencial ----
	keyID := strings.TrimSpace(r.Header.Get(HeaderKeyID))
	fragment := strings.TrimSpace(r.Header.Get(HeaderFragment))

	switch {
	case keyID != "" && fragment != "":
		if appErr := validateBYOKHeaders(keyID, fragment); appErr != nil {
			metrics.PipelineRejections.WithLabelValues(StageCredential).Inc()
			return nil, appErr
		}
		sctx, cancel = a.storeCtx(ctx)
		plain, err := a.Engine.ReconstructOwned(sctx, keyID, identity, fragment)
		cancel()
		if err != nil {
			if errors.Is(err, splitkey.ErrNotFound) ||
				errors.Is(err, splitkey.ErrFragmentMismatch) ||
				errors.Is(err, splitkey.ErrDecryptionFailed) {
				// Colapso deliberado: not-found, mismatch y tamper son
				// indistinguibles para el caller (sin oráculo).
				log.Info("pipeline reject", logger.Stage(StageCredential),
					logger.KeyID(keyID), logger.Reason("splitkey"))
				metrics.PipelineRejections.WithLabelValues(StageCredential).Inc()
				metrics.ReconstructOutcomes.WithLabelValues("failed").Inc()
				return nil, apperrors.ErrSplitKeyAuth
			}
			log.Warn("credential store unavailable", logger.Stage(StageCredential), logger.Err(err))
			return nil, apperrors.ErrStoreUnavailable
		}
		metrics.ReconstructOutcomes.WithLabelValues("ok").Inc()
		return &Resolved{
			Method: MethodBYOK, Provider: provider,
			Credential: plain, Identity: identity, ClientIP: ip,
		}, nil

	case keyID != "" || fragment != "":
		// Un solo header: estado de error, nunca BYOK degradado.
		metrics.PipelineRejections.WithLabelValues(StageCredential).Inc()
		return nil, apperrors.ErrMalformedSplitKeyHeaders.WithDetail(
			"ambos headers de Split Key deben estar presentes juntos")

	default:
		sctx, cancel = a.storeCtx(ctx)
		cred, err := a.ServerKeys.CredentialFor(sctx, provider)
		cancel()
		if err != nil {
			return nil, apperrors.ErrStoreUnavailable
		}
		if cred == "" {
			// Estado operacional, no falla de seguridad: distinguible en logs.
			log.Warn("no server credential configured",
				logger.Stage(StageCredential), logger.Provider(provider))
			return nil, apperrors.ErrNoServerCredential
		}
		return &Resolved{
			Method: MethodServerHeld, Provider: provider,
			Credential: cred, Identity: identity, ClientIP: ip,
		}, nil
	}
}

// checkRules consulta el rule store con reintentos acotados (lectura
// idempotente) y evalúa deny-gana / allow / default-open.
func (a *Authorizer) checkRules(ctx context.Context, ip string) (access.Decision, error) {
	attempts := a.RuleRetries
	if attempts < 1 {
		attempts = 2
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		sctx, cancel := a.storeCtx(ctx)
		d, err := access.Check(sctx, a.Rules, ip)
		cancel()
		if err == nil {
			return d, nil
		}
		lastErr = err
	}
	return access.Decision{}, lastErr
}

func validateBYOKHeaders(keyID, fragment string) *apperrors.AppError {
	if len(keyID) < minKeyIDLen {
		return apperrors.ErrMalformedSplitKeyHeaders.WithDetail("key id demasiado corto")
	}
	if !keyIDRe.MatchString(keyID) {
		return apperrors.ErrMalformedSplitKeyHeaders.WithDetail("key id con caracteres inválidos")
	}
	if len(fragment) < minFragmentLen {
		return apperrors.ErrMalformedSplitKeyHeaders.WithDetail("fragmento demasiado corto")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}
