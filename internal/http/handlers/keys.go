package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/keybridge/internal/audit"
	apperrors "github.com/dropDatabas3/keybridge/internal/http/errors"
	"github.com/dropDatabas3/keybridge/internal/http/helpers"
	"github.com/dropDatabas3/keybridge/internal/http/middlewares"
	"github.com/dropDatabas3/keybridge/internal/observability/logger"
	"github.com/dropDatabas3/keybridge/internal/store"
	"github.com/dropDatabas3/keybridge/internal/webhook"
)

type createKeyRequest struct {
	Provider   string `json:"provider"`
	Credential string `json:"credential"`
	KeyID      string `json:"key_id,omitempty"`
}

type createKeyResponse struct {
	KeyID    string `json:"key_id"`
	Provider string `json:"provider"`
	// CallerFragment se entrega exactamente una vez, acá. No existe
	// endpoint de recuperación.
	CallerFragment string `json:"caller_fragment"`
}

// keySummary es la vista de listado: jamás incluye material criptográfico.
type keySummary struct {
	KeyID      string    `json:"key_id"`
	Provider   string    `json:"provider"`
	Active     bool      `json:"active"`
	UsageCount int64     `json:"usage_count"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateKey maneja POST /v1/keys: divide la credencial y devuelve el
// fragmento del caller una única vez.
func (d *Deps) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if appErr := helpers.ReadJSON(w, r, &req); appErr != nil {
		apperrors.WriteError(w, appErr)
		return
	}
	req.Provider = strings.TrimSpace(req.Provider)
	if req.Provider == "" || strings.TrimSpace(req.Credential) == "" {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("provider y credential son requeridos"))
		return
	}
	keyID := strings.TrimSpace(req.KeyID)
	if keyID == "" {
		keyID = uuid.NewString()
	}

	owner := middlewares.GetIdentity(r.Context())
	res, err := d.Engine.Split(r.Context(), req.Credential, req.Provider, keyID, owner)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("key_id ya existe"))
			return
		}
		logger.From(r.Context()).Error("split failed", logger.Err(err))
		apperrors.WriteError(w, apperrors.ErrInternal.WithCause(err))
		return
	}

	audit.Log(r.Context(), "key.created", map[string]any{
		"key_id":   res.KeyID,
		"owner_id": owner,
		"provider": req.Provider,
	})
	helpers.WriteJSON(w, http.StatusCreated, createKeyResponse{
		KeyID:          res.KeyID,
		Provider:       req.Provider,
		CallerFragment: res.CallerFragment,
	})
}

// ListKeys maneja GET /v1/keys: resumen de credenciales del owner.
func (d *Deps) ListKeys(w http.ResponseWriter, r *http.Request) {
	owner := middlewares.GetIdentity(r.Context())
	creds, err := d.Creds.ListByOwner(r.Context(), owner)
	if err != nil {
		apperrors.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
		return
	}
	out := make([]keySummary, 0, len(creds))
	for _, c := range creds {
		out = append(out, keySummary{
			KeyID:      c.KeyID,
			Provider:   c.Provider,
			Active:     c.Active,
			UsageCount: c.UsageCount,
			LastUsedAt: c.LastUsedAt,
			CreatedAt:  c.CreatedAt,
		})
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"keys": out})
}

// DeactivateKey maneja DELETE /v1/keys/{keyID}. La desactivación es
// terminal: no hay reactivación ni borrado físico.
func (d *Deps) DeactivateKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")
	owner := middlewares.GetIdentity(r.Context())

	err := d.Creds.Deactivate(r.Context(), keyID, owner)
	switch {
	case errors.Is(err, store.ErrNotFound):
		apperrors.WriteError(w, apperrors.ErrNotFound)
		return
	case errors.Is(err, store.ErrNotOwner):
		apperrors.WriteError(w, apperrors.ErrNotOwner)
		return
	case err != nil:
		apperrors.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
		return
	}

	audit.Log(r.Context(), "key.deactivated", map[string]any{
		"key_id":   keyID,
		"owner_id": owner,
	})
	if d.Events != nil {
		// Notificación best-effort, fuera del camino de la respuesta.
		go d.Events.Broadcast(context.WithoutCancel(r.Context()), webhook.Event{
			Type: "key.deactivated",
			Data: map[string]any{"key_id": keyID, "owner_id": owner},
		})
	}
	w.WriteHeader(http.StatusNoContent)
}
