package handlers

import (
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/keybridge/internal/http/errors"
	"github.com/dropDatabas3/keybridge/internal/http/helpers"
	"github.com/dropDatabas3/keybridge/internal/http/middlewares"
	"github.com/dropDatabas3/keybridge/internal/metrics"
	"github.com/dropDatabas3/keybridge/internal/safeurl"
)

type registerWebhookRequest struct {
	URL string `json:"url"`
}

type registerWebhookResponse struct {
	WebhookID string `json:"webhook_id"`
	URL       string `json:"url"`
	Active    bool   `json:"active"`
}

// RegisterWebhook maneja POST /v1/webhooks. La URL pasa por el validador de
// seguridad acá (registro) y de nuevo antes de cada envío.
func (d *Deps) RegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req registerWebhookRequest
	if appErr := helpers.ReadJSON(w, r, &req); appErr != nil {
		apperrors.WriteError(w, appErr)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("url requerida"))
		return
	}

	owner := middlewares.GetIdentity(r.Context())
	reg, err := d.Registrar.Register(r.Context(), owner, req.URL)
	if err != nil {
		var verr *safeurl.Error
		if errors.As(err, &verr) {
			metrics.URLValidatorVerdicts.WithLabelValues("rejected").Inc()
			apperrors.WriteError(w, apperrors.ErrUnsafeURL.WithDetail(verr.Reason))
			return
		}
		apperrors.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
		return
	}

	metrics.URLValidatorVerdicts.WithLabelValues("allowed").Inc()
	helpers.WriteJSON(w, http.StatusCreated, registerWebhookResponse{
		WebhookID: reg.ID,
		URL:       reg.URL,
		Active:    reg.Active,
	})
}
