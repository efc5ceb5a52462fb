package handlers

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/keybridge/internal/http/helpers"
)

var startedAt = time.Now()

// Healthz responde el estado del proceso. No toca stores externos: un
// backend caído se reporta por request (503) y por métricas, no acá.
func (d *Deps) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime_s":  int64(time.Since(startedAt).Seconds()),
		"timestamp": time.Now().UTC(),
	})
}
