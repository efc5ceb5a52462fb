// Package helpers agrupa utilidades compartidas por los handlers HTTP.
package helpers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/dropDatabas3/keybridge/internal/http/errors"
)

// maxBodyBytes acota el body de requests de API (no aplica al proxy).
const maxBodyBytes = 1 << 20 // 1 MiB

// WriteJSON serializa v con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodifica el body en dst. Devuelve un *AppError listo para
// escribir si el body es inválido.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) *apperrors.AppError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.ErrInvalidJSON.WithCause(err)
	}
	return nil
}
