package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/keybridge/internal/forward"
	apperrors "github.com/dropDatabas3/keybridge/internal/http/errors"
	"github.com/dropDatabas3/keybridge/internal/observability/logger"
)

// maxProxyBody acota el payload reenviable al upstream.
const maxProxyBody = 10 << 20 // 10 MiB

// Proxy maneja POST /v1/proxy/{provider}[/*]: corre el pipeline de
// autorización completo y reenvía con la credencial resuelta. La credencial
// plaintext vive únicamente dentro de este handler.
func (d *Deps) Proxy(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !knownProvider(provider) {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("provider inválido"))
		return
	}

	resolved, appErr := d.Auth.Authorize(r.Context(), r, provider)
	if appErr != nil {
		apperrors.WriteError(w, appErr)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
	if err != nil {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("no se pudo leer el body"))
		return
	}

	upstreamPath := chi.URLParam(r, "*")
	resp, err := d.Forwarder.Forward(r.Context(), forward.Request{
		Provider:   provider,
		Method:     r.Method,
		Path:       upstreamPath,
		Header:     r.Header,
		Body:       bytes.NewReader(body),
		Credential: resolved.Credential,
	})
	if err != nil {
		logger.From(r.Context()).Warn("forward failed",
			logger.Provider(provider),
			logger.Source(string(resolved.Method)),
			logger.Err(err))
		apperrors.WriteError(w, apperrors.ErrStoreUnavailable.WithDetail("el proveedor upstream no respondió"))
		return
	}

	logger.From(r.Context()).Info("proxied",
		logger.Provider(provider),
		logger.OwnerID(resolved.Identity),
		logger.Source(string(resolved.Method)),
		logger.Status(resp.StatusCode),
	)

	// Copiar la respuesta upstream tal cual (headers de contenido solamente).
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// knownProvider valida el segmento de path contra caracteres raros antes de
// tocar el pipeline.
func knownProvider(p string) bool {
	if p == "" || len(p) > 64 {
		return false
	}
	return !strings.ContainsAny(p, "/\\ ")
}
