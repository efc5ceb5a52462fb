package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestID_GeneratesAndPropagates(t *testing.T) {
	t.Parallel()

	var fromCtx string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = GetRequestID(r.Context())
	}), WithRequestID())

	// Sin header: se genera un ID opaco nuevo.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if fromCtx == "" {
		t.Fatal("request id no generado")
	}
	if got := rec.Header().Get("X-Request-ID"); got != fromCtx {
		t.Fatalf("header/contexto desincronizados: %q vs %q", got, fromCtx)
	}

	// Con header del cliente: se propaga tal cual.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "cliente-123")
	h.ServeHTTP(rec, req)
	if fromCtx != "cliente-123" {
		t.Fatalf("no propagó el id del cliente: %q", fromCtx)
	}
}
