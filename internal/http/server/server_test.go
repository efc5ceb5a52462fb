package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/keybridge/internal/access"
	"github.com/dropDatabas3/keybridge/internal/forward"
	"github.com/dropDatabas3/keybridge/internal/http/handlers"
	"github.com/dropDatabas3/keybridge/internal/jwtx"
	"github.com/dropDatabas3/keybridge/internal/pipeline"
	"github.com/dropDatabas3/keybridge/internal/quota"
	"github.com/dropDatabas3/keybridge/internal/rate"
	"github.com/dropDatabas3/keybridge/internal/revocation"
	"github.com/dropDatabas3/keybridge/internal/safeurl"
	"github.com/dropDatabas3/keybridge/internal/security/password"
	"github.com/dropDatabas3/keybridge/internal/splitkey"
	memstore "github.com/dropDatabas3/keybridge/internal/store/memory"
	"github.com/dropDatabas3/keybridge/internal/webhook"
)

// fixture arma el gateway entero con stores en memoria y un upstream falso.
type fixture struct {
	srv      *Server
	upstream *httptest.Server
	gotAuth  chan string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gotAuth := make(chan string, 8)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"upstream":"ok"}`))
	}))
	t.Cleanup(upstream.Close)

	creds := memstore.New()
	engine := splitkey.NewEngine(creds)
	issuer, err := jwtx.NewIssuer("keybridge-test", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	revoked := revocation.NewMemory()
	counters := quota.NewMemory(quota.Ceilings{DailyDefault: 100, MonthlyDefault: 1000})

	hash, err := password.Hash(password.Default, "secreto-operador")
	if err != nil {
		t.Fatal(err)
	}

	fwd := &forward.HTTPForwarder{
		BaseURLs: map[string]string{"openai": upstream.URL},
		Client:   upstream.Client(),
	}

	deps := &handlers.Deps{
		Engine:  engine,
		Creds:   creds,
		Issuer:  issuer,
		Revoked: revoked,
		Auth: &pipeline.Authorizer{
			Rules:      access.NewMemoryRules(),
			Issuer:     issuer,
			Revoked:    revoked,
			Counters:   counters,
			Engine:     engine,
			ServerKeys: pipeline.StaticServerCredentials{"openai": "sk-server-held"},
		},
		Forwarder: fwd,
		Registrar: &webhook.Registrar{Store: webhook.NewMemoryStore(), Validator: safeurl.New()},
		Operators: map[string]string{"ops": hash},
	}

	srv := New(Options{Addr: ":0", Limiter: rate.NewMemoryLimiter(1000, time.Minute)}, deps)
	return &fixture{srv: srv, upstream: upstream, gotAuth: gotAuth}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any, extra map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.9:4242"
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "ops", "password": "secreto-operador",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.AccessToken
}

func TestEndToEnd_BYOKLifecycle(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	// Registrar la credencial: el fragmento del caller se entrega una vez.
	w := f.do(t, http.MethodPost, "/v1/keys", tok, map[string]string{
		"provider": "openai", "credential": "sk-abc123",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create key: %d %s", w.Code, w.Body)
	}
	var created struct {
		KeyID          string `json:"key_id"`
		CallerFragment string `json:"caller_fragment"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if len(created.CallerFragment) < 16 {
		t.Fatalf("fragmento corto: %q", created.CallerFragment)
	}

	// Proxy BYOK: el upstream tiene que ver la credencial original.
	w = f.do(t, http.MethodPost, "/v1/proxy/openai/v1/chat/completions", tok,
		map[string]string{"model": "gpt"},
		map[string]string{
			"X-Split-Key-Id":       created.KeyID,
			"X-Split-Key-Fragment": created.CallerFragment,
		})
	if w.Code != http.StatusOK {
		t.Fatalf("proxy: %d %s", w.Code, w.Body)
	}
	if got := <-f.gotAuth; got != "Bearer sk-abc123" {
		t.Fatalf("upstream auth: %q", got)
	}

	// Fragmento adulterado: rechazo genérico, sin detalle discriminante.
	w = f.do(t, http.MethodPost, "/v1/proxy/openai/v1/chat/completions", tok, nil,
		map[string]string{
			"X-Split-Key-Id":       created.KeyID,
			"X-Split-Key-Fragment": "ZZZZZZZZZZZZZZZZZZZZ",
		})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("fragmento malo: %d", w.Code)
	}
	var rej struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &rej)
	if rej.Code != "SPLIT_KEY_AUTH_FAILED" || rej.Message != "Split Key authentication failed" {
		t.Fatalf("rechazo: %+v", rej)
	}

	// Desactivar y verificar que la reconstrucción muere con el mismo genérico.
	w = f.do(t, http.MethodDelete, "/v1/keys/"+created.KeyID, tok, nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("deactivate: %d %s", w.Code, w.Body)
	}
	w = f.do(t, http.MethodPost, "/v1/proxy/openai/v1/chat/completions", tok, nil,
		map[string]string{
			"X-Split-Key-Id":       created.KeyID,
			"X-Split-Key-Fragment": created.CallerFragment,
		})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("post-deactivate: %d", w.Code)
	}
}

func TestEndToEnd_ServerHeldAndLogout(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	// Sin headers BYOK el proxy usa la credencial server-held.
	w := f.do(t, http.MethodPost, "/v1/proxy/openai/v1/chat/completions", tok,
		map[string]string{"model": "gpt"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("proxy server-held: %d %s", w.Code, w.Body)
	}
	if got := <-f.gotAuth; got != "Bearer sk-server-held" {
		t.Fatalf("upstream auth: %q", got)
	}

	// Logout revoca; el mismo token deja de servir en todo el gateway.
	w = f.do(t, http.MethodPost, "/v1/auth/logout", tok, nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: %d %s", w.Code, w.Body)
	}
	for i := 0; i < 3; i++ {
		w = f.do(t, http.MethodPost, "/v1/proxy/openai/v1/x", tok, nil, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("intento %d tras logout: %d", i, w.Code)
		}
		var rej struct {
			Code string `json:"code"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &rej)
		if rej.Code != "TOKEN_REVOKED" {
			t.Fatalf("código tras logout: %q", rej.Code)
		}
	}
	w = f.do(t, http.MethodGet, "/v1/keys", tok, nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("gestión tras logout: %d", w.Code)
	}
}

func TestEndToEnd_UnauthAndMalformed(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	// Sin token.
	w := f.do(t, http.MethodPost, "/v1/proxy/openai/v1/x", "", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("sin token: %d", w.Code)
	}

	// Un solo header BYOK ⇒ 400, nunca modo degradado.
	w = f.do(t, http.MethodPost, "/v1/proxy/openai/v1/x", tok, nil,
		map[string]string{"X-Split-Key-Id": "solo-el-id-123"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("header solitario: %d %s", w.Code, w.Body)
	}

	// Webhook con URL de metadata ⇒ 422 con razón estable.
	w = f.do(t, http.MethodPost, "/v1/webhooks", tok,
		map[string]string{"url": "https://169.254.169.254/hook"}, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("webhook inseguro: %d %s", w.Code, w.Body)
	}

	// Webhook sano ⇒ 201 activo.
	w = f.do(t, http.MethodPost, "/v1/webhooks", tok,
		map[string]string{"url": "https://example.com/hook"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("webhook válido: %d %s", w.Code, w.Body)
	}

	// Login con password errada.
	w = f.do(t, http.MethodPost, "/v1/auth/login", "",
		map[string]string{"username": "ops", "password": "nop"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login malo: %d", w.Code)
	}

	// Healthz siempre abierto.
	w = f.do(t, http.MethodGet, "/healthz", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
}

func TestEndToEnd_QuotaBoundary(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	// 100 llamadas pasan, la 101 muere con QUOTA_EXCEEDED y snapshot en meta.
	for i := 0; i < 100; i++ {
		w := f.do(t, http.MethodPost, "/v1/proxy/openai/v1/x", tok, nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("llamada %d: %d %s", i+1, w.Code, w.Body)
		}
		<-f.gotAuth
	}
	w := f.do(t, http.MethodPost, "/v1/proxy/openai/v1/x", tok, nil, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("sobre el techo: %d %s", w.Code, w.Body)
	}
	var rej struct {
		Code string          `json:"code"`
		Meta json.RawMessage `json:"meta"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &rej)
	if rej.Code != "QUOTA_EXCEEDED" {
		t.Fatalf("código: %q", rej.Code)
	}
	var snap quota.Snapshot
	if err := json.Unmarshal(rej.Meta, &snap); err != nil {
		t.Fatalf("meta no es snapshot: %v (%s)", err, rej.Meta)
	}
	if snap.Daily != snap.DailyCeiling {
		t.Fatalf("snapshot: %+v", snap)
	}
}
