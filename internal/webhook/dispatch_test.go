package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dropDatabas3/keybridge/internal/metrics"
	"github.com/dropDatabas3/keybridge/internal/safeurl"
)

type allowAll struct{}

func (allowAll) Validate(string) error { return nil }

type fakeAlerts struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeAlerts) WebhookDeactivated(_ context.Context, ownerID, webhookID, url, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, webhookID)
}

func TestDispatch_DeliversSignedPayload(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotSig, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Keybridge-Signature")
		gotID = r.Header.Get("X-Keybridge-Webhook-Id")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := NewMemoryStore()
	reg := &Registration{ID: "wh-1", OwnerID: "owner-1", URL: srv.URL, Active: true}
	_ = store.Create(context.Background(), reg)

	d := NewDispatcher(store, allowAll{}, []byte("master-secret"), nil)
	ev := Event{Type: "key.deactivated", Data: map[string]any{"key_id": "k-1"}}
	if err := d.Dispatch(context.Background(), reg, ev); err != nil {
		t.Fatalf("Dispatch err: %v", err)
	}

	if gotID != "wh-1" {
		t.Fatalf("webhook id header: got %q", gotID)
	}
	// La firma se verifica con la misma clave derivada.
	key, err := d.signingKey("wh-1")
	if err != nil {
		t.Fatalf("signingKey err: %v", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Fatalf("firma: got %q want %q", gotSig, want)
	}
}

func TestDispatch_UnsafeURLDeactivatesRegistration(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	reg := &Registration{ID: "wh-2", OwnerID: "owner-1", URL: "https://10.0.0.1/hook", Active: true}
	_ = store.Create(context.Background(), reg)

	alerts := &fakeAlerts{}
	d := NewDispatcher(store, safeurl.New(), []byte("master-secret"), alerts)

	before := testutil.ToFloat64(metrics.WebhookDeactivations)
	err := d.Dispatch(context.Background(), reg, Event{Type: "test"})
	if err == nil {
		t.Fatal("URL privada debe fallar el dispatch")
	}
	if testutil.ToFloat64(metrics.WebhookDeactivations)-before < 1 {
		t.Fatal("la desactivación automática debe contarse en métricas")
	}

	// No se saltea solo el envío: el registro entero queda desactivado.
	got, _ := store.Get(context.Background(), "wh-2")
	if got.Active {
		t.Fatal("el registro debió desactivarse")
	}
	if got.DeactivatedReason == "" {
		t.Fatal("la desactivación debe llevar razón")
	}
	if len(alerts.calls) != 1 || alerts.calls[0] != "wh-2" {
		t.Fatalf("alerta al operador no emitida: %v", alerts.calls)
	}
}

func TestDispatch_InactiveRegistrationRefused(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	reg := &Registration{ID: "wh-3", URL: "https://example.com/hook", Active: false}
	_ = store.Create(context.Background(), reg)

	d := NewDispatcher(store, allowAll{}, []byte("m"), nil)
	if err := d.Dispatch(context.Background(), reg, Event{Type: "test"}); err == nil {
		t.Fatal("destino inactivo no debe despachar")
	}
}

func TestRegister_ValidatesAtRegistration(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	r := &Registrar{Store: store, Validator: safeurl.New()}

	// Segura: se registra activa.
	reg, err := r.Register(context.Background(), "owner-1", "https://example.com/hook")
	if err != nil {
		t.Fatalf("Register err: %v", err)
	}
	if !reg.Active || reg.ID == "" {
		t.Fatalf("registro: %+v", reg)
	}

	// Insegura: rechazada en el registro (primera validación del ciclo).
	if _, err := r.Register(context.Background(), "owner-1", "https://169.254.169.254/"); err == nil {
		t.Fatal("URL de metadata debe rechazarse al registrar")
	}
}
