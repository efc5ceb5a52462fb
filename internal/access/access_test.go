package access

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestEvaluate_DenyWins(t *testing.T) {
	t.Parallel()
	d := Evaluate([]Rule{
		{Address: "203.0.113.7", Kind: KindAllow, Active: true},
		{Address: "203.0.113.7", Kind: KindDeny, Reason: "abuso", Active: true},
	})
	if d.Allowed {
		t.Fatal("deny activo debe ganar sobre allow")
	}
	if d.Reason != "abuso" {
		t.Fatalf("reason: got %q", d.Reason)
	}
}

func TestEvaluate_InactiveDenyIgnored(t *testing.T) {
	t.Parallel()
	d := Evaluate([]Rule{
		{Address: "203.0.113.7", Kind: KindDeny, Active: false},
		{Address: "203.0.113.7", Kind: KindAllow, Active: true},
	})
	if !d.Allowed {
		t.Fatal("deny inactivo no debe bloquear")
	}
}

func TestEvaluate_DefaultOpen(t *testing.T) {
	t.Parallel()
	// Sin regla alguna: default permisivo deliberado.
	if d := Evaluate(nil); !d.Allowed {
		t.Fatal("sin reglas el default es open")
	}
}

func TestCheck_ConsultsStore(t *testing.T) {
	t.Parallel()
	rs := NewMemoryRules()
	rs.Add(Rule{Address: "198.51.100.9", Kind: KindDeny, Reason: "scanner", Active: true})

	d, err := Check(context.Background(), rs, "198.51.100.9")
	if err != nil {
		t.Fatalf("Check err: %v", err)
	}
	if d.Allowed {
		t.Fatal("dirección con deny debe bloquearse")
	}
	d, _ = Check(context.Background(), rs, "198.51.100.10")
	if !d.Allowed {
		t.Fatal("dirección sin reglas debe pasar")
	}
}

func TestClientIP_DirectRemoteAddr(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	// Sin trust proxy, el header no cuenta.
	r.Header.Set("X-Forwarded-For", "10.0.0.1")

	ip, err := ClientIP(r, false)
	if err != nil {
		t.Fatalf("ClientIP err: %v", err)
	}
	if ip != "203.0.113.7" {
		t.Fatalf("ip: got %q", ip)
	}
}

func TestClientIP_TrustedProxy(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.1.2.3:80"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.1.2.3")

	ip, err := ClientIP(r, true)
	if err != nil {
		t.Fatalf("ClientIP err: %v", err)
	}
	if ip != "203.0.113.7" {
		t.Fatalf("ip: got %q", ip)
	}
}

func TestClientIP_Unresolvable(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "garbage"
	if _, err := ClientIP(r, false); err == nil {
		t.Fatal("esperaba error con RemoteAddr basura")
	}

	r2 := httptest.NewRequest("GET", "/", nil)
	r2.Header.Set("X-Forwarded-For", "not-an-ip")
	if _, err := ClientIP(r2, true); err == nil {
		t.Fatal("esperaba error con XFF inválido")
	}
}
