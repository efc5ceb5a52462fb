package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestIssueParse_RoundTrip(t *testing.T) {
	t.Parallel()
	iss, err := NewIssuer("keybridge", "", 10*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer err: %v", err)
	}
	raw, exp, err := iss.IssueAccess("owner-1", map[string]any{"role": "operator"})
	if err != nil {
		t.Fatalf("IssueAccess err: %v", err)
	}
	if time.Until(exp) < 9*time.Minute {
		t.Fatalf("exp demasiado cerca: %v", exp)
	}
	claims, err := iss.Parse(raw)
	if err != nil {
		t.Fatalf("Parse err: %v", err)
	}
	if Subject(claims) != "owner-1" {
		t.Fatalf("sub: got %q", Subject(claims))
	}
	if role, _ := claims["role"].(string); role != "operator" {
		t.Fatalf("claim extra perdida: %v", claims["role"])
	}
	if ExpiryOf(claims).Unix() != exp.Unix() {
		t.Fatalf("ExpiryOf no coincide con exp emitido")
	}
}

func TestParse_RejectsForeignKey(t *testing.T) {
	t.Parallel()
	a, _ := NewIssuer("keybridge", "", time.Minute)
	b, _ := NewIssuer("keybridge", "", time.Minute)

	raw, _, err := a.IssueAccess("owner-1", nil)
	if err != nil {
		t.Fatalf("IssueAccess err: %v", err)
	}
	if _, err := b.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token firmado con otra clave debe fallar, obtuvo %v", err)
	}
}

func TestParse_RejectsWrongIssuer(t *testing.T) {
	t.Parallel()
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		t.Fatal(err)
	}
	seedB64 := base64.StdEncoding.EncodeToString(seed)

	a, _ := NewIssuer("gateway-a", seedB64, time.Minute)
	b, _ := NewIssuer("gateway-b", seedB64, time.Minute)

	raw, _, _ := a.IssueAccess("owner-1", nil)
	if _, err := b.Parse(raw); err == nil {
		t.Fatal("iss distinto debe fallar")
	}
}

func TestParse_RejectsGarbage(t *testing.T) {
	t.Parallel()
	iss, _ := NewIssuer("keybridge", "", time.Minute)
	for _, raw := range []string{"", "no.es.jwt", "aaaa.bbbb.cccc"} {
		if _, err := iss.Parse(raw); err == nil {
			t.Fatalf("token basura aceptado: %q", raw)
		}
	}
}

func TestNewIssuer_SeedValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewIssuer("x", "not-base64!!!", time.Minute); err == nil {
		t.Fatal("seed no-base64 debe fallar")
	}
	short := base64.StdEncoding.EncodeToString([]byte("corto"))
	if _, err := NewIssuer("x", short, time.Minute); err == nil {
		t.Fatal("seed de largo incorrecto debe fallar")
	}
}
