package revocation

import (
	"context"
	"testing"
	"time"
)

func TestMemory_PutExists(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	e := Entry{
		Fingerprint: "fp-abc",
		OwnerID:     "owner-1",
		SourceIP:    "203.0.113.7",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	if err := m.Put(ctx, e); err != nil {
		t.Fatalf("Put err: %v", err)
	}
	ok, err := m.Exists(ctx, "fp-abc")
	if err != nil || !ok {
		t.Fatalf("Exists: ok=%v err=%v", ok, err)
	}
	ok, _ = m.Exists(ctx, "fp-otro")
	if ok {
		t.Fatal("fingerprint no revocado reportado como revocado")
	}
}

func TestMemory_EntryExpiresWithToken(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	e := Entry{Fingerprint: "fp-corto", ExpiresAt: time.Now().Add(40 * time.Millisecond)}
	if err := m.Put(ctx, e); err != nil {
		t.Fatalf("Put err: %v", err)
	}
	if ok, _ := m.Exists(ctx, "fp-corto"); !ok {
		t.Fatal("revocación no visible antes del expiry")
	}
	time.Sleep(60 * time.Millisecond)
	if ok, _ := m.Exists(ctx, "fp-corto"); ok {
		t.Fatal("la entrada sobrevivió al expiry del token")
	}
}

func TestMemory_PutNeverRenews(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	// Primer Put con expiry corto; segundo Put con expiry largo no debe
	// extender la vida de la entrada.
	_ = m.Put(ctx, Entry{Fingerprint: "fp-fijo", ExpiresAt: time.Now().Add(50 * time.Millisecond)})
	_ = m.Put(ctx, Entry{Fingerprint: "fp-fijo", ExpiresAt: time.Now().Add(time.Hour)})

	time.Sleep(80 * time.Millisecond)
	if ok, _ := m.Exists(ctx, "fp-fijo"); ok {
		t.Fatal("Put renovó una entrada existente")
	}
}

func TestMemory_PutExpiredIsNoop(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	_ = m.Put(ctx, Entry{Fingerprint: "fp-vencido", ExpiresAt: time.Now().Add(-time.Minute)})
	if ok, _ := m.Exists(ctx, "fp-vencido"); ok {
		t.Fatal("entrada vencida registrada")
	}
}

func TestMemory_SweepExpired(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	_ = m.Put(ctx, Entry{Fingerprint: "fp-vivo", ExpiresAt: time.Now().Add(time.Hour)})
	_ = m.Put(ctx, Entry{Fingerprint: "fp-casi", ExpiresAt: time.Now().Add(30 * time.Millisecond)})
	time.Sleep(50 * time.Millisecond)

	alive, err := m.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired err: %v", err)
	}
	if alive != 1 {
		t.Fatalf("vivos tras sweep: got %d want 1", alive)
	}
	// El sweep jamás borra una entrada vigente.
	if ok, _ := m.Exists(ctx, "fp-vivo"); !ok {
		t.Fatal("sweep borró una entrada vigente")
	}
}
