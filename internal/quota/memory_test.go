package quota

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAllow_Boundary(t *testing.T) {
	t.Parallel()
	m := NewMemory(Ceilings{DailyDefault: 3, MonthlyDefault: 100})
	ctx := context.Background()

	// En dailyCeiling-1 pasa e incrementa hasta el techo.
	for i := 0; i < 3; i++ {
		snap, ok, err := m.Allow(ctx, "id-1")
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i, ok, err)
		}
		if snap.Daily != int64(i+1) {
			t.Fatalf("daily tras request %d: got %d", i, snap.Daily)
		}
	}

	// En el techo exacto: falla y NO incrementa más.
	snap, ok, err := m.Allow(ctx, "id-1")
	if err != nil {
		t.Fatalf("Allow err: %v", err)
	}
	if ok {
		t.Fatal("en el techo debe rechazar")
	}
	if snap.Daily != 3 {
		t.Fatalf("daily tras rechazo: got %d want 3 (sin incrementar)", snap.Daily)
	}
}

func TestAllow_MonthlyCeiling(t *testing.T) {
	t.Parallel()
	m := NewMemory(Ceilings{DailyDefault: 100, MonthlyDefault: 2})
	ctx := context.Background()

	_, _, _ = m.Allow(ctx, "id-2")
	_, _, _ = m.Allow(ctx, "id-2")
	if _, ok, _ := m.Allow(ctx, "id-2"); ok {
		t.Fatal("techo mensual alcanzado debe rechazar")
	}
}

func TestAllow_PerIdentityOverride(t *testing.T) {
	t.Parallel()
	m := NewMemory(Ceilings{
		DailyDefault:   1,
		MonthlyDefault: 1,
		Overrides: map[string]Snapshot{
			"vip": {DailyCeiling: 5, MonthlyCeiling: 50},
		},
	})
	ctx := context.Background()

	_, _, _ = m.Allow(ctx, "normal")
	if _, ok, _ := m.Allow(ctx, "normal"); ok {
		t.Fatal("default ceiling no aplicado")
	}
	for i := 0; i < 5; i++ {
		if _, ok, _ := m.Allow(ctx, "vip"); !ok {
			t.Fatalf("override vip rechazado en request %d", i)
		}
	}
}

func TestAllow_ConcurrentAtCeiling(t *testing.T) {
	t.Parallel()
	m := NewMemory(Ceilings{DailyDefault: 10, MonthlyDefault: 1000})
	ctx := context.Background()

	var wg sync.WaitGroup
	allowed := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, _ := m.Allow(ctx, "id-conc")
			allowed <- ok
		}()
	}
	wg.Wait()
	close(allowed)

	var n int
	for ok := range allowed {
		if ok {
			n++
		}
	}
	// Exactamente el techo: dos checks simultáneos no pueden pasar ambos
	// con un conteo stale.
	if n != 10 {
		t.Fatalf("permitidos: got %d want 10", n)
	}
}

func TestBuckets_ResetAcrossDays(t *testing.T) {
	t.Parallel()
	m := NewMemory(Ceilings{DailyDefault: 1, MonthlyDefault: 100})
	ctx := context.Background()

	day1 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return day1 })
	_, _, _ = m.Allow(ctx, "id-3")
	if _, ok, _ := m.Allow(ctx, "id-3"); ok {
		t.Fatal("techo diario no aplicado")
	}

	// Día siguiente: ventana diaria nueva, la mensual acumula.
	m.SetClock(func() time.Time { return day1.Add(24 * time.Hour) })
	snap, ok, _ := m.Allow(ctx, "id-3")
	if !ok {
		t.Fatal("nueva ventana diaria debe permitir")
	}
	if snap.Monthly != 2 {
		t.Fatalf("monthly acumulado: got %d want 2", snap.Monthly)
	}
}
