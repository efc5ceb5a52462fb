package quota

import (
	"context"
	"sync"
	"time"
)

// Ceilings configura los techos. Overrides por identidad pisan el default.
type Ceilings struct {
	DailyDefault   int64
	MonthlyDefault int64
	Overrides      map[string]Snapshot // solo se usan los campos *Ceiling
}

func (c Ceilings) forIdentity(identity string) (int64, int64) {
	if o, ok := c.Overrides[identity]; ok {
		return o.DailyCeiling, o.MonthlyCeiling
	}
	return c.DailyDefault, c.MonthlyDefault
}

type bucketKey struct {
	identity string
	bucket   string
}

// Memory implementa CounterStore con un mutex único: el check-and-increment
// es atómico por construcción.
type Memory struct {
	mu       sync.Mutex
	ceilings Ceilings
	counts   map[bucketKey]int64
	now      func() time.Time
}

func NewMemory(c Ceilings) *Memory {
	return &Memory{ceilings: c, counts: make(map[bucketKey]int64), now: time.Now}
}

// SetClock inyecta un reloj para tests de borde de ventana.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

func (m *Memory) snapshotLocked(identity string) Snapshot {
	n := m.now()
	dc, mc := m.ceilings.forIdentity(identity)
	return Snapshot{
		Daily:          m.counts[bucketKey{identity, "d:" + DayBucket(n)}],
		Monthly:        m.counts[bucketKey{identity, "m:" + MonthBucket(n)}],
		DailyCeiling:   dc,
		MonthlyCeiling: mc,
	}
}

func (m *Memory) Get(_ context.Context, identity string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(identity), nil
}

func (m *Memory) Increment(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.now()
	m.counts[bucketKey{identity, "d:" + DayBucket(n)}]++
	m.counts[bucketKey{identity, "m:" + MonthBucket(n)}]++
	return nil
}

func (m *Memory) Allow(_ context.Context, identity string) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshotLocked(identity)
	if snap.Exceeded() {
		// En el techo: rechazo sin incrementar.
		return snap, false, nil
	}
	n := m.now()
	m.counts[bucketKey{identity, "d:" + DayBucket(n)}]++
	m.counts[bucketKey{identity, "m:" + MonthBucket(n)}]++
	snap.Daily++
	snap.Monthly++
	return snap, true, nil
}
