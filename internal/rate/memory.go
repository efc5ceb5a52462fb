package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: fixed window en proceso, para instancia única y tests.
// Mismo algoritmo que RedisLimiter pero sin estado compartido.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu      sync.Mutex
	windows map[string]*window

	now func() time.Time // inyectable en tests
}

type window struct {
	start time.Time
	hits  int64
}

func NewMemoryLimiter(max int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:     int64(max),
		Window:  win,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	start := now.Truncate(l.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &window{start: start}
		l.windows[key] = w
	}
	w.hits++

	res := Result{Allowed: w.hits <= l.Max, Remaining: l.Max - w.hits}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = start.Add(l.Window).Sub(now)
	}
	return res, nil
}
