package access

import (
	"context"
	"sync"
)

// MemoryRules implementa RuleStore en memoria (instancia única / tests).
type MemoryRules struct {
	mu    sync.RWMutex
	byKey map[string][]Rule
}

func NewMemoryRules() *MemoryRules {
	return &MemoryRules{byKey: make(map[string][]Rule)}
}

func (m *MemoryRules) Add(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[r.Address] = append(m.byKey[r.Address], r)
}

func (m *MemoryRules) RulesFor(_ context.Context, address string) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rules := m.byKey[address]
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out, nil
}
