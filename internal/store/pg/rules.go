package pg

import (
	"context"

	"github.com/dropDatabas3/keybridge/internal/access"
)

// RuleStore adapta el pool de postgres a access.RuleStore.
type RuleStore struct {
	*Store
}

func (s *Store) Rules() *RuleStore { return &RuleStore{s} }

func (r *RuleStore) RulesFor(ctx context.Context, address string) ([]access.Rule, error) {
	// Matching exacto por dirección; CIDRs quedan para cuando aparezca el
	// caso de uso.
	const q = `
		SELECT address, kind, COALESCE(reason, ''), active
		FROM access_rules
		WHERE address = $1`

	rows, err := r.pool.Query(ctx, q, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []access.Rule
	for rows.Next() {
		var rule access.Rule
		if err := rows.Scan(&rule.Address, &rule.Kind, &rule.Reason, &rule.Active); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
