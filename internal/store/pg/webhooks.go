package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/keybridge/internal/webhook"
)

// WebhookStore adapta el pool de postgres a webhook.Store.
type WebhookStore struct {
	*Store
}

func (s *Store) Webhooks() *WebhookStore { return &WebhookStore{s} }

func (w *WebhookStore) Create(ctx context.Context, reg *webhook.Registration) error {
	const q = `
		INSERT INTO webhooks (id, owner_id, url, active, created_at)
		VALUES ($1,$2,$3,$4,NOW())`

	_, err := w.pool.Exec(ctx, q, reg.ID, reg.OwnerID, reg.URL, reg.Active)
	return err
}

func (w *WebhookStore) Get(ctx context.Context, id string) (*webhook.Registration, error) {
	const q = `
		SELECT id, owner_id, url, active, created_at, COALESCE(deactivated_reason, '')
		FROM webhooks
		WHERE id = $1`

	var reg webhook.Registration
	err := w.pool.QueryRow(ctx, q, id).Scan(
		&reg.ID, &reg.OwnerID, &reg.URL, &reg.Active, &reg.CreatedAt, &reg.DeactivatedReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, webhook.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (w *WebhookStore) ListActive(ctx context.Context) ([]*webhook.Registration, error) {
	const q = `
		SELECT id, owner_id, url, active, created_at, COALESCE(deactivated_reason, '')
		FROM webhooks
		WHERE active = TRUE
		ORDER BY created_at`

	rows, err := w.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*webhook.Registration
	for rows.Next() {
		var reg webhook.Registration
		if err := rows.Scan(&reg.ID, &reg.OwnerID, &reg.URL, &reg.Active,
			&reg.CreatedAt, &reg.DeactivatedReason); err != nil {
			return nil, err
		}
		out = append(out, &reg)
	}
	return out, rows.Err()
}

func (w *WebhookStore) Deactivate(ctx context.Context, id, reason string) error {
	// Sin DELETE: el registro desactivado conserva la razón para auditoría.
	const q = `UPDATE webhooks SET active = FALSE, deactivated_reason = $2 WHERE id = $1`

	tag, err := w.pool.Exec(ctx, q, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return webhook.ErrNotFound
	}
	return nil
}
