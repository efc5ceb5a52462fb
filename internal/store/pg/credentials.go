package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/keybridge/internal/store"
)

func (s *Store) Get(ctx context.Context, keyID string) (*store.SplitCredential, error) {
	const q = `
		SELECT key_id, provider, server_fragment, caller_fragment, decryption_secret,
		       active, owner_id, usage_count, COALESCE(last_used_at, 'epoch'::timestamptz), created_at
		FROM split_credentials
		WHERE key_id = $1`

	var c store.SplitCredential
	err := s.pool.QueryRow(ctx, q, keyID).Scan(
		&c.KeyID, &c.Provider, &c.ServerFragment, &c.CallerFragment, &c.DecryptionSecret,
		&c.Active, &c.Owner, &c.UsageCount, &c.LastUsedAt, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Create(ctx context.Context, c *store.SplitCredential) error {
	const q = `
		INSERT INTO split_credentials
			(key_id, provider, server_fragment, caller_fragment, decryption_secret,
			 active, owner_id, usage_count, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,NOW())`

	_, err := s.pool.Exec(ctx, q,
		c.KeyID, c.Provider, c.ServerFragment, c.CallerFragment, c.DecryptionSecret,
		c.Active, c.Owner,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return store.ErrAlreadyExists
	}
	return err
}

func (s *Store) Deactivate(ctx context.Context, keyID, owner string) error {
	// Nunca DELETE: la desactivación es el estado terminal (auditoría).
	const q = `UPDATE split_credentials SET active = FALSE WHERE key_id = $1 AND owner_id = $2`

	tag, err := s.pool.Exec(ctx, q, keyID, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguir not-found de owner mismatch para el 403 correcto.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM split_credentials WHERE key_id = $1)`, keyID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return store.ErrNotOwner
		}
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementUsage(ctx context.Context, keyID string) error {
	const q = `
		UPDATE split_credentials
		SET usage_count = usage_count + 1, last_used_at = NOW()
		WHERE key_id = $1`

	tag, err := s.pool.Exec(ctx, q, keyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, owner string) ([]*store.SplitCredential, error) {
	const q = `
		SELECT key_id, provider, active, owner_id, usage_count,
		       COALESCE(last_used_at, 'epoch'::timestamptz), created_at
		FROM split_credentials
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.SplitCredential
	for rows.Next() {
		var c store.SplitCredential
		if err := rows.Scan(&c.KeyID, &c.Provider, &c.Active, &c.Owner,
			&c.UsageCount, &c.LastUsedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		// El listado no carga material criptográfico a propósito.
		out = append(out, &c)
	}
	return out, rows.Err()
}
