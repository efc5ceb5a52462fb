package webhook

import (
	"context"

	"github.com/google/uuid"

	"github.com/dropDatabas3/keybridge/internal/audit"
)

// Registrar da de alta destinos, con validación de URL en el momento del
// registro (la primera de las dos validaciones del ciclo de vida).
type Registrar struct {
	Store     Store
	Validator Validator
}

func (r *Registrar) Register(ctx context.Context, ownerID, rawURL string) (*Registration, error) {
	if err := r.Validator.Validate(rawURL); err != nil {
		return nil, err
	}
	reg := &Registration{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		URL:     rawURL,
		Active:  true,
	}
	if err := r.Store.Create(ctx, reg); err != nil {
		return nil, err
	}
	audit.Log(ctx, "webhook.registered", map[string]any{
		"webhook_id": reg.ID,
		"owner_id":   ownerID,
	})
	return reg, nil
}
