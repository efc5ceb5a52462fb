package revocation

import (
	"context"
	"encoding/json"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Redis implementa Store para deployments multi-instancia. El TTL de Redis
// es la expiración natural: SweepExpired no tiene trabajo que hacer.
type Redis struct {
	c      *rdb.Client
	prefix string
}

func NewRedis(client *rdb.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "rvk:"
	}
	return &Redis{c: client, prefix: prefix}
}

func (r *Redis) Put(ctx context.Context, e Entry) error {
	ttl := time.Until(e.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	// SETNX: una entrada existente nunca se renueva.
	return r.c.SetNX(ctx, r.prefix+e.Fingerprint, b, ttl).Err()
}

func (r *Redis) Exists(ctx context.Context, fingerprint string) (bool, error) {
	n, err := r.c.Exists(ctx, r.prefix+fingerprint).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) SweepExpired(ctx context.Context) (int, error) {
	// Redis expira solo; devolvemos la cantidad viva por observabilidad.
	keys, err := r.c.Keys(ctx, r.prefix+"*").Result()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
