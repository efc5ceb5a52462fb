// Package rate limita requests a nivel transporte (por IP cliente).
//
// Es una defensa distinta de la cuota de uso del pipeline: esto protege el
// gateway de ráfagas, la cuota protege el presupuesto de cada identidad.
// Los 429 de cada una llevan códigos distintos.
package rate

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result es el veredicto de una ventana: pase/no-pase, cupo restante y,
// en rechazo, cuánto falta para la ventana siguiente.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE), compartido entre
// instancias del gateway.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "kb:rl:"
	}
	return &RedisLimiter{
		Client: client,
		Prefix: prefix,
		Max:    int64(max),
		Window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, key, winStart.Unix())

	hits, err := l.Client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, err
	}
	if hits == 1 {
		// Primera marca de la ventana: fija el TTL. Si el EXPIRE falla, la
		// clave muere igual cuando rote el sufijo de ventana.
		_ = l.Client.Expire(ctx, redisKey, l.Window).Err()
	}

	res := Result{Allowed: hits <= l.Max, Remaining: l.Max - hits}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = winStart.Add(l.Window).Sub(now)
	}
	return res, nil
}
