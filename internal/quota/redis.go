package quota

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Redis implementa CounterStore para multi-instancia, siguiendo el patrón de
// ventana fija (INCR + EXPIRE) con un script Lua para que el
// check-and-increment sea atómico también entre procesos.
type Redis struct {
	c        *rdb.Client
	prefix   string
	ceilings Ceilings
	now      func() time.Time
}

func NewRedis(client *rdb.Client, prefix string, c Ceilings) *Redis {
	if prefix == "" {
		prefix = "q:"
	}
	return &Redis{c: client, prefix: prefix, ceilings: c, now: time.Now}
}

// allowScript: si daily < techo Y monthly < techo, incrementa ambos y fija
// TTL en el primer hit. Devuelve {daily, monthly, allowed}.
var allowScript = rdb.NewScript(`
local d = tonumber(redis.call('GET', KEYS[1]) or '0')
local m = tonumber(redis.call('GET', KEYS[2]) or '0')
local dc = tonumber(ARGV[1])
local mc = tonumber(ARGV[2])
if d >= dc or m >= mc then
  return {d, m, 0}
end
d = redis.call('INCR', KEYS[1])
m = redis.call('INCR', KEYS[2])
if d == 1 then redis.call('EXPIRE', KEYS[1], ARGV[3]) end
if m == 1 then redis.call('EXPIRE', KEYS[2], ARGV[4]) end
return {d, m, 1}
`)

func (r *Redis) keys(identity string) (string, string) {
	n := r.now()
	return fmt.Sprintf("%s%s:d:%s", r.prefix, identity, DayBucket(n)),
		fmt.Sprintf("%s%s:m:%s", r.prefix, identity, MonthBucket(n))
}

func (r *Redis) Get(ctx context.Context, identity string) (Snapshot, error) {
	dk, mk := r.keys(identity)
	dc, mc := r.ceilings.forIdentity(identity)

	vals, err := r.c.MGet(ctx, dk, mk).Result()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Daily:          asInt64(vals[0]),
		Monthly:        asInt64(vals[1]),
		DailyCeiling:   dc,
		MonthlyCeiling: mc,
	}, nil
}

func (r *Redis) Increment(ctx context.Context, identity string) error {
	dk, mk := r.keys(identity)
	pipe := r.c.TxPipeline()
	d := pipe.Incr(ctx, dk)
	m := pipe.Incr(ctx, mk)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if d.Val() == 1 {
		_ = r.c.Expire(ctx, dk, 48*time.Hour).Err()
	}
	if m.Val() == 1 {
		_ = r.c.Expire(ctx, mk, 32*24*time.Hour).Err()
	}
	return nil
}

func (r *Redis) Allow(ctx context.Context, identity string) (Snapshot, bool, error) {
	dk, mk := r.keys(identity)
	dc, mc := r.ceilings.forIdentity(identity)

	res, err := allowScript.Run(ctx, r.c, []string{dk, mk},
		dc, mc,
		int64((48 * time.Hour).Seconds()),
		int64((32 * 24 * time.Hour).Seconds()),
	).Int64Slice()
	if err != nil {
		return Snapshot{}, false, err
	}
	snap := Snapshot{Daily: res[0], Monthly: res[1], DailyCeiling: dc, MonthlyCeiling: mc}
	return snap, res[2] == 1, nil
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case string:
		var n int64
		_, _ = fmt.Sscanf(x, "%d", &n)
		return n
	case int64:
		return x
	default:
		return 0
	}
}
