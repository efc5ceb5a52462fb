// Package quota trackea contadores de requests por identidad contra techos
// diarios y mensuales. Los resets son externos (scheduler); acá solo se lee
// e incrementa.
package quota

import (
	"context"
	"time"
)

// Snapshot es la foto del contador que viaja en el payload de error para que
// el caller se auto-diagnostique sin otra vuelta.
type Snapshot struct {
	Daily          int64 `json:"daily"`
	Monthly        int64 `json:"monthly"`
	DailyCeiling   int64 `json:"daily_ceiling"`
	MonthlyCeiling int64 `json:"monthly_ceiling"`
}

// Exceeded indica si algún techo está alcanzado o superado.
func (s Snapshot) Exceeded() bool {
	return s.Daily >= s.DailyCeiling || s.Monthly >= s.MonthlyCeiling
}

// CounterStore es el counter store externo.
//
// Allow es el camino del pipeline: check-and-increment ATÓMICO. Dos checks
// simultáneos para la misma identidad no pueden observar ambos un conteo
// stale bajo el techo y pasar los dos. En el techo exacto, Allow falla y NO
// incrementa.
type CounterStore interface {
	Get(ctx context.Context, identity string) (Snapshot, error)
	Increment(ctx context.Context, identity string) error
	Allow(ctx context.Context, identity string) (Snapshot, bool, error)
}

// DayBucket y MonthBucket generan las claves de ventana en UTC.
func DayBucket(now time.Time) string   { return now.UTC().Format("20060102") }
func MonthBucket(now time.Time) string { return now.UTC().Format("200601") }
