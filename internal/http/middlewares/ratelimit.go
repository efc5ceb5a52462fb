package middlewares

import (
	"net/http"
	"strconv"

	"github.com/dropDatabas3/keybridge/internal/access"
	apperrors "github.com/dropDatabas3/keybridge/internal/http/errors"
	"github.com/dropDatabas3/keybridge/internal/observability/logger"
	"github.com/dropDatabas3/keybridge/internal/rate"
)

// WithRateLimit limita por IP cliente a nivel transporte. Es una defensa
// distinta de la cuota del pipeline: su 429 lleva RATE_LIMIT_EXCEEDED,
// nunca QUOTA_EXCEEDED.
func WithRateLimit(limiter rate.Limiter, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			ip, err := access.ClientIP(r, trustProxy)
			if err != nil {
				apperrors.WriteError(w, apperrors.ErrUnresolvableAddress)
				return
			}
			res, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				// El limiter caído no voltea el gateway; el pipeline
				// mantiene sus propias defensas.
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
				apperrors.WriteError(w, apperrors.ErrRateLimitExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
