// Package audit emite eventos de auditoría de seguridad (revocaciones,
// desactivaciones, webhooks apagados). Los eventos van por el logger
// estructurado; a futuro puede cablearse un sink externo.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/keybridge/internal/observability/logger"
)

// Log escribe un evento de auditoría estructurado.
// Los fields jamás deben contener material de credenciales.
func Log(ctx context.Context, event string, fields map[string]any) {
	zf := make([]zap.Field, 0, len(fields)+2)
	zf = append(zf, zap.String("audit_event", event))
	zf = append(zf, zap.Time("audit_ts", time.Now().UTC()))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	logger.From(ctx).Named("audit").Info("audit", zf...)
}
