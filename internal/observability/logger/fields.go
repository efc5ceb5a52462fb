package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes crea un campo para los bytes de respuesta.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// Addr crea un campo para una dirección de escucha.
func Addr(v string) zap.Field {
	return zap.String("addr", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// OwnerID crea un campo para la identidad dueña del recurso.
func OwnerID(v string) zap.Field {
	return zap.String("owner_id", v)
}

// KeyID crea un campo para el identificador de una split key.
// Nunca loguear fragmentos ni plaintext; solo el ID opaco.
func KeyID(v string) zap.Field {
	return zap.String("key_id", v)
}

// Provider crea un campo para el proveedor upstream (openai, anthropic, ...).
func Provider(v string) zap.Field {
	return zap.String("provider", v)
}

// Stage crea un campo para la etapa del pipeline de autorización.
func Stage(v string) zap.Field {
	return zap.String("stage", v)
}

// Source crea un campo para el origen de la credencial resuelta (server|byok).
func Source(v string) zap.Field {
	return zap.String("credential_source", v)
}

// WebhookID crea un campo para el identificador de un webhook registrado.
func WebhookID(v string) zap.Field {
	return zap.String("webhook_id", v)
}

// Reason crea un campo para el motivo de un rechazo.
func Reason(v string) zap.Field {
	return zap.String("reason", v)
}

// Fingerprint crea un campo para el fingerprint (hash) de un token.
// El token crudo jamás se loguea; el fingerprint sí es seguro.
func Fingerprint(v string) zap.Field {
	return zap.String("fingerprint", v)
}

// Component crea un campo para el componente que emite el log.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Count crea un campo para un conteo genérico.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}
