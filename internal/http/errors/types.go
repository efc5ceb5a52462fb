package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Meta       any    `json:"meta,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Causa original, útil para logs, no se expone al cliente
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// WithDetail agrega detalle adicional. Devuelve una COPIA para no mutar
// las variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa). Devuelve una COPIA.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// WithMeta adjunta un payload estructurado (ej: snapshot de cuota).
// Devuelve una COPIA.
func (e *AppError) WithMeta(meta any) *AppError {
	newErr := *e
	newErr.Meta = meta
	return &newErr
}

// =================================================================================
// TAXONOMÍA DE ERRORES DEL GATEWAY
//
// Cada etapa del pipeline mapea sus fallas a exactamente uno de estos kinds.
// Los mensajes de rechazos de seguridad son estables y genéricos: el detalle
// diagnóstico vive solo en logs del lado servidor.
// =================================================================================

// ---------------------------------------------------------------------------------
// 400 Bad Request - entrada malformada, corregible por el caller
// ---------------------------------------------------------------------------------

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnresolvableAddress = &AppError{
		Code:       "UNRESOLVABLE_ADDRESS",
		Message:    "No se pudo determinar la dirección de origen de la solicitud.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMalformedSplitKeyHeaders = &AppError{
		Code:       "MALFORMED_SPLIT_KEY_HEADERS",
		Message:    "Los headers de Split Key son inválidos.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ---------------------------------------------------------------------------------
// 401 Unauthenticated - sesión o prueba de credencial fallida
// ---------------------------------------------------------------------------------

var (
	ErrTokenMissing = &AppError{
		Code:       "TOKEN_MISSING",
		Message:    "No se proporcionó token de autenticación.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenInvalid = &AppError{
		Code:       "TOKEN_INVALID",
		Message:    "El token de acceso es inválido o está malformado.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrTokenRevoked es distinguible de TOKEN_INVALID a propósito: le dice al
	// cliente "volvé a iniciar sesión" en vez de "tu token está roto".
	ErrTokenRevoked = &AppError{
		Code:       "TOKEN_REVOKED",
		Message:    "La sesión fue cerrada. Inicie sesión nuevamente.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrSplitKeyAuth es deliberadamente genérico: not-found, fragment mismatch
	// y tamper devuelven exactamente este error para no dar un oráculo.
	ErrSplitKeyAuth = &AppError{
		Code:       "SPLIT_KEY_AUTH_FAILED",
		Message:    "Split Key authentication failed",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Las credenciales proporcionadas son inválidas.",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// ---------------------------------------------------------------------------------
// 403 Forbidden - autenticado pero sin derecho
// ---------------------------------------------------------------------------------

var (
	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "No tiene permisos para realizar esta acción.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrAddressDenied = &AppError{
		Code:       "ADDRESS_DENIED",
		Message:    "El acceso desde esta dirección está bloqueado.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotOwner = &AppError{
		Code:       "NOT_OWNER",
		Message:    "El recurso pertenece a otra identidad.",
		HTTPStatus: http.StatusForbidden,
	}
)

// ---------------------------------------------------------------------------------
// 404 Not Found
// ---------------------------------------------------------------------------------

var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}
)

// ---------------------------------------------------------------------------------
// 429 - cuota de uso y rate limit de transporte (códigos distintos)
// ---------------------------------------------------------------------------------

var (
	// ErrQuotaExceeded es la cuota de negocio (diaria/mensual). Lleva en Meta
	// el snapshot del contador para que el caller se auto-diagnostique.
	ErrQuotaExceeded = &AppError{
		Code:       "QUOTA_EXCEEDED",
		Message:    "Se alcanzó el límite de uso diario o mensual.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	// ErrRateLimitExceeded es el límite de transporte (ventana corta), no la cuota.
	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Ha excedido el límite de solicitudes. Intente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// ---------------------------------------------------------------------------------
// 422 Unprocessable Entity
// ---------------------------------------------------------------------------------

var (
	ErrUnsafeURL = &AppError{
		Code:       "UNSAFE_URL",
		Message:    "La URL de destino no pasó la validación de seguridad.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
)

// ---------------------------------------------------------------------------------
// 500+ Server Errors
// ---------------------------------------------------------------------------------

var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrNoServerCredential es un estado operacional (falta configurar la
	// credencial del provider), no una falla de seguridad.
	ErrNoServerCredential = &AppError{
		Code:       "NO_SERVER_CREDENTIAL",
		Message:    "No hay credencial configurada para el proveedor solicitado.",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrStoreUnavailable = &AppError{
		Code:       "STORE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
