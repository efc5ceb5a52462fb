// Package handlers implementa la superficie HTTP del gateway.
package handlers

import (
	"github.com/dropDatabas3/keybridge/internal/forward"
	"github.com/dropDatabas3/keybridge/internal/jwtx"
	"github.com/dropDatabas3/keybridge/internal/pipeline"
	"github.com/dropDatabas3/keybridge/internal/revocation"
	"github.com/dropDatabas3/keybridge/internal/splitkey"
	"github.com/dropDatabas3/keybridge/internal/store"
	"github.com/dropDatabas3/keybridge/internal/webhook"
)

// Deps agrupa los colaboradores que los handlers necesitan. El wiring real
// vive en cmd/keybridge; los tests arman Deps con implementaciones en memoria.
type Deps struct {
	Engine    *splitkey.Engine
	Creds     store.Credentials
	Issuer    *jwtx.Issuer
	Revoked   revocation.Store
	Auth      *pipeline.Authorizer
	Forwarder forward.Forwarder
	Registrar *webhook.Registrar
	// Events nil ⇒ sin notificaciones salientes.
	Events *webhook.Dispatcher

	// Operators: usuario → hash argon2id, desde config.
	Operators map[string]string

	TrustProxy bool
}
