// Package notify alerta a operadores sobre eventos de seguridad.
// La única alerta hoy es la desactivación automática de un webhook.
package notify

import "context"

// Notifier es el canal de alertas al operador.
type Notifier interface {
	WebhookDeactivated(ctx context.Context, ownerID, webhookID, url, reason string)
}

// Noop descarta alertas (tests, deployments sin SMTP).
type Noop struct{}

func (Noop) WebhookDeactivated(context.Context, string, string, string, string) {}
