package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/dropDatabas3/keybridge/internal/observability/logger"
	"github.com/dropDatabas3/keybridge/internal/util"
)

// SMTPNotifier envía la alerta por email al operador.
type SMTPNotifier struct {
	Host     string
	Port     int
	From     string
	User     string
	Pass     string
	To       string // casilla del operador
	TLSMode  string // "auto" | "ssl" | "none"
	Insecure bool   // sólo dev
}

func (s *SMTPNotifier) WebhookDeactivated(_ context.Context, ownerID, webhookID, url, reason string) {
	log := logger.Named("notify")

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", fmt.Sprintf("[keybridge] webhook %s desactivado automáticamente", webhookID))
	m.SetBody("text/plain", fmt.Sprintf(
		"El webhook %s (owner %s) fue desactivado en la validación pre-dispatch.\n\nURL: %s\nMotivo: %s\n\nRe-registrar el destino después de verificarlo.",
		webhookID, ownerID, url, reason,
	))

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{ServerName: s.Host, InsecureSkipVerify: s.Insecure}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.Insecure}
	default:
		// "auto": go-mail negocia STARTTLS si corresponde
	}

	// La alerta es best-effort: un SMTP caído no puede frenar el dispatch loop.
	if err := d.DialAndSend(m); err != nil {
		log.Error("no se pudo enviar alerta de webhook",
			logger.WebhookID(webhookID), zap.String("to", util.MaskEmail(s.To)), logger.Err(err))
		return
	}
	log.Info("alerta de webhook enviada",
		logger.WebhookID(webhookID), zap.String("to", util.MaskEmail(s.To)))
}
