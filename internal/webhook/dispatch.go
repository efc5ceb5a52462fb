package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/dropDatabas3/keybridge/internal/audit"
	"github.com/dropDatabas3/keybridge/internal/metrics"
	"github.com/dropDatabas3/keybridge/internal/notify"
	"github.com/dropDatabas3/keybridge/internal/observability/logger"
)

// Event es el payload que viaja al destino.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
	At   time.Time      `json:"at"`
}

// Dispatcher envía eventos a destinos registrados.
type Dispatcher struct {
	Store     Store
	Validator Validator // pre-dispatch, con resolución DNS habilitada
	Client    *http.Client
	Alerts    notify.Notifier

	// MasterSecret deriva (HKDF-SHA256) la clave de firma de cada destino.
	MasterSecret []byte
}

func NewDispatcher(store Store, v Validator, master []byte, alerts notify.Notifier) *Dispatcher {
	if alerts == nil {
		alerts = notify.Noop{}
	}
	return &Dispatcher{
		Store:        store,
		Validator:    v,
		Client:       &http.Client{Timeout: 10 * time.Second},
		Alerts:       alerts,
		MasterSecret: master,
	}
}

// signingKey deriva la clave HMAC del destino: hkdf(master, info="webhook:"+id).
func (d *Dispatcher) signingKey(regID string) ([]byte, error) {
	r := hkdf.New(sha256.New, d.MasterSecret, nil, []byte("webhook:"+regID))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Dispatch valida la URL de nuevo justo antes del envío y despacha.
// Si la validación pre-dispatch falla, el destino se desactiva entero,
// se audita y se alerta al operador.
func (d *Dispatcher) Dispatch(ctx context.Context, reg *Registration, ev Event) error {
	log := logger.Named("webhook")

	if !reg.Active {
		return fmt.Errorf("webhook %s inactive", reg.ID)
	}

	// Defensa en profundidad: la validación de registro pudo quedar vieja
	// (DNS rebinding, cambios de infraestructura).
	if err := d.Validator.Validate(reg.URL); err != nil {
		reason := fmt.Sprintf("pre-dispatch validation: %v", err)
		if derr := d.Store.Deactivate(ctx, reg.ID, reason); derr != nil {
			log.Error("no se pudo desactivar webhook inseguro",
				logger.WebhookID(reg.ID), logger.Err(derr))
		}
		audit.Log(ctx, "webhook.auto_deactivated", map[string]any{
			"webhook_id": reg.ID,
			"owner_id":   reg.OwnerID,
			"reason":     reason,
		})
		metrics.WebhookDeactivations.Inc()
		d.Alerts.WebhookDeactivated(ctx, reg.OwnerID, reg.ID, reg.URL, reason)
		log.Warn("webhook desactivado por validación pre-dispatch",
			logger.WebhookID(reg.ID), logger.Reason(reason))
		return fmt.Errorf("webhook %s deactivated: %w", reg.ID, err)
	}

	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	key, err := d.signingKey(reg.ID)
	if err != nil {
		return err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	req.Header.Set("X-Keybridge-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("X-Keybridge-Webhook-Id", reg.ID)

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: status %d", reg.ID, resp.StatusCode)
	}
	log.Debug("webhook entregado", logger.WebhookID(reg.ID), logger.Status(resp.StatusCode))
	return nil
}

// Broadcast despacha el evento a todos los destinos activos. Las fallas son
// por destino: un webhook caído (o desactivado en el camino) no frena a los
// demás.
func (d *Dispatcher) Broadcast(ctx context.Context, ev Event) {
	regs, err := d.Store.ListActive(ctx)
	if err != nil {
		logger.Named("webhook").Warn("no se pudieron listar destinos", logger.Err(err))
		return
	}
	for _, reg := range regs {
		if err := d.Dispatch(ctx, reg, ev); err != nil {
			logger.Named("webhook").Warn("dispatch falló",
				logger.WebhookID(reg.ID), logger.Err(err))
		}
	}
}
