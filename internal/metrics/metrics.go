package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus del gateway. Viven en un paquete propio para evitar
// ciclos de import entre pipeline y los paquetes HTTP.

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keybridge_requests_total",
		Help: "Requests HTTP por path y status",
	}, []string{"path", "status"})

	RequestLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "keybridge_request_latency_ms",
		Help:    "Latencia de request en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	PipelineRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keybridge_pipeline_rejections_total",
		Help: "Rechazos del pipeline de autorización por etapa",
	}, []string{"stage"})

	ReconstructOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keybridge_reconstruct_total",
		Help: "Reconstrucciones de split key por resultado (ok|failed)",
	}, []string{"outcome"})

	URLValidatorVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keybridge_url_validator_verdicts_total",
		Help: "Veredictos del validador de URLs salientes (allowed|rejected)",
	}, []string{"verdict"})

	WebhookDeactivations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keybridge_webhook_deactivations_total",
		Help: "Webhooks desactivados por validación pre-dispatch",
	})
)

// Register registra las métricas del gateway en el registry dado
// (o el default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cs := []prometheus.Collector{
		RequestsTotal,
		RequestLatency,
		PipelineRejections,
		ReconstructOutcomes,
		URLValidatorVerdicts,
		WebhookDeactivations,
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
