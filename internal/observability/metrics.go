package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Resultados possíveis do processamento de uma liquidação via webhook
var webhookOutcomes = []string{"settled", "order_not_found", "already_settled", "amount_mismatch", "duplicate_delivery", "failed"}

// Metrics reúne as métricas Prometheus da integração.
// Todos os métodos aceitam receptor nil, então o registro é opcional.
type Metrics struct {
	// Registry é o registro dono destas métricas, usado pelo endpoint /metrics
	Registry *prometheus.Registry

	sicoobDuration  *prometheus.HistogramVec
	sicoobErrors    *prometheus.CounterVec
	webhookOutcomes *prometheus.CounterVec
	boletoPDF       *prometheus.CounterVec
	chargesCreated  *prometheus.CounterVec
}

// NewMetrics cria um registro próprio e registra as métricas nele.
// Um registro privado evita pânico de coletor duplicado nos testes.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		sicoobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sicoob_request_duration_seconds",
				Help:    "Duração das chamadas às APIs do Sicoob.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		sicoobErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sicoob_request_errors_total",
				Help: "Chamadas ao Sicoob sem resposta 2xx.",
			},
			[]string{"operation", "status"},
		),
		webhookOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sicoob_webhook_settlements_total",
				Help: "Liquidações PIX recebidas por webhook, por resultado.",
			},
			[]string{"outcome"},
		),
		boletoPDF: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sicoob_boleto_pdf_total",
				Help: "Gravação dos PDFs de boleto, por resultado.",
			},
			[]string{"result"},
		),
		chargesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sicoob_charges_created_total",
				Help: "Cobranças emitidas por forma de pagamento.",
			},
			[]string{"method"},
		),
	}
}

// ObserveSicoobRequest registra a duração de uma chamada e conta as que falharam
func (m *Metrics) ObserveSicoobRequest(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.sicoobDuration.WithLabelValues(operation, status).Observe(d.Seconds())
	if status != "2xx" {
		m.sicoobErrors.WithLabelValues(operation, status).Inc()
	}
}

// IncWebhookOutcome conta o resultado de uma liquidação
func (m *Metrics) IncWebhookOutcome(outcome string) {
	if m == nil {
		return
	}
	m.webhookOutcomes.WithLabelValues(outcome).Inc()
}

// IncBoletoPDF conta o resultado da gravação de um PDF
func (m *Metrics) IncBoletoPDF(result string) {
	if m == nil {
		return
	}
	m.boletoPDF.WithLabelValues(result).Inc()
}

// IncChargeCreated conta uma cobrança emitida
func (m *Metrics) IncChargeCreated(method string) {
	if m == nil {
		return
	}
	m.chargesCreated.WithLabelValues(method).Inc()
}

// PaymentSnapshot é o resumo servido em GET /v1/metrics/payments
type PaymentSnapshot struct {
	WebhookOutcomes map[string]float64 `json:"webhook_outcomes"`
	PixCharges      float64            `json:"pix_charges"`
	Boletos         float64            `json:"boletos"`
	BoletoPDFSaved  float64            `json:"boleto_pdf_saved"`
}

// Snapshot lê os valores acumulados dos contadores
func (m *Metrics) Snapshot(pixMethod, boletoMethod string) *PaymentSnapshot {
	snap := &PaymentSnapshot{WebhookOutcomes: make(map[string]float64, len(webhookOutcomes))}
	if m == nil {
		return snap
	}
	for _, outcome := range webhookOutcomes {
		snap.WebhookOutcomes[outcome] = getCounterValue(m.webhookOutcomes, outcome)
	}
	snap.PixCharges = getCounterValue(m.chargesCreated, pixMethod)
	snap.Boletos = getCounterValue(m.chargesCreated, boletoMethod)
	snap.BoletoPDFSaved = getCounterValue(m.boletoPDF, "saved")
	return snap
}

// WebhookOutcomeCount retorna o total acumulado de um resultado
func (m *Metrics) WebhookOutcomeCount(outcome string) float64 {
	if m == nil {
		return 0
	}
	return getCounterValue(m.webhookOutcomes, outcome)
}

// getCounterValue extrai o valor atual de um CounterVec para um rótulo
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	metric := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(metric); err != nil {
		return 0
	}
	if metric.Counter != nil && metric.Counter.Value != nil {
		return *metric.Counter.Value
	}
	return 0
}
