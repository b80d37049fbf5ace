package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/observability"
	"github.com/magnani/sicoob-payment/internal/service"
)

var tracer = otel.Tracer("handlers")

// RouterDeps agrupa o que o roteador precisa. Checkout e Webhook podem
// ser nil; as rotas correspondentes não são registradas.
type RouterDeps struct {
	Webhook  *WebhookHandler
	Checkout *service.Checkout
	Metrics  *observability.Metrics
	Logger   *zap.Logger

	// Uploads serve os PDFs de boleto gravados em disco, sob UploadsPath
	Uploads     http.Handler
	UploadsPath string
}

// NewRouter cria o roteador HTTP com todas as rotas e middlewares
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)

	// Operacional
	r.Get("/health", HealthCheck)
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	if prefix := strings.TrimSuffix(d.UploadsPath, "/"); d.Uploads != nil && strings.HasPrefix(prefix, "/") {
		r.Handle(prefix+"/*", http.StripPrefix(prefix, d.Uploads))
	}

	// Webhook Sicoob: qualquer método chega ao handler, que responde 405 se não for POST
	if d.Webhook != nil {
		r.HandleFunc("/webhook/sicoob/pix", d.Webhook.HandlePixWebhook)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/payments", paymentMetricsHandler(d.Metrics))

		if d.Checkout != nil {
			r.Post("/orders/{orderId}/pix", startPixHandler(d.Checkout, logger))
			r.Post("/orders/{orderId}/boleto", startBoletoHandler(d.Checkout, logger))
			r.Get("/orders/{orderId}/payment-status", paymentStatusHandler(d.Checkout, logger))
		}
	})

	return r
}

// HealthCheck endpoint para verificar se o servidor está funcionando
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "sicoob-payment",
	})
}

func paymentMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot(domain.PaymentMethodPix, domain.PaymentMethodBoleto))
	}
}
