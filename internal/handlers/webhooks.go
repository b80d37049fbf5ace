// Package handlers contém os handlers HTTP da aplicação
package handlers

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/resilience"
	"github.com/magnani/sicoob-payment/internal/service"
)

// maxWebhookBody limita o corpo aceito no webhook (1 MiB)
const maxWebhookBody = 1 << 20

// SettlementReconciler concilia os PIX de um webhook (implementado por service.Reconciler)
type SettlementReconciler interface {
	Reconcile(ctx context.Context, settlements []domain.PixSettlement) []service.SettlementResult
}

// MismatchPolicy decide o status HTTP quando algum PIX do lote não foi conciliado.
// Com Status 200 o Sicoob não reenvia a notificação.
type MismatchPolicy struct {
	Status int
}

// StatusFor retorna 200 se todos os itens foram aplicados ou já estavam
// aplicados, e o status configurado caso contrário
func (p MismatchPolicy) StatusFor(results []service.SettlementResult) int {
	for _, r := range results {
		if r.Outcome.NeedsAttention() {
			if p.Status == 0 {
				return http.StatusOK
			}
			return p.Status
		}
	}
	return http.StatusOK
}

// WebhookHandler recebe as notificações de PIX do Sicoob
type WebhookHandler struct {
	reconciler SettlementReconciler
	bulkhead   *resilience.Bulkhead
	policy     MismatchPolicy
	logger     *zap.Logger
}

// NewWebhookHandler cria um novo handler de webhooks. bulkhead pode ser nil.
func NewWebhookHandler(reconciler SettlementReconciler, bulkhead *resilience.Bulkhead, policy MismatchPolicy, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		reconciler: reconciler,
		bulkhead:   bulkhead,
		policy:     policy,
		logger:     logger,
	}
}

// HandlePixWebhook processa webhooks PIX do Sicoob
// Endpoint: POST /webhook/sicoob/pix
func (wh *WebhookHandler) HandlePixWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "POST /webhook/sicoob/pix")
	defer span.End()

	// Apenas POST é permitido
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	wh.logger.Info("webhook: PIX recebido do Sicoob")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		wh.logger.Warn("webhook: erro ao ler body", zap.Error(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	wh.logger.Debug("webhook: dados recebidos", zap.ByteString("body", body))

	settlements, err := service.ParseEnvelope(body)
	if err != nil {
		wh.logger.Warn("webhook: corpo rejeitado", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if wh.bulkhead != nil {
		if !wh.bulkhead.TryAcquire() {
			wh.logger.Warn("webhook: limite de processamento atingido", zap.Int("pix", len(settlements)))
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		defer wh.bulkhead.Release()
	}

	results := wh.reconciler.Reconcile(ctx, settlements)

	status := wh.policy.StatusFor(results)
	if status == http.StatusOK {
		// Retorna 200 para confirmar recebimento
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "OK")
		return
	}

	wh.logger.Warn("webhook: lote com PIX não conciliado", zap.Int("status", status))
	writeJSON(w, status, map[string]any{
		"status":  "unreconciled",
		"results": results,
	})
}
