// Package service contém os fluxos de negócio da integração: conciliação
// dos PIX recebidos por webhook e emissão de cobranças no checkout.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/events"
	"github.com/magnani/sicoob-payment/internal/observability"
	"github.com/magnani/sicoob-payment/internal/ports"
)

var tracer = otel.Tracer("service")

// Outcome é o resultado da conciliação de um PIX recebido
type Outcome string

const (
	OutcomeSettled           Outcome = "settled"
	OutcomeOrderNotFound     Outcome = "order_not_found"
	OutcomeAlreadySettled    Outcome = "already_settled"
	OutcomeAmountMismatch    Outcome = "amount_mismatch"
	OutcomeDuplicateDelivery Outcome = "duplicate_delivery"
	OutcomeFailed            Outcome = "failed"
)

// NeedsAttention indica se o PIX ficou sem conciliação e exige análise manual.
// Entregas repetidas de um PIX já aplicado não entram aqui.
func (o Outcome) NeedsAttention() bool {
	switch o {
	case OutcomeOrderNotFound, OutcomeAmountMismatch, OutcomeFailed:
		return true
	}
	return false
}

// SettlementResult descreve o que aconteceu com um item do lote
type SettlementResult struct {
	TxID    string  `json:"txid"`
	OrderID string  `json:"order_id,omitempty"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

// WebhookValidationError indica um corpo de webhook malformado ou incompleto
type WebhookValidationError struct {
	Message string
	Err     error
}

func (e *WebhookValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *WebhookValidationError) Unwrap() error { return e.Err }

// ReconciliationMismatch indica um PIX válido que não pôde ser aplicado ao pedido
type ReconciliationMismatch struct {
	Outcome  Outcome
	TxID     string
	OrderID  string
	Expected decimal.Decimal
	Received decimal.Decimal
}

func (e *ReconciliationMismatch) Error() string {
	switch e.Outcome {
	case OutcomeOrderNotFound:
		return fmt.Sprintf("Pedido não encontrado para TXID: %s", e.TxID)
	case OutcomeAlreadySettled:
		return fmt.Sprintf("Pedido #%s já foi processado anteriormente", e.OrderID)
	case OutcomeAmountMismatch:
		return fmt.Sprintf("Valor do pagamento não confere - Pedido: R$ %s, Pago: R$ %s",
			domain.FormatBRL(e.Expected), domain.FormatBRL(e.Received))
	case OutcomeDuplicateDelivery:
		return fmt.Sprintf("Entrega do TXID %s já está em processamento", e.TxID)
	}
	return fmt.Sprintf("conciliação do TXID %s: %s", e.TxID, e.Outcome)
}

// ──────────────────────────────────────────────
// Corpo do webhook
// ──────────────────────────────────────────────

type webhookEnvelope struct {
	Pix []webhookPix `json:"pix"`
}

type webhookPix struct {
	TxID        *string          `json:"txid"`
	Valor       *decimal.Decimal `json:"valor"`
	Horario     *string          `json:"horario"`
	EndToEndID  string           `json:"endToEndId"`
	InfoPagador string           `json:"infoPagador"`
}

// ParseEnvelope decodifica e valida o corpo enviado pelo Sicoob.
// Qualquer item sem txid, valor ou horario invalida o lote inteiro.
func ParseEnvelope(body []byte) ([]domain.PixSettlement, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, &WebhookValidationError{Message: "Nenhum dado recebido"}
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &WebhookValidationError{Message: "JSON inválido", Err: err}
	}
	if len(envelope.Pix) == 0 {
		return nil, &WebhookValidationError{Message: "Estrutura de dados do webhook inválida"}
	}

	out := make([]domain.PixSettlement, 0, len(envelope.Pix))
	for i, p := range envelope.Pix {
		if p.TxID == nil || strings.TrimSpace(*p.TxID) == "" ||
			p.Valor == nil ||
			p.Horario == nil || strings.TrimSpace(*p.Horario) == "" {
			return nil, &WebhookValidationError{
				Message: fmt.Sprintf("Estrutura de dados do webhook inválida (item %d)", i),
			}
		}
		out = append(out, domain.PixSettlement{
			TxID:       strings.TrimSpace(*p.TxID),
			Amount:     *p.Valor,
			PaidAt:     strings.TrimSpace(*p.Horario),
			EndToEndID: strings.TrimSpace(p.EndToEndID),
			PayerInfo:  strings.TrimSpace(p.InfoPagador),
		})
	}
	return out, nil
}

// ──────────────────────────────────────────────
// Conciliação
// ──────────────────────────────────────────────

// Reconciler aplica os PIX recebidos aos pedidos correspondentes
type Reconciler struct {
	ledger  ports.OrderLedger
	guard   ports.DeliveryGuard
	bus     *events.Bus
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewReconciler cria um novo Reconciler. guard, bus e metrics são opcionais.
func NewReconciler(ledger ports.OrderLedger, guard ports.DeliveryGuard, bus *events.Bus, metrics *observability.Metrics, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		ledger:  ledger,
		guard:   guard,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Reconcile processa cada PIX do lote de forma independente.
// Um item com problema não interrompe os demais.
func (r *Reconciler) Reconcile(ctx context.Context, settlements []domain.PixSettlement) []SettlementResult {
	ctx, span := tracer.Start(ctx, "Reconciler.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.Int("pix.count", len(settlements)))

	results := make([]SettlementResult, 0, len(settlements))
	for _, s := range settlements {
		res := r.reconcileOne(ctx, s)
		r.metrics.IncWebhookOutcome(string(res.Outcome))
		if res.Outcome.NeedsAttention() {
			span.SetStatus(codes.Error, string(res.Outcome))
		}
		results = append(results, res)
	}
	return results
}

func (r *Reconciler) reconcileOne(ctx context.Context, s domain.PixSettlement) SettlementResult {
	log := r.logger.With(zap.String("txid", s.TxID))
	log.Info("webhook: processando transação PIX",
		zap.String("valor", domain.FormatBRL(s.Amount)),
		zap.String("horario", s.PaidAt),
	)

	if r.guard != nil {
		key := s.TxID
		claimed, err := r.guard.Claim(ctx, key)
		switch {
		case err != nil:
			// Sem a reserva, a transição condicional do livro ainda impede a dupla liquidação
			log.Warn("webhook: falha ao reservar entrega", zap.Error(err))
		case !claimed:
			mismatch := &ReconciliationMismatch{Outcome: OutcomeDuplicateDelivery, TxID: s.TxID}
			log.Info("webhook: " + mismatch.Error())
			return SettlementResult{TxID: s.TxID, Outcome: OutcomeDuplicateDelivery, Err: mismatch}
		default:
			defer func() {
				if err := r.guard.Release(context.WithoutCancel(ctx), key); err != nil {
					log.Warn("webhook: falha ao liberar entrega", zap.Error(err))
				}
			}()
		}
	}

	order, err := r.ledger.FindBySettlementKey(ctx, s.TxID)
	if err != nil {
		if errors.Is(err, ports.ErrOrderNotFound) {
			mismatch := &ReconciliationMismatch{Outcome: OutcomeOrderNotFound, TxID: s.TxID}
			log.Warn("webhook: " + mismatch.Error())
			return SettlementResult{TxID: s.TxID, Outcome: OutcomeOrderNotFound, Err: mismatch}
		}
		log.Error("webhook: erro ao buscar pedido", zap.Error(err))
		return SettlementResult{TxID: s.TxID, Outcome: OutcomeFailed, Err: err}
	}
	log = log.With(zap.String("order_id", order.ID))

	if order.IsSettled() {
		mismatch := &ReconciliationMismatch{Outcome: OutcomeAlreadySettled, TxID: s.TxID, OrderID: order.ID}
		log.Info("webhook: " + mismatch.Error())
		return SettlementResult{TxID: s.TxID, OrderID: order.ID, Outcome: OutcomeAlreadySettled, Err: mismatch}
	}

	if !domain.AmountMatches(order.Total, s.Amount) {
		mismatch := &ReconciliationMismatch{
			Outcome:  OutcomeAmountMismatch,
			TxID:     s.TxID,
			OrderID:  order.ID,
			Expected: order.Total,
			Received: s.Amount,
		}
		log.Error("webhook: " + mismatch.Error())
		return SettlementResult{TxID: s.TxID, OrderID: order.ID, Outcome: OutcomeAmountMismatch, Err: mismatch}
	}

	record := domain.NewSettlementRecord(s, r.now())
	if err := r.ledger.ApplySettlement(ctx, order.ID, record); err != nil {
		if errors.Is(err, ports.ErrAlreadySettled) {
			mismatch := &ReconciliationMismatch{Outcome: OutcomeAlreadySettled, TxID: s.TxID, OrderID: order.ID}
			log.Info("webhook: " + mismatch.Error())
			return SettlementResult{TxID: s.TxID, OrderID: order.ID, Outcome: OutcomeAlreadySettled, Err: mismatch}
		}

		log.Error("webhook: erro ao processar pagamento PIX", zap.Error(err))
		note := fmt.Sprintf("Erro ao processar pagamento PIX via webhook: %s", err.Error())
		if noteErr := r.ledger.AppendNote(ctx, order.ID, note); noteErr != nil {
			log.Warn("webhook: erro ao gravar nota do pedido", zap.Error(noteErr))
		}
		return SettlementResult{TxID: s.TxID, OrderID: order.ID, Outcome: OutcomeFailed, Err: err}
	}

	for _, note := range []string{
		record.Note(),
		fmt.Sprintf("Status alterado de %s para %s. Pagamento PIX confirmado.",
			order.Status.Label(), domain.OrderStatusProcessing.Label()),
	} {
		if err := r.ledger.AppendNote(ctx, order.ID, note); err != nil {
			log.Warn("webhook: erro ao gravar nota do pedido", zap.Error(err))
		}
	}

	if r.bus != nil {
		evt := events.OrderSettled{
			OrderID:    order.ID,
			TxID:       s.TxID,
			Amount:     s.Amount,
			EndToEndID: s.EndToEndID,
		}
		if err := r.bus.Publish(ctx, evt); err != nil {
			log.Error("webhook: erro nos handlers de pedido pago", zap.Error(err))
		}
	}

	log.Info("webhook: pagamento PIX processado com sucesso")
	return SettlementResult{TxID: s.TxID, OrderID: order.ID, Outcome: OutcomeSettled}
}
