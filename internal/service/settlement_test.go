package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/adapters/dedupe"
	"github.com/magnani/sicoob-payment/internal/adapters/ledger"
	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/events"
	"github.com/magnani/sicoob-payment/internal/observability"
	"github.com/magnani/sicoob-payment/internal/ports"
	"github.com/magnani/sicoob-payment/internal/service"
)

func seedPixOrder(t *testing.T, mem *ledger.Memory, id, txid, total string) {
	t.Helper()
	err := mem.Save(context.Background(), &domain.Order{
		ID:            id,
		Total:         decimal.RequireFromString(total),
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodPix,
		Customer:      domain.Customer{CPF: "73371160041", Name: "João Silva Santos"},
		Meta:          map[string]string{domain.MetaPixTxID: txid},
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func settlement(txid, valor string) domain.PixSettlement {
	return domain.PixSettlement{
		TxID:       txid,
		Amount:     decimal.RequireFromString(valor),
		PaidAt:     "2024-05-10T14:32:00.000Z",
		EndToEndID: "E00000000202405101432abcdef123456",
		PayerInfo:  "Pedido 42",
	}
}

// newReconciler liga o barramento à baixa de estoque como no main
func newReconciler(mem *ledger.Memory, guard ports.DeliveryGuard, metrics *observability.Metrics) *service.Reconciler {
	bus := events.NewBus(zap.NewNop())
	events.On(bus, func(ctx context.Context, e events.OrderSettled) error {
		return mem.ReduceStock(ctx, e.OrderID)
	})
	return service.NewReconciler(mem, guard, bus, metrics, zap.NewNop())
}

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		wantLen int
	}{
		{"valor numérico", `{"pix":[{"txid":"abc","valor":150.5,"horario":"2024-05-10T14:32:00Z"}]}`, false, 1},
		{"valor string", `{"pix":[{"txid":"abc","valor":"150.50","horario":"2024-05-10T14:32:00Z","endToEndId":"E1","infoPagador":"x"}]}`, false, 1},
		{"dois itens", `{"pix":[{"txid":"a","valor":1,"horario":"h"},{"txid":"b","valor":2,"horario":"h"}]}`, false, 2},
		{"corpo vazio", ``, true, 0},
		{"JSON inválido", `{"pix":`, true, 0},
		{"sem pix", `{"outro":[]}`, true, 0},
		{"pix vazio", `{"pix":[]}`, true, 0},
		{"pix não é lista", `{"pix":{"txid":"a"}}`, true, 0},
		{"raiz é lista", `[{"txid":"a","valor":1,"horario":"h"}]`, true, 0},
		{"sem txid", `{"pix":[{"valor":1,"horario":"h"}]}`, true, 0},
		{"txid vazio", `{"pix":[{"txid":"  ","valor":1,"horario":"h"}]}`, true, 0},
		{"valor nulo", `{"pix":[{"txid":"a","valor":null,"horario":"h"}]}`, true, 0},
		{"sem horario", `{"pix":[{"txid":"a","valor":1}]}`, true, 0},
		{"um item inválido invalida o lote", `{"pix":[{"txid":"a","valor":1,"horario":"h"},{"txid":"b"}]}`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.ParseEnvelope([]byte(tt.body))
			if tt.wantErr {
				var vErr *service.WebhookValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected WebhookValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("expected %d settlements, got %d", tt.wantLen, len(got))
			}
		})
	}
}

func TestParseEnvelope_Fields(t *testing.T) {
	got, err := service.ParseEnvelope([]byte(`{"pix":[{"txid":" abc ","valor":"150.50","horario":"2024-05-10T14:32:00Z","endToEndId":"E123","infoPagador":"obrigado"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := got[0]
	if s.TxID != "abc" {
		t.Errorf("expected trimmed txid, got %q", s.TxID)
	}
	if !s.Amount.Equal(decimal.RequireFromString("150.5")) {
		t.Errorf("unexpected amount %s", s.Amount)
	}
	if s.EndToEndID != "E123" || s.PayerInfo != "obrigado" || s.PaidAt != "2024-05-10T14:32:00Z" {
		t.Errorf("unexpected optional fields: %+v", s)
	}
}

func TestReconcile_SettlesMatchingOrder(t *testing.T) {
	mem := ledger.NewMemory()
	seedPixOrder(t, mem, "42", "txid-42", "150.50")
	metrics := observability.NewMetrics()
	rec := newReconciler(mem, dedupe.NewLocal(), metrics)

	results := rec.Reconcile(context.Background(), []domain.PixSettlement{settlement("txid-42", "150.50")})

	if len(results) != 1 || results[0].Outcome != service.OutcomeSettled {
		t.Fatalf("expected settled, got %+v", results)
	}
	if results[0].OrderID != "42" {
		t.Errorf("expected order 42, got %q", results[0].OrderID)
	}

	order, _ := mem.Get(context.Background(), "42")
	if order.Status != domain.OrderStatusProcessing {
		t.Errorf("expected processing, got %s", order.Status)
	}
	if order.MetaValue(domain.MetaPixPaid) != "yes" {
		t.Error("expected _sicoob_pix_paid=yes")
	}
	if order.MetaValue(domain.MetaPixEndToEndID) != "E00000000202405101432abcdef123456" {
		t.Errorf("unexpected end to end id %q", order.MetaValue(domain.MetaPixEndToEndID))
	}
	if order.MetaValue(domain.MetaPixWebhookProcessed) == "" {
		t.Error("expected processing timestamp")
	}
	if len(order.Notes) == 0 || order.Notes[0].Text != "Pagamento PIX confirmado via webhook. TXID: txid-42, Valor: R$ 150,50" {
		t.Errorf("unexpected notes: %+v", order.Notes)
	}
	if got := mem.StockReductions("42"); got != 1 {
		t.Errorf("expected 1 stock reduction, got %d", got)
	}
	if got := metrics.WebhookOutcomeCount("settled"); got != 1 {
		t.Errorf("expected settled counter 1, got %v", got)
	}
}

func TestReconcile_DuplicateDeliveryIsNoOp(t *testing.T) {
	mem := ledger.NewMemory()
	seedPixOrder(t, mem, "42", "txid-42", "10.00")
	rec := newReconciler(mem, dedupe.NewLocal(), nil)

	first := rec.Reconcile(context.Background(), []domain.PixSettlement{settlement("txid-42", "10.00")})
	second := rec.Reconcile(context.Background(), []domain.PixSettlement{settlement("txid-42", "10.00")})

	if first[0].Outcome != service.OutcomeSettled {
		t.Fatalf("expected first delivery settled, got %s", first[0].Outcome)
	}
	if second[0].Outcome != service.OutcomeAlreadySettled {
		t.Fatalf("expected second delivery already_settled, got %s", second[0].Outcome)
	}
	if second[0].Outcome.NeedsAttention() {
		t.Error("duplicate delivery should not need attention")
	}

	order, _ := mem.Get(context.Background(), "42")
	if len(order.Notes) != 2 {
		t.Errorf("expected notes from a single settlement, got %d", len(order.Notes))
	}
	if got := mem.StockReductions("42"); got != 1 {
		t.Errorf("expected exactly 1 stock reduction, got %d", got)
	}
}

func TestReconcile_AmountTolerance(t *testing.T) {
	tests := []struct {
		paid string
		want service.Outcome
	}{
		{"100.00", service.OutcomeSettled},
		{"100.01", service.OutcomeSettled},
		{"99.99", service.OutcomeSettled},
		{"100.011", service.OutcomeAmountMismatch},
		{"100.02", service.OutcomeAmountMismatch},
		{"99.98", service.OutcomeAmountMismatch},
		{"0.01", service.OutcomeAmountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.paid, func(t *testing.T) {
			mem := ledger.NewMemory()
			seedPixOrder(t, mem, "1", "tx", "100.00")
			rec := newReconciler(mem, nil, nil)

			res := rec.Reconcile(context.Background(), []domain.PixSettlement{settlement("tx", tt.paid)})
			if res[0].Outcome != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, res[0].Outcome)
			}

			order, _ := mem.Get(context.Background(), "1")
			if tt.want == service.OutcomeAmountMismatch {
				if order.Status != domain.OrderStatusPending || order.MetaValue(domain.MetaPixPaid) != "" || len(order.Notes) != 0 {
					t.Errorf("mismatch must leave the order untouched: %+v", order)
				}
				var mismatch *service.ReconciliationMismatch
				if !errors.As(res[0].Err, &mismatch) {
					t.Fatalf("expected ReconciliationMismatch, got %v", res[0].Err)
				}
				if !strings.Contains(mismatch.Error(), "Pedido: R$ 100,00") {
					t.Errorf("unexpected message %q", mismatch.Error())
				}
			}
		})
	}
}

func TestReconcile_OrderNotFound(t *testing.T) {
	mem := ledger.NewMemory()
	// mesmo txid, mas pedido de boleto
	_ = mem.Save(context.Background(), &domain.Order{
		ID:            "7",
		Total:         decimal.NewFromInt(10),
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodBoleto,
		Meta:          map[string]string{domain.MetaPixTxID: "tx-boleto"},
	})
	metrics := observability.NewMetrics()
	rec := newReconciler(mem, nil, metrics)

	res := rec.Reconcile(context.Background(), []domain.PixSettlement{
		settlement("desconhecido", "10.00"),
		settlement("tx-boleto", "10.00"),
	})

	for _, r := range res {
		if r.Outcome != service.OutcomeOrderNotFound {
			t.Errorf("expected order_not_found for %s, got %s", r.TxID, r.Outcome)
		}
		if !r.Outcome.NeedsAttention() {
			t.Error("order_not_found should need attention")
		}
	}
	if got := metrics.WebhookOutcomeCount("order_not_found"); got != 2 {
		t.Errorf("expected counter 2, got %v", got)
	}
	if mem.StockReductions("7") != 0 {
		t.Error("no stock reduction expected")
	}
}

func TestReconcile_EntriesAreIndependent(t *testing.T) {
	mem := ledger.NewMemory()
	seedPixOrder(t, mem, "1", "tx-1", "20.00")
	seedPixOrder(t, mem, "2", "tx-2", "30.00")
	rec := newReconciler(mem, nil, nil)

	res := rec.Reconcile(context.Background(), []domain.PixSettlement{
		settlement("tx-1", "5.00"),
		settlement("nao-existe", "1.00"),
		settlement("tx-2", "30.00"),
	})

	want := []service.Outcome{service.OutcomeAmountMismatch, service.OutcomeOrderNotFound, service.OutcomeSettled}
	for i, w := range want {
		if res[i].Outcome != w {
			t.Errorf("entry %d: expected %s, got %s", i, w, res[i].Outcome)
		}
	}
	if mem.StockReductions("2") != 1 {
		t.Error("expected stock reduction for order 2")
	}
}

type busyGuard struct{}

func (busyGuard) Claim(context.Context, string) (bool, error) { return false, nil }
func (busyGuard) Release(context.Context, string) error       { return nil }

type brokenGuard struct{}

func (brokenGuard) Claim(context.Context, string) (bool, error) {
	return false, errors.New("redis indisponível")
}
func (brokenGuard) Release(context.Context, string) error { return nil }

func TestReconcile_DeliveryGuard(t *testing.T) {
	t.Run("entrega em andamento", func(t *testing.T) {
		mem := ledger.NewMemory()
		seedPixOrder(t, mem, "1", "tx", "10.00")
		rec := newReconciler(mem, busyGuard{}, nil)

		res := rec.Reconcile(context.Background(), []domain.PixSettlement{settlement("tx", "10.00")})
		if res[0].Outcome != service.OutcomeDuplicateDelivery {
			t.Fatalf("expected duplicate_delivery, got %s", res[0].Outcome)
		}
		order, _ := mem.Get(context.Background(), "1")
		if order.Status != domain.OrderStatusPending {
			t.Errorf("order should be untouched, got %s", order.Status)
		}
	})

	t.Run("falha na reserva não bloqueia", func(t *testing.T) {
		mem := ledger.NewMemory()
		seedPixOrder(t, mem, "1", "tx", "10.00")
		rec := newReconciler(mem, brokenGuard{}, nil)

		res := rec.Reconcile(context.Background(), []domain.PixSettlement{settlement("tx", "10.00")})
		if res[0].Outcome != service.OutcomeSettled {
			t.Fatalf("expected settled, got %s", res[0].Outcome)
		}
	})

	t.Run("reserva é liberada", func(t *testing.T) {
		mem := ledger.NewMemory()
		seedPixOrder(t, mem, "1", "tx", "10.00")
		guard := dedupe.NewLocal()
		rec := newReconciler(mem, guard, nil)

		rec.Reconcile(context.Background(), []domain.PixSettlement{settlement("tx", "10.00")})
		claimed, err := guard.Claim(context.Background(), "tx")
		if err != nil || !claimed {
			t.Errorf("expected key released after processing, claimed=%v err=%v", claimed, err)
		}
	})
}

func TestReconcile_ConcurrentDeliveriesSettleOnce(t *testing.T) {
	mem := ledger.NewMemory()
	seedPixOrder(t, mem, "1", "tx", "10.00")
	// sem guarda: só a transição condicional do livro protege
	rec := newReconciler(mem, nil, nil)

	const deliveries = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		settled int
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := rec.Reconcile(context.Background(), []domain.PixSettlement{settlement("tx", "10.00")})
			if res[0].Outcome == service.OutcomeSettled {
				mu.Lock()
				settled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if settled != 1 {
		t.Errorf("expected exactly 1 settlement, got %d", settled)
	}
	if got := mem.StockReductions("1"); got != 1 {
		t.Errorf("expected exactly 1 stock reduction, got %d", got)
	}
}

type failingLedger struct {
	*ledger.Memory
}

func (failingLedger) ApplySettlement(context.Context, string, domain.SettlementRecord) error {
	return errors.New("conexão perdida")
}

func TestReconcile_ApplyFailureAddsErrorNote(t *testing.T) {
	mem := ledger.NewMemory()
	seedPixOrder(t, mem, "1", "tx", "10.00")
	rec := service.NewReconciler(failingLedger{mem}, nil, nil, nil, zap.NewNop())

	res := rec.Reconcile(context.Background(), []domain.PixSettlement{settlement("tx", "10.00")})
	if res[0].Outcome != service.OutcomeFailed || res[0].Err == nil {
		t.Fatalf("expected failed with error, got %+v", res[0])
	}

	order, _ := mem.Get(context.Background(), "1")
	if len(order.Notes) != 1 || order.Notes[0].Text != "Erro ao processar pagamento PIX via webhook: conexão perdida" {
		t.Errorf("unexpected notes: %+v", order.Notes)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected pending, got %s", order.Status)
	}
}

func TestOutcome_NeedsAttention(t *testing.T) {
	tests := map[service.Outcome]bool{
		service.OutcomeSettled:           false,
		service.OutcomeAlreadySettled:    false,
		service.OutcomeDuplicateDelivery: false,
		service.OutcomeOrderNotFound:     true,
		service.OutcomeAmountMismatch:    true,
		service.OutcomeFailed:            true,
	}
	for outcome, want := range tests {
		if got := outcome.NeedsAttention(); got != want {
			t.Errorf("%s: expected %v, got %v", outcome, want, got)
		}
	}
}
