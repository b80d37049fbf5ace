package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AmountTolerance é a diferença máxima aceita entre o total do pedido e o valor pago
var AmountTolerance = decimal.New(1, -2)

// PixSettlement representa um PIX recebido notificado pelo webhook
type PixSettlement struct {
	TxID       string
	Amount     decimal.Decimal
	PaidAt     string // horario, repassado como recebido
	EndToEndID string
	PayerInfo  string
}

// SettlementRecord contém os dados gravados no pedido quando o PIX é confirmado
type SettlementRecord struct {
	TxID        string
	Amount      decimal.Decimal
	PaymentTime string
	EndToEndID  string
	PayerInfo   string
	ProcessedAt time.Time
}

// NewSettlementRecord cria o registro de liquidação para um PIX recebido
func NewSettlementRecord(s PixSettlement, processedAt time.Time) SettlementRecord {
	return SettlementRecord{
		TxID:        s.TxID,
		Amount:      s.Amount,
		PaymentTime: s.PaidAt,
		EndToEndID:  s.EndToEndID,
		PayerInfo:   s.PayerInfo,
		ProcessedAt: processedAt,
	}
}

// Metadata retorna os metadados gravados no pedido
func (r SettlementRecord) Metadata() map[string]string {
	return map[string]string{
		MetaPixPaid:             "yes",
		MetaPixPaymentTime:      r.PaymentTime,
		MetaPixEndToEndID:       r.EndToEndID,
		MetaPixPayerInfo:        r.PayerInfo,
		MetaPixWebhookProcessed: r.ProcessedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

// Note retorna a anotação de auditoria da liquidação
func (r SettlementRecord) Note() string {
	return fmt.Sprintf("Pagamento PIX confirmado via webhook. TXID: %s, Valor: R$ %s", r.TxID, FormatBRL(r.Amount))
}

// AmountMatches verifica se o valor pago bate com o total dentro da tolerância
func AmountMatches(total, paid decimal.Decimal) bool {
	return total.Sub(paid).Abs().LessThanOrEqual(AmountTolerance)
}

// FormatBRL formata um valor no padrão brasileiro (1.234,56)
func FormatBRL(v decimal.Decimal) string {
	fixed := v.StringFixed(2)
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}
