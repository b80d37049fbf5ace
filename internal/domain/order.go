package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus representa o estado de um pedido da loja
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusOnHold     OrderStatus = "on-hold"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
)

// Métodos de pagamento atendidos por esta integração
const (
	PaymentMethodPix    = "sicoob_pix"
	PaymentMethodBoleto = "sicoob_boleto"
)

// Chaves de metadados gravadas no pedido
const (
	MetaPixTxID             = "_sicoob_pix_txid"
	MetaPixQRCode           = "_sicoob_pix_qrcode"
	MetaPixCreation         = "_sicoob_pix_criacao"
	MetaPixExpiration       = "_sicoob_pix_expiracao"
	MetaPixPaid             = "_sicoob_pix_paid"
	MetaPixPaymentTime      = "_sicoob_pix_payment_time"
	MetaPixEndToEndID       = "_sicoob_pix_end_to_end_id"
	MetaPixPayerInfo        = "_sicoob_pix_payer_info"
	MetaPixWebhookProcessed = "_sicoob_pix_webhook_processed"

	MetaBoletoNossoNumero    = "_sicoob_boleto_nosso_numero"
	MetaBoletoSeuNumero      = "_sicoob_boleto_seu_numero"
	MetaBoletoLinhaDigitavel = "_sicoob_boleto_linha_digitavel"
	MetaBoletoValor          = "_sicoob_boleto_valor"
	MetaBoletoVencimento     = "_sicoob_boleto_data_vencimento"
	MetaBoletoEmissao        = "_sicoob_boleto_data_emissao"
	MetaBoletoPDFURL         = "_sicoob_boleto_pdf_url"
)

// Customer representa os dados de cobrança do comprador
type Customer struct {
	CPF          string `json:"cpf"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Address      string `json:"address,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	Postcode     string `json:"postcode,omitempty"`
	State        string `json:"state,omitempty"`
}

// Note é uma anotação de auditoria anexada ao pedido
type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Order representa o pedido da loja que esta integração lê e liquida.
// O ciclo de vida completo pertence ao sistema de pedidos.
type Order struct {
	ID            string            `json:"id"`
	Total         decimal.Decimal   `json:"total"`
	Status        OrderStatus       `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	Customer      Customer          `json:"customer"`
	Meta          map[string]string `json:"meta,omitempty"`
	Notes         []Note            `json:"notes,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// IsSettled indica se o pedido já saiu do aguardo de pagamento
func (o *Order) IsSettled() bool {
	return o.Status.IsSettled()
}

// IsPaid verifica se o pagamento foi confirmado
func (o *Order) IsPaid() bool {
	return o.IsSettled() || o.MetaValue(MetaPixPaid) == "yes"
}

// MetaValue retorna um metadado ou string vazia
func (o *Order) MetaValue(key string) string {
	if o.Meta == nil {
		return ""
	}
	return o.Meta[key]
}

// Clone devolve uma cópia independente do pedido
func (o *Order) Clone() *Order {
	c := *o
	if o.Meta != nil {
		c.Meta = make(map[string]string, len(o.Meta))
		for k, v := range o.Meta {
			c.Meta[k] = v
		}
	}
	c.Notes = append([]Note(nil), o.Notes...)
	return &c
}

// IsSettled retorna true para processing e completed
func (s OrderStatus) IsSettled() bool {
	return s == OrderStatusProcessing || s == OrderStatusCompleted
}

// SettledStatuses lista os status que bloqueiam uma nova liquidação
var SettledStatuses = []OrderStatus{OrderStatusProcessing, OrderStatusCompleted}

// Label retorna o nome de exibição do status
func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusPending:
		return "Pagamento pendente"
	case OrderStatusOnHold:
		return "Aguardando"
	case OrderStatusProcessing:
		return "Processando"
	case OrderStatusCompleted:
		return "Concluído"
	case OrderStatusCancelled:
		return "Cancelado"
	case OrderStatusFailed:
		return "Malsucedido"
	}
	return string(s)
}

// OnlyDigits remove todos os caracteres não numéricos (CPF, CEP)
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskAccount mascara um número de conta exibindo apenas os 4 últimos dígitos
func MaskAccount(account string) string {
	if len(account) <= 4 {
		return account
	}
	return strings.Repeat("*", len(account)-4) + account[len(account)-4:]
}
