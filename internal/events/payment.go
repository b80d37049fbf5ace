package events

import "github.com/shopspring/decimal"

// Nomes dos eventos
const (
	NameOrderSettled     = "order.settled"
	NamePixChargeCreated = "pix.charge_created"
	NameBoletoIssued     = "boleto.issued"
)

// OrderSettled é publicado depois que um PIX liquida o pedido
type OrderSettled struct {
	OrderID    string
	TxID       string
	Amount     decimal.Decimal
	EndToEndID string
}

func (OrderSettled) EventName() string { return NameOrderSettled }

// PixChargeCreated é publicado quando a cobrança PIX de um pedido é emitida
type PixChargeCreated struct {
	OrderID string
	TxID    string
	BRCode  string
}

func (PixChargeCreated) EventName() string { return NamePixChargeCreated }

// BoletoIssued é publicado quando o boleto de um pedido é emitido
type BoletoIssued struct {
	OrderID        string
	NossoNumero    string
	LinhaDigitavel string
	PDFURL         string
}

func (BoletoIssued) EventName() string { return NameBoletoIssued }
