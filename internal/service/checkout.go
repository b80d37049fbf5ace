package service

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/adapters/sicoob"
	"github.com/magnani/sicoob-payment/internal/config"
	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/events"
	"github.com/magnani/sicoob-payment/internal/observability"
	"github.com/magnani/sicoob-payment/internal/ports"
)

// PixCharger cria cobranças PIX (implementado por sicoob.PixService)
type PixCharger interface {
	CreateCharge(ctx context.Context, req sicoob.ChargeRequest) (*sicoob.PixCharge, error)
}

// BoletoIssuer emite boletos (implementado por sicoob.BoletoService)
type BoletoIssuer interface {
	CreateBoleto(ctx context.Context, order sicoob.BoletoOrder, settings config.BoletoSettings) (*sicoob.Boleto, error)
}

// Mensagens de validação do checkout
const (
	MsgNotPixOrder    = "Pedido não utiliza o pagamento PIX Sicoob."
	MsgNotBoletoOrder = "Pedido não utiliza o pagamento por boleto Sicoob."
	MsgPaid           = "Pagamento confirmado com sucesso!"
	MsgAwaiting       = "Aguardando confirmação do pagamento..."
)

// PaymentStatus é a resposta da consulta feita pela página de obrigado
type PaymentStatus struct {
	OrderID     string             `json:"order_id"`
	IsPaid      bool               `json:"is_paid"`
	Status      domain.OrderStatus `json:"status"`
	StatusLabel string             `json:"status_label"`
	Message     string             `json:"message"`
}

// Checkout emite a cobrança do pedido e grava os dados dela no livro
type Checkout struct {
	ledger  ports.OrderLedger
	pix     PixCharger
	boleto  BoletoIssuer
	pixCfg  config.PixSettings
	bolCfg  config.BoletoSettings
	bus     *events.Bus
	metrics *observability.Metrics
	logger  *zap.Logger
}

// CheckoutDeps agrupa as dependências do Checkout
type CheckoutDeps struct {
	Ledger  ports.OrderLedger
	Pix     PixCharger
	Boleto  BoletoIssuer
	PixCfg  config.PixSettings
	BolCfg  config.BoletoSettings
	Bus     *events.Bus
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewCheckout cria um novo Checkout
func NewCheckout(d CheckoutDeps) *Checkout {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Checkout{
		ledger:  d.Ledger,
		pix:     d.Pix,
		boleto:  d.Boleto,
		pixCfg:  d.PixCfg,
		bolCfg:  d.BolCfg,
		bus:     d.Bus,
		metrics: d.Metrics,
		logger:  d.Logger,
	}
}

// StartPix cria a cobrança PIX do pedido e grava o txid usado na conciliação
func (c *Checkout) StartPix(ctx context.Context, orderID string) (*sicoob.PixCharge, error) {
	ctx, span := tracer.Start(ctx, "Checkout.StartPix")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := c.payableOrder(ctx, orderID, domain.PaymentMethodPix, MsgNotPixOrder)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	charge, err := c.pix.CreateCharge(ctx, sicoob.ChargeRequest{
		Payer:       sicoob.PixPayer{CPF: order.Customer.CPF, Name: order.Customer.Name},
		Amount:      order.Total,
		Key:         c.pixCfg.Key,
		Description: c.pixCfg.Description,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("checkout: erro ao gerar PIX", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	expiration := charge.ExpirationSecs
	if expiration == 0 {
		expiration = 3600
	}
	meta := map[string]string{
		domain.MetaPixTxID:       charge.TxID,
		domain.MetaPixQRCode:     charge.BRCode,
		domain.MetaPixCreation:   charge.Creation,
		domain.MetaPixExpiration: strconv.Itoa(expiration),
	}
	if err := c.ledger.UpdatePaymentMeta(ctx, orderID, domain.OrderStatusPending, meta); err != nil {
		// A cobrança existe no banco mas o webhook não vai encontrar o pedido
		c.logger.Error("checkout: cobrança PIX criada sem txid gravado",
			zap.String("order_id", orderID),
			zap.String("txid", charge.TxID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("erro ao gravar cobrança PIX do pedido %s: %w", orderID, err)
	}
	c.note(ctx, orderID, "Aguardando pagamento via PIX.")

	c.metrics.IncChargeCreated(domain.PaymentMethodPix)
	c.publish(ctx, events.PixChargeCreated{OrderID: orderID, TxID: charge.TxID, BRCode: charge.BRCode})

	return charge, nil
}

// StartBoleto emite o boleto do pedido e grava linha digitável e PDF
func (c *Checkout) StartBoleto(ctx context.Context, orderID string) (*sicoob.Boleto, error) {
	ctx, span := tracer.Start(ctx, "Checkout.StartBoleto")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := c.payableOrder(ctx, orderID, domain.PaymentMethodBoleto, MsgNotBoletoOrder)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	boleto, err := c.boleto.CreateBoleto(ctx, sicoob.BoletoOrder{
		OrderID: order.ID,
		Amount:  order.Total,
		Payer:   order.Customer,
	}, c.bolCfg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("checkout: erro ao gerar boleto", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	var pdfURL string
	if boleto.PDF != nil && boleto.PDF.File != nil {
		pdfURL = boleto.PDF.File.URL
	}
	meta := map[string]string{
		domain.MetaBoletoNossoNumero:    boleto.NossoNumero,
		domain.MetaBoletoSeuNumero:      boleto.SeuNumero,
		domain.MetaBoletoLinhaDigitavel: boleto.LinhaDigitavel,
		domain.MetaBoletoValor:          boleto.Valor.StringFixed(2),
		domain.MetaBoletoVencimento:     boleto.DataVencimento,
		domain.MetaBoletoEmissao:        boleto.DataEmissao,
		domain.MetaBoletoPDFURL:         pdfURL,
	}
	if err := c.ledger.UpdatePaymentMeta(ctx, orderID, domain.OrderStatusPending, meta); err != nil {
		return nil, fmt.Errorf("erro ao gravar boleto do pedido %s: %w", orderID, err)
	}
	c.note(ctx, orderID, "Aguardando pagamento via boleto.")

	c.metrics.IncChargeCreated(domain.PaymentMethodBoleto)
	c.publish(ctx, events.BoletoIssued{
		OrderID:        orderID,
		NossoNumero:    boleto.NossoNumero,
		LinhaDigitavel: boleto.LinhaDigitavel,
		PDFURL:         pdfURL,
	})

	return boleto, nil
}

// PaymentStatus informa se o pagamento do pedido já foi confirmado
func (c *Checkout) PaymentStatus(ctx context.Context, orderID string) (*PaymentStatus, error) {
	order, err := c.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	status := &PaymentStatus{
		OrderID:     order.ID,
		IsPaid:      order.IsPaid(),
		Status:      order.Status,
		StatusLabel: order.Status.Label(),
		Message:     MsgAwaiting,
	}
	if status.IsPaid {
		status.Message = MsgPaid
	}
	return status, nil
}

// payableOrder carrega o pedido e confere método de pagamento e status
func (c *Checkout) payableOrder(ctx context.Context, orderID, method, wrongMethodMsg string) (*domain.Order, error) {
	order, err := c.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != method {
		return nil, sicoob.NewValidationError("payment_method", wrongMethodMsg)
	}
	if order.IsPaid() {
		return nil, ports.ErrAlreadySettled
	}
	return order, nil
}

func (c *Checkout) note(ctx context.Context, orderID, text string) {
	if err := c.ledger.AppendNote(ctx, orderID, text); err != nil {
		c.logger.Warn("checkout: erro ao gravar nota do pedido", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (c *Checkout) publish(ctx context.Context, e events.Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, e); err != nil {
		c.logger.Warn("checkout: erro nos handlers de evento",
			zap.String("event", e.EventName()),
			zap.Error(err),
		)
	}
}
