package sicoob

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/domain"
)

// PixPayer representa o pagador de uma cobrança PIX
type PixPayer struct {
	CPF  string
	Name string
}

// ChargeRequest representa uma cobrança PIX imediata a ser criada
type ChargeRequest struct {
	Payer       PixPayer
	Amount      decimal.Decimal
	Key         string // Chave PIX do recebedor
	Description string // Solicitação ao pagador (máx. 40 caracteres)
}

// PixCharge representa a cobrança criada no Sicoob
type PixCharge struct {
	TxID             string `json:"txid"`
	Status           string `json:"status"`
	BRCode           string `json:"brcode"`
	Location         string `json:"location"`
	Creation         string `json:"criacao"`
	ExpirationSecs   int    `json:"expiracao"`
	Key              string `json:"chave"`
	RequesterMessage string `json:"solicitacao_pagador"`
	Amount           string `json:"valor"`
}

// PixService cria cobranças PIX e gerencia o webhook da chave
type PixService struct {
	client *Client
}

// NewPixService cria um novo PixService
func NewPixService(client *Client) *PixService {
	return &PixService{client: client}
}

// BuildChargePayload valida a cobrança e monta o corpo enviado ao Sicoob
func BuildChargePayload(req ChargeRequest) (*PixCobRequest, error) {
	if strings.TrimSpace(req.Key) == "" {
		return nil, &ConfigurationError{Field: "pix_key", Message: MsgPixKeyMissing}
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, &ConfigurationError{Field: "pix_description", Message: MsgPixDescriptionMissing}
	}
	if strings.TrimSpace(req.Payer.CPF) == "" || strings.TrimSpace(req.Payer.Name) == "" || !req.Amount.IsPositive() {
		return nil, NewValidationError("order", MsgPixOrderIncomplete)
	}

	return &PixCobRequest{
		Calendario: PixCalendario{Expiracao: PixChargeExpiration},
		Devedor: PixDevedor{
			CPF:  domain.OnlyDigits(req.Payer.CPF),
			Nome: strings.TrimSpace(req.Payer.Name),
		},
		Valor:              PixValor{Original: req.Amount.StringFixed(2)},
		Chave:              req.Key,
		SolicitacaoPagador: req.Description,
	}, nil
}

// CreateCharge cria uma nova cobrança PIX imediata
func (s *PixService) CreateCharge(ctx context.Context, req ChargeRequest) (*PixCharge, error) {
	ctx, span := tracer.Start(ctx, "PixService.CreateCharge")
	defer span.End()

	payload, err := BuildChargePayload(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("pix.valor", payload.Valor.Original))

	s.client.logger.Info("sicoob: criando cobrança PIX",
		zap.String("nome", payload.Devedor.Nome),
		zap.String("valor", payload.Valor.Original),
	)

	resp, err := s.client.doAuthenticated(ctx, "pix.create_charge", http.MethodPost, s.client.endpoints.Pix+"/cob", PixScope, payload)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.client.logger.Error("sicoob: erro ao criar cobrança PIX", zap.Error(err))
		return nil, err
	}

	var cob PixCobResponse
	if err := resp.Decode(&cob); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("pix.txid", cob.TxID))

	s.client.logger.Info("sicoob: cobrança PIX criada", zap.String("txid", cob.TxID))

	return &PixCharge{
		TxID:             cob.TxID,
		Status:           cob.Status,
		BRCode:           cob.BRCode,
		Location:         cob.Location,
		Creation:         cob.Calendario.Criacao,
		ExpirationSecs:   cob.Calendario.Expiracao,
		Key:              cob.Chave,
		RequesterMessage: cob.SolicitacaoPagador,
		Amount:           cob.Valor.Original,
	}, nil
}
