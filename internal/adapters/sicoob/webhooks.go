package sicoob

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// RegisterWebhook registra a URL de webhook para uma chave PIX
func (s *PixService) RegisterWebhook(ctx context.Context, pixKey, webhookURL string) error {
	ctx, span := tracer.Start(ctx, "PixService.RegisterWebhook")
	defer span.End()

	if strings.TrimSpace(pixKey) == "" {
		return NewValidationError("pix_key", MsgPixKeyNotProvided)
	}
	if !validWebhookURL(webhookURL) {
		return NewValidationError("webhook_url", MsgWebhookURLInvalid)
	}

	_, err := s.client.doAuthenticated(ctx, "pix.webhook_register", http.MethodPut, s.webhookPath(pixKey), PixScope,
		PixWebhookRequest{WebhookURL: webhookURL})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.client.logger.Error("sicoob: erro ao registrar webhook PIX", zap.Error(err))
		return err
	}

	s.client.logger.Info("sicoob: webhook PIX registrado",
		zap.String("chave", pixKey),
		zap.String("url", webhookURL),
	)
	return nil
}

// UnregisterWebhook remove o webhook registrado para a chave PIX
func (s *PixService) UnregisterWebhook(ctx context.Context, pixKey string) error {
	ctx, span := tracer.Start(ctx, "PixService.UnregisterWebhook")
	defer span.End()

	if strings.TrimSpace(pixKey) == "" {
		return NewValidationError("pix_key", MsgPixKeyNotProvided)
	}

	if _, err := s.client.doAuthenticated(ctx, "pix.webhook_unregister", http.MethodDelete, s.webhookPath(pixKey), PixScope, nil); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.client.logger.Error("sicoob: erro ao remover webhook PIX", zap.Error(err))
		return err
	}

	s.client.logger.Info("sicoob: webhook PIX removido", zap.String("chave", pixKey))
	return nil
}

// WebhookStatus consulta o webhook registrado para uma chave PIX
func (s *PixService) WebhookStatus(ctx context.Context, pixKey string) (*PixWebhook, error) {
	ctx, span := tracer.Start(ctx, "PixService.WebhookStatus")
	defer span.End()

	if strings.TrimSpace(pixKey) == "" {
		return nil, NewValidationError("pix_key", MsgPixKeyNotProvided)
	}

	resp, err := s.client.doAuthenticated(ctx, "pix.webhook_status", http.MethodGet, s.webhookPath(pixKey), PixScope, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.client.logger.Error("sicoob: erro ao consultar webhook PIX", zap.Error(err))
		return nil, err
	}

	var hook PixWebhook
	if err := resp.Decode(&hook); err != nil {
		return nil, err
	}
	return &hook, nil
}

// webhookPath monta a URL do recurso de webhook com a chave codificada
func (s *PixService) webhookPath(pixKey string) string {
	return s.client.endpoints.Pix + "/webhook/" + rawURLEncode(pixKey)
}

// rawURLEncode codifica tudo exceto letras, dígitos e "-_.~" (RFC 3986)
func rawURLEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// validWebhookURL exige URL absoluta com esquema e host
func validWebhookURL(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
