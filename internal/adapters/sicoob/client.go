package sicoob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/config"
	"github.com/magnani/sicoob-payment/internal/ports"
)

var tracer = otel.Tracer("sicoob")

// Endpoints agrupa as URLs base das APIs
type Endpoints struct {
	Auth   string
	Pix    string
	Boleto string
}

// Client executa chamadas autenticadas: token primeiro, depois a chamada de negócio
type Client struct {
	transport *Transport
	tokens    *TokenBroker
	endpoints Endpoints
	logger    *zap.Logger
}

// NewClient cria um novo cliente Sicoob a partir da configuração carregada.
// As credenciais são lidas de creds a cada chamada.
func NewClient(cfg config.SicoobConfig, creds ports.CredentialStore, logger *zap.Logger, opts ...TransportOption) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if creds == nil {
		creds = cfg
	}

	base := []TransportOption{
		WithCertificatePassword(cfg.CertificatePassword),
		WithLogger(logger, cfg.EnableLogs),
	}
	if cfg.CABundlePath != "" {
		pool, err := LoadCABundle(cfg.CABundlePath)
		if err != nil {
			return nil, &ConfigurationError{Field: "ca_bundle", Message: "Bundle de CAs inválido.", Err: err}
		}
		base = append(base, WithRootCAs(pool))
	}

	endpoints := Endpoints{
		Auth:   orDefault(cfg.AuthURL, AuthURLProd),
		Pix:    orDefault(cfg.PixURL, PixURLProd),
		Boleto: orDefault(cfg.BoletoURL, BoletoURLProd),
	}

	transport := NewTransport(creds, append(base, opts...)...)

	return &Client{
		transport: transport,
		tokens:    NewTokenBroker(transport, creds, endpoints.Auth),
		endpoints: endpoints,
		logger:    logger,
	}, nil
}

// Token obtém um token para o escopo (usado no teste de conexão)
func (c *Client) Token(ctx context.Context, scope string) (*Token, error) {
	return c.tokens.Token(ctx, scope)
}

// Endpoints retorna as URLs em uso
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// doAuthenticated obtém o token do escopo e executa a chamada com corpo JSON
func (c *Client) doAuthenticated(ctx context.Context, operation, method, url, scope string, payload any) (*Response, error) {
	token, err := c.tokens.Token(ctx, scope)
	if err != nil {
		return nil, err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("erro ao serializar body: %w", err)
		}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token.AccessToken)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	return c.transport.Execute(ctx, Request{
		Operation: operation,
		Method:    method,
		URL:       url,
		Body:      body,
		Header:    header,
	})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
