package sicoob

import (
	"context"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/magnani/sicoob-payment/internal/ports"
)

// Token é um access token obtido para um escopo
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
	Scope       string
}

// TokenBroker obtém tokens OAuth2 pelo fluxo client_credentials.
// A autenticação é feita pelo certificado mTLS: nenhum segredo é enviado.
// Não há cache: cada operação autenticada pede um token novo.
type TokenBroker struct {
	transport *Transport
	creds     ports.CredentialStore
	authURL   string
}

// NewTokenBroker cria um novo TokenBroker
func NewTokenBroker(transport *Transport, creds ports.CredentialStore, authURL string) *TokenBroker {
	if authURL == "" {
		authURL = AuthURLProd
	}
	return &TokenBroker{
		transport: transport,
		creds:     creds,
		authURL:   authURL,
	}
}

// Token solicita um access token para o escopo informado
func (b *TokenBroker) Token(ctx context.Context, scope string) (*Token, error) {
	ctx, span := tracer.Start(ctx, "TokenBroker.Token")
	defer span.End()
	span.SetAttributes(attribute.String("sicoob.scope", scope))

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", b.creds.GetClientID())
	form.Set("scope", scope)

	resp, err := b.transport.Execute(ctx, Request{
		Operation: "auth.token",
		Method:    http.MethodPost,
		URL:       b.authURL,
		Form:      form,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var tokenResp TokenResponse
	if !resp.IsJSON() || resp.Decode(&tokenResp) != nil || tokenResp.AccessToken == "" {
		span.SetStatus(codes.Error, MsgTokenNotFound)
		return nil, ErrTokenNotFound
	}

	return &Token{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		ExpiresIn:   tokenResp.ExpiresIn,
		Scope:       scope,
	}, nil
}
