package sicoob

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBuildChargePayload(t *testing.T) {
	base := ChargeRequest{
		Payer:       PixPayer{CPF: "733.711.600-41", Name: " João Silva Santos "},
		Amount:      decimal.RequireFromString("0.01"),
		Key:         "teste@exemplo.com",
		Description: "Compra WooCommerce",
	}

	tests := []struct {
		name      string
		mutate    func(r *ChargeRequest)
		wantCfg   bool
		wantValid bool
	}{
		{name: "valid", mutate: func(r *ChargeRequest) {}},
		{name: "missing key", mutate: func(r *ChargeRequest) { r.Key = "" }, wantCfg: true},
		{name: "missing description", mutate: func(r *ChargeRequest) { r.Description = " " }, wantCfg: true},
		{name: "missing cpf", mutate: func(r *ChargeRequest) { r.Payer.CPF = "" }, wantValid: true},
		{name: "missing name", mutate: func(r *ChargeRequest) { r.Payer.Name = "" }, wantValid: true},
		{name: "zero amount", mutate: func(r *ChargeRequest) { r.Amount = decimal.Zero }, wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)

			payload, err := BuildChargePayload(req)
			if IsConfiguration(err) != tt.wantCfg {
				t.Errorf("IsConfiguration(%v) = %v, want %v", err, !tt.wantCfg, tt.wantCfg)
			}
			if IsValidation(err) != tt.wantValid {
				t.Errorf("IsValidation(%v) = %v, want %v", err, !tt.wantValid, tt.wantValid)
			}
			if !tt.wantCfg && !tt.wantValid && payload == nil {
				t.Fatal("expected payload")
			}
		})
	}
}

func TestBuildChargePayload_AmountFormatting(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"10", "10.00"},
		{"9.999", "10.00"},
		{"0.01", "0.01"},
		{"1234.5", "1234.50"},
		{"99.994", "99.99"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			payload, err := BuildChargePayload(ChargeRequest{
				Payer:       PixPayer{CPF: "73371160041", Name: "João"},
				Amount:      decimal.RequireFromString(tt.amount),
				Key:         "chave",
				Description: "Compra",
			})
			if err != nil {
				t.Fatalf("BuildChargePayload() error = %v", err)
			}
			if payload.Valor.Original != tt.want {
				t.Errorf("Valor.Original = %s, want %s", payload.Valor.Original, tt.want)
			}
		})
	}
}

func TestPixService_CreateCharge(t *testing.T) {
	fake := newFakeSicoob(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"calendario":         map[string]any{"criacao": "2024-05-10T10:00:00Z", "expiracao": 108000},
			"txid":               "7978c0c97ea847e78e8849634473c1f1",
			"revisao":            0,
			"location":           "pix.sicoob.com.br/qr/v2/cob/1",
			"status":             "ATIVA",
			"valor":              map[string]string{"original": "0.01"},
			"chave":              "teste@exemplo.com",
			"solicitacaoPagador": "Compra WooCommerce",
			"brcode":             "00020101021226...6304ABCD",
		})
	})
	pix := NewPixService(fake.newClient(t))

	charge, err := pix.CreateCharge(context.Background(), ChargeRequest{
		Payer:       PixPayer{CPF: "73371160041", Name: "João Silva Santos"},
		Amount:      decimal.RequireFromString("0.01"),
		Key:         "teste@exemplo.com",
		Description: "Compra WooCommerce",
	})
	if err != nil {
		t.Fatalf("CreateCharge() error = %v", err)
	}

	if charge.TxID != "7978c0c97ea847e78e8849634473c1f1" {
		t.Errorf("TxID = %s", charge.TxID)
	}
	if charge.BRCode == "" || charge.Location == "" {
		t.Error("expected brcode and location")
	}
	if charge.ExpirationSecs != PixChargeExpiration {
		t.Errorf("ExpirationSecs = %d", charge.ExpirationSecs)
	}

	got := fake.Last()
	if got.Method != http.MethodPost || got.Path != "/pix/api/v2/cob" {
		t.Fatalf("unexpected request %s %s", got.Method, got.Path)
	}
	if got.Auth != "Bearer "+testAccessToken {
		t.Errorf("Authorization = %s", got.Auth)
	}
	if got.ContentType != "application/json" {
		t.Errorf("Content-Type = %s", got.ContentType)
	}

	var sent struct {
		Calendario struct {
			Expiracao int `json:"expiracao"`
		} `json:"calendario"`
		Devedor struct {
			CPF  string `json:"cpf"`
			Nome string `json:"nome"`
		} `json:"devedor"`
		Valor struct {
			Original string `json:"original"`
		} `json:"valor"`
		Chave              string `json:"chave"`
		SolicitacaoPagador string `json:"solicitacaoPagador"`
	}
	if err := json.Unmarshal(got.Body, &sent); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if sent.Devedor.CPF != "73371160041" {
		t.Errorf("devedor.cpf = %s", sent.Devedor.CPF)
	}
	if sent.Valor.Original != "0.01" {
		t.Errorf("valor.original = %s", sent.Valor.Original)
	}
	if sent.Calendario.Expiracao != 108000 {
		t.Errorf("calendario.expiracao = %d", sent.Calendario.Expiracao)
	}
	if sent.Chave != "teste@exemplo.com" || sent.SolicitacaoPagador != "Compra WooCommerce" {
		t.Errorf("unexpected chave/solicitacao: %+v", sent)
	}

	reqs := fake.Requests()
	if len(reqs) != 2 || reqs[0].Form.Get("scope") != PixScope {
		t.Errorf("expected token (pix scope) then charge, got %d requests", len(reqs))
	}
}

func TestPixService_CreateChargeValidationSkipsNetwork(t *testing.T) {
	fake := newFakeSicoob(t, nil)
	pix := NewPixService(fake.newClient(t))

	_, err := pix.CreateCharge(context.Background(), ChargeRequest{
		Payer:  PixPayer{CPF: "73371160041", Name: "João"},
		Amount: decimal.RequireFromString("10"),
	})
	if !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if n := len(fake.Requests()); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestPixService_Webhooks(t *testing.T) {
	fake := newFakeSicoob(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut, http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]string{
				"webhookUrl": "https://loja.com.br/webhook/sicoob/pix",
				"chave":      "teste@exemplo.com",
				"criacao":    "2024-05-10T10:00:00Z",
			})
		}
	})
	pix := NewPixService(fake.newClient(t))
	ctx := context.Background()
	const wantURI = "/pix/api/v2/webhook/teste%40exemplo.com"

	if err := pix.RegisterWebhook(ctx, "teste@exemplo.com", "https://loja.com.br/webhook/sicoob/pix"); err != nil {
		t.Fatalf("RegisterWebhook() error = %v", err)
	}
	got := fake.Last()
	if got.Method != http.MethodPut || got.RequestURI != wantURI {
		t.Errorf("register: %s %s", got.Method, got.RequestURI)
	}
	if string(got.Body) != `{"webhookUrl":"https://loja.com.br/webhook/sicoob/pix"}` {
		t.Errorf("register body = %s", got.Body)
	}

	hook, err := pix.WebhookStatus(ctx, "teste@exemplo.com")
	if err != nil {
		t.Fatalf("WebhookStatus() error = %v", err)
	}
	if hook.WebhookURL != "https://loja.com.br/webhook/sicoob/pix" {
		t.Errorf("WebhookURL = %s", hook.WebhookURL)
	}
	if got := fake.Last(); got.Method != http.MethodGet || got.RequestURI != wantURI {
		t.Errorf("status: %s %s", got.Method, got.RequestURI)
	}

	if err := pix.UnregisterWebhook(ctx, "teste@exemplo.com"); err != nil {
		t.Fatalf("UnregisterWebhook() error = %v", err)
	}
	if got := fake.Last(); got.Method != http.MethodDelete || got.RequestURI != wantURI {
		t.Errorf("unregister: %s %s", got.Method, got.RequestURI)
	}
}

func TestPixService_WebhookValidation(t *testing.T) {
	fake := newFakeSicoob(t, nil)
	pix := NewPixService(fake.newClient(t))
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"register without key", func() error { return pix.RegisterWebhook(ctx, "", "https://loja.com") }},
		{"register with relative url", func() error { return pix.RegisterWebhook(ctx, "chave", "/webhook") }},
		{"register with empty url", func() error { return pix.RegisterWebhook(ctx, "chave", "") }},
		{"register with ftp url", func() error { return pix.RegisterWebhook(ctx, "chave", "ftp://loja.com/webhook") }},
		{"register with mailto url", func() error { return pix.RegisterWebhook(ctx, "chave", "mailto:loja@exemplo.com") }},
		{"unregister without key", func() error { return pix.UnregisterWebhook(ctx, " ") }},
		{"status without key", func() error { _, err := pix.WebhookStatus(ctx, ""); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	if n := len(fake.Requests()); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestRawURLEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"teste@exemplo.com", "teste%40exemplo.com"},
		{"+5511999999999", "%2B5511999999999"},
		{"a b", "a%20b"},
		{"123e4567-e89b-12d3-a456-426614174000", "123e4567-e89b-12d3-a456-426614174000"},
		{"a~b_c.d", "a~b_c.d"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := rawURLEncode(tt.in); got != tt.want {
				t.Errorf("rawURLEncode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
