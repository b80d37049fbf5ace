package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/magnani/sicoob-payment/internal/adapters/sicoob"
	"github.com/magnani/sicoob-payment/internal/config"
	"github.com/magnani/sicoob-payment/internal/domain"
)

// Dados fixos usados nas cobranças de teste (valor mínimo de R$ 0,01)
var (
	testAmount = decimal.New(1, -2)
	testPayer  = domain.Customer{
		CPF:          "73371160041",
		Name:         "João Silva Santos",
		Email:        "teste1@exemplo.com",
		Address:      "Rua das Flores, 123",
		Neighborhood: "Centro",
		City:         "São Paulo",
		Postcode:     "01234567",
		State:        "SP",
	}
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Testa a autenticação obtendo um token de acesso",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}

			scopeName, _ := cmd.Flags().GetString("scope")
			scope, err := scopeFor(scopeName)
			if err != nil {
				return err
			}

			_, statErr := os.Stat(a.cfg.Sicoob.CertificatePath)
			report := map[string]any{
				"certificate_exists":   a.cfg.Sicoob.CertificatePath != "" && statErr == nil,
				"client_id_configured": a.cfg.Sicoob.ClientID != "",
				"scope":                scopeName,
			}

			token, err := a.client.Token(cmd.Context(), scope)
			if err != nil {
				report["success"] = false
				report["message"] = err.Error()
				_ = printJSON(cmd.OutOrStdout(), report)
				return err
			}

			report["success"] = true
			report["message"] = "Conexão com a API Sicoob realizada com sucesso!"
			report["token_type"] = token.TokenType
			report["expires_in"] = token.ExpiresIn
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringP("scope", "s", "pix", "Escopo do token (pix, boleto)")

	return cmd
}

func webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Gerencia o webhook PIX da chave configurada",
	}
	cmd.PersistentFlags().String("key", "", "Chave PIX (padrão: SICOOB_PIX_KEY)")

	register := &cobra.Command{
		Use:   "register [url]",
		Short: "Registra a URL de notificação (padrão: WEBHOOK_URL)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			url := a.cfg.Webhook.URL
			if len(args) == 1 {
				url = args[0]
			}
			key := pixKey(cmd, a.cfg)
			if err := a.pix().RegisterWebhook(cmd.Context(), key, url); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Webhook registrado para %s: %s\n", key, url)
			return nil
		},
	}

	unregister := &cobra.Command{
		Use:   "unregister",
		Short: "Remove o webhook da chave",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			key := pixKey(cmd, a.cfg)
			if err := a.pix().UnregisterWebhook(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Webhook removido para %s\n", key)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Consulta o webhook registrado",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			key := pixKey(cmd, a.cfg)
			hook, err := a.pix().WebhookStatus(cmd.Context(), key)
			if sicoob.IsNotFound(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "Nenhum webhook registrado para %s\n", key)
				return nil
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), hook)
		},
	}

	cmd.AddCommand(register, unregister, status)
	return cmd
}

func pixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pix",
		Short: "Operações PIX",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Cria uma cobrança PIX de teste de R$ 0,01",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			charge, err := a.pix().CreateCharge(cmd.Context(), testChargeRequest(a.cfg.Pix))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), charge)
		},
	})
	return cmd
}

func boletoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boleto",
		Short: "Operações de boleto",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Emite um boleto de teste de R$ 0,01",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if missing := a.cfg.MissingBoletoSettings(); len(missing) > 0 {
				return fmt.Errorf("configurações obrigatórias não preenchidas: %s", strings.Join(missing, ", "))
			}
			account := strconv.FormatInt(a.cfg.Boleto.AccountNumber, 10)
			fmt.Fprintf(cmd.ErrOrStderr(), "Emitindo boleto de teste na conta %s\n", domain.MaskAccount(account))
			boleto, err := a.boleto().CreateBoleto(cmd.Context(), testBoletoOrder(time.Now()), a.cfg.Boleto)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), boleto)
		},
	})
	return cmd
}

func certCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Certificado digital",
	}

	check := &cobra.Command{
		Use:   "check [arquivo]",
		Short: "Valida o conteúdo do certificado (PEM com chave privada ou PKCS#12)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := os.Getenv("SICOOB_CERTIFICATE_PATH")
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("%s", sicoob.MsgCertificateMissing)
			}
			password, _ := cmd.Flags().GetString("password")

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("erro ao ler certificado: %w", err)
			}
			if err := sicoob.ValidateCertificateContent(data, password); err != nil {
				return err
			}
			if _, err := sicoob.LoadCertificate(path, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Certificado válido: %s\n", path)
			return nil
		},
	}
	check.Flags().String("password", os.Getenv("SICOOB_CERTIFICATE_PASSWORD"), "Senha do arquivo .p12/.pfx")

	cmd.AddCommand(check)
	return cmd
}

func scopeFor(name string) (string, error) {
	switch name {
	case "pix":
		return sicoob.PixScope, nil
	case "boleto":
		return sicoob.BoletoScope, nil
	}
	return "", fmt.Errorf("escopo desconhecido: %s (use pix ou boleto)", name)
}

func pixKey(cmd *cobra.Command, cfg *config.Config) string {
	if key, _ := cmd.Flags().GetString("key"); key != "" {
		return key
	}
	return cfg.Pix.Key
}

func testChargeRequest(settings config.PixSettings) sicoob.ChargeRequest {
	return sicoob.ChargeRequest{
		Payer:       sicoob.PixPayer{CPF: testPayer.CPF, Name: testPayer.Name},
		Amount:      testAmount,
		Key:         settings.Key,
		Description: settings.Description,
	}
}

func testBoletoOrder(now time.Time) sicoob.BoletoOrder {
	return sicoob.BoletoOrder{
		OrderID: fmt.Sprintf("TEST-%d", now.Unix()),
		Amount:  testAmount,
		Payer:   testPayer,
	}
}
