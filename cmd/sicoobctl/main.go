// Package main é a CLI de operação da integração Sicoob: testes de conexão,
// gestão do webhook PIX e emissão de cobranças de teste
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/adapters/blob"
	"github.com/magnani/sicoob-payment/internal/adapters/sicoob"
	"github.com/magnani/sicoob-payment/internal/config"
	"github.com/magnani/sicoob-payment/internal/observability"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sicoobctl",
		Short:         "sicoobctl - operação da integração de pagamentos Sicoob",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "Loga as requisições enviadas ao Sicoob")

	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(webhookCmd())
	rootCmd.AddCommand(pixCmd())
	rootCmd.AddCommand(boletoCmd())
	rootCmd.AddCommand(certCmd())

	return rootCmd
}

// app reúne o que os comandos usam, montado a partir do ambiente
type app struct {
	cfg    *config.Config
	client *sicoob.Client
	logger *zap.Logger
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
		cfg.Sicoob.EnableLogs = true
	}
	logger := observability.NewLogger(level)

	client, err := sicoob.NewClient(cfg.Sicoob, cfg.Sicoob, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, client: client, logger: logger}, nil
}

func (a *app) pix() *sicoob.PixService {
	return sicoob.NewPixService(a.client)
}

func (a *app) boleto() *sicoob.BoletoService {
	files := blob.NewFilesystem(a.cfg.Blob.Dir, a.cfg.Blob.BaseURL)
	return sicoob.NewBoletoService(a.client, files, nil, nil)
}

// printJSON escreve v indentado na saída do comando
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
