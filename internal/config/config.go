// Package config gerencia as configurações do aplicativo
// carregando variáveis de ambiente do arquivo .env
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
)

// Limites aceitos pela API Sicoob para os textos configuráveis
const (
	MaxPixDescriptionLength = 40
	MaxInstructionLength    = 40
	MaxInstructions         = 5
	MinDueDays              = 1
	MaxDueDays              = 30
	DefaultDueDays          = 3
)

// Backends de persistência de pedidos suportados
const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerDynamoDB = "dynamodb"
)

// Config armazena todas as configurações da aplicação.
// É carregada uma única vez na inicialização e tratada como imutável.
type Config struct {
	// Servidor
	Port     string
	Env      string
	LogLevel string

	// Sicoob
	Sicoob SicoobConfig
	Pix    PixSettings
	Boleto BoletoSettings

	// Webhook
	Webhook WebhookConfig

	// Infraestrutura
	Ledger       LedgerConfig
	Redis        RedisConfig
	Blob         BlobConfig
	OTLPEndpoint string
}

// SicoobConfig armazena credenciais e endpoints da API Sicoob
type SicoobConfig struct {
	ClientID            string
	CertificatePath     string // PEM com certificado e chave privada, ou .p12/.pfx
	CertificatePassword string // Apenas para .p12/.pfx
	CABundlePath        string // Opcional, substitui as CAs do sistema
	EnableLogs          bool

	// Endpoints (vazios usam os de produção)
	AuthURL   string
	PixURL    string
	BoletoURL string

	BreakerEnabled bool
}

// GetClientID retorna o client_id cadastrado no Sicoob
func (c SicoobConfig) GetClientID() string {
	return c.ClientID
}

// GetCertificatePath retorna o caminho do certificado digital
func (c SicoobConfig) GetCertificatePath() string {
	return c.CertificatePath
}

// PixSettings armazena as configurações do PIX
type PixSettings struct {
	Key         string
	Description string
}

// BoletoSettings armazena as configurações do boleto
type BoletoSettings struct {
	AccountNumber  int64
	ContractNumber int64
	DueDays        int
	Instructions   []string
}

// WebhookConfig armazena configurações de webhook
type WebhookConfig struct {
	URL string
	// MismatchStatus é o status HTTP devolvido quando alguma liquidação
	// do lote precisa de atenção (pedido inexistente, valor divergente ou
	// falha ao gravar). O padrão 200 evita reenvios do banco.
	MismatchStatus int
	// MaxConcurrency limita quantas entregas são reconciliadas ao mesmo tempo
	MaxConcurrency int
	// ClaimTTL é o tempo de reserva de um txid durante o processamento
	ClaimTTL time.Duration
}

// LedgerConfig define onde os pedidos são persistidos
type LedgerConfig struct {
	Backend        string
	DatabaseURL    string
	DynamoTable    string
	DynamoEndpoint string
	AWSRegion      string
}

// RedisConfig armazena a conexão usada para deduplicar entregas de webhook
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BlobConfig define onde os PDFs de boleto são gravados
type BlobConfig struct {
	Dir     string
	BaseURL string
}

// Load carrega as configurações do arquivo .env e variáveis de ambiente
// O arquivo .env é opcional - variáveis de ambiente têm prioridade
func Load() (*Config, error) {
	// Tenta carregar .env (ignora erro se não existir)
	_ = godotenv.Load()

	return FromEnv()
}

// FromEnv monta a configuração apenas a partir das variáveis de ambiente
func FromEnv() (*Config, error) {
	account, err := getEnvInt64("SICOOB_BOLETO_ACCOUNT", 0)
	if err != nil {
		return nil, err
	}
	contract, err := getEnvInt64("SICOOB_BOLETO_CONTRACT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sicoob: SicoobConfig{
			ClientID:            getEnv("SICOOB_CLIENT_ID", ""),
			CertificatePath:     getEnv("SICOOB_CERTIFICATE_PATH", ""),
			CertificatePassword: getEnv("SICOOB_CERTIFICATE_PASSWORD", ""),
			CABundlePath:        getEnv("SICOOB_CA_BUNDLE", ""),
			EnableLogs:          getEnvBool("SICOOB_ENABLE_LOGS", false),
			AuthURL:             getEnv("SICOOB_AUTH_URL", ""),
			PixURL:              getEnv("SICOOB_PIX_URL", ""),
			BoletoURL:           getEnv("SICOOB_BOLETO_URL", ""),
			BreakerEnabled:      getEnvBool("SICOOB_BREAKER_ENABLED", false),
		},
		Pix: PixSettings{
			Key:         getEnv("SICOOB_PIX_KEY", ""),
			Description: getEnv("SICOOB_PIX_DESCRIPTION", ""),
		},
		Boleto: BoletoSettings{
			AccountNumber:  account,
			ContractNumber: contract,
			DueDays:        getEnvInt("SICOOB_BOLETO_DUE_DAYS", DefaultDueDays),
			Instructions:   splitInstructions(getEnv("SICOOB_BOLETO_INSTRUCTIONS", "")),
		},
		Webhook: WebhookConfig{
			URL:            getEnv("WEBHOOK_URL", ""),
			MismatchStatus: getEnvInt("WEBHOOK_MISMATCH_STATUS", 200),
			MaxConcurrency: getEnvInt("WEBHOOK_MAX_CONCURRENCY", 16),
			ClaimTTL:       time.Duration(getEnvInt("WEBHOOK_CLAIM_TTL_SECONDS", 60)) * time.Second,
		},
		Ledger: LedgerConfig{
			Backend:        getEnv("LEDGER_BACKEND", LedgerMemory),
			DatabaseURL:    getEnv("DATABASE_URL", ""),
			DynamoTable:    getEnv("DYNAMODB_TABLE", "orders"),
			DynamoEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Blob: BlobConfig{
			Dir:     getEnv("BLOB_DIR", "uploads"),
			BaseURL: getEnv("BLOB_BASE_URL", "/uploads"),
		},
		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
	}

	// Validação básica
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate verifica os limites das configurações informadas.
// Credenciais ausentes não são erro aqui: cada chamada à API reporta
// a falta com um erro de configuração próprio.
func (c *Config) validate() error {
	if utf8.RuneCountInString(c.Pix.Description) > MaxPixDescriptionLength {
		return fmt.Errorf("SICOOB_PIX_DESCRIPTION deve ter no máximo %d caracteres", MaxPixDescriptionLength)
	}
	if c.Boleto.DueDays < MinDueDays || c.Boleto.DueDays > MaxDueDays {
		return fmt.Errorf("SICOOB_BOLETO_DUE_DAYS deve estar entre %d e %d", MinDueDays, MaxDueDays)
	}
	if len(c.Boleto.Instructions) > MaxInstructions {
		return fmt.Errorf("SICOOB_BOLETO_INSTRUCTIONS aceita no máximo %d instruções", MaxInstructions)
	}
	for i, inst := range c.Boleto.Instructions {
		if utf8.RuneCountInString(inst) > MaxInstructionLength {
			return fmt.Errorf("instrução %d do boleto deve ter no máximo %d caracteres", i+1, MaxInstructionLength)
		}
	}
	if c.Webhook.MismatchStatus < 200 || c.Webhook.MismatchStatus > 599 {
		return fmt.Errorf("WEBHOOK_MISMATCH_STATUS inválido: %d", c.Webhook.MismatchStatus)
	}
	if c.Webhook.MaxConcurrency < 1 {
		return fmt.Errorf("WEBHOOK_MAX_CONCURRENCY deve ser maior que zero")
	}

	switch c.Ledger.Backend {
	case LedgerMemory, LedgerDynamoDB:
	case LedgerPostgres:
		if c.Ledger.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL é obrigatório para LEDGER_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("LEDGER_BACKEND desconhecido: %s", c.Ledger.Backend)
	}
	return nil
}

// MissingBoletoSettings lista os campos obrigatórios do boleto não configurados
func (c *Config) MissingBoletoSettings() []string {
	var missing []string
	if c.Boleto.AccountNumber == 0 {
		missing = append(missing, "Número da Conta Corrente")
	}
	if c.Boleto.ContractNumber == 0 {
		missing = append(missing, "Número do Contrato")
	}
	return missing
}

// IsDevelopment retorna true se estiver em ambiente de desenvolvimento
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction retorna true se estiver em ambiente de produção
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// splitInstructions separa as instruções do boleto por "|"
func splitInstructions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// getEnv obtém uma variável de ambiente ou retorna o valor padrão
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool obtém uma variável de ambiente como bool
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvInt obtém uma variável de ambiente como int
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvInt64 obtém uma variável numérica obrigatoriamente válida quando informada
func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s deve ser numérico: %w", key, err)
	}
	return parsed, nil
}
