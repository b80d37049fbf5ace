// Package ports define as interfaces (portas) para adaptadores externos
// Seguindo o padrão Hexagonal Architecture / Ports & Adapters
package ports

import (
	"context"
	"errors"

	"github.com/magnani/sicoob-payment/internal/domain"
)

// Erros sentinela do livro de pedidos
var (
	// ErrOrderNotFound indica que nenhum pedido corresponde ao id ou txid
	ErrOrderNotFound = errors.New("pedido não encontrado")

	// ErrAlreadySettled indica que outro processo já liquidou o pedido
	ErrAlreadySettled = errors.New("pedido já está pago")
)

// ──────────────────────────────────────────────
// Credenciais
// ──────────────────────────────────────────────

// CredentialStore fornece as credenciais do lojista.
// É lido a cada chamada, então uma troca de certificado vale na próxima requisição.
type CredentialStore interface {
	GetClientID() string
	GetCertificatePath() string
}

// ──────────────────────────────────────────────
// Pedidos
// ──────────────────────────────────────────────

// OrderLedger é o livro de pedidos do e-commerce.
// O núcleo de pagamento só lê pedidos e grava metadados, notas e status.
type OrderLedger interface {
	// Get busca um pedido pelo id
	Get(ctx context.Context, orderID string) (*domain.Order, error)

	// FindBySettlementKey busca o pedido PIX cujo txid foi gravado na criação da cobrança
	FindBySettlementKey(ctx context.Context, txid string) (*domain.Order, error)

	// ApplySettlement grava os metadados do pagamento e move o pedido para
	// "processing" numa única operação condicional. Retorna ErrAlreadySettled
	// se o pedido já estiver em processing/completed.
	ApplySettlement(ctx context.Context, orderID string, record domain.SettlementRecord) error

	// AppendNote adiciona uma nota ao histórico do pedido
	AppendNote(ctx context.Context, orderID, note string) error

	// UpdatePaymentMeta grava os dados da cobrança emitida e o novo status
	UpdatePaymentMeta(ctx context.Context, orderID string, status domain.OrderStatus, meta map[string]string) error
}

// Inventory baixa o estoque dos itens de um pedido pago
type Inventory interface {
	ReduceStock(ctx context.Context, orderID string) error
}

// ──────────────────────────────────────────────
// Armazenamento
// ──────────────────────────────────────────────

// StoredFile descreve um arquivo gravado
type StoredFile struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// BlobStore grava arquivos binários (PDFs de boleto)
type BlobStore interface {
	Save(ctx context.Context, data []byte, name string) (*StoredFile, error)
}

// ──────────────────────────────────────────────
// Entregas de webhook
// ──────────────────────────────────────────────

// DeliveryGuard evita que duas entregas do mesmo txid sejam processadas ao mesmo tempo.
// Claim retorna false se a chave já estiver reservada.
type DeliveryGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
