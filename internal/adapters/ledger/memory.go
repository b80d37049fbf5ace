// Package ledger implementa o livro de pedidos (OrderLedger) em memória,
// PostgreSQL (gorm) e DynamoDB
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/ports"
)

// Memory guarda pedidos em memória. Usado em desenvolvimento e testes.
type Memory struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	stock  map[string]int
	now    func() time.Time
}

var (
	_ ports.OrderLedger = (*Memory)(nil)
	_ ports.Inventory   = (*Memory)(nil)
)

// NewMemory cria um livro de pedidos vazio
func NewMemory() *Memory {
	return &Memory{
		orders: make(map[string]*domain.Order),
		stock:  make(map[string]int),
		now:    time.Now,
	}
}

// Save grava ou substitui um pedido
func (m *Memory) Save(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := order.Clone()
	if c.Meta == nil {
		c.Meta = make(map[string]string)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	c.UpdatedAt = m.now()
	m.orders[c.ID] = c
	return nil
}

// Get busca um pedido pelo id
func (m *Memory) Get(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ports.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// FindBySettlementKey busca o pedido PIX com o txid informado
func (m *Memory) FindBySettlementKey(_ context.Context, txid string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.orders))
	for id := range m.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		o := m.orders[id]
		if o.PaymentMethod == domain.PaymentMethodPix && o.MetaValue(domain.MetaPixTxID) == txid {
			return o.Clone(), nil
		}
	}
	return nil, ports.ErrOrderNotFound
}

// ApplySettlement grava a liquidação se o pedido ainda não estiver pago
func (m *Memory) ApplySettlement(_ context.Context, orderID string, record domain.SettlementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ports.ErrOrderNotFound
	}
	if o.IsSettled() {
		return ports.ErrAlreadySettled
	}

	for k, v := range record.Metadata() {
		o.Meta[k] = v
	}
	o.Status = domain.OrderStatusProcessing
	o.UpdatedAt = m.now()
	return nil
}

// AppendNote adiciona uma nota ao pedido
func (m *Memory) AppendNote(_ context.Context, orderID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ports.ErrOrderNotFound
	}
	o.Notes = append(o.Notes, domain.Note{
		ID:        uuid.NewString(),
		Text:      note,
		CreatedAt: m.now(),
	})
	return nil
}

// UpdatePaymentMeta grava os dados da cobrança e o novo status
func (m *Memory) UpdatePaymentMeta(_ context.Context, orderID string, status domain.OrderStatus, meta map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ports.ErrOrderNotFound
	}
	for k, v := range meta {
		o.Meta[k] = v
	}
	if status != "" {
		o.Status = status
	}
	o.UpdatedAt = m.now()
	return nil
}

// ReduceStock registra a baixa de estoque do pedido
func (m *Memory) ReduceStock(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[orderID]; !ok {
		return ports.ErrOrderNotFound
	}
	m.stock[orderID]++
	return nil
}

// StockReductions retorna quantas baixas de estoque o pedido recebeu
func (m *Memory) StockReductions(orderID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[orderID]
}
