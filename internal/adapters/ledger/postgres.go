package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/ports"
)

// orderModel é a tabela de pedidos
type orderModel struct {
	ID            string          `gorm:"primaryKey;size:64"`
	Total         decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Status        string          `gorm:"size:32;index;not null"`
	PaymentMethod string          `gorm:"size:64;index"`
	Customer      domain.Customer `gorm:"serializer:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (orderModel) TableName() string { return "orders" }

// orderMetaModel guarda os metadados chave/valor do pedido
type orderMetaModel struct {
	OrderID string `gorm:"primaryKey;size:64"`
	Key     string `gorm:"primaryKey;size:128;index:idx_order_meta_lookup,priority:1"`
	Value   string `gorm:"type:text;index:idx_order_meta_lookup,priority:2"`
}

func (orderMetaModel) TableName() string { return "order_meta" }

// orderNoteModel guarda o histórico de notas
type orderNoteModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	OrderID   string `gorm:"size:64;index;not null"`
	Text      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (orderNoteModel) TableName() string { return "order_notes" }

// stockMovementModel registra a baixa de estoque; a chave única impede baixa dupla
type stockMovementModel struct {
	OrderID   string `gorm:"primaryKey;size:64"`
	CreatedAt time.Time
}

func (stockMovementModel) TableName() string { return "stock_movements" }

// Postgres implementa o OrderLedger sobre PostgreSQL usando gorm
type Postgres struct {
	db *gorm.DB
}

var (
	_ ports.OrderLedger = (*Postgres)(nil)
	_ ports.Inventory   = (*Postgres)(nil)
)

// ConnectPostgres abre a conexão e executa as migrações
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("erro ao conectar no PostgreSQL: %w", err)
	}

	if err := db.AutoMigrate(&orderModel{}, &orderMetaModel{}, &orderNoteModel{}, &stockMovementModel{}); err != nil {
		return nil, fmt.Errorf("erro ao migrar banco de dados: %w", err)
	}
	return db, nil
}

// NewPostgres cria o livro de pedidos sobre uma conexão gorm
func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

// Save grava ou substitui um pedido com seus metadados
func (p *Postgres) Save(ctx context.Context, order *domain.Order) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := orderModel{
			ID:            order.ID,
			Total:         order.Total,
			Status:        string(order.Status),
			PaymentMethod: order.PaymentMethod,
			Customer:      order.Customer,
			CreatedAt:     order.CreatedAt,
		}
		if err := tx.Save(&model).Error; err != nil {
			return fmt.Errorf("erro ao salvar pedido: %w", err)
		}
		return upsertMeta(tx, order.ID, order.Meta)
	})
}

// Get busca um pedido pelo id
func (p *Postgres) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var model orderModel
	err := p.db.WithContext(ctx).Where("id = ?", orderID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ports.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar pedido: %w", err)
	}
	return p.load(ctx, model)
}

// FindBySettlementKey busca o pedido PIX cujo metadado de txid é igual ao informado
func (p *Postgres) FindBySettlementKey(ctx context.Context, txid string) (*domain.Order, error) {
	var model orderModel
	err := p.db.WithContext(ctx).
		Joins("JOIN order_meta ON order_meta.order_id = orders.id AND order_meta.key = ? AND order_meta.value = ?", domain.MetaPixTxID, txid).
		Where("orders.payment_method = ?", domain.PaymentMethodPix).
		Order("orders.id").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ports.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar pedido por txid: %w", err)
	}
	return p.load(ctx, model)
}

// ApplySettlement move o pedido para processing com UPDATE condicional.
// O lock de linha do UPDATE serializa entregas concorrentes do mesmo pedido.
func (p *Postgres) ApplySettlement(ctx context.Context, orderID string, record domain.SettlementRecord) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&orderModel{}).
			Where("id = ? AND status NOT IN ?", orderID, settledStatusStrings()).
			Updates(map[string]any{
				"status":     string(domain.OrderStatusProcessing),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("erro ao liquidar pedido: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&orderModel{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
				return fmt.Errorf("erro ao verificar pedido: %w", err)
			}
			if count == 0 {
				return ports.ErrOrderNotFound
			}
			return ports.ErrAlreadySettled
		}
		return upsertMeta(tx, orderID, record.Metadata())
	})
}

// AppendNote adiciona uma nota ao pedido
func (p *Postgres) AppendNote(ctx context.Context, orderID, note string) error {
	err := p.db.WithContext(ctx).Create(&orderNoteModel{
		ID:      uuid.NewString(),
		OrderID: orderID,
		Text:    note,
	}).Error
	if err != nil {
		return fmt.Errorf("erro ao adicionar nota: %w", err)
	}
	return nil
}

// UpdatePaymentMeta grava os dados da cobrança e o novo status
func (p *Postgres) UpdatePaymentMeta(ctx context.Context, orderID string, status domain.OrderStatus, meta map[string]string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"updated_at": time.Now()}
		if status != "" {
			updates["status"] = string(status)
		}
		res := tx.Model(&orderModel{}).Where("id = ?", orderID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("erro ao atualizar pedido: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ports.ErrOrderNotFound
		}
		return upsertMeta(tx, orderID, meta)
	})
}

// ReduceStock registra a baixa de estoque uma única vez por pedido
func (p *Postgres) ReduceStock(ctx context.Context, orderID string) error {
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&stockMovementModel{OrderID: orderID}).Error
	if err != nil {
		return fmt.Errorf("erro ao baixar estoque: %w", err)
	}
	return nil
}

// load monta o pedido de domínio com metadados e notas
func (p *Postgres) load(ctx context.Context, model orderModel) (*domain.Order, error) {
	var metas []orderMetaModel
	if err := p.db.WithContext(ctx).Where("order_id = ?", model.ID).Find(&metas).Error; err != nil {
		return nil, fmt.Errorf("erro ao carregar metadados: %w", err)
	}
	var notes []orderNoteModel
	if err := p.db.WithContext(ctx).Where("order_id = ?", model.ID).Order("created_at").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("erro ao carregar notas: %w", err)
	}

	order := &domain.Order{
		ID:            model.ID,
		Total:         model.Total,
		Status:        domain.OrderStatus(model.Status),
		PaymentMethod: model.PaymentMethod,
		Customer:      model.Customer,
		Meta:          make(map[string]string, len(metas)),
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
	for _, m := range metas {
		order.Meta[m.Key] = m.Value
	}
	for _, n := range notes {
		order.Notes = append(order.Notes, domain.Note{ID: n.ID, Text: n.Text, CreatedAt: n.CreatedAt})
	}
	return order, nil
}

func upsertMeta(tx *gorm.DB, orderID string, meta map[string]string) error {
	if len(meta) == 0 {
		return nil
	}
	rows := make([]orderMetaModel, 0, len(meta))
	for k, v := range meta {
		rows = append(rows, orderMetaModel{OrderID: orderID, Key: k, Value: v})
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("erro ao gravar metadados: %w", err)
	}
	return nil
}

func settledStatusStrings() []string {
	out := make([]string, len(domain.SettledStatuses))
	for i, s := range domain.SettledStatuses {
		out[i] = string(s)
	}
	return out
}
