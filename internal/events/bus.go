// Package events implementa o barramento de eventos de pagamento.
// Os handlers são registrados na inicialização e chamados em ordem de registro.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Event é um evento publicado no barramento
type Event interface {
	EventName() string
}

// Handler processa um evento genérico
type Handler func(ctx context.Context, e Event) error

// Bus distribui eventos para os handlers registrados
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

// NewBus cria um novo barramento
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// On registra um handler tipado para o evento T
func On[T Event](b *Bus, fn func(ctx context.Context, e T) error) {
	var zero T
	name := zero.EventName()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], func(ctx context.Context, e Event) error {
		typed, ok := e.(T)
		if !ok {
			return fmt.Errorf("evento %s com tipo inesperado %T", name, e)
		}
		return fn(ctx, typed)
	})
}

// Publish chama todos os handlers do evento em ordem.
// Um handler com erro não impede os seguintes; os erros são combinados.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[e.EventName()]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			b.logger.Error("erro no handler de evento",
				zap.String("event", e.EventName()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandlerCount retorna quantos handlers estão registrados para o evento
func (b *Bus) HandlerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}
