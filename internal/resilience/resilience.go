// Package resilience fornece disjuntor e bulkhead para as integrações.
// Nenhuma chamada ao banco é repetida automaticamente.
package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// NewCircuitBreaker cria um disjuntor com os limites padrão.
// Abre com pelo menos 5 chamadas e 60% de falhas na janela de 30s.
func NewCircuitBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // meio-aberto: até 3 chamadas de teste
		Interval:    30 * time.Second, // fechado: zera os contadores a cada 30s
		Timeout:     10 * time.Second, // aberto -> meio-aberto após 10s
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker mudou de estado",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Bulkhead limita o acesso concorrente a um recurso
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead cria um bulkhead com a concorrência máxima informada
func NewBulkhead(maxConcurrency int) *Bulkhead {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire bloqueia até haver vaga ou o contexto ser cancelado
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire ocupa uma vaga sem esperar; false quando todas estão ocupadas
func (b *Bulkhead) TryAcquire() bool {
	select {
	case b.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release libera uma vaga
func (b *Bulkhead) Release() {
	<-b.sem
}
