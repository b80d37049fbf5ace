// Package dedupe reserva txids durante o processamento de um webhook,
// para que entregas simultâneas do mesmo PIX não corram em paralelo
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/magnani/sicoob-payment/internal/ports"
)

const keyPrefix = "sicoob:pix:claim:"

// releaseScript apaga a chave só se ela ainda pertencer a quem reservou
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ConnectRedis abre a conexão com o Redis e verifica com PING
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("erro ao conectar no Redis: %w", err)
	}
	return rdb, nil
}

// Redis implementa o DeliveryGuard com SET NX e TTL
type Redis struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	tokens sync.Map // chave -> token de quem reservou
}

var _ ports.DeliveryGuard = (*Redis)(nil)

// NewRedis cria o guard. A reserva expira após ttl mesmo se não for liberada.
func NewRedis(rdb redis.Cmdable, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

// Claim reserva a chave; retorna false se outra entrega já a reservou
func (r *Redis) Claim(ctx context.Context, key string) (bool, error) {
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, keyPrefix+key, token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("erro ao reservar %s: %w", key, err)
	}
	if ok {
		r.tokens.Store(key, token)
	}
	return ok, nil
}

// Release libera a chave reservada por este processo
func (r *Redis) Release(ctx context.Context, key string) error {
	v, ok := r.tokens.LoadAndDelete(key)
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, r.rdb, []string{keyPrefix + key}, v.(string)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("erro ao liberar %s: %w", key, err)
	}
	return nil
}

// Local implementa o DeliveryGuard dentro de um único processo
type Local struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

var _ ports.DeliveryGuard = (*Local)(nil)

// NewLocal cria um guard em memória
func NewLocal() *Local {
	return &Local{claimed: make(map[string]struct{})}
}

// Claim reserva a chave se estiver livre
func (l *Local) Claim(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.claimed[key]; ok {
		return false, nil
	}
	l.claimed[key] = struct{}{}
	return true, nil
}

// Release libera a chave
func (l *Local) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claimed, key)
	return nil
}
