package dedupe

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/magnani/sicoob-payment/internal/ports"
)

func exerciseGuard(t *testing.T, guard ports.DeliveryGuard) {
	t.Helper()
	ctx := context.Background()
	key := "tx-" + uuid.NewString()

	ok, err := guard.Claim(ctx, key)
	if err != nil || !ok {
		t.Fatalf("first Claim() = %v, %v; want true, nil", ok, err)
	}

	ok, err = guard.Claim(ctx, key)
	if err != nil || ok {
		t.Fatalf("second Claim() = %v, %v; want false, nil", ok, err)
	}

	if err := guard.Release(ctx, key); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	ok, err = guard.Claim(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Claim() after release = %v, %v; want true, nil", ok, err)
	}
	_ = guard.Release(ctx, key)
}

func TestLocal(t *testing.T) {
	exerciseGuard(t, NewLocal())
}

func TestLocal_ReleaseUnknownKey(t *testing.T) {
	if err := NewLocal().Release(context.Background(), "nunca-reservada"); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}

// Requer um Redis real: REDIS_TEST_ADDR=localhost:6379
func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	rdb, err := ConnectRedis(context.Background(), addr, "", 0)
	if err != nil {
		t.Fatalf("ConnectRedis() error = %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	exerciseGuard(t, NewRedis(rdb, 5*time.Second))
}
