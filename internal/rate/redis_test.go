package rate

import (
	"context"
	"errors"
	"math/big"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisSource(t *testing.T) (*RedisSource, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return NewRedisSource(cache, ""), cleanup
}

func TestRedisSourceRoundTrip(t *testing.T) {
	src, cleanup := setupRedisSource(t)
	defer cleanup()

	ctx := context.Background()
	want := new(big.Int)
	want.SetString("1050000000000000000", 10)

	if err := src.Publish(ctx, want); err != nil {
		t.Fatalf("publish rate: %v", err)
	}

	got, err := src.CurrentRate(ctx)
	if err != nil {
		t.Fatalf("current rate: %v", err)
	}
	if got.Cmp(want) != 0 {
		t.Fatalf("expected rate %s, got %s", want, got)
	}
}

func TestRedisSourceMissingKey(t *testing.T) {
	src, cleanup := setupRedisSource(t)
	defer cleanup()

	if _, err := src.CurrentRate(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
