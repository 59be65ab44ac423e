package rate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/redis/go-redis/v9"
)

const defaultRateKey = "rate:current"

// RedisSource reads the current rate from a Redis key maintained by an
// external oracle process. The value is a decimal string scaled by
// conversion.Unit.
type RedisSource struct {
	cache *redis.Client
	key   string
}

// NewRedisSource builds a Redis-backed rate source. An empty key selects the
// default key.
func NewRedisSource(cache *redis.Client, key string) *RedisSource {
	if key == "" {
		key = defaultRateKey
	}
	return &RedisSource{cache: cache, key: key}
}

// CurrentRate fetches and parses the published rate.
func (s *RedisSource) CurrentRate(ctx context.Context) (*big.Int, error) {
	raw, err := s.cache.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("fetch rate: %w", err)
	}
	rate, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: malformed rate %q", ErrUnavailable, raw)
	}
	return rate, nil
}

// Publish writes a rate to the source's key. Used by the administrative
// surface and by tests standing in for the oracle.
func (s *RedisSource) Publish(ctx context.Context, rate *big.Int) error {
	return s.cache.Set(ctx, s.key, rate.String(), 0).Err()
}
