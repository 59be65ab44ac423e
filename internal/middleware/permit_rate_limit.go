package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// PermitRateLimit limits signed-authorization attempts per owner or IP using
// Redis if available. Without a ceiling an attacker could grind signatures
// against a stolen nonce at line rate.
func PermitRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		var req struct {
			Owner string `json:"owner"`
		}
		_ = c.BodyParser(&req)
		owner := strings.TrimSpace(req.Owner)
		if owner == "" {
			owner = c.IP()
		}
		key := "rl:permit:" + owner
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many authorization attempts, try again later")
		}
		return c.Next()
	}
}
