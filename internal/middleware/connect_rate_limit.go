package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const connectRateKeyPrefix = "coffee_atm:rl:connect:"

// ConnectRateLimit caps wallet connection prompts per client IP and minute.
// Each attempt may pop an approval dialog in the user's wallet, so repeated
// attempts are throttled. Without Redis it is a no-op.
func ConnectRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		key := connectRateKeyPrefix + c.IP()
		ctx := c.UserContext()
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			cache.Expire(ctx, key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(http.StatusTooManyRequests, "too many connection attempts, try again later")
		}
		return c.Next()
	}
}
