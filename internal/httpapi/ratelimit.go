package httpapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware caps requests per client IP per second, using Redis
// INCR+EXPIRE the way the teacher's per-partner limiter did, simplified from
// three tiers (second/day/month, keyed by an authenticated partner) down to
// one (second, keyed by IP) since this module has no partner/auth layer.
func RateLimitMiddleware(rdb *redis.Client, perSecond int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()
		now := time.Now()
		key := fmt.Sprintf("rl:%s:%d", c.IP(), now.Unix())

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis unavailable: fail open rather than block all traffic.
			return c.Next()
		}
		rdb.Expire(ctx, key, 2*time.Second)

		c.Set("X-RateLimit-Limit", strconv.Itoa(perSecond))
		if count > int64(perSecond) {
			c.Set("X-RateLimit-Remaining", "0")
			c.Set("Retry-After", "1")
			return c.Status(429).JSON(fiber.Map{
				"error":       "rate_limit_exceeded",
				"message":     "too many requests per second",
				"retry_after": 1,
			})
		}

		remaining := int64(perSecond) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		return c.Next()
	}
}
