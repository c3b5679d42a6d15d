package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/orbitlabs/orbit-api/pkg/response"
)

// ProcessRateLimit caps workflow triggers per source function using a fixed
// one-minute window in redis. Redis being down never blocks processing; the
// limiter fails open with a warning.
func ProcessRateLimit(rdb *redis.Client, perMinute int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if perMinute <= 0 || rdb == nil {
			return c.Next()
		}

		source, _ := c.Locals("source_function").(string)
		if source == "" {
			source = c.IP()
		}
		key := fmt.Sprintf("ratelimit:process:%s:%s", source, time.Now().UTC().Format("200601021504"))

		count, err := rdb.Incr(c.Context(), key).Result()
		if err != nil {
			log.Warnf("rate limiter unavailable: %v", err)
			return c.Next()
		}
		if count == 1 {
			rdb.Expire(c.Context(), key, time.Minute)
		}
		if count > int64(perMinute) {
			return response.RateLimited(c)
		}
		return c.Next()
	}
}
