package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/orbitlabs/orbit-api/internal/auth"
	"github.com/orbitlabs/orbit-api/internal/config"
	"github.com/orbitlabs/orbit-api/pkg/response"
)

// SystemAuth guards the internal endpoints. Callers authenticate with a
// bearer token that is either the shared system secret itself or a service
// JWT signed with it. When an allow-list of source functions is configured,
// the x-source-function header (or the JWT's function claim) must match it.
func SystemAuth(cfg *config.AuthConfig) fiber.Handler {
	allowed := make(map[string]bool, len(cfg.AllowedSources))
	for _, s := range cfg.AllowedSources {
		allowed[s] = true
	}

	return func(c *fiber.Ctx) error {
		if cfg.SystemSecret == "" {
			return response.SystemUnauthorized(c)
		}

		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return response.SystemUnauthorized(c)
		}

		source := c.Get("x-source-function")

		if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.SystemSecret)) != 1 {
			claims, err := auth.ValidateServiceToken(cfg.SystemSecret, token)
			if err != nil {
				return response.SystemUnauthorized(c)
			}
			if source == "" {
				source = claims.Function
			}
		}

		if len(allowed) > 0 && !allowed[source] {
			return response.SystemUnauthorized(c)
		}

		c.Locals("source_function", source)
		return c.Next()
	}
}
