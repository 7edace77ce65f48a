package middleware

import (
	"time"

	"go-inventory-ledger/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger binds a request-scoped logger carrying the request id to the user context
// and logs server errors once the handler chain returns.
func RequestLogger(logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
			ctx = logg.WithRequestID(ctx, id)
		}
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil || status >= fiber.StatusInternalServerError {
			ctx = logg.WithFields(c.UserContext(), map[string]any{
				"method":      c.Method(),
				"path":        c.Path(),
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			logg.Error(ctx, "request failed", err)
		}
		return err
	}
}
