package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// AccountSource yields the bound wallet account, empty while disconnected.
type AccountSource func() string

// Audit logs every request with its outcome and, when a wallet is bound, the
// account it acted for. Mutating requests are logged at info, reads at debug.
func Audit(logger *slog.Logger, account AccountSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("duration", time.Since(start)),
		}
		if id := RequestIDFrom(c); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if account != nil {
			if acct := account(); acct != "" {
				attrs = append(attrs, slog.String("account", acct))
			}
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.Warn("request failed", attrs...)
			return err
		}

		if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
			logger.Debug("request completed", attrs...)
		} else {
			logger.Info("request completed", attrs...)
		}
		return nil
	}
}
