package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/coffee_atm/internal/wallet"
)

// RegisterHealthRoutes adds a liveness endpoint reporting the wallet
// connection and, when configured, Redis reachability.
func RegisterHealthRoutes(app *fiber.App, d Deps, manager *wallet.Manager) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		redisStatus := "disabled"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.Cache != nil {
			redisStatus = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				redisStatus = err.Error()
			}
		}
		state := manager.DetectCapability(ctx)

		status := http.StatusOK
		if redisStatus != "ok" && redisStatus != "disabled" {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status": fiber.Map{
				"redis":  redisStatus,
				"wallet": state.String(),
				"ledger": d.Cfg.LedgerBackend,
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
