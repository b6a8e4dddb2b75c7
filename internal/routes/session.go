package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/coffee_atm/internal/wallet"
)

// RegisterSessionRoutes wires the wallet connection endpoints.
func RegisterSessionRoutes(r fiber.Router, h *wallet.Handler, connectLimiter fiber.Handler) {
	r.Get("/session", h.Session)
	r.Post("/session/connect", connectLimiter, h.Connect)
}
