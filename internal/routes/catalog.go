package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/coffee_atm/internal/catalog"
	"github.com/congo-pay/coffee_atm/internal/purchase"
)

// RegisterCatalogRoutes wires the menu endpoints.
func RegisterCatalogRoutes(r fiber.Router, h *catalog.Handler) {
	r.Get("/catalog", h.List)
	r.Get("/catalog/:item", h.Get)
}

// RegisterPurchaseRoutes wires purchase endpoints.
func RegisterPurchaseRoutes(r fiber.Router, h *purchase.Handler) {
	r.Post("/purchases", h.Buy)
	r.Get("/purchases", h.History)
}
