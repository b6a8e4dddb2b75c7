package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/coffee_atm/internal/balance"
	"github.com/congo-pay/coffee_atm/internal/operation"
)

// RegisterBalanceRoutes wires balance reads and ledger mutations.
func RegisterBalanceRoutes(r fiber.Router, h *balance.Handler) {
	r.Get("/balance", h.Get)
	r.Post("/balance/refresh", h.Refresh)
	r.Post("/deposits", h.Deposit)
	r.Post("/withdrawals", h.Withdraw)
	r.Post("/withdrawals/all", h.WithdrawAll)
}

func RegisterOperationRoutes(r fiber.Router, h *operation.Handler) {
	r.Get("/operation", h.Get)
}
