package balance

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/coffee_atm/internal/units"
)

// Presets are the amounts used when a request does not name one.
type Presets struct {
	Deposit  int64
	Withdraw int64
}

// Handler exposes balance reads and mutations.
type Handler struct {
	controller *Controller
	presets    Presets
	format     units.Formatter
}

// NewHandler constructs a balance handler.
func NewHandler(controller *Controller, presets Presets, format units.Formatter) *Handler {
	return &Handler{controller: controller, presets: presets, format: format}
}

type amountRequest struct {
	Amount *int64 `json:"amount"`
}

// Get returns the last published balance without touching the ledger.
func (h *Handler) Get(c *fiber.Ctx) error {
	b, ok := h.controller.Current()
	if !ok {
		return ErrBalanceNotYetLoaded
	}
	return c.Status(http.StatusOK).JSON(h.view(b))
}

// Refresh re-reads the ledger balance.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	b, err := h.controller.Refresh(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(h.view(b))
}

// Deposit credits the requested amount, or the preset when none is given.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	amount, err := h.amount(c, h.presets.Deposit)
	if err != nil {
		return err
	}
	res, err := h.controller.Deposit(c.UserContext(), amount)
	return h.result(c, res, err)
}

// Withdraw debits the requested amount, or the preset when none is given.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	amount, err := h.amount(c, h.presets.Withdraw)
	if err != nil {
		return err
	}
	res, err := h.controller.Withdraw(c.UserContext(), amount)
	return h.result(c, res, err)
}

// WithdrawAll drains the published balance.
func (h *Handler) WithdrawAll(c *fiber.Ctx) error {
	res, err := h.controller.WithdrawAll(c.UserContext())
	return h.result(c, res, err)
}

func (h *Handler) amount(c *fiber.Ctx, fallback int64) (int64, error) {
	if len(c.Body()) == 0 {
		return fallback, nil
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Amount == nil {
		return fallback, nil
	}
	return *req.Amount, nil
}

func (h *Handler) result(c *fiber.Ctx, res Result, err error) error {
	if err != nil && !res.Confirmed() {
		return err
	}
	body := fiber.Map{
		"kind":    res.Kind,
		"amount":  res.Amount,
		"receipt": res.Receipt,
	}
	if err != nil {
		body["warning"] = err.Error()
	} else {
		body["balance"] = h.view(res.Balance)
	}
	return c.Status(http.StatusOK).JSON(body)
}

func (h *Handler) view(b Balance) fiber.Map {
	return fiber.Map{
		"account": b.Account,
		"amount":  b.Amount,
		"display": h.format.Format(b.Amount),
		"as_of":   b.AsOf,
	}
}
