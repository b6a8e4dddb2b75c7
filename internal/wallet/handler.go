package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the connection state machine over HTTP.
type Handler struct {
	manager *Manager
	// onConnect runs after a successful Connect, e.g. the initial balance read.
	onConnect func(c *fiber.Ctx, s Session)
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(manager *Manager, onConnect func(c *fiber.Ctx, s Session)) *Handler {
	return &Handler{manager: manager, onConnect: onConnect}
}

// Session returns the current connection snapshot, re-probing for a wallet
// while none has been detected.
func (h *Handler) Session(c *fiber.Ctx) error {
	h.manager.DetectCapability(c.UserContext())
	return c.Status(http.StatusOK).JSON(h.manager.Session())
}

// Connect requests account access from the wallet.
func (h *Handler) Connect(c *fiber.Ctx) error {
	session, err := h.manager.Connect(c.UserContext())
	if err != nil {
		return err
	}
	if h.onConnect != nil {
		h.onConnect(c, session)
	}
	return c.Status(http.StatusOK).JSON(session)
}
