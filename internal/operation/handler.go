package operation

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler reports the serializer state.
type Handler struct {
	serializer *Serializer
}

func NewHandler(serializer *Serializer) *Handler {
	return &Handler{serializer: serializer}
}

// Get returns whether a mutation is in flight and, if so, its snapshot.
func (h *Handler) Get(c *fiber.Ctx) error {
	body := fiber.Map{"busy": h.serializer.Busy()}
	if p, ok := h.serializer.Pending(); ok {
		body["pending"] = p
	}
	return c.Status(http.StatusOK).JSON(body)
}
