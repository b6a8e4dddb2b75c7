package purchase

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Handler exposes purchase endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a purchase handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

type buyRequest struct {
	Item string `json:"item" validate:"required,max=64"`
}

// Buy purchases one catalog item.
func (h *Handler) Buy(c *fiber.Ctx) error {
	var req buyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req.Item = strings.TrimSpace(req.Item)
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, describe(err))
	}

	out, err := h.service.Buy(c.UserContext(), req.Item)
	if err != nil {
		// confirmed and recorded; only the follow-up read failed or timed out
		if out.Record != nil {
			return c.Status(http.StatusCreated).JSON(fiber.Map{
				"record":  out.Record,
				"receipt": out.Result.Receipt,
				"warning": err.Error(),
			})
		}
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"record":  out.Record,
		"receipt": out.Result.Receipt,
		"balance": out.Result.Balance,
	})
}

// History lists recorded purchases, oldest first.
func (h *Handler) History(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"purchases": h.service.History(),
	})
}

func describe(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err.Error()
	}
	f := fields[0]
	switch f.Tag() {
	case "required":
		return strings.ToLower(f.Field()) + " is required"
	case "max":
		return strings.ToLower(f.Field()) + " must be at most " + f.Param() + " characters"
	default:
		return strings.ToLower(f.Field()) + " is invalid"
	}
}
