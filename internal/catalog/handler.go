package catalog

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// BalanceSource yields the published balance, nil before the first read.
type BalanceSource func() *int64

// Handler exposes the menu with per-item affordability.
type Handler struct {
	catalog *Catalog
	balance BalanceSource
}

// NewHandler constructs a catalog handler.
func NewHandler(catalog *Catalog, balance BalanceSource) *Handler {
	return &Handler{catalog: catalog, balance: balance}
}

type itemView struct {
	Name          string        `json:"name"`
	Price         int64         `json:"price"`
	Affordability Affordability `json:"affordability"`
}

// List returns every item in menu order.
func (h *Handler) List(c *fiber.Ctx) error {
	bal := h.balance()
	items := h.catalog.Items()
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, itemView{Name: it.Name, Price: it.Price, Affordability: h.catalog.CanAfford(bal, it.Name)})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"items": out})
}

// Get returns the price and affordability of one item.
func (h *Handler) Get(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("item"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid item name")
	}
	price, err := h.catalog.PriceOf(name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(itemView{
		Name:          name,
		Price:         price,
		Affordability: h.catalog.CanAfford(h.balance(), name),
	})
}
