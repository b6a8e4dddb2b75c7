package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownItem is returned when an item name is not on the menu.
	ErrUnknownItem = errors.New("unknown item")

	// ErrInvalidCatalog indicates a menu definition that violates the catalog rules
	// (empty or duplicate names, non-positive prices).
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Item is one purchasable entry of the menu.
type Item struct {
	Name  string `yaml:"name" json:"name"`
	Price int64  `yaml:"price" json:"price"`
}

// Catalog is an immutable name to price lookup table.
type Catalog struct {
	items  []Item
	prices map[string]int64
}

// New validates the provided items and builds a catalog preserving their order.
func New(items []Item) (*Catalog, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidCatalog)
	}
	c := &Catalog{
		items:  make([]Item, 0, len(items)),
		prices: make(map[string]int64, len(items)),
	}
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: item name is required", ErrInvalidCatalog)
		}
		if it.Price <= 0 {
			return nil, fmt.Errorf("%w: price of %q must be positive", ErrInvalidCatalog, name)
		}
		if _, exists := c.prices[name]; exists {
			return nil, fmt.Errorf("%w: duplicate item %q", ErrInvalidCatalog, name)
		}
		c.prices[name] = it.Price
		c.items = append(c.items, Item{Name: name, Price: it.Price})
	}
	return c, nil
}

// Items returns the menu in configuration order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// PriceOf returns the price of the named item.
func (c *Catalog) PriceOf(item string) (int64, error) {
	price, ok := c.prices[item]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}
	return price, nil
}

// CanAfford evaluates whether balance covers the price of item. A nil balance
// means no ledger read has completed yet.
func (c *Catalog) CanAfford(balance *int64, item string) Affordability {
	if balance == nil || item == "" {
		return Unknown
	}
	price, ok := c.prices[item]
	if !ok {
		return Unknown
	}
	if *balance >= price {
		return Affordable
	}
	return NotAffordable
}
