package units

import (
	"github.com/shopspring/decimal"
)

// Formatter renders smallest-unit integer amounts as token-denominated strings.
type Formatter struct {
	Decimals int32
	Symbol   string
}

// Format renders amount with the formatter's decimals followed by the symbol,
// e.g. 1500 with 2 decimals and symbol "ETH" becomes "15.00 ETH".
func (f Formatter) Format(amount int64) string {
	s := decimal.New(amount, -f.Decimals).StringFixed(f.Decimals)
	if f.Symbol == "" {
		return s
	}
	return s + " " + f.Symbol
}
