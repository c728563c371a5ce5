package cart

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidPromo = errors.New("invalid promo code")

// promoPercent maps normalized codes to their percentage off the subtotal.
var promoPercent = map[string]int64{
	"HEALTH10": 10,
	"FIRST20":  20,
}

// NormalizePromo trims and upper-cases code and reports whether it is known.
func NormalizePromo(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	_, ok := promoPercent[code]
	return code, ok
}

// Discount is floor(subtotal * pct / 100) for the given code, or zero when
// the code is unknown.
func Discount(subtotal int64, code string) int64 {
	pct, ok := promoPercent[code]
	if !ok || subtotal <= 0 {
		return 0
	}
	return decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
}

// Quote is what the customer pays. The discount is taken from the subtotal,
// which already reflects per-item savings.
type Quote struct {
	Subtotal  int64  `json:"subtotal"`
	Savings   int64  `json:"savings"`
	Discount  int64  `json:"discount"`
	Total     int64  `json:"total"`
	PromoCode string `json:"promoCode,omitempty"`
}

func NewQuote(t Totals, promoCode string) Quote {
	d := Discount(t.Subtotal, promoCode)
	return Quote{
		Subtotal:  t.Subtotal,
		Savings:   t.Savings,
		Discount:  d,
		Total:     t.Subtotal - d,
		PromoCode: promoCode,
	}
}

type promoState struct {
	Code string `json:"code"`
}
