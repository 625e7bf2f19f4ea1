package pricing

import (
	"math"
	"strconv"
	"strings"
)

// Money is a monetary value in BRL. Calculations carry full float precision
// and round to two decimal places only at the final step.
type Money = float64

// Round truncates a value to two decimal places, rounding half away from zero.
func Round(value Money) Money {
	return math.Round(value*100) / 100
}

// CalcLotPrice computes the customer-facing unit price for a product inside a
// lot by applying the office commission percentage on top of the base price.
// A nil commission means no surcharge. Non-positive base prices resolve to 0
// so a catalog render never fails on incomplete data.
func CalcLotPrice(basePrice Money, commissionPct *float64) Money {
	if basePrice <= 0 || math.IsNaN(basePrice) {
		return 0
	}
	pct := 0.0
	if commissionPct != nil {
		pct = *commissionPct
	}
	return Round(basePrice * (1 + pct/100))
}

// ComposeMarkups applies N sequential percentage markups to a base price,
// multiplying in the order given and rounding once at the end. The storefront
// flow uses the two-pass instance: per-product additional percentage first,
// then the office commission.
func ComposeMarkups(basePrice Money, pcts ...float64) Money {
	if basePrice <= 0 || math.IsNaN(basePrice) {
		return 0
	}
	price := basePrice
	for _, pct := range pcts {
		price *= 1 + pct/100
	}
	return Round(price)
}

// FormatBRL renders a value using Brazilian currency conventions (R$ 1.234,56).
// Invalid values render as R$ 0,00.
func FormatBRL(value Money) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	rounded := Round(value)
	negative := rounded < 0
	if negative {
		rounded = -rounded
	}
	cents := int64(math.Round(rounded * 100))
	intPart := cents / 100
	fracPart := cents % 100

	digits := strconv.FormatInt(intPart, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + pad2(fracPart)
	if negative {
		return "-" + out
	}
	return out
}

func pad2(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}
