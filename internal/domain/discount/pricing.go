package discount

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountedPrice computes base - base*percent/100 with fixed-point decimal
// arithmetic, rounded half-even to 2 fractional digits to match the price
// scale. percent is assumed to lie in [0, 100].
func DiscountedPrice(base decimal.Decimal, percent int) decimal.Decimal {
	if percent == 0 {
		return base.RoundBank(2)
	}
	off := base.Mul(decimal.NewFromInt(int64(percent))).Div(hundred)
	return base.Sub(off).RoundBank(2)
}

// LineCost computes price*quantity net of the given discount, rounded
// half-even to 2 fractional digits.
func LineCost(price decimal.Decimal, quantity int, percent int) decimal.Decimal {
	total := price.Mul(decimal.NewFromInt(int64(quantity)))
	return DiscountedPrice(total, percent)
}
