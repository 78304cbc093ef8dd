// Package pricing computes order amounts. All arithmetic is decimal and
// amounts are rounded to two places before they leave the package.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/model"
)

// Currency of every amount produced here.
const Currency = "KES"

var (
	// TaxRate is the VAT applied to the subtotal.
	TaxRate = decimal.RequireFromString("0.16")

	// FreeShippingThreshold is the standard-shipping subtotal from which
	// delivery is free.
	FreeShippingThreshold = decimal.NewFromInt(5000)

	standardFee  = decimal.NewFromInt(300)
	expressFee   = decimal.NewFromInt(500)
	overnightFee = decimal.NewFromInt(1000)

	hundred = decimal.NewFromInt(100)
)

// coupons maps a code to its percentage off the subtotal.
var coupons = map[string]decimal.Decimal{
	"WELCOME10": decimal.NewFromInt(10),
}

// Quote holds the amounts of an order.
type Quote struct {
	Subtotal float64
	Tax      float64
	Shipping float64
	Discount float64
	Total    float64
}

// UnitPrice returns the effective price of one unit: the product price less
// its percentage discount, unless the matched variant carries its own price.
func UnitPrice(p *model.Product, v *model.Variant) decimal.Decimal {
	if v != nil && v.Price > 0 {
		return round(decimal.NewFromFloat(v.Price))
	}
	price := decimal.NewFromFloat(p.Price)
	if p.Discount > 0 && p.Discount <= 100 {
		off := decimal.NewFromFloat(p.Discount).Div(hundred)
		price = price.Mul(decimal.NewFromInt(1).Sub(off))
	}
	return round(price)
}

// LineTotal is unit price times quantity.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// Tax returns the VAT owed on subtotal.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return round(subtotal.Mul(TaxRate))
}

// Shipping returns the delivery fee for method. An empty method is treated
// as standard.
func Shipping(method model.ShippingMethod, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch method {
	case model.ShippingStandard, "":
		if subtotal.LessThan(FreeShippingThreshold) {
			return standardFee, nil
		}
		return decimal.Zero, nil
	case model.ShippingExpress:
		return expressFee, nil
	case model.ShippingOvernight:
		return overnightFee, nil
	default:
		return decimal.Zero, apperr.Validation("unsupported shipping method %q", method)
	}
}

// Discount resolves a coupon code against subtotal. An empty code yields no
// discount; an unknown code is rejected.
func Discount(code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	code = NormalizeCoupon(code)
	if code == "" {
		return decimal.Zero, nil
	}
	pct, ok := coupons[code]
	if !ok {
		return decimal.Zero, apperr.Validation("invalid coupon code %q", code)
	}
	return round(subtotal.Mul(pct).Div(hundred)), nil
}

func NormalizeCoupon(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Calculate derives every amount of an order from its subtotal.
func Calculate(subtotal decimal.Decimal, method model.ShippingMethod, coupon string) (Quote, error) {
	subtotal = round(subtotal)
	shipping, err := Shipping(method, subtotal)
	if err != nil {
		return Quote{}, err
	}
	discount, err := Discount(coupon, subtotal)
	if err != nil {
		return Quote{}, err
	}
	tax := Tax(subtotal)
	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Quote{
		Subtotal: subtotal.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
		Discount: discount.InexactFloat64(),
		Total:    round(total).InexactFloat64(),
	}, nil
}

// Sum adds float amounts without accumulating binary rounding error.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return round(total).InexactFloat64()
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
