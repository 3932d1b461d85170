// Package pricing derives the checkout totals for a cart.
//
// Displayed prices are tax-inclusive: the tax share is backed out of the
// subtotal rather than added on top of it.
package pricing

import (
	"github.com/shopspring/decimal"
)

const scale = 2

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  uint
}

type Policy struct {
	TaxRate         decimal.Decimal
	ShippingFee     decimal.Decimal
	FreeShippingMin decimal.Decimal
}

type Breakdown struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	CartTotalExclTax decimal.Decimal `json:"cart_total_excl_tax"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	ShippingCost     decimal.Decimal `json:"shipping_cost"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
}

func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum.Round(scale)
}

// Shipping is free for an empty cart and for subtotals at or above the
// free-shipping threshold; otherwise the flat fee applies.
func (p Policy) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	if p.FreeShippingMin.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingMin) {
		return decimal.Zero
	}
	if p.ShippingFee.IsNegative() {
		return decimal.Zero
	}
	return p.ShippingFee.Round(scale)
}

func Calculate(lines []Line, p Policy) Breakdown {
	subtotal := Subtotal(lines)

	rate := p.TaxRate
	if rate.IsNegative() {
		rate = decimal.Zero
	}

	exclTax := subtotal.DivRound(decimal.NewFromInt(1).Add(rate), scale)
	shipping := p.Shipping(subtotal)

	return Breakdown{
		Subtotal:         subtotal,
		CartTotalExclTax: exclTax,
		TaxAmount:        subtotal.Sub(exclTax),
		ShippingCost:     shipping,
		GrandTotal:       subtotal.Add(shipping),
	}
}

// ToMinor converts an amount to the provider's integer minor units (paise, cents).
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(scale).Round(0).IntPart()
}

func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -scale)
}
