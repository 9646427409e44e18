package cart

import (
	"github.com/shopspring/decimal"
)

var (
	// TaxRate is applied to the pre-tax subtotal.
	TaxRate = decimal.RequireFromString("0.10")
	// ShippingCost is the flat shipping charge. Shipping is free for now.
	ShippingCost = decimal.Zero

	verifyTolerance = decimal.RequireFromString("0.01")
	half            = decimal.RequireFromString("0.5")
)

// CalculateCartTotals computes the price breakdown. It never refuses to
// compute: validation problems are reported through Totals.Validation and
// entries that cannot be priced contribute zero.
func CalculateCartTotals(items []LineItem) Totals {
	subtotal := decimal.Zero
	totalItems := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
		totalItems += item.Quantity
	}
	return buildTotals(subtotal, totalItems, ValidateCart(items))
}

func calculateDecodedTotals(items []DecodedItem) Totals {
	subtotal := decimal.Zero
	totalItems := 0
	for _, entry := range items {
		subtotal = subtotal.Add(entry.Item.LineTotal())
		totalItems += entry.Item.Quantity
	}
	return buildTotals(subtotal, totalItems, validateDecoded(items))
}

func buildTotals(subtotal decimal.Decimal, totalItems int, validation CartValidation) Totals {
	tax := subtotal.Mul(TaxRate)
	shipping := ShippingCost
	total := subtotal.Add(tax).Add(shipping)

	return Totals{
		Subtotal:   RoundCents(subtotal),
		Tax:        RoundCents(tax),
		Shipping:   RoundCents(shipping),
		Total:      RoundCents(total),
		TotalItems: totalItems,
		Validation: validation,
	}
}

// RoundCents rounds half-up on the cent, i.e. floor(x*100 + 0.5) / 100.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Shift(2).Add(half).Floor().Shift(-2)
}

// VerifyCalculations compares two breakdowns field by field, tolerating a
// one-cent difference.
func VerifyCalculations(current, expected Totals) Verification {
	fields := []struct {
		name              string
		current, expected decimal.Decimal
	}{
		{"subtotal", current.Subtotal, expected.Subtotal},
		{"tax", current.Tax, expected.Tax},
		{"shipping", current.Shipping, expected.Shipping},
		{"total", current.Total, expected.Total},
		{"totalItems", decimal.NewFromInt(int64(current.TotalItems)), decimal.NewFromInt(int64(expected.TotalItems))},
	}

	out := Verification{IsValid: true, Differences: map[string]FieldDifference{}}
	for _, f := range fields {
		diff := f.current.Sub(f.expected).Abs()
		if diff.GreaterThan(verifyTolerance) {
			out.Differences[f.name] = FieldDifference{
				Current:    f.current,
				Expected:   f.expected,
				Difference: diff,
			}
			out.IsValid = false
		}
	}
	return out
}
