package collections

import "github.com/shopspring/decimal"

type totals struct {
	total float64
	vat   float64
	grand float64
}

// lineAmount is round(qty*rate, 3).
func lineAmount(qty, rate float64) float64 {
	v, _ := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(rate)).Round(3).Float64()
	return v
}

// computeTotals derives the financial block stored on a quotation record
// from its line amounts.
func computeTotals(amounts []float64, discount, vatRate, roundOff float64) totals {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(decimal.NewFromFloat(a))
	}
	sum = sum.Round(3)
	d := decimal.NewFromFloat(discount)
	vat := sum.Sub(d).Mul(decimal.NewFromFloat(vatRate)).Div(decimal.NewFromInt(100)).Round(3)
	grand := sum.Sub(d).Add(vat).Add(decimal.NewFromFloat(roundOff)).Round(3)

	t := totals{}
	t.total, _ = sum.Float64()
	t.vat, _ = vat.Float64()
	t.grand, _ = grand.Float64()
	return t
}
