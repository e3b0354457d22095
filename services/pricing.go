// Package services implements the quotation export engine: settings
// resolution, QR generation, file naming, the PDF, spreadsheet and image
// renderers, the template store and batch export.
package services

import "github.com/shopspring/decimal"

const amountPlaces = 3

// CalcLineAmount returns round(qty*rate, 3) using decimal arithmetic so that
// values like 0.1*3 do not drift.
func CalcLineAmount(qty, rate float64) float64 {
	v, _ := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(rate)).Round(amountPlaces).Float64()
	return v
}

// CalcVATAmount returns round((total-discount)*rate/100, 3).
func CalcVATAmount(total, discount, rate float64) float64 {
	base := decimal.NewFromFloat(total).Sub(decimal.NewFromFloat(discount))
	v, _ := base.Mul(decimal.NewFromFloat(rate)).Div(decimal.NewFromInt(100)).Round(amountPlaces).Float64()
	return v
}

// CalcGrandTotal returns total - discount + vat + roundOff, rounded to 3 places.
func CalcGrandTotal(total, discount, vat, roundOff float64) float64 {
	v, _ := decimal.NewFromFloat(total).
		Sub(decimal.NewFromFloat(discount)).
		Add(decimal.NewFromFloat(vat)).
		Add(decimal.NewFromFloat(roundOff)).
		Round(amountPlaces).
		Float64()
	return v
}

// QuotationTotals holds the computed financial block of a quotation.
type QuotationTotals struct {
	TotalAmount float64
	Discount    float64
	VATRate     float64
	VATAmount   float64
	RoundOff    float64
	GrandTotal  float64
}

// CalcQuotationTotals sums line amounts and derives VAT and grand total.
func CalcQuotationTotals(items []LineItem, discount, vatRate, roundOff float64) QuotationTotals {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Amount))
	}
	total, _ := sum.Round(amountPlaces).Float64()
	vat := CalcVATAmount(total, discount, vatRate)
	return QuotationTotals{
		TotalAmount: total,
		Discount:    discount,
		VATRate:     vatRate,
		VATAmount:   vat,
		RoundOff:    roundOff,
		GrandTotal:  CalcGrandTotal(total, discount, vat, roundOff),
	}
}
