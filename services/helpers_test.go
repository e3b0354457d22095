package services

import (
	"bytes"
	"time"
)

// bytesReader wraps a byte slice in a bytes.Reader for use with excelize.OpenReader.
func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

var testCompany = CompanyInfo{
	Name:       "Gulf Waterproofing LLC",
	Address:    "PO Box 112, Muscat",
	Phone:      "+968 2400 0000",
	Email:      "sales@example.com",
	FooterText: "Thank you for your business",
	Currency:   "OMR",
}

// sampleExportData returns a small quotation with consistent totals.
func sampleExportData() ExportData {
	items := []LineItem{
		{Description: "Supply and apply bituminous membrane to roof", Qty: 120, Unit: "m2", Rate: 4.25},
		{Description: "Protection screed 50mm", Qty: 120, Unit: "m2", Rate: 2.5},
		{Description: "Mobilisation", Qty: 1, Unit: "LS", Rate: 75},
	}
	for i := range items {
		items[i].Amount = CalcLineAmount(items[i].Qty, items[i].Rate)
	}
	totals := CalcQuotationTotals(items, 0, 5, 0)

	return ExportData{
		Quotation: QuotationRecord{
			ID:            "q1",
			QuotationNo:   "#WP-2025S-123",
			Date:          time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
			ProjectName:   "Villa Roof Works",
			Client:        Party{Name: "A&B Co.", Phone: "+968 9000 0000"},
			Engineer:      Party{Name: "R. Nair"},
			TotalAmount:   totals.TotalAmount,
			Discount:      totals.Discount,
			VATRate:       totals.VATRate,
			VATAmount:     totals.VATAmount,
			RoundOff:      totals.RoundOff,
			GrandTotal:    totals.GrandTotal,
			WarrantyYears: 10,
			WarrantyNote:  "Against leakage",

			ShowScopeSerial: true,
			ShowTermSerial:  true,
		},
		Items:     items,
		Scope:     []string{"Surface preparation", "Primer coat", "Membrane application"},
		Materials: []string{"SBS modified bitumen membrane 4mm"},
		Terms:     []string{"50% advance", "Validity 30 days"},
	}
}
