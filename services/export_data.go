package services

import "time"

// Party is one of the named contacts printed on a quotation.
type Party struct {
	Name  string
	Phone string
}

// IsEmpty reports whether the party has nothing to print.
func (p Party) IsEmpty() bool {
	return p.Name == "" && p.Phone == ""
}

// QuotationRecord is the header of a quotation as supplied by the record source.
// GrandTotal is trusted as stored; renderers never recompute it.
type QuotationRecord struct {
	ID          string
	QuotationNo string
	Date        time.Time
	ProjectName string

	Client        Party
	Contractor    Party
	Subcontractor Party
	Engineer      Party
	Attention     Party

	TotalAmount float64
	Discount    float64
	VATRate     float64
	VATAmount   float64
	RoundOff    float64
	GrandTotal  float64

	WarrantyYears int
	WarrantyNote  string

	ShowScopeSerial    bool
	ShowMaterialSerial bool
	ShowTermSerial     bool
}

// LineItem is a single priced row. Amount is round(Qty*Rate, 3), computed upstream.
type LineItem struct {
	Description string
	Qty         float64
	Unit        string
	Rate        float64
	Amount      float64
}

// ExportData bundles everything a renderer needs for one quotation.
type ExportData struct {
	Quotation QuotationRecord
	Items     []LineItem
	Scope     []string
	Materials []string
	Terms     []string
}

// CompanyInfo is the fixed letterhead and footer identity of the issuing company.
type CompanyInfo struct {
	Name       string
	Address    string
	Phone      string
	Email      string
	FooterText string
	Currency   string
}

// parties returns the labelled, non-empty parties in print order.
// The client is always included because it is mandatory.
func (q QuotationRecord) parties() []labelledParty {
	all := []labelledParty{
		{"Client", q.Client},
		{"Contractor", q.Contractor},
		{"Subcontractor", q.Subcontractor},
		{"Engineer", q.Engineer},
		{"Attention", q.Attention},
	}
	out := make([]labelledParty, 0, len(all))
	for i, p := range all {
		if i == 0 || !p.Party.IsEmpty() {
			out = append(out, p)
		}
	}
	return out
}

type labelledParty struct {
	Label string
	Party Party
}
