package services

import (
	"context"
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase/core"
)

// Source collections.
const (
	QuotationsCollection = "quotations"
	ItemsCollection      = "quotation_items"
	ScopeCollection      = "quotation_scope"
	MaterialsCollection  = "quotation_materials"
	TermsCollection      = "quotation_terms"
)

// QuotationSource supplies the data for one quotation. A missing quotation
// is reported with an error matching ErrNotFound.
type QuotationSource interface {
	Fetch(ctx context.Context, quotationID string) (ExportData, error)
}

// RecordSource reads quotations from PocketBase collections.
type RecordSource struct {
	app core.App
}

// NewRecordSource returns a source backed by app.
func NewRecordSource(app core.App) *RecordSource {
	return &RecordSource{app: app}
}

// Fetch assembles a quotation and its child rows, each ordered by sort_order.
func (s *RecordSource) Fetch(ctx context.Context, quotationID string) (ExportData, error) {
	if err := ctx.Err(); err != nil {
		return ExportData{}, err
	}

	q, err := s.app.FindRecordById(QuotationsCollection, quotationID)
	if err != nil {
		return ExportData{}, fmt.Errorf("%w: %s", ErrNotFound, quotationID)
	}

	data := ExportData{Quotation: quotationFromRecord(q)}

	items, err := s.children(ItemsCollection, quotationID)
	if err != nil {
		return ExportData{}, err
	}
	for _, it := range items {
		data.Items = append(data.Items, LineItem{
			Description: it.GetString("description"),
			Qty:         it.GetFloat("qty"),
			Unit:        it.GetString("unit"),
			Rate:        it.GetFloat("rate"),
			Amount:      it.GetFloat("amount"),
		})
	}

	for _, list := range []struct {
		collection string
		dst        *[]string
	}{
		{ScopeCollection, &data.Scope},
		{MaterialsCollection, &data.Materials},
		{TermsCollection, &data.Terms},
	} {
		recs, err := s.children(list.collection, quotationID)
		if err != nil {
			return ExportData{}, err
		}
		for _, r := range recs {
			if text := r.GetString("text"); text != "" {
				*list.dst = append(*list.dst, text)
			}
		}
	}
	return data, nil
}

func (s *RecordSource) children(collection, quotationID string) ([]*core.Record, error) {
	recs, err := s.app.FindRecordsByFilter(
		collection,
		"quotation = {:quotationId}",
		"sort_order",
		0,
		0,
		map[string]any{"quotationId": quotationID},
	)
	if err != nil {
		log.Printf("quotation_source: could not fetch %s for %s: %v", collection, quotationID, err)
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	return recs, nil
}

func quotationFromRecord(q *core.Record) QuotationRecord {
	party := func(prefix string) Party {
		return Party{Name: q.GetString(prefix + "_name"), Phone: q.GetString(prefix + "_phone")}
	}
	return QuotationRecord{
		ID:                 q.Id,
		QuotationNo:        q.GetString("quotation_no"),
		Date:               q.GetDateTime("date").Time(),
		ProjectName:        q.GetString("project_name"),
		Client:             party("client"),
		Contractor:         party("contractor"),
		Subcontractor:      party("subcontractor"),
		Engineer:           party("engineer"),
		Attention:          party("attention"),
		TotalAmount:        q.GetFloat("total_amount"),
		Discount:           q.GetFloat("discount"),
		VATRate:            q.GetFloat("vat_rate"),
		VATAmount:          q.GetFloat("vat_amount"),
		RoundOff:           q.GetFloat("round_off"),
		GrandTotal:         q.GetFloat("grand_total"),
		WarrantyYears:      q.GetInt("warranty_years"),
		WarrantyNote:       q.GetString("warranty_note"),
		ShowScopeSerial:    q.GetBool("show_scope_serial"),
		ShowMaterialSerial: q.GetBool("show_material_serial"),
		ShowTermSerial:     q.GetBool("show_term_serial"),
	}
}
