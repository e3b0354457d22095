package collections

import (
	"fmt"
	"log"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// ── Definition structs ───────────────────────────────────────────────────

type itemDef struct {
	description string
	qty         float64
	unit        string
	rate        float64
}

type partyDef struct {
	name  string
	phone string
}

type quotationDef struct {
	quotationNo   string
	date          string
	projectName   string
	client        partyDef
	contractor    partyDef
	engineer      partyDef
	attention     partyDef
	discount      float64
	vatRate       float64
	roundOff      float64
	warrantyYears int
	warrantyNote  string
	showSerials   bool
	items         []itemDef
	scope         []string
	materials     []string
	terms         []string
}

// Seed inserts demo quotations covering the common export layouts. It is
// safe to call on every startup because it returns early if any quotation
// records already exist.
func Seed(app *pocketbase.PocketBase) error {
	// ── idempotency: skip if quotations already exist ────────────────
	quotationsCol, err := app.FindCollectionByNameOrId("quotations")
	if err != nil {
		return fmt.Errorf("seed: could not find quotations collection: %w", err)
	}
	existing, err := app.FindAllRecords(quotationsCol)
	if err != nil {
		return fmt.Errorf("seed: could not query quotations: %w", err)
	}
	if len(existing) > 0 {
		return nil // already seeded
	}

	log.Println("seed: quotations collection is empty – inserting seed data …")

	// ── lookup child collections ─────────────────────────────────────
	itemsCol, err := app.FindCollectionByNameOrId("quotation_items")
	if err != nil {
		return fmt.Errorf("seed: could not find quotation_items collection: %w", err)
	}
	listCols := make(map[string]*core.Collection, 3)
	for _, name := range []string{"quotation_scope", "quotation_materials", "quotation_terms"} {
		col, err := app.FindCollectionByNameOrId(name)
		if err != nil {
			return fmt.Errorf("seed: could not find %s collection: %w", name, err)
		}
		listCols[name] = col
	}

	// ── helper: create list rows ─────────────────────────────────────
	createList := func(collection, quotationID string, lines []string) error {
		for i, text := range lines {
			r := core.NewRecord(listCols[collection])
			r.Set("quotation", quotationID)
			r.Set("sort_order", i+1)
			r.Set("text", text)
			if err := app.Save(r); err != nil {
				return fmt.Errorf("seed: %s row %d: %w", collection, i+1, err)
			}
		}
		return nil
	}

	// ── helper: create quotation with children ───────────────────────
	createQuotation := func(d quotationDef) (*core.Record, error) {
		amounts := make([]float64, len(d.items))
		for i, it := range d.items {
			amounts[i] = lineAmount(it.qty, it.rate)
		}
		t := computeTotals(amounts, d.discount, d.vatRate, d.roundOff)

		date, err := time.Parse("2006-01-02", d.date)
		if err != nil {
			return nil, fmt.Errorf("seed: bad date %q: %w", d.date, err)
		}
		dt, err := types.ParseDateTime(date)
		if err != nil {
			return nil, fmt.Errorf("seed: bad date %q: %w", d.date, err)
		}

		q := core.NewRecord(quotationsCol)
		q.Set("quotation_no", d.quotationNo)
		q.Set("date", dt)
		q.Set("project_name", d.projectName)
		for prefix, p := range map[string]partyDef{
			"client":     d.client,
			"contractor": d.contractor,
			"engineer":   d.engineer,
			"attention":  d.attention,
		} {
			q.Set(prefix+"_name", p.name)
			q.Set(prefix+"_phone", p.phone)
		}
		q.Set("total_amount", t.total)
		q.Set("discount", d.discount)
		q.Set("vat_rate", d.vatRate)
		q.Set("vat_amount", t.vat)
		q.Set("round_off", d.roundOff)
		q.Set("grand_total", t.grand)
		q.Set("warranty_years", d.warrantyYears)
		q.Set("warranty_note", d.warrantyNote)
		q.Set("show_scope_serial", d.showSerials)
		q.Set("show_material_serial", d.showSerials)
		q.Set("show_term_serial", d.showSerials)
		if err := app.Save(q); err != nil {
			return nil, fmt.Errorf("seed: quotation %s: %w", d.quotationNo, err)
		}

		for i, it := range d.items {
			r := core.NewRecord(itemsCol)
			r.Set("quotation", q.Id)
			r.Set("sort_order", i+1)
			r.Set("description", it.description)
			r.Set("qty", it.qty)
			r.Set("unit", it.unit)
			r.Set("rate", it.rate)
			r.Set("amount", amounts[i])
			if err := app.Save(r); err != nil {
				return nil, fmt.Errorf("seed: item %d of %s: %w", i+1, d.quotationNo, err)
			}
		}

		if err := createList("quotation_scope", q.Id, d.scope); err != nil {
			return nil, err
		}
		if err := createList("quotation_materials", q.Id, d.materials); err != nil {
			return nil, err
		}
		if err := createList("quotation_terms", q.Id, d.terms); err != nil {
			return nil, err
		}
		return q, nil
	}

	// ── Quotation 1: roof waterproofing, serial lists ────────────────
	if _, err := createQuotation(quotationDef{
		quotationNo:   "WP-2025S-101",
		date:          "2025-03-14",
		projectName:   "Al Khuwair Villa Roof",
		client:        partyDef{"Al Noor Trading & Contracting", "+968 9123 4567"},
		engineer:      partyDef{"Eng. Salim Al Harthy", "+968 9988 1122"},
		attention:     partyDef{"Mr. Rajesh Nair", ""},
		vatRate:       5,
		warrantyYears: 10,
		warrantyNote:  "Against water leakage through the treated area",
		showSerials:   true,
		items: []itemDef{
			{"Surface preparation: cleaning, removal of loose material and priming with bituminous primer", 240, "m2", 0.85},
			{"Supply and apply 4mm SBS modified bitumen membrane, torch applied with 100mm overlaps", 240, "m2", 4.25},
			{"Protection screed 50mm with 1% slope towards drains", 240, "m2", 2.5},
			{"Flood test for 48 hours", 1, "LS", 45},
		},
		scope: []string{
			"Surface preparation and priming",
			"Membrane application including upturns of 300mm at parapets",
			"Protection screed and flood test",
		},
		materials: []string{
			"SBS modified bitumen membrane 4mm",
			"Bituminous primer",
		},
		terms: []string{
			"50% advance with purchase order, balance on completion",
			"Quotation valid for 30 days",
			"Water and electricity to be provided by the client",
		},
	}); err != nil {
		return err
	}

	// ── Quotation 2: basement tanking, discount and round off ────────
	if _, err := createQuotation(quotationDef{
		quotationNo:   "WP-2025S-102",
		date:          "2025-04-02",
		projectName:   "Bausher Residential Block B",
		client:        partyDef{"Muscat Builders LLC", "+968 2456 7890"},
		contractor:    partyDef{"Gulf Civil Works", "+968 9345 6789"},
		discount:      150,
		vatRate:       5,
		roundOff:      -0.275,
		warrantyYears: 5,
		items: []itemDef{
			{"Crystalline waterproofing slurry to raft and retaining walls, two coats", 820, "m2", 3.1},
			{"PVC waterstop 230mm at construction joints", 160, "m", 2.75},
			{"Protection board 3mm", 410, "m2", 1.2},
		},
		scope: []string{
			"Application of crystalline slurry",
			"Installation of waterstops",
		},
		materials: []string{
			"Crystalline slurry, 25kg bags",
			"PVC waterstop 230mm",
		},
		terms: []string{
			"Payment 30 days from invoice",
			"Mobilisation within 7 days of purchase order",
		},
	}); err != nil {
		return err
	}

	log.Println("seed: all seed data inserted successfully (2 quotations)")
	return nil
}
