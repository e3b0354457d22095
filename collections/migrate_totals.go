package collections

import (
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase"
)

// MigrateQuotationTotals backfills line amounts and the stored totals of
// quotations saved before amounts were persisted: items with a zero amount
// get qty*rate and quotations with a zero grand total are recomputed.
// Safe to call on every startup -- returns early if nothing to migrate.
func MigrateQuotationTotals(app *pocketbase.PocketBase) error {
	quotationsCol, err := app.FindCollectionByNameOrId("quotations")
	if err != nil {
		return fmt.Errorf("migrate: could not find quotations collection: %w", err)
	}

	stale, err := app.FindRecordsByFilter(
		quotationsCol,
		"grand_total = 0",
		"",
		0,
		0,
		nil,
	)
	if err != nil {
		return fmt.Errorf("migrate: could not query quotations without totals: %w", err)
	}

	if len(stale) == 0 {
		return nil
	}

	log.Printf("migrate: found %d quotation(s) without totals -- recomputing...\n", len(stale))

	for _, q := range stale {
		items, err := app.FindRecordsByFilter(
			"quotation_items",
			"quotation = {:quotationId}",
			"sort_order",
			0,
			0,
			map[string]any{"quotationId": q.Id},
		)
		if err != nil {
			log.Printf("migrate: failed to load items of quotation %s: %v\n", q.Id, err)
			continue
		}
		if len(items) == 0 {
			continue
		}

		amounts := make([]float64, 0, len(items))
		for _, it := range items {
			amount := it.GetFloat("amount")
			if amount == 0 {
				amount = lineAmount(it.GetFloat("qty"), it.GetFloat("rate"))
				it.Set("amount", amount)
				if err := app.Save(it); err != nil {
					log.Printf("migrate: failed to save amount of item %s: %v\n", it.Id, err)
				}
			}
			amounts = append(amounts, amount)
		}

		t := computeTotals(amounts, q.GetFloat("discount"), q.GetFloat("vat_rate"), q.GetFloat("round_off"))
		q.Set("total_amount", t.total)
		q.Set("vat_amount", t.vat)
		q.Set("grand_total", t.grand)
		if err := app.Save(q); err != nil {
			log.Printf("migrate: failed to save totals of quotation %s: %v\n", q.Id, err)
			continue
		}

		log.Printf("migrate: quotation %q -> grand total %.3f\n", q.GetString("quotation_no"), t.grand)
	}

	log.Println("migrate: quotation totals migration complete.")
	return nil
}
