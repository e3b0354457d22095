// Package testhelpers provides utilities for testing PocketBase-based applications.
package testhelpers

import (
	"strings"
	"testing"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"quotationdesk/collections"
)

// NewTestApp creates a PocketBase instance backed by a temporary directory.
// It bootstraps the app and runs collections.Setup to create all tables.
// The temporary directory is cleaned up automatically when the test finishes.
func NewTestApp(t *testing.T) *pocketbase.PocketBase {
	t.Helper()

	tmpDir := t.TempDir()
	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: tmpDir,
	})

	if err := app.Bootstrap(); err != nil {
		t.Fatalf("failed to bootstrap test app: %v", err)
	}

	collections.Setup(app)

	return app
}

// CreateTestQuotation creates a quotation dated 2025-03-14 for client
// "A&B Co." with 5% VAT. Totals are left at zero; callers that need them
// add items and set the totals themselves.
func CreateTestQuotation(t *testing.T, app *pocketbase.PocketBase, quotationNo string) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("quotations")
	if err != nil {
		t.Fatalf("failed to find quotations collection: %v", err)
	}

	date, _ := types.ParseDateTime(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))

	record := core.NewRecord(col)
	record.Set("quotation_no", quotationNo)
	record.Set("date", date)
	record.Set("project_name", "Villa Roof Works")
	record.Set("client_name", "A&B Co.")
	record.Set("client_phone", "+968 9000 0000")
	record.Set("vat_rate", 5)
	record.Set("warranty_years", 10)
	record.Set("show_scope_serial", true)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test quotation: %v", err)
	}

	return record
}

// SetTestTotals stores the financial block on a quotation.
func SetTestTotals(t *testing.T, app *pocketbase.PocketBase, quotation *core.Record, total, vat, grand float64) {
	t.Helper()
	quotation.Set("total_amount", total)
	quotation.Set("vat_amount", vat)
	quotation.Set("grand_total", grand)
	if err := app.Save(quotation); err != nil {
		t.Fatalf("failed to save test totals: %v", err)
	}
}

// CreateTestQuotationItem creates a line item; amount is stored as given.
func CreateTestQuotationItem(t *testing.T, app *pocketbase.PocketBase, quotationID string, sortOrder int, description string, qty, rate, amount float64) *core.Record {
	t.Helper()
	col, err := app.FindCollectionByNameOrId("quotation_items")
	if err != nil {
		t.Fatalf("failed to find quotation_items collection: %v", err)
	}
	record := core.NewRecord(col)
	record.Set("quotation", quotationID)
	record.Set("sort_order", sortOrder)
	record.Set("description", description)
	record.Set("qty", qty)
	record.Set("unit", "m2")
	record.Set("rate", rate)
	record.Set("amount", amount)
	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test quotation item: %v", err)
	}
	return record
}

// CreateTestListRow creates a scope, material or term row.
func CreateTestListRow(t *testing.T, app *pocketbase.PocketBase, collection, quotationID string, sortOrder int, text string) *core.Record {
	t.Helper()
	col, err := app.FindCollectionByNameOrId(collection)
	if err != nil {
		t.Fatalf("failed to find %s collection: %v", collection, err)
	}
	record := core.NewRecord(col)
	record.Set("quotation", quotationID)
	record.Set("sort_order", sortOrder)
	record.Set("text", text)
	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test %s row: %v", collection, err)
	}
	return record
}

// CreateTestTemplate stores an export template record directly, bypassing
// validation, so tests can plant corrupt settings.
func CreateTestTemplate(t *testing.T, app *pocketbase.PocketBase, ownerID, name string, settings any, public bool, usage int) *core.Record {
	t.Helper()
	col, err := app.FindCollectionByNameOrId("export_templates")
	if err != nil {
		t.Fatalf("failed to find export_templates collection: %v", err)
	}
	record := core.NewRecord(col)
	record.Set("name", name)
	record.Set("owner", ownerID)
	record.Set("is_public", public)
	record.Set("settings", settings)
	record.Set("usage_count", usage)
	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test template: %v", err)
	}
	return record
}

// AssertHTMLContains checks that body contains all specified fragments.
func AssertHTMLContains(t *testing.T, body string, fragments ...string) {
	t.Helper()

	for _, frag := range fragments {
		if !strings.Contains(body, frag) {
			t.Errorf("expected HTML to contain %q, but it was not found\nbody (first 500 chars): %s",
				frag, truncate(body, 500))
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
