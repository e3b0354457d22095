package collections_test

import (
	"testing"

	"quotationdesk/collections"
	"quotationdesk/testhelpers"

	"github.com/pocketbase/pocketbase/core"
)

// expectedCollections is the full list of collections that Setup() must create.
var expectedCollections = []string{
	"quotations",
	"quotation_items",
	"quotation_scope",
	"quotation_materials",
	"quotation_terms",
	"export_templates",
}

func TestSetup_AllCollectionsExist(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	for _, name := range expectedCollections {
		col, err := app.FindCollectionByNameOrId(name)
		if err != nil {
			t.Errorf("collection %q not found after Setup(): %v", name, err)
			continue
		}
		if col.Name != name {
			t.Errorf("expected collection name %q, got %q", name, col.Name)
		}
	}
}

func TestSetup_Idempotent(t *testing.T) {
	app := testhelpers.NewTestApp(t) // Setup() already called once via NewTestApp

	// Collect IDs from first run
	ids := make(map[string]string)
	for _, name := range expectedCollections {
		col, _ := app.FindCollectionByNameOrId(name)
		ids[name] = col.Id
	}

	// Run Setup() again
	collections.Setup(app)

	// IDs should not change
	for _, name := range expectedCollections {
		col, err := app.FindCollectionByNameOrId(name)
		if err != nil {
			t.Errorf("collection %q missing after second Setup(): %v", name, err)
			continue
		}
		if col.Id != ids[name] {
			t.Errorf("collection %q id changed after second Setup(): %s -> %s", name, ids[name], col.Id)
		}
	}
}

func TestSetup_QuotationsFields(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	col, _ := app.FindCollectionByNameOrId("quotations")

	fields := []string{
		"quotation_no", "date", "project_name",
		"client_name", "client_phone", "contractor_name", "subcontractor_name", "engineer_name", "attention_name",
		"total_amount", "discount", "vat_rate", "vat_amount", "round_off", "grand_total",
		"warranty_years", "warranty_note", "show_scope_serial", "show_material_serial", "show_term_serial",
		"created", "updated",
	}
	for _, f := range fields {
		if col.Fields.GetByName(f) == nil {
			t.Errorf("quotations: missing field %q", f)
		}
	}

	if tf, ok := col.Fields.GetByName("client_name").(*core.TextField); !ok || !tf.Required {
		t.Error("quotations.client_name should be a required text field")
	}
}

func TestSetup_ChildCollections(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	quotations, _ := app.FindCollectionByNameOrId("quotations")

	for _, name := range []string{"quotation_items", "quotation_scope", "quotation_materials", "quotation_terms"} {
		col, _ := app.FindCollectionByNameOrId(name)
		if col.Fields.GetByName("sort_order") == nil {
			t.Errorf("%s: missing sort_order", name)
		}
		rf, ok := col.Fields.GetByName("quotation").(*core.RelationField)
		if !ok {
			t.Errorf("%s.quotation is not a RelationField", name)
			continue
		}
		if !rf.CascadeDelete || rf.MaxSelect != 1 || rf.CollectionId != quotations.Id {
			t.Errorf("%s.quotation = %+v, want single cascading relation to quotations", name, rf)
		}
	}

	items, _ := app.FindCollectionByNameOrId("quotation_items")
	for _, f := range []string{"description", "qty", "unit", "rate", "amount"} {
		if items.Fields.GetByName(f) == nil {
			t.Errorf("quotation_items: missing field %q", f)
		}
	}
}

func TestSetup_ExportTemplatesFields(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	col, _ := app.FindCollectionByNameOrId("export_templates")

	fields := []string{"name", "description", "owner", "is_public", "settings", "usage_count", "last_used", "created", "updated"}
	for _, f := range fields {
		if col.Fields.GetByName(f) == nil {
			t.Errorf("export_templates: missing field %q", f)
		}
	}
	if _, ok := col.Fields.GetByName("settings").(*core.JSONField); !ok {
		t.Error("export_templates.settings is not a JSONField")
	}
}

func TestSetup_CascadeDelete(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	q := testhelpers.CreateTestQuotation(t, app, "Q-1")
	testhelpers.CreateTestQuotationItem(t, app, q.Id, 1, "Membrane", 10, 2, 20)
	testhelpers.CreateTestListRow(t, app, "quotation_terms", q.Id, 1, "50% advance")

	if err := app.Delete(q); err != nil {
		t.Fatalf("delete quotation: %v", err)
	}

	for _, name := range []string{"quotation_items", "quotation_terms"} {
		col, _ := app.FindCollectionByNameOrId(name)
		rows, _ := app.FindAllRecords(col)
		if len(rows) != 0 {
			t.Errorf("%s: expected rows to be cascade deleted, got %d", name, len(rows))
		}
	}
}
