package services

import (
	"errors"
	"strings"
	"testing"

	"quotationdesk/testhelpers"
)

func TestTemplateStore_SaveAndGet(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	store := NewTemplateStore(app)

	saved, err := store.Save(TemplateInput{
		Name:        "  Wide A3  ",
		Description: "Landscape for big BOQs",
		Settings:    map[string]any{"paperSize": "A3", "orientation": "landscape", "headerFontSize": 500},
	}, "u1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" || saved.Name != "Wide A3" {
		t.Errorf("saved = %+v", saved)
	}
	if saved.UsageCount != 0 || !saved.LastUsed.IsZero() {
		t.Errorf("new template should have zero usage, got %d / %v", saved.UsageCount, saved.LastUsed)
	}
	if saved.Settings.PaperSize != "A3" || saved.Settings.HeaderFontSize != 28 {
		t.Errorf("settings = %+v, want resolved values", saved.Settings)
	}

	got, err := store.Get(saved.ID, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Settings != saved.Settings {
		t.Error("settings changed on round trip")
	}

	if _, err := store.Get(saved.ID, "u2"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("private template for another user: err = %v, want ErrTemplateNotFound", err)
	}
}

func TestTemplateStore_SaveRejects(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	store := NewTemplateStore(app)

	tests := []struct {
		name  string
		in    TemplateInput
		owner string
	}{
		{"empty name", TemplateInput{Name: "   "}, "u1"},
		{"long name", TemplateInput{Name: strings.Repeat("n", 81)}, "u1"},
		{"no owner", TemplateInput{Name: "x"}, ""},
		{"invalid settings", TemplateInput{Name: "x", Settings: map[string]any{"imageQuality": 10}}, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Save(tt.in, tt.owner); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestTemplateStore_LoadOrdering(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	store := NewTemplateStore(app)

	testhelpers.CreateTestTemplate(t, app, "u1", "Rarely used", map[string]any{}, false, 1)
	testhelpers.CreateTestTemplate(t, app, "u1", "Favourite", map[string]any{"paperSize": "A5"}, false, 9)
	testhelpers.CreateTestTemplate(t, app, "u2", "Shared", map[string]any{}, true, 4)
	testhelpers.CreateTestTemplate(t, app, "u2", "Someone else's", map[string]any{}, false, 50)

	got := store.Load("u1")
	names := make([]string, len(got))
	for i, tpl := range got {
		names[i] = tpl.Name
	}
	want := "Favourite,Shared,Rarely used"
	if strings.Join(names, ",") != want {
		t.Errorf("Load order = %v, want %s", names, want)
	}
	if got[0].Settings.PaperSize != "A5" {
		t.Errorf("settings not decoded: %+v", got[0].Settings)
	}
}

func TestTemplateStore_LoadRecencyTieBreak(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	store := NewTemplateStore(app)

	first := testhelpers.CreateTestTemplate(t, app, "u1", "First", map[string]any{}, false, 0)
	testhelpers.CreateTestTemplate(t, app, "u1", "Second", map[string]any{}, false, 0)

	if err := store.MarkUsed(first.Id); err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	// First now has usage 1 and sorts first.
	got := store.Load("u1")
	if got[0].Name != "First" || got[0].UsageCount != 1 || got[0].LastUsed.IsZero() {
		t.Errorf("after MarkUsed, first = %+v", got[0])
	}
}

func TestTemplateStore_LoadSkipsCorruptRecords(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	store := NewTemplateStore(app)

	testhelpers.CreateTestTemplate(t, app, "u1", "Good", map[string]any{"qrSize": 150}, false, 0)
	testhelpers.CreateTestTemplate(t, app, "u1", "Not an object", []any{"oops"}, false, 0)
	testhelpers.CreateTestTemplate(t, app, "u1", "Bad quality", map[string]any{"imageQuality": 10}, false, 0)

	got := store.Load("u1")
	if len(got) != 1 || got[0].Name != "Good" {
		t.Errorf("Load = %+v, want only the good template", got)
	}
}

func TestTemplateStore_LoadFallsBackToBuiltins(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	store := NewTemplateStore(app)

	got := store.Load("nobody")
	if len(got) != len(BuiltinTemplates()) {
		t.Fatalf("Load = %d templates, want the %d built-ins", len(got), len(BuiltinTemplates()))
	}
	for _, tpl := range got {
		if !tpl.BuiltIn {
			t.Errorf("%s should be built in", tpl.Name)
		}
	}

	b, err := store.Get(BuiltinCompact, "nobody")
	if err != nil || b.Settings.MarginTop != 10 {
		t.Errorf("Get(builtin) = %+v, %v", b, err)
	}
}

func TestTemplateStore_MarkUsedKeepsSettings(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	store := NewTemplateStore(app)

	saved, err := store.Save(TemplateInput{Name: "T", Settings: map[string]any{"watermark": "DRAFT"}}, "u1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.MarkUsed(saved.ID); err != nil {
			t.Fatalf("MarkUsed: %v", err)
		}
	}
	got, _ := store.Get(saved.ID, "u1")
	if got.UsageCount != 3 {
		t.Errorf("usage = %d, want 3", got.UsageCount)
	}
	if got.Settings != saved.Settings {
		t.Error("MarkUsed must not change settings")
	}

	if err := store.MarkUsed(BuiltinStandard); err != nil {
		t.Errorf("MarkUsed(builtin) = %v, want nil", err)
	}
	if err := store.MarkUsed("missing"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("MarkUsed(missing) = %v, want ErrTemplateNotFound", err)
	}
}

func TestTemplateStore_Delete(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	store := NewTemplateStore(app)

	saved, err := store.Save(TemplateInput{Name: "Mine", IsPublic: true}, "u1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(saved.ID, "u2"); !errors.Is(err, ErrTemplateForbidden) {
		t.Errorf("Delete by another user = %v, want ErrTemplateForbidden", err)
	}
	if err := store.Delete(BuiltinStandard, "u1"); !errors.Is(err, ErrTemplateForbidden) {
		t.Errorf("Delete builtin = %v, want ErrTemplateForbidden", err)
	}
	if err := store.Delete(saved.ID, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(saved.ID, "u1"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Get after delete = %v, want ErrTemplateNotFound", err)
	}
}

func TestRecordSource_Fetch(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	q := testhelpers.CreateTestQuotation(t, app, "#WP-2025S-123")
	testhelpers.CreateTestQuotationItem(t, app, q.Id, 2, "Protection screed", 120, 2.5, 300)
	testhelpers.CreateTestQuotationItem(t, app, q.Id, 1, "Membrane", 120, 4.25, 510)
	testhelpers.CreateTestListRow(t, app, ScopeCollection, q.Id, 2, "Membrane application")
	testhelpers.CreateTestListRow(t, app, ScopeCollection, q.Id, 1, "Surface preparation")
	testhelpers.CreateTestListRow(t, app, TermsCollection, q.Id, 1, "50% advance")
	testhelpers.SetTestTotals(t, app, q, 810, 40.5, 850.5)

	data, err := NewRecordSource(app).Fetch(t.Context(), q.Id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if data.Quotation.QuotationNo != "#WP-2025S-123" || data.Quotation.Client.Name != "A&B Co." {
		t.Errorf("quotation = %+v", data.Quotation)
	}
	if data.Quotation.Date.Format("2006-01-02") != "2025-03-14" {
		t.Errorf("date = %v", data.Quotation.Date)
	}
	if data.Quotation.GrandTotal != 850.5 || data.Quotation.VATRate != 5 {
		t.Errorf("totals = %+v", data.Quotation)
	}
	if len(data.Items) != 2 || data.Items[0].Description != "Membrane" {
		t.Errorf("items = %+v, want sort order respected", data.Items)
	}
	if strings.Join(data.Scope, "|") != "Surface preparation|Membrane application" {
		t.Errorf("scope = %v", data.Scope)
	}
	if len(data.Terms) != 1 || len(data.Materials) != 0 {
		t.Errorf("terms = %v materials = %v", data.Terms, data.Materials)
	}

	if _, err := NewRecordSource(app).Fetch(t.Context(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch(missing) = %v, want ErrNotFound", err)
	}
}
