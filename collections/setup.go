package collections

import (
	"fmt"
	"log"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

// Setup programmatically creates/ensures the quotations collection, its
// child collections (items, scope, materials, terms) and export_templates.
func Setup(app *pocketbase.PocketBase) {
	quotations := ensureCollection(app, "quotations", func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "quotation_no", Required: true})
		c.Fields.Add(&core.DateField{Name: "date"})
		c.Fields.Add(&core.TextField{Name: "project_name"})
		for _, party := range []string{"client", "contractor", "subcontractor", "engineer", "attention"} {
			c.Fields.Add(&core.TextField{Name: party + "_name", Required: party == "client"})
			c.Fields.Add(&core.TextField{Name: party + "_phone"})
		}
		c.Fields.Add(&core.NumberField{Name: "total_amount"})
		c.Fields.Add(&core.NumberField{Name: "discount"})
		c.Fields.Add(&core.NumberField{Name: "vat_rate"})
		c.Fields.Add(&core.NumberField{Name: "vat_amount"})
		c.Fields.Add(&core.NumberField{Name: "round_off"})
		c.Fields.Add(&core.NumberField{Name: "grand_total"})
		c.Fields.Add(&core.NumberField{Name: "warranty_years", OnlyInt: true})
		c.Fields.Add(&core.TextField{Name: "warranty_note"})
		c.Fields.Add(&core.BoolField{Name: "show_scope_serial"})
		c.Fields.Add(&core.BoolField{Name: "show_material_serial"})
		c.Fields.Add(&core.BoolField{Name: "show_term_serial"})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
	})

	quotationRelation := func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "quotation",
			Required:      true,
			CollectionId:  quotations.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.NumberField{Name: "sort_order", Required: true})
	}

	ensureCollection(app, "quotation_items", func(c *core.Collection) {
		quotationRelation(c)
		c.Fields.Add(&core.TextField{Name: "description", Required: true})
		c.Fields.Add(&core.NumberField{Name: "qty"})
		c.Fields.Add(&core.TextField{Name: "unit"})
		c.Fields.Add(&core.NumberField{Name: "rate"})
		c.Fields.Add(&core.NumberField{Name: "amount"})
	})

	for _, name := range []string{"quotation_scope", "quotation_materials", "quotation_terms"} {
		ensureCollection(app, name, func(c *core.Collection) {
			quotationRelation(c)
			c.Fields.Add(&core.TextField{Name: "text", Required: true})
		})
	}

	ensureCollection(app, "export_templates", func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "name", Required: true, Max: 80})
		c.Fields.Add(&core.TextField{Name: "description", Max: 500})
		c.Fields.Add(&core.TextField{Name: "owner", Required: true})
		c.Fields.Add(&core.BoolField{Name: "is_public"})
		c.Fields.Add(&core.JSONField{Name: "settings"})
		c.Fields.Add(&core.NumberField{Name: "usage_count", OnlyInt: true})
		c.Fields.Add(&core.DateField{Name: "last_used"})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
		c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
		c.AddIndex("idx_export_templates_owner", false, "owner", "")
	})
}

// ensureCollection checks if a collection already exists by name. If it does,
// the existing collection is returned. Otherwise a new base collection is
// created, the addFields callback is invoked to populate its fields, and the
// collection is saved.
func ensureCollection(app *pocketbase.PocketBase, name string, addFields func(*core.Collection)) *core.Collection {
	existing, err := app.FindCollectionByNameOrId(name)
	if err == nil && existing != nil {
		log.Printf("Collection %q already exists, skipping creation.\n", name)
		return existing
	}

	collection := core.NewBaseCollection(name)
	addFields(collection)

	if err := app.Save(collection); err != nil {
		log.Fatalf("Failed to create collection %q: %v", name, err)
	}

	fmt.Printf("Created collection %q (id=%s)\n", name, collection.Id)
	return collection
}
