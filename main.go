package main

import (
	"log"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"quotationdesk/collections"
	"quotationdesk/commands"
	"quotationdesk/config"
	"quotationdesk/handlers"
	"quotationdesk/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app := pocketbase.New()

	store := services.NewTemplateStore(app)
	exporter := services.NewExporter(services.ExporterConfig{
		Source:    services.NewRecordSource(app),
		Templates: store,
		Engine:    services.NewChromeEngine(cfg.ChromePath, cfg.SettleQuiet),
		Company:   cfg.Company(),
		BaseURL:   cfg.BaseURL,
		Defaults:  cfg.Defaults(),
	})
	deps := &handlers.ExportDeps{
		Exporter:  exporter,
		Batch:     services.NewBatchExporter(exporter, cfg.BatchWorkers),
		Templates: store,
		BaseURL:   cfg.BaseURL,
	}

	app.RootCmd.AddCommand(
		commands.NewExportCommand(deps.Exporter),
		commands.NewExportBatchCommand(deps.Batch),
	)

	// Create collections and seed data on startup
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		collections.Setup(app)
		if err := collections.Seed(app); err != nil {
			log.Printf("Warning: seed data failed: %v", err)
		}
		if err := collections.MigrateQuotationTotals(app); err != nil {
			log.Printf("Warning: totals migration failed: %v", err)
		}
		return se.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		// ── Single export ────────────────────────────────────────
		// Batch must be registered before {id} so "export" is not taken as an ID.
		se.Router.POST("/quotations/export/batch", handlers.HandleBatchExport(deps))
		se.Router.GET("/quotations/{id}/export/{format}", handlers.HandleQuotationExport(deps))
		se.Router.POST("/quotations/{id}/export/{format}", handlers.HandleQuotationExport(deps))

		// ── QR and public view ───────────────────────────────────
		se.Router.GET("/quotations/{id}/qr", handlers.HandleQuotationQR(deps))
		se.Router.GET("/quotations/view/{id}", handlers.HandleQuotationView(deps))

		// ── Settings and templates ───────────────────────────────
		se.Router.POST("/export/settings/validate", handlers.HandleSettingsValidate())
		se.Router.GET("/export/templates", handlers.HandleTemplateList(deps))
		se.Router.POST("/export/templates", handlers.HandleTemplateSave(deps))
		se.Router.DELETE("/export/templates/{id}", handlers.HandleTemplateDelete(deps))

		se.Router.GET("/", func(e *core.RequestEvent) error {
			return e.JSON(http.StatusOK, map[string]any{
				"service": "quotationdesk",
				"formats": []string{services.FormatPDF, services.FormatXLSX, services.FormatPNG, services.FormatJPG, services.FormatWebP},
			})
		})

		return se.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}
