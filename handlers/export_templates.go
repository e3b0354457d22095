package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"quotationdesk/services"
)

// HandleTemplateList returns a handler that lists the templates visible to
// the caller: their own plus every public one, most used first.
func HandleTemplateList(d *ExportDeps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		return e.JSON(http.StatusOK, d.Templates.Load(ownerID(e)))
	}
}

// HandleTemplateSave returns a handler that stores a new template owned by
// the authenticated caller.
func HandleTemplateSave(d *ExportDeps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		owner := ownerID(e)
		if owner == "" {
			return e.String(http.StatusUnauthorized, "Sign in to save templates")
		}

		var in services.TemplateInput
		if err := json.NewDecoder(io.LimitReader(e.Request.Body, maxSettingsBody)).Decode(&in); err != nil {
			return writeExportError(e, &services.ValidationError{Errors: []string{"body must be a JSON template"}})
		}

		t, err := d.Templates.Save(in, owner)
		if err != nil {
			return writeExportError(e, err)
		}
		setToast(e, "success", "Template saved")
		return e.JSON(http.StatusCreated, t)
	}
}

// HandleTemplateDelete returns a handler that deletes one of the caller's
// templates. Built-in templates cannot be deleted.
func HandleTemplateDelete(d *ExportDeps) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		owner := ownerID(e)
		if owner == "" {
			return e.String(http.StatusUnauthorized, "Sign in to delete templates")
		}
		if err := d.Templates.Delete(e.Request.PathValue("id"), owner); err != nil {
			return writeExportError(e, err)
		}
		setToast(e, "success", "Template deleted")
		return e.NoContent(http.StatusNoContent)
	}
}

// HandleSettingsValidate returns a handler that resolves a raw settings
// object and reports the result without exporting anything. The response is
// 200 whether or not the settings are valid.
func HandleSettingsValidate() func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		raw, err := decodeSettings(e.Request.Body)
		if err != nil {
			return writeExportError(e, &services.ValidationError{Errors: []string{err.Error()}})
		}
		res := services.ResolveSettings(raw)
		res.Errors = nonNil(res.Errors)
		res.Warnings = nonNil(res.Warnings)
		return e.JSON(http.StatusOK, res)
	}
}
