package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// TemplatesCollection stores export presets.
const TemplatesCollection = "export_templates"

var (
	ErrTemplateNotFound  = errors.New("export template not found")
	ErrTemplateForbidden = errors.New("export template belongs to another user")
)

// ExportTemplate is a named, persisted bundle of export settings.
type ExportTemplate struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	OwnerID     string         `json:"ownerId"`
	IsPublic    bool           `json:"isPublic"`
	Settings    ExportSettings `json:"settings"`
	UsageCount  int            `json:"usageCount"`
	LastUsed    time.Time      `json:"lastUsed"`
	Created     time.Time      `json:"created"`
	Updated     time.Time      `json:"updated"`
	BuiltIn     bool           `json:"builtIn"`
}

// recency is the last use, or creation when never used.
func (t ExportTemplate) recency() time.Time {
	if !t.LastUsed.IsZero() {
		return t.LastUsed
	}
	return t.Created
}

// TemplateInput is the data needed to save a new template.
type TemplateInput struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	IsPublic    bool           `json:"isPublic"`
	Settings    map[string]any `json:"settings"`
}

// Validate checks the request shape. Settings are checked by Save.
func (in TemplateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 80)),
		validation.Field(&in.Description, validation.RuneLength(0, 500)),
	)
}

// TemplateStore persists export templates in a PocketBase collection.
type TemplateStore struct {
	app core.App
}

// NewTemplateStore returns a store backed by app.
func NewTemplateStore(app core.App) *TemplateStore {
	return &TemplateStore{app: app}
}

// Save creates a new template owned by ownerID with zeroed usage stats.
// Existing templates are never modified.
func (s *TemplateStore) Save(in TemplateInput, ownerID string) (*ExportTemplate, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, &ValidationError{Errors: []string{err.Error()}}
	}
	if ownerID == "" {
		return nil, &ValidationError{Errors: []string{"owner is required"}}
	}
	res := ResolveSettings(in.Settings)
	if err := res.Err(); err != nil {
		return nil, err
	}

	col, err := s.app.FindCollectionByNameOrId(TemplatesCollection)
	if err != nil {
		return nil, fmt.Errorf("%w: find collection: %v", ErrResource, err)
	}
	rec := core.NewRecord(col)
	rec.Set("name", in.Name)
	rec.Set("description", strings.TrimSpace(in.Description))
	rec.Set("owner", ownerID)
	rec.Set("is_public", in.IsPublic)
	rec.Set("settings", res.Settings)
	rec.Set("usage_count", 0)
	if err := s.app.Save(rec); err != nil {
		return nil, fmt.Errorf("%w: save template: %v", ErrResource, err)
	}

	t, err := templateFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}
	return t, nil
}

// Load lists the caller's own templates and all public templates, most used
// first and then most recent. Unreadable records are skipped. When nothing
// is visible the built-in templates are returned.
func (s *TemplateStore) Load(ownerID string) []ExportTemplate {
	records, err := s.app.FindRecordsByFilter(
		TemplatesCollection,
		"owner = {:owner} || is_public = true",
		"",
		0,
		0,
		map[string]any{"owner": ownerID},
	)
	if err != nil {
		log.Printf("export_templates: list for %q: %v", ownerID, err)
		records = nil
	}

	out := make([]ExportTemplate, 0, len(records))
	for _, rec := range records {
		t, err := templateFromRecord(rec)
		if err != nil {
			log.Printf("export_templates: skipping %s: %v", rec.Id, err)
			continue
		}
		out = append(out, *t)
	}
	if len(out) == 0 {
		return BuiltinTemplates()
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].recency().After(out[j].recency())
	})
	return out
}

// Get returns a template visible to ownerID. Built-in ids resolve too.
func (s *TemplateStore) Get(id, ownerID string) (*ExportTemplate, error) {
	if t, ok := builtinTemplate(id); ok {
		return &t, nil
	}
	rec, err := s.app.FindRecordById(TemplatesCollection, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	t, err := templateFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: template %s: %v", ErrResource, id, err)
	}
	if !t.IsPublic && t.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}

// MarkUsed bumps the usage count and last-used time. Settings are untouched.
func (s *TemplateStore) MarkUsed(id string) error {
	if _, ok := builtinTemplate(id); ok {
		return nil
	}
	rec, err := s.app.FindRecordById(TemplatesCollection, id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	rec.Set("usage_count", rec.GetInt("usage_count")+1)
	rec.Set("last_used", types.NowDateTime())
	if err := s.app.Save(rec); err != nil {
		return fmt.Errorf("%w: mark used: %v", ErrResource, err)
	}
	return nil
}

// Delete removes a template owned by ownerID.
func (s *TemplateStore) Delete(id, ownerID string) error {
	if _, ok := builtinTemplate(id); ok {
		return ErrTemplateForbidden
	}
	rec, err := s.app.FindRecordById(TemplatesCollection, id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if rec.GetString("owner") != ownerID {
		return ErrTemplateForbidden
	}
	if err := s.app.Delete(rec); err != nil {
		return fmt.Errorf("%w: delete template: %v", ErrResource, err)
	}
	return nil
}

// templateFromRecord decodes a stored template. Settings are resolved again
// so a template never yields out-of-range values.
func templateFromRecord(rec *core.Record) (*ExportTemplate, error) {
	name := rec.GetString("name")
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("missing name")
	}
	var raw map[string]any
	if err := rec.UnmarshalJSONField("settings", &raw); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if raw == nil {
		return nil, errors.New("missing settings")
	}
	res := ResolveSettings(raw)
	if !res.IsValid {
		return nil, fmt.Errorf("invalid settings: %s", strings.Join(res.Errors, "; "))
	}

	return &ExportTemplate{
		ID:          rec.Id,
		Name:        name,
		Description: rec.GetString("description"),
		OwnerID:     rec.GetString("owner"),
		IsPublic:    rec.GetBool("is_public"),
		Settings:    res.Settings,
		UsageCount:  rec.GetInt("usage_count"),
		LastUsed:    rec.GetDateTime("last_used").Time(),
		Created:     rec.GetDateTime("created").Time(),
		Updated:     rec.GetDateTime("updated").Time(),
	}, nil
}

// Built-in template ids.
const (
	BuiltinStandard     = "builtin-standard"
	BuiltinCompact      = "builtin-compact"
	BuiltinPresentation = "builtin-presentation"
)

// BuiltinTemplates returns the fixed presets offered before any template
// has been saved.
func BuiltinTemplates() []ExportTemplate {
	mk := func(id, name, desc string, raw map[string]any) ExportTemplate {
		return ExportTemplate{
			ID:          id,
			Name:        name,
			Description: desc,
			IsPublic:    true,
			Settings:    ResolveSettings(raw).Settings,
			BuiltIn:     true,
		}
	}
	return []ExportTemplate{
		mk(BuiltinStandard, "Standard", "Company letterhead, A4 portrait, QR and signature", nil),
		mk(BuiltinCompact, "Compact", "Smaller type and margins to fit more items per page", map[string]any{
			"headerFontSize": 22,
			"bodyFontSize":   12,
			"tableFontSize":  10,
			"smallFontSize":  8,
			"qrSize":         90,
			"marginTop":      10,
			"marginBottom":   12,
			"marginLeft":     10,
			"marginRight":    10,
		}),
		mk(BuiltinPresentation, "Presentation", "Large type, stamp and high resolution images", map[string]any{
			"headerFontSize":    36,
			"subheaderFontSize": 22,
			"bodyFontSize":      16,
			"qrSize":            160,
			"includeStamp":      true,
			"highDPI":           true,
			"sharpen":           true,
		}),
	}
}

func builtinTemplate(id string) (ExportTemplate, bool) {
	for _, t := range BuiltinTemplates() {
		if t.ID == id {
			return t, true
		}
	}
	return ExportTemplate{}, false
}
