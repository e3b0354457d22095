package services

import (
	"errors"
	"strings"
	"testing"
)

func TestResolveSettings_Defaults(t *testing.T) {
	res := ResolveSettings(nil)
	if !res.IsValid {
		t.Fatalf("empty input should be valid, errors: %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("empty input should not warn, got %v", res.Warnings)
	}

	s := res.Settings
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"paperSize", s.PaperSize, "A4"},
		{"orientation", s.Orientation, "portrait"},
		{"headerFontSize", s.HeaderFontSize, 28},
		{"qrSize", s.QRSize, 120},
		{"imageQuality", s.ImageQuality, 90},
		{"imageFormat", s.ImageFormat, "png"},
		{"marginBottom", s.MarginBottom, 25},
		{"timeoutSeconds", s.TimeoutSeconds, 45},
		{"includeQR", s.IncludeQR, true},
		{"includeStamp", s.IncludeStamp, false},
		{"letterheadMode", s.LetterheadMode, "company"},
		{"exportMethod", s.ExportMethod, "download"},
		{"primaryColor", s.PrimaryColor, "#1F4E79"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestResolveSettings_CSSVars(t *testing.T) {
	vars := DefaultSettings().CSSVars()
	want := map[string]string{
		"headerFontSize": "28px",
		"paperSize":      "A4",
		"qrSize":         "120px",
		"marginTop":      "20mm",
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("CSSVars[%s] = %q, want %q", k, vars[k], v)
		}
	}
}

func TestResolveSettings_NumericRanges(t *testing.T) {
	for _, r := range intRules {
		inputs := []any{r.min - 1, r.min, (r.min + r.max) / 2, r.max, r.max + 1, "abc", -1000, 1e9}
		for _, in := range inputs {
			res := ResolveSettings(map[string]any{r.key: in})
			got := res.Settings.AsMap()[r.key]
			n, ok := parseNumber(got)
			if !ok {
				t.Fatalf("%s: resolved value %v is not a number", r.key, got)
			}
			if n < r.min || n > r.max {
				t.Errorf("%s=%v resolved to %d, outside %d-%d", r.key, in, n, r.min, r.max)
			}
			inRange := false
			if v, ok := parseNumber(in); ok && v >= r.min && v <= r.max {
				inRange = true
			}
			if !inRange && n != r.def {
				t.Errorf("%s=%v resolved to %d, want default %d", r.key, in, n, r.def)
			}
			if !inRange && len(res.Warnings) == 0 {
				t.Errorf("%s=%v should warn", r.key, in)
			}
		}
	}
}

func TestResolveSettings_ReplacesNotClamps(t *testing.T) {
	res := ResolveSettings(map[string]any{"headerFontSize": 200})
	if res.Settings.HeaderFontSize != 28 {
		t.Errorf("headerFontSize = %d, want default 28", res.Settings.HeaderFontSize)
	}
	if !res.IsValid {
		t.Error("out-of-range font size should only warn")
	}
}

func TestResolveSettings_UnitSuffixes(t *testing.T) {
	res := ResolveSettings(map[string]any{"headerFontSize": "32px", "marginTop": "10mm", "qrSize": 150.4})
	if res.Settings.HeaderFontSize != 32 {
		t.Errorf("headerFontSize = %d, want 32", res.Settings.HeaderFontSize)
	}
	if res.Settings.MarginTop != 10 {
		t.Errorf("marginTop = %d, want 10", res.Settings.MarginTop)
	}
	if res.Settings.QRSize != 150 {
		t.Errorf("qrSize = %d, want 150", res.Settings.QRSize)
	}
}

func TestResolveSettings_ImageQualityIsHardError(t *testing.T) {
	res := ResolveSettings(map[string]any{"imageQuality": 40})
	if res.IsValid {
		t.Fatal("imageQuality 40 should be invalid")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "quality") {
			found = true
		}
	}
	if !found {
		t.Errorf("errors %v should mention quality", res.Errors)
	}

	err := res.Err()
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Err() = %v, want ErrValidation", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Errors) == 0 {
		t.Errorf("Err() should be a *ValidationError with errors, got %#v", err)
	}
}

func TestResolveSettings_CustomHeaderTooLong(t *testing.T) {
	res := ResolveSettings(map[string]any{"customHeader": strings.Repeat("x", 101)})
	if res.IsValid {
		t.Error("101-character header should be invalid")
	}
	res = ResolveSettings(map[string]any{"customHeader": strings.Repeat("x", 100)})
	if !res.IsValid {
		t.Errorf("100-character header should be valid, errors: %v", res.Errors)
	}
}

func TestResolveSettings_Booleans(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{"on", true},
		{"true", true},
		{"1", true},
		{"off", false},
		{"", false},
	}
	for _, tt := range tests {
		res := ResolveSettings(map[string]any{"includeStamp": tt.in})
		if res.Settings.IncludeStamp != tt.want {
			t.Errorf("includeStamp=%#v resolved to %v, want %v", tt.in, res.Settings.IncludeStamp, tt.want)
		}
	}
}

func TestResolveSettings_Enums(t *testing.T) {
	res := ResolveSettings(map[string]any{"imageFormat": "JPG", "paperSize": "letter", "orientation": "sideways"})
	s := res.Settings
	if s.ImageFormat != "jpeg" {
		t.Errorf("imageFormat = %q, want jpeg", s.ImageFormat)
	}
	if s.PaperSize != "Letter" {
		t.Errorf("paperSize = %q, want Letter", s.PaperSize)
	}
	if s.Orientation != "portrait" {
		t.Errorf("orientation = %q, want default portrait", s.Orientation)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one for orientation", res.Warnings)
	}
}

func TestResolveSettings_UnknownKeysIgnored(t *testing.T) {
	res := ResolveSettings(map[string]any{"fontFamily": "Comic Sans", "headerFontSize": 30})
	if !res.IsValid || len(res.Warnings) != 0 {
		t.Errorf("unknown keys should be ignored silently, got errors %v warnings %v", res.Errors, res.Warnings)
	}
	if res.Settings.HeaderFontSize != 30 {
		t.Errorf("headerFontSize = %d, want 30", res.Settings.HeaderFontSize)
	}
}

func TestResolveSettings_TransparentJPEG(t *testing.T) {
	res := ResolveSettings(map[string]any{"imageFormat": "jpeg", "transparentBackground": true})
	if res.Settings.TransparentBackground {
		t.Error("transparent background should be dropped for jpeg")
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for transparent jpeg")
	}

	res = ResolveSettings(map[string]any{"imageFormat": "png", "transparentBackground": true})
	if !res.Settings.TransparentBackground {
		t.Error("transparent background should be kept for png")
	}
}

func TestResolveSettings_PrimaryColor(t *testing.T) {
	if got := ResolveSettings(map[string]any{"primaryColor": "#aa3300"}).Settings.PrimaryColor; got != "#AA3300" {
		t.Errorf("primaryColor = %q, want #AA3300", got)
	}
	res := ResolveSettings(map[string]any{"primaryColor": "red"})
	if res.Settings.PrimaryColor != "#1F4E79" || len(res.Warnings) == 0 {
		t.Errorf("invalid colour should fall back with a warning, got %q %v", res.Settings.PrimaryColor, res.Warnings)
	}
}

func TestResolveSettings_Idempotent(t *testing.T) {
	first := ResolveSettings(map[string]any{
		"paperSize":    "A3",
		"orientation":  "landscape",
		"imageQuality": "75",
		"watermark":    "DRAFT",
		"includeTotal": "on",
	})
	again := ResolveSettings(first.Settings.AsMap())
	if again.Settings != first.Settings {
		t.Errorf("resolving settings again changed them:\n%+v\n%+v", first.Settings, again.Settings)
	}
	if len(again.Warnings) != 0 {
		t.Errorf("re-resolving should not warn, got %v", again.Warnings)
	}
}

func TestExportSettings_PaperMM(t *testing.T) {
	s := ResolveSettings(map[string]any{"paperSize": "A4", "orientation": "landscape"}).Settings
	w, h := s.PaperMM()
	if w != 297 || h != 210 {
		t.Errorf("A4 landscape = %vx%v, want 297x210", w, h)
	}
}

func TestExportSettings_DPIMultiplier(t *testing.T) {
	if got := DefaultSettings().DPIMultiplier(); got != 2 {
		t.Errorf("default DPI multiplier = %v, want 2", got)
	}
	s := ResolveSettings(map[string]any{"highDPI": true}).Settings
	if got := s.DPIMultiplier(); got != 3 {
		t.Errorf("high DPI multiplier = %v, want 3", got)
	}
}

func TestMergeRaw(t *testing.T) {
	base := map[string]any{"a": 1, "b": 2}
	got := MergeRaw(base, map[string]any{"b": 3, "c": 4})
	if got["a"] != 1 || got["b"] != 3 || got["c"] != 4 {
		t.Errorf("MergeRaw = %v", got)
	}
	if base["b"] != 2 {
		t.Error("MergeRaw must not modify its inputs")
	}
}
