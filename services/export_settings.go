package services

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/cast"
)

// ExportSettings is the fully resolved style and output configuration shared
// by every renderer. Values are always inside their documented ranges; build
// one with ResolveSettings, never by hand.
//
// JSON keys match the raw input keys so a persisted value can be resolved
// again unchanged.
type ExportSettings struct {
	PaperSize   string `json:"paperSize"`
	Orientation string `json:"orientation"`

	MarginTop    int `json:"marginTop"`
	MarginBottom int `json:"marginBottom"`
	MarginLeft   int `json:"marginLeft"`
	MarginRight  int `json:"marginRight"`

	HeaderFontSize    int `json:"headerFontSize"`
	SubheaderFontSize int `json:"subheaderFontSize"`
	BodyFontSize      int `json:"bodyFontSize"`
	TableFontSize     int `json:"tableFontSize"`
	SmallFontSize     int `json:"smallFontSize"`

	IncludeQR bool `json:"includeQR"`
	QRSize    int  `json:"qrSize"`

	LetterheadMode      string `json:"letterheadMode"`
	IncludeSignature    bool   `json:"includeSignature"`
	IncludeStamp        bool   `json:"includeStamp"`
	IncludeHeaderFooter bool   `json:"includeHeaderFooter"`
	Watermark           string `json:"watermark"`
	CustomHeader        string `json:"customHeader"`
	CustomFooter        string `json:"customFooter"`
	PrimaryColor        string `json:"primaryColor"`
	PDFEngine           string `json:"pdfEngine"`

	ImageFormat           string `json:"imageFormat"`
	ImageQuality          int    `json:"imageQuality"`
	ImageWidth            int    `json:"imageWidth"`
	ImageHeight           int    `json:"imageHeight"`
	PNGCompression        int    `json:"pngCompression"`
	HighDPI               bool   `json:"highDPI"`
	TransparentBackground bool   `json:"transparentBackground"`
	Sharpen               bool   `json:"sharpen"`
	Normalize             bool   `json:"normalize"`

	CustomFilename    string `json:"customFilename"`
	IncludeDate       bool   `json:"includeDate"`
	IncludeClient     bool   `json:"includeClient"`
	IncludeProject    bool   `json:"includeProject"`
	IncludeTotal      bool   `json:"includeTotal"`
	DateFormat        string `json:"dateFormat"`
	FilenameSeparator string `json:"filenameSeparator"`
	FilenameMaxLength int    `json:"filenameMaxLength"`

	ExportMethod   string `json:"exportMethod"`
	Recipient      string `json:"recipient"`
	TemplateID     string `json:"templateId"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// Resolution is the outcome of ResolveSettings.
type Resolution struct {
	Settings ExportSettings `json:"settings"`
	Errors   []string       `json:"errors"`
	Warnings []string       `json:"warnings"`
	IsValid  bool           `json:"isValid"`
}

// Err returns a *ValidationError when the resolution is invalid.
func (r Resolution) Err() error {
	if r.IsValid {
		return nil
	}
	return &ValidationError{Errors: r.Errors, Warnings: r.Warnings}
}

// Setting limits. Exported so handlers and forms can show them.
const (
	MaxCustomHeaderLength = 100
	MaxCustomFooterLength = 200
	MaxWatermarkLength    = 50
	MinImageQuality       = 50
	MaxImageQuality       = 100
)

type intRule struct {
	key      string
	min, max int
	def      int
	set      func(*ExportSettings, int)
}

var intRules = []intRule{
	{"headerFontSize", 16, 48, 28, func(s *ExportSettings, v int) { s.HeaderFontSize = v }},
	{"subheaderFontSize", 12, 32, 18, func(s *ExportSettings, v int) { s.SubheaderFontSize = v }},
	{"bodyFontSize", 10, 24, 14, func(s *ExportSettings, v int) { s.BodyFontSize = v }},
	{"tableFontSize", 8, 20, 12, func(s *ExportSettings, v int) { s.TableFontSize = v }},
	{"smallFontSize", 8, 14, 10, func(s *ExportSettings, v int) { s.SmallFontSize = v }},
	{"qrSize", 50, 300, 120, func(s *ExportSettings, v int) { s.QRSize = v }},
	{"imageWidth", 800, 4000, 1200, func(s *ExportSettings, v int) { s.ImageWidth = v }},
	{"imageHeight", 0, 6000, 0, func(s *ExportSettings, v int) { s.ImageHeight = v }},
	{"pngCompression", 0, 9, 6, func(s *ExportSettings, v int) { s.PNGCompression = v }},
	{"marginTop", 5, 50, 20, func(s *ExportSettings, v int) { s.MarginTop = v }},
	{"marginBottom", 5, 50, 25, func(s *ExportSettings, v int) { s.MarginBottom = v }},
	{"marginLeft", 5, 50, 15, func(s *ExportSettings, v int) { s.MarginLeft = v }},
	{"marginRight", 5, 50, 15, func(s *ExportSettings, v int) { s.MarginRight = v }},
	{"timeoutSeconds", 10, 120, 45, func(s *ExportSettings, v int) { s.TimeoutSeconds = v }},
	{"filenameMaxLength", 20, 200, 100, func(s *ExportSettings, v int) { s.FilenameMaxLength = v }},
}

type enumRule struct {
	key     string
	allowed []string
	aliases map[string]string
	def     string
	set     func(*ExportSettings, string)
}

var enumRules = []enumRule{
	{key: "paperSize", allowed: []string{"A4", "A3", "A5", "Letter", "Legal"}, def: "A4",
		set: func(s *ExportSettings, v string) { s.PaperSize = v }},
	{key: "orientation", allowed: []string{"portrait", "landscape"}, def: "portrait",
		set: func(s *ExportSettings, v string) { s.Orientation = v }},
	{key: "letterheadMode", allowed: []string{"none", "company", "custom"}, def: "company",
		set: func(s *ExportSettings, v string) { s.LetterheadMode = v }},
	{key: "imageFormat", allowed: []string{"png", "jpeg", "webp"}, aliases: map[string]string{"jpg": "jpeg"}, def: "png",
		set: func(s *ExportSettings, v string) { s.ImageFormat = v }},
	{key: "exportMethod", allowed: []string{"download", "email", "whatsapp"}, def: "download",
		set: func(s *ExportSettings, v string) { s.ExportMethod = v }},
	{key: "pdfEngine", allowed: []string{"browser", "native"}, def: "browser",
		set: func(s *ExportSettings, v string) { s.PDFEngine = v }},
	{key: "dateFormat", allowed: []string{"YYYY-MM-DD", "DD-MM-YYYY", "MM-DD-YYYY", "YYYYMMDD"}, def: "YYYY-MM-DD",
		set: func(s *ExportSettings, v string) { s.DateFormat = v }},
	{key: "filenameSeparator", allowed: []string{"-", "_"}, def: "-",
		set: func(s *ExportSettings, v string) { s.FilenameSeparator = v }},
}

type boolRule struct {
	key string
	def bool
	set func(*ExportSettings, bool)
}

var boolRules = []boolRule{
	{"includeQR", true, func(s *ExportSettings, v bool) { s.IncludeQR = v }},
	{"includeSignature", true, func(s *ExportSettings, v bool) { s.IncludeSignature = v }},
	{"includeStamp", false, func(s *ExportSettings, v bool) { s.IncludeStamp = v }},
	{"includeHeaderFooter", true, func(s *ExportSettings, v bool) { s.IncludeHeaderFooter = v }},
	{"highDPI", false, func(s *ExportSettings, v bool) { s.HighDPI = v }},
	{"transparentBackground", false, func(s *ExportSettings, v bool) { s.TransparentBackground = v }},
	{"sharpen", false, func(s *ExportSettings, v bool) { s.Sharpen = v }},
	{"normalize", false, func(s *ExportSettings, v bool) { s.Normalize = v }},
	{"includeDate", true, func(s *ExportSettings, v bool) { s.IncludeDate = v }},
	{"includeClient", true, func(s *ExportSettings, v bool) { s.IncludeClient = v }},
	{"includeProject", false, func(s *ExportSettings, v bool) { s.IncludeProject = v }},
	{"includeTotal", false, func(s *ExportSettings, v bool) { s.IncludeTotal = v }},
}

const defaultPrimaryColor = "#1F4E79"

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ResolveSettings validates raw style input and fills defaults.
//
// Out-of-range numbers are replaced by their default (not clamped) with a
// warning, missing keys take defaults silently, unknown keys are ignored.
// An over-long customHeader or an out-of-range imageQuality are hard errors
// and make the resolution invalid.
func ResolveSettings(raw map[string]any) Resolution {
	var s ExportSettings
	res := Resolution{Errors: []string{}, Warnings: []string{}}

	for _, r := range intRules {
		v, present := raw[r.key]
		if !present || v == nil {
			r.set(&s, r.def)
			continue
		}
		n, ok := parseNumber(v)
		if !ok || n < r.min || n > r.max {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s %v is outside %d-%d, using default %d", r.key, v, r.min, r.max, r.def))
			r.set(&s, r.def)
			continue
		}
		r.set(&s, n)
	}

	s.ImageQuality = 90
	if v, present := raw["imageQuality"]; present && v != nil {
		n, ok := parseNumber(v)
		if !ok || n < MinImageQuality || n > MaxImageQuality {
			res.Errors = append(res.Errors,
				fmt.Sprintf("image quality must be between %d and %d (got %v)", MinImageQuality, MaxImageQuality, v))
		} else {
			s.ImageQuality = n
		}
	}

	for _, r := range enumRules {
		v, present := raw[r.key]
		if !present || v == nil {
			r.set(&s, r.def)
			continue
		}
		if canon, ok := r.match(cast.ToString(v)); ok {
			r.set(&s, canon)
			continue
		}
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%s %q is not one of %s, using default %q", r.key, cast.ToString(v), strings.Join(r.allowed, "|"), r.def))
		r.set(&s, r.def)
	}

	for _, r := range boolRules {
		v, present := raw[r.key]
		if !present || v == nil {
			r.set(&s, r.def)
			continue
		}
		r.set(&s, parseBool(v))
	}

	s.CustomHeader = strings.TrimSpace(cast.ToString(raw["customHeader"]))
	if err := validation.Validate(s.CustomHeader, validation.RuneLength(0, MaxCustomHeaderLength)); err != nil {
		res.Errors = append(res.Errors,
			fmt.Sprintf("custom header must be at most %d characters", MaxCustomHeaderLength))
	}

	s.CustomFooter = boundedString(raw, "customFooter", MaxCustomFooterLength, &res)
	s.Watermark = boundedString(raw, "watermark", MaxWatermarkLength, &res)

	s.PrimaryColor = defaultPrimaryColor
	if v, present := raw["primaryColor"]; present && v != nil {
		c := strings.TrimSpace(cast.ToString(v))
		if hexColorPattern.MatchString(c) {
			s.PrimaryColor = strings.ToUpper(c)
		} else {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("primaryColor %q is not a #RRGGBB colour, using default %s", c, defaultPrimaryColor))
		}
	}

	s.CustomFilename = strings.TrimSpace(cast.ToString(raw["customFilename"]))
	s.Recipient = strings.TrimSpace(cast.ToString(raw["recipient"]))
	s.TemplateID = strings.TrimSpace(cast.ToString(raw["templateId"]))

	if s.TransparentBackground && s.ImageFormat == "jpeg" {
		res.Warnings = append(res.Warnings, "transparent background is not supported for jpeg, ignoring")
		s.TransparentBackground = false
	}

	res.Settings = s
	res.IsValid = len(res.Errors) == 0
	return res
}

// DefaultSettings returns the settings produced by resolving empty input.
func DefaultSettings() ExportSettings {
	return ResolveSettings(nil).Settings
}

// AsMap returns the settings as raw input, suitable for merging and for
// resolving again.
func (s ExportSettings) AsMap() map[string]any {
	b, err := json.Marshal(s)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// MergeRaw overlays raw input on top of base; keys in overlay win.
func MergeRaw(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// DPIMultiplier is the capture scale: 3 in high-DPI mode, 2 otherwise.
func (s ExportSettings) DPIMultiplier() float64 {
	if s.HighDPI {
		return 3
	}
	return 2
}

// RenderTimeout is the hard deadline for one render call.
func (s ExportSettings) RenderTimeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Landscape reports whether the page is in landscape orientation.
func (s ExportSettings) Landscape() bool {
	return s.Orientation == "landscape"
}

var paperSizesMM = map[string][2]float64{
	"A3":     {297, 420},
	"A4":     {210, 297},
	"A5":     {148, 210},
	"Letter": {215.9, 279.4},
	"Legal":  {215.9, 355.6},
}

// PaperMM returns the page width and height in millimetres, orientation applied.
func (s ExportSettings) PaperMM() (width, height float64) {
	d, ok := paperSizesMM[s.PaperSize]
	if !ok {
		d = paperSizesMM["A4"]
	}
	if s.Landscape() {
		return d[1], d[0]
	}
	return d[0], d[1]
}

// FilenameOptions extracts the file naming options.
func (s ExportSettings) FilenameOptions() FilenameOptions {
	return FilenameOptions{
		CustomName:     s.CustomFilename,
		IncludeDate:    s.IncludeDate,
		IncludeClient:  s.IncludeClient,
		IncludeProject: s.IncludeProject,
		IncludeTotal:   s.IncludeTotal,
		DateFormat:     s.DateFormat,
		Separator:      s.FilenameSeparator,
		MaxLength:      s.FilenameMaxLength,
	}
}

// CSSVars exposes the style settings as CSS lengths for the HTML document.
func (s ExportSettings) CSSVars() map[string]string {
	return map[string]string{
		"headerFontSize":    px(s.HeaderFontSize),
		"subheaderFontSize": px(s.SubheaderFontSize),
		"bodyFontSize":      px(s.BodyFontSize),
		"tableFontSize":     px(s.TableFontSize),
		"smallFontSize":     px(s.SmallFontSize),
		"qrSize":            px(s.QRSize),
		"marginTop":         mm(s.MarginTop),
		"marginBottom":      mm(s.MarginBottom),
		"marginLeft":        mm(s.MarginLeft),
		"marginRight":       mm(s.MarginRight),
		"paperSize":         s.PaperSize,
		"primaryColor":      s.PrimaryColor,
	}
}

func px(v int) string { return fmt.Sprintf("%dpx", v) }
func mm(v int) string { return fmt.Sprintf("%dmm", v) }

func (r enumRule) match(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if alias, ok := r.aliases[strings.ToLower(v)]; ok {
		return alias, true
	}
	for _, a := range r.allowed {
		if strings.EqualFold(a, v) {
			return a, true
		}
	}
	return "", false
}

func boundedString(raw map[string]any, key string, max int, res *Resolution) string {
	v := strings.TrimSpace(cast.ToString(raw[key]))
	if len([]rune(v)) > max {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%s is longer than %d characters, ignoring", key, max))
		return ""
	}
	return v
}

// parseNumber accepts numbers and numeric strings with an optional unit
// suffix ("28px", "20mm", "90%") and rounds to the nearest integer.
func parseNumber(v any) (int, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(strings.ToLower(s))
		for _, unit := range []string{"px", "mm", "pt", "%", "s"} {
			s = strings.TrimSuffix(s, unit)
		}
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}

// parseBool accepts real booleans and the form sentinels "on", "true", "1"
// and "yes". Anything else is false.
func parseBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "on", "true", "1", "yes":
			return true
		}
		return false
	default:
		return cast.ToBool(v)
	}
}
