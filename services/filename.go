package services

import (
	"strings"
	"time"
	"unicode"
)

// FilenamePrefix starts every generated (non-custom) filename.
const FilenamePrefix = "Quotation"

const (
	maxClientPart  = 25
	maxProjectPart = 20
)

// FilenameOptions controls BuildFilename.
type FilenameOptions struct {
	CustomName     string
	IncludeDate    bool
	IncludeClient  bool
	IncludeProject bool
	IncludeTotal   bool
	DateFormat     string
	Separator      string
	MaxLength      int
}

// BuildFilename produces the download name for a quotation export.
//
// A custom name is returned verbatim with the extension appended. Otherwise
// the parts are prefix, quotation number, client, project, date and total in
// that order, joined by the separator, and the whole name is truncated so
// that name plus extension fits in MaxLength.
func BuildFilename(q QuotationRecord, format string, opts FilenameOptions) string {
	ext := "." + strings.ToLower(format)
	if opts.CustomName != "" {
		return opts.CustomName + ext
	}

	sep := opts.Separator
	if sep == "" {
		sep = "-"
	}

	parts := []string{FilenamePrefix}
	if no := replaceNonAlnum(q.QuotationNo, sep); no != "" {
		parts = append(parts, no)
	}
	if opts.IncludeClient {
		if c := wordsPart(q.Client.Name, sep, maxClientPart); c != "" {
			parts = append(parts, c)
		}
	}
	if opts.IncludeProject {
		if p := wordsPart(q.ProjectName, sep, maxProjectPart); p != "" {
			parts = append(parts, p)
		}
	}
	if opts.IncludeDate {
		d := q.Date
		if d.IsZero() {
			d = time.Now()
		}
		parts = append(parts, formatFilenameDate(d, opts.DateFormat))
	}
	if opts.IncludeTotal {
		parts = append(parts, FormatPlainAmount(q.GrandTotal))
	}

	name := collapseSeparators(strings.Join(parts, sep), sep)

	if opts.MaxLength > 0 {
		limit := opts.MaxLength - len(ext)
		if limit < 1 {
			limit = 1
		}
		if len(name) > limit {
			// A cut inside the total can leave its decimal point behind.
			name = strings.TrimRight(name[:limit], sep+".")
		}
	}
	return name + ext
}

// replaceNonAlnum swaps every non-alphanumeric rune for sep.
func replaceNonAlnum(s, sep string) string {
	var b strings.Builder
	for _, r := range s {
		if isASCIIAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteString(sep)
		}
	}
	return strings.Trim(b.String(), sep)
}

// wordsPart keeps alphanumerics and spaces, turns spaces into sep and
// truncates to max characters.
func wordsPart(s, sep string, max int) string {
	var b strings.Builder
	for _, r := range s {
		if isASCIIAlnum(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), sep)
	if len(out) > max {
		out = out[:max]
	}
	return strings.Trim(out, sep)
}

func collapseSeparators(s, sep string) string {
	double := sep + sep
	for strings.Contains(s, double) {
		s = strings.ReplaceAll(s, double, sep)
	}
	return strings.Trim(s, sep)
}

func isASCIIAlnum(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// formatFilenameDate supports the four documented layouts; unknown layouts
// fall back to YYYY-MM-DD.
func formatFilenameDate(t time.Time, layout string) string {
	switch layout {
	case "DD-MM-YYYY":
		return t.Format("02-01-2006")
	case "MM-DD-YYYY":
		return t.Format("01-02-2006")
	case "YYYYMMDD":
		return t.Format("20060102")
	default:
		return t.Format("2006-01-02")
	}
}
