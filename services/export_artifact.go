package services

import (
	"log"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// Export formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
	FormatPNG  = "png"
	FormatJPG  = "jpg"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
	FormatZIP  = "zip"
)

var mimeTypes = map[string]string{
	FormatPDF:  "application/pdf",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatPNG:  "image/png",
	FormatJPG:  "image/jpeg",
	FormatJPEG: "image/jpeg",
	FormatWebP: "image/webp",
	FormatZIP:  "application/zip",
}

// MimeTypeFor maps an export format to its MIME type.
func MimeTypeFor(format string) string {
	if m, ok := mimeTypes[strings.ToLower(format)]; ok {
		return m
	}
	return "application/octet-stream"
}

// NormalizeFormat lower-cases a requested format and reports whether a
// single-document export can produce it.
func NormalizeFormat(format string) (string, bool) {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case FormatPDF, FormatXLSX, FormatPNG, FormatJPG, FormatJPEG, FormatWebP:
		return f, true
	}
	return f, false
}

// IsImageFormat reports whether format is produced by the image renderer.
func IsImageFormat(format string) bool {
	switch format {
	case FormatPNG, FormatJPG, FormatJPEG, FormatWebP:
		return true
	}
	return false
}

// ExportArtifact is a finished export. Treat it as immutable.
type ExportArtifact struct {
	Data     []byte
	MimeType string
	Filename string
}

// Size returns the artifact length in bytes.
func (a *ExportArtifact) Size() int {
	return len(a.Data)
}

// newArtifact wraps rendered bytes and logs when the content does not sniff
// as the declared type.
func newArtifact(data []byte, format, filename string) *ExportArtifact {
	declared := MimeTypeFor(format)
	if detected := mimetype.Detect(data); !detected.Is(declared) {
		log.Printf("export: %s sniffed as %s, declared %s", filename, detected.String(), declared)
	}
	log.Printf("export: produced %s (%s)", filename, humanize.Bytes(uint64(len(data))))
	return &ExportArtifact{Data: data, MimeType: declared, Filename: filename}
}
