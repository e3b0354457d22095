package services

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/url"
	"strconv"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// QROptions controls QR code rendering.
type QROptions struct {
	Size       int    // output edge in pixels
	Margin     int    // quiet zone in modules
	ErrorLevel string // L, M, Q or H
	Dark       string // #RRGGBB
	Light      string // #RRGGBB
}

// DefaultQROptions returns options for a size-pixel black-on-white code.
func DefaultQROptions(size int) QROptions {
	return QROptions{Size: size, Margin: 2, ErrorLevel: "M", Dark: "#000000", Light: "#FFFFFF"}
}

// QuotationViewURL is the canonical public URL of a quotation.
func QuotationViewURL(baseURL, quotationID string) string {
	return strings.TrimRight(baseURL, "/") + "/quotations/view/" + url.PathEscape(quotationID)
}

// GenerateQR encodes the quotation's view URL and returns a PNG data URL.
func GenerateQR(quotationID, baseURL string, opts QROptions) (string, error) {
	b, err := GenerateQRPNG(quotationID, baseURL, opts)
	if err != nil {
		return "", err
	}
	return PNGDataURL(b), nil
}

// GenerateQRPNG encodes the quotation's view URL as PNG bytes.
func GenerateQRPNG(quotationID, baseURL string, opts QROptions) ([]byte, error) {
	if quotationID == "" {
		return nil, errors.New("qr: missing quotation id")
	}
	if baseURL == "" {
		return nil, errors.New("qr: missing base url")
	}

	level, err := qrLevel(opts.ErrorLevel)
	if err != nil {
		return nil, err
	}
	dark, err := parseHexColor(opts.Dark, color.RGBA{A: 255})
	if err != nil {
		return nil, err
	}
	light, err := parseHexColor(opts.Light, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	if err != nil {
		return nil, err
	}

	code, err := qr.Encode(QuotationViewURL(baseURL, quotationID), level, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}

	img, err := drawQR(code, opts.Size, opts.Margin, dark, light)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qr: png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawQR paints the module matrix centred in a size x size image with a
// quiet zone of margin modules.
func drawQR(code barcode.Barcode, size, margin int, dark, light color.Color) (*image.RGBA, error) {
	if margin < 0 {
		margin = 0
	}
	modules := code.Bounds().Dx()
	total := modules + 2*margin
	if size < total {
		return nil, fmt.Errorf("qr: size %dpx is too small for %d modules", size, total)
	}
	scale := size / total
	offset := (size - modules*scale) / 2

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: light}, image.Point{}, draw.Src)

	origin := code.Bounds().Min
	for y := 0; y < modules; y++ {
		for x := 0; x < modules; x++ {
			if !isDark(code.At(origin.X+x, origin.Y+y)) {
				continue
			}
			r := image.Rect(offset+x*scale, offset+y*scale, offset+(x+1)*scale, offset+(y+1)*scale)
			draw.Draw(img, r, &image.Uniform{C: dark}, image.Point{}, draw.Src)
		}
	}
	return img, nil
}

// PlaceholderQRPNG is substituted when QR generation fails: a light grey
// square with a thin darker frame, the same size as the requested code.
func PlaceholderQRPNG(size int) []byte {
	if size < 8 {
		size = 8
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	fill := color.RGBA{R: 242, G: 242, B: 242, A: 255}
	frame := color.RGBA{R: 191, G: 191, B: 191, A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	for i := 0; i < size; i++ {
		for _, w := range []int{0, 1} {
			img.Set(i, w, frame)
			img.Set(i, size-1-w, frame)
			img.Set(w, i, frame)
			img.Set(size-1-w, i, frame)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// PNGDataURL wraps PNG bytes in a data URL.
func PNGDataURL(b []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b)
}

// DecodeDataURL returns the payload and media type of a base64 data URL.
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", errors.New("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("malformed data url")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", errors.New("data url is not base64")
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data url: %w", err)
	}
	return b, mediaType, nil
}

func qrLevel(s string) (qr.ErrorCorrectionLevel, error) {
	switch strings.ToUpper(s) {
	case "L":
		return qr.L, nil
	case "", "M":
		return qr.M, nil
	case "Q":
		return qr.Q, nil
	case "H":
		return qr.H, nil
	}
	return qr.M, fmt.Errorf("qr: unknown error level %q", s)
}

func isDark(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return (r+g+b)/3 < 0x8000
}

// parseHexColor parses #RRGGBB; an empty string yields def.
func parseHexColor(s string, def color.RGBA) (color.RGBA, error) {
	if s == "" {
		return def, nil
	}
	if !hexColorPattern.MatchString(s) {
		return def, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return def, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
