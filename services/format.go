package services

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount formats a monetary or quantity value with thousands grouping
// and exactly 3 decimal places (e.g. 1234.5 -> "1,234.500").
func FormatAmount(amount float64) string {
	return amountPrinter.Sprintf("%.3f", normalizeZero(amount))
}

// FormatPlainAmount formats a value with 3 decimals and no grouping, for use
// in identifiers such as filenames.
func FormatPlainAmount(amount float64) string {
	return fmt.Sprintf("%.3f", normalizeZero(amount))
}

// FormatCurrency prefixes the grouped amount with a currency code.
func FormatCurrency(currency string, amount float64) string {
	if currency == "" {
		return FormatAmount(amount)
	}
	return currency + " " + FormatAmount(amount)
}

// FormatPercent renders a rate such as 5 or 5.5 without trailing zeros.
func FormatPercent(rate float64) string {
	s := fmt.Sprintf("%.2f", rate)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s + "%"
}

// normalizeZero turns -0 (and values that round to -0.000) into 0 so they
// never print as "-0.000".
func normalizeZero(v float64) float64 {
	if math.Abs(v) < 0.0005 {
		return 0
	}
	return v
}
