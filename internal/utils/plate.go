package utils

import (
	"regexp"
	"strings"
)

var (
	nonPlateChars = regexp.MustCompile(`[^A-Za-z0-9\s]`)

	platePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{1,4}TN\d{1,4}$`), // standard: 123TN5678
		regexp.MustCompile(`^\d{1,4}RS\d{1,4}$`), // government
		regexp.MustCompile(`^\d{1,7}$`),          // old format, digits only
	}
)

// NormalizePlate canonicalizes a raw plate reading into the identity key
// stored in the database. Handles the Arabic word for Tunisia and
// Arabic-Indic digits, then strips everything that is not alphanumeric.
// Two readings of the same physical plate must normalize identically.
func NormalizePlate(raw string) string {
	if raw == "" {
		return ""
	}
	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, "تونس", "TN")
	text = strings.ReplaceAll(text, "TUNISIE", "TN")
	text = foldArabicDigits(text)
	text = stripArabic(text)
	text = nonPlateChars.ReplaceAllString(text, "")
	text = strings.ToUpper(text)
	return strings.ReplaceAll(text, " ", "")
}

// ValidatePlate reports whether a normalized plate matches a known
// Tunisian registration format.
func ValidatePlate(normalized string) bool {
	for _, p := range platePatterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

func foldArabicDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '٠' && r <= '٩': // Arabic-Indic ٠..٩
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹': // Extended Arabic-Indic ۰..۹
			b.WriteRune('0' + (r - '۰'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripArabic(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '؀' && r <= 'ۿ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
