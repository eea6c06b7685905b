package risk

import (
	"regexp"
	"strings"
	"time"
)

var nonAlnumRegex = regexp.MustCompile(`[^a-z0-9]`)

// dateLayouts lists the representations accepted before falling back to the
// lossy prefix (see NormalizeDate). Ordered roughly by how often each shows
// up in extracted invoice text.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// NormalizeVendorName canonicalizes a vendor name for comparison.
func NormalizeVendorName(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizeInvoiceNumber lowercases the invoice number and strips every
// character that is not an ASCII letter or digit, so "INV-2024/001" and
// "inv2024001" compare equal.
func NormalizeInvoiceNumber(n string) string {
	n = strings.ToLower(strings.TrimSpace(n))
	return nonAlnumRegex.ReplaceAllString(n, "")
}

// NormalizeDate reduces any accepted date representation to YYYY-MM-DD.
// Unparseable input degrades to the first 10 characters of the trimmed raw
// value; that keeps ingestion total at the cost of a value that will never
// compare equal to a properly parsed date.
func NormalizeDate(d string) string {
	d = strings.TrimSpace(d)
	if d == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, d); err == nil {
			return t.Format("2006-01-02")
		}
	}
	runes := []rune(d)
	if len(runes) > 10 {
		runes = runes[:10]
	}
	return string(runes)
}

// ParseDay interprets a normalized date string as a calendar day.
func ParseDay(norm string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", norm)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DayGap returns the absolute number of days between two normalized dates,
// or -1 when either side did not normalize to a real calendar day.
func DayGap(a, b string) int {
	ta, okA := ParseDay(a)
	tb, okB := ParseDay(b)
	if !okA || !okB {
		return -1
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}
