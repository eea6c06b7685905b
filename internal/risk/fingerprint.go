package risk

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// fingerprintSep never appears in the normalized components: vendor names
// and dates cannot contain it after normalization collapses casing, and the
// invoice number is stripped to alphanumerics.
const fingerprintSep = "|"

// Fingerprint derives the deterministic identity key of an invoice. Two
// invoices with the same fingerprint are hard duplicates regardless of any
// other field.
func Fingerprint(vendorName, invoiceNumber string, amount float64, invoiceDate string) string {
	return strings.Join([]string{
		NormalizeVendorName(vendorName),
		NormalizeInvoiceNumber(invoiceNumber),
		formatAmount(amount),
		NormalizeDate(invoiceDate),
	}, fingerprintSep)
}

// formatAmount renders the amount with exactly two decimal places, rounding
// half away from zero as the upstream systems do.
func formatAmount(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	return decimal.NewFromFloat(amount).StringFixed(2)
}
