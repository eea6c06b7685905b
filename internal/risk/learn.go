package risk

import (
	"math"
	"time"

	"github.com/invoiceguard/backend/internal/domain"
)

// LearnFromPayment widens a vendor's trusted baseline with one paid invoice.
// This is the only mutation path into a profile; unconfirmed submissions
// never reach it. Re-applying the same invoice is harmless: the identifier
// sets deduplicate and the range only widens.
func LearnFromPayment(profile *domain.VendorProfile, inv domain.Invoice, now time.Time) {
	if profile == nil {
		return
	}

	if inv.TaxID != "" && !profile.HasTaxID(inv.TaxID) {
		profile.KnownTaxIDs = append(profile.KnownTaxIDs, inv.TaxID)
	}
	if inv.IBAN != "" && !profile.HasIBAN(inv.IBAN) {
		profile.KnownIBANs = append(profile.KnownIBANs, inv.IBAN)
	}

	amount := inv.AmountTotal
	if amount > 0 && !math.IsNaN(amount) && !math.IsInf(amount, 0) {
		if profile.TypicalMin == nil || amount < *profile.TypicalMin {
			v := amount
			profile.TypicalMin = &v
		}
		if profile.TypicalMax == nil || amount > *profile.TypicalMax {
			v := amount
			profile.TypicalMax = &v
		}
	}

	profile.UpdatedAt = now
}
