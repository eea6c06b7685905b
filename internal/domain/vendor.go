package domain

import "time"

// VendorProfile is the trusted baseline learned for one vendor. The
// normalized name is the dedup key. Learned sets and the amount range are
// updated only when a payment is recorded, never from unconfirmed
// submissions.
type VendorProfile struct {
	NameNorm    string
	DisplayName string

	KnownTaxIDs []string
	KnownIBANs  []string

	// TypicalMin/Max are nil until the first paid invoice is observed.
	TypicalMin *float64
	TypicalMax *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasTaxID reports whether the tax identifier was seen on a paid invoice.
func (v *VendorProfile) HasTaxID(taxID string) bool {
	for _, known := range v.KnownTaxIDs {
		if known == taxID {
			return true
		}
	}
	return false
}

// HasIBAN reports whether the bank identifier was seen on a paid invoice.
func (v *VendorProfile) HasIBAN(iban string) bool {
	for _, known := range v.KnownIBANs {
		if known == iban {
			return true
		}
	}
	return false
}
