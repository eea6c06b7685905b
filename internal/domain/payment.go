package domain

import "time"

// Payment confirms that an invoice was paid. It carries a frozen snapshot of
// the invoice's normalized identity so later already-paid checks do not
// depend on the invoice record still being reachable. At most one payment
// exists per invoice id.
type Payment struct {
	ID        string
	InvoiceID string
	DatePaid  time.Time

	VendorNameNorm    string
	InvoiceNumberNorm string
	AmountTotal       float64
	TaxID             string
	IBAN              string
}
