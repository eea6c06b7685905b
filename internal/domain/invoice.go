package domain

import "time"

// Invoice is an immutable ledger record of a submitted invoice. Raw fields
// are what the caller supplied; normalized fields and the fingerprint are
// derived exactly once at ingestion and never recomputed.
type Invoice struct {
	ID        string
	CreatedAt time.Time

	VendorName    string
	InvoiceNumber string
	InvoiceDate   string
	AmountTotal   float64
	Currency      string
	TaxID         string
	IBAN          string
	RawText       string
	SourceFile    string

	VendorNameNorm    string
	InvoiceNumberNorm string
	InvoiceDateNorm   string
	Fingerprint       string

	RuleScore  int
	MLScore    int
	FinalScore int
	Flags      []Flag
}
