package service

// InvoiceInput is the inbound payload accepted by the scoring workflow. It
// carries raw fields only; normalization and scoring happen inside the
// service.
type InvoiceInput struct {
	VendorName    string
	InvoiceNumber string
	InvoiceDate   string
	AmountTotal   float64
	Currency      string
	TaxID         string
	IBAN          string
	RawText       string
	SourceFile    string
}

// IngestItem pairs an invoice with whether the dataset marks it as paid.
// Used by the bulk ingestor and the dataset generator.
type IngestItem struct {
	Invoice  InvoiceInput `json:"invoice"`
	MarkPaid bool         `json:"mark_paid"`
}
