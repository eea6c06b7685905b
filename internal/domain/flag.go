package domain

// FlagKind identifies one deterministic risk signal.
type FlagKind string

const (
	FlagAlreadyPaid       FlagKind = "ALREADY_PAID"
	FlagDuplicateHard     FlagKind = "DUPLICATE_HARD"
	FlagDuplicateSoft     FlagKind = "DUPLICATE_SOFT"
	FlagTaxIDMismatch     FlagKind = "TAX_ID_MISMATCH"
	FlagIBANMismatch      FlagKind = "IBAN_MISMATCH"
	FlagAmountLowOutlier  FlagKind = "AMOUNT_LOW_OUTLIER"
	FlagAmountHighOutlier FlagKind = "AMOUNT_HIGH_OUTLIER"
	FlagNone              FlagKind = "NO_FLAGS"
)

// Severity grades how strongly a flag should weigh in review.
type Severity string

const (
	SeverityInfo   Severity = "INFO"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Flag is one explainable unit of evidence attached to a scoring result.
type Flag struct {
	Kind        FlagKind       `json:"type"`
	Severity    Severity       `json:"severity"`
	Explanation string         `json:"explanation"`
	Evidence    map[string]any `json:"evidence"`
	Source      string         `json:"source,omitempty"` // RULE or ML
}
