package generator

// Config drives the synthetic invoice dataset generator.
type Config struct {
	NumVendors      int
	NumInvoices     int
	PaidFraction    float64
	DuplicateChance float64
	IBANSwapChance  float64
	OutlierChance   float64
	Seed            int64
}

// DefaultConfig returns baseline settings producing a dataset with enough
// paid history for the rule engine to flag the injected anomalies.
func DefaultConfig() Config {
	return Config{
		NumVendors:      50,
		NumInvoices:     2000,
		PaidFraction:    0.6,
		DuplicateChance: 0.05,
		IBANSwapChance:  0.02,
		OutlierChance:   0.03,
		Seed:            42,
	}
}
