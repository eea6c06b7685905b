package risk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/invoiceguard/backend/internal/domain"
)

// Weights maps each flag kind to the points it contributes to the rule
// score. Keeping the table named and loadable makes every rule tunable and
// testable on its own.
type Weights struct {
	AlreadyPaid       int `yaml:"already_paid"`
	DuplicateHard     int `yaml:"duplicate_hard"`
	DuplicateSoft     int `yaml:"duplicate_soft"`
	TaxIDMismatch     int `yaml:"tax_id_mismatch"`
	IBANMismatch      int `yaml:"iban_mismatch"`
	AmountLowOutlier  int `yaml:"amount_low_outlier"`
	AmountHighOutlier int `yaml:"amount_high_outlier"`
}

// DefaultWeights returns the production scoring table.
func DefaultWeights() Weights {
	return Weights{
		AlreadyPaid:       85,
		DuplicateHard:     70,
		DuplicateSoft:     45,
		TaxIDMismatch:     35,
		IBANMismatch:      55,
		AmountLowOutlier:  15,
		AmountHighOutlier: 25,
	}
}

// LoadWeightsFile reads a yaml weights table. Keys absent from the file keep
// their default values.
func LoadWeightsFile(path string) (Weights, error) {
	w := DefaultWeights()

	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights file: %w", err)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, fmt.Errorf("parse weights file %s: %w", path, err)
	}
	if err := w.validate(); err != nil {
		return Weights{}, fmt.Errorf("weights file %s: %w", path, err)
	}
	return w, nil
}

func (w Weights) validate() error {
	for kind, points := range w.table() {
		if points < 0 {
			return fmt.Errorf("weight for %s must not be negative, got %d", kind, points)
		}
	}
	return nil
}

func (w Weights) table() map[domain.FlagKind]int {
	return map[domain.FlagKind]int{
		domain.FlagAlreadyPaid:       w.AlreadyPaid,
		domain.FlagDuplicateHard:     w.DuplicateHard,
		domain.FlagDuplicateSoft:     w.DuplicateSoft,
		domain.FlagTaxIDMismatch:     w.TaxIDMismatch,
		domain.FlagIBANMismatch:      w.IBANMismatch,
		domain.FlagAmountLowOutlier:  w.AmountLowOutlier,
		domain.FlagAmountHighOutlier: w.AmountHighOutlier,
	}
}

// Points returns the contribution for a flag kind. Unknown kinds score zero.
func (w Weights) Points(kind domain.FlagKind) int {
	return w.table()[kind]
}
