package risk

import (
	"fmt"
	"math"

	"github.com/invoiceguard/backend/internal/domain"
)

const (
	// paidAmountTolerance is the absolute slack allowed when matching a new
	// submission against a recorded payment.
	paidAmountTolerance = 1.0

	softSimilarityThreshold = 0.82
	softDayWindow           = 14
	softAmountAbsTolerance  = 1.0
	softAmountRelTolerance  = 0.01
)

// Result is what the engine hands back to the caller for persistence and
// blending with the external ML score.
type Result struct {
	RuleScore   int
	Flags       []domain.Flag
	Fingerprint string
}

// Engine applies the deterministic scoring rules. It holds no state beyond
// the weights table; every call is a pure function of its arguments.
type Engine struct {
	weights Weights
}

// NewEngine builds an Engine with the supplied weights table.
func NewEngine(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// Score evaluates a submitted invoice against the invoice ledger, the
// payment ledger, and the vendor's learned baseline. A nil profile disables
// the identity and amount checks. Checks run in a fixed order so flag order
// is stable; the score itself is additive and clamped to [0,100].
func (e *Engine) Score(inv domain.Invoice, history []domain.Invoice, payments []domain.Payment, profile *domain.VendorProfile) Result {
	vendorNorm := NormalizeVendorName(inv.VendorName)
	numberNorm := NormalizeInvoiceNumber(inv.InvoiceNumber)
	dateNorm := NormalizeDate(inv.InvoiceDate)
	amount := safeAmount(inv.AmountTotal)
	fp := Fingerprint(inv.VendorName, inv.InvoiceNumber, amount, inv.InvoiceDate)

	score := 0
	var flags []domain.Flag

	add := func(f domain.Flag) {
		score += e.weights.Points(f.Kind)
		flags = append(flags, f)
	}

	// 1. Already paid: same vendor + invoice number with a near-identical
	// amount already confirmed as paid. The single most important signal.
	if paid := matchPayment(payments, vendorNorm, numberNorm, amount); paid != nil {
		add(domain.Flag{
			Kind:        domain.FlagAlreadyPaid,
			Severity:    domain.SeverityHigh,
			Explanation: "This invoice appears to be already paid (same vendor and invoice number, matching amount).",
			Evidence: map[string]any{
				"payment_id":        paid.ID,
				"paid_invoice_id":   paid.InvoiceID,
				"paid_amount":       paid.AmountTotal,
				"amount_difference": math.Abs(amount - paid.AmountTotal),
			},
		})
	}

	// 2. Hard duplicate: identical fingerprint.
	hardDupe := matchFingerprint(history, fp)
	if hardDupe != nil {
		add(domain.Flag{
			Kind:        domain.FlagDuplicateHard,
			Severity:    domain.SeverityHigh,
			Explanation: "Exact duplicate detected (same vendor, invoice number, amount, and date).",
			Evidence:    map[string]any{"matched_invoice_id": hardDupe.ID},
		})
	}

	// 3. Soft duplicate, suppressed when a hard duplicate already matched.
	if hardDupe == nil {
		if cand, sim, gap := bestSoftDuplicate(history, vendorNorm, numberNorm, dateNorm, amount); cand != nil {
			add(domain.Flag{
				Kind:        domain.FlagDuplicateSoft,
				Severity:    domain.SeverityMedium,
				Explanation: fmt.Sprintf("Similar invoice found within %d days.", softDayWindow),
				Evidence: map[string]any{
					"matched_invoice_id": cand.ID,
					"similarity":         math.Round(sim*100) / 100,
					"day_gap":            gap,
				},
			})
		}
	}

	// 4. Identity checks against the learned baseline.
	if profile != nil {
		if inv.TaxID != "" && len(profile.KnownTaxIDs) > 0 && !profile.HasTaxID(inv.TaxID) {
			add(domain.Flag{
				Kind:        domain.FlagTaxIDMismatch,
				Severity:    domain.SeverityMedium,
				Explanation: "Tax ID differs from every tax ID seen on this vendor's paid invoices.",
				Evidence: map[string]any{
					"tax_id":        inv.TaxID,
					"known_tax_ids": append([]string(nil), profile.KnownTaxIDs...),
				},
			})
		}
		if inv.IBAN != "" && len(profile.KnownIBANs) > 0 && !profile.HasIBAN(inv.IBAN) {
			add(domain.Flag{
				Kind:        domain.FlagIBANMismatch,
				Severity:    domain.SeverityHigh,
				Explanation: "Bank account differs from every account seen on this vendor's paid invoices.",
				Evidence: map[string]any{
					"iban":        inv.IBAN,
					"known_ibans": append([]string(nil), profile.KnownIBANs...),
				},
			})
		}

		// 5. Amount outliers against the learned range.
		if profile.TypicalMin != nil && profile.TypicalMax != nil {
			if amount < *profile.TypicalMin {
				add(domain.Flag{
					Kind:        domain.FlagAmountLowOutlier,
					Severity:    domain.SeverityLow,
					Explanation: fmt.Sprintf("Amount %.2f is below this vendor's paid range (%.2f-%.2f).", amount, *profile.TypicalMin, *profile.TypicalMax),
					Evidence: map[string]any{
						"amount":      amount,
						"typical_min": *profile.TypicalMin,
						"typical_max": *profile.TypicalMax,
					},
				})
			} else if amount > *profile.TypicalMax {
				add(domain.Flag{
					Kind:        domain.FlagAmountHighOutlier,
					Severity:    domain.SeverityMedium,
					Explanation: fmt.Sprintf("Amount %.2f is above this vendor's paid range (%.2f-%.2f).", amount, *profile.TypicalMin, *profile.TypicalMax),
					Evidence: map[string]any{
						"amount":      amount,
						"typical_min": *profile.TypicalMin,
						"typical_max": *profile.TypicalMax,
					},
				})
			}
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	if len(flags) == 0 {
		flags = append(flags, domain.Flag{
			Kind:        domain.FlagNone,
			Severity:    domain.SeverityInfo,
			Explanation: "No duplicate or baseline deviation signals detected.",
			Evidence:    map[string]any{},
		})
	}

	return Result{
		RuleScore:   score,
		Flags:       flags,
		Fingerprint: fp,
	}
}

func matchPayment(payments []domain.Payment, vendorNorm, numberNorm string, amount float64) *domain.Payment {
	if vendorNorm == "" || numberNorm == "" {
		return nil
	}
	for i := range payments {
		p := &payments[i]
		if p.VendorNameNorm != vendorNorm || p.InvoiceNumberNorm != numberNorm {
			continue
		}
		if math.Abs(amount-p.AmountTotal) <= paidAmountTolerance {
			return p
		}
	}
	return nil
}

func matchFingerprint(history []domain.Invoice, fp string) *domain.Invoice {
	for i := range history {
		if history[i].Fingerprint == fp {
			return &history[i]
		}
	}
	return nil
}

// bestSoftDuplicate scans same-vendor history for a near-duplicate and keeps
// the candidate with the highest invoice-number similarity. This rescans the
// full ledger with the quadratic DP on every submission; ledger sizes are
// expected to stay modest.
func bestSoftDuplicate(history []domain.Invoice, vendorNorm, numberNorm, dateNorm string, amount float64) (*domain.Invoice, float64, int) {
	var (
		best    *domain.Invoice
		bestSim float64
		bestGap int
	)

	if numberNorm == "" {
		return nil, 0, 0
	}

	for i := range history {
		cand := &history[i]
		if cand.VendorNameNorm != vendorNorm || cand.InvoiceNumberNorm == "" {
			continue
		}

		sim := Similarity(numberNorm, cand.InvoiceNumberNorm)
		if sim < softSimilarityThreshold {
			continue
		}

		gap := DayGap(dateNorm, cand.InvoiceDateNorm)
		if gap < 0 || gap > softDayWindow {
			continue
		}

		if !amountsClose(amount, cand.AmountTotal) {
			continue
		}

		if best == nil || sim > bestSim {
			best = cand
			bestSim = sim
			bestGap = gap
		}
	}

	return best, bestSim, bestGap
}

// amountsClose applies one consistent tolerance rule: within 1 unit
// absolute, or within 1% of the candidate amount when it is non-zero.
func amountsClose(amount, candidate float64) bool {
	diff := math.Abs(amount - candidate)
	if diff <= softAmountAbsTolerance {
		return true
	}
	if candidate != 0 && diff <= softAmountRelTolerance*math.Abs(candidate) {
		return true
	}
	return false
}

// safeAmount treats malformed numeric input as zero so scoring stays total.
func safeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
