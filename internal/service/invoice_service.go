package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceguard/backend/internal/domain"
	"github.com/invoiceguard/backend/internal/mlscore"
	"github.com/invoiceguard/backend/internal/risk"
	"github.com/invoiceguard/backend/internal/store"
)

// ErrInvalidInput indicates a submission missing one of the required fields.
var ErrInvalidInput = errors.New("vendor_name, invoice_number, and invoice_date are required")

const (
	defaultRuleWeight = 0.7
	defaultMLWeight   = 0.3
	defaultCurrency   = "USD"
)

// Scorer abstracts the external ML scoring service.
type Scorer interface {
	Score(ctx context.Context, inv domain.Invoice) (mlscore.Assessment, error)
}

// InvoiceService orchestrates scoring and baseline learning. A single mutex
// serializes ledger scan-and-append against mark-paid-and-learn so two
// concurrent submissions of the same invoice cannot both pass the duplicate
// checks. The ML call runs before the critical section; the lock never waits
// on the network.
type InvoiceService struct {
	store  store.Store
	engine *risk.Engine
	scorer Scorer
	logger *slog.Logger

	ruleWeight float64
	mlWeight   float64

	mu    sync.Mutex
	nowFn func() time.Time
	idFn  func(prefix string) string
}

// NewInvoiceService wires the scoring workflow. scorer may be nil when no ML
// service is configured; the zero fallback then applies to every submission.
func NewInvoiceService(st store.Store, engine *risk.Engine, scorer Scorer, logger *slog.Logger) *InvoiceService {
	return &InvoiceService{
		store:      st,
		engine:     engine,
		scorer:     scorer,
		logger:     logger,
		ruleWeight: defaultRuleWeight,
		mlWeight:   defaultMLWeight,
		nowFn:      time.Now,
		idFn:       newID,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *InvoiceService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// WithIDGenerator overrides record id generation (used primarily in tests).
func (s *InvoiceService) WithIDGenerator(idFn func(prefix string) string) {
	if idFn != nil {
		s.idFn = idFn
	}
}

// WithBlendWeights overrides the rule/ML blend policy.
func (s *InvoiceService) WithBlendWeights(rule, ml float64) {
	if rule >= 0 && ml >= 0 && rule+ml > 0 {
		s.ruleWeight = rule
		s.mlWeight = ml
	}
}

// SubmitInvoice validates, scores, blends, and appends one invoice, and
// returns the enriched ledger record.
func (s *InvoiceService) SubmitInvoice(ctx context.Context, in InvoiceInput) (domain.Invoice, error) {
	if strings.TrimSpace(in.VendorName) == "" ||
		strings.TrimSpace(in.InvoiceNumber) == "" ||
		strings.TrimSpace(in.InvoiceDate) == "" {
		return domain.Invoice{}, ErrInvalidInput
	}

	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	inv := domain.Invoice{
		VendorName:    in.VendorName,
		InvoiceNumber: in.InvoiceNumber,
		InvoiceDate:   in.InvoiceDate,
		AmountTotal:   safeAmount(in.AmountTotal),
		Currency:      currency,
		TaxID:         in.TaxID,
		IBAN:          in.IBAN,
		RawText:       in.RawText,
		SourceFile:    in.SourceFile,
	}

	assessment := s.scoreML(ctx, inv)

	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.store.ListInvoices(ctx)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("load invoice ledger: %w", err)
	}
	payments, err := s.store.ListPayments(ctx)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("load payment ledger: %w", err)
	}
	profile, err := s.lookupProfile(ctx, risk.NormalizeVendorName(inv.VendorName))
	if err != nil {
		return domain.Invoice{}, err
	}

	result := s.engine.Score(inv, history, payments, profile)

	now := s.nowFn().UTC()
	inv.ID = s.idFn("inv")
	inv.CreatedAt = now
	inv.VendorNameNorm = risk.NormalizeVendorName(inv.VendorName)
	inv.InvoiceNumberNorm = risk.NormalizeInvoiceNumber(inv.InvoiceNumber)
	inv.InvoiceDateNorm = risk.NormalizeDate(inv.InvoiceDate)
	inv.Fingerprint = result.Fingerprint
	inv.RuleScore = result.RuleScore
	inv.MLScore = assessment.Score
	inv.FinalScore = s.blend(result.RuleScore, assessment.Score)
	inv.Flags = mergeFlags(result.Flags, assessment.Flags)

	if err := s.store.AppendInvoice(ctx, inv); err != nil {
		return domain.Invoice{}, fmt.Errorf("append invoice: %w", err)
	}
	if err := s.ensureProfile(ctx, inv.VendorNameNorm, inv.VendorName, now); err != nil {
		return domain.Invoice{}, err
	}

	s.logger.Info("invoice scored",
		"invoiceId", inv.ID,
		"vendor", inv.VendorNameNorm,
		"ruleScore", inv.RuleScore,
		"mlScore", inv.MLScore,
		"finalScore", inv.FinalScore,
		"flags", len(inv.Flags),
	)

	return inv, nil
}

// MarkPaid records the confirmed payment for an invoice and folds the
// invoice into the vendor's trusted baseline. A second call for the same
// invoice returns store.ErrPaymentExists.
func (s *InvoiceService) MarkPaid(ctx context.Context, invoiceID string, datePaid *time.Time) (domain.Payment, domain.VendorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Payment{}, domain.VendorProfile{}, err
	}

	now := s.nowFn().UTC()
	paid := now
	if datePaid != nil {
		paid = datePaid.UTC()
	}

	payment := domain.Payment{
		ID:                s.idFn("pay"),
		InvoiceID:         inv.ID,
		DatePaid:          paid,
		VendorNameNorm:    inv.VendorNameNorm,
		InvoiceNumberNorm: inv.InvoiceNumberNorm,
		AmountTotal:       inv.AmountTotal,
		TaxID:             inv.TaxID,
		IBAN:              inv.IBAN,
	}

	if err := s.store.AppendPayment(ctx, payment); err != nil {
		return domain.Payment{}, domain.VendorProfile{}, err
	}

	profile, err := s.lookupProfile(ctx, inv.VendorNameNorm)
	if err != nil {
		return domain.Payment{}, domain.VendorProfile{}, err
	}
	if profile == nil {
		profile = &domain.VendorProfile{
			NameNorm:    inv.VendorNameNorm,
			DisplayName: strings.TrimSpace(inv.VendorName),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	risk.LearnFromPayment(profile, inv, now)

	if err := s.store.SaveVendorProfile(ctx, *profile); err != nil {
		return domain.Payment{}, domain.VendorProfile{}, fmt.Errorf("save vendor profile: %w", err)
	}

	s.logger.Info("invoice marked paid",
		"invoiceId", inv.ID,
		"paymentId", payment.ID,
		"vendor", inv.VendorNameNorm,
	)

	return payment, *profile, nil
}

// ListInvoices returns ledger records, newest first.
func (s *InvoiceService) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	invoices, err := s.store.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	reverse(invoices)
	return invoices, nil
}

// GetInvoice returns one ledger record.
func (s *InvoiceService) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	return s.store.GetInvoice(ctx, id)
}

// ListPayments returns confirmed payments, newest first.
func (s *InvoiceService) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	payments, err := s.store.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	reverse(payments)
	return payments, nil
}

// ListVendors returns every vendor profile.
func (s *InvoiceService) ListVendors(ctx context.Context) ([]domain.VendorProfile, error) {
	return s.store.ListVendorProfiles(ctx)
}

// CreateVendor registers an empty profile for a vendor name, returning the
// existing profile when one is already present.
func (s *InvoiceService) CreateVendor(ctx context.Context, name string) (domain.VendorProfile, error) {
	display := strings.TrimSpace(name)
	if display == "" {
		return domain.VendorProfile{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nameNorm := risk.NormalizeVendorName(name)
	existing, err := s.lookupProfile(ctx, nameNorm)
	if err != nil {
		return domain.VendorProfile{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	now := s.nowFn().UTC()
	profile := domain.VendorProfile{
		NameNorm:    nameNorm,
		DisplayName: display,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveVendorProfile(ctx, profile); err != nil {
		return domain.VendorProfile{}, fmt.Errorf("save vendor profile: %w", err)
	}
	return profile, nil
}

// scoreML runs the external scorer with the fallback-to-zero policy applied
// explicitly: any typed failure is logged and replaced by the zero default.
func (s *InvoiceService) scoreML(ctx context.Context, inv domain.Invoice) mlscore.Assessment {
	if s.scorer == nil {
		return mlscore.Fallback()
	}

	assessment, err := s.scorer.Score(ctx, inv)
	if err != nil {
		s.logger.Warn("ml scoring failed, substituting zero score",
			"vendor", inv.VendorName,
			"invoiceNumber", inv.InvoiceNumber,
			"error", err,
		)
		return mlscore.Fallback()
	}
	return assessment
}

func (s *InvoiceService) lookupProfile(ctx context.Context, nameNorm string) (*domain.VendorProfile, error) {
	profile, err := s.store.GetVendorProfile(ctx, nameNorm)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load vendor profile: %w", err)
	}
	return &profile, nil
}

func (s *InvoiceService) ensureProfile(ctx context.Context, nameNorm, displayName string, now time.Time) error {
	existing, err := s.lookupProfile(ctx, nameNorm)
	if err != nil || existing != nil {
		return err
	}
	profile := domain.VendorProfile{
		NameNorm:    nameNorm,
		DisplayName: strings.TrimSpace(displayName),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveVendorProfile(ctx, profile); err != nil {
		return fmt.Errorf("save vendor profile: %w", err)
	}
	return nil
}

func (s *InvoiceService) blend(ruleScore, mlScore int) int {
	blended := math.Round(float64(ruleScore)*s.ruleWeight + float64(mlScore)*s.mlWeight)
	if blended > 100 {
		return 100
	}
	if blended < 0 {
		return 0
	}
	return int(blended)
}

func mergeFlags(ruleFlags, mlFlags []domain.Flag) []domain.Flag {
	merged := make([]domain.Flag, 0, len(ruleFlags)+len(mlFlags))
	for _, f := range ruleFlags {
		f.Source = "RULE"
		merged = append(merged, f)
	}
	for _, f := range mlFlags {
		f.Source = "ML"
		merged = append(merged, f)
	}
	return merged
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

func safeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
