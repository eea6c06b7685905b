package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/invoiceguard/backend/internal/domain"
	"github.com/invoiceguard/backend/internal/mlscore"
	"github.com/invoiceguard/backend/internal/risk"
	"github.com/invoiceguard/backend/internal/store"
)

type stubScorer struct {
	assessment mlscore.Assessment
	err        error
	calls      int
}

func (s *stubScorer) Score(context.Context, domain.Invoice) (mlscore.Assessment, error) {
	s.calls++
	if s.err != nil {
		return mlscore.Assessment{}, s.err
	}
	return s.assessment, nil
}

func newTestService(scorer Scorer) *InvoiceService {
	svc := NewInvoiceService(
		store.NewMemoryStore(),
		risk.NewEngine(risk.DefaultWeights()),
		scorer,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	seq := 0
	svc.WithIDGenerator(func(prefix string) string {
		seq++
		return fmt.Sprintf("%s_%d", prefix, seq)
	})

	return svc
}

func acmeInvoice() InvoiceInput {
	return InvoiceInput{
		VendorName:    "Acme Test Co",
		InvoiceNumber: "INV-100",
		InvoiceDate:   "2024-03-05",
		AmountTotal:   100,
		TaxID:         "TAX-111",
		IBAN:          "IBAN-111",
	}
}

func hasFlag(flags []domain.Flag, kind domain.FlagKind) bool {
	for _, f := range flags {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

func TestSubmitInvoiceValidation(t *testing.T) {
	svc := newTestService(nil)
	cases := []InvoiceInput{
		{InvoiceNumber: "INV-1", InvoiceDate: "2024-03-05"},
		{VendorName: "Acme", InvoiceDate: "2024-03-05"},
		{VendorName: "Acme", InvoiceNumber: "INV-1"},
		{VendorName: "  ", InvoiceNumber: "INV-1", InvoiceDate: "2024-03-05"},
	}
	for i, in := range cases {
		if _, err := svc.SubmitInvoice(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestSubmitInvoiceEnrichment(t *testing.T) {
	svc := newTestService(nil)

	inv, err := svc.SubmitInvoice(context.Background(), acmeInvoice())
	if err != nil {
		t.Fatalf("SubmitInvoice: %v", err)
	}

	if inv.ID != "inv_1" {
		t.Errorf("id = %q", inv.ID)
	}
	if inv.VendorNameNorm != "acme test co" || inv.InvoiceNumberNorm != "inv100" || inv.InvoiceDateNorm != "2024-03-05" {
		t.Errorf("normalized fields = %+v", inv)
	}
	if inv.Fingerprint != "acme test co|inv100|100.00|2024-03-05" {
		t.Errorf("fingerprint = %q", inv.Fingerprint)
	}
	if inv.Currency != "USD" {
		t.Errorf("currency default = %q", inv.Currency)
	}
	if inv.RuleScore != 0 || inv.MLScore != 0 || inv.FinalScore != 0 {
		t.Errorf("scores = %d/%d/%d", inv.RuleScore, inv.MLScore, inv.FinalScore)
	}
	if len(inv.Flags) != 1 || inv.Flags[0].Kind != domain.FlagNone || inv.Flags[0].Source != "RULE" {
		t.Errorf("flags = %+v", inv.Flags)
	}

	// The vendor gets a lazily created empty profile.
	vendors, err := svc.ListVendors(context.Background())
	if err != nil || len(vendors) != 1 {
		t.Fatalf("ListVendors = %v, %v", vendors, err)
	}
	v := vendors[0]
	if v.NameNorm != "acme test co" || v.DisplayName != "Acme Test Co" {
		t.Errorf("vendor = %+v", v)
	}
	if len(v.KnownTaxIDs) != 0 || len(v.KnownIBANs) != 0 || v.TypicalMin != nil || v.TypicalMax != nil {
		t.Errorf("unpaid submission must not seed the baseline: %+v", v)
	}
}

func TestSubmitSameFingerprintTwice(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	if _, err := svc.SubmitInvoice(ctx, acmeInvoice()); err != nil {
		t.Fatal(err)
	}
	second, err := svc.SubmitInvoice(ctx, acmeInvoice())
	if err != nil {
		t.Fatal(err)
	}

	if !hasFlag(second.Flags, domain.FlagDuplicateHard) {
		t.Fatalf("expected DUPLICATE_HARD, got %+v", second.Flags)
	}
	if second.RuleScore < 70 {
		t.Errorf("rule score = %d, want >= 70", second.RuleScore)
	}
	// final = round(0.7*rule + 0.3*0)
	if second.FinalScore != 49 {
		t.Errorf("final score = %d, want 49", second.FinalScore)
	}
}

func TestMarkPaidLearnsAndFlagsFollowUps(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	first, err := svc.SubmitInvoice(ctx, acmeInvoice())
	if err != nil {
		t.Fatal(err)
	}

	payment, vendor, err := svc.MarkPaid(ctx, first.ID, nil)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if payment.InvoiceID != first.ID || payment.VendorNameNorm != "acme test co" || payment.AmountTotal != 100 {
		t.Errorf("payment snapshot = %+v", payment)
	}
	if !vendor.HasTaxID("TAX-111") || !vendor.HasIBAN("IBAN-111") {
		t.Errorf("baseline not learned: %+v", vendor)
	}
	if vendor.TypicalMin == nil || *vendor.TypicalMin != 100 || *vendor.TypicalMax != 100 {
		t.Errorf("range = %+v", vendor)
	}

	// Same vendor and amount, new number, different bank account.
	changed := acmeInvoice()
	changed.InvoiceNumber = "INV-101"
	changed.IBAN = "IBAN-222"
	flagged, err := svc.SubmitInvoice(ctx, changed)
	if err != nil {
		t.Fatal(err)
	}
	if !hasFlag(flagged.Flags, domain.FlagIBANMismatch) {
		t.Errorf("expected IBAN_MISMATCH, got %+v", flagged.Flags)
	}

	// Resubmitting the paid invoice number with a matching amount.
	resubmitted, err := svc.SubmitInvoice(ctx, acmeInvoice())
	if err != nil {
		t.Fatal(err)
	}
	if !hasFlag(resubmitted.Flags, domain.FlagAlreadyPaid) {
		t.Errorf("expected ALREADY_PAID, got %+v", resubmitted.Flags)
	}
	if resubmitted.RuleScore < 85 {
		t.Errorf("rule score = %d, want >= 85", resubmitted.RuleScore)
	}

	// Double mark-paid is rejected, unknown invoices too.
	if _, _, err := svc.MarkPaid(ctx, first.ID, nil); !errors.Is(err, store.ErrPaymentExists) {
		t.Errorf("expected ErrPaymentExists, got %v", err)
	}
	if _, _, err := svc.MarkPaid(ctx, "inv_ghost", nil); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAmountOutlierAfterLearning(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	for i, amount := range []float64{100, 500} {
		in := acmeInvoice()
		in.InvoiceNumber = fmt.Sprintf("INV-2%02d", i)
		in.AmountTotal = amount
		inv, err := svc.SubmitInvoice(ctx, in)
		if err != nil {
			t.Fatal(err)
		}
		if _, _, err := svc.MarkPaid(ctx, inv.ID, nil); err != nil {
			t.Fatal(err)
		}
	}

	small := acmeInvoice()
	small.InvoiceNumber = "INV-999"
	small.AmountTotal = 50
	small.InvoiceDate = "2024-06-01" // far from the paid invoices
	scored, err := svc.SubmitInvoice(ctx, small)
	if err != nil {
		t.Fatal(err)
	}
	if !hasFlag(scored.Flags, domain.FlagAmountLowOutlier) {
		t.Errorf("expected AMOUNT_LOW_OUTLIER after learning [100,500], got %+v", scored.Flags)
	}
}

func TestSubmitBlendsMLScore(t *testing.T) {
	scorer := &stubScorer{assessment: mlscore.Assessment{
		Score: 100,
		Flags: []domain.Flag{{Kind: "EMBEDDING_NEAR_DUPLICATE", Severity: domain.SeverityMedium}},
	}}
	svc := newTestService(scorer)

	inv, err := svc.SubmitInvoice(context.Background(), acmeInvoice())
	if err != nil {
		t.Fatal(err)
	}

	if scorer.calls != 1 {
		t.Errorf("scorer calls = %d", scorer.calls)
	}
	if inv.MLScore != 100 {
		t.Errorf("ml score = %d", inv.MLScore)
	}
	// round(0.7*0 + 0.3*100) = 30
	if inv.FinalScore != 30 {
		t.Errorf("final score = %d, want 30", inv.FinalScore)
	}

	var mlFlags int
	for _, f := range inv.Flags {
		if f.Source == "ML" {
			mlFlags++
		}
	}
	if mlFlags != 1 {
		t.Errorf("ml flags = %d in %+v", mlFlags, inv.Flags)
	}
}

func TestSubmitSurvivesMLFailure(t *testing.T) {
	scorer := &stubScorer{err: fmt.Errorf("%w: connection refused", mlscore.ErrTransport)}
	svc := newTestService(scorer)

	inv, err := svc.SubmitInvoice(context.Background(), acmeInvoice())
	if err != nil {
		t.Fatalf("ML failure must not block rule scoring: %v", err)
	}
	if inv.MLScore != 0 || inv.FinalScore != 0 {
		t.Errorf("fallback scores = %d/%d", inv.MLScore, inv.FinalScore)
	}
}

func TestCreateVendor(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	if _, err := svc.CreateVendor(ctx, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	created, err := svc.CreateVendor(ctx, " Acme Test Co ")
	if err != nil {
		t.Fatal(err)
	}
	if created.NameNorm != "acme test co" || created.DisplayName != "Acme Test Co" {
		t.Errorf("vendor = %+v", created)
	}

	// Creating again returns the existing profile untouched.
	again, err := svc.CreateVendor(ctx, "ACME TEST CO")
	if err != nil {
		t.Fatal(err)
	}
	if again.DisplayName != "Acme Test Co" {
		t.Errorf("existing profile should win: %+v", again)
	}
}

func TestListInvoicesNewestFirst(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	for _, number := range []string{"INV-1", "INV-2", "INV-3"} {
		in := acmeInvoice()
		in.InvoiceNumber = number
		in.InvoiceDate = "2099-01-01"
		if _, err := svc.SubmitInvoice(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	list, err := svc.ListInvoices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].InvoiceNumber != "INV-3" || list[2].InvoiceNumber != "INV-1" {
		t.Errorf("order = %+v", list)
	}
}
