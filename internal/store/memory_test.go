package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/invoiceguard/backend/internal/domain"
)

func TestMemoryStoreInvoices(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	inv := domain.Invoice{
		ID:          "inv_1",
		CreatedAt:   time.Now().UTC(),
		VendorName:  "Acme",
		AmountTotal: 100,
		Fingerprint: "acme|inv1|100.00|2024-03-05",
		Flags:       []domain.Flag{{Kind: domain.FlagNone, Severity: domain.SeverityInfo}},
	}
	if err := s.AppendInvoice(ctx, inv); err != nil {
		t.Fatalf("AppendInvoice: %v", err)
	}

	got, err := s.GetInvoice(ctx, "inv_1")
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Fingerprint != inv.Fingerprint {
		t.Errorf("fingerprint = %q", got.Fingerprint)
	}

	// Mutating the returned copy must not leak into the ledger.
	got.Flags[0].Kind = domain.FlagDuplicateHard
	again, _ := s.GetInvoice(ctx, "inv_1")
	if again.Flags[0].Kind != domain.FlagNone {
		t.Error("ledger state was mutated through a returned copy")
	}

	if _, err := s.GetInvoice(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, err := s.ListInvoices(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListInvoices = %v, %v", list, err)
	}
}

func TestMemoryStorePayments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.AppendInvoice(ctx, domain.Invoice{ID: "inv_1"}); err != nil {
		t.Fatal(err)
	}

	p := domain.Payment{ID: "pay_1", InvoiceID: "inv_1", AmountTotal: 100}
	if err := s.AppendPayment(ctx, p); err != nil {
		t.Fatalf("AppendPayment: %v", err)
	}

	// Second payment for the same invoice is rejected, not accepted silently.
	if err := s.AppendPayment(ctx, domain.Payment{ID: "pay_2", InvoiceID: "inv_1"}); !errors.Is(err, ErrPaymentExists) {
		t.Errorf("expected ErrPaymentExists, got %v", err)
	}

	// Payments for unknown invoices are rejected too.
	if err := s.AppendPayment(ctx, domain.Payment{ID: "pay_3", InvoiceID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	payments, err := s.ListPayments(ctx)
	if err != nil || len(payments) != 1 {
		t.Fatalf("ListPayments = %v, %v", payments, err)
	}
}

func TestMemoryStoreVendorProfiles(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetVendorProfile(ctx, "acme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown vendor, got %v", err)
	}

	low := 100.0
	profile := domain.VendorProfile{
		NameNorm:    "acme",
		DisplayName: "Acme",
		KnownTaxIDs: []string{"TAX-1"},
		TypicalMin:  &low,
		TypicalMax:  &low,
	}
	if err := s.SaveVendorProfile(ctx, profile); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetVendorProfile(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if got.DisplayName != "Acme" || len(got.KnownTaxIDs) != 1 || *got.TypicalMin != 100 {
		t.Errorf("profile = %+v", got)
	}

	// Returned copies are detached from stored state.
	got.KnownTaxIDs[0] = "TAMPERED"
	*got.TypicalMin = 1
	again, _ := s.GetVendorProfile(ctx, "acme")
	if again.KnownTaxIDs[0] != "TAX-1" || *again.TypicalMin != 100 {
		t.Error("stored profile was mutated through a returned copy")
	}

	// Upsert replaces, listing preserves insertion order.
	if err := s.SaveVendorProfile(ctx, domain.VendorProfile{NameNorm: "globex", DisplayName: "Globex"}); err != nil {
		t.Fatal(err)
	}
	profile.DisplayName = "Acme Test Co"
	if err := s.SaveVendorProfile(ctx, profile); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListVendorProfiles(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListVendorProfiles = %v, %v", list, err)
	}
	if list[0].NameNorm != "acme" || list[0].DisplayName != "Acme Test Co" || list[1].NameNorm != "globex" {
		t.Errorf("list = %+v", list)
	}
}
