package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/invoiceguard/backend/internal/domain"
	"github.com/invoiceguard/backend/internal/graph"
)

func TestGraphStoreAppendInvoice(t *testing.T) {
	mem := graph.NewMemoryClient()
	s := NewGraphStore(mem)

	inv := domain.Invoice{
		ID:                "inv_1",
		CreatedAt:         time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		VendorName:        "Acme Test Co",
		InvoiceNumber:     "INV-100",
		InvoiceDate:       "2024-03-05",
		AmountTotal:       100,
		Currency:          "USD",
		VendorNameNorm:    "acme test co",
		InvoiceNumberNorm: "inv100",
		InvoiceDateNorm:   "2024-03-05",
		Fingerprint:       "acme test co|inv100|100.00|2024-03-05",
		RuleScore:         0,
		Flags:             []domain.Flag{{Kind: domain.FlagNone, Severity: domain.SeverityInfo}},
	}
	if err := s.AppendInvoice(context.Background(), inv); err != nil {
		t.Fatalf("AppendInvoice: %v", err)
	}

	calls := mem.WriteCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 write, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Query, "MERGE (v:Vendor {nameNorm: $vendorNameNorm})") {
		t.Errorf("query should merge the vendor node:\n%s", calls[0].Query)
	}
	props, ok := calls[0].Params["props"].(map[string]any)
	if !ok {
		t.Fatalf("props param missing: %+v", calls[0].Params)
	}
	if props["fingerprint"] != inv.Fingerprint {
		t.Errorf("fingerprint prop = %v", props["fingerprint"])
	}
	flagsJSON, _ := props["flagsJson"].(string)
	if !strings.Contains(flagsJSON, string(domain.FlagNone)) {
		t.Errorf("flags not serialized: %q", flagsJSON)
	}
}

func TestGraphStoreListInvoices(t *testing.T) {
	mem := graph.NewMemoryClient()
	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{
			"id":                "inv_1",
			"createdAt":         "2024-03-05T10:00:00Z",
			"vendorName":        "Acme",
			"invoiceNumber":     "INV-100",
			"invoiceDate":       "2024-03-05",
			"amountTotal":       100.0,
			"vendorNameNorm":    "acme",
			"invoiceNumberNorm": "inv100",
			"invoiceDateNorm":   "2024-03-05",
			"fingerprint":       "acme|inv100|100.00|2024-03-05",
			"ruleScore":         int64(45),
			"flagsJson":         `[{"type":"DUPLICATE_SOFT","severity":"MEDIUM"}]`,
		},
	}})

	s := NewGraphStore(mem)
	invoices, err := s.ListInvoices(context.Background())
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}

	inv := invoices[0]
	if inv.ID != "inv_1" || inv.RuleScore != 45 || inv.AmountTotal != 100 {
		t.Errorf("invoice = %+v", inv)
	}
	if inv.CreatedAt.IsZero() {
		t.Error("createdAt not decoded")
	}
	if len(inv.Flags) != 1 || inv.Flags[0].Kind != domain.FlagDuplicateSoft {
		t.Errorf("flags = %+v", inv.Flags)
	}
}

func TestGraphStoreAppendPaymentRejectsDouble(t *testing.T) {
	mem := graph.NewMemoryClient()
	// Existing-payment probe reports one payment already recorded.
	mem.PushReadResult(graph.Result{Records: []graph.Record{{"total": int64(1)}}})

	s := NewGraphStore(mem)
	err := s.AppendPayment(context.Background(), domain.Payment{ID: "pay_2", InvoiceID: "inv_1"})
	if !errors.Is(err, ErrPaymentExists) {
		t.Fatalf("expected ErrPaymentExists, got %v", err)
	}
	if len(mem.WriteCalls()) != 0 {
		t.Error("no write must happen once the duplicate is detected")
	}
}

func TestGraphStoreAppendPaymentUnknownInvoice(t *testing.T) {
	mem := graph.NewMemoryClient()
	// No existing payment, but the MATCH on the invoice returns no rows.
	mem.PushReadResult(graph.Result{Records: []graph.Record{{"total": int64(0)}}})

	s := NewGraphStore(mem)
	err := s.AppendPayment(context.Background(), domain.Payment{ID: "pay_1", InvoiceID: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGraphStoreVendorProfileRoundTrip(t *testing.T) {
	mem := graph.NewMemoryClient()
	s := NewGraphStore(mem)

	low, high := 100.0, 500.0
	profile := domain.VendorProfile{
		NameNorm:    "acme",
		DisplayName: "Acme",
		KnownTaxIDs: []string{"TAX-1"},
		KnownIBANs:  []string{"IBAN-1"},
		TypicalMin:  &low,
		TypicalMax:  &high,
		CreatedAt:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
	}
	if err := s.SaveVendorProfile(context.Background(), profile); err != nil {
		t.Fatal(err)
	}

	calls := mem.WriteCalls()
	if len(calls) != 1 || !strings.Contains(calls[0].Query, "MERGE (v:Vendor {nameNorm: $nameNorm})") {
		t.Fatalf("unexpected write calls: %+v", calls)
	}

	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{
			"nameNorm":    "acme",
			"displayName": "Acme",
			"knownTaxIds": []any{"TAX-1"},
			"knownIbans":  []any{"IBAN-1"},
			"typicalMin":  100.0,
			"typicalMax":  500.0,
			"createdAt":   "2024-03-05T00:00:00Z",
			"updatedAt":   "2024-03-06T00:00:00Z",
		},
	}})
	got, err := s.GetVendorProfile(context.Background(), "acme")
	if err != nil {
		t.Fatal(err)
	}
	if got.TypicalMin == nil || *got.TypicalMin != 100 || got.TypicalMax == nil || *got.TypicalMax != 500 {
		t.Errorf("range = %+v", got)
	}
	if len(got.KnownTaxIDs) != 1 || got.KnownTaxIDs[0] != "TAX-1" {
		t.Errorf("tax ids = %+v", got.KnownTaxIDs)
	}

	// Absent vendor maps to ErrNotFound.
	if _, err := s.GetVendorProfile(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
