package generator

import (
	"context"
	"testing"
)

func TestGenerateDeterministic(t *testing.T) {
	cfg := Config{NumVendors: 5, NumInvoices: 100, Seed: 7}

	first, err := New(cfg).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := New(cfg).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(first.Items) != 100 {
		t.Fatalf("items = %d, want 100", len(first.Items))
	}
	for i := range first.Items {
		if first.Items[i] != second.Items[i] {
			t.Fatalf("item %d differs between runs with the same seed", i)
		}
	}
}

func TestGenerateShape(t *testing.T) {
	dataset, err := New(Config{NumVendors: 3, NumInvoices: 200, PaidFraction: 0.5, Seed: 11}).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var paid int
	for _, item := range dataset.Items {
		inv := item.Invoice
		if inv.VendorName == "" || inv.InvoiceNumber == "" || inv.InvoiceDate == "" {
			t.Fatalf("incomplete invoice: %+v", inv)
		}
		if inv.AmountTotal <= 0 {
			t.Fatalf("non-positive amount: %+v", inv)
		}
		if item.MarkPaid {
			paid++
		}
	}
	if paid == 0 || paid == len(dataset.Items) {
		t.Errorf("paid = %d of %d, expected a mix", paid, len(dataset.Items))
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(Config{NumVendors: 2, NumInvoices: 10, Seed: 3}).Generate(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
