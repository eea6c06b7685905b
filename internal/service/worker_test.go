package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func datasetItems(n int, paidEvery int) []IngestItem {
	items := make([]IngestItem, 0, n)
	for i := 0; i < n; i++ {
		in := acmeInvoice()
		in.InvoiceNumber = fmt.Sprintf("INV-%04d", i)
		items = append(items, IngestItem{
			Invoice:  in,
			MarkPaid: paidEvery > 0 && i%paidEvery == 0,
		})
	}
	return items
}

func TestBulkIngest(t *testing.T) {
	svc := newTestService(nil)
	ingestor := NewBulkIngestor(svc, 4)

	if err := ingestor.Ingest(context.Background(), datasetItems(20, 5)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	invoices, err := svc.ListInvoices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(invoices) != 20 {
		t.Errorf("invoices = %d, want 20", len(invoices))
	}

	payments, err := svc.ListPayments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != 4 {
		t.Errorf("payments = %d, want 4", len(payments))
	}

	vendors, err := svc.ListVendors(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(vendors) != 1 {
		t.Fatalf("vendors = %d, want 1", len(vendors))
	}
	if !vendors[0].HasTaxID("TAX-111") {
		t.Errorf("paid items should feed the baseline: %+v", vendors[0])
	}
}

func TestBulkIngestAccumulatesErrors(t *testing.T) {
	svc := newTestService(nil)
	ingestor := NewBulkIngestor(svc, 2)

	items := datasetItems(4, 0)
	items[1].Invoice.VendorName = ""
	items[3].Invoice.InvoiceDate = ""

	err := ingestor.Ingest(context.Background(), items)
	if err == nil {
		t.Fatal("expected an accumulated error")
	}

	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected *TaskError, got %T", err)
	}
	if len(taskErr.Errors) != 2 {
		t.Errorf("errors = %d, want 2: %v", len(taskErr.Errors), taskErr.Errors)
	}

	invoices, listErr := svc.ListInvoices(context.Background())
	if listErr != nil {
		t.Fatal(listErr)
	}
	if len(invoices) != 2 {
		t.Errorf("invoices = %d, want 2", len(invoices))
	}
}

func TestBulkIngestCancellation(t *testing.T) {
	svc := newTestService(nil)
	ingestor := NewBulkIngestor(svc, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ingestor.Ingest(ctx, datasetItems(64, 0))
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		var taskErr *TaskError
		if !errors.As(err, &taskErr) {
			t.Fatalf("unexpected error shape: %v", err)
		}
	}
}
