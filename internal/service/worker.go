package service

import (
	"context"
	"sync"
)

// TaskError accumulates errors produced during bulk ingestion.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// BulkIngestor submits invoice datasets through the service using a worker
// pool. Each worker submits one invoice and, when the dataset marks it as
// paid, records the payment immediately so vendor baselines accrete during
// ingestion.
type BulkIngestor struct {
	service *InvoiceService
	workers int
}

// NewBulkIngestor creates a BulkIngestor with the provided concurrency.
func NewBulkIngestor(service *InvoiceService, workers int) *BulkIngestor {
	if workers <= 0 {
		workers = 1
	}
	return &BulkIngestor{
		service: service,
		workers: workers,
	}
}

// Ingest processes the dataset and returns an accumulated *TaskError when
// any item failed. Context cancellation stops scheduling new items.
func (b *BulkIngestor) Ingest(ctx context.Context, items []IngestItem) error {
	jobs := make(chan IngestItem)

	var (
		mu       sync.Mutex
		taskErrs TaskError
		wg       sync.WaitGroup
	)

	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		taskErrs.append(err)
	}

	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				inv, err := b.service.SubmitInvoice(ctx, item.Invoice)
				if err != nil {
					record(err)
					continue
				}
				if item.MarkPaid {
					if _, _, err := b.service.MarkPaid(ctx, inv.ID, nil); err != nil {
						record(err)
					}
				}
			}
		}()
	}

loop:
	for _, item := range items {
		select {
		case <-ctx.Done():
			record(ctx.Err())
			break loop
		case jobs <- item:
		}
	}
	close(jobs)
	wg.Wait()

	return taskErrs.asError()
}
