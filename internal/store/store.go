// Package store holds the invoice ledger, the payment ledger, and the vendor
// profile store behind one contract, so the scoring service can run against
// process memory (the default) or a graph database without changing logic.
package store

import (
	"context"
	"errors"

	"github.com/invoiceguard/backend/internal/domain"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrPaymentExists indicates the invoice already has a confirmed payment.
	ErrPaymentExists = errors.New("invoice already marked paid")
)

// Store is the persistence contract required by the invoice service. Invoice
// and payment records are append-only; vendor profiles are upserted.
type Store interface {
	AppendInvoice(ctx context.Context, inv domain.Invoice) error
	ListInvoices(ctx context.Context) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (domain.Invoice, error)

	// AppendPayment returns ErrPaymentExists when the invoice already has a
	// payment and ErrNotFound when the invoice is unknown.
	AppendPayment(ctx context.Context, p domain.Payment) error
	ListPayments(ctx context.Context) ([]domain.Payment, error)

	// GetVendorProfile returns ErrNotFound when no profile exists yet.
	GetVendorProfile(ctx context.Context, nameNorm string) (domain.VendorProfile, error)
	SaveVendorProfile(ctx context.Context, profile domain.VendorProfile) error
	ListVendorProfiles(ctx context.Context) ([]domain.VendorProfile, error)

	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}
