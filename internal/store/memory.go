package store

import (
	"context"
	"sync"

	"github.com/invoiceguard/backend/internal/domain"
)

// MemoryStore keeps all state in process memory. It is the reference backend
// and the one used in tests; state disappears with the process.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices []domain.Invoice
	payments []domain.Payment
	// byID indexes invoices; paidBy tracks invoice ids that already have a
	// payment; profiles is keyed by normalized vendor name and order keeps
	// profile insertion order for stable listing.
	byID     map[string]int
	paidBy   map[string]struct{}
	profiles map[string]domain.VendorProfile
	order    []string
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]int),
		paidBy:   make(map[string]struct{}),
		profiles: make(map[string]domain.VendorProfile),
	}
}

func (s *MemoryStore) AppendInvoice(_ context.Context, inv domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[inv.ID] = len(s.invoices)
	s.invoices = append(s.invoices, cloneInvoice(inv))
	return nil
}

func (s *MemoryStore) ListInvoices(_ context.Context) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Invoice, len(s.invoices))
	for i := range s.invoices {
		out[i] = cloneInvoice(s.invoices[i])
	}
	return out, nil
}

func (s *MemoryStore) GetInvoice(_ context.Context, id string) (domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return domain.Invoice{}, ErrNotFound
	}
	return cloneInvoice(s.invoices[idx]), nil
}

func (s *MemoryStore) AppendPayment(_ context.Context, p domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.InvoiceID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.paidBy[p.InvoiceID]; ok {
		return ErrPaymentExists
	}
	s.paidBy[p.InvoiceID] = struct{}{}
	s.payments = append(s.payments, p)
	return nil
}

func (s *MemoryStore) ListPayments(_ context.Context) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Payment(nil), s.payments...), nil
}

func (s *MemoryStore) GetVendorProfile(_ context.Context, nameNorm string) (domain.VendorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[nameNorm]
	if !ok {
		return domain.VendorProfile{}, ErrNotFound
	}
	return cloneProfile(profile), nil
}

func (s *MemoryStore) SaveVendorProfile(_ context.Context, profile domain.VendorProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.NameNorm]; !ok {
		s.order = append(s.order, profile.NameNorm)
	}
	s.profiles[profile.NameNorm] = cloneProfile(profile)
	return nil
}

func (s *MemoryStore) ListVendorProfiles(_ context.Context) ([]domain.VendorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.VendorProfile, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, cloneProfile(s.profiles[name]))
	}
	return out, nil
}

func (s *MemoryStore) VerifyConnectivity(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }

// cloneInvoice copies the flag slice so callers cannot mutate ledger state.
func cloneInvoice(inv domain.Invoice) domain.Invoice {
	out := inv
	out.Flags = append([]domain.Flag(nil), inv.Flags...)
	return out
}

func cloneProfile(p domain.VendorProfile) domain.VendorProfile {
	out := p
	out.KnownTaxIDs = append([]string(nil), p.KnownTaxIDs...)
	out.KnownIBANs = append([]string(nil), p.KnownIBANs...)
	if p.TypicalMin != nil {
		v := *p.TypicalMin
		out.TypicalMin = &v
	}
	if p.TypicalMax != nil {
		v := *p.TypicalMax
		out.TypicalMax = &v
	}
	return out
}
