package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invoiceguard/backend/internal/domain"
	"github.com/invoiceguard/backend/internal/graph"
)

// GraphStore persists invoices, payments, and vendor profiles as graph
// nodes. Invoices link to their vendor via BILLED_BY and payments to their
// invoice via CONFIRMS, which keeps the paid history walkable from either
// side.
type GraphStore struct {
	client graph.Client
}

// NewGraphStore wraps a graph client in the Store contract.
func NewGraphStore(client graph.Client) *GraphStore {
	return &GraphStore{client: client}
}

const appendInvoiceCypher = `
MERGE (v:Vendor {nameNorm: $vendorNameNorm})
ON CREATE SET v.displayName = $vendorDisplayName,
              v.createdAt = $createdAt,
              v.updatedAt = $createdAt
CREATE (i:Invoice)
SET i = $props
CREATE (i)-[:BILLED_BY]->(v)
RETURN i.id AS id
`

const invoiceReturnClause = `
RETURN i.id AS id,
       i.createdAt AS createdAt,
       i.vendorName AS vendorName,
       i.invoiceNumber AS invoiceNumber,
       i.invoiceDate AS invoiceDate,
       i.amountTotal AS amountTotal,
       i.currency AS currency,
       i.taxId AS taxId,
       i.iban AS iban,
       i.rawText AS rawText,
       i.sourceFile AS sourceFile,
       i.vendorNameNorm AS vendorNameNorm,
       i.invoiceNumberNorm AS invoiceNumberNorm,
       i.invoiceDateNorm AS invoiceDateNorm,
       i.fingerprint AS fingerprint,
       i.ruleScore AS ruleScore,
       i.mlScore AS mlScore,
       i.finalScore AS finalScore,
       i.flagsJson AS flagsJson
`

const listInvoicesCypher = `MATCH (i:Invoice)` + invoiceReturnClause + `ORDER BY i.createdAt ASC, i.id ASC`

const getInvoiceCypher = `MATCH (i:Invoice {id: $id})` + invoiceReturnClause

const paymentExistsCypher = `
MATCH (p:Payment {invoiceId: $invoiceId})
RETURN count(p) AS total
`

const appendPaymentCypher = `
MATCH (i:Invoice {id: $invoiceId})
CREATE (p:Payment)
SET p = $props
CREATE (p)-[:CONFIRMS]->(i)
RETURN p.id AS id
`

const listPaymentsCypher = `
MATCH (p:Payment)
RETURN p.id AS id,
       p.invoiceId AS invoiceId,
       p.datePaid AS datePaid,
       p.vendorNameNorm AS vendorNameNorm,
       p.invoiceNumberNorm AS invoiceNumberNorm,
       p.amountTotal AS amountTotal,
       p.taxId AS taxId,
       p.iban AS iban
ORDER BY p.datePaid ASC, p.id ASC
`

const vendorReturnClause = `
RETURN v.nameNorm AS nameNorm,
       v.displayName AS displayName,
       v.knownTaxIds AS knownTaxIds,
       v.knownIbans AS knownIbans,
       v.typicalMin AS typicalMin,
       v.typicalMax AS typicalMax,
       v.createdAt AS createdAt,
       v.updatedAt AS updatedAt
`

const getVendorCypher = `MATCH (v:Vendor {nameNorm: $nameNorm})` + vendorReturnClause

const listVendorsCypher = `MATCH (v:Vendor)` + vendorReturnClause + `ORDER BY v.createdAt ASC, v.nameNorm ASC`

const saveVendorCypher = `
MERGE (v:Vendor {nameNorm: $nameNorm})
SET v += $props
RETURN v.nameNorm AS nameNorm
`

func (s *GraphStore) AppendInvoice(ctx context.Context, inv domain.Invoice) error {
	flagsJSON, err := json.Marshal(inv.Flags)
	if err != nil {
		return fmt.Errorf("encode flags for invoice %s: %w", inv.ID, err)
	}

	params := map[string]any{
		"vendorNameNorm":    inv.VendorNameNorm,
		"vendorDisplayName": inv.VendorName,
		"createdAt":         formatTime(inv.CreatedAt),
		"props": map[string]any{
			"id":                inv.ID,
			"createdAt":         formatTime(inv.CreatedAt),
			"vendorName":        inv.VendorName,
			"invoiceNumber":     inv.InvoiceNumber,
			"invoiceDate":       inv.InvoiceDate,
			"amountTotal":       inv.AmountTotal,
			"currency":          inv.Currency,
			"taxId":             inv.TaxID,
			"iban":              inv.IBAN,
			"rawText":           inv.RawText,
			"sourceFile":        inv.SourceFile,
			"vendorNameNorm":    inv.VendorNameNorm,
			"invoiceNumberNorm": inv.InvoiceNumberNorm,
			"invoiceDateNorm":   inv.InvoiceDateNorm,
			"fingerprint":       inv.Fingerprint,
			"ruleScore":         inv.RuleScore,
			"mlScore":           inv.MLScore,
			"finalScore":        inv.FinalScore,
			"flagsJson":         string(flagsJSON),
		},
	}

	if _, err := s.client.ExecuteWrite(ctx, appendInvoiceCypher, params); err != nil {
		return fmt.Errorf("append invoice %s: %w", inv.ID, err)
	}
	return nil
}

func (s *GraphStore) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	res, err := s.client.ExecuteRead(ctx, listInvoicesCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	invoices := make([]domain.Invoice, 0, len(res.Records))
	for _, record := range res.Records {
		invoices = append(invoices, invoiceFromRecord(record))
	}
	return invoices, nil
}

func (s *GraphStore) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	res, err := s.client.ExecuteRead(ctx, getInvoiceCypher, map[string]any{"id": id})
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("get invoice %s: %w", id, err)
	}
	if len(res.Records) == 0 {
		return domain.Invoice{}, ErrNotFound
	}
	return invoiceFromRecord(res.Records[0]), nil
}

func (s *GraphStore) AppendPayment(ctx context.Context, p domain.Payment) error {
	existing, err := s.client.ExecuteRead(ctx, paymentExistsCypher, map[string]any{"invoiceId": p.InvoiceID})
	if err != nil {
		return fmt.Errorf("check payment for invoice %s: %w", p.InvoiceID, err)
	}
	if len(existing.Records) > 0 && toInt(existing.Records[0]["total"]) > 0 {
		return ErrPaymentExists
	}

	params := map[string]any{
		"invoiceId": p.InvoiceID,
		"props": map[string]any{
			"id":                p.ID,
			"invoiceId":         p.InvoiceID,
			"datePaid":          formatTime(p.DatePaid),
			"vendorNameNorm":    p.VendorNameNorm,
			"invoiceNumberNorm": p.InvoiceNumberNorm,
			"amountTotal":       p.AmountTotal,
			"taxId":             p.TaxID,
			"iban":              p.IBAN,
		},
	}

	res, err := s.client.ExecuteWrite(ctx, appendPaymentCypher, params)
	if err != nil {
		return fmt.Errorf("append payment for invoice %s: %w", p.InvoiceID, err)
	}
	if len(res.Records) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GraphStore) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	res, err := s.client.ExecuteRead(ctx, listPaymentsCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	payments := make([]domain.Payment, 0, len(res.Records))
	for _, record := range res.Records {
		payments = append(payments, domain.Payment{
			ID:                toString(record["id"]),
			InvoiceID:         toString(record["invoiceId"]),
			DatePaid:          toTime(record["datePaid"]),
			VendorNameNorm:    toString(record["vendorNameNorm"]),
			InvoiceNumberNorm: toString(record["invoiceNumberNorm"]),
			AmountTotal:       toFloat64(record["amountTotal"]),
			TaxID:             toString(record["taxId"]),
			IBAN:              toString(record["iban"]),
		})
	}
	return payments, nil
}

func (s *GraphStore) GetVendorProfile(ctx context.Context, nameNorm string) (domain.VendorProfile, error) {
	res, err := s.client.ExecuteRead(ctx, getVendorCypher, map[string]any{"nameNorm": nameNorm})
	if err != nil {
		return domain.VendorProfile{}, fmt.Errorf("get vendor %s: %w", nameNorm, err)
	}
	if len(res.Records) == 0 {
		return domain.VendorProfile{}, ErrNotFound
	}
	return vendorFromRecord(res.Records[0]), nil
}

func (s *GraphStore) SaveVendorProfile(ctx context.Context, profile domain.VendorProfile) error {
	props := map[string]any{
		"displayName": profile.DisplayName,
		"knownTaxIds": profile.KnownTaxIDs,
		"knownIbans":  profile.KnownIBANs,
		"createdAt":   formatTime(profile.CreatedAt),
		"updatedAt":   formatTime(profile.UpdatedAt),
	}
	if profile.TypicalMin != nil {
		props["typicalMin"] = *profile.TypicalMin
	}
	if profile.TypicalMax != nil {
		props["typicalMax"] = *profile.TypicalMax
	}

	params := map[string]any{
		"nameNorm": profile.NameNorm,
		"props":    props,
	}
	if _, err := s.client.ExecuteWrite(ctx, saveVendorCypher, params); err != nil {
		return fmt.Errorf("save vendor %s: %w", profile.NameNorm, err)
	}
	return nil
}

func (s *GraphStore) ListVendorProfiles(ctx context.Context) ([]domain.VendorProfile, error) {
	res, err := s.client.ExecuteRead(ctx, listVendorsCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}

	profiles := make([]domain.VendorProfile, 0, len(res.Records))
	for _, record := range res.Records {
		profiles = append(profiles, vendorFromRecord(record))
	}
	return profiles, nil
}

func (s *GraphStore) VerifyConnectivity(ctx context.Context) error {
	return s.client.VerifyConnectivity(ctx)
}

func (s *GraphStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func invoiceFromRecord(record graph.Record) domain.Invoice {
	inv := domain.Invoice{
		ID:                toString(record["id"]),
		CreatedAt:         toTime(record["createdAt"]),
		VendorName:        toString(record["vendorName"]),
		InvoiceNumber:     toString(record["invoiceNumber"]),
		InvoiceDate:       toString(record["invoiceDate"]),
		AmountTotal:       toFloat64(record["amountTotal"]),
		Currency:          toString(record["currency"]),
		TaxID:             toString(record["taxId"]),
		IBAN:              toString(record["iban"]),
		RawText:           toString(record["rawText"]),
		SourceFile:        toString(record["sourceFile"]),
		VendorNameNorm:    toString(record["vendorNameNorm"]),
		InvoiceNumberNorm: toString(record["invoiceNumberNorm"]),
		InvoiceDateNorm:   toString(record["invoiceDateNorm"]),
		Fingerprint:       toString(record["fingerprint"]),
		RuleScore:         toInt(record["ruleScore"]),
		MLScore:           toInt(record["mlScore"]),
		FinalScore:        toInt(record["finalScore"]),
	}
	if raw := toString(record["flagsJson"]); raw != "" {
		// Flags were serialized by us; a decode failure means the node was
		// tampered with, and an empty flag list is the safer read.
		_ = json.Unmarshal([]byte(raw), &inv.Flags)
	}
	return inv
}

func vendorFromRecord(record graph.Record) domain.VendorProfile {
	profile := domain.VendorProfile{
		NameNorm:    toString(record["nameNorm"]),
		DisplayName: toString(record["displayName"]),
		KnownTaxIDs: toStringSlice(record["knownTaxIds"]),
		KnownIBANs:  toStringSlice(record["knownIbans"]),
		CreatedAt:   toTime(record["createdAt"]),
		UpdatedAt:   toTime(record["updatedAt"]),
	}
	if v, ok := record["typicalMin"]; ok && v != nil {
		f := toFloat64(v)
		profile.TypicalMin = &f
	}
	if v, ok := record["typicalMax"]; ok && v != nil {
		f := toFloat64(v)
		profile.TypicalMax = &f
	}
	return profile
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toFloat64(v any) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int64:
		return float64(value)
	case int:
		return float64(value)
	}
	return 0
}

func toInt(v any) int {
	switch value := v.(type) {
	case int64:
		return int(value)
	case int:
		return value
	case float64:
		return int(value)
	}
	return 0
}

func toTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toStringSlice(v any) []string {
	switch value := v.(type) {
	case []string:
		return append([]string(nil), value...)
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
