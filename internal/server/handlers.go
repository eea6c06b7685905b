package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/invoiceguard/backend/internal/domain"
	"github.com/invoiceguard/backend/internal/service"
	"github.com/invoiceguard/backend/internal/store"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger   *slog.Logger
	service  *service.InvoiceService
	validate *validator.Validate
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, svc *service.InvoiceService) *APIHandlers {
	return &APIHandlers{
		logger:   logger,
		service:  svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *APIHandlers) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submitInvoice(w, r)
	case http.MethodGet:
		h.listInvoices(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) handleInvoiceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/invoices/")
	id = strings.Trim(id, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invoice ID is required")
		return
	}

	inv, err := h.service.GetInvoice(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch invoice", "error", err, "invoiceId", id)
		writeError(w, http.StatusInternalServerError, "failed to fetch invoice")
		return
	}

	respondJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *APIHandlers) handlePayments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.markPaid(w, r)
	case http.MethodGet:
		h.listPayments(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) handleVendors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createVendor(w, r)
	case http.MethodGet:
		h.listVendors(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) submitInvoice(w http.ResponseWriter, r *http.Request) {
	var payload invoiceRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	inv, err := h.service.SubmitInvoice(r.Context(), payload.toServiceInput())
	if errors.Is(err, service.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to score invoice", "error", err, "vendor", payload.VendorName)
		writeError(w, http.StatusInternalServerError, "failed to score invoice")
		return
	}

	respondJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *APIHandlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context())
	if err != nil {
		h.logger.Error("failed to list invoices", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list invoices")
		return
	}

	items := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, toInvoiceResponse(inv))
	}
	respondJSON(w, http.StatusOK, listInvoicesResponse{Items: items})
}

func (h *APIHandlers) markPaid(w http.ResponseWriter, r *http.Request) {
	var payload paymentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	var datePaid *time.Time
	if payload.DatePaid != "" {
		ts, err := time.Parse(time.RFC3339, payload.DatePaid)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid datePaid")
			return
		}
		datePaid = &ts
	}

	payment, vendor, err := h.service.MarkPaid(r.Context(), payload.InvoiceID, datePaid)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	case errors.Is(err, store.ErrPaymentExists):
		writeError(w, http.StatusConflict, "invoice is already marked paid")
		return
	case err != nil:
		h.logger.Error("failed to mark invoice paid", "error", err, "invoiceId", payload.InvoiceID)
		writeError(w, http.StatusInternalServerError, "failed to mark invoice paid")
		return
	}

	respondJSON(w, http.StatusCreated, markPaidResponse{
		Payment: toPaymentResponse(payment),
		Vendor:  toVendorResponse(vendor),
	})
}

func (h *APIHandlers) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context())
	if err != nil {
		h.logger.Error("failed to list payments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list payments")
		return
	}

	items := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		items = append(items, toPaymentResponse(p))
	}
	respondJSON(w, http.StatusOK, listPaymentsResponse{Items: items})
}

func (h *APIHandlers) createVendor(w http.ResponseWriter, r *http.Request) {
	var payload vendorRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	vendor, err := h.service.CreateVendor(r.Context(), payload.Name)
	if errors.Is(err, service.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "vendor name is required")
		return
	}
	if err != nil {
		h.logger.Error("failed to create vendor", "error", err, "name", payload.Name)
		writeError(w, http.StatusInternalServerError, "failed to create vendor")
		return
	}

	respondJSON(w, http.StatusCreated, toVendorResponse(vendor))
}

func (h *APIHandlers) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.service.ListVendors(r.Context())
	if err != nil {
		h.logger.Error("failed to list vendors", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list vendors")
		return
	}

	items := make([]vendorResponse, 0, len(vendors))
	for _, v := range vendors {
		items = append(items, toVendorResponse(v))
	}
	respondJSON(w, http.StatusOK, listVendorsResponse{Items: items})
}

// --- Request & Response DTOs ---

type invoiceRequest struct {
	VendorName    string  `json:"vendorName" validate:"required"`
	InvoiceNumber string  `json:"invoiceNumber" validate:"required"`
	InvoiceDate   string  `json:"invoiceDate" validate:"required"`
	AmountTotal   float64 `json:"amountTotal"`
	Currency      string  `json:"currency" validate:"omitempty,len=3"`
	TaxID         string  `json:"taxId"`
	IBAN          string  `json:"iban"`
	RawText       string  `json:"rawText"`
	SourceFile    string  `json:"sourceFile"`
}

type paymentRequest struct {
	InvoiceID string `json:"invoiceId" validate:"required"`
	DatePaid  string `json:"datePaid"`
}

type vendorRequest struct {
	Name string `json:"name" validate:"required"`
}

type invoiceResponse struct {
	InvoiceID         string        `json:"invoiceId"`
	VendorName        string        `json:"vendorName"`
	VendorNameNorm    string        `json:"vendorNameNorm"`
	InvoiceNumber     string        `json:"invoiceNumber"`
	InvoiceNumberNorm string        `json:"invoiceNumberNorm"`
	InvoiceDate       string        `json:"invoiceDate"`
	InvoiceDateNorm   string        `json:"invoiceDateNorm"`
	AmountTotal       float64       `json:"amountTotal"`
	Currency          string        `json:"currency"`
	TaxID             string        `json:"taxId,omitempty"`
	IBAN              string        `json:"iban,omitempty"`
	SourceFile        string        `json:"sourceFile,omitempty"`
	Fingerprint       string        `json:"fingerprint"`
	RuleScore         int           `json:"ruleScore"`
	MLScore           int           `json:"mlScore"`
	FinalScore        int           `json:"finalScore"`
	Flags             []domain.Flag `json:"flags"`
	CreatedAt         string        `json:"createdAt"`
}

type listInvoicesResponse struct {
	Items []invoiceResponse `json:"items"`
}

type paymentResponse struct {
	PaymentID         string  `json:"paymentId"`
	InvoiceID         string  `json:"invoiceId"`
	DatePaid          string  `json:"datePaid"`
	VendorNameNorm    string  `json:"vendorNameNorm"`
	InvoiceNumberNorm string  `json:"invoiceNumberNorm"`
	AmountTotal       float64 `json:"amountTotal"`
	TaxID             string  `json:"taxId,omitempty"`
	IBAN              string  `json:"iban,omitempty"`
}

type listPaymentsResponse struct {
	Items []paymentResponse `json:"items"`
}

type markPaidResponse struct {
	Payment paymentResponse `json:"payment"`
	Vendor  vendorResponse  `json:"vendor"`
}

type vendorResponse struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	KnownTaxIDs []string `json:"knownTaxIds"`
	KnownIBANs  []string `json:"knownIbans"`
	TypicalMin  *float64 `json:"typicalAmountMin"`
	TypicalMax  *float64 `json:"typicalAmountMax"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

type listVendorsResponse struct {
	Items []vendorResponse `json:"items"`
}

// --- Helpers ---

func (req invoiceRequest) toServiceInput() service.InvoiceInput {
	return service.InvoiceInput{
		VendorName:    req.VendorName,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceDate:   req.InvoiceDate,
		AmountTotal:   req.AmountTotal,
		Currency:      req.Currency,
		TaxID:         req.TaxID,
		IBAN:          req.IBAN,
		RawText:       req.RawText,
		SourceFile:    req.SourceFile,
	}
}

func toInvoiceResponse(inv domain.Invoice) invoiceResponse {
	flags := inv.Flags
	if flags == nil {
		flags = []domain.Flag{}
	}
	return invoiceResponse{
		InvoiceID:         inv.ID,
		VendorName:        inv.VendorName,
		VendorNameNorm:    inv.VendorNameNorm,
		InvoiceNumber:     inv.InvoiceNumber,
		InvoiceNumberNorm: inv.InvoiceNumberNorm,
		InvoiceDate:       inv.InvoiceDate,
		InvoiceDateNorm:   inv.InvoiceDateNorm,
		AmountTotal:       inv.AmountTotal,
		Currency:          inv.Currency,
		TaxID:             inv.TaxID,
		IBAN:              inv.IBAN,
		SourceFile:        inv.SourceFile,
		Fingerprint:       inv.Fingerprint,
		RuleScore:         inv.RuleScore,
		MLScore:           inv.MLScore,
		FinalScore:        inv.FinalScore,
		Flags:             flags,
		CreatedAt:         formatTime(inv.CreatedAt),
	}
}

func toPaymentResponse(p domain.Payment) paymentResponse {
	return paymentResponse{
		PaymentID:         p.ID,
		InvoiceID:         p.InvoiceID,
		DatePaid:          formatTime(p.DatePaid),
		VendorNameNorm:    p.VendorNameNorm,
		InvoiceNumberNorm: p.InvoiceNumberNorm,
		AmountTotal:       p.AmountTotal,
		TaxID:             p.TaxID,
		IBAN:              p.IBAN,
	}
}

func toVendorResponse(v domain.VendorProfile) vendorResponse {
	taxIDs := v.KnownTaxIDs
	if taxIDs == nil {
		taxIDs = []string{}
	}
	ibans := v.KnownIBANs
	if ibans == nil {
		ibans = []string{}
	}
	return vendorResponse{
		Name:        v.NameNorm,
		DisplayName: v.DisplayName,
		KnownTaxIDs: taxIDs,
		KnownIBANs:  ibans,
		TypicalMin:  v.TypicalMin,
		TypicalMax:  v.TypicalMax,
		CreatedAt:   formatTime(v.CreatedAt),
		UpdatedAt:   formatTime(v.UpdatedAt),
	}
}

func validationMessage(err error) string {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) && len(invalid) > 0 {
		field := invalid[0]
		if field.Tag() == "required" {
			return field.Field() + " is required"
		}
		return field.Field() + " is invalid"
	}
	return err.Error()
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
