// Package mlscore talks to the optional external ML scoring service. Its
// failures are typed so the ingestion workflow can apply the zero-score
// fallback deliberately instead of swallowing errors.
package mlscore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/invoiceguard/backend/internal/domain"
)

var (
	// ErrTimeout indicates the scorer did not answer within the budget.
	ErrTimeout = errors.New("ml scorer timed out")
	// ErrTransport indicates the scorer was unreachable or answered with a
	// non-OK status.
	ErrTransport = errors.New("ml scorer transport failure")
	// ErrMalformed indicates the scorer answered with an undecodable or
	// out-of-range payload.
	ErrMalformed = errors.New("ml scorer returned a malformed response")
)

// DefaultTimeout is the caller-imposed budget for one scoring call.
const DefaultTimeout = 3 * time.Second

// Assessment is the scorer's verdict for one invoice.
type Assessment struct {
	Score int
	Flags []domain.Flag
}

// Fallback is the explicit zero default substituted whenever the scorer
// fails or is not configured. ML failure never blocks rule-based scoring.
func Fallback() Assessment {
	return Assessment{Score: 0, Flags: []domain.Flag{}}
}

// Client is a reusable HTTP client for the scoring service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient builds a Client. A zero timeout falls back to DefaultTimeout.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type scoreRequest struct {
	VendorName    string  `json:"vendor_name"`
	InvoiceNumber string  `json:"invoice_number"`
	InvoiceDate   string  `json:"invoice_date"`
	AmountTotal   float64 `json:"amount_total"`
	RawText       string  `json:"raw_text,omitempty"`
}

type scoreResponse struct {
	MLScore float64       `json:"ml_score"`
	MLFlags []domain.Flag `json:"ml_flags"`
}

// Score submits the raw invoice fields and returns the scorer's assessment.
// Errors are always one of the typed sentinels (wrapped with context).
func (c *Client) Score(ctx context.Context, inv domain.Invoice) (Assessment, error) {
	body, err := json.Marshal(scoreRequest{
		VendorName:    inv.VendorName,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   inv.InvoiceDate,
		AmountTotal:   inv.AmountTotal,
		RawText:       inv.RawText,
	})
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: encode request: %v", ErrMalformed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Assessment{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Assessment{}, fmt.Errorf("%w: unexpected status %s", ErrTransport, resp.Status)
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Assessment{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if math.IsNaN(decoded.MLScore) || decoded.MLScore < 0 || decoded.MLScore > 100 {
		return Assessment{}, fmt.Errorf("%w: score %v outside [0,100]", ErrMalformed, decoded.MLScore)
	}

	flags := decoded.MLFlags
	if flags == nil {
		flags = []domain.Flag{}
	}
	return Assessment{
		Score: int(math.Round(decoded.MLScore)),
		Flags: flags,
	}, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
