package mlscore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/invoiceguard/backend/internal/domain"
)

func TestScoreSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("authorization = %q", got)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["vendor_name"] != "Acme" {
			t.Errorf("request = %+v", req)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ml_score": 42.6,
			"ml_flags": []map[string]any{
				{"type": "EMBEDDING_NEAR_DUPLICATE", "severity": "MEDIUM", "explanation": "close neighbor"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", time.Second)
	got, err := c.Score(context.Background(), domain.Invoice{VendorName: "Acme", InvoiceNumber: "INV-1"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got.Score != 43 {
		t.Errorf("score = %d, want 43", got.Score)
	}
	if len(got.Flags) != 1 || got.Flags[0].Severity != domain.SeverityMedium {
		t.Errorf("flags = %+v", got.Flags)
	}
}

func TestScoreBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Score(context.Background(), domain.Invoice{})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestScoreMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Score(context.Background(), domain.Invoice{})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestScoreOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ml_score": 250})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Score(context.Background(), domain.Invoice{})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestScoreTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 20*time.Millisecond).Score(context.Background(), domain.Invoice{})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestFallback(t *testing.T) {
	fb := Fallback()
	if fb.Score != 0 || fb.Flags == nil || len(fb.Flags) != 0 {
		t.Errorf("fallback = %+v", fb)
	}
}
