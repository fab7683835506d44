package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGetPayment_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/payments/b-123" {
			t.Fatalf("path = %s, want /api/payments/b-123", r.URL.Path)
		}

		amount := decimal.RequireFromString("8025")
		resp := Payment{
			BookingID: "b-123",
			Status:    StatusPaid,
			Amount:    &amount,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.GetPayment(ctx, "b-123")
	if err != nil {
		t.Fatalf("GetPayment error: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", code, http.StatusOK)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
	if res == nil || res.BookingID != "b-123" || res.Status != StatusPaid {
		t.Fatalf("unexpected response: %+v", res)
	}
	if res.Amount == nil || !res.Amount.Equal(decimal.NewFromInt(8025)) {
		t.Fatalf("unexpected amount: %v", res.Amount)
	}
}

func TestGetPayment_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.GetPayment(ctx, "b-123")
	if err != nil {
		t.Fatalf("GetPayment error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil response for 429, got %+v", res)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retry < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", retry)
	}
}

func TestGetPayment_NoContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, _, err := client.GetPayment(ctx, "b-123")
	if err != nil {
		t.Fatalf("GetPayment error: %v", err)
	}
	if res != nil || code != http.StatusNoContent {
		t.Fatalf("unexpected result for 204: %+v, %d", res, code)
	}
}

func TestGetPayment_NotConfigured(t *testing.T) {
	var client *Client
	if _, _, _, err := client.GetPayment(context.Background(), "b-123"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-1", 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		if got := retryAfter(tt.in); got != tt.want {
			t.Fatalf("retryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
