package ton

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keyvend/keyvend/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWallet_PaymentURI(t *testing.T) {
	t.Parallel()

	w := NewWallet("UQAbc123")
	got := w.PaymentURI(0.5, "pay_555_1700000000")
	want := "ton://transfer/UQAbc123?amount=500000000&text=pay_555_1700000000"
	if got != want {
		t.Errorf("PaymentURI = %q, want %q", got, want)
	}
}

func TestToNanoton(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount float64
		want   int64
	}{
		{0.5, 500_000_000},
		{1, 1_000_000_000},
		{0.000000001, 1},
		{2.25, 2_250_000_000},
	}
	for _, tt := range tests {
		if got := ToNanoton(tt.amount); got != tt.want {
			t.Errorf("ToNanoton(%v) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestIsPaid(t *testing.T) {
	t.Parallel()

	const body = `{"transactions":[
		{"in_msg":{"value":500000000,"decoded_body":{"text":"pay_555_1700000000"}}},
		{"in_msg":{"value":100000000,"decoded_body":{"text":"pay_777_1700000001"}}},
		{"in_msg":{"value":900000000}}
	]}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/blockchain/accounts/UQAbc123/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)

	client := NewClient("UQAbc123", discardLogger(), WithBaseURL(server.URL), WithAPIKey("secret"))
	payment := model.PendingPayment{UserID: "555", Amount: 0.5}
	ctx := context.Background()

	paid, err := client.IsPaid(ctx, "pay_555_1700000000", payment)
	if err != nil {
		t.Fatalf("IsPaid: %v", err)
	}
	if !paid {
		t.Error("exact transfer not recognized as paid")
	}

	// Matching comment but short amount must not count.
	paid, err = client.IsPaid(ctx, "pay_777_1700000001", model.PendingPayment{UserID: "777", Amount: 0.5})
	if err != nil {
		t.Fatalf("IsPaid underpaid: %v", err)
	}
	if paid {
		t.Error("underpaid transfer counted as paid")
	}

	// Unknown reference.
	paid, err = client.IsPaid(ctx, "pay_999_1700000002", payment)
	if err != nil {
		t.Fatalf("IsPaid unknown: %v", err)
	}
	if paid {
		t.Error("unknown reference counted as paid")
	}
}

func TestIsPaid_HTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client := NewClient("UQAbc123", discardLogger(), WithBaseURL(server.URL))
	if _, err := client.IsPaid(context.Background(), "pay_555_1", model.PendingPayment{Amount: 0.5}); err == nil {
		t.Fatal("expected error on HTTP 429")
	}
}
