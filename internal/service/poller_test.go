package service

import (
	"context"
	"testing"
	"time"

	"github.com/keyvend/keyvend/internal/model"
	"github.com/keyvend/keyvend/internal/testutil"
)

func TestPoller_ReconcilesPaidReferences(t *testing.T) {
	t.Parallel()

	checker := &testutil.FakePaymentChecker{}
	svc, st := newTestPaymentService(t, &testutil.FakeOracle{}, nil, checker, nil)
	ctx := context.Background()

	paid, err := svc.CreatePayment(ctx, "555", "alice")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	unpaid, err := svc.CreatePayment(ctx, "777", "bob")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	checker.MarkPaid(paid.Reference)

	p := NewPoller(svc, DefaultPollInterval, testutil.NewLogger())
	p.processOnce(ctx)

	err = st.View(ctx, func(snap *model.Snapshot) error {
		if _, ok := snap.Pending[paid.Reference]; ok {
			t.Error("paid reference still pending after sweep")
		}
		if _, ok := snap.Pending[unpaid.Reference]; !ok {
			t.Error("unpaid reference dropped by sweep")
		}
		record := snap.Users["555"]
		if record.ManualLimit == nil || *record.ManualLimit != 2 {
			t.Errorf("manual limit = %v, want 2", record.ManualLimit)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestPoller_CheckerErrorKeepsPending(t *testing.T) {
	t.Parallel()

	checker := &testutil.FakePaymentChecker{}
	svc, st := newTestPaymentService(t, &testutil.FakeOracle{}, nil, checker, nil)
	ctx := context.Background()

	intent, err := svc.CreatePayment(ctx, "555", "alice")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	checker.Err = contextErr{}

	p := NewPoller(svc, DefaultPollInterval, testutil.NewLogger())
	p.processOnce(ctx)

	err = st.View(ctx, func(snap *model.Snapshot) error {
		if _, ok := snap.Pending[intent.Reference]; !ok {
			t.Error("pending entry removed after checker failure")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

type contextErr struct{}

func (contextErr) Error() string { return "checker unavailable" }

func TestPoller_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	svc, _ := newTestPaymentService(t, &testutil.FakeOracle{}, nil, &testutil.FakePaymentChecker{}, nil)
	p := NewPoller(svc, 10*time.Millisecond, testutil.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}
}
