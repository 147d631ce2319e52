// Package testutil provides shared helpers and fakes for tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/keyvend/keyvend/internal/entitlement"
	"github.com/keyvend/keyvend/internal/model"
	"github.com/keyvend/keyvend/internal/store"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// NewLogger returns a logger that discards all output.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewStore returns a file-backed store rooted in a test temp directory.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	backend := store.NewFileBackend(filepath.Join(t.TempDir(), "data.json"))
	return store.New(backend, NewLogger())
}

// FakeOracle is a MembershipOracle backed by static maps.
type FakeOracle struct {
	mu sync.Mutex
	// Statuses maps community id to user id to status. Users absent
	// from the map are reported as having left.
	Statuses map[int64]map[int64]entitlement.MembershipStatus
	// Errors maps community id to a forced error.
	Errors map[int64]error
	// Calls counts oracle invocations.
	Calls int
}

// ChatMemberStatus implements entitlement.MembershipOracle.
func (f *FakeOracle) ChatMemberStatus(ctx context.Context, communityID, userID int64) (entitlement.MembershipStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++

	if err, ok := f.Errors[communityID]; ok {
		return "", err
	}
	if members, ok := f.Statuses[communityID]; ok {
		if status, ok := members[userID]; ok {
			return status, nil
		}
	}
	return entitlement.StatusLeft, nil
}

// CallCount returns the number of oracle invocations so far.
func (f *FakeOracle) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}

// Notification is one recorded best-effort message.
type Notification struct {
	UserID string
	Text   string
}

// FakeNotifier records notifications and can be forced to fail.
type FakeNotifier struct {
	mu   sync.Mutex
	Sent []Notification
	Err  error
}

// Notify implements the notification sink.
func (f *FakeNotifier) Notify(ctx context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, Notification{UserID: userID, Text: text})
	return nil
}

// Messages returns a copy of the recorded notifications.
func (f *FakeNotifier) Messages() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.Sent))
	copy(out, f.Sent)
	return out
}

// FakePaymentChecker reports configured references as paid.
type FakePaymentChecker struct {
	mu   sync.Mutex
	Paid map[string]bool
	Err  error
}

// IsPaid implements the payment checker.
func (f *FakePaymentChecker) IsPaid(ctx context.Context, reference string, payment model.PendingPayment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	return f.Paid[reference], nil
}

// MarkPaid flags a reference as paid.
func (f *FakePaymentChecker) MarkPaid(reference string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Paid == nil {
		f.Paid = make(map[string]bool)
	}
	f.Paid[reference] = true
}
