package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyvend/keyvend/internal/entitlement"
	"github.com/keyvend/keyvend/internal/metrics"
	"github.com/keyvend/keyvend/internal/model"
	"github.com/keyvend/keyvend/internal/store"
)

// DefaultPaymentAmount is the price of one extra key slot, in TON.
const DefaultPaymentAmount = 0.5

// PaymentChecker answers whether a transfer matching the reference has
// landed on the receiving wallet.
type PaymentChecker interface {
	IsPaid(ctx context.Context, reference string, payment model.PendingPayment) (bool, error)
}

// TargetRenderer renders the payment destination the user should pay,
// e.g. a deep link into their wallet app.
type TargetRenderer interface {
	PaymentURI(amount float64, reference string) string
}

// PaymentConfig bundles the collaborators of a PaymentService.
type PaymentConfig struct {
	Checker PaymentChecker
	Target  TargetRenderer
	// Amount is the price per slot in TON; zero means DefaultPaymentAmount.
	Amount float64
}

// PaymentService records payment intents and converts confirmed
// payments into permanent limit increases.
type PaymentService struct {
	store    *store.Store
	calc     *entitlement.Calculator
	notifier Notifier
	checker  PaymentChecker
	target   TargetRenderer
	amount   float64
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(st *store.Store, calc *entitlement.Calculator, notifier Notifier, cfg PaymentConfig, logger *slog.Logger, recorder metrics.Recorder) *PaymentService {
	if cfg.Amount <= 0 {
		cfg.Amount = DefaultPaymentAmount
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &PaymentService{
		store:    st,
		calc:     calc,
		notifier: notifier,
		checker:  cfg.Checker,
		target:   cfg.Target,
		amount:   cfg.Amount,
		logger:   logger.With("component", "service.payments"),
		metrics:  recorder,
	}
}

// PaymentIntent describes a freshly created pending payment.
type PaymentIntent struct {
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"`
	URI       string  `json:"uri,omitempty"`
}

// CreatePayment registers a payment intent for the user. The reference
// encodes the user id and creation time, with a numeric suffix added
// on the rare collision within the same second.
func (s *PaymentService) CreatePayment(ctx context.Context, userID, username string) (*PaymentIntent, error) {
	var intent *PaymentIntent
	err := s.store.Update(ctx, func(snap *model.Snapshot) error {
		snap.EnsureUser(userID, username)

		now := time.Now().UTC()
		reference := uniqueReference(snap, userID, now)
		snap.Pending[reference] = &model.PendingPayment{
			UserID:    userID,
			Amount:    s.amount,
			CreatedAt: now,
			Status:    model.PaymentStatusWaiting,
		}

		intent = &PaymentIntent{Reference: reference, Amount: s.amount}
		s.metrics.SetPendingPayments(int64(len(snap.Pending)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.target != nil {
		intent.URI = s.target.PaymentURI(intent.Amount, intent.Reference)
	}
	s.metrics.IncPaymentCreated()
	s.logger.Info("payment created", "user_id", userID, "reference", intent.Reference, "amount", intent.Amount)
	return intent, nil
}

func uniqueReference(snap *model.Snapshot, userID string, now time.Time) string {
	reference := fmt.Sprintf("pay_%s_%d", userID, now.Unix())
	if _, exists := snap.Pending[reference]; !exists {
		return reference
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", reference, i)
		if _, exists := snap.Pending[candidate]; !exists {
			return candidate
		}
	}
}

// Reconciled describes the outcome of a successful reconciliation.
type Reconciled struct {
	UserID   string `json:"user_id"`
	NewLimit int    `json:"new_limit"`
}

// Reconcile converts a confirmed payment into a +1 manual limit and
// removes the pending entry. The new limit is frozen from the limit in
// effect at reconciliation time, so later membership changes no longer
// move it. Reconciling an already-removed reference returns
// ErrPaymentNotFound, which makes retries idempotent.
func (s *PaymentService) Reconcile(ctx context.Context, reference string) (*Reconciled, error) {
	// Find out whose payment this is and whether the baseline needs a
	// membership lookup, before taking the store lock.
	var (
		userID    string
		hasManual bool
	)
	err := s.store.View(ctx, func(snap *model.Snapshot) error {
		pending, ok := snap.Pending[reference]
		if !ok {
			return ErrPaymentNotFound
		}
		userID = pending.UserID
		if record, ok := snap.Users[pending.UserID]; ok {
			hasManual = record.HasManualLimit()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	bonus := 0
	if !hasManual {
		bonus = s.calc.MembershipBonus(ctx, userID)
	}

	var result *Reconciled
	err = s.store.Update(ctx, func(snap *model.Snapshot) error {
		// Re-check under the lock: a concurrent reconciliation may have
		// consumed the reference already.
		pending, ok := snap.Pending[reference]
		if !ok {
			return ErrPaymentNotFound
		}

		record := snap.EnsureUser(pending.UserID, "")
		baseline := entitlement.LimitFromBonus(record, bonus)
		newLimit := baseline + 1
		record.ManualLimit = &newLimit

		delete(snap.Pending, reference)
		s.metrics.SetPendingPayments(int64(len(snap.Pending)))

		result = &Reconciled{UserID: pending.UserID, NewLimit: newLimit}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPaymentReconciled()
	s.logger.Info("payment reconciled", "user_id", result.UserID, "reference", reference, "new_limit", result.NewLimit)
	notifyBestEffort(ctx, s.notifier, s.logger, result.UserID,
		fmt.Sprintf("Payment received! Your key limit is now %d.", result.NewLimit))
	return result, nil
}

// CheckAndReconcile verifies a reference against the payment checker
// and reconciles it when paid. The bool reports whether payment was
// confirmed.
func (s *PaymentService) CheckAndReconcile(ctx context.Context, reference string) (*Reconciled, bool, error) {
	var payment model.PendingPayment
	err := s.store.View(ctx, func(snap *model.Snapshot) error {
		pending, ok := snap.Pending[reference]
		if !ok {
			return ErrPaymentNotFound
		}
		payment = *pending
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	paid, err := s.checker.IsPaid(ctx, reference, payment)
	if err != nil {
		return nil, false, fmt.Errorf("checking payment %s: %w", reference, err)
	}
	if !paid {
		return nil, false, nil
	}

	result, err := s.Reconcile(ctx, reference)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// PendingReferences returns a copy of the outstanding payment intents.
func (s *PaymentService) PendingReferences(ctx context.Context) (map[string]model.PendingPayment, error) {
	out := make(map[string]model.PendingPayment)
	err := s.store.View(ctx, func(snap *model.Snapshot) error {
		for reference, pending := range snap.Pending {
			out[reference] = *pending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
