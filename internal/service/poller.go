package service

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultPollInterval is how often the poller sweeps pending payments.
const DefaultPollInterval = time.Minute

// Poller periodically sweeps pending payments and reconciles the ones
// that have been paid.
type Poller struct {
	payments *PaymentService
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller creates a Poller.
func NewPoller(payments *PaymentService, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		payments: payments,
		interval: interval,
		logger:   logger.With("component", "poller"),
	}
}

// Run sweeps on a fixed interval until the context is canceled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("payment poller started", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("payment poller stopped")
			return
		case <-ticker.C:
			p.processOnce(ctx)
		}
	}
}

// processOnce checks every pending reference. A reference that vanished
// since the sweep started was reconciled elsewhere and is skipped; any
// other failure is logged and the sweep moves on.
func (p *Poller) processOnce(ctx context.Context) {
	pending, err := p.payments.PendingReferences(ctx)
	if err != nil {
		p.logger.Warn("failed to list pending payments", "error", err)
		return
	}

	for reference := range pending {
		result, paid, err := p.payments.CheckAndReconcile(ctx, reference)
		if err != nil {
			if errors.Is(err, ErrPaymentNotFound) {
				continue
			}
			p.logger.Warn("payment check failed", "reference", reference, "error", err)
			continue
		}
		if paid {
			p.logger.Info("payment confirmed by poller",
				"reference", reference,
				"user_id", result.UserID,
				"new_limit", result.NewLimit,
			)
		}
	}
}
