package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncKeyIssued is a no-op.
func (n *NoopRecorder) IncKeyIssued() {}

// IncLimitExceeded is a no-op.
func (n *NoopRecorder) IncLimitExceeded() {}

// ObserveIssueDuration is a no-op.
func (n *NoopRecorder) ObserveIssueDuration(duration time.Duration) {}

// IncMembershipCheck is a no-op.
func (n *NoopRecorder) IncMembershipCheck(status string) {}

// IncMembershipCacheHit is a no-op.
func (n *NoopRecorder) IncMembershipCacheHit() {}

// IncMembershipCacheMiss is a no-op.
func (n *NoopRecorder) IncMembershipCacheMiss() {}

// IncPaymentCreated is a no-op.
func (n *NoopRecorder) IncPaymentCreated() {}

// IncPaymentReconciled is a no-op.
func (n *NoopRecorder) IncPaymentReconciled() {}

// SetPendingPayments is a no-op.
func (n *NoopRecorder) SetPendingPayments(depth int64) {}
