// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Key issuance metrics
	IncKeyIssued()
	IncLimitExceeded()
	ObserveIssueDuration(duration time.Duration)

	// Membership oracle metrics
	IncMembershipCheck(status string) // status: "member", "non_member", "error"
	IncMembershipCacheHit()
	IncMembershipCacheMiss()

	// Payment ledger metrics
	IncPaymentCreated()
	IncPaymentReconciled()
	SetPendingPayments(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
