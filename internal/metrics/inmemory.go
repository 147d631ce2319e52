package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	KeysIssued           uint64
	LimitExceeded        uint64
	IssueDurationCount   uint64
	IssueDurationTotalNs int64
	MembershipMember     uint64
	MembershipNonMember  uint64
	MembershipErrors     uint64
	MembershipCacheHits  uint64
	MembershipCacheMiss  uint64
	PaymentsCreated      uint64
	PaymentsReconciled   uint64
	PendingPayments      int64
}

// InMemoryRecorder stores metrics in memory, for the /metrics endpoint
// and for tests.
type InMemoryRecorder struct {
	keysIssued           uint64
	limitExceeded        uint64
	issueDurationCount   uint64
	issueDurationTotalNs int64
	membershipMember     uint64
	membershipNonMember  uint64
	membershipErrors     uint64
	membershipCacheHits  uint64
	membershipCacheMiss  uint64
	paymentsCreated      uint64
	paymentsReconciled   uint64
	pendingPayments      int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		KeysIssued:           atomic.LoadUint64(&m.keysIssued),
		LimitExceeded:        atomic.LoadUint64(&m.limitExceeded),
		IssueDurationCount:   atomic.LoadUint64(&m.issueDurationCount),
		IssueDurationTotalNs: atomic.LoadInt64(&m.issueDurationTotalNs),
		MembershipMember:     atomic.LoadUint64(&m.membershipMember),
		MembershipNonMember:  atomic.LoadUint64(&m.membershipNonMember),
		MembershipErrors:     atomic.LoadUint64(&m.membershipErrors),
		MembershipCacheHits:  atomic.LoadUint64(&m.membershipCacheHits),
		MembershipCacheMiss:  atomic.LoadUint64(&m.membershipCacheMiss),
		PaymentsCreated:      atomic.LoadUint64(&m.paymentsCreated),
		PaymentsReconciled:   atomic.LoadUint64(&m.paymentsReconciled),
		PendingPayments:      atomic.LoadInt64(&m.pendingPayments),
	}
}

// IncKeyIssued increments the issued-key counter.
func (m *InMemoryRecorder) IncKeyIssued() {
	atomic.AddUint64(&m.keysIssued, 1)
}

// IncLimitExceeded increments the rejected-issuance counter.
func (m *InMemoryRecorder) IncLimitExceeded() {
	atomic.AddUint64(&m.limitExceeded, 1)
}

// ObserveIssueDuration records the duration of one issuance.
func (m *InMemoryRecorder) ObserveIssueDuration(duration time.Duration) {
	atomic.AddUint64(&m.issueDurationCount, 1)
	atomic.AddInt64(&m.issueDurationTotalNs, duration.Nanoseconds())
}

// IncMembershipCheck increments the counter for one oracle outcome.
func (m *InMemoryRecorder) IncMembershipCheck(status string) {
	switch status {
	case "member":
		atomic.AddUint64(&m.membershipMember, 1)
	case "error":
		atomic.AddUint64(&m.membershipErrors, 1)
	default:
		atomic.AddUint64(&m.membershipNonMember, 1)
	}
}

// IncMembershipCacheHit increments the membership cache hit counter.
func (m *InMemoryRecorder) IncMembershipCacheHit() {
	atomic.AddUint64(&m.membershipCacheHits, 1)
}

// IncMembershipCacheMiss increments the membership cache miss counter.
func (m *InMemoryRecorder) IncMembershipCacheMiss() {
	atomic.AddUint64(&m.membershipCacheMiss, 1)
}

// IncPaymentCreated increments the created-intent counter.
func (m *InMemoryRecorder) IncPaymentCreated() {
	atomic.AddUint64(&m.paymentsCreated, 1)
}

// IncPaymentReconciled increments the reconciled-payment counter.
func (m *InMemoryRecorder) IncPaymentReconciled() {
	atomic.AddUint64(&m.paymentsReconciled, 1)
}

// SetPendingPayments records the current pending-intent depth.
func (m *InMemoryRecorder) SetPendingPayments(depth int64) {
	atomic.StoreInt64(&m.pendingPayments, depth)
}
