package handler

import (
	"fmt"
	"net/http"

	"github.com/keyvend/keyvend/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "keyvend_keys_issued_total %d\n", snap.KeysIssued)
	writeMetric(w, "keyvend_keys_limit_exceeded_total %d\n", snap.LimitExceeded)
	writeMetric(w, "keyvend_key_issue_duration_seconds_count %d\n", snap.IssueDurationCount)
	writeMetric(w, "keyvend_key_issue_duration_seconds_sum %.6f\n", float64(snap.IssueDurationTotalNs)/1e9)

	writeMetric(w, "keyvend_membership_checks_total{status=\"member\"} %d\n", snap.MembershipMember)
	writeMetric(w, "keyvend_membership_checks_total{status=\"non_member\"} %d\n", snap.MembershipNonMember)
	writeMetric(w, "keyvend_membership_checks_total{status=\"error\"} %d\n", snap.MembershipErrors)
	writeMetric(w, "keyvend_membership_cache_hits_total %d\n", snap.MembershipCacheHits)
	writeMetric(w, "keyvend_membership_cache_misses_total %d\n", snap.MembershipCacheMiss)

	writeMetric(w, "keyvend_payments_created_total %d\n", snap.PaymentsCreated)
	writeMetric(w, "keyvend_payments_reconciled_total %d\n", snap.PaymentsReconciled)
	writeMetric(w, "keyvend_payments_pending %d\n", snap.PendingPayments)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
