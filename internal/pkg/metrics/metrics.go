// Package metrics defines and registers the Prometheus metrics of the
// realm auth service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default registry at package init (promauto);
// /metrics exposes them through promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "realm_auth"

// Token scopes used as label values.
const (
	ScopeGlobal  = "global"
	ScopeProject = "project"
)

// ── Auth operation metrics ────────────────────────────────────────────────────

// AuthOperationsTotal counts completed auth operations.
// Labels:
//   - operation: signup, login, session, guest, join, refresh
//   - outcome: "success" or the coarse error kind (e.g. "invalid_credentials")
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of authentication operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// AuthOperationDuration measures end-to-end service time per operation.
var AuthOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of authentication operations including store round trips.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// ── Token metrics ─────────────────────────────────────────────────────────────

// TokensIssuedTotal counts signed tokens.
// Label:
//   - scope: "global" or "project"
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of tokens signed, by scope.",
	},
	[]string{"scope"},
)

// GuardRejectionsTotal counts requests rejected by the token guard.
// Label:
//   - reason: "missing", "expired" or "invalid"
var GuardRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_rejections_total",
		Help:      "Total number of requests rejected by the global token guard.",
	},
	[]string{"reason"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditQueueDepth tracks pending audit events per dispatcher worker.
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditDroppedTotal counts audit events dropped because a worker queue was full.
var AuditDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_dropped_total",
		Help:      "Total number of audit events dropped on a full worker queue.",
	},
)
