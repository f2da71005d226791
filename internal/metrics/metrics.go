package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "premium"

var (
	// EntitlementChanges counts applied entitlement mutations by kind (grant, revoke, expire).
	EntitlementChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlement",
		Name:      "changes_total",
		Help:      "Applied entitlement mutations by kind.",
	}, []string{"kind"})

	// GrantConflicts counts compare-and-swap retries during Grant.
	GrantConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlement",
		Name:      "grant_conflicts_total",
		Help:      "Grant compare-and-swap conflicts that required a retry.",
	})

	// SweepDuration tracks how long an expiry sweep takes.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "entitlement",
		Name:      "sweep_duration_seconds",
		Help:      "Expiry sweep duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	// Claims counts verification claims by event (submitted, approved, rejected) and kind.
	Claims = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "claims_total",
		Help:      "Verification claim events by event and kind.",
	}, []string{"event", "kind"})

	// QueueEvents counts premium queue events (enqueued, duplicate, matched).
	QueueEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "events_total",
		Help:      "Premium queue events.",
	}, []string{"event"})

	// PaymentsObserved counts payment observations by outcome.
	PaymentsObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "observed_total",
		Help:      "Payment observations processed by outcome.",
	}, []string{"outcome"})

	// AuditDropped counts admin actions lost after the retry.
	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "dropped_total",
		Help:      "Admin action records dropped after retry.",
	})

	// Notifications counts outbound user messages by template and result.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "sent_total",
		Help:      "Outbound Telegram notifications by template and result.",
	}, []string{"template", "result"})
)
