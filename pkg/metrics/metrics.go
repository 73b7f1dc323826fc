package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Accrual outcomes.
const (
	OutcomeAccepted       = "accepted"
	OutcomeInvalid        = "invalid"
	OutcomeAlreadyAccrued = "already_accrued"
	OutcomeNoProfile      = "profile_not_found"
	OutcomeFailed         = "failed"
	OutcomeOrphaned       = "orphaned"
)

// Push outcomes.
const (
	PushDelivered = "delivered"
	PushDisabled  = "disabled"
	PushNoDevice  = "no_device"
	PushFailed    = "failed"
)

var (
	Accruals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "samplr",
		Name:      "accruals_total",
		Help:      "Check-in and review submissions by kind and outcome.",
	}, []string{"kind", "outcome"})

	PointsCredited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "samplr",
		Name:      "points_credited_total",
		Help:      "Points credited to accounts by accrual kind.",
	}, []string{"kind"})

	TierChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "samplr",
		Name:      "tier_changes_total",
		Help:      "Tier transitions detected after an accrual.",
	})

	AdvisoryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "samplr",
		Name:      "advisory_failures_total",
		Help:      "Suppressed failures of post-commit side effects.",
	}, []string{"hook"})

	PushDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "samplr",
		Name:      "push_dispatch_total",
		Help:      "Push dispatch attempts by outcome.",
	}, []string{"outcome"})

	NotificationEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "samplr",
		Name:      "notification_log_evictions_total",
		Help:      "Entries dropped from the tail of a full notification log.",
	})
)
