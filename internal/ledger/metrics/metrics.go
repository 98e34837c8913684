// Package metrics exposes Prometheus metrics for the ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger's Prometheus collectors.
type Metrics struct {
	CapsulesCreated   prometheus.Counter
	CapsulesUnlocked  prometheus.Counter
	CapsulesCancelled prometheus.Counter
	CapsulesDeleted   prometheus.Counter
	ValueLocked       prometheus.Counter
	FeesCollected     prometheus.Counter
}

// New creates and registers all ledger metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		CapsulesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timevault_capsules_created_total",
			Help: "Total number of capsules created",
		}),
		CapsulesUnlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timevault_capsules_unlocked_total",
			Help: "Total number of capsules unlocked",
		}),
		CapsulesCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timevault_capsules_cancelled_total",
			Help: "Total number of capsules cancelled",
		}),
		CapsulesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timevault_capsules_deleted_total",
			Help: "Total number of capsule records deleted",
		}),
		ValueLocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timevault_value_locked_total",
			Help: "Cumulative native value ever locked into vaults",
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timevault_fees_collected_total",
			Help: "Cumulative platform fees disbursed to the fee wallet",
		}),
	}
}
