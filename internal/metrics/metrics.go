// Package metrics exposes Prometheus instrumentation for the backup core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackupOperations counts backup attempts by type and outcome.
	BackupOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bastion_backup_operations_total",
		Help: "Total number of backup operations",
	}, []string{"type", "status"})

	// BackupDuration observes backup wall-clock durations.
	BackupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bastion_backup_duration_seconds",
		Help:    "Duration of backup operations",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"type"})

	// BackupSize tracks the size of the most recent backup per type.
	BackupSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bastion_backup_size_bytes",
		Help: "Size of the most recent backup artifact in bytes",
	}, []string{"type"})

	// VerificationRuns counts verification attempts by outcome.
	VerificationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bastion_verification_runs_total",
		Help: "Total number of integrity verification runs",
	}, []string{"result"})

	// RetentionActions counts artifacts deleted or archived by the enforcer.
	RetentionActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bastion_retention_actions_total",
		Help: "Total number of retention lifecycle actions",
	}, []string{"action"})

	// AlertsRaised counts alerts created by the monitoring engine.
	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bastion_alerts_raised_total",
		Help: "Total number of alerts raised",
	}, []string{"type", "severity"})

	// RecoveryOperations counts DR operations by kind and outcome.
	RecoveryOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bastion_recovery_operations_total",
		Help: "Total number of disaster recovery operations",
	}, []string{"kind", "status"})

	// StorageUsed reports the bytes consumed under the backup root.
	StorageUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bastion_storage_used_bytes",
		Help: "Bytes consumed by backup artifacts on local storage",
	})
)
