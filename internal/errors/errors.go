// Package errors provides sentinel errors for the bastion backup core.
package errors

import "errors"

// Producer errors
var (
	// ErrBackupInProgress is returned when a backup is requested while
	// another one is still running. Requests are never queued.
	ErrBackupInProgress = errors.New("backup already in progress")

	// ErrBackupNotFound is returned when a backup record does not exist.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrArtifactNotFound is returned when a backup's physical artifact
	// cannot be located on disk.
	ErrArtifactNotFound = errors.New("backup artifact not found")
)

// Configuration errors
var (
	// ErrNotConfigured is returned when a required connection, credential
	// or key is missing from the configuration.
	ErrNotConfigured = errors.New("required configuration missing")
)

// Disaster-recovery errors
var (
	// ErrPlanNotFound is returned when a disaster-recovery plan does not exist.
	ErrPlanNotFound = errors.New("disaster recovery plan not found")

	// ErrNoSuitableBackup is returned when no completed and verified backup
	// exists at or before the requested recovery point.
	ErrNoSuitableBackup = errors.New("no suitable backup found for recovery point")

	// ErrRegionNotConfigured is returned when a failover targets a region
	// that is not one of the plan's configured failover regions.
	ErrRegionNotConfigured = errors.New("region not configured for failover")

	// ErrFailoverActive is returned when a failover is requested while one
	// is already running for the same plan.
	ErrFailoverActive = errors.New("failover already active for plan")

	// ErrRecoveryNotFound is returned when a recovery operation id is unknown.
	ErrRecoveryNotFound = errors.New("recovery operation not found")
)

// Monitoring errors
var (
	// ErrAlertNotFound is returned when an alert id is unknown.
	ErrAlertNotFound = errors.New("alert not found")
)
