package api

import (
	"time"

	"github.com/bastionproject/bastion/internal/recovery"
)

// AcceptedDTO is returned for long-running operations kicked off by the API.
type AcceptedDTO struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	ID      string `json:"id,omitempty"`
}

// FullBackupBody is the request body for a full backup.
type FullBackupBody struct {
	Tags map[string]string `json:"tags,omitempty"`
}

// CreatePlanBody is the request body for plan creation.
type CreatePlanBody struct {
	Name                       string   `json:"name"`
	RPOMinutes                 int      `json:"rpoMinutes"`
	RTOMinutes                 int      `json:"rtoMinutes"`
	FailoverRegions            []string `json:"failoverRegions"`
	HealthCheckIntervalSeconds int      `json:"healthCheckIntervalSeconds"`
	AutomaticFailover          bool     `json:"automaticFailover"`
	TestIntervalDays           int      `json:"testIntervalDays"`
}

// ToPlan converts the body into a plan for the orchestrator.
func (b *CreatePlanBody) ToPlan() *recovery.Plan {
	return &recovery.Plan{
		Name:                       b.Name,
		RPOMinutes:                 b.RPOMinutes,
		RTOMinutes:                 b.RTOMinutes,
		FailoverRegions:            b.FailoverRegions,
		HealthCheckIntervalSeconds: b.HealthCheckIntervalSeconds,
		AutomaticFailover:          b.AutomaticFailover,
		TestIntervalDays:           b.TestIntervalDays,
	}
}

// FailoverBody is the request body for a managed failover.
type FailoverBody struct {
	PlanID       string `json:"planId"`
	TargetRegion string `json:"targetRegion"`
}

// PITRBody is the request body for point-in-time recovery.
type PITRBody struct {
	TargetTimestamp   string `json:"targetTimestamp"`
	BackupID          string `json:"backupId,omitempty"`
	TargetEnvironment string `json:"targetEnvironment,omitempty"`
}

// RecoveryStartedDTO is returned after staging a recovery operation.
type RecoveryStartedDTO struct {
	RecoveryID          string    `json:"recoveryId"`
	BackupID            string    `json:"backupId"`
	StartTime           time.Time `json:"startTime"`
	EstimatedDurationMS int64     `json:"estimatedDuration"`
}

// AcknowledgeBody is the request body for alert acknowledgement.
type AcknowledgeBody struct {
	By string `json:"by"`
}
