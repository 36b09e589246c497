// Package recovery holds disaster-recovery plans and orchestrates
// point-in-time recovery, managed failover and recovery drills.
package recovery

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Plan is a disaster-recovery plan.
type Plan struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// RPOMinutes is the maximum acceptable data-loss window.
	RPOMinutes int `json:"rpoMinutes"`
	// RTOMinutes is the maximum acceptable time to restore service.
	RTOMinutes int `json:"rtoMinutes"`

	FailoverRegions []string `json:"failoverRegions"`

	HealthCheckIntervalSeconds int  `json:"healthCheckIntervalSeconds"`
	AutomaticFailover          bool `json:"automaticFailover"`

	// TestIntervalDays is how often recovery drills should run.
	TestIntervalDays int `json:"testIntervalDays"`

	LastTest       *time.Time `json:"lastTest,omitempty"`
	LastTestResult string     `json:"lastTestResult,omitempty"` // passed or failed
}

// HasRegion reports whether region is one of the plan's failover regions.
func (p *Plan) HasRegion(region string) bool {
	for _, r := range p.FailoverRegions {
		if r == region {
			return true
		}
	}
	return false
}

// DataValidation holds the unit and record counts checked during a drill.
type DataValidation struct {
	UnitsVerified   int      `json:"unitsVerified"`
	RecordsVerified int64    `json:"recordsVerified"`
	Errors          []string `json:"errors,omitempty"`
}

// TestResult records one recovery drill.
type TestResult struct {
	ID                string         `json:"id"`
	PlanID            string         `json:"planId"`
	BackupID          string         `json:"backupId"`
	StartTime         time.Time      `json:"startTime"`
	EndTime           time.Time      `json:"endTime"`
	Duration          int64          `json:"duration"` // milliseconds
	Success           bool           `json:"success"`
	TargetEnvironment string         `json:"targetEnvironment"`
	DataValidation    DataValidation `json:"dataValidation"`
}

// OperationKind classifies a long-running recovery operation.
type OperationKind string

const (
	OpPointInTime OperationKind = "pitr"
	OpFailover    OperationKind = "failover"
	OpRestore     OperationKind = "restore"
)

// Operation phases. Operations progress forward through phases, each phase
// published atomically, so a crashed operation resumes from its last
// published phase instead of restarting.
const (
	PhaseStaged     = "staged"
	PhaseRestoring  = "restoring"
	PhaseRedirected = "redirecting"
	PhaseVerifying  = "verifying"
	PhaseCompleted  = "completed"
	PhaseFailed     = "failed"
)

// Operation is the persisted state of one long-running recovery operation,
// keyed by recovery id. Re-invocation with the same id resumes the
// existing operation; it never restarts one.
type Operation struct {
	ID       string        `json:"id"`
	Kind     OperationKind `json:"kind"`
	PlanID   string        `json:"planId,omitempty"`
	BackupID string        `json:"backupId,omitempty"`

	TargetEnvironment string `json:"targetEnvironment,omitempty"`
	TargetRegion      string `json:"targetRegion,omitempty"`

	Phase             string     `json:"phase"`
	StartTime         time.Time  `json:"startTime"`
	EstimatedDuration int64      `json:"estimatedDuration"` // milliseconds
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	Error             string     `json:"error,omitempty"`
}

// Active reports whether the operation is still running.
func (o *Operation) Active() bool {
	return o.Phase != PhaseCompleted && o.Phase != PhaseFailed
}

func newEntityID(prefix string) string {
	u := uuid.New()
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(u[:4]))
}
