package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/bastionproject/bastion/internal/backup"
	apperrors "github.com/bastionproject/bastion/internal/errors"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/metrics"
)

// RunTest executes a recovery drill for the named plan: restore the newest
// verified backup into an isolated environment and validate the restored
// data. The drill result is persisted and the plan's last-test fields are
// updated whether the drill passed or failed.
func (o *Orchestrator) RunTest(ctx context.Context, planID string) (*TestResult, error) {
	o.mu.RLock()
	plan, ok := o.plans[planID]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrPlanNotFound, planID)
	}

	records, err := o.store.List()
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	rec := SelectRecoveryPoint(records, time.Now())
	if rec == nil {
		return nil, apperrors.ErrNoSuitableBackup
	}

	start := time.Now()
	result := &TestResult{
		ID:                newEntityID("drtest"),
		PlanID:            planID,
		BackupID:          rec.ID,
		StartTime:         start,
		TargetEnvironment: fmt.Sprintf("dr_test_%d", start.UnixMilli()),
	}

	logging.Info("recovery drill started",
		logging.String("testId", result.ID),
		logging.String("plan", plan.Name),
		logging.String("backupId", rec.ID))

	o.runDrill(ctx, rec, result)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start).Milliseconds()
	result.Success = len(result.DataValidation.Errors) == 0

	o.recordDrill(planID, result)

	outcome := "passed"
	if !result.Success {
		outcome = "failed"
	}
	metrics.RecoveryOperations.WithLabelValues("drill", outcome).Inc()
	logging.Info("recovery drill finished",
		logging.String("testId", result.ID),
		logging.String("result", outcome),
		logging.Int64("durationMs", result.Duration))

	cp := *result
	return &cp, nil
}

func (o *Orchestrator) runDrill(ctx context.Context, rec *backup.Record, result *TestResult) {
	artifact := backup.LocateArtifact(o.layout, rec)
	if artifact == "" {
		result.DataValidation.Errors = append(result.DataValidation.Errors,
			fmt.Sprintf("artifact for %s not found", rec.ID))
		return
	}

	if _, err := o.dumper.Restore(ctx, artifact, result.TargetEnvironment); err != nil {
		result.DataValidation.Errors = append(result.DataValidation.Errors,
			fmt.Sprintf("restore: %v", err))
		return
	}
	result.DataValidation.UnitsVerified = 1

	count, err := o.dumper.RowCount(ctx, "documents")
	if err != nil {
		result.DataValidation.Errors = append(result.DataValidation.Errors,
			fmt.Sprintf("row count: %v", err))
		return
	}
	result.DataValidation.RecordsVerified = count

	if rec.VerificationDetails != nil && rec.VerificationDetails.Records > 0 &&
		count < rec.VerificationDetails.Records {
		result.DataValidation.Errors = append(result.DataValidation.Errors,
			fmt.Sprintf("restored %d records, backup recorded %d",
				count, rec.VerificationDetails.Records))
	}
}

// recordDrill persists the result and folds it into the plan.
func (o *Orchestrator) recordDrill(planID string, result *TestResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := writeJSON(o.layout.TestsDir(), result.ID, result); err != nil {
		logging.Error("persist drill result",
			logging.String("id", result.ID), logging.Err(err))
	}
	cp := *result
	o.tests[result.ID] = &cp

	plan, ok := o.plans[planID]
	if !ok {
		return
	}
	when := result.StartTime
	plan.LastTest = &when
	if result.Success {
		plan.LastTestResult = "passed"
	} else {
		plan.LastTestResult = "failed"
	}
	if err := writeJSON(o.layout.PlansDir(), plan.ID, plan); err != nil {
		logging.Error("persist plan after drill",
			logging.String("id", plan.ID), logging.Err(err))
	}
}
