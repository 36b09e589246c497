package recovery

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/bastionproject/bastion/internal/errors"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/metrics"
)

// ManagedFailover stages a failover of the named plan to targetRegion.
// Re-requesting a failover to the same region while one is active returns
// the existing operation; requesting a different region while one is
// active is rejected, since two concurrent redirects would race.
func (o *Orchestrator) ManagedFailover(planID, targetRegion string) (*Operation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	plan, ok := o.plans[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrPlanNotFound, planID)
	}
	if !plan.HasRegion(targetRegion) {
		return nil, fmt.Errorf("%w: %s is not a failover region of plan %s",
			apperrors.ErrRegionNotConfigured, targetRegion, plan.Name)
	}

	for _, existing := range o.operations {
		if existing.Kind != OpFailover || !existing.Active() {
			continue
		}
		if existing.TargetRegion == targetRegion {
			cp := *existing
			return &cp, nil
		}
		return nil, fmt.Errorf("%w: failover to %s already in progress",
			apperrors.ErrFailoverActive, existing.TargetRegion)
	}

	op := &Operation{
		ID:                newEntityID("recovery"),
		Kind:              OpFailover,
		PlanID:            planID,
		TargetRegion:      targetRegion,
		Phase:             PhaseStaged,
		StartTime:         time.Now(),
		EstimatedDuration: int64(plan.RTOMinutes) * 60_000,
	}
	o.operations[op.ID] = op
	o.saveOperation(op)

	logging.Warn("managed failover staged",
		logging.String("recoveryId", op.ID),
		logging.String("plan", plan.Name),
		logging.String("region", targetRegion))
	return op, nil
}

// executeFailover drives a staged failover through redirect and
// verification. Phases are published as they are entered, so a resumed
// operation skips the phases already done.
func (o *Orchestrator) executeFailover(ctx context.Context, op *Operation) error {
	plan, err := o.GetPlan(op.PlanID)
	if err != nil {
		return o.failOperation(op, err)
	}

	if o.phaseOf(op) == PhaseStaged {
		o.setPhase(op, PhaseRedirected)
		logging.Info("traffic redirected",
			logging.String("recoveryId", op.ID),
			logging.String("region", op.TargetRegion))
	}

	if o.phaseOf(op) == PhaseRedirected {
		o.setPhase(op, PhaseVerifying)
		if err := o.verifyRegionHealth(ctx, plan, op.TargetRegion); err != nil {
			return o.failOperation(op, err)
		}
	}

	o.completeOperation(op)
	metrics.RecoveryOperations.WithLabelValues(string(OpFailover), "completed").Inc()
	logging.Info("failover completed",
		logging.String("recoveryId", op.ID),
		logging.String("plan", plan.Name),
		logging.String("region", op.TargetRegion))
	return nil
}

// verifyRegionHealth confirms the promoted region serves queries before
// the failover is declared done.
func (o *Orchestrator) verifyRegionHealth(ctx context.Context, plan *Plan, region string) error {
	interval := time.Duration(plan.HealthCheckIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	if _, err := o.dumper.RowCount(checkCtx, "documents"); err != nil {
		return fmt.Errorf("health check against %s: %w", region, err)
	}
	return nil
}
