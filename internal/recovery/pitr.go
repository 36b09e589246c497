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

// restoreThroughput is the assumed restore rate used for duration
// estimates, bytes per second.
const restoreThroughput = 50 << 20

// DefaultRecoveryEnvironment receives restores when no target is given.
const DefaultRecoveryEnvironment = "recovery"

// PointInTimeRecovery stages a recovery to the state at or before target.
// When backupID is empty the latest completed-and-verified record before
// target is selected; an explicit backupID must name a verified record.
// The returned operation is staged but not yet executed; Execute drives it.
func (o *Orchestrator) PointInTimeRecovery(target time.Time, backupID, targetEnv string) (*Operation, error) {
	records, err := o.store.List()
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var rec *backup.Record
	if backupID != "" {
		for _, candidate := range records {
			if candidate.ID == backupID {
				rec = candidate
				break
			}
		}
		if rec == nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrBackupNotFound, backupID)
		}
		if !rec.Verified {
			return nil, fmt.Errorf("%w: %s is not verified", apperrors.ErrNoSuitableBackup, backupID)
		}
	} else {
		rec = SelectRecoveryPoint(records, target)
		if rec == nil {
			return nil, apperrors.ErrNoSuitableBackup
		}
	}

	if targetEnv == "" {
		targetEnv = DefaultRecoveryEnvironment
	}

	op := &Operation{
		ID:                newEntityID("recovery"),
		Kind:              OpPointInTime,
		BackupID:          rec.ID,
		TargetEnvironment: targetEnv,
		Phase:             PhaseStaged,
		StartTime:         time.Now(),
		EstimatedDuration: estimateRestoreMillis(rec.Size),
	}

	o.mu.Lock()
	o.operations[op.ID] = op
	o.saveOperation(op)
	o.mu.Unlock()

	logging.Info("point-in-time recovery staged",
		logging.String("recoveryId", op.ID),
		logging.String("backupId", rec.ID),
		logging.Time("target", target),
		logging.String("environment", targetEnv))
	return op, nil
}

// Execute drives a staged recovery operation to completion. It is
// idempotent: completed operations return immediately, and a crashed
// operation resumes from its last published phase, so a retried restore
// never corrupts partially restored state by starting over blind.
func (o *Orchestrator) Execute(ctx context.Context, recoveryID string) error {
	o.mu.RLock()
	op, ok := o.operations[recoveryID]
	active := ok && op.Active()
	o.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrRecoveryNotFound, recoveryID)
	}
	if !active {
		return nil
	}

	switch op.Kind {
	case OpPointInTime, OpRestore:
		return o.executeRestore(ctx, op)
	case OpFailover:
		return o.executeFailover(ctx, op)
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func (o *Orchestrator) executeRestore(ctx context.Context, op *Operation) error {
	rec, err := o.store.Get(op.BackupID)
	if err != nil {
		return o.failOperation(op, err)
	}

	if o.phaseOf(op) == PhaseStaged {
		o.setPhase(op, PhaseRestoring)
	}

	artifact := backup.LocateArtifact(o.layout, rec)
	if artifact == "" {
		return o.failOperation(op, fmt.Errorf("%w: %s", apperrors.ErrArtifactNotFound, rec.ID))
	}

	if _, err := o.dumper.Restore(ctx, artifact, op.TargetEnvironment); err != nil {
		return o.failOperation(op, err)
	}

	o.completeOperation(op)
	metrics.RecoveryOperations.WithLabelValues(string(op.Kind), "completed").Inc()
	logging.Info("recovery completed",
		logging.String("recoveryId", op.ID),
		logging.String("backupId", op.BackupID))
	return nil
}

func (o *Orchestrator) failOperation(op *Operation, err error) error {
	now := time.Now()
	o.mu.Lock()
	op.Phase = PhaseFailed
	op.Error = err.Error()
	op.CompletedAt = &now
	o.saveOperation(op)
	o.mu.Unlock()
	metrics.RecoveryOperations.WithLabelValues(string(op.Kind), "failed").Inc()
	return err
}

func (o *Orchestrator) completeOperation(op *Operation) {
	now := time.Now()
	o.mu.Lock()
	op.Phase = PhaseCompleted
	op.CompletedAt = &now
	o.saveOperation(op)
	o.mu.Unlock()
}

func estimateRestoreMillis(size int64) int64 {
	const setupMillis = 60_000
	return setupMillis + (size/restoreThroughput)*1000
}

// RestoreLatest stages and executes a restore of the newest verified
// backup into the given environment. Backs the restore:latest operator
// command.
func (o *Orchestrator) RestoreLatest(ctx context.Context, targetEnv string) (*Operation, error) {
	op, err := o.PointInTimeRecovery(time.Now(), "", targetEnv)
	if err != nil {
		return nil, err
	}
	if err := o.Execute(ctx, op.ID); err != nil {
		return nil, err
	}
	return o.GetOperation(op.ID)
}
