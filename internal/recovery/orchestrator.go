package recovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bastionproject/bastion/internal/backup"
	apperrors "github.com/bastionproject/bastion/internal/errors"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/tools"
)

// Orchestrator owns DR plans, recovery operations and drill results. All
// state lives as one JSON file per entity under dr/, so the orchestrator
// functions even when the primary store is unreachable.
type Orchestrator struct {
	layout backup.Layout
	store  backup.Repository
	dumper tools.Dumper

	mu         sync.RWMutex
	plans      map[string]*Plan
	operations map[string]*Operation
	tests      map[string]*TestResult
}

// NewOrchestrator opens the orchestrator, loading persisted state.
func NewOrchestrator(layout backup.Layout, store backup.Repository, dumper tools.Dumper) (*Orchestrator, error) {
	o := &Orchestrator{
		layout:     layout,
		store:      store,
		dumper:     dumper,
		plans:      make(map[string]*Plan),
		operations: make(map[string]*Operation),
		tests:      make(map[string]*TestResult),
	}

	if err := loadDir(layout.PlansDir(), func(data []byte) error {
		var p Plan
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		o.plans[p.ID] = &p
		return nil
	}); err != nil {
		return nil, err
	}
	if err := loadDir(layout.RecoveriesDir(), func(data []byte) error {
		var op Operation
		if err := json.Unmarshal(data, &op); err != nil {
			return err
		}
		o.operations[op.ID] = &op
		return nil
	}); err != nil {
		return nil, err
	}
	if err := loadDir(layout.TestsDir(), func(data []byte) error {
		var t TestResult
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		o.tests[t.ID] = &t
		return nil
	}); err != nil {
		return nil, err
	}
	return o, nil
}

func loadDir(dir string, decode func([]byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if err := decode(data); err != nil {
			return fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func writeJSON(dir, id string, v interface{}) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", id, err)
	}
	final := filepath.Join(dir, id+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	return os.Rename(tmp, final)
}

// CreatePlan validates and persists a new plan, assigning its id.
func (o *Orchestrator) CreatePlan(p *Plan) (*Plan, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("plan name is required")
	}
	if len(p.FailoverRegions) == 0 {
		return nil, fmt.Errorf("plan needs at least one failover region")
	}
	if p.RPOMinutes <= 0 || p.RTOMinutes <= 0 {
		return nil, fmt.Errorf("plan RPO and RTO must be positive")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	p.ID = newEntityID("plan")
	if err := writeJSON(o.layout.PlansDir(), p.ID, p); err != nil {
		return nil, err
	}
	cp := *p
	o.plans[p.ID] = &cp

	logging.Info("disaster recovery plan created",
		logging.String("id", p.ID), logging.String("name", p.Name))
	return p, nil
}

// GetPlan returns a copy of one plan.
func (o *Orchestrator) GetPlan(id string) (*Plan, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	p, ok := o.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrPlanNotFound, id)
	}
	cp := *p
	return &cp, nil
}

// ListPlans returns copies of all plans, sorted by name.
func (o *Orchestrator) ListPlans() []*Plan {
	o.mu.RLock()
	defer o.mu.RUnlock()

	plans := make([]*Plan, 0, len(o.plans))
	for _, p := range o.plans {
		cp := *p
		plans = append(plans, &cp)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans
}

// GetOperation returns a copy of a recovery operation.
func (o *Orchestrator) GetOperation(id string) (*Operation, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	op, ok := o.operations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrRecoveryNotFound, id)
	}
	cp := *op
	return &cp, nil
}

// saveOperation publishes an operation state change. Callers must hold
// o.mu: readers copy operations out of the map concurrently, so every
// field mutation and the write that follows it happen under the lock.
func (o *Orchestrator) saveOperation(op *Operation) {
	if err := writeJSON(o.layout.RecoveriesDir(), op.ID, op); err != nil {
		logging.Error("persist recovery operation",
			logging.String("id", op.ID), logging.Err(err))
	}
}

// phaseOf reads an operation's phase under the lock.
func (o *Orchestrator) phaseOf(op *Operation) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return op.Phase
}

// setPhase advances an operation to the next phase and persists it.
func (o *Orchestrator) setPhase(op *Operation, phase string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	op.Phase = phase
	o.saveOperation(op)
}

// Status is the aggregate read model behind GET disaster-recovery/status.
type Status struct {
	Plans            []*Plan       `json:"plans"`
	IsFailoverActive bool          `json:"isFailoverActive"`
	ActiveOperations []*Operation  `json:"activeOperations,omitempty"`
	LastTestResults  []*TestResult `json:"lastTestResults"`
}

// GetStatus assembles the dashboard view of DR state.
func (o *Orchestrator) GetStatus() *Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	status := &Status{}
	for _, p := range o.plans {
		cp := *p
		status.Plans = append(status.Plans, &cp)
	}
	sort.Slice(status.Plans, func(i, j int) bool { return status.Plans[i].Name < status.Plans[j].Name })

	for _, op := range o.operations {
		if !op.Active() {
			continue
		}
		cp := *op
		status.ActiveOperations = append(status.ActiveOperations, &cp)
		if op.Kind == OpFailover {
			status.IsFailoverActive = true
		}
	}

	tests := make([]*TestResult, 0, len(o.tests))
	for _, t := range o.tests {
		cp := *t
		tests = append(tests, &cp)
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].StartTime.After(tests[j].StartTime) })
	if len(tests) > 10 {
		tests = tests[:10]
	}
	status.LastTestResults = tests
	return status
}

// SelectRecoveryPoint returns the latest completed-and-verified record at
// or before target, or nil. Candidates are ordered by recency; eligibility
// keys on the verified flag, so an unverified newer backup never wins over
// a verified older one.
func SelectRecoveryPoint(records []*backup.Record, target time.Time) *backup.Record {
	var best *backup.Record
	for _, rec := range records {
		if !rec.Verified {
			continue
		}
		switch rec.Status {
		case backup.StatusCompleted, backup.StatusVerified, backup.StatusArchived:
		default:
			continue
		}
		if rec.Timestamp.After(target) {
			continue
		}
		if best == nil || rec.Timestamp.After(best.Timestamp) {
			best = rec
		}
	}
	return best
}
