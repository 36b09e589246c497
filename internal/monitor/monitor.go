package monitor

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bastionproject/bastion/internal/backup"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/metrics"
)

// Check thresholds.
const (
	completionWindow   = time.Hour
	sizeDeltaThreshold = 0.5
	replicationWindow  = 24 * time.Hour
	minLocations       = 2
	staleCritical      = 25 * time.Hour
	staleHigh          = 12 * time.Hour
	capacityCritical   = 0.9
	capacityHigh       = 0.7
)

// Engine runs the periodic health checks and raises alerts through the
// store and notifier. Checks only read metadata and disk state; they never
// mutate an in-flight record, so the engine may run concurrently with a
// producer.
type Engine struct {
	layout            backup.Layout
	store             backup.Repository
	alerts            *AlertStore
	notifier          *Notifier
	capacityBytes     int64
	inProgressTimeout time.Duration
}

// NewEngine wires the monitoring engine.
func NewEngine(layout backup.Layout, store backup.Repository, alerts *AlertStore,
	notifier *Notifier, capacityBytes int64, inProgressTimeout time.Duration) *Engine {
	return &Engine{
		layout:            layout,
		store:             store,
		alerts:            alerts,
		notifier:          notifier,
		capacityBytes:     capacityBytes,
		inProgressTimeout: inProgressTimeout,
	}
}

// RunChecks performs the five independent checks. Each produces zero or
// more alerts; no check can fail the run.
func (e *Engine) RunChecks(ctx context.Context) {
	records, err := e.store.List()
	if err != nil {
		logging.Error("list records for monitoring", logging.Err(err))
		return
	}
	now := time.Now()

	e.checkCompletion(ctx, records, now)
	e.checkSizeAnomaly(ctx, records)
	e.checkCapacity(ctx)
	e.checkReplication(ctx, records, now)
	e.checkStaleness(ctx, records, now)
}

func (e *Engine) raise(ctx context.Context, typ AlertType, severity Severity, message string) {
	if alert := e.alerts.Raise(typ, severity, message); alert != nil {
		e.notifier.Dispatch(ctx, alert)
	}
}

// checkCompletion raises on a failure within the last hour and on any
// backup still IN_PROGRESS past the timeout. Stuck detection is not
// windowed: a crashed producer leaves its record IN_PROGRESS forever, and
// that is exactly the state to flag. The timeout alert is an
// observability signal, never an automatic kill.
func (e *Engine) checkCompletion(ctx context.Context, records []*backup.Record, now time.Time) {
	var latest *backup.Record
	for _, rec := range records {
		if now.Sub(rec.Timestamp) > completionWindow {
			continue
		}
		if latest == nil || rec.Timestamp.After(latest.Timestamp) {
			latest = rec
		}
	}
	if latest != nil && latest.Status == backup.StatusFailed {
		e.raise(ctx, AlertBackupFailed, SeverityHigh,
			fmt.Sprintf("backup %s failed: %s", latest.ID, latest.Error))
	}

	for _, rec := range records {
		if rec.Status != backup.StatusInProgress {
			continue
		}
		if now.Sub(rec.Timestamp) > e.inProgressTimeout {
			e.raise(ctx, AlertBackupStuck, SeverityHigh,
				fmt.Sprintf("backup %s still in progress after %s", rec.ID,
					now.Sub(rec.Timestamp).Round(time.Minute)))
			break
		}
	}
}

// checkSizeAnomaly compares the two most recent completed backups; a size
// delta above 50% is suspicious.
func (e *Engine) checkSizeAnomaly(ctx context.Context, records []*backup.Record) {
	var completed []*backup.Record
	for _, rec := range records {
		if isCompleted(rec) {
			completed = append(completed, rec)
		}
		if len(completed) == 2 {
			break
		}
	}
	if len(completed) < 2 || completed[1].Size == 0 {
		return
	}

	newer, older := completed[0], completed[1]
	delta := float64(newer.Size-older.Size) / float64(older.Size)
	if delta < 0 {
		delta = -delta
	}
	if delta > sizeDeltaThreshold {
		e.raise(ctx, AlertSizeAnomaly, SeverityMedium,
			fmt.Sprintf("backup %s size %s deviates %.0f%% from previous %s",
				newer.ID, humanize.Bytes(uint64(newer.Size)), delta*100,
				humanize.Bytes(uint64(older.Size))))
	}
}

// checkCapacity sums artifact sizes on disk against the configured ceiling.
func (e *Engine) checkCapacity(ctx context.Context) {
	used := e.diskUsage()
	metrics.StorageUsed.Set(float64(used))

	if e.capacityBytes <= 0 {
		return
	}
	ratio := float64(used) / float64(e.capacityBytes)
	switch {
	case ratio > capacityCritical:
		e.raise(ctx, AlertCapacityPressure, SeverityCritical,
			fmt.Sprintf("backup storage at %.0f%% of capacity (%s of %s)",
				ratio*100, humanize.Bytes(uint64(used)), humanize.Bytes(uint64(e.capacityBytes))))
	case ratio > capacityHigh:
		e.raise(ctx, AlertCapacityPressure, SeverityHigh,
			fmt.Sprintf("backup storage at %.0f%% of capacity (%s of %s)",
				ratio*100, humanize.Bytes(uint64(used)), humanize.Bytes(uint64(e.capacityBytes))))
	}
}

func (e *Engine) diskUsage() int64 {
	dirs := []string{
		e.layout.DatabaseFullDir(),
		e.layout.DatabaseIncrementalDir(),
		e.layout.DatabaseSnapshotsDir(),
		e.layout.DocumentsSnapshotsDir(),
		e.layout.ArchiveDir(),
	}
	var total int64
	for _, dir := range dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
			return nil
		})
	}
	return total
}

// checkReplication flags records completed within 24h that reached fewer
// than two storage locations.
func (e *Engine) checkReplication(ctx context.Context, records []*backup.Record, now time.Time) {
	var short []*backup.Record
	for _, rec := range records {
		if !isCompleted(rec) || now.Sub(rec.Timestamp) > replicationWindow {
			continue
		}
		if len(rec.Locations) < minLocations {
			short = append(short, rec)
		}
	}
	if len(short) == 0 {
		return
	}
	e.raise(ctx, AlertIncompleteReplication, SeverityHigh,
		fmt.Sprintf("%d backup(s) in the last 24h replicated to fewer than %d locations (first: %s)",
			len(short), minLocations, short[len(short)-1].ID))
}

// checkStaleness alerts when the newest completed backup is too old, or
// when none exists at all.
func (e *Engine) checkStaleness(ctx context.Context, records []*backup.Record, now time.Time) {
	var newest *backup.Record
	for _, rec := range records {
		if !isCompleted(rec) {
			continue
		}
		if newest == nil || rec.Timestamp.After(newest.Timestamp) {
			newest = rec
		}
	}

	if newest == nil {
		e.raise(ctx, AlertBackupStale, SeverityCritical, "no completed backup exists")
		return
	}

	age := now.Sub(newest.Timestamp)
	switch {
	case age > staleCritical:
		e.raise(ctx, AlertBackupStale, SeverityCritical,
			fmt.Sprintf("newest completed backup is %s old", humanize.RelTime(newest.Timestamp, now, "", "")))
	case age > staleHigh:
		e.raise(ctx, AlertBackupStale, SeverityHigh,
			fmt.Sprintf("newest completed backup is %s old", humanize.RelTime(newest.Timestamp, now, "", "")))
	}
}

func isCompleted(rec *backup.Record) bool {
	switch rec.Status {
	case backup.StatusCompleted, backup.StatusVerified, backup.StatusArchived:
		return true
	}
	return false
}

// Dashboard is the aggregate read model behind GET monitoring/dashboard.
type Dashboard struct {
	ActiveAlerts     []*Alert         `json:"activeAlerts"`
	AlertsBySeverity map[Severity]int `json:"alertsBySeverity"`
	LastBackup       *time.Time       `json:"lastBackup,omitempty"`
	LastBackupAge    string           `json:"lastBackupAge,omitempty"`
	StorageUsed      int64            `json:"storageUsed"`
	StorageUsedHuman string           `json:"storageUsedHuman"`
	StorageCapacity  int64            `json:"storageCapacity"`
	TotalBackups     int              `json:"totalBackups"`
}

// BuildDashboard assembles the dashboard payload.
func (e *Engine) BuildDashboard() *Dashboard {
	d := &Dashboard{
		ActiveAlerts:     e.alerts.List(true),
		AlertsBySeverity: make(map[Severity]int),
		StorageCapacity:  e.capacityBytes,
	}
	for _, alert := range d.ActiveAlerts {
		d.AlertsBySeverity[alert.Severity]++
	}

	used := e.diskUsage()
	d.StorageUsed = used
	d.StorageUsedHuman = humanize.Bytes(uint64(used))

	records, err := e.store.List()
	if err != nil {
		return d
	}
	d.TotalBackups = len(records)
	now := time.Now()
	for _, rec := range records {
		if isCompleted(rec) {
			ts := rec.Timestamp
			d.LastBackup = &ts
			d.LastBackupAge = humanize.RelTime(ts, now, "ago", "")
			break
		}
	}
	return d
}
