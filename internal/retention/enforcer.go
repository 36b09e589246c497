package retention

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bastionproject/bastion/internal/backup"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/metrics"
)

// Lifecycle thresholds in days since record creation. A record past its
// RetentionUntil is archived above archiveAfterDays, deleted above
// deleteAfterDays, and left alone inside the grace window below that.
const (
	archiveAfterDays = 365
	deleteAfterDays  = 90

	// deprecatedMaxAgeDays is how old a legacy-named artifact must be
	// before the sweep removes it unconditionally.
	deprecatedMaxAgeDays = 30
)

// deprecatedPatterns are filename globs from before the current id scheme.
var deprecatedPatterns = []string{"*.bak", "backup_*.sql"}

// Result reports one enforcement sweep.
type Result struct {
	Deleted  int `json:"deleted"`
	Archived int `json:"archived"`
}

// Enforcer walks stored metadata and applies lifecycle actions.
type Enforcer struct {
	layout backup.Layout
	store  backup.Repository
}

// NewEnforcer creates a retention enforcer over the shared metadata store.
func NewEnforcer(layout backup.Layout, store backup.Repository) *Enforcer {
	return &Enforcer{layout: layout, store: store}
}

// Enforce processes every record past its retention instant. Records are
// handled independently: one failure is logged and the sweep continues.
func (e *Enforcer) Enforce() Result {
	var result Result

	records, err := e.store.List()
	if err != nil {
		logging.Error("list records for retention", logging.Err(err))
		return result
	}

	now := time.Now()
	for _, rec := range records {
		// FAILED records are kept for diagnostics, never auto-deleted.
		if rec.Status == backup.StatusFailed || rec.Status == backup.StatusInProgress {
			continue
		}
		if now.Before(rec.RetentionUntil) {
			continue
		}

		ageDays := int(now.Sub(rec.Timestamp).Hours() / 24)
		switch {
		case ageDays > archiveAfterDays:
			if rec.Status == backup.StatusArchived {
				continue
			}
			if err := e.archiveRecord(rec); err != nil {
				logging.Warn("archive backup failed", logging.String("id", rec.ID), logging.Err(err))
				continue
			}
			result.Archived++
			metrics.RetentionActions.WithLabelValues("archived").Inc()

		case ageDays > deleteAfterDays:
			if err := e.deleteRecord(rec); err != nil {
				logging.Warn("delete backup failed", logging.String("id", rec.ID), logging.Err(err))
				continue
			}
			result.Deleted++
			metrics.RetentionActions.WithLabelValues("deleted").Inc()

		default:
			// Past retention but inside the grace window.
		}
	}

	e.sweepDeprecated(now)

	logging.Info("retention enforcement finished",
		logging.Int("deleted", result.Deleted),
		logging.Int("archived", result.Archived))
	return result
}

// archiveRecord copies the artifact into the year-partitioned cold store
// and flips the record to ARCHIVED, keeping the metadata.
func (e *Enforcer) archiveRecord(rec *backup.Record) error {
	artifact := backup.LocateArtifact(e.layout, rec)
	if artifact == "" {
		return fmt.Errorf("artifact missing for %s", rec.ID)
	}

	yearDir := e.layout.ArchiveYearDir(rec.Timestamp.Year())
	if err := os.MkdirAll(yearDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	dst := filepath.Join(yearDir, filepath.Base(artifact))
	if err := copyFile(artifact, dst); err != nil {
		return fmt.Errorf("copy to cold storage: %w", err)
	}
	if err := os.Remove(artifact); err != nil {
		return fmt.Errorf("remove hot artifact: %w", err)
	}

	rec.Status = backup.StatusArchived
	return e.store.Put(rec)
}

// deleteRecord removes the primary artifact, every known side artifact,
// then the metadata record itself.
func (e *Enforcer) deleteRecord(rec *backup.Record) error {
	if artifact := backup.LocateArtifact(e.layout, rec); artifact != "" {
		if err := os.Remove(artifact); err != nil {
			return fmt.Errorf("remove artifact: %w", err)
		}
	}
	for _, side := range backup.SideArtifactPaths(e.layout, rec) {
		if err := os.Remove(side); err != nil && !os.IsNotExist(err) {
			logging.Warn("remove side artifact failed",
				logging.String("path", side), logging.Err(err))
		}
	}
	return e.store.Delete(rec.ID)
}

// sweepDeprecated removes legacy-named artifacts older than 30 days,
// unconditionally.
func (e *Enforcer) sweepDeprecated(now time.Time) {
	dirs := []string{e.layout.DatabaseFullDir(), e.layout.DatabaseIncrementalDir()}
	cutoff := now.AddDate(0, 0, -deprecatedMaxAgeDays)

	for _, dir := range dirs {
		for _, pattern := range deprecatedPatterns {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				continue
			}
			for _, match := range matches {
				info, err := os.Stat(match)
				if err != nil || info.ModTime().After(cutoff) {
					continue
				}
				if err := os.Remove(match); err != nil {
					logging.Warn("remove deprecated artifact failed",
						logging.String("path", match), logging.Err(err))
					continue
				}
				logging.Info("removed deprecated artifact", logging.String("path", match))
			}
		}
	}
}

// Stats summarizes lifecycle state for the API without mutating anything.
func (e *Enforcer) Stats() LifecycleStats {
	stats := LifecycleStats{Policies: Policies}

	records, err := e.store.List()
	if err != nil {
		logging.Error("list records for lifecycle stats", logging.Err(err))
		return stats
	}

	now := time.Now()
	for _, rec := range records {
		stats.TotalRecords++
		if rec.Status == backup.StatusArchived {
			stats.Archived++
		}
		if rec.Status == backup.StatusFailed || rec.Status == backup.StatusInProgress {
			continue
		}
		if now.Before(rec.RetentionUntil) {
			continue
		}
		stats.PastRetention++
		ageDays := int(now.Sub(rec.Timestamp).Hours() / 24)
		switch {
		case ageDays > archiveAfterDays:
			if rec.Status != backup.StatusArchived {
				stats.EligibleForArchive++
			}
		case ageDays > deleteAfterDays:
			stats.EligibleForDelete++
		default:
			stats.InGraceWindow++
		}
	}
	return stats
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
