package backup

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout maps the fixed on-disk directory structure under the backup root.
// Every component resolves paths through it so the tree stays consistent:
//
//	database/{full,incremental,snapshots,metadata,logs}/
//	documents/{snapshots,metadata,staging,verification}/
//	verification/<id>_verification.json
//	archive/<year>/<artifact-file>
//	alerts/<alertId>.json
//	dr/{plans,tests,recoveries}/
type Layout struct {
	Root string
}

// NewLayout returns a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) DatabaseFullDir() string { return filepath.Join(l.Root, "database", "full") }
func (l Layout) DatabaseIncrementalDir() string {
	return filepath.Join(l.Root, "database", "incremental")
}
func (l Layout) DatabaseSnapshotsDir() string { return filepath.Join(l.Root, "database", "snapshots") }
func (l Layout) DatabaseMetadataDir() string  { return filepath.Join(l.Root, "database", "metadata") }
func (l Layout) DatabaseLogsDir() string      { return filepath.Join(l.Root, "database", "logs") }

func (l Layout) DocumentsSnapshotsDir() string {
	return filepath.Join(l.Root, "documents", "snapshots")
}
func (l Layout) DocumentsMetadataDir() string { return filepath.Join(l.Root, "documents", "metadata") }
func (l Layout) DocumentsStagingDir() string  { return filepath.Join(l.Root, "documents", "staging") }
func (l Layout) DocumentsVerificationDir() string {
	return filepath.Join(l.Root, "documents", "verification")
}

func (l Layout) VerificationDir() string { return filepath.Join(l.Root, "verification") }
func (l Layout) AlertsDir() string       { return filepath.Join(l.Root, "alerts") }

func (l Layout) ArchiveDir() string { return filepath.Join(l.Root, "archive") }

// ArchiveYearDir returns the cold-storage directory for a given year.
func (l Layout) ArchiveYearDir(year int) string {
	return filepath.Join(l.Root, "archive", fmt.Sprintf("%d", year))
}

func (l Layout) PlansDir() string      { return filepath.Join(l.Root, "dr", "plans") }
func (l Layout) TestsDir() string      { return filepath.Join(l.Root, "dr", "tests") }
func (l Layout) RecoveriesDir() string { return filepath.Join(l.Root, "dr", "recoveries") }

// MetadataDirFor routes a record id to its metadata directory. Document
// backups live under documents/, everything else under database/.
func (l Layout) MetadataDirFor(id string) string {
	if isDocumentID(id) {
		return l.DocumentsMetadataDir()
	}
	return l.DatabaseMetadataDir()
}

// VerificationFile returns the integrity-report path for a backup id.
func (l Layout) VerificationFile(id string) string {
	return filepath.Join(l.VerificationDir(), id+"_verification.json")
}

// EnsureDirs creates the full directory tree.
func (l Layout) EnsureDirs() error {
	dirs := []string{
		l.DatabaseFullDir(),
		l.DatabaseIncrementalDir(),
		l.DatabaseSnapshotsDir(),
		l.DatabaseMetadataDir(),
		l.DatabaseLogsDir(),
		l.DocumentsSnapshotsDir(),
		l.DocumentsMetadataDir(),
		l.DocumentsStagingDir(),
		l.DocumentsVerificationDir(),
		l.VerificationDir(),
		l.AlertsDir(),
		l.ArchiveDir(),
		l.PlansDir(),
		l.TestsDir(),
		l.RecoveriesDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func isDocumentID(id string) bool {
	return len(id) > len(KindDocuments) && id[:len(KindDocuments)+1] == KindDocuments+"_"
}
