package backup

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bastionproject/bastion/internal/crypto"
)

// ArtifactCandidates returns the fixed set of paths an artifact for the id
// may live at, in probe order. archivedYear, when non-zero, also probes the
// year-partitioned cold store.
func ArtifactCandidates(l Layout, id string, archivedYear int) []string {
	var candidates []string
	add := func(dir string, exts ...string) {
		for _, ext := range exts {
			candidates = append(candidates, filepath.Join(dir, id+ext))
		}
	}

	if strings.HasPrefix(id, KindDocuments+"_") {
		add(l.DocumentsSnapshotsDir(), ArchiveExt, ArchiveExt+crypto.EncryptedExt)
	} else {
		add(l.DatabaseFullDir(), DumpExt, DumpExt+GzipExt)
		add(l.DatabaseIncrementalDir(), DumpExt, DumpExt+GzipExt)
	}

	if archivedYear != 0 {
		add(l.ArchiveYearDir(archivedYear),
			DumpExt, DumpExt+GzipExt, ArchiveExt, ArchiveExt+crypto.EncryptedExt)
	}
	return candidates
}

// LocateArtifact returns the first existing candidate path for a record,
// or "" when no artifact is on disk.
func LocateArtifact(l Layout, rec *Record) string {
	year := 0
	if rec.Status == StatusArchived {
		year = rec.Timestamp.Year()
	}
	for _, c := range ArtifactCandidates(l, rec.ID, year) {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// SideArtifactPaths returns every known side-artifact path for a record,
// existing or not, so lifecycle deletion can sweep them all.
func SideArtifactPaths(l Layout, rec *Record) []string {
	if rec.Kind() == KindDocuments {
		return nil
	}
	dir := l.DatabaseFullDir()
	if rec.Type == TypeIncremental {
		dir = l.DatabaseIncrementalDir()
	}
	return []string{
		filepath.Join(dir, rec.ID+SchemaSideExt),
		filepath.Join(dir, rec.ID+DataSideExt),
	}
}
