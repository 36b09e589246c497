// Package testutil provides shared fixtures for bastion tests: temp
// backup roots, seeded records with real artifacts, and fakes for the
// external process collaborators.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bastionproject/bastion/internal/backup"
	"github.com/bastionproject/bastion/internal/checksum"
)

// NewLayout creates a backup root under t.TempDir with all directories.
func NewLayout(t *testing.T) backup.Layout {
	t.Helper()
	layout := backup.NewLayout(t.TempDir())
	require.NoError(t, layout.EnsureDirs())
	return layout
}

// NewStore opens a metadata store over the layout.
func NewStore(t *testing.T, layout backup.Layout) *backup.Store {
	t.Helper()
	store, err := backup.NewStore(layout)
	require.NoError(t, err)
	return store
}

// WriteDump writes a minimal valid relational dump artifact.
func WriteDump(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("PGDMP fake dump payload"), 0o644))
}

// RecordOption mutates a seeded record before it is persisted.
type RecordOption func(*backup.Record)

// WithAge backdates the record's timestamp by d.
func WithAge(d time.Duration) RecordOption {
	return func(r *backup.Record) {
		r.Timestamp = time.Now().Add(-d)
		r.RetentionUntil = r.Timestamp.AddDate(0, 0, 30)
	}
}

// WithRetentionUntil sets the lifecycle deadline.
func WithRetentionUntil(until time.Time) RecordOption {
	return func(r *backup.Record) { r.RetentionUntil = until }
}

// WithVerified marks the record verified.
func WithVerified() RecordOption {
	return func(r *backup.Record) {
		r.Verified = true
		ts := r.Timestamp
		r.VerificationTimestamp = &ts
		if r.Status == backup.StatusCompleted {
			r.Status = backup.StatusVerified
		}
	}
}

// WithStatus overrides the record status.
func WithStatus(status backup.Status) RecordOption {
	return func(r *backup.Record) { r.Status = status }
}

// SeedFullBackup persists a COMPLETED full-backup record with a real
// artifact on disk and a matching checksum.
func SeedFullBackup(t *testing.T, layout backup.Layout, store *backup.Store, opts ...RecordOption) *backup.Record {
	t.Helper()

	rec := &backup.Record{
		ID:             backup.NewID(backup.KindFull),
		Timestamp:      time.Now(),
		Type:           backup.TypeFull,
		Status:         backup.StatusCompleted,
		Locations:      []string{backup.LocationLocal},
		RetentionUntil: time.Now().AddDate(0, 0, 30),
	}
	for _, opt := range opts {
		opt(rec)
	}

	artifact := filepath.Join(layout.DatabaseFullDir(), rec.ID+backup.DumpExt)
	WriteDump(t, artifact)

	sum, err := checksum.File(artifact)
	require.NoError(t, err)
	rec.Checksum = sum

	info, err := os.Stat(artifact)
	require.NoError(t, err)
	rec.Size = info.Size()

	require.NoError(t, store.Put(rec))
	return rec
}

// SeedDocumentTree writes a small document corpus under dir.
func SeedDocumentTree(t *testing.T, dir string, files int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "contracts"), 0o755))
	for i := 0; i < files; i++ {
		name := filepath.Join(dir, "contracts", fmt.Sprintf("doc%02d.pdf", i))
		require.NoError(t, os.WriteFile(name, []byte(fmt.Sprintf("document %d body", i)), 0o644))
	}
}
