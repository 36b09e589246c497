package backup

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bastionproject/bastion/internal/archive"
	"github.com/bastionproject/bastion/internal/checksum"
	"github.com/bastionproject/bastion/internal/config"
	"github.com/bastionproject/bastion/internal/crypto"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/metrics"
	"github.com/bastionproject/bastion/internal/tools"
)

// ArchiveExt is the extension of document snapshot bundles.
const ArchiveExt = ".tar.gz"

// documentsTable is the domain-store table backing the corpus; its row
// count feeds the verification-details summary.
const documentsTable = "documents"

// DocumentProducer snapshots the live document corpus: stage a filtered
// copy, build a manifest, bundle into a compressed archive, checksum,
// optionally encrypt, replicate.
type DocumentProducer struct {
	layout        Layout
	store         Repository
	dumper        tools.Dumper
	replicator    *Replicator
	guard         *Guard
	cfg           config.DocumentsConfig
	retentionDays int
}

// NewDocumentProducer wires a document producer sharing the process-wide
// guard with the database producer.
func NewDocumentProducer(layout Layout, store Repository, dumper tools.Dumper,
	replicator *Replicator, guard *Guard, cfg config.DocumentsConfig, retentionDays int) *DocumentProducer {
	return &DocumentProducer{
		layout:        layout,
		store:         store,
		dumper:        dumper,
		replicator:    replicator,
		guard:         guard,
		cfg:           cfg,
		retentionDays: retentionDays,
	}
}

// Busy reports whether a backup of any kind is currently running.
func (p *DocumentProducer) Busy() bool {
	return p.guard.Busy()
}

// Produce creates a document corpus backup.
func (p *DocumentProducer) Produce(ctx context.Context) (*Record, error) {
	if err := p.guard.Acquire(); err != nil {
		return nil, err
	}
	defer p.guard.Release()
	return p.produce(ctx)
}

// Start claims the guard synchronously and runs the backup in the
// background, so admission and rejection are race-free for callers that
// cannot wait for the run itself.
func (p *DocumentProducer) Start() error {
	if err := p.guard.Acquire(); err != nil {
		return err
	}
	go func() {
		defer p.guard.Release()
		if _, err := p.produce(context.Background()); err != nil {
			logging.Error("background document backup failed", logging.Err(err))
		}
	}()
	return nil
}

// produce runs one backup end to end. The caller holds the guard.
func (p *DocumentProducer) produce(ctx context.Context) (*Record, error) {
	start := time.Now()
	rec := &Record{
		ID:             NewID(KindDocuments),
		Timestamp:      start,
		Type:           TypeSnapshot,
		Status:         StatusInProgress,
		RetentionUntil: start.AddDate(0, 0, p.retentionDays),
	}
	if err := p.store.Put(rec); err != nil {
		return nil, fmt.Errorf("persist initial record: %w", err)
	}

	logging.Info("document backup started", logging.String("id", rec.ID))

	err := p.run(ctx, rec)
	rec.Duration = time.Since(start).Milliseconds()

	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		if perr := p.store.Put(rec); perr != nil {
			logging.Error("persist failed record", logging.String("id", rec.ID), logging.Err(perr))
		}
		metrics.BackupOperations.WithLabelValues(string(TypeSnapshot), "failed").Inc()
		return nil, fmt.Errorf("document backup %s: %w", rec.ID, err)
	}

	rec.Status = StatusCompleted
	if err := p.store.Put(rec); err != nil {
		return nil, fmt.Errorf("persist completed record: %w", err)
	}

	metrics.BackupOperations.WithLabelValues(string(TypeSnapshot), "completed").Inc()
	metrics.BackupDuration.WithLabelValues(string(TypeSnapshot)).Observe(time.Since(start).Seconds())
	metrics.BackupSize.WithLabelValues(string(TypeSnapshot)).Set(float64(rec.Size))

	logging.Info("document backup completed",
		logging.String("id", rec.ID),
		logging.Int64("size", rec.Size),
		logging.Int64("durationMs", rec.Duration))
	return rec, nil
}

func (p *DocumentProducer) run(ctx context.Context, rec *Record) error {
	staging := filepath.Join(p.layout.DocumentsStagingDir(), rec.ID)
	if err := stageCopy(p.cfg.Path, staging); err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	manifest, err := archive.BuildManifest(staging)
	if err != nil {
		return err
	}

	archivePath := filepath.Join(p.layout.DocumentsSnapshotsDir(), rec.ID+ArchiveExt)
	if err := archive.Create(archivePath, staging, manifest); err != nil {
		return err
	}

	// The checksum always covers the unencrypted archive.
	sum, err := checksum.File(archivePath)
	if err != nil {
		return err
	}
	rec.Checksum = sum

	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	rec.Size = info.Size()

	if p.cfg.Encrypt {
		encrypted := archivePath + crypto.EncryptedExt
		if err := crypto.EncryptFile(archivePath, encrypted, p.cfg.Passphrase); err != nil {
			return err
		}
		if err := os.Remove(archivePath); err != nil {
			return fmt.Errorf("remove plaintext archive: %w", err)
		}
		archivePath = encrypted
	}

	rec.Locations = p.replicator.Replicate(ctx, archivePath)

	// Best effort: the live document count enriches verification stats but
	// must not fail a backup when the primary store is unreachable.
	var docCount int64
	if count, err := p.dumper.RowCount(ctx, documentsTable); err != nil {
		logging.Warn("document count query failed", logging.Err(err))
	} else {
		docCount = count
	}

	rec.VerificationDetails = &VerificationDetails{
		Units:   1,
		Records: docCount,
		Notes:   fmt.Sprintf("%d files archived", manifest.FileCount),
	}
	return nil
}

// stageCopy recursively copies the live document tree into the staging
// directory, skipping hidden and temporary files.
func stageCopy(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if skipEntry(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func skipEntry(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, "~")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
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
