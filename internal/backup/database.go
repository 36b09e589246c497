package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/bastionproject/bastion/internal/checksum"
	"github.com/bastionproject/bastion/internal/config"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/metrics"
	"github.com/bastionproject/bastion/internal/tools"
)

// Side-artifact and compression extensions for relational dumps.
const (
	DumpExt       = ".dump"
	SchemaSideExt = ".schema.sql"
	DataSideExt   = ".data.sql"
	GzipExt       = ".gz"
)

// DatabaseProducer creates full and incremental backups of the relational
// store by driving the external dump tool.
type DatabaseProducer struct {
	layout        Layout
	store         Repository
	dumper        tools.Dumper
	replicator    *Replicator
	guard         *Guard
	cfg           config.DatabaseConfig
	retentionDays int
}

// NewDatabaseProducer wires a producer. The guard is shared with the
// document producer so only one backup of any kind runs at a time.
func NewDatabaseProducer(layout Layout, store Repository, dumper tools.Dumper,
	replicator *Replicator, guard *Guard, cfg config.DatabaseConfig, retentionDays int) *DatabaseProducer {
	return &DatabaseProducer{
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
func (p *DatabaseProducer) Busy() bool {
	return p.guard.Busy()
}

// ProduceFull creates a full backup. Fails immediately with
// ErrBackupInProgress when another backup is running.
func (p *DatabaseProducer) ProduceFull(ctx context.Context, tags map[string]string) (*Record, error) {
	if err := p.guard.Acquire(); err != nil {
		return nil, err
	}
	defer p.guard.Release()
	return p.produce(ctx, TypeFull, KindFull, p.layout.DatabaseFullDir(), tags)
}

// ProduceIncremental creates an incremental backup.
func (p *DatabaseProducer) ProduceIncremental(ctx context.Context) (*Record, error) {
	if err := p.guard.Acquire(); err != nil {
		return nil, err
	}
	defer p.guard.Release()
	return p.produce(ctx, TypeIncremental, KindIncremental, p.layout.DatabaseIncrementalDir(), nil)
}

// StartFull claims the guard synchronously and runs the full backup in
// the background, so admission and rejection are race-free for callers
// that cannot wait for the run itself.
func (p *DatabaseProducer) StartFull(tags map[string]string) error {
	return p.start(TypeFull, KindFull, p.layout.DatabaseFullDir(), tags)
}

// StartIncremental is StartFull for incremental backups.
func (p *DatabaseProducer) StartIncremental() error {
	return p.start(TypeIncremental, KindIncremental, p.layout.DatabaseIncrementalDir(), nil)
}

func (p *DatabaseProducer) start(typ Type, kind, dir string, tags map[string]string) error {
	if err := p.guard.Acquire(); err != nil {
		return err
	}
	go func() {
		defer p.guard.Release()
		if _, err := p.produce(context.Background(), typ, kind, dir, tags); err != nil {
			logging.Error("background database backup failed",
				logging.String("type", string(typ)), logging.Err(err))
		}
	}()
	return nil
}

// produce runs one backup end to end. The caller holds the guard.
func (p *DatabaseProducer) produce(ctx context.Context, typ Type, kind, dir string, tags map[string]string) (*Record, error) {
	start := time.Now()
	rec := &Record{
		ID:             NewID(kind),
		Timestamp:      start,
		Type:           typ,
		Status:         StatusInProgress,
		RetentionUntil: start.AddDate(0, 0, p.retentionDays),
		Tags:           tags,
	}
	if err := p.store.Put(rec); err != nil {
		return nil, fmt.Errorf("persist initial record: %w", err)
	}

	logging.Info("database backup started",
		logging.String("id", rec.ID),
		logging.String("type", string(typ)))

	err := p.run(ctx, rec, dir)
	rec.Duration = time.Since(start).Milliseconds()

	if err != nil {
		// Persist the failure for audit before propagating.
		rec.Status = StatusFailed
		rec.Error = err.Error()
		if perr := p.store.Put(rec); perr != nil {
			logging.Error("persist failed record", logging.String("id", rec.ID), logging.Err(perr))
		}
		metrics.BackupOperations.WithLabelValues(string(typ), "failed").Inc()
		return nil, fmt.Errorf("backup %s: %w", rec.ID, err)
	}

	rec.Status = StatusCompleted
	if err := p.store.Put(rec); err != nil {
		return nil, fmt.Errorf("persist completed record: %w", err)
	}

	metrics.BackupOperations.WithLabelValues(string(typ), "completed").Inc()
	metrics.BackupDuration.WithLabelValues(string(typ)).Observe(time.Since(start).Seconds())
	metrics.BackupSize.WithLabelValues(string(typ)).Set(float64(rec.Size))

	logging.Info("database backup completed",
		logging.String("id", rec.ID),
		logging.Int64("size", rec.Size),
		logging.Int64("durationMs", rec.Duration),
		logging.Int("locations", len(rec.Locations)))
	return rec, nil
}

func (p *DatabaseProducer) run(ctx context.Context, rec *Record, dir string) error {
	artifact := filepath.Join(dir, rec.ID+DumpExt)

	if _, err := p.dumper.Dump(ctx, tools.DumpRequest{OutputPath: artifact}); err != nil {
		return err
	}

	// Side artifacts are a convenience; their failure never fails the backup.
	if p.cfg.SideArtifacts && rec.Type == TypeFull {
		p.dumpSide(ctx, dir, rec.ID)
	}

	sum, err := checksum.File(artifact)
	if err != nil {
		return err
	}
	rec.Checksum = sum

	info, err := os.Stat(artifact)
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	rec.Size = info.Size()

	if p.cfg.Compress {
		compressed, err := compressFile(artifact)
		if err != nil {
			return err
		}
		artifact = compressed
	}

	rec.Locations = p.replicator.Replicate(ctx, artifact)
	return nil
}

func (p *DatabaseProducer) dumpSide(ctx context.Context, dir, id string) {
	side := []struct {
		req tools.DumpRequest
	}{
		{tools.DumpRequest{OutputPath: filepath.Join(dir, id+SchemaSideExt), SchemaOnly: true}},
		{tools.DumpRequest{OutputPath: filepath.Join(dir, id+DataSideExt), DataOnly: true}},
	}
	for _, s := range side {
		if _, err := p.dumper.Dump(ctx, s.req); err != nil {
			logging.Warn("side artifact dump failed",
				logging.String("path", s.req.OutputPath),
				logging.Err(err))
		}
	}
}

// compressFile gzips a file in place, removing the original and returning
// the new path.
func compressFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for compression: %w", err)
	}
	defer in.Close()

	outPath := path + GzipExt
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create compressed artifact: %w", err)
	}

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		return "", fmt.Errorf("compress artifact: %w", err)
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return "", fmt.Errorf("finalize compression: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove uncompressed artifact: %w", err)
	}
	return outPath, nil
}
