package backup_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionproject/bastion/internal/archive"
	"github.com/bastionproject/bastion/internal/backup"
	"github.com/bastionproject/bastion/internal/checksum"
	"github.com/bastionproject/bastion/internal/config"
	"github.com/bastionproject/bastion/internal/crypto"
	"github.com/bastionproject/bastion/internal/testutil"
)

func newDocumentProducer(t *testing.T, cfg config.DocumentsConfig,
	dumper *testutil.FakeDumper) (*backup.DocumentProducer, *backup.Store, backup.Layout) {
	t.Helper()

	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)
	replicator := backup.NewReplicator(&testutil.FakeCopier{}, nil)
	producer := backup.NewDocumentProducer(layout, store, dumper, replicator,
		&backup.Guard{}, cfg, 30)
	return producer, store, layout
}

func TestDocumentProduce(t *testing.T) {
	docs := filepath.Join(t.TempDir(), "docs")
	testutil.SeedDocumentTree(t, docs, 3)

	dumper := &testutil.FakeDumper{RowCountN: 42}
	producer, _, layout := newDocumentProducer(t, config.DocumentsConfig{Path: docs}, dumper)

	rec, err := producer.Produce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, backup.StatusCompleted, rec.Status)
	assert.Equal(t, backup.TypeSnapshot, rec.Type)
	assert.Equal(t, "docs", rec.Kind())

	// The archive exists and its checksum matches the record.
	archivePath := filepath.Join(layout.DocumentsSnapshotsDir(), rec.ID+backup.ArchiveExt)
	sum, err := checksum.File(archivePath)
	require.NoError(t, err)
	assert.Equal(t, sum, rec.Checksum)

	// The archive lists the manifest plus the staged files.
	entries, err := archive.List(archivePath)
	require.NoError(t, err)
	assert.Contains(t, entries, archive.ManifestName)
	assert.Contains(t, entries, "contracts/doc00.pdf")

	require.NotNil(t, rec.VerificationDetails)
	assert.Equal(t, 1, rec.VerificationDetails.Units)
	assert.Equal(t, int64(42), rec.VerificationDetails.Records)

	// Staging area is cleaned up.
	staged, err := os.ReadDir(layout.DocumentsStagingDir())
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestDocumentProduceSkipsHiddenAndTemp(t *testing.T) {
	docs := filepath.Join(t.TempDir(), "docs")
	testutil.SeedDocumentTree(t, docs, 1)
	require.NoError(t, os.WriteFile(filepath.Join(docs, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "draft.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "notes~"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(docs, ".cache"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, ".cache", "blob"), []byte("x"), 0o644))

	producer, _, layout := newDocumentProducer(t, config.DocumentsConfig{Path: docs}, &testutil.FakeDumper{})

	rec, err := producer.Produce(context.Background())
	require.NoError(t, err)

	entries, err := archive.List(filepath.Join(layout.DocumentsSnapshotsDir(), rec.ID+backup.ArchiveExt))
	require.NoError(t, err)

	assert.Contains(t, entries, "contracts/doc00.pdf")
	for _, entry := range entries {
		assert.NotContains(t, entry, ".hidden")
		assert.NotContains(t, entry, ".tmp")
		assert.NotContains(t, entry, "~")
		assert.NotContains(t, entry, ".cache")
	}
}

func TestDocumentProduceEncrypted(t *testing.T) {
	docs := filepath.Join(t.TempDir(), "docs")
	testutil.SeedDocumentTree(t, docs, 2)

	cfg := config.DocumentsConfig{Path: docs, Encrypt: true, Passphrase: "correct horse"}
	producer, _, layout := newDocumentProducer(t, cfg, &testutil.FakeDumper{})

	rec, err := producer.Produce(context.Background())
	require.NoError(t, err)

	plain := filepath.Join(layout.DocumentsSnapshotsDir(), rec.ID+backup.ArchiveExt)
	encrypted := plain + crypto.EncryptedExt

	// Only the encrypted variant remains on disk.
	_, err = os.Stat(plain)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(encrypted)
	assert.NoError(t, err)

	// The recorded checksum covers the plaintext archive: decrypting the
	// variant yields a file with exactly that digest.
	restored := filepath.Join(t.TempDir(), "restored.tar.gz")
	require.NoError(t, crypto.DecryptFile(encrypted, restored, cfg.Passphrase))
	sum, err := checksum.File(restored)
	require.NoError(t, err)
	assert.Equal(t, rec.Checksum, sum)
}

func TestDocumentProduceCountFailureNonFatal(t *testing.T) {
	docs := filepath.Join(t.TempDir(), "docs")
	testutil.SeedDocumentTree(t, docs, 1)

	dumper := &testutil.FakeDumper{RowErr: assert.AnError}
	producer, _, _ := newDocumentProducer(t, config.DocumentsConfig{Path: docs}, dumper)

	rec, err := producer.Produce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, backup.StatusCompleted, rec.Status)
	assert.Equal(t, int64(0), rec.VerificationDetails.Records)
}
