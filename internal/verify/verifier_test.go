package verify_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionproject/bastion/internal/backup"
	"github.com/bastionproject/bastion/internal/testutil"
	"github.com/bastionproject/bastion/internal/verify"
)

func TestVerifyOnePass(t *testing.T) {
	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)
	rec := testutil.SeedFullBackup(t, layout, store)

	v := verify.NewVerifier(layout, store)
	check := v.VerifyOne(rec.ID)

	assert.True(t, check.Accessible)
	assert.True(t, check.StructureValid)
	assert.True(t, check.Restorable)
	assert.Equal(t, rec.Checksum, check.Checksum)
	assert.Equal(t, 1, check.ValidUnits)
	assert.Empty(t, check.Errors)

	// A pass promotes the record and sets the monotonic verified flag.
	updated, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.True(t, updated.Verified)
	assert.Equal(t, backup.StatusVerified, updated.Status)
	require.NotNil(t, updated.VerificationTimestamp)
}

func TestVerifyOneMissingRecord(t *testing.T) {
	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)

	v := verify.NewVerifier(layout, store)
	check := v.VerifyOne("full_0_deadbeef")

	assert.False(t, check.Accessible)
	assert.False(t, check.Restorable)
	assert.Contains(t, check.Errors, "backup record not found")
	assert.Contains(t, check.Errors, "file not found")
}

func TestVerifyOneMissingArtifact(t *testing.T) {
	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)
	rec := testutil.SeedFullBackup(t, layout, store)
	require.NoError(t, os.Remove(filepath.Join(layout.DatabaseFullDir(), rec.ID+backup.DumpExt)))

	v := verify.NewVerifier(layout, store)
	check := v.VerifyOne(rec.ID)

	assert.False(t, check.Restorable)
	assert.Contains(t, check.Errors, "file not found")
}

func TestVerifyOneChecksumMismatch(t *testing.T) {
	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)
	rec := testutil.SeedFullBackup(t, layout, store)

	// Corrupt the artifact body without touching the dump header.
	artifact := filepath.Join(layout.DatabaseFullDir(), rec.ID+backup.DumpExt)
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(artifact, data, 0o644))

	v := verify.NewVerifier(layout, store)
	check := v.VerifyOne(rec.ID)

	assert.True(t, check.Accessible)
	assert.False(t, check.Restorable)
	assert.Contains(t, check.Errors, "checksum mismatch")

	// A fail refreshes the timestamp but never sets the verified flag.
	updated, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.False(t, updated.Verified)
	assert.Equal(t, backup.StatusCompleted, updated.Status)
	require.NotNil(t, updated.VerificationTimestamp)
}

func TestVerifyOneBadDumpHeader(t *testing.T) {
	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)
	rec := testutil.SeedFullBackup(t, layout, store)

	artifact := filepath.Join(layout.DatabaseFullDir(), rec.ID+backup.DumpExt)
	require.NoError(t, os.WriteFile(artifact, []byte("NOTADUMP ..."), 0o644))

	v := verify.NewVerifier(layout, store)
	check := v.VerifyOne(rec.ID)

	assert.False(t, check.StructureValid)
	assert.Contains(t, check.Errors, "invalid dump header")
	assert.False(t, check.Restorable)
}

func TestDue(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-time.Hour)
	stale := now.Add(-8 * 24 * time.Hour)

	tests := []struct {
		name string
		rec  backup.Record
		want bool
	}{
		{"never verified", backup.Record{Status: backup.StatusCompleted}, true},
		{"recently verified", backup.Record{Status: backup.StatusVerified, Verified: true, VerificationTimestamp: &fresh}, false},
		{"stale verification", backup.Record{Status: backup.StatusVerified, Verified: true, VerificationTimestamp: &stale}, true},
		{"in progress", backup.Record{Status: backup.StatusInProgress}, false},
		{"failed", backup.Record{Status: backup.StatusFailed}, false},
		{"archived", backup.Record{Status: backup.StatusArchived}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verify.Due(&tt.rec, now))
		})
	}
}

func TestVerifyDue(t *testing.T) {
	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)
	due := testutil.SeedFullBackup(t, layout, store)
	testutil.SeedFullBackup(t, layout, store, testutil.WithVerified())

	v := verify.NewVerifier(layout, store)
	checks := v.VerifyDue()

	require.Len(t, checks, 1)
	assert.Equal(t, due.ID, checks[0].BackupID)
}

func TestReport(t *testing.T) {
	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)
	rec := testutil.SeedFullBackup(t, layout, store)

	v := verify.NewVerifier(layout, store)
	check := v.VerifyOne(rec.ID)

	report, err := v.Report(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, check.Restorable, report.Restorable)
	assert.Equal(t, check.Checksum, report.Checksum)

	_, err = v.Report("full_0_deadbeef")
	require.Error(t, err)
}
