package backup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionproject/bastion/internal/backup"
	apperrors "github.com/bastionproject/bastion/internal/errors"
	"github.com/bastionproject/bastion/internal/testutil"
)

func newRecord(id string, status backup.Status) *backup.Record {
	return &backup.Record{
		ID:             id,
		Timestamp:      time.Now(),
		Type:           backup.TypeFull,
		Status:         status,
		RetentionUntil: time.Now().AddDate(0, 0, 30),
	}
}

func TestStorePutGet(t *testing.T) {
	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)

	rec := newRecord(backup.NewID(backup.KindFull), backup.StatusInProgress)
	require.NoError(t, store.Put(rec))

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, backup.StatusInProgress, got.Status)

	// One pretty-printed JSON file per record.
	path := filepath.Join(layout.DatabaseMetadataDir(), rec.ID+".json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"id\"")

	// No stray temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStoreGetMissing(t *testing.T) {
	store := testutil.NewStore(t, testutil.NewLayout(t))

	_, err := store.Get("full_0_deadbeef")
	assert.ErrorIs(t, err, apperrors.ErrBackupNotFound)
}

func TestStoreRejectsStatusRegression(t *testing.T) {
	store := testutil.NewStore(t, testutil.NewLayout(t))

	rec := newRecord(backup.NewID(backup.KindFull), backup.StatusInProgress)
	require.NoError(t, store.Put(rec))

	rec.Status = backup.StatusVerified
	require.NoError(t, store.Put(rec))

	rec.Status = backup.StatusCompleted
	err := store.Put(rec)
	require.Error(t, err)

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, backup.StatusVerified, got.Status)
}

func TestStoreVerifiedMonotonic(t *testing.T) {
	store := testutil.NewStore(t, testutil.NewLayout(t))

	rec := newRecord(backup.NewID(backup.KindFull), backup.StatusCompleted)
	rec.Verified = true
	require.NoError(t, store.Put(rec))

	rec.Verified = false
	err := store.Put(rec)
	require.Error(t, err)
}

func TestStoreReloadsFromDisk(t *testing.T) {
	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)

	dbRec := newRecord(backup.NewID(backup.KindFull), backup.StatusCompleted)
	docRec := newRecord(backup.NewID(backup.KindDocuments), backup.StatusCompleted)
	docRec.Type = backup.TypeSnapshot
	require.NoError(t, store.Put(dbRec))
	require.NoError(t, store.Put(docRec))

	// Fresh store over the same root sees both metadata directories.
	reopened := testutil.NewStore(t, layout)
	records, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStoreListNewestFirst(t *testing.T) {
	store := testutil.NewStore(t, testutil.NewLayout(t))

	old := newRecord(backup.NewID(backup.KindFull), backup.StatusCompleted)
	old.Timestamp = time.Now().Add(-time.Hour)
	newer := newRecord(backup.NewID(backup.KindFull), backup.StatusCompleted)
	require.NoError(t, store.Put(old))
	require.NoError(t, store.Put(newer))

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer.ID, records[0].ID)
}

func TestStoreDelete(t *testing.T) {
	layout := testutil.NewLayout(t)
	store := testutil.NewStore(t, layout)

	rec := newRecord(backup.NewID(backup.KindFull), backup.StatusCompleted)
	require.NoError(t, store.Put(rec))
	require.NoError(t, store.Delete(rec.ID))

	_, err := store.Get(rec.ID)
	assert.ErrorIs(t, err, apperrors.ErrBackupNotFound)
	_, err = os.Stat(filepath.Join(layout.DatabaseMetadataDir(), rec.ID+".json"))
	assert.True(t, os.IsNotExist(err))
}
