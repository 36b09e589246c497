package backup_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionproject/bastion/internal/backup"
)

func TestNewIDUnique(t *testing.T) {
	const n = 500

	var mu sync.Mutex
	ids := make(map[string]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := backup.NewID(backup.KindFull)
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n, "every generated id must be distinct")
}

func TestNewIDFormat(t *testing.T) {
	id := backup.NewID(backup.KindDocuments)
	parts := strings.SplitN(id, "_", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "docs", parts[0])
	assert.NotEmpty(t, parts[1])
	assert.Len(t, parts[2], 8)
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to backup.Status
		ok       bool
	}{
		{backup.StatusInProgress, backup.StatusCompleted, true},
		{backup.StatusInProgress, backup.StatusFailed, true},
		{backup.StatusCompleted, backup.StatusVerified, true},
		{backup.StatusVerified, backup.StatusArchived, true},
		{backup.StatusCompleted, backup.StatusArchived, true},
		{backup.StatusVerified, backup.StatusCompleted, false},
		{backup.StatusArchived, backup.StatusCompleted, false},
		{backup.StatusFailed, backup.StatusCompleted, false},
		{backup.StatusCompleted, backup.StatusInProgress, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestComputeStats(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-2 * time.Hour)

	records := []*backup.Record{
		{ID: "a", Type: backup.TypeFull, Status: backup.StatusCompleted, Size: 100, Timestamp: earlier},
		{ID: "b", Type: backup.TypeFull, Status: backup.StatusVerified, Size: 200, Timestamp: now},
		{ID: "c", Type: backup.TypeIncremental, Status: backup.StatusFailed, Size: 0, Timestamp: now},
	}

	stats := backup.ComputeStats(records)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, int64(300), stats.TotalSize)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	require.NotNil(t, stats.LastFull)
	assert.True(t, stats.LastFull.Equal(now))
	assert.Nil(t, stats.LastIncremental, "failed backups never count as last run")
}
