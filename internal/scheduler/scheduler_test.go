package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsBadExpression(t *testing.T) {
	s := New()
	err := s.Register("backup", "whenever", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Empty(t, s.Status())
}

func TestStatusBeforeFirstRun(t *testing.T) {
	s := New()
	require.NoError(t, s.Register("full-backup", "daily", func(context.Context) error { return nil }))
	require.NoError(t, s.Register("verification", "every 6h", func(context.Context) error { return nil }))

	statuses := s.Status()
	require.Len(t, statuses, 2)

	byName := make(map[string]JobStatus, len(statuses))
	for _, st := range statuses {
		byName[st.Name] = st
	}

	full := byName["full-backup"]
	assert.Equal(t, "daily", full.Schedule)
	assert.Nil(t, full.LastRun)
	assert.Empty(t, full.LastError)
	assert.True(t, full.NextRun.After(time.Now()))

	verify := byName["verification"]
	assert.Equal(t, "every 6h", verify.Schedule)
	assert.True(t, verify.NextRun.After(time.Now()))
}

func TestStartStop(t *testing.T) {
	s := New()
	require.NoError(t, s.Register("retention", "daily", func(context.Context) error { return nil }))

	s.Start()
	// Second start is a no-op rather than doubling the goroutines.
	s.Start()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	// Stopping again must not panic or block.
	s.Stop()
}
