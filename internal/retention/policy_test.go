package retention_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionproject/bastion/internal/retention"
)

func TestPolicyFor(t *testing.T) {
	policy, ok := retention.PolicyFor("audit_trail")
	require.True(t, ok)
	assert.Equal(t, 365, policy.RetentionPeriodDays)

	policy, ok = retention.PolicyFor("financial_records")
	require.True(t, ok)
	assert.Equal(t, 1825, policy.RetentionPeriodDays)

	_, ok = retention.PolicyFor("nonsense")
	assert.False(t, ok)
}
