package accounts_test

import (
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWithinThresholdPeriod(t *testing.T) {
	t.Run("recent time is within the window", func(t *testing.T) {
		within, err := accounts.IsWithinThresholdPeriod(time.Now().Add(-time.Hour), "24h")
		require.NoError(t, err)
		assert.True(t, within)
	})

	t.Run("stale time is outside the window", func(t *testing.T) {
		within, err := accounts.IsWithinThresholdPeriod(time.Now().Add(-25*time.Hour), "24h")
		require.NoError(t, err)
		assert.False(t, within)
	})

	t.Run("bad duration pattern", func(t *testing.T) {
		_, err := accounts.IsWithinThresholdPeriod(time.Now(), "not-a-duration")
		assert.Error(t, err)
	})
}

func TestIsOutsideThresholdPeriod(t *testing.T) {
	outside, err := accounts.IsOutsideThresholdPeriod(time.Now().Add(-25*time.Hour), "24h")
	require.NoError(t, err)
	assert.True(t, outside)

	outside, err = accounts.IsOutsideThresholdPeriod(time.Now(), "24h")
	require.NoError(t, err)
	assert.False(t, outside)
}
