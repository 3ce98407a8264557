package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrinelabs/warden/config"
	"github.com/peregrinelabs/warden/model"
	"github.com/peregrinelabs/warden/usecase"
)

func throttleConfig() *config.Config {
	cfg := config.Default()
	cfg.UserInterval = 60 * time.Second
	cfg.UserThresholds = config.ThresholdTable{
		{Attempts: 3, Delay: 10 * time.Second},
		{Attempts: 5, Delay: 60 * time.Second},
	}
	return cfg
}

func TestThrottle_EscalatingDelays(t *testing.T) {
	k := newTestKernel(t, throttleConfig())
	ctx := t.Context()

	// Two attempts stay under every threshold.
	for range 2 {
		require.NoError(t, k.throttle.Log(ctx, "user-1", ""))
	}
	require.NoError(t, k.throttle.Check(ctx, "user-1", ""))

	// The third attempt trips the first threshold.
	require.NoError(t, k.throttle.Log(ctx, "user-1", ""))

	delay, err := k.throttle.Delay(ctx, model.ThrottleUser, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, delay)

	err = k.throttle.Check(ctx, "user-1", "")
	var throttled *usecase.ThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, model.ThrottleUser, throttled.Tier)
	assert.Equal(t, 10*time.Second, throttled.Delay)

	// Once the delay since the last attempt has passed, the next attempt
	// is allowed, but it still counts.
	k.clock.Advance(11 * time.Second)
	require.NoError(t, k.throttle.Check(ctx, "user-1", ""))

	require.NoError(t, k.throttle.Log(ctx, "user-1", ""))
	require.NoError(t, k.throttle.Log(ctx, "user-1", ""))

	// Five attempts within the interval trip the second threshold.
	delay, err = k.throttle.Delay(ctx, model.ThrottleUser, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, delay)

	err = k.throttle.Check(ctx, "user-1", "")
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, 60*time.Second, throttled.Delay)
}

func TestThrottle_WindowExpiry(t *testing.T) {
	k := newTestKernel(t, throttleConfig())
	ctx := t.Context()

	for range 5 {
		require.NoError(t, k.throttle.Log(ctx, "user-1", ""))
	}
	require.Error(t, k.throttle.Check(ctx, "user-1", ""))

	// Entries age out of the counting window; nothing is deleted.
	k.clock.Advance(61 * time.Second)
	require.NoError(t, k.throttle.Check(ctx, "user-1", ""))

	delay, err := k.throttle.Delay(ctx, model.ThrottleUser, "user-1", "")
	require.NoError(t, err)
	assert.Zero(t, delay)
}

func TestThrottle_TiersAreIndependent(t *testing.T) {
	k := newTestKernel(t, throttleConfig())
	ctx := t.Context()

	for range 3 {
		require.NoError(t, k.throttle.Log(ctx, "user-1", ""))
	}

	// A different user is not affected by user-1's lockout.
	require.Error(t, k.throttle.Check(ctx, "user-1", ""))
	require.NoError(t, k.throttle.Check(ctx, "user-2", ""))

	// An anonymous attempt only consults the global tier.
	require.NoError(t, k.throttle.Check(ctx, "", ""))
}

func TestThrottle_IPTier(t *testing.T) {
	cfg := throttleConfig()
	cfg.IPInterval = 60 * time.Second
	cfg.IPThresholds = config.ThresholdTable{{Attempts: 2, Delay: 30 * time.Second}}
	k := newTestKernel(t, cfg)
	ctx := t.Context()

	require.NoError(t, k.throttle.Log(ctx, "", "10.0.0.1"))
	require.NoError(t, k.throttle.Log(ctx, "", "10.0.0.1"))

	err := k.throttle.Check(ctx, "", "10.0.0.1")
	var throttled *usecase.ThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, model.ThrottleIP, throttled.Tier)

	require.NoError(t, k.throttle.Check(ctx, "", "10.0.0.2"))
}

func TestThrottle_PruneBefore(t *testing.T) {
	k := newTestKernel(t, throttleConfig())
	ctx := t.Context()

	for range 3 {
		require.NoError(t, k.throttle.Log(ctx, "user-1", ""))
	}
	k.clock.Advance(time.Hour)
	require.NoError(t, k.throttle.Log(ctx, "user-1", ""))

	// Each Log writes one global and one user entry.
	pruned, err := k.throttle.PruneBefore(ctx, k.clock.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(6), pruned)
}
