package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrinelabs/warden/config"
)

func TestThresholdTable_UnmarshalText(t *testing.T) {
	var table config.ThresholdTable
	require.NoError(t, table.UnmarshalText([]byte("3:10,5:60")))

	require.Len(t, table, 2)
	assert.Equal(t, config.Threshold{Attempts: 3, Delay: 10 * time.Second}, table[0])
	assert.Equal(t, config.Threshold{Attempts: 5, Delay: 60 * time.Second}, table[1])
}

func TestThresholdTable_UnmarshalText_Invalid(t *testing.T) {
	var table config.ThresholdTable
	assert.Error(t, table.UnmarshalText([]byte("nonsense")))
	assert.Error(t, table.UnmarshalText([]byte("a:10")))
	assert.Error(t, table.UnmarshalText([]byte("3:b")))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"email"}, cfg.LoginAttributes)
	assert.Equal(t, 72*time.Hour, cfg.ActivationTTL)
	assert.Equal(t, 4*time.Hour, cfg.ReminderTTL)
	assert.False(t, cfg.SingleSession)
	assert.Equal(t, '*', cfg.WildcardRune())
	assert.Equal(t, 15*time.Minute, cfg.GlobalInterval)
	require.Len(t, cfg.GlobalThresholds, 1)
	assert.Equal(t, 16, cfg.GlobalThresholds[0].Attempts)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("WARDEN_THROTTLE_USER_THRESHOLDS", "3:10,5:60")
	t.Setenv("WARDEN_SINGLE_SESSION", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.SingleSession)
	require.Len(t, cfg.UserThresholds, 2)
	assert.Equal(t, 60*time.Second, cfg.UserThresholds[1].Delay)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	bad := config.Default()
	bad.Wildcard = "**"
	assert.Error(t, bad.Validate())

	bad = config.Default()
	bad.LoginAttributes = nil
	assert.Error(t, bad.Validate())

	bad = config.Default()
	bad.UserThresholds = config.ThresholdTable{
		{Attempts: 5, Delay: time.Second},
		{Attempts: 3, Delay: time.Second},
	}
	assert.Error(t, bad.Validate(), "thresholds must ascend by attempt count")
}
