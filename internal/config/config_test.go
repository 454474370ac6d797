package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Fraud.SessionWindow)
	assert.Equal(t, 24*time.Hour, cfg.Fraud.SessionRetain)
	assert.Equal(t, time.Minute, cfg.Fraud.TimingWindow)
	assert.Equal(t, 2, cfg.Fraud.TimingThreshold)
	assert.Equal(t, 10, cfg.Fraud.AttemptHistory)
	assert.Equal(t, 2*time.Minute, cfg.Monitor.SoftTimeout)
	assert.Equal(t, "memory", cfg.Device.Storage)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "6", cfg.Pricing.NativeRate)
}

func TestDecode_YAMLOverrides(t *testing.T) {
	yaml := []byte(`
server:
  port: "9090"
pricing:
  native_rate: "7.5"
  stable_rate: "3"
fraud:
  session_window: 45m
monitor:
  soft_timeout: 5m
log:
  level: debug
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "7.5", cfg.Pricing.NativeRate)
	assert.Equal(t, "3", cfg.Pricing.StableRate)
	assert.Equal(t, 45*time.Minute, cfg.Fraud.SessionWindow)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.SoftTimeout)
	assert.Equal(t, "debug", cfg.Log.GetLevel())
	assert.Equal(t, "stdout", cfg.Log.GetOutput())
}
