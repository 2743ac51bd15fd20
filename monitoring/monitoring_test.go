package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NotNil(t, config)
	assert.True(t, config.Enabled)
	assert.NotEmpty(t, config.ListenAddress)
	assert.Equal(t, "/metrics", config.MetricsPath)
	require.NoError(t, config.Validate())
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid default", func(*Config) {}, false},
		{"disabled skips validation", func(c *Config) {
			c.Enabled = false
			c.ListenAddress = ""
		}, false},
		{"empty listen address", func(c *Config) { c.ListenAddress = "" }, true},
		{"empty metrics path", func(c *Config) { c.MetricsPath = "" }, true},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }, true},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }, true},
		{"zero system interval", func(c *Config) { c.SystemMetricsInterval = 0 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			err := config.Validate()
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMonitorDisabled(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = false

	m, err := New(config)
	require.NoError(t, err)
	assert.False(t, m.IsEnabled())
	assert.Empty(t, m.GetMetricsURL())
	require.NoError(t, m.Start())
}

func TestMonitorRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.ReadTimeout = -time.Second

	_, err := New(config)
	assert.Error(t, err)
}

func TestGetMetricsURL(t *testing.T) {
	config := DefaultConfig()
	config.ListenAddress = ":9999"

	m, err := New(config)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/metrics", m.GetMetricsURL())
}
