package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, 2, cfg.Pipeline.MaximumUpdateCount)
	assert.Equal(t, uint32(1), cfg.Pipeline.VSyncsPerRender)
	assert.Equal(t, 120, cfg.Pipeline.HistorySize)
	assert.Equal(t, 16667, cfg.VSync.FrameIntervalUs)
	assert.Equal(t, "primary", cfg.Demo.Surface)
	assert.Equal(t, ":9090", cfg.HTTP.Listen)
	assert.True(t, cfg.HTTPEnabled())
	assert.False(t, cfg.MQTTEnabled())
	assert.Empty(t, cfg.MQTT.Topics.Control)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framepacer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instance_id: lobby-display
pipeline:
  maximum_update_count: 1
  vsyncs_per_render: 2
http:
  listen: "-"
mqtt:
  broker: tcp://localhost:1883
  topics:
    control: custom/control
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "lobby-display", cfg.InstanceID)
	assert.Equal(t, 1, cfg.Pipeline.MaximumUpdateCount)
	assert.Equal(t, uint32(2), cfg.Pipeline.VSyncsPerRender)
	assert.False(t, cfg.HTTPEnabled())
	assert.True(t, cfg.MQTTEnabled())
	assert.Equal(t, "custom/control", cfg.MQTT.Topics.Control)
	assert.Equal(t, "framepacer/status/lobby-display", cfg.MQTT.Topics.Status)
	assert.Equal(t, "framepacer/telemetry/lobby-display", cfg.MQTT.Topics.Telemetry)
	assert.Equal(t, byte(1), cfg.MQTT.QoS["control"])
	assert.Equal(t, 1000, cfg.MQTT.TelemetryIntervalMs)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("pipeline: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad instance id", "instance_id: Lobby_1", "instance_id"},
		{"negative shutdown", "shutdown_timeout_s: -1", "shutdown_timeout_s"},
		{"negative update count", "pipeline: {maximum_update_count: -1}", "maximum_update_count"},
		{"refresh rate too high", "pipeline: {vsyncs_per_render: 61}", "vsyncs_per_render"},
		{"negative interval", "vsync: {frame_interval_us: -5}", "frame_interval_us"},
		{"retry cap below delay", "vsync: {retry_delay_ms: 500, max_retry_delay_ms: 100}", "max_retry_delay_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
