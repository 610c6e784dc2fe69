package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete framepacer daemon configuration
type Config struct {
	InstanceID       string         `yaml:"instance_id"`        // Optional; a UUID is generated if empty
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Pipeline         PipelineConfig `yaml:"pipeline"`
	VSync            VSyncConfig    `yaml:"vsync"`
	Demo             DemoConfig     `yaml:"demo"`
	HTTP             HTTPConfig     `yaml:"http"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
}

// PipelineConfig contains frame pacing settings
type PipelineConfig struct {
	MaximumUpdateCount int    `yaml:"maximum_update_count"` // update passes render may lag behind (default: 2)
	VSyncsPerRender    uint32 `yaml:"vsyncs_per_render"`    // display ticks per render (default: 1)
	HistorySize        int    `yaml:"history_size"`         // frame intervals kept for statistics (default: 120)
	SampleIntervalMs   int    `yaml:"sample_interval_ms"`   // metrics gauge refresh (default: 1000)
}

// VSyncConfig contains display tick source settings
type VSyncConfig struct {
	FrameIntervalUs int `yaml:"frame_interval_us"`  // timed monitor interval (default: 16667)
	MaxRetries      int `yaml:"max_retries"`        // monitor initialization retries (default: 3)
	RetryDelayMs    int `yaml:"retry_delay_ms"`     // initial retry delay (default: 100)
	MaxRetryDelayMs int `yaml:"max_retry_delay_ms"` // retry delay cap (default: 2000)
}

// DemoConfig contains the simulated scene settings
type DemoConfig struct {
	Surface       string `yaml:"surface"`        // initial surface name (default: "primary")
	AnimateFrames int    `yaml:"animate_frames"` // passes the scene keeps updating after a request (default: 60)
	RenderCostUs  int    `yaml:"render_cost_us"` // simulated render time per pass (default: 2000)
	UpdateCostUs  int    `yaml:"update_cost_us"` // simulated update time per pass (default: 1000)
}

// HTTPConfig contains the metrics/health listener settings
type HTTPConfig struct {
	Listen string `yaml:"listen"` // default: ":9090"; "-" disables
}

// MQTTConfig contains MQTT broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker              string          `yaml:"broker"`
	ClientID            string          `yaml:"client_id"`
	Topics              MQTTTopics      `yaml:"topics"`
	QoS                 map[string]byte `yaml:"qos"`
	TelemetryIntervalMs int             `yaml:"telemetry_interval_ms"` // default: 1000
}

// MQTTTopics contains topic templates
type MQTTTopics struct {
	Control   string `yaml:"control"`
	Status    string `yaml:"status"`
	Telemetry string `yaml:"telemetry"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a validated configuration with every default applied
func Default() *Config {
	var cfg Config
	_ = Validate(&cfg)
	return &cfg
}

// ShutdownTimeout returns the graceful shutdown timeout
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// MQTTEnabled reports whether a broker is configured
func (c *Config) MQTTEnabled() bool { return c.MQTT.Broker != "" }

// HTTPEnabled reports whether the metrics/health listener is enabled
func (c *Config) HTTPEnabled() bool { return c.HTTP.Listen != "-" }
