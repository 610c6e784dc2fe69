package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

const maxVSyncsPerRender = 60

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	// instance_id is optional, but must be topic-safe when set
	if cfg.InstanceID != "" && !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS < 0 {
		return fmt.Errorf("shutdown_timeout_s must be >= 0")
	}
	if cfg.ShutdownTimeoutS == 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if err := validatePipeline(&cfg.Pipeline); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := validateVSync(&cfg.VSync); err != nil {
		return fmt.Errorf("vsync: %w", err)
	}
	validateDemo(&cfg.Demo)

	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = ":9090"
	}

	validateMQTT(cfg)
	return nil
}

func validatePipeline(p *PipelineConfig) error {
	if p.MaximumUpdateCount < 0 {
		return fmt.Errorf("maximum_update_count must be >= 1")
	}
	if p.MaximumUpdateCount == 0 {
		p.MaximumUpdateCount = 2 // double buffering
	}
	if p.VSyncsPerRender > maxVSyncsPerRender {
		return fmt.Errorf("vsyncs_per_render must be <= %d, got %d", maxVSyncsPerRender, p.VSyncsPerRender)
	}
	if p.VSyncsPerRender == 0 {
		p.VSyncsPerRender = 1
	}
	if p.HistorySize < 0 {
		return fmt.Errorf("history_size must be >= 0")
	}
	if p.HistorySize == 0 {
		p.HistorySize = 120
	}
	if p.SampleIntervalMs <= 0 {
		p.SampleIntervalMs = 1000
	}
	return nil
}

func validateVSync(v *VSyncConfig) error {
	if v.FrameIntervalUs < 0 {
		return fmt.Errorf("frame_interval_us must be > 0")
	}
	if v.FrameIntervalUs == 0 {
		v.FrameIntervalUs = 16667
	}
	if v.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if v.MaxRetries == 0 {
		v.MaxRetries = 3
	}
	if v.RetryDelayMs <= 0 {
		v.RetryDelayMs = 100
	}
	if v.MaxRetryDelayMs <= 0 {
		v.MaxRetryDelayMs = 2000
	}
	if v.MaxRetryDelayMs < v.RetryDelayMs {
		return fmt.Errorf("max_retry_delay_ms (%d) must be >= retry_delay_ms (%d)", v.MaxRetryDelayMs, v.RetryDelayMs)
	}
	return nil
}

func validateDemo(d *DemoConfig) {
	if d.Surface == "" {
		d.Surface = "primary"
	}
	if d.AnimateFrames <= 0 {
		d.AnimateFrames = 60
	}
	if d.RenderCostUs <= 0 {
		d.RenderCostUs = 2000
	}
	if d.UpdateCostUs <= 0 {
		d.UpdateCostUs = 1000
	}
}

func validateMQTT(cfg *Config) {
	if cfg.MQTT.Broker == "" {
		return
	}

	id := cfg.InstanceID
	if id == "" {
		id = "default"
	}

	// Set default topics if not provided
	if cfg.MQTT.Topics.Control == "" {
		cfg.MQTT.Topics.Control = fmt.Sprintf("framepacer/control/%s", id)
	}
	if cfg.MQTT.Topics.Status == "" {
		cfg.MQTT.Topics.Status = fmt.Sprintf("framepacer/status/%s", id)
	}
	if cfg.MQTT.Topics.Telemetry == "" {
		cfg.MQTT.Topics.Telemetry = fmt.Sprintf("framepacer/telemetry/%s", id)
	}

	// Set default QoS if not provided
	if cfg.MQTT.QoS == nil {
		cfg.MQTT.QoS = map[string]byte{
			"control":   1,
			"status":    1,
			"telemetry": 0,
		}
	}

	if cfg.MQTT.TelemetryIntervalMs <= 0 {
		cfg.MQTT.TelemetryIntervalMs = 1000
	}
}
