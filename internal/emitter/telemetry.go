// Package emitter publishes pipeline telemetry and control responses over
// MQTT.
package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// TelemetryPublisher delivers one encoded telemetry message.
type TelemetryPublisher interface {
	PublishTelemetry(payload []byte) error
}

// Telemetry periodically encodes a snapshot with msgpack and publishes it.
type Telemetry struct {
	publisher TelemetryPublisher
	snapshot  func() any
	interval  time.Duration

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewTelemetry creates a telemetry loop. snapshot is called once per
// interval from the loop goroutine.
func NewTelemetry(publisher TelemetryPublisher, snapshot func() any, interval time.Duration) *Telemetry {
	if interval <= 0 {
		interval = time.Second
	}
	return &Telemetry{publisher: publisher, snapshot: snapshot, interval: interval}
}

// Run publishes until ctx is done. Publish failures are logged and counted;
// they never stop the loop.
func (t *Telemetry) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	slog.Info("emitter: telemetry started", "interval", t.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("emitter: telemetry stopped", "sent", t.sent.Load(), "failed", t.failed.Load())
			return nil
		case <-ticker.C:
			if err := t.PublishOnce(); err != nil {
				slog.Warn("emitter: telemetry publish failed", "error", err)
			}
		}
	}
}

// PublishOnce encodes and publishes one snapshot.
func (t *Telemetry) PublishOnce() error {
	payload, err := msgpack.Marshal(t.snapshot())
	if err != nil {
		t.failed.Add(1)
		return fmt.Errorf("emitter: encode telemetry: %w", err)
	}

	if err := t.publisher.PublishTelemetry(payload); err != nil {
		t.failed.Add(1)
		return err
	}

	t.sent.Add(1)
	return nil
}

// Sent returns the number of published messages.
func (t *Telemetry) Sent() uint64 { return t.sent.Load() }

// Failed returns the number of messages that could not be published.
func (t *Telemetry) Failed() uint64 { return t.failed.Load() }
