package core

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/control"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/demo"
)

// Snapshot is the periodic telemetry payload
type Snapshot struct {
	InstanceID       string  `msgpack:"instance_id"`
	State            string  `msgpack:"state"`
	FallbackVSync    bool    `msgpack:"fallback_vsync"`
	FrameNumber      uint32  `msgpack:"frame_number"`
	UpdateReadyCount int     `msgpack:"update_ready_count"`
	UpdatePasses     uint64  `msgpack:"update_passes"`
	RenderPasses     uint64  `msgpack:"render_passes"`
	VSyncTicks       uint64  `msgpack:"vsync_ticks"`
	NextSyncTimeMs   uint32  `msgpack:"next_sync_time_ms"`
	FPSMean          float64 `msgpack:"fps_mean"`
	JitterMeanS      float64 `msgpack:"jitter_mean_s"`
	UptimeS          float64 `msgpack:"uptime_s"`
}

func (s *Service) snapshot() Snapshot {
	stats := s.pipeline.Stats()

	snap := Snapshot{
		InstanceID:       stats.ID,
		State:            stats.State,
		FallbackVSync:    stats.FallbackVSync,
		FrameNumber:      stats.Sync.FrameNumber,
		UpdateReadyCount: stats.Sync.UpdateReadyCount,
		UpdatePasses:     stats.Sync.UpdatePasses,
		RenderPasses:     stats.Sync.RenderPasses,
		VSyncTicks:       stats.Sync.VSyncTicks,
		NextSyncTimeMs:   stats.Prediction.NextSyncTimeMs,
		UptimeS:          s.uptime().Seconds(),
	}
	if stats.FrameInterval != nil {
		snap.FPSMean = stats.FrameInterval.FPSMean
		snap.JitterMeanS = stats.FrameInterval.JitterMean
	}
	return snap
}

func (s *Service) uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

// getStatus returns the current service status
func (s *Service) getStatus() map[string]interface{} {
	stats := s.pipeline.Stats()

	status := map[string]interface{}{
		"instance_id":    stats.ID,
		"uptime_s":       s.uptime().Seconds(),
		"state":          stats.State,
		"fallback_vsync": stats.FallbackVSync,
		"sync": map[string]interface{}{
			"frame_number":         stats.Sync.FrameNumber,
			"update_ready_count":   stats.Sync.UpdateReadyCount,
			"maximum_update_count": stats.Sync.MaximumUpdateCount,
			"vsyncs_per_render":    stats.Sync.VSyncsPerRender,
			"sleeping":             stats.Sync.Sleeping,
			"update_passes":        stats.Sync.UpdatePasses,
			"render_passes":        stats.Sync.RenderPasses,
			"vsync_ticks":          stats.Sync.VSyncTicks,
			"requests_serviced":    stats.Sync.RequestsServiced,
		},
		"prediction": map[string]interface{}{
			"last_frame_delta_s": stats.Prediction.LastFrameDeltaSeconds,
			"last_sync_time_ms":  stats.Prediction.LastSyncTimeMs,
			"next_sync_time_ms":  stats.Prediction.NextSyncTimeMs,
		},
		"demo": map[string]interface{}{
			"update_passes":     s.scene.Passes(),
			"frames_rendered":   s.renderer.Frames(),
			"surfaces_replaced": s.renderer.Replaced(),
			"notifications":     s.notifier.Triggers(),
		},
	}

	if stats.FrameInterval != nil {
		status["frame_interval"] = map[string]interface{}{
			"samples":     stats.FrameInterval.Samples,
			"mean_ms":     float64(stats.FrameInterval.MeanInterval.Microseconds()) / 1000,
			"fps_mean":    stats.FrameInterval.FPSMean,
			"fps_min":     stats.FrameInterval.FPSMin,
			"fps_max":     stats.FrameInterval.FPSMax,
			"jitter_mean": stats.FrameInterval.JitterMean,
		}
	}

	if s.emitter != nil {
		status["mqtt"] = s.emitter.Stats()
	}

	return status
}

func (s *Service) callbacks() control.CommandCallbacks {
	return control.CommandCallbacks{
		OnGetStatus:         s.getStatus,
		OnPause:             s.pause,
		OnResume:            s.resume,
		OnRequestUpdate:     s.requestUpdate,
		OnRequestUpdateOnce: s.requestUpdateOnce,
		OnSetRefreshRate:    s.pipeline.SetRenderRefreshRate,
		OnSetVisible:        s.setVisible,
		OnReplaceSurface:    s.replaceSurface,
		OnSurfaceLost:       s.surfaceLost,
		OnShutdown:          s.shutdown,
	}
}

func (s *Service) pause() error {
	s.pipeline.Pause()
	slog.Info("pipeline paused via control plane", "state", s.pipeline.State())
	return nil
}

func (s *Service) resume() error {
	s.pipeline.Resume()
	slog.Info("pipeline resumed via control plane", "state", s.pipeline.State())
	return nil
}

// requestUpdate also restarts the demo animation so the request has
// something to draw.
func (s *Service) requestUpdate() error {
	s.scene.Animate()
	s.pipeline.RequestUpdate()
	return nil
}

func (s *Service) requestUpdateOnce() error {
	s.pipeline.RequestUpdateOnce()
	return nil
}

func (s *Service) setVisible(visible bool) error {
	s.pipeline.SetVisible(visible)
	slog.Info("pipeline visibility changed", "visible", visible, "state", s.pipeline.State())
	return nil
}

func (s *Service) replaceSurface(name string) error {
	if name == "" {
		return fmt.Errorf("surface name is required")
	}
	if !s.pipeline.ReplaceSurface(demo.NewSurface(name)) {
		return fmt.Errorf("surface %q was not accepted", name)
	}
	slog.Info("surface replaced via control plane", "surface", name)
	return nil
}

func (s *Service) surfaceLost() error {
	s.pipeline.SurfaceLost()
	slog.Warn("surface marked lost via control plane")
	return nil
}

func (s *Service) shutdown() error {
	s.mu.RLock()
	cancel := s.cancelCtx
	s.mu.RUnlock()

	if cancel == nil {
		return fmt.Errorf("service is not running")
	}
	slog.Info("shutdown requested via control plane")
	cancel()
	return nil
}
