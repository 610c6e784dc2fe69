package core

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/pipeline"
)

// HealthStatus represents the health state of the framepacer service
type HealthStatus struct {
	Status        string `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64  `json:"uptime_seconds"`
	State         string `json:"state"`
	FrameNumber   uint32 `json:"frame_number"`
	FallbackVSync bool   `json:"fallback_vsync"`
	MQTTEnabled   bool   `json:"mqtt_enabled"`
	MQTTConnected bool   `json:"mqtt_connected"`
}

// HealthCheck returns the current health status of the service
func (s *Service) HealthCheck() HealthStatus {
	stats := s.pipeline.Stats()

	status := HealthStatus{
		Status:        "healthy",
		UptimeSeconds: int64(s.uptime().Seconds()),
		State:         stats.State,
		FrameNumber:   stats.Sync.FrameNumber,
		FallbackVSync: stats.FallbackVSync,
		MQTTEnabled:   s.emitter != nil,
	}

	if s.emitter != nil {
		status.MQTTConnected = s.emitter.Stats().Connected
	}

	switch state := s.pipeline.State(); {
	case state == pipeline.Ready || state == pipeline.Stopped:
		status.Status = "unhealthy"
	case status.MQTTEnabled && !status.MQTTConnected:
		status.Status = "degraded"
	}

	return status
}

// LivenessHandler handles /healthz (simple liveness check)
func (s *Service) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "alive",
		"uptime": int64(s.uptime().Seconds()),
	})
}

// ReadinessHandler handles /readiness. Degraded is still ready.
func (s *Service) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := s.HealthCheck()

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(health)
}

// Handler returns the health and metrics mux
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// StartHealthServer binds addr and serves Handler in the background.
// Shutdown closes it.
func (s *Service) StartHealthServer(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = server
	s.mu.Unlock()

	slog.Info("starting health check server",
		"addr", ln.Addr().String(),
		"endpoints", []string{"/healthz", "/readiness", "/metrics"},
	)

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return nil
}
