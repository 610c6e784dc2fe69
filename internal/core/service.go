package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/control"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/demo"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/emitter"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/frametime"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/metrics"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/pipeline"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/vsync"
)

// Service is the framepacer daemon orchestrator
type Service struct {
	cfg *config.Config

	// Core components
	pipeline *pipeline.Controller
	scene    *demo.Scene
	renderer *demo.Renderer
	notifier *demo.Notifier
	registry *prom.Registry

	emitter        *emitter.MQTTEmitter
	controlHandler *control.Handler
	telemetry      *emitter.Telemetry
	httpServer     *http.Server

	// Lifecycle management
	started   time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	isRunning bool
	cancelCtx context.CancelFunc // For MQTT shutdown command
}

// NewService builds every component from cfg. Nothing runs until Run.
func NewService(cfg *config.Config) (*Service, error) {
	registry := prom.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Service{
		cfg:      cfg,
		scene:    demo.NewScene(cfg.Demo.AnimateFrames, time.Duration(cfg.Demo.UpdateCostUs)*time.Microsecond),
		renderer: demo.NewRenderer(time.Duration(cfg.Demo.RenderCostUs) * time.Microsecond),
		notifier: &demo.Notifier{},
		registry: registry,
	}

	pipeCfg := pipeline.Config{
		ID:                 cfg.InstanceID,
		MaximumUpdateCount: cfg.Pipeline.MaximumUpdateCount,
		VSyncsPerRender:    cfg.Pipeline.VSyncsPerRender,
		Scene:              s.scene,
		Renderer:           s.renderer,
		Surface:            demo.NewSurface(cfg.Demo.Surface),
		Fallback:           vsync.NewTimed(vsync.WithInterval(time.Duration(cfg.VSync.FrameIntervalUs) * time.Microsecond)),
		Retry: vsync.RetryConfig{
			MaxRetries:    cfg.VSync.MaxRetries,
			RetryDelay:    time.Duration(cfg.VSync.RetryDelayMs) * time.Millisecond,
			MaxRetryDelay: time.Duration(cfg.VSync.MaxRetryDelayMs) * time.Millisecond,
		},
		Notifier:          s.notifier,
		SampleInterval:    time.Duration(cfg.Pipeline.SampleIntervalMs) * time.Millisecond,
		FrameTimerOptions: []frametime.Option{frametime.WithHistorySize(cfg.Pipeline.HistorySize)},
	}

	// Metric labels need the ID before the controller exists.
	if pipeCfg.ID == "" {
		pipeCfg.ID = uuid.NewString()
	}

	m, err := metrics.New(registry, pipeCfg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	pipeCfg.Metrics = m

	s.pipeline, err = pipeline.New(pipeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	if cfg.MQTTEnabled() {
		s.emitter = emitter.NewMQTTEmitter(cfg)
	}

	slog.Info("configuration loaded",
		"instance_id", s.pipeline.ID(),
		"maximum_update_count", cfg.Pipeline.MaximumUpdateCount,
		"vsyncs_per_render", cfg.Pipeline.VSyncsPerRender,
		"mqtt_enabled", cfg.MQTTEnabled(),
	)

	return s, nil
}

// ID returns the pipeline instance ID
func (s *Service) ID() string { return s.pipeline.ID() }

// Run starts the service and blocks until ctx is cancelled or a shutdown
// command arrives
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	s.isRunning = true
	s.started = time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelCtx = cancel
	s.mu.Unlock()

	slog.Info("framepacer service starting", "instance_id", s.ID())

	if err := s.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	if s.cfg.HTTPEnabled() {
		if err := s.StartHealthServer(s.cfg.HTTP.Listen); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
	}

	if s.emitter != nil {
		if err := s.startMQTT(ctx); err != nil {
			return err
		}
	}

	slog.Info("framepacer service running", "instance_id", s.ID())

	<-ctx.Done()

	slog.Info("framepacer service run loop exiting")
	return nil
}

func (s *Service) startMQTT(ctx context.Context) error {
	if err := s.emitter.Connect(ctx, s.ID()); err != nil {
		return fmt.Errorf("failed to connect mqtt: %w", err)
	}

	s.controlHandler = control.NewHandler(s.cfg, s.emitter.Client, s.emitter, s.callbacks())
	if err := s.controlHandler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start control plane: %w", err)
	}

	s.telemetry = emitter.NewTelemetry(s.emitter, func() any { return s.snapshot() },
		time.Duration(s.cfg.MQTT.TelemetryIntervalMs)*time.Millisecond)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.telemetry.Run(ctx)
	}()

	return nil
}

// Shutdown stops every component. The pipeline join is bounded by ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancelCtx
	server := s.httpServer
	s.mu.Unlock()

	slog.Info("shutting down framepacer service")

	if cancel != nil {
		cancel()
	}

	stopped := make(chan error, 1)
	go func() { stopped <- s.pipeline.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			slog.Error("failed to stop pipeline", "error", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("pipeline stop: %w", ctx.Err())
	}

	if s.controlHandler != nil {
		if err := s.controlHandler.Stop(); err != nil {
			slog.Error("failed to stop control handler", "error", err)
		}
	}

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("failed to stop health server", "error", err)
		}
	}

	s.wg.Wait()

	if s.emitter != nil {
		if err := s.emitter.Disconnect(); err != nil {
			slog.Error("failed to disconnect mqtt", "error", err)
		}
	}

	s.mu.Lock()
	uptime := time.Since(s.started)
	s.isRunning = false
	s.mu.Unlock()

	slog.Info("framepacer service shutdown complete", "uptime", uptime)
	return nil
}

// ShutdownTimeout returns the configured graceful shutdown timeout
func (s *Service) ShutdownTimeout() time.Duration { return s.cfg.ShutdownTimeout() }
