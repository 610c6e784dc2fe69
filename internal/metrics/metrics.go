// Package metrics exports frame pipeline activity as Prometheus collectors.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/threadsync"
)

const namespace = "framepacer"

// States lists every pipeline state label, so the state gauge always
// exposes one series per state.
var States = []string{"ready", "running", "paused", "paused_while_hidden", "stopped"}

// Pipeline holds the collectors for one pipeline instance.
//
// It implements worker.Recorder.
type Pipeline struct {
	updatePasses      *prom.CounterVec
	renderPasses      *prom.CounterVec
	vsyncTicks        *prom.CounterVec
	vsyncMissed       prom.Counter
	surfaceRequests   *prom.CounterVec
	updateReadyCount  prom.Gauge
	predictedInterval prom.Gauge
	state             *prom.GaugeVec
}

// New creates the collectors and registers them with reg. instance is added
// as a constant label.
func New(reg prom.Registerer, instance string) (*Pipeline, error) {
	labels := prom.Labels{"instance_id": instance}

	p := &Pipeline{
		updatePasses: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "update_passes_total",
			Help:        "Update passes published to render.",
			ConstLabels: labels,
		}, []string{"keep_updating"}),
		renderPasses: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "render_passes_total",
			Help:        "Render passes completed, by whether a surface was drawn.",
			ConstLabels: labels,
		}, []string{"rendered"}),
		vsyncTicks: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "vsync_ticks_total",
			Help:        "Display ticks received from the monitor.",
			ConstLabels: labels,
		}, []string{"valid"}),
		vsyncMissed: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "vsync_missed_total",
			Help:        "Display refreshes skipped between two received ticks.",
			ConstLabels: labels,
		}),
		surfaceRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "surface_requests_total",
			Help:        "Surface requests serviced by render.",
			ConstLabels: labels,
		}, []string{"kind", "result"}),
		updateReadyCount: prom.NewGauge(prom.GaugeOpts{
			Namespace:   namespace,
			Name:        "update_ready_count",
			Help:        "Update passes waiting for render.",
			ConstLabels: labels,
		}),
		predictedInterval: prom.NewGauge(prom.GaugeOpts{
			Namespace:   namespace,
			Name:        "predicted_frame_interval_seconds",
			Help:        "Frame interval the frame timer currently predicts.",
			ConstLabels: labels,
		}),
		state: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace:   namespace,
			Name:        "state",
			Help:        "1 for the current pipeline state, 0 otherwise.",
			ConstLabels: labels,
		}, []string{"state"}),
	}

	for _, c := range []prom.Collector{
		p.updatePasses,
		p.renderPasses,
		p.vsyncTicks,
		p.vsyncMissed,
		p.surfaceRequests,
		p.updateReadyCount,
		p.predictedInterval,
		p.state,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}

	p.SetState("ready")
	return p, nil
}

// UpdatePass counts one published update pass.
func (p *Pipeline) UpdatePass(keepUpdating bool) {
	p.updatePasses.WithLabelValues(strconv.FormatBool(keepUpdating)).Inc()
}

// RenderPass counts one completed render pass.
func (p *Pipeline) RenderPass(rendered bool) {
	p.renderPasses.WithLabelValues(strconv.FormatBool(rendered)).Inc()
}

// VSyncTick counts one display tick.
func (p *Pipeline) VSyncTick(valid bool) {
	p.vsyncTicks.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

// VSyncMissed counts display refreshes the monitor skipped.
func (p *Pipeline) VSyncMissed(n uint32) {
	p.vsyncMissed.Add(float64(n))
}

// SurfaceRequest counts one serviced surface request.
func (p *Pipeline) SurfaceRequest(kind threadsync.RequestKind, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	p.surfaceRequests.WithLabelValues(kind.String(), result).Inc()
}

// SetState marks state as current.
func (p *Pipeline) SetState(state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		p.state.WithLabelValues(s).Set(v)
	}
}

// Observe updates the sampled gauges.
func (p *Pipeline) Observe(stats threadsync.Stats, predicted time.Duration) {
	p.updateReadyCount.Set(float64(stats.UpdateReadyCount))
	p.predictedInterval.Set(predicted.Seconds())
}
