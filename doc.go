// Package framepacer paces a render loop against the display refresh.
//
// # Philosophy
//
// "Never render ahead of the display, never update too far ahead of render."
//
// Three workers share one synchronizer: an update worker advancing the
// scene, a render worker drawing it, and a vsync worker forwarding display
// ticks. Update may run at most MaximumUpdateCount passes ahead of render.
// Render runs once every VSyncsPerRender ticks. When nothing needs drawing
// the update worker sleeps and the vsync worker idles until a request
// arrives.
//
// # Architecture
//
//	vsync.Monitor → VSync worker ──tick──▶ Synchronizer ◀── Update worker (SceneUpdater)
//	                                            │
//	                                            └──────▶ Render worker (Renderer, Surface)
//
// Every wait in the synchronizer is a sync.Cond wait point with a
// predicate, so Stop releases all of them.
//
// # Basic Usage
//
//	p, err := framepacer.New(framepacer.Config{
//	    MaximumUpdateCount: 2,
//	    VSyncsPerRender:    1,
//	    Scene:              scene,    // framepacer.SceneUpdater
//	    Renderer:           renderer, // framepacer.Renderer
//	    Surface:            window,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	defer p.Stop()
//
//	p.RequestUpdate()       // something changed, schedule frames
//	p.Pause()               // app went to background
//	p.Resume()
//	p.ReplaceSurface(next)  // blocks until render switched targets
//
// # Lifecycle
//
//	Ready ──Start──▶ Running ◀──Pause/Resume──▶ Paused ◀──hide/show──▶ PausedWhileHidden
//	  │                 │                          │                          │
//	  └─────────────────┴──────────Stop────────────┴──────────────────────────┴──▶ Stopped
//
// # Monitoring
//
//	stats := p.Stats()
//	if stats.FallbackVSync {
//	    log.Warn("platform vsync unavailable, using timed ticks")
//	}
//	fmt.Println(stats.Sync.UpdateReadyCount, stats.FrameInterval.FPSMean)
package framepacer
