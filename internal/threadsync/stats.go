package threadsync

// Stats is a snapshot of synchronizer state.
//
// Fields are read individually, so a snapshot taken while workers run may
// mix values from adjacent cycles (acceptable for monitoring).
type Stats struct {
	Running  bool
	Paused   bool
	Sleeping bool

	// UpdateReadyCount is the number of update passes waiting for render.
	UpdateReadyCount   int
	MaximumUpdateCount int
	VSyncsPerRender    uint32

	// FrameNumber is the frame number of the last display tick.
	FrameNumber uint32

	UpdatePasses     uint64
	RenderPasses     uint64
	VSyncTicks       uint64
	RequestsServiced uint64

	// RequestPending is true between a surface request and render's pickup.
	RequestPending bool
}

// Stats returns a snapshot of synchronizer state.
func (s *Synchronizer) Stats() Stats {
	var pending bool
	s.renderRequestSleep.locked(func() { pending = s.pending != nil })

	return Stats{
		Running:            s.running.Load(),
		Paused:             s.paused.Load(),
		Sleeping:           s.sleeping.Load(),
		UpdateReadyCount:   int(s.updateReadyCount.Load()),
		MaximumUpdateCount: int(s.maximumUpdateCount),
		VSyncsPerRender:    s.vsyncsPerRender.Load(),
		FrameNumber:        s.FrameNumber(),
		UpdatePasses:       s.updatePasses.Load(),
		RenderPasses:       s.renderPasses.Load(),
		VSyncTicks:         s.vsyncTicks.Load(),
		RequestsServiced:   s.requestsServiced.Load(),
		RequestPending:     pending,
	}
}
