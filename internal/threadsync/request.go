package threadsync

import "sync/atomic"

// Surface is an opaque render target handle owned by the windowing layer.
type Surface interface {
	ID() string
}

// RequestKind identifies what the render worker must do with a request.
type RequestKind int

const (
	// RequestReplaceSurface swaps the render target.
	RequestReplaceSurface RequestKind = iota
	// RequestSurfaceLost drops the render target until a new one arrives.
	RequestSurfaceLost
)

// String returns a human-readable representation of the request kind
func (k RequestKind) String() string {
	switch k {
	case RequestReplaceSurface:
		return "replace_surface"
	case RequestSurfaceLost:
		return "surface_lost"
	default:
		return "unknown"
	}
}

// SurfaceRequest is handed from the controlling goroutine to the render
// worker. Only one is in flight at a time: the requester writes it, render
// reads it and records the outcome, then RenderFinished marks it done.
type SurfaceRequest struct {
	kind    RequestKind
	surface Surface

	completed atomic.Bool // outcome reported by render
	done      atomic.Bool // set by RenderFinished
}

func newRequest(kind RequestKind, surface Surface) *SurfaceRequest {
	return &SurfaceRequest{kind: kind, surface: surface}
}

// Kind returns what the request asks for.
func (r *SurfaceRequest) Kind() RequestKind { return r.kind }

// Surface returns the new target (nil for RequestSurfaceLost).
func (r *SurfaceRequest) Surface() Surface { return r.surface }

// SetReplaceCompleted records whether render switched to the new target.
// Must be called before RenderFinished.
func (r *SurfaceRequest) SetReplaceCompleted(ok bool) { r.completed.Store(ok) }

// ReplaceCompleted returns the outcome recorded by render.
func (r *SurfaceRequest) ReplaceCompleted() bool { return r.completed.Load() }

// Done reports whether render has finished processing the request.
func (r *SurfaceRequest) Done() bool { return r.done.Load() }
