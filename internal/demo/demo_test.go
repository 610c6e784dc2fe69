package demo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/frametime"
)

func TestSceneAnimatesThenIdles(t *testing.T) {
	s := NewScene(3, 0)

	var keep []bool
	var notify []bool
	for i := 0; i < 5; i++ {
		st := s.Update(frametime.Prediction{NextSyncTimeMs: uint32(i)})
		keep = append(keep, st.KeepUpdating)
		notify = append(notify, st.NeedsNotification)
	}

	assert.Equal(t, []bool{true, true, false, false, false}, keep)
	assert.Equal(t, []bool{false, false, true, false, false}, notify)
	assert.Equal(t, uint64(5), s.Passes())
	assert.Equal(t, uint32(4), s.NextSyncTimeMs())

	s.Animate()
	assert.True(t, s.Update(frametime.Prediction{}).KeepUpdating)
}

func TestRendererReplaceAndReject(t *testing.T) {
	r := NewRenderer(0)
	a, b := NewSurface("a"), NewSurface("b")

	assert.True(t, r.ReplaceSurface(nil, a))
	r.Reject("b")
	assert.False(t, r.ReplaceSurface(a, b))
	assert.Equal(t, uint64(1), r.Replaced())

	r.Render(a)
	r.Render(a)
	assert.Equal(t, uint64(2), r.Frames())
}

func TestNotifierCounts(t *testing.T) {
	var n Notifier
	n.Trigger()
	n.Trigger()
	assert.Equal(t, uint64(2), n.Triggers())
}
