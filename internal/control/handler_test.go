package control

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/config"
)

type publishedMessage struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []publishedMessage
}

func (p *fakePublisher) Publish(topic string, qos byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, publishedMessage{topic, qos, payload})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func (p *fakePublisher) responses(t *testing.T) []Response {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Response, 0, len(p.msgs))
	for _, m := range p.msgs {
		var r Response
		require.NoError(t, json.Unmarshal(m.payload, &r))
		out = append(out, r)
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("instance_id: lobby\nmqtt:\n  broker: tcp://localhost:1883\n"))
	require.NoError(t, err)
	return cfg
}

func newHandler(t *testing.T, cb CommandCallbacks) (*Handler, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	h := NewHandler(testConfig(t), nil, pub, cb)
	h.shutdownDelay = 0
	return h, pub
}

func TestPauseAndResume(t *testing.T) {
	var paused bool
	h, _ := newHandler(t, CommandCallbacks{
		OnPause:  func() error { paused = true; return nil },
		OnResume: func() error { paused = false; return nil },
	})

	resp := h.handleCommand(Command{Command: "pause"})
	assert.Equal(t, "paused", resp.Status)
	assert.True(t, paused)

	resp = h.handleCommand(Command{Command: "resume"})
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, false, resp.Data["paused"])
	assert.False(t, paused)
}

func TestCallbackError(t *testing.T) {
	h, _ := newHandler(t, CommandCallbacks{
		OnRequestUpdate: func() error { return errors.New("pipeline stopped") },
	})

	resp := h.handleCommand(Command{Command: "request_update"})
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "pipeline stopped", resp.Error)
}

func TestNotImplemented(t *testing.T) {
	h, _ := newHandler(t, CommandCallbacks{})

	for _, name := range []string{"get_status", "pause", "request_update_once", "hide", "set_refresh_rate", "shutdown"} {
		resp := h.handleCommand(Command{Command: name})
		assert.Equal(t, "error", resp.Status, name)
		assert.Equal(t, name+" not implemented", resp.Error)
	}
}

func TestUnknownCommand(t *testing.T) {
	h, _ := newHandler(t, CommandCallbacks{})

	resp := h.handleCommand(Command{Command: "warp"})
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "unknown command: warp", resp.Error)
}

func TestVisibility(t *testing.T) {
	var got []bool
	h, _ := newHandler(t, CommandCallbacks{
		OnSetVisible: func(v bool) error { got = append(got, v); return nil },
	})

	h.handleCommand(Command{Command: "hide"})
	h.handleCommand(Command{Command: "show"})
	assert.Equal(t, []bool{false, true}, got)
}

func TestSetRefreshRate(t *testing.T) {
	var rate uint32
	h, _ := newHandler(t, CommandCallbacks{
		OnSetRefreshRate: func(n uint32) error { rate = n; return nil },
	})

	resp := h.handleCommand(Command{Command: "set_refresh_rate", Params: map[string]interface{}{"vsyncs_per_render": 2.0}})
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, uint32(2), rate)

	for _, bad := range []interface{}{0.0, 1.5, "two", nil} {
		resp = h.handleCommand(Command{Command: "set_refresh_rate", Params: map[string]interface{}{"vsyncs_per_render": bad}})
		assert.Equal(t, "error", resp.Status, "%v", bad)
	}
	assert.Equal(t, uint32(2), rate)
}

func TestGetStatus(t *testing.T) {
	h, _ := newHandler(t, CommandCallbacks{
		OnGetStatus: func() map[string]interface{} { return map[string]interface{}{"state": "running"} },
	})

	resp := h.handleCommand(Command{Command: "get_status"})
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "running", resp.Data["state"])
}

func TestShutdownRunsAfterResponse(t *testing.T) {
	called := make(chan struct{})
	h, _ := newHandler(t, CommandCallbacks{
		OnShutdown: func() error { close(called); return nil },
	})

	resp := h.handleCommand(Command{Command: "shutdown"})
	assert.Equal(t, "success", resp.Status)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("shutdown callback not called")
	}
}

func TestDispatchPublishesResponses(t *testing.T) {
	h, pub := newHandler(t, CommandCallbacks{
		OnRequestUpdateOnce: func() error { return nil },
	})
	h.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.processCommands(ctx)

	h.Dispatch([]byte(`{not json`))
	h.Dispatch([]byte(`{"command":"request_update_once"}`))

	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, time.Millisecond)

	resps := pub.responses(t)
	assert.Equal(t, "unknown", resps[0].CommandAck)
	assert.Equal(t, "invalid JSON", resps[0].Error)
	assert.Equal(t, "request_update_once", resps[1].CommandAck)
	assert.Equal(t, "success", resps[1].Status)
	assert.Equal(t, "2026-01-02T03:04:05Z", resps[1].Timestamp)

	pub.mu.Lock()
	assert.Equal(t, "framepacer/status/lobby", pub.msgs[1].topic)
	assert.Equal(t, byte(1), pub.msgs[1].qos)
	pub.mu.Unlock()
}

func TestReplaceSurface(t *testing.T) {
	var names []string
	h, _ := newHandler(t, CommandCallbacks{
		OnReplaceSurface: func(name string) error {
			if name == "broken" {
				return errors.New("surface replacement failed")
			}
			names = append(names, name)
			return nil
		},
		OnSurfaceLost: func() error { return nil },
	})

	resp := h.handleCommand(Command{Command: "replace_surface", Params: map[string]interface{}{"surface": "hdmi-1"}})
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "hdmi-1", resp.Data["surface"])

	resp = h.handleCommand(Command{Command: "replace_surface", Params: map[string]interface{}{"surface": "broken"}})
	assert.Equal(t, "error", resp.Status)

	resp = h.handleCommand(Command{Command: "replace_surface"})
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "surface")

	resp = h.handleCommand(Command{Command: "surface_lost"})
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, []string{"hdmi-1"}, names)
}
