package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/config"
)

// Command represents a control plane command
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// Publisher sends a response payload
type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// CommandCallbacks contains callback functions for commands
type CommandCallbacks struct {
	OnGetStatus         func() map[string]interface{}
	OnPause             func() error
	OnResume            func() error
	OnRequestUpdate     func() error
	OnRequestUpdateOnce func() error
	OnSetRefreshRate    func(vsyncsPerRender uint32) error
	OnSetVisible        func(visible bool) error
	OnReplaceSurface    func(name string) error
	OnSurfaceLost       func() error
	OnShutdown          func() error
}

// Handler handles control plane commands
type Handler struct {
	cfg       *config.Config
	client    mqtt.Client
	publisher Publisher
	commands  chan Command
	callbacks CommandCallbacks

	shutdownDelay time.Duration
	now           func() time.Time
}

// NewHandler creates a new control plane handler. client may be nil when
// commands are fed through Dispatch.
func NewHandler(cfg *config.Config, client mqtt.Client, publisher Publisher, callbacks CommandCallbacks) *Handler {
	return &Handler{
		cfg:           cfg,
		client:        client,
		publisher:     publisher,
		commands:      make(chan Command, 10),
		callbacks:     callbacks,
		shutdownDelay: 500 * time.Millisecond,
		now:           time.Now,
	}
}

// Start subscribes to the control topic and processes commands until ctx is
// done
func (h *Handler) Start(ctx context.Context) error {
	topic := h.cfg.MQTT.Topics.Control
	qos := h.cfg.MQTT.QoS["control"]

	slog.Info("control: subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control: subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control: subscription failed: %w", err)
	}

	slog.Info("control: handler started")

	go h.processCommands(ctx)

	return nil
}

// Stop unsubscribes from the control topic
func (h *Handler) Stop() error {
	if h.client != nil && h.client.IsConnected() {
		token := h.client.Unsubscribe(h.cfg.MQTT.Topics.Control)
		token.WaitTimeout(2 * time.Second)
	}

	slog.Info("control: handler stopped")
	return nil
}

func (h *Handler) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	h.Dispatch(msg.Payload())
}

// Dispatch parses payload and queues the command. Invalid JSON is answered
// immediately.
func (h *Handler) Dispatch(payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		slog.Error("control: failed to parse command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control: command received", "command", cmd.Command)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("control: command queue full, dropping command", "command", cmd.Command)
	}
}

func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			h.sendResponse(h.handleCommand(cmd))
		}
	}
}

// handleCommand executes a command and returns its response. shutdown is
// triggered after the response is returned.
func (h *Handler) handleCommand(cmd Command) Response {
	resp := Response{CommandAck: cmd.Command}

	switch cmd.Command {
	case "get_status":
		if h.callbacks.OnGetStatus == nil {
			return notImplemented(resp)
		}
		resp.Status = "success"
		resp.Data = h.callbacks.OnGetStatus()

	case "pause":
		h.run(&resp, h.callbacks.OnPause, "paused", map[string]interface{}{"paused": true})

	case "resume":
		h.run(&resp, h.callbacks.OnResume, "success", map[string]interface{}{"paused": false})

	case "request_update":
		h.run(&resp, h.callbacks.OnRequestUpdate, "success", nil)

	case "request_update_once":
		h.run(&resp, h.callbacks.OnRequestUpdateOnce, "success", nil)

	case "hide", "show":
		if h.callbacks.OnSetVisible == nil {
			return notImplemented(resp)
		}
		visible := cmd.Command == "show"
		h.run(&resp, func() error { return h.callbacks.OnSetVisible(visible) },
			"success", map[string]interface{}{"visible": visible})

	case "set_refresh_rate":
		if h.callbacks.OnSetRefreshRate == nil {
			return notImplemented(resp)
		}
		rate, ok := cmd.Params["vsyncs_per_render"].(float64)
		if !ok || rate < 1 || rate != float64(uint32(rate)) {
			resp.Status = "error"
			resp.Error = "missing or invalid 'vsyncs_per_render' parameter (expected integer >= 1)"
			return resp
		}
		h.run(&resp, func() error { return h.callbacks.OnSetRefreshRate(uint32(rate)) },
			"success", map[string]interface{}{"vsyncs_per_render": uint32(rate)})

	case "replace_surface":
		if h.callbacks.OnReplaceSurface == nil {
			return notImplemented(resp)
		}
		name, ok := cmd.Params["surface"].(string)
		if !ok || name == "" {
			resp.Status = "error"
			resp.Error = "missing or invalid 'surface' parameter (expected string)"
			return resp
		}
		h.run(&resp, func() error { return h.callbacks.OnReplaceSurface(name) },
			"success", map[string]interface{}{"surface": name})

	case "surface_lost":
		h.run(&resp, h.callbacks.OnSurfaceLost, "success", nil)

	case "shutdown":
		if h.callbacks.OnShutdown == nil {
			return notImplemented(resp)
		}
		slog.Warn("control: shutdown command received via MQTT control plane")
		resp.Status = "success"
		resp.Data = map[string]interface{}{
			"shutdown_initiated": true,
			"message":            "graceful shutdown in progress",
		}
		// Give the response a head start over shutdown
		go func() {
			time.Sleep(h.shutdownDelay)
			if err := h.callbacks.OnShutdown(); err != nil {
				slog.Error("control: shutdown callback failed", "error", err)
			}
		}()

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	return resp
}

// run calls fn and fills resp with its outcome.
func (h *Handler) run(resp *Response, fn func() error, okStatus string, data map[string]interface{}) {
	if fn == nil {
		*resp = notImplemented(*resp)
		return
	}
	if err := fn(); err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		return
	}
	resp.Status = okStatus
	resp.Data = data
}

func notImplemented(resp Response) Response {
	resp.Status = "error"
	resp.Error = resp.CommandAck + " not implemented"
	return resp
}

// sendResponse publishes a response to the status topic
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = h.now().UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("control: failed to marshal response", "error", err)
		return
	}

	if err := h.publisher.Publish(h.cfg.MQTT.Topics.Status, h.cfg.MQTT.QoS["status"], payload); err != nil {
		slog.Error("control: failed to publish response", "error", err)
		return
	}

	slog.Debug("control: response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
