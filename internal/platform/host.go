package platform

import (
	"fmt"
	"log/slog"

	"github.com/edgedock/edgedock/internal/geometry"
)

// WindowHost maps monitor IDs to backend windows and caches the applied
// input flag. All methods are called from the control loop; no locking.
type WindowHost struct {
	backend Backend
	logger  *slog.Logger

	windows map[string]WindowID
	input   map[string]bool
}

// NewWindowHost creates a host over the backend.
func NewWindowHost(backend Backend, logger *slog.Logger) *WindowHost {
	return &WindowHost{
		backend: backend,
		logger:  logger,
		windows: make(map[string]WindowID),
		input:   make(map[string]bool),
	}
}

// EnsureWindow creates the monitor's shelf window if it does not exist,
// otherwise moves it to frame.
func (h *WindowHost) EnsureWindow(monitorID string, frame geometry.Rect) error {
	if id, ok := h.windows[monitorID]; ok {
		return h.backend.MoveResize(id, frame)
	}
	id, err := h.backend.CreateShelfWindow(frame)
	if err != nil {
		return fmt.Errorf("shelf window for %s: %w", monitorID, err)
	}
	h.windows[monitorID] = id
	h.logger.Debug("shelf window created", "monitor", monitorID, "window", id)
	return nil
}

// DestroyWindow tears down the monitor's shelf window.
func (h *WindowHost) DestroyWindow(monitorID string) error {
	id, ok := h.windows[monitorID]
	if !ok {
		return nil
	}
	delete(h.windows, monitorID)
	delete(h.input, monitorID)
	if err := h.backend.DestroyWindow(id); err != nil {
		return fmt.Errorf("shelf window for %s: %w", monitorID, err)
	}
	return nil
}

// ApplyFrame moves and resizes the monitor's shelf window.
func (h *WindowHost) ApplyFrame(monitorID string, frame geometry.Rect) error {
	id, ok := h.windows[monitorID]
	if !ok {
		return fmt.Errorf("no shelf window for monitor %s", monitorID)
	}
	return h.backend.MoveResize(id, frame)
}

// SetAcceptsInput toggles the window's input region and records the
// applied value.
func (h *WindowHost) SetAcceptsInput(monitorID string, accept bool) error {
	id, ok := h.windows[monitorID]
	if !ok {
		return fmt.Errorf("no shelf window for monitor %s", monitorID)
	}
	if err := h.backend.SetAcceptsInput(id, accept); err != nil {
		return err
	}
	h.input[monitorID] = accept
	return nil
}

// InputFlag returns the last applied input flag. ok is false before the
// first SetAcceptsInput for the monitor.
func (h *WindowHost) InputFlag(monitorID string) (bool, bool) {
	v, ok := h.input[monitorID]
	return v, ok
}

// WindowFor returns the backend window hosting a monitor's shelf.
func (h *WindowHost) WindowFor(monitorID string) (WindowID, bool) {
	id, ok := h.windows[monitorID]
	return id, ok
}
