package shelf

import (
	"time"

	"github.com/edgedock/edgedock/internal/hover"
	"github.com/edgedock/edgedock/internal/watchdog"
)

// The controller is the watchdog's reconciliation surface.
var _ watchdog.Surface = (*Controller)(nil)

// MonitorIDs lists registered monitors in attach order.
func (c *Controller) MonitorIDs() []string {
	return append([]string(nil), c.order...)
}

// CorrectHeight recomputes the height the surface should have right now.
func (c *Controller) CorrectHeight(monitorID string) float64 {
	e, ok := c.entries[monitorID]
	if !ok {
		return 0
	}
	return c.desiredHeight(e)
}

// AppliedHeight returns the synchronizer's last applied height.
func (c *Controller) AppliedHeight(monitorID string) (float64, bool) {
	return c.sync.Applied(monitorID)
}

// ForceHeight corrects drifted geometry, bypassing throttle and noise
// floor.
func (c *Controller) ForceHeight(monitorID string, height float64) {
	c.sync.ForceApply(monitorID, height)
}

// InputFlag returns the wanted and applied input-acceptance flags.
func (c *Controller) InputFlag(monitorID string) (want, have, ok bool) {
	e, exists := c.entries[monitorID]
	if !exists {
		return false, false, false
	}
	have, ok = c.host.InputFlag(monitorID)
	return e.machine.AcceptsInput(), have, ok
}

// SetInputFlag corrects the hosting window's input-acceptance flag.
func (c *Controller) SetInputFlag(monitorID string, accept bool) error {
	return c.host.SetAcceptsInput(monitorID, accept)
}

// HoverStale reports a hover that has outlived the staleness window
// without a fresh pointer sample.
func (c *Controller) HoverStale(monitorID string, now time.Time) bool {
	e, ok := c.entries[monitorID]
	if !ok {
		return false
	}
	if !e.machine.State().Hovering {
		return false
	}
	return now.Sub(e.machine.LastSampleAt()) > hover.StalenessWindow
}

// ResetHover drops a stale hover.
func (c *Controller) ResetHover(monitorID string) {
	if e, ok := c.entries[monitorID]; ok {
		e.machine.Reset()
	}
}
