// Package watchdog periodically reconciles drift between expected and
// actual controller state. Timers and pollers can be silently invalidated
// by sleep/wake or display topology changes with no resume signal; the
// watchdog is the backstop, not the primary mechanism.
package watchdog

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/edgedock/edgedock/internal/control"
	"github.com/edgedock/edgedock/internal/geometry"
)

// logRateLimit caps corrective logging per kind, so repeated drift during
// rapid display reconfiguration cannot storm the log.
const logRateLimit = time.Minute

// Surface is the watchdog's view of the controller. All methods are
// invoked on the control loop.
type Surface interface {
	// MonitorIDs lists the registered monitors.
	MonitorIDs() []string
	// CorrectHeight recomputes the height the surface should have right
	// now, from current content. Same function the synchronizer's
	// callers use.
	CorrectHeight(monitorID string) float64
	// AppliedHeight returns the synchronizer's last applied height.
	AppliedHeight(monitorID string) (float64, bool)
	// ForceHeight corrects drifted geometry immediately, updating the
	// expected height.
	ForceHeight(monitorID string, height float64)
	// InputFlag returns the wanted and currently applied input-acceptance
	// flags for the monitor's hosting window.
	InputFlag(monitorID string) (want, have bool, ok bool)
	// SetInputFlag corrects the hosting window's input-acceptance flag.
	SetInputFlag(monitorID string, accept bool) error
	// HoverStale reports a hover that has outlived the staleness window.
	HoverStale(monitorID string, now time.Time) bool
	// ResetHover drops a stale hover.
	ResetHover(monitorID string)
}

// Watchdog runs on a fixed interval, independent of every other
// component, and marshals onto the control loop before mutating anything.
type Watchdog struct {
	clock    control.Clock
	exec     control.Executor
	surface  Surface
	logger   *slog.Logger
	interval time.Duration

	lastLogged map[string]time.Time
}

// New creates a watchdog over the surface.
func New(clock control.Clock, exec control.Executor, surface Surface, interval time.Duration, logger *slog.Logger) *Watchdog {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watchdog{
		clock:      clock,
		exec:       exec,
		surface:    surface,
		logger:     logger,
		interval:   interval,
		lastLogged: make(map[string]time.Time),
	}
}

// Run starts the reconciliation loop. Blocks until ctx is canceled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("watchdog started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watchdog stopped")
			return
		case <-ticker.C:
			w.exec.Post(w.Reconcile)
		}
	}
}

// Reconcile performs a single pass. Control loop only. Exported so the
// synchronizer's post-apply validation and tests can trigger it directly.
func (w *Watchdog) Reconcile() {
	// A panic here must not take down the daemon.
	defer func() {
		if err := recover(); err != nil {
			w.logger.Error("watchdog panic recovered", "error", err)
		}
	}()

	now := w.clock.Now()

	for _, id := range w.surface.MonitorIDs() {
		w.reconcileGeometry(id)
		w.reconcileInputFlag(id)
		w.reconcileHover(id, now)
	}
}

func (w *Watchdog) reconcileGeometry(id string) {
	applied, ok := w.surface.AppliedHeight(id)
	if !ok {
		return
	}
	correct := w.surface.CorrectHeight(id)
	if math.Abs(correct-applied) <= geometry.HeightTolerance {
		return
	}

	w.logLimited("geometry-drift", "correcting drifted window height",
		"monitor", id, "applied", applied, "correct", correct)
	w.surface.ForceHeight(id, correct)
}

func (w *Watchdog) reconcileInputFlag(id string) {
	want, have, ok := w.surface.InputFlag(id)
	if !ok || want == have {
		return
	}

	w.logLimited("input-flag-drift", "correcting input-acceptance flag",
		"monitor", id, "want", want, "have", have)
	if err := w.surface.SetInputFlag(id, want); err != nil {
		w.logger.Warn("input flag correction failed", "monitor", id, "error", err)
	}
}

func (w *Watchdog) reconcileHover(id string, now time.Time) {
	if !w.surface.HoverStale(id, now) {
		return
	}
	w.logLimited("stale-hover", "expiring stale hover", "monitor", id)
	w.surface.ResetHover(id)
}

// logLimited logs at most once per rate-limit window per kind.
func (w *Watchdog) logLimited(kind, msg string, args ...any) {
	now := w.clock.Now()
	if last, ok := w.lastLogged[kind]; ok && now.Sub(last) < logRateLimit {
		return
	}
	w.lastLogged[kind] = now
	w.logger.Warn(msg, args...)
}
