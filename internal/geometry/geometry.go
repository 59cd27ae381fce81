package geometry

// Canonical coordinate space: top-left origin, y grows downward (X11 root
// coordinates). Sources that report bottom-origin rects must be converted
// with FlipY at the platform boundary; nothing past that boundary flips.

// Point is a location in the global coordinate space.
type Point struct {
	X float64
	Y float64
}

// Rect describes a rectangular region in the global coordinate space.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// MaxX returns the right edge of the rect.
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the bottom edge of the rect.
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Contains reports whether p falls inside the rect. The left/top edges are
// inclusive, the right/bottom edges exclusive, matching pointer containment
// scans over adjacent monitors.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.MaxX() && p.Y >= r.Y && p.Y < r.MaxY()
}

// Outset grows the rect by dx on the left/right and dy on the top/bottom.
// Negative values shrink it.
func (r Rect) Outset(dx, dy float64) Rect {
	return Rect{
		X:      r.X - dx,
		Y:      r.Y - dy,
		Width:  r.Width + 2*dx,
		Height: r.Height + 2*dy,
	}
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// FlipY converts a rect between top-origin and bottom-origin conventions
// within a root extent of the given height. The conversion is its own
// inverse.
func FlipY(r Rect, rootHeight float64) Rect {
	r.Y = rootHeight - r.Y - r.Height
	return r
}

// Monitor is an immutable snapshot of one physical display. Snapshots are
// refreshed on display-configuration changes; holders must not retain them
// across a DisplaysChanged event.
type Monitor struct {
	ID            string
	Frame         Rect
	Primary       bool
	SafeAreaInset float64 // height of a physical cutout at the top edge, 0 if none
}

// MonitorAt returns the monitor whose frame contains p, or false when the
// point is over no attached monitor (disconnected display mid-drag).
// Linear scan; monitor counts are small.
func MonitorAt(monitors []Monitor, p Point) (Monitor, bool) {
	for _, m := range monitors {
		if m.Frame.Contains(p) {
			return m, true
		}
	}
	return Monitor{}, false
}
