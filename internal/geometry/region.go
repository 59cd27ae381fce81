package geometry

// Centralized interaction tolerances. The hover machine and router read
// these instead of carrying their own copies.
const (
	// EdgeSnapMargin is the distance from the absolute top edge of a
	// monitor within which the pointer is treated as inside the hover
	// zone. The OS may stop emitting movement samples when the pointer is
	// pressed against the physical edge, so proximity stands in for
	// containment there.
	EdgeSnapMargin = 20.0

	// HeightTolerance is the maximum allowed drift between expected and
	// applied surface height before the watchdog forces a correction.
	HeightTolerance = 50.0

	// HeightNoiseFloor is the minimum height delta worth applying a frame
	// change for; smaller deltas are micro-jitter.
	HeightNoiseFloor = 10.0
)

// Mode selects the resting affordance style.
type Mode int

const (
	// ModeCompact renders the shelf as a slim strip hugging the edge.
	ModeCompact Mode = iota
	// ModeProminent renders a larger resting surface, used on monitors
	// with a physical cutout to visually extend it.
	ModeProminent
)

// Params holds the tunable dimensions of the shelf surface.
type Params struct {
	AnchorWidth    float64 // resting strip width
	AnchorHeight   float64 // resting strip height when no cutout is present
	ExpandedWidth  float64 // surface width while content is shown
	EnterPadX      float64 // horizontal slack added to form the entry zone
	EnterPadY      float64 // vertical slack added below the anchor
	MinShelfHeight float64 // expanded surface never shrinks below this
}

// DefaultParams returns the stock shelf dimensions.
func DefaultParams() Params {
	return Params{
		AnchorWidth:    240,
		AnchorHeight:   32,
		ExpandedWidth:  600,
		EnterPadX:      20,
		EnterPadY:      8,
		MinShelfHeight: 96,
	}
}

// Region pairs the asymmetric hover rectangles. Enter is the wider zone
// that triggers hover entry; Exit is the tighter zone that must be left
// before hover is dropped. Exit is always contained in Enter, which is
// what prevents flicker at the boundary.
type Region struct {
	Enter Rect
	Exit  Rect
}

// HeightFunc reports the surface height needed to show the current item
// count on a monitor. Implementations must be pure.
type HeightFunc func(m Monitor, itemCount int) float64

// AnchorRegion computes the resting region for a monitor: a strip centered
// on the top edge, tall enough to cover the physical cutout when one is
// present. Pure; safe from any goroutine.
func AnchorRegion(m Monitor, mode Mode, p Params) Region {
	h := p.AnchorHeight
	if m.SafeAreaInset > h {
		h = m.SafeAreaInset
	}
	if mode == ModeProminent {
		h += p.EnterPadY
	}
	exit := Rect{
		X:      m.Frame.X + (m.Frame.Width-p.AnchorWidth)/2,
		Y:      m.Frame.Y,
		Width:  p.AnchorWidth,
		Height: h,
	}
	enter := exit.Outset(p.EnterPadX, 0)
	enter.Height += p.EnterPadY
	// Entry zone never extends above the monitor.
	enter.Y = m.Frame.Y
	return Region{Enter: enter, Exit: exit}
}

// ExpandedRect computes the surface rect while content is shown. The height
// comes from the content callback and is clamped to the monitor.
func ExpandedRect(m Monitor, p Params, contentHeight float64) Rect {
	h := contentHeight
	if h < p.MinShelfHeight {
		h = p.MinShelfHeight
	}
	if h > m.Frame.Height {
		h = m.Frame.Height
	}
	w := p.ExpandedWidth
	if w > m.Frame.Width {
		w = m.Frame.Width
	}
	return Rect{
		X:      m.Frame.X + (m.Frame.Width-w)/2,
		Y:      m.Frame.Y,
		Width:  w,
		Height: h,
	}
}

// EdgeSnapped reports whether p should count as hovering even though it is
// outside the hover zone: within EdgeSnapMargin of the monitor's absolute
// top edge and horizontally within [xMin, xMax).
func EdgeSnapped(m Monitor, xMin, xMax float64, p Point) bool {
	if p.Y < m.Frame.Y || p.Y >= m.Frame.Y+EdgeSnapMargin {
		return false
	}
	return p.X >= xMin && p.X < xMax
}
