//go:build linux

package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/edgedock/edgedock/internal/geometry"
)

// dragSelection is the selection a drag source owns for the duration of a
// drag. Ownership changes stand in for the buffer change counter.
const dragSelection = "XdndSelection"

// X11Backend implements Backend over an X11 connection.
type X11Backend struct {
	xu   *xgbutil.XUtil
	conn *xgb.Conn
	root xproto.Window

	shapeOK bool
	buffer  *selectionCounter

	closeOnce sync.Once
}

var _ Backend = (*X11Backend)(nil)

// NewX11Backend opens a fresh X11 connection and initializes the RandR and
// Shape extensions. A missing Shape extension degrades SetAcceptsInput to
// a no-op rather than failing the daemon.
func NewX11Backend() (*X11Backend, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	conn := xu.Conn()

	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	b := &X11Backend{
		xu:   xu,
		conn: conn,
		root: xu.RootWin(),
	}
	b.shapeOK = shape.Init(conn) == nil

	atom, err := xproto.InternAtom(conn, false, uint16(len(dragSelection)), dragSelection).Reply()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to intern %s: %w", dragSelection, err)
	}
	b.buffer = &selectionCounter{conn: conn, atom: atom.Atom}

	return b, nil
}

// Close releases the X11 connection. Safe to call more than once; the
// shutdown path closes it to unblock the display watcher.
func (b *X11Backend) Close() {
	if b == nil || b.conn == nil {
		return
	}
	b.closeOnce.Do(func() { b.conn.Close() })
}

// Displays returns all active monitors via RandR CRTCs.
func (b *X11Backend) Displays() ([]geometry.Monitor, error) {
	resources, err := randr.GetScreenResources(b.conn, b.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primary randr.Output
	if p, err := randr.GetOutputPrimary(b.conn, b.root).Reply(); err == nil {
		primary = p.Output
	}

	var monitors []geometry.Monitor
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(b.conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		name := fmt.Sprintf("crtc-%d", i)
		if out, err := randr.GetOutputInfo(b.conn, info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			if n := strings.TrimSpace(string(out.Name)); n != "" {
				name = n
			}
		}

		monitors = append(monitors, geometry.Monitor{
			ID: name,
			Frame: geometry.Rect{
				X:      float64(info.X),
				Y:      float64(info.Y),
				Width:  float64(info.Width),
				Height: float64(info.Height),
			},
			Primary: info.Outputs[0] == primary,
			// X11 has no display cutout metadata.
			SafeAreaInset: 0,
		})
	}
	if len(monitors) == 0 {
		return nil, fmt.Errorf("no active monitors found")
	}
	return monitors, nil
}

// QueryPointer returns the global pointer location and the primary button
// state.
func (b *X11Backend) QueryPointer() (geometry.Point, bool, error) {
	reply, err := xproto.QueryPointer(b.conn, b.root).Reply()
	if err != nil {
		return geometry.Point{}, false, fmt.Errorf("pointer query failed: %w", err)
	}
	p := geometry.Point{X: float64(reply.RootX), Y: float64(reply.RootY)}
	held := reply.Mask&xproto.KeyButMaskButton1 != 0
	return p, held, nil
}

// CreateShelfWindow creates an override-redirect dock window at frame.
func (b *X11Backend) CreateShelfWindow(frame geometry.Rect) (WindowID, error) {
	wid, err := xproto.NewWindowId(b.conn)
	if err != nil {
		return 0, fmt.Errorf("window id allocation failed: %w", err)
	}
	screen := xproto.Setup(b.conn).DefaultScreen(b.conn)

	err = xproto.CreateWindowChecked(b.conn, screen.RootDepth, wid, b.root,
		int16(frame.X), int16(frame.Y), uint16(frame.Width), uint16(frame.Height), 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{screen.WhitePixel, 1, xproto.EventMaskExposure},
	).Check()
	if err != nil {
		return 0, fmt.Errorf("window creation failed: %w", err)
	}

	// Hints are best-effort; override-redirect already keeps the WM away.
	_ = ewmh.WmWindowTypeSet(b.xu, wid, []string{"_NET_WM_WINDOW_TYPE_DOCK"})
	_ = ewmh.WmNameSet(b.xu, wid, "edgedock")

	if err := xproto.MapWindowChecked(b.conn, wid).Check(); err != nil {
		return 0, fmt.Errorf("window map failed: %w", err)
	}
	return WindowID(wid), nil
}

// DestroyWindow unmaps and destroys a shelf window.
func (b *X11Backend) DestroyWindow(id WindowID) error {
	win := xproto.Window(id)
	_ = xproto.UnmapWindowChecked(b.conn, win).Check()
	if err := xproto.DestroyWindowChecked(b.conn, win).Check(); err != nil {
		return fmt.Errorf("window destroy failed: %w", err)
	}
	return nil
}

// MoveResize applies a frame to a window.
func (b *X11Backend) MoveResize(id WindowID, frame geometry.Rect) error {
	values := []uint32{
		uint32(int32(frame.X)),
		uint32(int32(frame.Y)),
		uint32(frame.Width),
		uint32(frame.Height),
	}
	err := xproto.ConfigureWindowChecked(b.conn, xproto.Window(id),
		xproto.ConfigWindowX|xproto.ConfigWindowY|
			xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("window configure failed: %w", err)
	}
	return nil
}

// WindowFrame reads a window's frame in root coordinates.
func (b *X11Backend) WindowFrame(id WindowID) (geometry.Rect, error) {
	win := xproto.Window(id)
	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return geometry.Rect{}, fmt.Errorf("geometry query failed: %w", err)
	}
	translate, err := xproto.TranslateCoordinates(b.conn, win, b.root, 0, 0).Reply()
	if err != nil {
		return geometry.Rect{}, fmt.Errorf("coordinate translation failed: %w", err)
	}
	return geometry.Rect{
		X:      float64(translate.DstX),
		Y:      float64(translate.DstY),
		Width:  float64(geom.Width),
		Height: float64(geom.Height),
	}, nil
}

// SetAcceptsInput toggles the window's input shape: an empty input region
// makes it click-through, resetting to the default region restores input.
func (b *X11Backend) SetAcceptsInput(id WindowID, accept bool) error {
	if !b.shapeOK {
		return nil
	}
	win := xproto.Window(id)
	if accept {
		err := shape.MaskChecked(b.conn, shape.SoSet, shape.SkInput,
			win, 0, 0, xproto.PixmapNone).Check()
		if err != nil {
			return fmt.Errorf("input shape reset failed: %w", err)
		}
		return nil
	}
	err := shape.RectanglesChecked(b.conn, shape.SoSet, shape.SkInput,
		xproto.ClipOrderingUnsorted, win, 0, 0, nil).Check()
	if err != nil {
		return fmt.Errorf("input shape clear failed: %w", err)
	}
	return nil
}

// DragBuffer returns the selection-ownership probe.
func (b *X11Backend) DragBuffer() DragBuffer { return b.buffer }

// RunDisplayWatcher blocks consuming X events, invoking onChange for every
// RandR screen-change notification. Returns when the connection closes or
// ctx is canceled.
func (b *X11Backend) RunDisplayWatcher(ctx context.Context, onChange func()) error {
	err := randr.SelectInputChecked(b.conn, b.root, randr.NotifyMaskScreenChange).Check()
	if err != nil {
		return fmt.Errorf("randr event selection failed: %w", err)
	}

	for {
		ev, xerr := b.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			// Connection closed.
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if xerr != nil {
			continue
		}
		if _, ok := ev.(randr.ScreenChangeNotifyEvent); ok {
			onChange()
		}
	}
}

// selectionCounter infers drag-buffer changes from drag selection
// ownership: every drag start takes fresh ownership. Safe for concurrent
// use; the drag poller runs on its own goroutine.
type selectionCounter struct {
	conn *xgb.Conn
	atom xproto.Atom

	mu        sync.Mutex
	lastOwner xproto.Window
	count     uint64
}

// ChangeCount returns a counter that increases whenever selection
// ownership moves to a new owner.
func (s *selectionCounter) ChangeCount() (uint64, error) {
	reply, err := xproto.GetSelectionOwner(s.conn, s.atom).Reply()
	if err != nil {
		return 0, fmt.Errorf("selection owner query failed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if reply.Owner != s.lastOwner && reply.Owner != xproto.WindowNone {
		s.count++
	}
	s.lastOwner = reply.Owner
	return s.count, nil
}

// NonEmpty reports whether the drag selection currently has an owner.
func (s *selectionCounter) NonEmpty() (bool, error) {
	reply, err := xproto.GetSelectionOwner(s.conn, s.atom).Reply()
	if err != nil {
		return false, fmt.Errorf("selection owner query failed: %w", err)
	}
	return reply.Owner != xproto.WindowNone, nil
}
