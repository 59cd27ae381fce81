// Package platform abstracts window-system operations behind a
// platform-neutral interface. The X11 implementation lives in
// backend_linux.go; everything above this package works in logical
// top-left-origin coordinates.
package platform

import (
	"github.com/edgedock/edgedock/internal/geometry"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// DragBuffer exposes the system drag buffer's change counter. ChangeCount
// increases monotonically across drag starts.
type DragBuffer interface {
	ChangeCount() (uint64, error)
	NonEmpty() (bool, error)
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	// Displays returns the attached monitors in logical coordinates.
	Displays() ([]geometry.Monitor, error)
	// QueryPointer returns the global pointer location and whether the
	// primary button is held.
	QueryPointer() (geometry.Point, bool, error)
	// CreateShelfWindow creates an undecorated always-on-top window for
	// the shelf surface and maps it at frame.
	CreateShelfWindow(frame geometry.Rect) (WindowID, error)
	// DestroyWindow unmaps and destroys a shelf window.
	DestroyWindow(id WindowID) error
	// MoveResize applies a frame to a window.
	MoveResize(id WindowID, frame geometry.Rect) error
	// WindowFrame reads a window's current frame in root coordinates.
	WindowFrame(id WindowID) (geometry.Rect, error)
	// SetAcceptsInput toggles whether the window receives pointer input.
	// False makes it click-through.
	SetAcceptsInput(id WindowID, accept bool) error
	// DragBuffer returns the shared drag-buffer probe.
	DragBuffer() DragBuffer
	// Close releases the window-system connection.
	Close()
}
