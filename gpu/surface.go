package gpu

import (
	"errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/termcore/frame"
	"github.com/gogpu/termcore/glyph"
)

// ErrSurfaceLost is returned by Surface operations when the underlying
// swapchain became invalid (window resize race, device removal, display
// reconfiguration). The render loop reacts by recreating the surface and
// scheduling a full repaint.
var ErrSurfaceLost = errors.New("gpu: surface lost")

// PresentMode selects how presentation is paced.
type PresentMode uint8

const (
	// PresentModeVSync blocks presentation on the display refresh.
	PresentModeVSync PresentMode = iota

	// PresentModeImmediate presents without waiting for vertical sync.
	PresentModeImmediate
)

// String returns the mode name.
func (m PresentMode) String() string {
	switch m {
	case PresentModeVSync:
		return "vsync"
	case PresentModeImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// Surface is the presentation boundary driven once per frame by the render
// loop. Implementations are not safe for concurrent use; the loop is the
// only caller.
type Surface interface {
	// UploadAtlas transfers dirty glyph atlas regions to the GPU before
	// the frame that references them is submitted.
	UploadAtlas(up glyph.Uploads) error

	// Submit translates a validated command list into GPU work and
	// executes it against the current backbuffer.
	Submit(list *frame.CommandList) error

	// Present flips the rendered frame to the screen.
	Present() error

	// Resize adjusts the backbuffer to a new pixel size.
	Resize(width, height int) error

	// SetPresentMode switches presentation pacing.
	SetPresentMode(mode PresentMode) error

	// Release destroys all GPU resources owned by the surface.
	Release()
}

// Swapchain is implemented by the host windowing layer. The surface
// receives it rather than creating it, the same way it receives the
// device: the host owns the window, the surface owns the frame.
type Swapchain interface {
	// Acquire returns the view of the next backbuffer, or ErrSurfaceLost
	// when the swapchain is no longer valid.
	Acquire() (hal.TextureView, error)

	// Present queues the acquired backbuffer for display.
	Present() error

	// Format returns the backbuffer pixel format.
	Format() gputypes.TextureFormat

	// SetPresentMode switches the swapchain pacing mode.
	SetPresentMode(mode PresentMode) error
}
