package gpu

import (
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

func TestNullDeviceHandle(t *testing.T) {
	h := NullDeviceHandle{}

	if h.Device() != nil || h.Queue() != nil || h.Adapter() != nil {
		t.Error("null device handle returned non-nil resources")
	}
	if got := h.SurfaceFormat(); got != gputypes.TextureFormatUndefined {
		t.Errorf("SurfaceFormat() = %v, want undefined", got)
	}

	// Compile-time compatibility with the gpucontext ecosystem.
	acceptProvider := func(_ gpucontext.DeviceProvider) {}
	acceptProvider(h)
}

func TestPresentModeString(t *testing.T) {
	tests := []struct {
		mode PresentMode
		want string
	}{
		{PresentModeVSync, "vsync"},
		{PresentModeImmediate, "immediate"},
		{PresentMode(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("PresentMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}
