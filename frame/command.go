package frame

import (
	"fmt"

	"github.com/gogpu/termcore"
)

// Quad is one solid-color rectangle in pixel coordinates.
type Quad struct {
	X, Y, W, H float32
	Color      termcore.Color
}

// GlyphQuad is one textured rectangle sampling the glyph atlas.
// UVs are normalized against the atlas size at build time.
type GlyphQuad struct {
	X, Y, W, H     float32
	U0, V0, U1, V1 float32
	Color          termcore.Color
}

// CommandList is the complete set of draw commands for one frame, ordered
// back to front: background quads, then glyphs, then overlays. The GPU
// surface draws the three groups in that order; the grouping itself encodes
// the ordering contract.
type CommandList struct {
	// Width and Height are the viewport dimensions in pixels.
	Width, Height int

	// FullRepaint is set when the dirty area crossed the collapse
	// threshold and the list covers the whole grid.
	FullRepaint bool

	// Regions are the clamped dirty regions this list covers.
	Regions []termcore.DirtyRegion

	Background []Quad
	Glyphs     []GlyphQuad
	Overlays   []Quad

	// Animating tells the render loop an effect is still running and the
	// next frame must be scheduled regardless of dirty state.
	Animating bool
}

// ValidationError reports a command list that violates the draw contract.
type ValidationError struct {
	Group  string
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("frame: invalid %s[%d]: %s", e.Group, e.Index, e.Reason)
}

// Validate checks the geometric invariants of the list: positive viewport,
// non-negative quad extents, quads inside the viewport, and glyph UVs in
// [0, 1] with min before max.
func (l *CommandList) Validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return &ValidationError{Group: "viewport", Reason: "non-positive dimensions"}
	}
	for i, q := range l.Background {
		if err := checkQuad("background", i, q.X, q.Y, q.W, q.H, l); err != nil {
			return err
		}
	}
	for i, g := range l.Glyphs {
		// Glyph quads may overhang cell and viewport edges (negative
		// bearings, italic overhang); only their extents and UVs are
		// constrained.
		if g.W < 0 || g.H < 0 {
			return &ValidationError{Group: "glyphs", Index: i, Reason: "negative extent"}
		}
		if g.U0 < 0 || g.V0 < 0 || g.U1 > 1 || g.V1 > 1 {
			return &ValidationError{Group: "glyphs", Index: i, Reason: "uv outside [0, 1]"}
		}
		if g.U0 > g.U1 || g.V0 > g.V1 {
			return &ValidationError{Group: "glyphs", Index: i, Reason: "inverted uv rect"}
		}
	}
	for i, q := range l.Overlays {
		if err := checkQuad("overlays", i, q.X, q.Y, q.W, q.H, l); err != nil {
			return err
		}
	}
	return nil
}

func checkQuad(group string, i int, x, y, w, h float32, l *CommandList) error {
	if w < 0 || h < 0 {
		return &ValidationError{Group: group, Index: i, Reason: "negative extent"}
	}
	if x < 0 || y < 0 || x+w > float32(l.Width) || y+h > float32(l.Height) {
		return &ValidationError{Group: group, Index: i, Reason: "outside viewport"}
	}
	return nil
}
