package termcore

import "image/color"

// Color is an 8-bit sRGB color with alpha, the color model used by terminal
// cells. The zero value is fully transparent black.
type Color struct {
	R, G, B, A uint8
}

// RGB returns an opaque Color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 0xFF}
}

// RGBA implements the standard color.Color interface, returning
// alpha-premultiplied 16-bit channels. This lets Color interoperate with
// image/color consumers (and go-colorful in the frame package) directly.
func (c Color) RGBA() (r, g, b, a uint32) {
	a = uint32(c.A)
	a |= a << 8
	r = uint32(c.R)
	r |= r << 8
	r = r * a / 0xFFFF
	g = uint32(c.G)
	g |= g << 8
	g = g * a / 0xFFFF
	b = uint32(c.B)
	b |= b << 8
	b = b * a / 0xFFFF
	return
}

// Floats returns the color as non-premultiplied float32 components in [0, 1],
// the layout GPU vertex attributes expect.
func (c Color) Floats() (r, g, b, a float32) {
	return float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255
}

var _ color.Color = Color{}

// AttrMask is a bitset of cell display attributes.
type AttrMask uint8

const (
	// AttrBold selects the bold font style.
	AttrBold AttrMask = 1 << iota

	// AttrItalic selects the italic font style.
	AttrItalic

	// AttrUnderline draws an underline overlay under the cell.
	AttrUnderline

	// AttrInverse swaps the cell's foreground and background colors.
	AttrInverse
)

// Has returns true if m contains the specified attribute.
func (m AttrMask) Has(attr AttrMask) bool {
	return m&attr != 0
}

// With returns a new AttrMask with the specified attribute added.
func (m AttrMask) With(attr AttrMask) AttrMask {
	return m | attr
}

// Without returns a new AttrMask with the specified attribute removed.
func (m AttrMask) Without(attr AttrMask) AttrMask {
	return m &^ attr
}

// Cell is one styled character cell of the terminal grid. Cells are immutable
// values; the terminal-state collaborator owns the grid, the render core only
// reads consistent snapshots.
type Cell struct {
	// Rune is the cell's base codepoint. Zero means an empty cell
	// (rendered as background only). Combining marks and ligature
	// continuations are resolved by the layout engine, not stored here.
	Rune rune

	// FG is the foreground (glyph) color.
	FG Color

	// BG is the background color.
	BG Color

	// Attrs holds the display attributes.
	Attrs AttrMask
}

// IsEmpty reports whether the cell draws no glyph.
func (c Cell) IsEmpty() bool {
	return c.Rune == 0 || c.Rune == ' '
}

// Style returns the effective colors after applying AttrInverse.
func (c Cell) Style() (fg, bg Color) {
	if c.Attrs.Has(AttrInverse) {
		return c.BG, c.FG
	}
	return c.FG, c.BG
}

// Grid is the read-only snapshot interface the terminal-state collaborator
// provides. The render core never mutates this state. Implementations must
// return a consistent view for the duration of one frame build.
type Grid interface {
	// Size returns the grid dimensions in cells.
	Size() (rows, cols int)

	// CellAt returns the cell at the given position. Out-of-bounds
	// positions return the zero Cell.
	CellAt(row, col int) Cell
}

// DirtySource is implemented by collaborators that track which cells changed
// since the last frame. Calling DirtyRegions drains the pending set.
type DirtySource interface {
	// DirtyRegions returns the rectangles changed since the previous
	// call and clears them. An empty result means no re-render is
	// needed unless an animation is active.
	DirtyRegions() []DirtyRegion
}
