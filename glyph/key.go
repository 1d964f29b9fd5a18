package glyph

import "image"

// FontStyle selects the face variant used to rasterize a glyph.
type FontStyle uint8

const (
	// StyleRegular is the default face.
	StyleRegular FontStyle = iota

	// StyleBold is the bold face.
	StyleBold

	// StyleItalic is the italic face.
	StyleItalic

	// StyleBoldItalic is the bold italic face.
	StyleBoldItalic
)

// String returns the style name.
func (s FontStyle) String() string {
	switch s {
	case StyleRegular:
		return "regular"
	case StyleBold:
		return "bold"
	case StyleItalic:
		return "italic"
	case StyleBoldItalic:
		return "bold-italic"
	default:
		return "unknown"
	}
}

// Key uniquely identifies a rasterized glyph bitmap for a fixed font asset.
// Shaped output (ligatures, contextual forms) bypasses codepoint keys and
// addresses the cache by glyph index instead; see Cache.GetShaped.
type Key struct {
	// Rune is the codepoint to rasterize.
	Rune rune

	// Style is the face variant.
	Style FontStyle

	// PPEM is the pixel size. int16 keeps the key compact; sizes above
	// 32K do not occur.
	PPEM int16
}

// Metrics holds the positioning metrics of a rasterized glyph.
type Metrics struct {
	// BearingX is the horizontal offset from the pen position to the
	// bitmap's left edge, in pixels.
	BearingX float32

	// BearingY is the vertical offset from the baseline to the bitmap's
	// top edge, in pixels (positive above the baseline).
	BearingY float32

	// Advance is the pen advance width in pixels.
	Advance float32
}

// AtlasSlot describes a glyph's bitmap region inside the atlas.
// Slots are owned exclusively by the Cache; everything else refers to them
// through generation-checked SlotRefs. Coordinates are pixels; UVs are
// derived from the atlas size at command-build time so atlas growth does
// not invalidate resident slots.
type AtlasSlot struct {
	// Bounds is the bitmap's pixel rectangle in the atlas.
	Bounds image.Rectangle

	// Metrics positions the bitmap relative to the cell pen position.
	Metrics Metrics
}

// SlotRef is a weak reference to an AtlasSlot: a stable arena index plus
// the generation observed at lookup. Eviction bumps the slot's generation,
// so a stale ref fails resolution instead of aliasing the replacement glyph.
type SlotRef struct {
	Index int32
	Gen   uint32
}

// IsZero reports whether the ref was never assigned.
func (r SlotRef) IsZero() bool {
	return r.Index == 0 && r.Gen == 0
}
