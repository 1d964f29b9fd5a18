package glyph

import (
	"errors"
	"fmt"
)

// Sentinel errors for the glyph package.
var (
	// ErrAtlasExhausted is returned when a single glyph bitmap exceeds
	// the total atlas capacity even after resize-and-retry. Fatal for the
	// requesting frame; callers fall back to a substitute font.
	ErrAtlasExhausted = errors.New("glyph: atlas exhausted")

	// ErrCacheClosed is returned when operating on a Reset-in-progress
	// or released cache.
	ErrCacheClosed = errors.New("glyph: cache closed")

	// ErrNoFont is returned when the cache has no font installed.
	ErrNoFont = errors.New("glyph: no font loaded")
)

// AtlasFullError is returned when the atlas is at maximum size and every
// resident slot is referenced by the current frame, so nothing can be
// evicted. The layout engine logs and skips the affected glyph; the rest of
// the frame still renders, and the lookup is retried on a later frame once
// the pin set resets.
type AtlasFullError struct {
	Size     int
	Resident int
}

func (e *AtlasFullError) Error() string {
	return fmt.Sprintf("glyph: atlas %dx%d full with %d slots pinned by current frame",
		e.Size, e.Size, e.Resident)
}

// RasterizationError reports a glyph the font backend could not render.
// The cache recovers by substituting the missing-glyph box; this error is
// surfaced only through stats and logging, never as a pipeline failure.
type RasterizationError struct {
	Rune  rune
	Style FontStyle
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("glyph: no glyph for %q (style %v)", e.Rune, e.Style)
}
