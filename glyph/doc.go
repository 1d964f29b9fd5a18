// Package glyph rasterizes terminal glyphs and caches them in a CPU-side
// alpha atlas mirrored to a GPU texture.
//
// The cache is keyed by (rune, font style, pixel size) and evicts with an
// LRU policy that never removes a slot referenced by the frame currently
// being built. Atlas mutations accumulate as pending upload rectangles that
// the render loop flushes to the GPU once per frame, never per glyph.
//
// Slot references are generation-checked indices into a stable arena, so a
// stale reference after eviction is detectable rather than dangling.
package glyph
