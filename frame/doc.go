// Package frame assembles per-frame GPU command lists from grid snapshots.
// A build pass run-length-encodes background colors, lays out glyphs through
// the shaping engine, and layers overlays (underlines, selection and fade
// effects, cursor) on top, in strict back-to-front order.
package frame
