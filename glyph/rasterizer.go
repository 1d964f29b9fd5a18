package glyph

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// vectorDrawOp writes coverage directly into the alpha mask.
const vectorDrawOp = draw.Src

// alphaOpaque is the fully opaque mask pixel.
var alphaOpaque = color.Alpha{A: 0xFF}

// Rasterizer renders glyph outlines to alpha masks using the font backend.
// Glyphs are addressed by glyph index so shaped output (ligatures) uses the
// same path as plain codepoints.
//
// Rasterizer is safe for concurrent use; sfnt.Buffer is not, so all loads
// go through an internal mutex. Rasterization may therefore run on a worker
// goroutine while the render goroutine owns the atlas texture.
type Rasterizer struct {
	mu    sync.Mutex
	fonts [4]*sfnt.Font // indexed by FontStyle; nil falls back to regular
	buf   sfnt.Buffer
}

// NewRasterizer parses font data for the regular face.
func NewRasterizer(fontData []byte) (*Rasterizer, error) {
	f, err := sfnt.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("glyph: parse font: %w", err)
	}
	r := &Rasterizer{}
	r.fonts[StyleRegular] = f
	return r, nil
}

// SetStyleFont installs a separate face for a style (bold, italic, ...).
// Styles without their own face fall back to the regular face.
func (r *Rasterizer) SetStyleFont(style FontStyle, fontData []byte) error {
	if style > StyleBoldItalic {
		return fmt.Errorf("glyph: unknown style %d", style)
	}
	f, err := sfnt.Parse(fontData)
	if err != nil {
		return fmt.Errorf("glyph: parse %v font: %w", style, err)
	}
	r.mu.Lock()
	r.fonts[style] = f
	r.mu.Unlock()
	return nil
}

// font returns the face for a style, falling back to regular.
// Caller holds mu.
func (r *Rasterizer) font(style FontStyle) *sfnt.Font {
	if int(style) < len(r.fonts) && r.fonts[style] != nil {
		return r.fonts[style]
	}
	return r.fonts[StyleRegular]
}

// GlyphIndex resolves a codepoint to a glyph index in the style's face.
// Returns false if the font has no glyph for the rune.
func (r *Rasterizer) GlyphIndex(rn rune, style FontStyle) (uint16, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.font(style)
	if f == nil {
		return 0, false
	}
	gid, err := f.GlyphIndex(&r.buf, rn)
	if err != nil || gid == 0 {
		return 0, false
	}
	return uint16(gid), true
}

// CellMetrics returns the monospace cell dimensions and baseline ascent for
// the regular face at the given pixel size. Width is the advance of '0',
// the conventional reference for monospace fonts.
func (r *Rasterizer) CellMetrics(ppem float64) (width, height, ascent int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.font(StyleRegular)
	if f == nil {
		return 0, 0, 0, ErrNoFont
	}
	size := floatToFixed(ppem)

	met, err := f.Metrics(&r.buf, size, 0)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("glyph: font metrics: %w", err)
	}
	gid, err := f.GlyphIndex(&r.buf, '0')
	if err != nil || gid == 0 {
		gid = 1
	}
	adv, err := f.GlyphAdvance(&r.buf, gid, size, 0)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("glyph: reference advance: %w", err)
	}

	width = fixedCeil(adv)
	height = fixedCeil(met.Height)
	ascent = fixedCeil(met.Ascent)
	return width, height, ascent, nil
}

// Rasterize renders the glyph at gid to a tight alpha mask.
// Returns a *RasterizationError when the face cannot load the glyph; the
// cache substitutes the missing-glyph box in that case.
func (r *Rasterizer) Rasterize(gid uint16, style FontStyle, ppem float64) (*image.Alpha, Metrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.font(style)
	if f == nil {
		return nil, Metrics{}, ErrNoFont
	}
	size := floatToFixed(ppem)

	segs, err := f.LoadGlyph(&r.buf, sfnt.GlyphIndex(gid), size, nil)
	if err != nil {
		return nil, Metrics{}, &RasterizationError{Rune: 0, Style: style}
	}
	adv, err := f.GlyphAdvance(&r.buf, sfnt.GlyphIndex(gid), size, 0)
	if err != nil {
		adv = size // degraded but usable
	}
	metrics := Metrics{Advance: fixedToFloat(adv)}

	bounds := segmentBounds(segs)
	if bounds.Empty() {
		// Whitespace and zero-contour glyphs have no bitmap.
		return nil, metrics, nil
	}

	minX := fixedFloor(bounds.Min.X)
	minY := fixedFloor(bounds.Min.Y)
	maxX := fixedCeil(bounds.Max.X)
	maxY := fixedCeil(bounds.Max.Y)
	w := maxX - minX
	h := maxY - minY

	metrics.BearingX = float32(minX)
	metrics.BearingY = float32(-minY) // sfnt Y grows downward from baseline

	// Fill the outline with the scanline rasterizer, shifting segments so
	// the mask is tight at (0, 0).
	vr := vector.NewRasterizer(w, h)
	vr.DrawOp = vectorDrawOp
	offX := float32(minX)
	offY := float32(minY)
	for _, seg := range segs {
		p := seg.Args
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			vr.MoveTo(fixedToFloat(p[0].X)-offX, fixedToFloat(p[0].Y)-offY)
		case sfnt.SegmentOpLineTo:
			vr.LineTo(fixedToFloat(p[0].X)-offX, fixedToFloat(p[0].Y)-offY)
		case sfnt.SegmentOpQuadTo:
			vr.QuadTo(
				fixedToFloat(p[0].X)-offX, fixedToFloat(p[0].Y)-offY,
				fixedToFloat(p[1].X)-offX, fixedToFloat(p[1].Y)-offY,
			)
		case sfnt.SegmentOpCubeTo:
			vr.CubeTo(
				fixedToFloat(p[0].X)-offX, fixedToFloat(p[0].Y)-offY,
				fixedToFloat(p[1].X)-offX, fixedToFloat(p[1].Y)-offY,
				fixedToFloat(p[2].X)-offX, fixedToFloat(p[2].Y)-offY,
			)
		}
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	vr.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	return mask, metrics, nil
}

// MissingBox renders the fallback "missing glyph" hollow box for a cell of
// the given dimensions. Used when the font has no glyph for a codepoint;
// never fails.
func MissingBox(cellW, cellH, ascent int) (*image.Alpha, Metrics) {
	// Inset the box one pixel from the cell edges, two from the vertical
	// extremes, with a 1px stroke.
	w := cellW - 2
	h := cellH - 4
	if w < 3 {
		w = 3
	}
	if h < 3 {
		h = 3
	}
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		mask.SetAlpha(x, 0, alphaOpaque)
		mask.SetAlpha(x, h-1, alphaOpaque)
	}
	for y := 0; y < h; y++ {
		mask.SetAlpha(0, y, alphaOpaque)
		mask.SetAlpha(w-1, y, alphaOpaque)
	}
	return mask, Metrics{
		BearingX: 1,
		BearingY: float32(ascent - 2),
		Advance:  float32(cellW),
	}
}

// segmentBounds computes the fixed-point bounding box of outline segments.
func segmentBounds(segs sfnt.Segments) fixed.Rectangle26_6 {
	var b fixed.Rectangle26_6
	first := true
	add := func(p fixed.Point26_6) {
		if first {
			b.Min, b.Max = p, p
			first = false
			return
		}
		if p.X < b.Min.X {
			b.Min.X = p.X
		}
		if p.Y < b.Min.Y {
			b.Min.Y = p.Y
		}
		if p.X > b.Max.X {
			b.Max.X = p.X
		}
		if p.Y > b.Max.Y {
			b.Max.Y = p.Y
		}
	}
	for _, seg := range segs {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo, sfnt.SegmentOpLineTo:
			add(seg.Args[0])
		case sfnt.SegmentOpQuadTo:
			add(seg.Args[0])
			add(seg.Args[1])
		case sfnt.SegmentOpCubeTo:
			add(seg.Args[0])
			add(seg.Args[1])
			add(seg.Args[2])
		}
	}
	if first {
		return fixed.Rectangle26_6{}
	}
	return b
}

// fixed-point helpers (26.6 format).

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v*64 + 0.5)
}

func fixedFloor(v fixed.Int26_6) int {
	return int(v >> 6)
}

func fixedCeil(v fixed.Int26_6) int {
	return int((v + 63) >> 6)
}
