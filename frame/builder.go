package frame

import (
	"log/slog"
	"sort"

	"github.com/gogpu/termcore"
	"github.com/gogpu/termcore/glyph"
	"github.com/gogpu/termcore/layout"
)

// CursorStyle selects the cursor's overlay shape.
type CursorStyle uint8

const (
	// CursorBlock covers the whole cell.
	CursorBlock CursorStyle = iota

	// CursorUnderline covers the bottom two pixel rows of the cell.
	CursorUnderline

	// CursorBar covers a two pixel column at the cell's left edge.
	CursorBar
)

// CursorState describes the cursor for one frame.
type CursorState struct {
	Row, Col int
	Visible  bool
	Style    CursorStyle
	Color    termcore.Color
}

// Builder assembles the per-frame command list: run-length-encoded
// background quads, shaped glyph quads, and overlay quads, strictly in that
// draw order. When the dirty area exceeds the collapse threshold the build
// switches to a full-grid repaint, which is cheaper than tracking many
// scattered regions.
type Builder struct {
	cache     *glyph.Cache
	layout    *layout.Engine
	threshold float64
	log       *slog.Logger
}

// NewBuilder creates a frame builder. threshold is the dirty-area fraction
// above which a full repaint is built; values outside (0, 1] select the
// default 0.5. logger may be nil for silence.
func NewBuilder(cache *glyph.Cache, eng *layout.Engine, threshold float64, logger *slog.Logger) *Builder {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{cache: cache, layout: eng, threshold: threshold, log: logger}
}

// Build produces the command list for one frame. dirty lists the changed
// cell regions; the cursor cell and active effect regions are rebuilt even
// when clean so overlays always sit on freshly drawn background. The
// returned list is ordered back to front and passes Validate.
func (b *Builder) Build(grid termcore.Grid, dirty []termcore.DirtyRegion, cursor CursorState, effects []*Effect) (*CommandList, error) {
	rows, cols := grid.Size()
	cellW, cellH := b.cache.CellSize()

	list := &CommandList{
		Width:  cols * cellW,
		Height: rows * cellH,
	}
	if rows == 0 || cols == 0 {
		return list, nil
	}

	regions := termcore.ClampAll(dirty, rows, cols)
	if cursor.Visible {
		c := termcore.CellRegion(cursor.Row, cursor.Col).Clamp(rows, cols)
		if !c.IsEmpty() {
			regions = append(regions, c)
		}
	}
	for _, e := range effects {
		if e.Kind == EffectCursorBlink {
			continue
		}
		r := e.Region.Clamp(rows, cols)
		if !r.IsEmpty() {
			regions = append(regions, r)
		}
	}

	if termcore.TotalArea(regions) > int(b.threshold*float64(rows*cols)) {
		regions = []termcore.DirtyRegion{termcore.FullGrid(rows, cols)}
		list.FullRepaint = true
	}
	list.Regions = regions

	// Pin this frame's glyphs against eviction.
	b.cache.BeginFrame()

	spans := rowSpans(regions)
	rowOrder := make([]int, 0, len(spans))
	for row := range spans {
		rowOrder = append(rowOrder, row)
	}
	sort.Ints(rowOrder)

	for _, row := range rowOrder {
		for _, sp := range spans[row] {
			b.buildBackground(list, grid, row, sp, cellW, cellH)
		}
	}
	for _, row := range rowOrder {
		for _, sp := range spans[row] {
			if err := b.buildGlyphs(list, grid, row, sp); err != nil {
				return nil, err
			}
		}
	}
	b.normalizeGlyphUVs(list)
	for _, row := range rowOrder {
		for _, sp := range spans[row] {
			b.buildUnderlines(list, grid, row, sp, cellW, cellH)
		}
	}
	b.buildEffectOverlays(list, rows, cols, cellW, cellH, effects)
	b.buildCursor(list, grid, cursor, effects, cellW, cellH)

	for _, e := range effects {
		if e.Animating() {
			list.Animating = true
			break
		}
	}
	return list, nil
}

// buildBackground emits one quad per run of equal background color.
func (b *Builder) buildBackground(list *CommandList, grid termcore.Grid, row int, sp span, cellW, cellH int) {
	runStart := sp.c0
	_, runColor := grid.CellAt(row, sp.c0).Style()

	flush := func(end int) {
		list.Background = append(list.Background, Quad{
			X:     float32(runStart * cellW),
			Y:     float32(row * cellH),
			W:     float32((end - runStart + 1) * cellW),
			H:     float32(cellH),
			Color: runColor,
		})
	}

	for col := sp.c0 + 1; col <= sp.c1; col++ {
		_, bg := grid.CellAt(row, col).Style()
		if bg != runColor {
			flush(col - 1)
			runStart = col
			runColor = bg
		}
	}
	flush(sp.c1)
}

// buildGlyphs lays out one row span and resolves instances to atlas quads.
// UVs are recorded in atlas pixels here; cache misses during layout can grow
// the atlas, so normalization waits until every placement is final.
func (b *Builder) buildGlyphs(list *CommandList, grid termcore.Grid, row int, sp span) error {
	region := termcore.DirtyRegion{Row0: row, Col0: sp.c0, Row1: row, Col1: sp.c1}

	return b.layout.Layout(grid, region, func(inst layout.DrawInstance) bool {
		slot, ok := b.cache.Slot(inst.Slot)
		if !ok {
			// Evicted between layout and resolution cannot happen inside
			// one frame; a stale ref indicates a caller bug.
			b.log.Warn("stale atlas ref in draw instance", "row", row)
			return true
		}
		if slot.Bounds.Empty() {
			return true
		}
		list.Glyphs = append(list.Glyphs, GlyphQuad{
			X:     inst.X + slot.Metrics.BearingX,
			Y:     inst.Y - slot.Metrics.BearingY,
			W:     float32(slot.Bounds.Dx()),
			H:     float32(slot.Bounds.Dy()),
			U0:    float32(slot.Bounds.Min.X),
			V0:    float32(slot.Bounds.Min.Y),
			U1:    float32(slot.Bounds.Max.X),
			V1:    float32(slot.Bounds.Max.Y),
			Color: inst.FG,
		})
		return true
	})
}

// normalizeGlyphUVs divides the pixel UVs collected during layout by the
// final atlas edge. Growth preserves resident bitmap positions, so one pass
// against the post-layout size is correct for every quad.
func (b *Builder) normalizeGlyphUVs(list *CommandList) {
	if len(list.Glyphs) == 0 {
		return
	}
	atlas := float32(b.cache.AtlasSize())
	for i := range list.Glyphs {
		g := &list.Glyphs[i]
		g.U0 /= atlas
		g.V0 /= atlas
		g.U1 /= atlas
		g.V1 /= atlas
	}
}

// buildUnderlines emits overlay quads for runs of underlined cells.
func (b *Builder) buildUnderlines(list *CommandList, grid termcore.Grid, row int, sp span, cellW, cellH int) {
	baseY := float32(row*cellH + cellH - 2)
	runStart := -1
	var runColor termcore.Color

	flush := func(end int) {
		if runStart < 0 {
			return
		}
		list.Overlays = append(list.Overlays, Quad{
			X:     float32(runStart * cellW),
			Y:     baseY,
			W:     float32((end - runStart + 1) * cellW),
			H:     1,
			Color: runColor,
		})
		runStart = -1
	}

	for col := sp.c0; col <= sp.c1; col++ {
		cell := grid.CellAt(row, col)
		fg, _ := cell.Style()
		if !cell.Attrs.Has(termcore.AttrUnderline) {
			flush(col - 1)
			continue
		}
		if runStart < 0 {
			runStart = col
			runColor = fg
		} else if fg != runColor {
			flush(col - 1)
			runStart = col
			runColor = fg
		}
	}
	flush(sp.c1)
}

// buildEffectOverlays emits one quad per region effect, alpha-modulated by
// the effect's tween.
func (b *Builder) buildEffectOverlays(list *CommandList, rows, cols, cellW, cellH int, effects []*Effect) {
	for _, e := range effects {
		if e.Kind == EffectCursorBlink || e.Done() {
			continue
		}
		r := e.Region.Clamp(rows, cols)
		if r.IsEmpty() {
			continue
		}
		c := e.overlayColor()
		if c.A == 0 {
			continue
		}
		list.Overlays = append(list.Overlays, Quad{
			X:     float32(r.Col0 * cellW),
			Y:     float32(r.Row0 * cellH),
			W:     float32((r.Col1 - r.Col0 + 1) * cellW),
			H:     float32((r.Row1 - r.Row0 + 1) * cellH),
			Color: c,
		})
	}
}

// buildCursor emits the cursor overlay quad, blended against the cell
// background and modulated by an active blink effect.
func (b *Builder) buildCursor(list *CommandList, grid termcore.Grid, cursor CursorState, effects []*Effect, cellW, cellH int) {
	if !cursor.Visible {
		return
	}
	rows, cols := grid.Size()
	if cursor.Row < 0 || cursor.Row >= rows || cursor.Col < 0 || cursor.Col >= cols {
		return
	}

	alpha := float32(1)
	for _, e := range effects {
		if e.Kind == EffectCursorBlink && !e.Done() {
			alpha = e.Alpha()
			break
		}
	}
	if alpha == 0 {
		return
	}

	_, bg := grid.CellAt(cursor.Row, cursor.Col).Style()
	c := blend(bg, cursor.Color, 0.85)
	c.A = uint8(float32(c.A) * alpha)

	x := float32(cursor.Col * cellW)
	y := float32(cursor.Row * cellH)
	q := Quad{X: x, Y: y, W: float32(cellW), H: float32(cellH), Color: c}
	switch cursor.Style {
	case CursorUnderline:
		q.Y = y + float32(cellH-2)
		q.H = 2
	case CursorBar:
		q.W = 2
	}
	list.Overlays = append(list.Overlays, q)
}

// span is an inclusive column interval within one row.
type span struct {
	c0, c1 int
}

// rowSpans decomposes a region set into merged per-row column intervals, so
// overlapping dirty regions draw each cell exactly once.
func rowSpans(regions []termcore.DirtyRegion) map[int][]span {
	out := make(map[int][]span)
	for _, r := range regions {
		for row := r.Row0; row <= r.Row1; row++ {
			out[row] = append(out[row], span{c0: r.Col0, c1: r.Col1})
		}
	}
	for row, spans := range out {
		sort.Slice(spans, func(i, j int) bool { return spans[i].c0 < spans[j].c0 })
		merged := spans[:0]
		for _, sp := range spans {
			if n := len(merged); n > 0 && sp.c0 <= merged[n-1].c1+1 {
				if sp.c1 > merged[n-1].c1 {
					merged[n-1].c1 = sp.c1
				}
				continue
			}
			merged = append(merged, sp)
		}
		out[row] = merged
	}
	return out
}
