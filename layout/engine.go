package layout

import (
	"log/slog"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/bidi"

	"github.com/gogpu/termcore"
	"github.com/gogpu/termcore/glyph"
)

// DrawInstance is one positioned glyph ready for the frame builder.
// Instances are transient: Slot is a weak atlas reference valid for the frame
// that produced it, resolved to texture coordinates at command-build time.
type DrawInstance struct {
	// Slot references the glyph's atlas region.
	Slot glyph.SlotRef

	// X is the pen position in pixels (left edge of the glyph's cell).
	X float32

	// Y is the baseline position in pixels.
	Y float32

	// FG is the glyph color after attribute resolution.
	FG termcore.Color
}

// EmitFunc receives instances during layout. Returning false stops the
// sequence early.
type EmitFunc func(DrawInstance) bool

// Engine converts grid cells inside a dirty region into glyph draw
// instances. Cells are grouped into style runs, split by bidi direction,
// shaped through HarfBuzz (so ligatures collapse to single glyphs and
// combining marks become zero-advance stacked glyphs), and positioned on the
// cell grid.
//
// Layout is a pure function of the grid snapshot and the cache contents:
// identical inputs produce identical instance sequences.
type Engine struct {
	cache  *glyph.Cache
	shaper TextShaper
	log    *slog.Logger
}

// TextShaper shapes a run of runes into glyphs. *Shaper is the production
// implementation.
type TextShaper interface {
	Shape(runes []rune, style glyph.FontStyle, rtl bool, ppem float64) []ShapedGlyph
}

// NewEngine creates a layout engine over the given cache and shaper.
// logger may be nil for silence.
func NewEngine(cache *glyph.Cache, shaper TextShaper, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{cache: cache, shaper: shaper, log: logger}
}

// run is a maximal sequence of same-style cells within one row.
type run struct {
	style glyph.FontStyle
	runes []rune
	// cols and fgs are parallel to runes: source column and resolved
	// foreground of each rune.
	cols []int
	fgs  []termcore.Color
}

// Layout emits one DrawInstance per visible glyph for the cells of region,
// in row-major order. The sequence is consumed once; emit returning false
// aborts the remainder. Empty cells and whitespace produce no instances.
func (e *Engine) Layout(grid termcore.Grid, region termcore.DirtyRegion, emit EmitFunc) error {
	rows, cols := grid.Size()
	region = region.Clamp(rows, cols)
	if region.IsEmpty() {
		return nil
	}

	cellW, cellH := e.cache.CellSize()
	ascent := e.cache.Ascent()

	for row := region.Row0; row <= region.Row1; row++ {
		if !e.layoutRow(grid, row, region.Col0, region.Col1, cellW, cellH, ascent, emit) {
			return nil
		}
	}
	return nil
}

// layoutRow splits one row span into style runs and emits their glyphs.
// Returns false when emit aborted the sequence.
func (e *Engine) layoutRow(grid termcore.Grid, row, col0, col1, cellW, cellH, ascent int, emit EmitFunc) bool {
	var r run

	flush := func() bool {
		if len(r.runes) == 0 {
			return true
		}
		ok := e.emitRun(&r, row, cellW, cellH, ascent, emit)
		r.runes = r.runes[:0]
		r.cols = r.cols[:0]
		r.fgs = r.fgs[:0]
		return ok
	}

	for col := col0; col <= col1; col++ {
		cell := grid.CellAt(row, col)
		if cell.IsEmpty() {
			// Wide-cell continuations are empty by convention and must
			// not break the run; anything else ends it.
			if len(r.runes) > 0 && runewidth.RuneWidth(r.runes[len(r.runes)-1]) == 2 &&
				col-1 == r.cols[len(r.cols)-1] {
				continue
			}
			if !flush() {
				return false
			}
			continue
		}

		style := styleFor(cell.Attrs)
		if len(r.runes) > 0 && style != r.style {
			if !flush() {
				return false
			}
		}
		fg, _ := cell.Style()
		r.style = style
		r.runes = append(r.runes, cell.Rune)
		r.cols = append(r.cols, col)
		r.fgs = append(r.fgs, fg)
	}
	return flush()
}

// emitRun shapes one style run and emits its glyph instances. The run is
// split into bidi sub-runs first; each sub-run is shaped independently.
// Glyph X positions come from the source column of each cluster, keeping
// shaped output aligned to the cell grid (a ligature spanning columns 3-4
// draws at column 3).
func (e *Engine) emitRun(r *run, row, cellW, cellH, ascent int, emit EmitFunc) bool {
	text := string(r.runes)
	base := graphemeBases(text, len(r.runes))
	baseY := float32(row*cellH + ascent)

	for _, seg := range bidiSegments(text) {
		glyphs := e.shaper.Shape(r.runes[seg.start:seg.end], r.style, seg.rtl, e.cache.PPEM())
		for _, g := range glyphs {
			idx := seg.start + g.Cluster
			if idx >= len(r.runes) {
				idx = len(r.runes) - 1
			}
			// Combining marks cluster with their base rune; draw at the
			// base cell's column.
			idx = base[idx]

			ref, err := e.cache.GetShaped(g.GID, r.style)
			if err != nil {
				e.log.Warn("glyph cache insert failed",
					"gid", g.GID, "style", r.style.String(), "err", err)
				continue
			}
			inst := DrawInstance{
				Slot: ref,
				X:    float32(r.cols[idx]*cellW) + g.XOffset,
				Y:    baseY - g.YOffset,
				FG:   r.fgs[idx],
			}
			if !emit(inst) {
				return false
			}
		}
	}
	return true
}

// bidiSeg is a directional sub-run in rune indices.
type bidiSeg struct {
	start, end int
	rtl        bool
}

// bidiSegments splits text into directional runs. On bidi resolution failure
// the whole text is treated as a single left-to-right run.
func bidiSegments(text string) []bidiSeg {
	var p bidi.Paragraph
	p.SetString(text)
	ordering, err := p.Order()
	if err != nil || ordering.NumRuns() == 0 {
		return []bidiSeg{{start: 0, end: len([]rune(text)), rtl: false}}
	}

	segs := make([]bidiSeg, 0, ordering.NumRuns())
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)
		// Pos reports rune indices with an inclusive end.
		start, end := run.Pos()
		segs = append(segs, bidiSeg{
			start: start,
			end:   end + 1,
			rtl:   run.Direction() == bidi.RightToLeft,
		})
	}
	return segs
}

// graphemeBases maps each rune index to the index of the first rune of its
// grapheme cluster, so combining-mark cells attach to the preceding base
// cell.
func graphemeBases(text string, n int) []int {
	base := make([]int, n)
	gr := uniseg.NewGraphemes(text)
	ri := 0
	for gr.Next() {
		start := ri
		for range gr.Runes() {
			if ri < n {
				base[ri] = start
			}
			ri++
		}
	}
	for ; ri < n; ri++ {
		base[ri] = ri
	}
	return base
}

// styleFor maps cell attributes to the font style used for shaping and
// rasterization.
func styleFor(attrs termcore.AttrMask) glyph.FontStyle {
	switch {
	case attrs.Has(termcore.AttrBold) && attrs.Has(termcore.AttrItalic):
		return glyph.StyleBoldItalic
	case attrs.Has(termcore.AttrBold):
		return glyph.StyleBold
	case attrs.Has(termcore.AttrItalic):
		return glyph.StyleItalic
	default:
		return glyph.StyleRegular
	}
}
