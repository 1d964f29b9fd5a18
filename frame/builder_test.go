package frame

import (
	"image"
	"testing"

	"github.com/gogpu/termcore"
	"github.com/gogpu/termcore/glyph"
	"github.com/gogpu/termcore/layout"
)

// fakeFont is a glyph.Source with an 8x16 cell and 6x10 bitmaps.
type fakeFont struct{}

func (fakeFont) GlyphIndex(rn rune, style glyph.FontStyle) (uint16, bool) {
	return uint16(rn), true
}

func (fakeFont) CellMetrics(ppem float64) (int, int, int, error) {
	return 8, 16, 12, nil
}

func (fakeFont) Rasterize(gid uint16, style glyph.FontStyle, ppem float64) (*image.Alpha, glyph.Metrics, error) {
	if gid == ' ' {
		return nil, glyph.Metrics{Advance: 8}, nil
	}
	return image.NewAlpha(image.Rect(0, 0, 6, 10)),
		glyph.Metrics{BearingX: 1, BearingY: 10, Advance: 8}, nil
}

// fakeShaper maps each rune to one glyph.
type fakeShaper struct{}

func (fakeShaper) Shape(runes []rune, style glyph.FontStyle, rtl bool, ppem float64) []layout.ShapedGlyph {
	out := make([]layout.ShapedGlyph, len(runes))
	for i, rn := range runes {
		out[i] = layout.ShapedGlyph{GID: uint16(rn), Cluster: i}
	}
	return out
}

type testGrid struct {
	rows, cols int
	cells      map[[2]int]termcore.Cell
}

func newTestGrid(rows, cols int) *testGrid {
	return &testGrid{rows: rows, cols: cols, cells: make(map[[2]int]termcore.Cell)}
}

func (g *testGrid) set(row, col int, c termcore.Cell) {
	g.cells[[2]int{row, col}] = c
}

func (g *testGrid) setText(row, col int, text string, fg, bg termcore.Color) {
	for i, rn := range text {
		g.set(row, col+i, termcore.Cell{Rune: rn, FG: fg, BG: bg})
	}
}

func (g *testGrid) Size() (int, int) { return g.rows, g.cols }

func (g *testGrid) CellAt(row, col int) termcore.Cell {
	return g.cells[[2]int{row, col}]
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	cache, err := glyph.NewCache(fakeFont{}, glyph.CacheConfig{Size: 256, MaxSize: 256, PPEM: 16})
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	eng := layout.NewEngine(cache, fakeShaper{}, nil)
	return NewBuilder(cache, eng, 0.5, nil)
}

// coveredCells converts background quads back to the cell set they paint.
func coveredCells(t *testing.T, list *CommandList) map[[2]int]int {
	t.Helper()
	const cellW, cellH = 8, 16
	out := make(map[[2]int]int)
	for _, q := range list.Background {
		if int(q.X)%cellW != 0 || int(q.Y)%cellH != 0 || int(q.W)%cellW != 0 || int(q.H)%cellH != 0 {
			t.Fatalf("background quad not cell aligned: %+v", q)
		}
		row := int(q.Y) / cellH
		for c := int(q.X) / cellW; c < int(q.X+q.W)/cellW; c++ {
			out[[2]int{row, c}]++
		}
	}
	return out
}

func TestBuildCoversExactlyDirtyRegions(t *testing.T) {
	b := newTestBuilder(t)
	grid := newTestGrid(10, 10)

	dirty := []termcore.DirtyRegion{
		{Row0: 1, Col0: 1, Row1: 2, Col1: 3},
		{Row0: 5, Col0: 0, Row1: 5, Col1: 9},
	}
	list, err := b.Build(grid, dirty, CursorState{}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if list.FullRepaint {
		t.Fatal("FullRepaint set below threshold")
	}

	covered := coveredCells(t, list)
	want := 0
	for _, r := range dirty {
		want += r.Area()
	}
	if len(covered) != want {
		t.Errorf("covered %d cells, want %d", len(covered), want)
	}
	for cell, n := range covered {
		if n != 1 {
			t.Errorf("cell %v painted %d times", cell, n)
		}
		inDirty := false
		for _, r := range dirty {
			if r.Contains(cell[0], cell[1]) {
				inDirty = true
			}
		}
		if !inDirty {
			t.Errorf("cell %v painted outside dirty regions", cell)
		}
	}
}

func TestBuildCollapsesAboveThreshold(t *testing.T) {
	b := newTestBuilder(t)
	grid := newTestGrid(10, 10)

	// 60 of 100 cells dirty crosses the 0.5 threshold.
	dirty := []termcore.DirtyRegion{{Row0: 0, Col0: 0, Row1: 5, Col1: 9}}
	list, err := b.Build(grid, dirty, CursorState{}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !list.FullRepaint {
		t.Fatal("FullRepaint not set above threshold")
	}
	if got := len(coveredCells(t, list)); got != 100 {
		t.Errorf("full repaint covered %d cells, want 100", got)
	}
}

func TestBuildOverlappingRegionsPaintOnce(t *testing.T) {
	b := newTestBuilder(t)
	grid := newTestGrid(10, 10)

	dirty := []termcore.DirtyRegion{
		{Row0: 0, Col0: 0, Row1: 2, Col1: 4},
		{Row0: 1, Col0: 2, Row1: 3, Col1: 6},
	}
	list, err := b.Build(grid, dirty, CursorState{}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for cell, n := range coveredCells(t, list) {
		if n != 1 {
			t.Errorf("cell %v painted %d times", cell, n)
		}
	}
}

func TestBuildBackgroundRLE(t *testing.T) {
	b := newTestBuilder(t)
	grid := newTestGrid(1, 6)
	red := termcore.RGB(255, 0, 0)
	blue := termcore.RGB(0, 0, 255)
	for c := 0; c < 3; c++ {
		grid.set(0, c, termcore.Cell{BG: red})
	}
	for c := 3; c < 6; c++ {
		grid.set(0, c, termcore.Cell{BG: blue})
	}

	list, err := b.Build(grid, []termcore.DirtyRegion{termcore.FullGrid(1, 6)}, CursorState{}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(list.Background) != 2 {
		t.Fatalf("len(Background) = %d, want 2 runs", len(list.Background))
	}
	if list.Background[0].Color != red || list.Background[0].W != 24 {
		t.Errorf("run 0 = %+v, want red width 24", list.Background[0])
	}
	if list.Background[1].Color != blue || list.Background[1].X != 24 {
		t.Errorf("run 1 = %+v, want blue at x 24", list.Background[1])
	}
}

func TestBuildSingleCellChange(t *testing.T) {
	// An 80x24 grid full of text with one changed cell yields exactly one
	// glyph quad.
	b := newTestBuilder(t)
	grid := newTestGrid(24, 80)
	for r := 0; r < 24; r++ {
		for c := 0; c < 80; c++ {
			grid.set(r, c, termcore.Cell{Rune: 'a', FG: termcore.RGB(200, 200, 200)})
		}
	}
	grid.set(12, 40, termcore.Cell{Rune: 'Z', FG: termcore.RGB(200, 200, 200)})

	list, err := b.Build(grid, []termcore.DirtyRegion{termcore.CellRegion(12, 40)}, CursorState{}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if list.FullRepaint {
		t.Fatal("single cell triggered full repaint")
	}
	if len(list.Glyphs) != 1 {
		t.Fatalf("len(Glyphs) = %d, want 1", len(list.Glyphs))
	}
	// Cell (12, 40) at 8x16 cells, bearing (1, 10) on a baseline at +12.
	g := list.Glyphs[0]
	if g.X != 40*8+1 || g.Y != 12*16+12-10 {
		t.Errorf("glyph at (%v, %v), want (321, 194)", g.X, g.Y)
	}
	if err := list.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestBuildEmptyDirtyNoCommands(t *testing.T) {
	b := newTestBuilder(t)
	grid := newTestGrid(4, 4)

	list, err := b.Build(grid, nil, CursorState{}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(list.Background)+len(list.Glyphs)+len(list.Overlays) != 0 {
		t.Errorf("empty build produced commands: %+v", list)
	}
}

func TestBuildCursorOverlay(t *testing.T) {
	b := newTestBuilder(t)
	grid := newTestGrid(4, 4)

	cursor := CursorState{Row: 1, Col: 2, Visible: true, Style: CursorBlock, Color: termcore.RGB(255, 255, 255)}
	list, err := b.Build(grid, nil, cursor, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(list.Overlays) != 1 {
		t.Fatalf("len(Overlays) = %d, want 1", len(list.Overlays))
	}
	q := list.Overlays[0]
	if q.X != 16 || q.Y != 16 || q.W != 8 || q.H != 16 {
		t.Errorf("cursor quad = %+v, want cell (1, 2)", q)
	}
	// The cursor cell's background is rebuilt beneath the overlay.
	if got := coveredCells(t, list); len(got) != 1 || got[[2]int{1, 2}] != 1 {
		t.Errorf("cursor background coverage = %v", got)
	}
}

func TestBuildCursorStyles(t *testing.T) {
	b := newTestBuilder(t)
	grid := newTestGrid(2, 2)

	tests := []struct {
		style      CursorStyle
		wantH      float32
		wantW      float32
		wantYDelta float32
	}{
		{CursorBlock, 16, 8, 0},
		{CursorUnderline, 2, 8, 14},
		{CursorBar, 16, 2, 0},
	}
	for _, tt := range tests {
		cursor := CursorState{Visible: true, Style: tt.style, Color: termcore.RGB(255, 255, 255)}
		list, err := b.Build(grid, nil, cursor, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		q := list.Overlays[len(list.Overlays)-1]
		if q.W != tt.wantW || q.H != tt.wantH || q.Y != tt.wantYDelta {
			t.Errorf("style %d quad = %+v, want w %v h %v y %v",
				tt.style, q, tt.wantW, tt.wantH, tt.wantYDelta)
		}
	}
}

func TestBuildAnimatingFlag(t *testing.T) {
	b := newTestBuilder(t)
	grid := newTestGrid(4, 4)
	region := termcore.DirtyRegion{Row0: 0, Col0: 0, Row1: 0, Col1: 3}

	// A static selection does not force animation.
	sel := NewSelection(region, termcore.Color{R: 40, G: 40, B: 120, A: 128})
	list, err := b.Build(grid, nil, CursorState{}, []*Effect{sel})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if list.Animating {
		t.Error("static selection set Animating")
	}
	if len(list.Overlays) != 1 {
		t.Errorf("len(Overlays) = %d, want 1 selection quad", len(list.Overlays))
	}

	// A running fade does.
	fade := NewFade(region, termcore.Color{R: 255, G: 255, B: 0, A: 200}, 1)
	list, err = b.Build(grid, nil, CursorState{}, []*Effect{fade})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !list.Animating {
		t.Error("running fade did not set Animating")
	}
}

func TestBuildUnderlineOverlay(t *testing.T) {
	b := newTestBuilder(t)
	grid := newTestGrid(1, 4)
	fg := termcore.RGB(200, 200, 200)
	for c := 1; c <= 2; c++ {
		grid.set(0, c, termcore.Cell{Rune: 'a', FG: fg, Attrs: termcore.AttrUnderline})
	}

	list, err := b.Build(grid, []termcore.DirtyRegion{termcore.FullGrid(1, 4)}, CursorState{}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(list.Overlays) != 1 {
		t.Fatalf("len(Overlays) = %d, want 1 underline run", len(list.Overlays))
	}
	q := list.Overlays[0]
	if q.X != 8 || q.W != 16 || q.H != 1 {
		t.Errorf("underline quad = %+v, want x 8 w 16 h 1", q)
	}
}

func TestCommandListValidate(t *testing.T) {
	list := &CommandList{Width: 100, Height: 100}
	list.Background = append(list.Background, Quad{X: 0, Y: 0, W: 50, H: 50})
	if err := list.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	list.Background[0].W = 200
	if err := list.Validate(); err == nil {
		t.Error("Validate() accepted quad outside viewport")
	}

	list.Background[0].W = 50
	list.Glyphs = append(list.Glyphs, GlyphQuad{U0: 0.5, U1: 0.2})
	if err := list.Validate(); err == nil {
		t.Error("Validate() accepted inverted uv rect")
	}
}

func TestBuildSurvivesAtlasGrowth(t *testing.T) {
	// A 16px atlas holds two 6x10 bitmaps; the third distinct glyph in the
	// row forces a grow to 32 while the layout callback is still running.
	// Every quad must be normalized against the final size.
	cache, err := glyph.NewCache(fakeFont{}, glyph.CacheConfig{Size: 16, MaxSize: 64, PPEM: 16})
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	b := NewBuilder(cache, layout.NewEngine(cache, fakeShaper{}, nil), 0.5, nil)

	grid := newTestGrid(4, 8)
	grid.setText(0, 0, "abcdef", termcore.RGB(200, 200, 200), termcore.Color{})

	list, err := b.Build(grid, []termcore.DirtyRegion{{Row0: 0, Col0: 0, Row1: 0, Col1: 5}}, CursorState{}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := cache.AtlasSize(); got != 32 {
		t.Fatalf("AtlasSize() after build = %d, want 32", got)
	}
	if err := list.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(list.Glyphs) != 6 {
		t.Fatalf("len(Glyphs) = %d, want 6", len(list.Glyphs))
	}

	// 6x10 bitmaps in a 32px atlas; holds for quads placed both before and
	// after the grow.
	atlas := float32(cache.AtlasSize())
	for i, g := range list.Glyphs {
		if g.U0 < 0 || g.V0 < 0 || g.U1 > 1 || g.V1 > 1 {
			t.Errorf("glyphs[%d] uv = (%v,%v)-(%v,%v), outside [0, 1]", i, g.U0, g.V0, g.U1, g.V1)
		}
		if w := (g.U1 - g.U0) * atlas; w != 6 {
			t.Errorf("glyphs[%d] uv width = %v px, want 6", i, w)
		}
		if h := (g.V1 - g.V0) * atlas; h != 10 {
			t.Errorf("glyphs[%d] uv height = %v px, want 10", i, h)
		}
	}
}
