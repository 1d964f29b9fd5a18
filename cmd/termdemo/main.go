// Command termdemo runs the render core headless against a sample grid.
//
// It loads a font, fills a small terminal grid with styled text, drives the
// frame loop through a scripted burst of frames and input events, and prints
// the collected frame metrics. Useful for smoke-testing the pipeline without
// a window system or GPU.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gogpu/termcore"
	"github.com/gogpu/termcore/frame"
	"github.com/gogpu/termcore/glyph"
	"github.com/gogpu/termcore/gpu"
	"github.com/gogpu/termcore/input"
	"github.com/gogpu/termcore/layout"
	"github.com/gogpu/termcore/loop"
)

func main() {
	var (
		fontPath = flag.String("font", "", "path to a TrueType font (required)")
		rows     = flag.Int("rows", 24, "grid rows")
		cols     = flag.Int("cols", 80, "grid columns")
		frames   = flag.Int("frames", 120, "frames to step")
	)
	flag.Parse()

	if *fontPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	fontData, err := os.ReadFile(*fontPath)
	if err != nil {
		log.Fatalf("read font: %v", err)
	}

	cfg := termcore.DefaultConfig()
	cfg.FontPath = *fontPath
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	l, grid, surface, pipe, err := buildLoop(cfg, fontData, *rows, *cols)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	defer surface.Release()

	fillSample(grid)
	l.Invalidate()
	l.SetCursor(frame.CursorState{Row: grid.rows - 1, Col: 2, Visible: true, Color: termcore.RGB(0xE0, 0xE0, 0xE0)})
	l.AddEffect(frame.NewCursorBlink(termcore.RGB(0xE0, 0xE0, 0xE0), 0.5))

	if err := drive(l, pipe, *frames, cfg.FrameInterval()); err != nil {
		log.Fatalf("frame loop: %v", err)
	}

	report(l, surface)
}

// buildLoop wires the full pipeline onto a null surface.
func buildLoop(cfg termcore.Config, fontData []byte, rows, cols int) (*loop.Loop, *demoGrid, *gpu.NullSurface, *input.Pipeline, error) {
	rast, err := glyph.NewRasterizer(fontData)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("rasterizer: %w", err)
	}

	cacheCfg := glyph.DefaultCacheConfig()
	cacheCfg.Size = cfg.AtlasSize
	cacheCfg.MaxSize = cfg.AtlasMaxSize
	cacheCfg.PPEM = cfg.FontSize
	cache, err := glyph.NewCache(rast, cacheCfg)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("glyph cache: %w", err)
	}

	shaper, err := layout.NewShaper(fontData)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("shaper: %w", err)
	}

	grid := newDemoGrid(rows, cols)
	cellW, cellH := cache.CellSize()
	surface := gpu.NewNullSurface(cols*cellW, rows*cellH)
	pipe := input.NewPipeline(cfg.InputQueueDepth, cfg.FrameInterval(), nil)

	var l *loop.Loop
	l, err = loop.New(loop.Options{
		Config:  cfg,
		Grid:    grid,
		Surface: surface,
		Cache:   cache,
		Builder: frame.NewBuilder(cache, layout.NewEngine(cache, shaper, nil), cfg.CollapseThreshold, nil),
		Input:   pipe,
		OnEvent: func(evs []input.Event) {
			if touched := applyEvents(grid, evs); len(touched) > 0 {
				l.Invalidate(touched...)
			}
		},
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return l, grid, surface, pipe, nil
}

// drive steps the loop at the configured pace, injecting a keystroke every
// tenth frame so input latency shows up in the metrics.
func drive(l *loop.Loop, pipe *input.Pipeline, frames int, interval time.Duration) error {
	typed := 0
	for i := 0; i < frames; i++ {
		if i%10 == 5 {
			r := rune('a' + typed%26)
			typed++
			if err := pipe.Submit(input.NewKeyPress(input.KeyRune, r, 0)); err != nil {
				return err
			}
		}
		if err := l.Step(time.Now()); err != nil {
			return err
		}
		time.Sleep(interval)
	}
	return nil
}

func report(l *loop.Loop, surface *gpu.NullSurface) {
	s := l.Metrics().Snapshot()
	log.Printf("frames rendered:  %d (%d submitted to surface)", s.FramesTotal, len(surface.Submitted()))
	log.Printf("frames presented: %d, dropped: %d", surface.Presented(), s.FramesDropped)
	log.Printf("frame time:       avg %v, max %v", s.AvgFrameTime, s.MaxFrameTime)
	log.Printf("input latency:    avg %v, max %v", s.AvgInputLatency, s.MaxInputLatency)
	log.Printf("atlas uploads:    %d", len(surface.AtlasUploads()))
}

// demoGrid is a flat in-memory cell grid with a cursor for typed input.
type demoGrid struct {
	rows, cols int
	cells      []termcore.Cell
	typeCol    int
}

func newDemoGrid(rows, cols int) *demoGrid {
	return &demoGrid{rows: rows, cols: cols, cells: make([]termcore.Cell, rows*cols)}
}

func (g *demoGrid) Size() (rows, cols int) { return g.rows, g.cols }

func (g *demoGrid) CellAt(row, col int) termcore.Cell {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return termcore.Cell{}
	}
	return g.cells[row*g.cols+col]
}

func (g *demoGrid) set(row, col int, c termcore.Cell) {
	if row >= 0 && row < g.rows && col >= 0 && col < g.cols {
		g.cells[row*g.cols+col] = c
	}
}

func (g *demoGrid) writeString(row, col int, s string, fg, bg termcore.Color, attrs termcore.AttrMask) {
	for _, r := range s {
		g.set(row, col, termcore.Cell{Rune: r, FG: fg, BG: bg, Attrs: attrs})
		col++
	}
}

// applyEvents echoes keystrokes onto the bottom row and returns the cells
// it touched so the caller can invalidate them.
func applyEvents(g *demoGrid, evs []input.Event) []termcore.DirtyRegion {
	var touched []termcore.DirtyRegion
	for _, ev := range evs {
		if ev.Kind != input.KindKeyPress || ev.Rune == 0 {
			continue
		}
		col := 2 + g.typeCol
		g.set(g.rows-1, col, termcore.Cell{
			Rune: ev.Rune,
			FG:   termcore.RGB(0x98, 0xC3, 0x79),
			BG:   termcore.RGB(0x1E, 0x22, 0x27),
		})
		touched = append(touched, termcore.CellRegion(g.rows-1, col))
		g.typeCol = (g.typeCol + 1) % (g.cols - 2)
	}
	return touched
}

func fillSample(g *demoGrid) {
	bg := termcore.RGB(0x1E, 0x22, 0x27)
	fg := termcore.RGB(0xD4, 0xD4, 0xD4)
	accent := termcore.RGB(0x61, 0xAF, 0xEF)

	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			g.set(row, col, termcore.Cell{Rune: ' ', FG: fg, BG: bg})
		}
	}

	g.writeString(0, 0, "termdemo", accent, bg, termcore.AttrBold)
	g.writeString(1, 0, "plain text with some styling:", fg, bg, 0)
	g.writeString(2, 2, "bold", fg, bg, termcore.AttrBold)
	g.writeString(2, 8, "underline", fg, bg, termcore.AttrUnderline)
	g.writeString(2, 19, "inverse", fg, bg, termcore.AttrInverse)
	g.writeString(3, 2, "wide: 日本語 한국어", fg, bg, 0)
	g.writeString(4, 2, "rtl: שלום עולם", fg, bg, 0)
	g.writeString(g.rows-1, 0, "> ", accent, bg, 0)
}
