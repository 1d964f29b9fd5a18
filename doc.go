// Package termcore is a GPU-accelerated terminal render and input core.
//
// # Overview
//
// termcore turns a grid of styled terminal cells plus an input-event stream
// into correctly paced, low-latency GPU frames. The root package holds the
// shared data model: cells, colors, attributes, dirty regions, and
// configuration. The work happens in the sub-packages:
//
//   - glyph: rasterization and the shelf-packed glyph atlas
//   - layout: shaping, grapheme clustering, bidi segmentation
//   - frame: per-frame command list construction and effects
//   - input: the event queue between platform and render loop
//   - loop: frame pacing, state machine, surface-loss recovery
//   - metrics: passive frame timing instrumentation
//   - gpu: the presentation surface, wgpu-backed and null
//
// # Quick Start
//
//	pipe := input.NewPipeline(cfg.InputQueueDepth, cfg.FrameInterval(), nil)
//	cache, _ := glyph.NewCache(rasterizer, glyph.DefaultCacheConfig())
//	eng := layout.NewEngine(cache, shaper, nil)
//	builder := frame.NewBuilder(cache, eng, cfg.CollapseThreshold, nil)
//
//	l, _ := loop.New(loop.Options{
//		Config:  cfg,
//		Grid:    grid,    // the terminal state, read-only
//		Surface: surface, // gpu.WgpuSurface or gpu.NullSurface
//		Cache:   cache,
//		Builder: builder,
//		Input:   pipe,
//	})
//	err := l.Run(ctx)
//
// The terminal emulator owns the grid and PTY plumbing; termcore only reads
// cell state and renders it. One goroutine runs the loop and all GPU work;
// input producers hand events across through the pipeline.
//
// # Coordinate System
//
// Cell positions are (row, col) with the origin at the top-left. Pixel
// positions are x right, y down; glyph quads are placed on the baseline.
package termcore
