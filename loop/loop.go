package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/termcore"
	"github.com/gogpu/termcore/frame"
	"github.com/gogpu/termcore/glyph"
	"github.com/gogpu/termcore/gpu"
	"github.com/gogpu/termcore/input"
	"github.com/gogpu/termcore/metrics"
)

// Options wires the loop's collaborators. Grid, Surface, Cache, Builder,
// and Input are required; the rest default to silent no-ops.
type Options struct {
	Config  termcore.Config
	Grid    termcore.Grid
	Surface gpu.Surface
	Cache   *glyph.Cache
	Builder *frame.Builder
	Input   *input.Pipeline

	// Dirty optionally drains change tracking owned by the grid itself.
	// Regions reported here are merged with explicit Invalidate calls.
	Dirty termcore.DirtySource

	// OnEvent receives each batch of polled input events before the frame
	// that reflects them is built. The handler mutates the grid and marks
	// regions dirty.
	OnEvent func([]input.Event)

	// OnSurfaceLost is called when the surface reports loss, before the
	// retry. The host uses it to recreate its swapchain.
	OnSurfaceLost func() error

	Monitor *metrics.Monitor
	Logger  *slog.Logger

	// Now is the clock, a seam for tests. Defaults to time.Now.
	Now func() time.Time
}

// Loop owns frame pacing. It is the only goroutine that touches the cache,
// the builder, and the surface; input arrives through the pipeline, content
// changes through Invalidate.
type Loop struct {
	cfg      termcore.Config
	grid     termcore.Grid
	dirtySrc termcore.DirtySource
	surface  gpu.Surface
	cache    *glyph.Cache
	builder  *frame.Builder
	pipeline *input.Pipeline
	monitor  *metrics.Monitor
	log      *slog.Logger

	onEvent func([]input.Event)
	onLost  func() error
	now     func() time.Time

	mu          sync.Mutex
	state       State
	cursor      frame.CursorState
	effects     []*frame.Effect
	pending     []termcore.DirtyRegion
	contentWake chan struct{}

	lostRetries int
	lastFrame   time.Time
}

// New validates the configuration and assembles a loop. The loop starts
// idle; Run or Step drives it.
func New(opts Options) (*Loop, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Grid == nil {
		return nil, errors.New("loop: nil grid")
	}
	if opts.Surface == nil {
		return nil, errors.New("loop: nil surface")
	}
	if opts.Cache == nil {
		return nil, errors.New("loop: nil glyph cache")
	}
	if opts.Builder == nil {
		return nil, errors.New("loop: nil frame builder")
	}
	if opts.Input == nil {
		return nil, errors.New("loop: nil input pipeline")
	}
	if opts.Monitor == nil {
		opts.Monitor = metrics.NewMonitor(opts.Config.MetricsCapacity)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	frame.SetPhaseBound(opts.Config.EffectPhaseMax)
	return &Loop{
		cfg:         opts.Config,
		grid:        opts.Grid,
		dirtySrc:    opts.Dirty,
		surface:     opts.Surface,
		cache:       opts.Cache,
		builder:     opts.Builder,
		pipeline:    opts.Input,
		monitor:     opts.Monitor,
		log:         opts.Logger,
		onEvent:     opts.OnEvent,
		onLost:      opts.OnSurfaceLost,
		now:         opts.Now,
		state:       StateIdle,
		contentWake: make(chan struct{}, 1),
	}, nil
}

// State returns the current pacing state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Invalidate marks regions as needing redraw and wakes an idle loop.
// With no arguments the whole grid is invalidated.
func (l *Loop) Invalidate(regions ...termcore.DirtyRegion) {
	l.mu.Lock()
	if len(regions) == 0 {
		rows, cols := l.grid.Size()
		l.pending = append(l.pending[:0], termcore.FullGrid(rows, cols))
	} else {
		l.pending = append(l.pending, regions...)
	}
	l.state = wake(l.state)
	l.mu.Unlock()
	l.signalContent()
}

// SetCursor updates the cursor and invalidates its old and new cells.
func (l *Loop) SetCursor(c frame.CursorState) {
	l.mu.Lock()
	old := l.cursor
	l.cursor = c
	if old.Visible {
		l.pending = append(l.pending, termcore.CellRegion(old.Row, old.Col))
	}
	if c.Visible {
		l.pending = append(l.pending, termcore.CellRegion(c.Row, c.Col))
	}
	l.state = wake(l.state)
	l.mu.Unlock()
	l.signalContent()
}

// AddEffect attaches a visual effect. Finished effects are discarded
// automatically after their last frame.
func (l *Loop) AddEffect(e *frame.Effect) {
	if e == nil {
		return
	}
	l.mu.Lock()
	l.effects = append(l.effects, e)
	l.state = wake(l.state)
	l.mu.Unlock()
	l.signalContent()
}

// ClearEffects removes all active effects.
func (l *Loop) ClearEffects() {
	l.mu.Lock()
	l.effects = nil
	l.state = wake(l.state)
	l.mu.Unlock()
	l.signalContent()
}

func (l *Loop) signalContent() {
	select {
	case l.contentWake <- struct{}{}:
	default:
	}
}

// Run drives the loop until ctx is cancelled. Idle blocks on the wake
// channels; busy states pace frames at the configured interval. On
// cancellation remaining input is drained to the event handler before
// returning ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	interval := l.cfg.FrameInterval()

	for {
		if l.State() == StateIdle {
			select {
			case <-ctx.Done():
				return l.shutdown(ctx)
			case <-l.pipeline.Wake():
			case <-l.contentWake:
			}
			l.mu.Lock()
			l.state = wake(l.state)
			l.mu.Unlock()
			continue
		}

		start := l.now()
		if err := l.Step(start); err != nil {
			return err
		}

		elapsed := l.now().Sub(start)
		if elapsed >= interval {
			// Overrun: skip the sleep, count the miss, keep going.
			l.monitor.CountDropped()
			l.log.Debug("frame overrun", "elapsed", elapsed, "interval", interval)
		} else {
			timer := time.NewTimer(interval - elapsed)
			select {
			case <-ctx.Done():
				timer.Stop()
				return l.shutdown(ctx)
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return l.shutdown(ctx)
		}
	}
}

// shutdown drains queued input to the handler so no event is silently lost,
// then reports the cancellation cause.
func (l *Loop) shutdown(ctx context.Context) error {
	if events := l.pipeline.Poll(); len(events) > 0 && l.onEvent != nil {
		l.onEvent(events)
	}
	return ctx.Err()
}

// Step executes one frame at the given timestamp: poll input, apply it,
// build the dirty regions, upload, submit, present. A step with nothing to
// draw settles back to idle without touching the GPU.
func (l *Loop) Step(start time.Time) error {
	l.monitor.Record(metrics.StageFrameStart, start)

	events := l.pipeline.Poll()
	if len(events) > 0 && l.onEvent != nil {
		l.onEvent(events)
	}

	dirty := l.takeDirty()
	cursor, effects, animating := l.updateEffects(start)

	if len(dirty) == 0 && !animating && len(effects) == 0 {
		// Spurious wake. Close any open latency measurement; the events
		// produced no visible change, so there is nothing to measure
		// against.
		if len(events) > 0 {
			l.pipeline.MarkPresented(start)
		}
		l.setState(StateIdle)
		return nil
	}

	l.setState(StateRendering)

	list, err := l.builder.Build(l.grid, dirty, cursor, effects)
	if err != nil {
		return fmt.Errorf("build frame: %w", err)
	}
	l.monitor.Record(metrics.StageBuild, l.now())

	if err := l.presentList(list); err != nil {
		if errors.Is(err, gpu.ErrSurfaceLost) {
			return l.recoverSurface(dirty)
		}
		return err
	}
	l.lostRetries = 0

	presented := l.now()
	if d, ok := l.pipeline.MarkPresented(presented); ok {
		l.monitor.RecordInputLatency(d)
	}
	l.monitor.Record(metrics.StageFrameEnd, presented)

	l.mu.Lock()
	l.state = settle(list.Animating, len(l.pending) > 0)
	l.mu.Unlock()
	return nil
}

// presentList runs the GPU half of a frame: atlas upload, submit, present.
func (l *Loop) presentList(list *frame.CommandList) error {
	if up := l.cache.TakeUploads(); len(up.Data) > 0 || up.Size > 0 {
		if err := l.surface.UploadAtlas(up); err != nil {
			return fmt.Errorf("upload atlas: %w", err)
		}
	}
	l.monitor.Record(metrics.StageUpload, l.now())

	if err := l.surface.Submit(list); err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}
	l.monitor.Record(metrics.StageSubmit, l.now())

	if err := l.surface.Present(); err != nil {
		return fmt.Errorf("present frame: %w", err)
	}
	return nil
}

// recoverSurface handles surface loss: give the host a chance to rebuild
// its swapchain, drop the glyph atlas so the next frame re-uploads it in
// full, and schedule a full repaint. A bounded retry budget turns repeated
// loss into a hard error.
func (l *Loop) recoverSurface(dirty []termcore.DirtyRegion) error {
	l.lostRetries++
	if l.lostRetries > l.cfg.SurfaceLostRetries {
		return fmt.Errorf("surface lost %d times in a row: %w", l.lostRetries, gpu.ErrSurfaceLost)
	}
	l.log.Warn("surface lost, rebuilding", "attempt", l.lostRetries)

	if l.onLost != nil {
		if err := l.onLost(); err != nil {
			return fmt.Errorf("rebuild surface: %w", err)
		}
	}

	l.cache.Reset()

	l.mu.Lock()
	rows, cols := l.grid.Size()
	l.pending = append(l.pending[:0], termcore.FullGrid(rows, cols))
	// Regions from the failed frame are covered by the full repaint.
	_ = dirty
	l.state = StateDirty
	l.mu.Unlock()
	return nil
}

// takeDirty collects pending regions from Invalidate and from the grid's
// own change tracking.
func (l *Loop) takeDirty() []termcore.DirtyRegion {
	l.mu.Lock()
	dirty := l.pending
	l.pending = nil
	l.mu.Unlock()

	if l.dirtySrc != nil {
		dirty = append(dirty, l.dirtySrc.DirtyRegions()...)
	}
	return dirty
}

// updateEffects advances effect time by the delta since the last frame,
// discards finished effects, and snapshots the cursor. Returns whether any
// surviving effect still animates.
func (l *Loop) updateEffects(start time.Time) (frame.CursorState, []*frame.Effect, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var dt float32
	if !l.lastFrame.IsZero() {
		dt = float32(start.Sub(l.lastFrame).Seconds())
	}
	l.lastFrame = start

	kept := l.effects[:0]
	animating := false
	for _, e := range l.effects {
		e.Update(dt)
		if e.Done() {
			continue
		}
		kept = append(kept, e)
		if e.Animating() {
			animating = true
		}
	}
	l.effects = kept

	out := make([]*frame.Effect, len(kept))
	copy(out, kept)
	return l.cursor, out, animating
}

// Metrics returns the loop's monitor for host-side inspection.
func (l *Loop) Metrics() *metrics.Monitor {
	return l.monitor
}
