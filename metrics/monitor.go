// Package metrics provides passive performance instrumentation for the
// render pipeline. The Monitor is advisory only: it never blocks, never
// returns values that feed control flow, and no component may depend on its
// presence for correctness. Components receive it as an explicit handle,
// never through ambient global state.
package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Stage identifies a pipeline stage boundary for timestamp recording.
type Stage int

const (
	// StageFrameStart marks the beginning of a frame build.
	StageFrameStart Stage = iota

	// StageLayout marks completion of text layout.
	StageLayout

	// StageBuild marks completion of frame command-list construction.
	StageBuild

	// StageUpload marks completion of GPU resource uploads.
	StageUpload

	// StageSubmit marks submission of the frame to the GPU surface.
	StageSubmit

	// StageFrameEnd marks present completion; closes the frame record.
	StageFrameEnd
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageFrameStart:
		return "frame_start"
	case StageLayout:
		return "layout"
	case StageBuild:
		return "build"
	case StageUpload:
		return "upload"
	case StageSubmit:
		return "submit"
	case StageFrameEnd:
		return "frame_end"
	default:
		return "unknown"
	}
}

// FrameMetrics is one frame's timing record.
type FrameMetrics struct {
	// FrameStart is the StageFrameStart timestamp.
	FrameStart time.Time

	// FrameEnd is the StageFrameEnd timestamp.
	FrameEnd time.Time

	// InputLatency is the input-to-photon latency of the oldest input
	// event made visible by this frame. Zero when the frame carried no
	// input feedback.
	InputLatency time.Duration
}

// Duration returns the frame's total build+submit+present time.
func (m FrameMetrics) Duration() time.Duration {
	return m.FrameEnd.Sub(m.FrameStart)
}

// Summary aggregates the retained frame history.
type Summary struct {
	// Frames is the number of records in the ring.
	Frames int

	// FramesTotal counts every completed frame since construction.
	FramesTotal uint64

	// FramesDropped counts frames whose build+submit exceeded the
	// pacing interval.
	FramesDropped uint64

	// AvgFrameTime and MaxFrameTime summarize retained frame durations.
	AvgFrameTime time.Duration
	MaxFrameTime time.Duration

	// AvgInputLatency and MaxInputLatency summarize retained nonzero
	// input-to-photon latencies.
	AvgInputLatency time.Duration
	MaxInputLatency time.Duration

	// HeapBytes is the heap allocation sampled at Snapshot time.
	HeapBytes uint64
}

// Monitor records frame timings into a bounded ring buffer.
// The ring holds a fixed number of FrameMetrics; the oldest record is
// evicted on overflow.
//
// Monitor is safe for concurrent use.
type Monitor struct {
	mu sync.Mutex

	// ring is the bounded frame history.
	ring  []FrameMetrics
	head  int
	count int

	// current accumulates the in-progress frame between
	// StageFrameStart and StageFrameEnd.
	current        FrameMetrics
	currentStarted bool

	// pendingLatency holds the latency to attach to the current frame.
	pendingLatency time.Duration

	framesTotal   atomic.Uint64
	framesDropped atomic.Uint64
}

// NewMonitor creates a monitor retaining up to capacity frames.
// A non-positive capacity defaults to 240.
func NewMonitor(capacity int) *Monitor {
	if capacity <= 0 {
		capacity = 240
	}
	return &Monitor{
		ring: make([]FrameMetrics, capacity),
	}
}

// Record notes a stage-boundary timestamp. StageFrameStart opens a frame
// record; StageFrameEnd closes it and appends it to the ring. Intermediate
// stages are accepted for completeness but only the start/end pair and the
// pending input latency are retained.
func (m *Monitor) Record(stage Stage, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch stage {
	case StageFrameStart:
		m.current = FrameMetrics{FrameStart: t}
		m.currentStarted = true
	case StageFrameEnd:
		if !m.currentStarted {
			return
		}
		m.current.FrameEnd = t
		m.current.InputLatency = m.pendingLatency
		m.pendingLatency = 0
		m.currentStarted = false
		m.push(m.current)
		m.framesTotal.Add(1)
	default:
		// Intermediate stages carry no retained state.
	}
}

// RecordInputLatency attaches an input-to-photon latency to the frame
// currently being recorded. When several events become visible in the same
// frame the largest latency (the oldest event) wins.
func (m *Monitor) RecordInputLatency(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	if d > m.pendingLatency {
		m.pendingLatency = d
	}
	m.mu.Unlock()
}

// CountDropped increments the dropped-frame counter. Called by the render
// loop when a frame overruns the pacing interval.
func (m *Monitor) CountDropped() {
	m.framesDropped.Add(1)
}

// push appends a record, evicting the oldest on overflow.
// Caller holds mu.
func (m *Monitor) push(rec FrameMetrics) {
	m.ring[m.head] = rec
	m.head = (m.head + 1) % len(m.ring)
	if m.count < len(m.ring) {
		m.count++
	}
}

// Len returns the number of retained frame records.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Snapshot returns an aggregate view of the retained history plus a heap
// sample. Snapshot never blocks the render path beyond the ring mutex.
func (m *Monitor) Snapshot() Summary {
	m.mu.Lock()
	var (
		sumFrame   time.Duration
		maxFrame   time.Duration
		sumLatency time.Duration
		maxLatency time.Duration
		latencyN   int
	)
	n := m.count
	for i := 0; i < n; i++ {
		idx := (m.head - n + i + len(m.ring)) % len(m.ring)
		rec := m.ring[idx]
		d := rec.Duration()
		sumFrame += d
		if d > maxFrame {
			maxFrame = d
		}
		if rec.InputLatency > 0 {
			sumLatency += rec.InputLatency
			latencyN++
			if rec.InputLatency > maxLatency {
				maxLatency = rec.InputLatency
			}
		}
	}
	m.mu.Unlock()

	s := Summary{
		Frames:        n,
		FramesTotal:   m.framesTotal.Load(),
		FramesDropped: m.framesDropped.Load(),
		MaxFrameTime:  maxFrame,
	}
	if n > 0 {
		s.AvgFrameTime = sumFrame / time.Duration(n)
	}
	if latencyN > 0 {
		s.AvgInputLatency = sumLatency / time.Duration(latencyN)
		s.MaxInputLatency = maxLatency
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapBytes = ms.HeapAlloc

	return s
}

// Recent returns up to n of the most recent frame records, newest last.
func (m *Monitor) Recent(n int) []FrameMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || m.count == 0 {
		return nil
	}
	if n > m.count {
		n = m.count
	}
	out := make([]FrameMetrics, n)
	for i := 0; i < n; i++ {
		idx := (m.head - n + i + len(m.ring)) % len(m.ring)
		out[i] = m.ring[idx]
	}
	return out
}
