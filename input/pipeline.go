package input

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrQueueOverflow is returned by Submit when queue pressure forced an
// event to be dropped. Keystrokes themselves are never the dropped event.
var ErrQueueOverflow = errors.New("input: queue overflow")

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Submitted uint64
	Coalesced uint64
	// DroppedUnknown counts unmapped scancodes discarded at submit.
	DroppedUnknown uint64
	// DroppedOverflow counts events discarded under queue pressure.
	DroppedOverflow uint64
}

// Pipeline is the single-producer single-consumer event queue between the
// platform input goroutine and the render loop. The producer calls Submit,
// the consumer drains with Poll once per loop tick; no other access pattern
// is supported.
//
// Consecutive mouse moves inside the coalesce window collapse to the latest
// position and scroll deltas within the window are summed, so a fast mouse
// cannot flood the queue. Under overflow the pipeline sheds mouse moves
// first; keystrokes are never dropped.
type Pipeline struct {
	mu    sync.Mutex
	queue []Event
	depth int

	window time.Duration

	// oldestPending is the arrival time of the oldest polled event that
	// has not been presented yet. Zero when no latency measurement is
	// open.
	oldestPending time.Time

	wake chan struct{}
	log  *slog.Logger

	submitted       atomic.Uint64
	coalesced       atomic.Uint64
	droppedUnknown  atomic.Uint64
	droppedOverflow atomic.Uint64
}

// NewPipeline creates a pipeline with the given queue depth. depth <= 0
// selects the default 256. window is the coalescing interval, normally the
// frame interval; zero disables coalescing. logger may be nil for silence.
func NewPipeline(depth int, window time.Duration, logger *slog.Logger) *Pipeline {
	if depth <= 0 {
		depth = 256
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		queue:  make([]Event, 0, depth),
		depth:  depth,
		window: window,
		wake:   make(chan struct{}, 1),
		log:    logger,
	}
}

// Wake returns the channel signalled when an event arrives on an empty
// queue. The render loop selects on it while idle.
func (p *Pipeline) Wake() <-chan struct{} {
	return p.wake
}

// Submit enqueues one event from the producer goroutine. Unmapped
// scancodes (KeyNone with no rune) are dropped with a diagnostic. Returns
// ErrQueueOverflow when queue pressure forced an event out; the submitted
// keystroke itself is still enqueued in that case.
func (p *Pipeline) Submit(ev Event) error {
	if ev.Kind == KindKeyPress && ev.Key == KeyNone && ev.Rune == 0 {
		p.droppedUnknown.Add(1)
		p.log.Warn("dropping unmapped scancode", "modifiers", ev.Modifiers.String())
		return nil
	}

	p.mu.Lock()
	wasEmpty := len(p.queue) == 0
	err := p.enqueue(ev)
	p.mu.Unlock()

	if wasEmpty {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
	return err
}

// enqueue applies coalescing and overflow policy. Caller holds mu.
func (p *Pipeline) enqueue(ev Event) error {
	p.submitted.Add(1)

	// Coalesce against the most recent queued event.
	if n := len(p.queue); n > 0 && p.window > 0 {
		last := &p.queue[n-1]
		switch {
		case ev.Kind == KindMouseMove && last.Kind == KindMouseMove &&
			ev.Time.Sub(last.Time) <= p.window:
			// Latest position wins; keep the earlier arrival time so the
			// latency measurement stays honest.
			t := last.Time
			*last = ev
			last.Time = t
			p.coalesced.Add(1)
			return nil
		case ev.Kind == KindScroll && last.Kind == KindScroll &&
			ev.Time.Sub(last.Time) <= p.window:
			last.ScrollX += ev.ScrollX
			last.ScrollY += ev.ScrollY
			p.coalesced.Add(1)
			return nil
		}
	}

	if len(p.queue) < p.depth {
		p.queue = append(p.queue, ev)
		return nil
	}

	// Overflow: shed the oldest mouse move first.
	for i, q := range p.queue {
		if q.Kind == KindMouseMove {
			copy(p.queue[i:], p.queue[i+1:])
			p.queue[len(p.queue)-1] = ev
			p.droppedOverflow.Add(1)
			return ErrQueueOverflow
		}
	}
	// No mouse move to shed. An incoming mouse move is the least
	// significant event present, so it is the one dropped.
	if ev.Kind == KindMouseMove {
		p.droppedOverflow.Add(1)
		return ErrQueueOverflow
	}
	// Keystrokes are never dropped: exceed the configured depth and keep
	// the event.
	p.queue = append(p.queue, ev)
	p.log.Warn("input queue over depth", "depth", p.depth, "len", len(p.queue))
	return ErrQueueOverflow
}

// Poll drains and returns every queued event, oldest first. The returned
// slice is owned by the caller. Poll opens a latency measurement at the
// oldest drained event; MarkPresented closes it.
func (p *Pipeline) Poll() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil
	}
	out := make([]Event, len(p.queue))
	copy(out, p.queue)
	p.queue = p.queue[:0]

	if p.oldestPending.IsZero() {
		p.oldestPending = out[0].Time
	}
	return out
}

// MarkPresented closes the open latency measurement: the duration from the
// oldest polled event's arrival to the present timestamp. Returns zero and
// false when no measurement is open.
func (p *Pipeline) MarkPresented(t time.Time) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.oldestPending.IsZero() {
		return 0, false
	}
	d := t.Sub(p.oldestPending)
	p.oldestPending = time.Time{}
	if d < 0 {
		d = 0
	}
	return d, true
}

// Len returns the number of queued events.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted:       p.submitted.Load(),
		Coalesced:       p.coalesced.Load(),
		DroppedUnknown:  p.droppedUnknown.Load(),
		DroppedOverflow: p.droppedOverflow.Load(),
	}
}
