package input

import (
	"errors"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func keyAt(r rune, t time.Time) Event {
	return Event{Kind: KindKeyPress, Key: KeyRune, Rune: r, Time: t}
}

func moveAt(row, col int, t time.Time) Event {
	return Event{Kind: KindMouseMove, Row: row, Col: col, Time: t}
}

func scrollAt(dy float32, t time.Time) Event {
	return Event{Kind: KindScroll, ScrollY: dy, Time: t}
}

func TestSubmitPollOrder(t *testing.T) {
	p := NewPipeline(16, 0, nil)

	for i, r := range "abc" {
		if err := p.Submit(keyAt(r, base.Add(time.Duration(i)*time.Millisecond))); err != nil {
			t.Fatalf("Submit(%q) error = %v", r, err)
		}
	}
	got := p.Poll()
	if len(got) != 3 {
		t.Fatalf("len(Poll()) = %d, want 3", len(got))
	}
	for i, r := range "abc" {
		if got[i].Rune != r {
			t.Errorf("event %d rune = %q, want %q", i, got[i].Rune, r)
		}
	}
	if p.Len() != 0 {
		t.Errorf("Len() after Poll = %d, want 0", p.Len())
	}
}

func TestMouseMovesCoalesce(t *testing.T) {
	// 50 moves inside one frame interval collapse to a single record
	// holding the final position.
	p := NewPipeline(256, 16*time.Millisecond, nil)

	for i := 0; i < 50; i++ {
		ev := moveAt(1, i, base.Add(time.Duration(i)*100*time.Microsecond))
		if err := p.Submit(ev); err != nil {
			t.Fatalf("Submit(move %d) error = %v", i, err)
		}
	}
	got := p.Poll()
	if len(got) != 1 {
		t.Fatalf("len(Poll()) = %d, want 1 coalesced move", len(got))
	}
	if got[0].Col != 49 {
		t.Errorf("coalesced position col = %d, want 49 (latest wins)", got[0].Col)
	}
	if !got[0].Time.Equal(base) {
		t.Errorf("coalesced arrival = %v, want first event's %v", got[0].Time, base)
	}
	if s := p.Stats(); s.Coalesced != 49 {
		t.Errorf("Coalesced = %d, want 49", s.Coalesced)
	}
}

func TestScrollDeltasSum(t *testing.T) {
	p := NewPipeline(256, 16*time.Millisecond, nil)

	for i := 0; i < 5; i++ {
		p.Submit(scrollAt(1.5, base.Add(time.Duration(i)*time.Millisecond)))
	}
	got := p.Poll()
	if len(got) != 1 {
		t.Fatalf("len(Poll()) = %d, want 1", len(got))
	}
	if got[0].ScrollY != 7.5 {
		t.Errorf("summed ScrollY = %v, want 7.5", got[0].ScrollY)
	}
}

func TestCoalescingBreaksAcrossWindow(t *testing.T) {
	p := NewPipeline(256, 10*time.Millisecond, nil)

	p.Submit(moveAt(0, 0, base))
	p.Submit(moveAt(0, 1, base.Add(50*time.Millisecond)))

	if got := p.Poll(); len(got) != 2 {
		t.Errorf("len(Poll()) = %d, want 2 (outside window)", len(got))
	}
}

func TestKeystrokeInterruptsCoalescing(t *testing.T) {
	p := NewPipeline(256, 16*time.Millisecond, nil)

	p.Submit(moveAt(0, 0, base))
	p.Submit(keyAt('x', base.Add(time.Millisecond)))
	p.Submit(moveAt(0, 5, base.Add(2*time.Millisecond)))

	got := p.Poll()
	if len(got) != 3 {
		t.Fatalf("len(Poll()) = %d, want 3", len(got))
	}
	if got[1].Rune != 'x' {
		t.Errorf("event order broken: %+v", got)
	}
}

func TestUnknownScancodeDropped(t *testing.T) {
	p := NewPipeline(16, 0, nil)

	if err := p.Submit(Event{Kind: KindKeyPress, Key: KeyNone, Time: base}); err != nil {
		t.Fatalf("Submit(unknown) error = %v", err)
	}
	if got := p.Poll(); got != nil {
		t.Errorf("unknown scancode enqueued: %+v", got)
	}
	if s := p.Stats(); s.DroppedUnknown != 1 {
		t.Errorf("DroppedUnknown = %d, want 1", s.DroppedUnknown)
	}
}

func TestOverflowShedsMouseMovesNotKeys(t *testing.T) {
	p := NewPipeline(4, 0, nil)

	p.Submit(moveAt(0, 0, base))
	for i, r := range "abc" {
		p.Submit(keyAt(r, base.Add(time.Duration(i+1)*time.Millisecond)))
	}

	// Queue full: the keystroke must displace the queued mouse move.
	err := p.Submit(keyAt('d', base.Add(5*time.Millisecond)))
	if !errors.Is(err, ErrQueueOverflow) {
		t.Fatalf("Submit error = %v, want ErrQueueOverflow", err)
	}

	got := p.Poll()
	if len(got) != 4 {
		t.Fatalf("len(Poll()) = %d, want 4", len(got))
	}
	for _, ev := range got {
		if ev.Kind == KindMouseMove {
			t.Error("mouse move survived overflow ahead of a keystroke")
		}
	}
	want := "abcd"
	for i, ev := range got {
		if ev.Rune != rune(want[i]) {
			t.Errorf("event %d = %q, want %q", i, ev.Rune, want[i])
		}
	}
}

func TestOverflowNeverDropsKeystrokes(t *testing.T) {
	p := NewPipeline(2, 0, nil)

	var overflowed bool
	for i := 0; i < 5; i++ {
		if err := p.Submit(keyAt(rune('a'+i), base.Add(time.Duration(i)*time.Millisecond))); err != nil {
			overflowed = true
		}
	}
	if !overflowed {
		t.Fatal("no overflow reported past depth")
	}
	if got := p.Poll(); len(got) != 5 {
		t.Errorf("len(Poll()) = %d, want all 5 keystrokes", len(got))
	}
}

func TestIncomingMouseMoveDroppedWhenFullOfKeys(t *testing.T) {
	p := NewPipeline(2, 0, nil)

	p.Submit(keyAt('a', base))
	p.Submit(keyAt('b', base.Add(time.Millisecond)))

	err := p.Submit(moveAt(0, 0, base.Add(2*time.Millisecond)))
	if !errors.Is(err, ErrQueueOverflow) {
		t.Fatalf("Submit error = %v, want ErrQueueOverflow", err)
	}
	got := p.Poll()
	if len(got) != 2 || got[0].Rune != 'a' || got[1].Rune != 'b' {
		t.Errorf("Poll() = %+v, want the two keystrokes", got)
	}
}

func TestLatencyMeasurement(t *testing.T) {
	p := NewPipeline(16, 0, nil)

	if _, ok := p.MarkPresented(base); ok {
		t.Error("MarkPresented open without a poll")
	}

	p.Submit(keyAt('a', base))
	p.Poll()

	d, ok := p.MarkPresented(base.Add(12 * time.Millisecond))
	if !ok {
		t.Fatal("MarkPresented() not open after poll")
	}
	if d != 12*time.Millisecond {
		t.Errorf("latency = %v, want 12ms", d)
	}

	// The measurement is closed.
	if _, ok := p.MarkPresented(base.Add(20 * time.Millisecond)); ok {
		t.Error("MarkPresented still open after close")
	}
}

func TestWakeSignalOnEmptyQueue(t *testing.T) {
	p := NewPipeline(16, 0, nil)

	p.Submit(keyAt('a', base))
	select {
	case <-p.Wake():
	default:
		t.Fatal("no wake signal after submit to empty queue")
	}

	// A second submit onto a non-empty queue does not need to signal
	// again; the consumer drains everything at once.
	p.Submit(keyAt('b', base.Add(time.Millisecond)))
	if got := p.Poll(); len(got) != 2 {
		t.Errorf("len(Poll()) = %d, want 2", len(got))
	}
}
