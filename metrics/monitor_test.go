package metrics

import (
	"testing"
	"time"
)

func TestNewMonitor_DefaultCapacity(t *testing.T) {
	m := NewMonitor(0)
	if m == nil {
		t.Fatal("NewMonitor should not return nil")
	}
	if len(m.ring) != 240 {
		t.Errorf("default capacity = %d, want 240", len(m.ring))
	}
}

func TestMonitor_RecordFrame(t *testing.T) {
	m := NewMonitor(8)
	start := time.Unix(0, 0)
	end := start.Add(5 * time.Millisecond)

	m.Record(StageFrameStart, start)
	m.Record(StageFrameEnd, end)

	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	s := m.Snapshot()
	if s.FramesTotal != 1 {
		t.Errorf("FramesTotal = %d, want 1", s.FramesTotal)
	}
	if s.AvgFrameTime != 5*time.Millisecond {
		t.Errorf("AvgFrameTime = %v, want 5ms", s.AvgFrameTime)
	}
}

func TestMonitor_FrameEndWithoutStart(t *testing.T) {
	m := NewMonitor(8)
	m.Record(StageFrameEnd, time.Now())
	if m.Len() != 0 {
		t.Errorf("unmatched FrameEnd should not record, Len = %d", m.Len())
	}
}

func TestMonitor_RingEviction(t *testing.T) {
	m := NewMonitor(4)
	base := time.Unix(0, 0)
	for i := 0; i < 10; i++ {
		start := base.Add(time.Duration(i) * time.Second)
		m.Record(StageFrameStart, start)
		m.Record(StageFrameEnd, start.Add(time.Millisecond))
	}

	if m.Len() != 4 {
		t.Errorf("ring should cap at 4, got %d", m.Len())
	}
	s := m.Snapshot()
	if s.FramesTotal != 10 {
		t.Errorf("FramesTotal = %d, want 10", s.FramesTotal)
	}

	// Oldest retained record should be frame 6.
	recent := m.Recent(4)
	if len(recent) != 4 {
		t.Fatalf("Recent(4) returned %d records", len(recent))
	}
	want := base.Add(6 * time.Second)
	if !recent[0].FrameStart.Equal(want) {
		t.Errorf("oldest retained FrameStart = %v, want %v", recent[0].FrameStart, want)
	}
}

func TestMonitor_InputLatency(t *testing.T) {
	m := NewMonitor(8)
	start := time.Unix(0, 0)

	m.Record(StageFrameStart, start)
	m.RecordInputLatency(3 * time.Millisecond)
	m.RecordInputLatency(8 * time.Millisecond) // oldest event wins
	m.RecordInputLatency(1 * time.Millisecond)
	m.Record(StageFrameEnd, start.Add(10*time.Millisecond))

	recent := m.Recent(1)
	if len(recent) != 1 {
		t.Fatal("expected one record")
	}
	if recent[0].InputLatency != 8*time.Millisecond {
		t.Errorf("InputLatency = %v, want 8ms", recent[0].InputLatency)
	}

	s := m.Snapshot()
	if s.MaxInputLatency != 8*time.Millisecond {
		t.Errorf("MaxInputLatency = %v, want 8ms", s.MaxInputLatency)
	}
}

func TestMonitor_LatencyClearedBetweenFrames(t *testing.T) {
	m := NewMonitor(8)
	base := time.Unix(0, 0)

	m.Record(StageFrameStart, base)
	m.RecordInputLatency(4 * time.Millisecond)
	m.Record(StageFrameEnd, base.Add(time.Millisecond))

	// Second frame carries no input.
	m.Record(StageFrameStart, base.Add(time.Second))
	m.Record(StageFrameEnd, base.Add(time.Second+time.Millisecond))

	recent := m.Recent(2)
	if recent[1].InputLatency != 0 {
		t.Errorf("second frame latency = %v, want 0", recent[1].InputLatency)
	}
}

func TestMonitor_CountDropped(t *testing.T) {
	m := NewMonitor(8)
	m.CountDropped()
	m.CountDropped()
	if got := m.Snapshot().FramesDropped; got != 2 {
		t.Errorf("FramesDropped = %d, want 2", got)
	}
}

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageFrameStart, "frame_start"},
		{StageLayout, "layout"},
		{StageBuild, "build"},
		{StageUpload, "upload"},
		{StageSubmit, "submit"},
		{StageFrameEnd, "frame_end"},
		{Stage(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", tt.stage, got, tt.want)
		}
	}
}
