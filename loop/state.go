package loop

// State is the render loop's pacing state.
type State uint8

const (
	// StateIdle means nothing to draw; the loop blocks on wake channels
	// and consumes no CPU.
	StateIdle State = iota

	// StateDirty means content changed since the last presented frame.
	StateDirty

	// StateRendering means a frame is being built and submitted.
	StateRendering

	// StateAnimating means an active effect needs a frame every tick even
	// without content changes.
	StateAnimating
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateRendering:
		return "rendering"
	case StateAnimating:
		return "animating"
	default:
		return "unknown"
	}
}

// wake is the transition taken when an input or content signal arrives.
// Only an idle loop changes state; a busy loop absorbs the signal.
func wake(s State) State {
	if s == StateIdle {
		return StateDirty
	}
	return s
}

// settle is the transition taken after a frame is presented. Animation
// outranks pending dirt: an animating loop keeps ticking and picks pending
// regions up on the next frame anyway.
func settle(animating, pendingDirty bool) State {
	switch {
	case animating:
		return StateAnimating
	case pendingDirty:
		return StateDirty
	default:
		return StateIdle
	}
}
