package frame

import (
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/gogpu/termcore"
)

// EffectKind identifies an overlay effect.
type EffectKind uint8

const (
	// EffectCursorBlink modulates the cursor overlay's opacity.
	EffectCursorBlink EffectKind = iota

	// EffectSelection is a static highlight over a cell region.
	EffectSelection

	// EffectFade fades a highlight over a cell region out once.
	EffectFade
)

// phaseBound holds the upper bound in seconds for the random start offset
// applied to tweened effects. Staggering phases keeps simultaneous effects
// from pulsing in lockstep.
var phaseBound atomic.Uint32

func init() {
	SetPhaseBound(250 * time.Millisecond)
}

// SetPhaseBound sets the maximum random phase offset for newly created
// effects. Zero disables staggering.
func SetPhaseBound(d time.Duration) {
	if d < 0 {
		d = 0
	}
	phaseBound.Store(uint32(d / time.Millisecond))
}

// randPhase draws a start offset in [0, bound). Replaced in tests for
// determinism.
var randPhase = func() float32 {
	return rand.Float32() * float32(phaseBound.Load()) / 1000
}

// Effect is one overlay animation. Tweened effects advance with Update;
// static effects (selection) hold a constant alpha and never report
// Animating, so a persistent selection does not force continuous redraw.
type Effect struct {
	// Kind selects how the builder renders the effect.
	Kind EffectKind

	// Region is the cell rectangle the effect covers. Cursor effects
	// ignore it and follow the cursor position instead.
	Region termcore.DirtyRegion

	// Color is the overlay color before alpha modulation.
	Color termcore.Color

	tween    *gween.Tween
	duration float32
	forward  bool
	loop     bool
	phase    float32
	alpha    float32
	done     bool
}

// NewCursorBlink creates a looping cursor opacity effect with the given
// half-period in seconds (full on to full off).
func NewCursorBlink(color termcore.Color, halfPeriod float32) *Effect {
	return &Effect{
		Kind:     EffectCursorBlink,
		Color:    color,
		tween:    gween.New(1, 0, halfPeriod, ease.InOutSine),
		duration: halfPeriod,
		forward:  true,
		loop:     true,
		phase:    randPhase(),
		alpha:    1,
	}
}

// NewSelection creates a static highlight over region. The effect stays
// until removed and never animates.
func NewSelection(region termcore.DirtyRegion, color termcore.Color) *Effect {
	return &Effect{
		Kind:   EffectSelection,
		Region: region,
		Color:  color,
		alpha:  1,
	}
}

// NewFade creates a one-shot highlight over region that fades out over
// duration seconds.
func NewFade(region termcore.DirtyRegion, color termcore.Color, duration float32) *Effect {
	return &Effect{
		Kind:     EffectFade,
		Region:   region,
		Color:    color,
		tween:    gween.New(1, 0, duration, ease.OutQuad),
		duration: duration,
		forward:  true,
		phase:    randPhase(),
		alpha:    1,
	}
}

// Update advances the effect by dt seconds. The random phase offset is
// consumed before the tween starts.
func (e *Effect) Update(dt float32) {
	if e.done || e.tween == nil {
		return
	}
	if e.phase > 0 {
		e.phase -= dt
		if e.phase > 0 {
			return
		}
		dt = -e.phase
		e.phase = 0
	}

	val, finished := e.tween.Update(dt)
	e.alpha = val
	if !finished {
		return
	}
	if e.loop {
		// Ping-pong: reverse the sweep and keep going.
		if e.forward {
			e.tween = gween.New(0, 1, e.duration, ease.InOutSine)
		} else {
			e.tween = gween.New(1, 0, e.duration, ease.InOutSine)
		}
		e.forward = !e.forward
		return
	}
	e.done = true
	e.alpha = 0
}

// Alpha returns the effect's current opacity in [0, 1].
func (e *Effect) Alpha() float32 {
	return e.alpha
}

// Done reports whether a one-shot effect has finished.
func (e *Effect) Done() bool {
	return e.done
}

// Animating reports whether the effect still drives frames. Static effects
// never do.
func (e *Effect) Animating() bool {
	return e.tween != nil && !e.done
}

// overlayColor applies the effect's alpha to its color.
func (e *Effect) overlayColor() termcore.Color {
	c := e.Color
	c.A = uint8(float32(c.A) * e.alpha)
	return c
}

// blend mixes two cell colors perceptually in Luv space. Used for the
// cursor quad so it stays visible over any cell background.
func blend(a, b termcore.Color, t float64) termcore.Color {
	ca, okA := colorful.MakeColor(a)
	cb, okB := colorful.MakeColor(b)
	if !okA || !okB {
		// Zero-alpha inputs cannot be converted; fall back to the overlay.
		return b
	}
	r, g, bl := ca.BlendLuv(cb, t).Clamped().RGB255()
	return termcore.Color{R: r, G: g, B: bl, A: 0xFF}
}
