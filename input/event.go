package input

import (
	"strconv"
	"strings"
	"time"
)

// Kind classifies an input event.
type Kind uint8

const (
	// KindKeyPress is a key going down.
	KindKeyPress Kind = iota

	// KindKeyRelease is a key going up.
	KindKeyRelease

	// KindMouseMove is a pointer position change.
	KindMouseMove

	// KindMouseButton is a pointer button press or release.
	KindMouseButton

	// KindScroll is a wheel or trackpad scroll delta.
	KindScroll
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindKeyPress:
		return "key-press"
	case KindKeyRelease:
		return "key-release"
	case KindMouseMove:
		return "mouse-move"
	case KindMouseButton:
		return "mouse-button"
	case KindScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// Key identifies a keyboard key. Character keys use KeyRune with the
// character in Event.Rune.
type Key uint16

const (
	// KeyNone represents no key; a press event carrying it and no rune is
	// an unmapped scancode and is dropped.
	KeyNone Key = iota

	KeyEscape
	KeyEnter
	KeyTab
	KeyBackspace
	KeyDelete
	KeyInsert
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown

	KeyUp
	KeyDown
	KeyLeft
	KeyRight

	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12

	// KeyRune is used for character keys; the character is in Event.Rune.
	KeyRune
)

// String returns a human-readable name for the key.
func (k Key) String() string {
	switch k {
	case KeyNone:
		return "None"
	case KeyEscape:
		return "Escape"
	case KeyEnter:
		return "Enter"
	case KeyTab:
		return "Tab"
	case KeyBackspace:
		return "Backspace"
	case KeyDelete:
		return "Delete"
	case KeyInsert:
		return "Insert"
	case KeyHome:
		return "Home"
	case KeyEnd:
		return "End"
	case KeyPageUp:
		return "PageUp"
	case KeyPageDown:
		return "PageDown"
	case KeyUp:
		return "Up"
	case KeyDown:
		return "Down"
	case KeyLeft:
		return "Left"
	case KeyRight:
		return "Right"
	case KeyRune:
		return "Rune"
	default:
		if k >= KeyF1 && k <= KeyF12 {
			return "F" + strconv.Itoa(int(k-KeyF1)+1)
		}
		return "Unknown"
	}
}

// Modifier represents keyboard modifier keys.
type Modifier uint8

const (
	// ModNone indicates no modifiers.
	ModNone Modifier = 0

	// ModShift indicates the Shift key.
	ModShift Modifier = 1 << iota

	// ModCtrl indicates the Control key.
	ModCtrl

	// ModAlt indicates the Alt key (Option on macOS).
	ModAlt

	// ModMeta indicates the Meta key (Cmd on macOS, Win on Windows).
	ModMeta
)

// Has returns true if m contains the specified modifier.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// With returns a new Modifier with the specified modifier added.
func (m Modifier) With(mod Modifier) Modifier {
	return m | mod
}

// Without returns a new Modifier with the specified modifier removed.
func (m Modifier) Without(mod Modifier) Modifier {
	return m &^ mod
}

// String returns a representation like "Ctrl+Shift".
func (m Modifier) String() string {
	if m == ModNone {
		return ""
	}
	var parts []string
	if m.Has(ModCtrl) {
		parts = append(parts, "Ctrl")
	}
	if m.Has(ModAlt) {
		parts = append(parts, "Alt")
	}
	if m.Has(ModShift) {
		parts = append(parts, "Shift")
	}
	if m.Has(ModMeta) {
		parts = append(parts, "Meta")
	}
	return strings.Join(parts, "+")
}

// MouseButton identifies a pointer button.
type MouseButton uint8

const (
	ButtonLeft MouseButton = iota
	ButtonMiddle
	ButtonRight
)

// Event is one input event, timestamped at the platform boundary. Events
// are consumed exactly once by the render loop's poll.
type Event struct {
	// Kind selects which payload fields are meaningful.
	Kind Kind

	// Key and Rune describe key events.
	Key  Key
	Rune rune

	// Modifiers is the modifier state at the time of the event.
	Modifiers Modifier

	// Row and Col are the pointer cell position for mouse events.
	Row, Col int

	// Button is the button for KindMouseButton events; Pressed
	// distinguishes press from release.
	Button  MouseButton
	Pressed bool

	// ScrollX and ScrollY are scroll deltas in cells.
	ScrollX, ScrollY float32

	// Time is the arrival timestamp, set at the platform boundary.
	Time time.Time
}

// NewKeyPress creates a timestamped key press event.
func NewKeyPress(key Key, r rune, mods Modifier) Event {
	return Event{Kind: KindKeyPress, Key: key, Rune: r, Modifiers: mods, Time: time.Now()}
}

// NewKeyRelease creates a timestamped key release event.
func NewKeyRelease(key Key, r rune, mods Modifier) Event {
	return Event{Kind: KindKeyRelease, Key: key, Rune: r, Modifiers: mods, Time: time.Now()}
}

// NewMouseMove creates a timestamped pointer move event.
func NewMouseMove(row, col int, mods Modifier) Event {
	return Event{Kind: KindMouseMove, Row: row, Col: col, Modifiers: mods, Time: time.Now()}
}

// NewScroll creates a timestamped scroll event.
func NewScroll(dx, dy float32, mods Modifier) Event {
	return Event{Kind: KindScroll, ScrollX: dx, ScrollY: dy, Modifiers: mods, Time: time.Now()}
}

// IsKeystroke reports whether the event is a key press or release.
// Keystrokes are never dropped under queue pressure.
func (e Event) IsKeystroke() bool {
	return e.Kind == KindKeyPress || e.Kind == KindKeyRelease
}
