package push

import "strings"

// ButtonState is the state of the water-now button.
type ButtonState int

const (
	StateIdle     ButtonState = iota // enabled, default label
	StateWatering                    // disabled, "Regando..."
	StateCooldown                    // disabled, "Aguarde...", history refreshing
)

func (s ButtonState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatering:
		return "watering"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Button labels.
const (
	DefaultLabel  = "Regar agora"
	WateringLabel = "Regando"
	CooldownLabel = "Aguarde"
)

// Button is the water-now button state machine. Every transition bumps the
// generation; timers armed for an older generation are ignored, which is how
// pending animations are cancelled.
type Button struct {
	state ButtonState
	gen   uint64
	tick  int
	label string
	base  string
}

// NewButton creates an idle button.
func NewButton() *Button {
	return &Button{label: DefaultLabel}
}

// State returns the current state.
func (b *Button) State() ButtonState { return b.state }

// Enabled reports whether the button can be pressed.
func (b *Button) Enabled() bool { return b.state == StateIdle }

// Label returns the current, possibly animated, label.
func (b *Button) Label() string { return b.label }

// Generation is the token timers must carry to still be current.
func (b *Button) Generation() uint64 { return b.gen }

func (b *Button) enter(state ButtonState, base string) uint64 {
	b.state = state
	b.gen++
	b.tick = 0
	b.base = base
	b.label = base
	return b.gen
}

// StartWatering handles disable-water-now from any state and returns the
// generation to arm the animation and watering timers with.
func (b *Button) StartWatering() uint64 {
	return b.enter(StateWatering, WateringLabel)
}

// FinishWatering moves watering to cooldown when gen is current. It returns
// the cooldown generation.
func (b *Button) FinishWatering(gen uint64) (uint64, bool) {
	if gen != b.gen || b.state != StateWatering {
		return 0, false
	}
	return b.enter(StateCooldown, CooldownLabel), true
}

// Reset handles enable-water-now: back to idle from any state, cancelling
// every timer.
func (b *Button) Reset() {
	b.enter(StateIdle, DefaultLabel)
	b.base = ""
}

// Animate advances the ellipsis when gen is current. The first tick shows
// one dot, cycling "", ".", "..", "..." after that.
func (b *Button) Animate(gen uint64) bool {
	if gen != b.gen || b.state == StateIdle {
		return false
	}
	b.tick++
	b.label = Ellipsis(b.base, b.tick)
	return true
}

// Ellipsis appends tick%4 dots to label.
func Ellipsis(label string, tick int) string {
	return label + strings.Repeat(".", tick%4)
}
