package push

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/logging"
)

// AnimationPeriod is the ellipsis period, also the history refresh period
// during cooldown.
const AnimationPeriod = time.Second

// TimerKind identifies what a timer does when it fires.
type TimerKind int

const (
	// TimerAnimate advances the button label and re-arms itself.
	TimerAnimate TimerKind = iota
	// TimerWateringDone moves the button from watering to cooldown.
	TimerWateringDone
)

func (k TimerKind) String() string {
	if k == TimerWateringDone {
		return "watering-done"
	}
	return "animate"
}

// Timer is a request to call Handler.Fire with itself after the delay. The
// generation is checked when it fires, so timers are never cancelled
// explicitly.
type Timer struct {
	Kind  TimerKind
	Gen   uint64
	After time.Duration
}

// Action tells the caller what to do after an event or timer.
type Action struct {
	ReloadConfig   bool
	RefreshHistory bool
	Timers         []Timer
}

// Handler applies push events to the button state machine and the log
// panel. It is not safe for concurrent use; drive it from one goroutine.
type Handler struct {
	Button *Button
	Logs   *LogPanel

	// WateringTime returns the configured watering duration, read when a
	// disable-water-now event arrives.
	WateringTime func() time.Duration

	now func() time.Time
}

// NewHandler creates a handler with an idle button and an empty log panel.
func NewHandler(wateringTime func() time.Duration) *Handler {
	return &Handler{
		Button:       NewButton(),
		Logs:         NewLogPanel(LogPanelCap),
		WateringTime: wateringTime,
		now:          time.Now,
	}
}

// HandleMessage decodes a raw payload and handles it. Decode failures are
// logged and returned with an empty action; the caller keeps reading.
func (h *Handler) HandleMessage(data []byte) (Action, error) {
	ev, err := Decode(data)
	if err != nil {
		logging.Warn("Discarding push payload", zap.ByteString("payload", data), zap.Error(err))
		return Action{}, err
	}
	return h.Handle(ev)
}

// Handle applies one event.
func (h *Handler) Handle(ev Event) (Action, error) {
	switch ev.Type {
	case TypeLog:
		h.Logs.Add(h.now(), ev.Text())
		return Action{}, nil

	case TypeEnableWaterNow:
		h.Button.Reset()
		return Action{}, nil

	case TypeDisableWaterNow:
		gen := h.Button.StartWatering()
		var watering time.Duration
		if h.WateringTime != nil {
			watering = h.WateringTime()
		}
		if watering < 0 {
			watering = 0
		}
		logging.Debug("Watering started", zap.Duration("watering_time", watering))
		return Action{Timers: []Timer{
			{Kind: TimerAnimate, Gen: gen, After: AnimationPeriod},
			{Kind: TimerWateringDone, Gen: gen, After: watering},
		}}, nil

	case TypeReloadConfig:
		return Action{ReloadConfig: true}, nil

	default:
		err := device.NewProtocolError(fmt.Sprintf("unknown push message type %q", ev.Type))
		logging.Warn("Discarding push message", zap.String("type", ev.Type), zap.Error(err))
		return Action{}, err
	}
}

// Fire runs a timer. Timers from an older generation do nothing.
func (h *Handler) Fire(t Timer) Action {
	switch t.Kind {
	case TimerAnimate:
		if !h.Button.Animate(t.Gen) {
			return Action{}
		}
		return Action{
			RefreshHistory: h.Button.State() == StateCooldown,
			Timers:         []Timer{{Kind: TimerAnimate, Gen: t.Gen, After: AnimationPeriod}},
		}

	case TimerWateringDone:
		gen, ok := h.Button.FinishWatering(t.Gen)
		if !ok {
			return Action{}
		}
		logging.Debug("Watering finished, waiting for controller")
		return Action{Timers: []Timer{{Kind: TimerAnimate, Gen: gen, After: AnimationPeriod}}}
	}
	return Action{}
}
