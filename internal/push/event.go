package push

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/regador/regador/internal/device"
)

// Message types on the push channel.
const (
	TypeLog             = "log"
	TypeEnableWaterNow  = "enable-water-now"
	TypeDisableWaterNow = "disable-water-now"
	TypeReloadConfig    = "reload-config"

	// TypeWaterNowBtn is the only message the client sends.
	TypeWaterNowBtn = "water-now-btn"
)

// Event is one push message: {"type": ..., "message": ...}.
type Event struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// Text returns the message as display text: JSON strings unquoted, null
// empty, anything else verbatim.
func (e Event) Text() string {
	raw := bytes.TrimSpace(e.Message)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// NewLogEvent builds a log message.
func NewLogEvent(text string) Event {
	msg, _ := json.Marshal(text)
	return Event{Type: TypeLog, Message: msg}
}

// NewEvent builds a message without payload.
func NewEvent(typ string) Event {
	return Event{Type: typ}
}

// Encode serializes e; a missing message is sent as null.
func (e Event) Encode() ([]byte, error) {
	if len(e.Message) == 0 {
		e.Message = json.RawMessage("null")
	}
	return json.Marshal(e)
}

// Decode parses a push payload. Non-JSON payloads and objects without a type
// are decode errors.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, device.NewDecodeError("push payload is not JSON", err)
	}
	if ev.Type == "" {
		return Event{}, device.NewDecodeError(fmt.Sprintf("push payload has no type: %.64s", data), nil)
	}
	return ev, nil
}
