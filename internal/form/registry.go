package form

import "github.com/regador/regador/internal/device"

// Kind is how a widget's text is coerced into a record value.
type Kind int

const (
	KindInteger Kind = iota
	KindDecimal      // one digit after the point
	KindBoolean
	KindTimeOfDay // "HH:MM", split into alarm_hours/alarm_minutes
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindBoolean:
		return "boolean"
	case KindTimeOfDay:
		return "time"
	default:
		return "unknown"
	}
}

// TimeOfDayKey is the form-only field that holds the alarm time.
const TimeOfDayKey = device.KeyAlarmHours + "_" + device.KeyAlarmMinutes

// FieldDescriptor describes one input of the settings form.
type FieldDescriptor struct {
	ID   string
	Kind Kind

	// Controller is the boolean field that must be checked for this one
	// to be editable. Empty for top-level fields.
	Controller string

	Label string
	Unit  string
}

// DefaultFields is the controller's settings form in display order.
var DefaultFields = []FieldDescriptor{
	{ID: device.KeySensLogDelay, Kind: KindInteger, Label: "Intervalo de registro", Unit: "s"},
	{ID: device.KeyWateringTime, Kind: KindInteger, Label: "Tempo de rega", Unit: "s"},
	{ID: device.KeyCheckLowSoilHumi, Kind: KindBoolean, Label: "Regar com solo seco"},
	{ID: device.KeyCheckLowSoilHumiInterval, Kind: KindInteger, Controller: device.KeyCheckLowSoilHumi, Label: "Intervalo de verificação", Unit: "s"},
	{ID: device.KeyMinSoilHumi, Kind: KindDecimal, Controller: device.KeyCheckLowSoilHumi, Label: "Umidade mínima do solo", Unit: "%"},
	{ID: device.KeyActivateAlarm, Kind: KindBoolean, Label: "Regar no horário"},
	{ID: TimeOfDayKey, Kind: KindTimeOfDay, Controller: device.KeyActivateAlarm, Label: "Horário"},
}

// Widget is the terminal stand-in for an input element. Booleans use
// Checked, everything else Value.
type Widget struct {
	Value    string
	Checked  bool
	Disabled bool
}

// Registry maps field ids to their widgets.
type Registry struct {
	fields  []FieldDescriptor
	index   map[string]int
	widgets map[string]*Widget
}

// NewRegistry creates one empty widget per field.
func NewRegistry(fields []FieldDescriptor) *Registry {
	r := &Registry{
		fields:  append([]FieldDescriptor(nil), fields...),
		index:   make(map[string]int, len(fields)),
		widgets: make(map[string]*Widget, len(fields)),
	}
	for i, f := range fields {
		r.index[f.ID] = i
		r.widgets[f.ID] = &Widget{}
	}
	return r
}

// Fields returns the descriptors in display order.
func (r *Registry) Fields() []FieldDescriptor {
	return r.fields
}

// Field looks up a descriptor by id.
func (r *Registry) Field(id string) (FieldDescriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return FieldDescriptor{}, false
	}
	return r.fields[i], true
}

// Widget returns nil for unknown ids.
func (r *Registry) Widget(id string) *Widget {
	return r.widgets[id]
}

func (r *Registry) setDisabledAll(disabled bool) {
	for _, w := range r.widgets {
		w.Disabled = disabled
	}
}
