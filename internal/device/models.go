package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
)

// Configuration keys as the controller names them.
const (
	KeySensLogDelay             = "sens_log_delay"
	KeyWateringTime             = "watering_time"
	KeyCheckLowSoilHumi         = "check_low_soil_humi"
	KeyCheckLowSoilHumiInterval = "check_low_soil_humi_interval"
	KeyMinSoilHumi              = "min_soil_humi"
	KeyActivateAlarm            = "activate_alarm"
	KeyAlarmHours               = "alarm_hours"
	KeyAlarmMinutes             = "alarm_minutes"
)

// ConfigKeys lists every key of /configs in display order.
var ConfigKeys = []string{
	KeySensLogDelay,
	KeyWateringTime,
	KeyCheckLowSoilHumi,
	KeyCheckLowSoilHumiInterval,
	KeyMinSoilHumi,
	KeyActivateAlarm,
	KeyAlarmHours,
	KeyAlarmMinutes,
}

// EventReadSensors is the event tag of a /readsensors response.
const EventReadSensors = "read-sensors"

// Configs is the settings block stored on the controller.
type Configs struct {
	SensLogDelay             int     `json:"sens_log_delay"`               // seconds between sensor log uploads
	WateringTime             int     `json:"watering_time"`                // seconds the pump runs
	CheckLowSoilHumi         bool    `json:"check_low_soil_humi"`          // water when the soil is dry
	CheckLowSoilHumiInterval int     `json:"check_low_soil_humi_interval"` // seconds between soil checks
	MinSoilHumi              float64 `json:"min_soil_humi"`                // percent
	ActivateAlarm            bool    `json:"activate_alarm"`               // water at a fixed time of day
	AlarmHours               int     `json:"alarm_hours"`
	AlarmMinutes             int     `json:"alarm_minutes"`
}

type configsResponse struct {
	Configs *Configs `json:"configs"`
}

// Values returns the configs as a flat map keyed like the JSON document.
func (c *Configs) Values() map[string]any {
	return map[string]any{
		KeySensLogDelay:             c.SensLogDelay,
		KeyWateringTime:             c.WateringTime,
		KeyCheckLowSoilHumi:         c.CheckLowSoilHumi,
		KeyCheckLowSoilHumiInterval: c.CheckLowSoilHumiInterval,
		KeyMinSoilHumi:              c.MinSoilHumi,
		KeyActivateAlarm:            c.ActivateAlarm,
		KeyAlarmHours:               c.AlarmHours,
		KeyAlarmMinutes:             c.AlarmMinutes,
	}
}

// ConfigsFromValues is the inverse of Values. Every key must be present.
// Numbers may be given as int, float64 or numeric strings.
func ConfigsFromValues(values map[string]any) (*Configs, error) {
	var c Configs
	var err error

	ints := []struct {
		key string
		dst *int
	}{
		{KeySensLogDelay, &c.SensLogDelay},
		{KeyWateringTime, &c.WateringTime},
		{KeyCheckLowSoilHumiInterval, &c.CheckLowSoilHumiInterval},
		{KeyAlarmHours, &c.AlarmHours},
		{KeyAlarmMinutes, &c.AlarmMinutes},
	}
	for _, f := range ints {
		var v float64
		if v, err = number(values, f.key); err != nil {
			return nil, err
		}
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%s: %v is not a whole number", f.key, v)
		}
		*f.dst = int(v)
	}

	if c.MinSoilHumi, err = number(values, KeyMinSoilHumi); err != nil {
		return nil, err
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{KeyCheckLowSoilHumi, &c.CheckLowSoilHumi},
		{KeyActivateAlarm, &c.ActivateAlarm},
	}
	for _, f := range bools {
		raw, ok := values[f.key]
		if !ok {
			return nil, fmt.Errorf("missing %s", f.key)
		}
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%s: expected boolean, got %T", f.key, raw)
		}
		*f.dst = b
	}

	return &c, nil
}

func number(values map[string]any, key string) (float64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a number", key, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", key, raw)
	}
}

// Validate checks the ranges the firmware accepts.
func (c *Configs) Validate() error {
	switch {
	case c.SensLogDelay < 1:
		return fmt.Errorf("%s must be at least 1", KeySensLogDelay)
	case c.WateringTime < 1:
		return fmt.Errorf("%s must be at least 1", KeyWateringTime)
	case c.CheckLowSoilHumiInterval < 1:
		return fmt.Errorf("%s must be at least 1", KeyCheckLowSoilHumiInterval)
	case c.MinSoilHumi < 0 || c.MinSoilHumi > 100:
		return fmt.Errorf("%s must be between 0 and 100", KeyMinSoilHumi)
	case c.AlarmHours < 0 || c.AlarmHours > 23:
		return fmt.Errorf("%s must be between 0 and 23", KeyAlarmHours)
	case c.AlarmMinutes < 0 || c.AlarmMinutes > 59:
		return fmt.Errorf("%s must be between 0 and 59", KeyAlarmMinutes)
	}
	return nil
}

// Form encodes the configs as the POST /configs body.
func (c *Configs) Form() url.Values {
	form := url.Values{}
	form.Set(KeySensLogDelay, strconv.Itoa(c.SensLogDelay))
	form.Set(KeyWateringTime, strconv.Itoa(c.WateringTime))
	form.Set(KeyCheckLowSoilHumi, strconv.FormatBool(c.CheckLowSoilHumi))
	form.Set(KeyCheckLowSoilHumiInterval, strconv.Itoa(c.CheckLowSoilHumiInterval))
	form.Set(KeyMinSoilHumi, strconv.FormatFloat(c.MinSoilHumi, 'f', 1, 64))
	form.Set(KeyActivateAlarm, strconv.FormatBool(c.ActivateAlarm))
	form.Set(KeyAlarmHours, strconv.Itoa(c.AlarmHours))
	form.Set(KeyAlarmMinutes, strconv.Itoa(c.AlarmMinutes))
	return form
}

// ParseConfigsForm decodes a POST /configs body. Keys that are absent keep
// the value from base.
func ParseConfigsForm(form url.Values, base Configs) (*Configs, error) {
	values := base.Values()
	for _, key := range ConfigKeys {
		if !form.Has(key) {
			continue
		}
		raw := form.Get(key)
		switch key {
		case KeyCheckLowSoilHumi, KeyActivateAlarm:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not a boolean", key, raw)
			}
			values[key] = b
		default:
			values[key] = raw
		}
	}

	cfg, err := ConfigsFromValues(values)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Reading is a single sensor value. The firmware reports a failed sensor as
// null, false, 0 or an empty string, all of which decode to an invalid reading.
type Reading struct {
	Value float64
	Valid bool
}

// R builds a valid reading; zero is still reported as invalid.
func R(v float64) Reading {
	return Reading{Value: v, Valid: v != 0 && !math.IsNaN(v)}
}

// Float returns the value, or NaN when the reading is invalid.
func (r Reading) Float() float64 {
	if !r.Valid {
		return math.NaN()
	}
	return r.Value
}

// UnmarshalJSON accepts any JSON value; only non-zero numbers are valid.
func (r *Reading) UnmarshalJSON(data []byte) error {
	*r = Reading{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || (data[0] != '-' && (data[0] < '0' || data[0] > '9')) {
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*r = R(v)
	return nil
}

// MarshalJSON writes invalid readings as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// Readings is the data block of /readsensors.
type Readings struct {
	Temp Reading `json:"temp"` // °C
	Hum  Reading `json:"hum"`  // % relative humidity
	Soil Reading `json:"soil"` // % soil moisture
	Lumi Reading `json:"lumi"` // % light
}

// SensorsResponse is the full /readsensors document.
type SensorsResponse struct {
	Event string   `json:"event"`
	Data  Readings `json:"data"`
}
