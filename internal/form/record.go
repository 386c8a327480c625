package form

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/regador/regador/internal/device"
)

// Record is a configuration snapshot keyed by field name. Values are int,
// float64, bool or string.
type Record map[string]any

// Clone returns a shallow copy. Values are scalars, so it is a full copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Equal compares two records key by key with the loose equality of IsDirty.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		ov, ok := other[k]
		if !ok || !LooseEqual(v, ov) {
			return false
		}
	}
	return true
}

// NormalizeForComparison returns a copy of rec shaped like the device
// record: the "HH:MM" time field becomes alarm_hours and alarm_minutes.
// An unparseable time keeps the raw text in both keys so it never compares
// equal to a device value.
func NormalizeForComparison(rec Record) Record {
	out := rec.Clone()
	raw, ok := out[TimeOfDayKey]
	if !ok {
		return out
	}
	delete(out, TimeOfDayKey)

	text, _ := raw.(string)
	hours, minutes, err := ParseTimeOfDay(text)
	if err != nil {
		out[device.KeyAlarmHours] = text
		out[device.KeyAlarmMinutes] = text
		return out
	}
	out[device.KeyAlarmHours] = hours
	out[device.KeyAlarmMinutes] = minutes
	return out
}

// FormatTimeOfDay renders hours and minutes as zero-padded "HH:MM".
func FormatTimeOfDay(hours, minutes int) string {
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// ParseTimeOfDay accepts "H:MM", "HH:MM" and "HH:MM:SS" (seconds ignored).
func ParseTimeOfDay(s string) (hours, minutes int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	hours, err = strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	if len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	minutes, err = strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hours, minutes, nil
}

// RoundDecimal rounds to one digit after the point.
func RoundDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}

// LooseEqual compares record values the way a form compares against the
// device: numbers (including numeric strings) by value, so "20.0" equals
// 20; booleans only with booleans; other strings by text.
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ab, aIsBool := a.(bool)
	bb, bIsBool := b.(bool)
	if aIsBool || bIsBool {
		return aIsBool && bIsBool && ab == bb
	}

	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	return aStr && bStr && as == bs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// displayValue renders a device value for a widget of the given kind.
func displayValue(kind Kind, v any) string {
	switch kind {
	case KindDecimal:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(RoundDecimal(f), 'f', 1, 64)
		}
	case KindInteger:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
