package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/logging"
)

var (
	// ErrUnknownField is returned for ids that are not in the registry.
	ErrUnknownField = errors.New("unknown field")
	// ErrFieldDisabled is returned when editing a disabled widget.
	ErrFieldDisabled = errors.New("field is disabled")
	// ErrNotLoaded is returned by Save before any device config was fetched.
	ErrNotLoaded = errors.New("device config not loaded")
)

// Source is where the device configuration lives. *device.Client
// satisfies it.
type Source interface {
	FetchConfigs(ctx context.Context) (*device.Configs, error)
	SaveConfigs(ctx context.Context, cfg *device.Configs) error
}

// Controller owns the settings form: the widget registry, the dependency
// rules, the device snapshot and the form snapshot. It is not safe for
// concurrent use; the dashboard drives it from its update loop.
type Controller struct {
	source   Source
	registry *Registry
	rules    []Rule

	deviceConfig Record
	formConfig   Record

	saveEnabled bool
	undoEnabled bool
	loading     bool
}

// NewController creates a controller for the default settings form.
func NewController(source Source) *Controller {
	return NewControllerWithFields(source, DefaultFields)
}

// NewControllerWithFields creates a controller for a custom field table.
func NewControllerWithFields(source Source, fields []FieldDescriptor) *Controller {
	return &Controller{
		source:   source,
		registry: NewRegistry(fields),
		rules:    RulesFromFields(fields),
	}
}

// Registry exposes the widgets for rendering.
func (c *Controller) Registry() *Registry { return c.registry }

// DeviceConfig returns a copy of the last snapshot fetched from the device,
// or nil before the first successful fetch.
func (c *Controller) DeviceConfig() Record { return c.deviceConfig.Clone() }

// FormConfig returns a copy of the form snapshot.
func (c *Controller) FormConfig() Record { return c.formConfig.Clone() }

func (c *Controller) SaveEnabled() bool { return c.saveEnabled }
func (c *Controller) UndoEnabled() bool { return c.undoEnabled }

// Loading reports whether a fetch started by BeginLoad is in flight.
func (c *Controller) Loading() bool { return c.loading }

// Loaded reports whether a device snapshot is present.
func (c *Controller) Loaded() bool { return c.deviceConfig != nil }

// FetchDeviceConfig replaces the device snapshot with the controller's
// current configs. On failure the previous snapshot is kept.
func (c *Controller) FetchDeviceConfig(ctx context.Context) (Record, error) {
	cfg, err := c.source.FetchConfigs(ctx)
	if err != nil {
		logging.Error("Failed to fetch device config", zap.Error(err))
		return nil, err
	}
	c.deviceConfig = Record(cfg.Values())
	return c.deviceConfig.Clone(), nil
}

// LoadFormFromDevice fetches the device config and writes it into the form,
// leaving the form clean.
func (c *Controller) LoadFormFromDevice(ctx context.Context) error {
	c.BeginLoad()
	if _, err := c.FetchDeviceConfig(ctx); err != nil {
		c.endLoad()
		return fmt.Errorf("fetch device config: %w", err)
	}
	c.fillFromDevice()
	return nil
}

// BeginLoad disables every widget while a fetch is in flight. Together with
// CompleteLoad and FailLoad it lets callers run the fetch elsewhere.
func (c *Controller) BeginLoad() {
	c.loading = true
	c.registry.setDisabledAll(true)
}

// CompleteLoad stores cfg as the device snapshot, writes it into the widgets
// and resets the form snapshot to match.
func (c *Controller) CompleteLoad(cfg *device.Configs) {
	c.deviceConfig = Record(cfg.Values())
	c.fillFromDevice()
}

func (c *Controller) fillFromDevice() {
	for _, f := range c.registry.Fields() {
		c.writeDeviceValue(f)
	}

	c.formConfig = c.deviceConfig.Clone()
	c.loading = false
	c.registry.setDisabledAll(false)
	c.ApplyDependentState()
	c.setDirty(false)

	logging.Debug("Form loaded from device", zap.Any("config", map[string]any(c.deviceConfig)))
}

// FailLoad re-enables the form with whatever it showed before.
func (c *Controller) FailLoad(err error) {
	logging.Error("Failed to load form from device", zap.Error(err))
	c.endLoad()
}

func (c *Controller) endLoad() {
	c.loading = false
	c.registry.setDisabledAll(false)
	c.ApplyDependentState()
}

// writeDeviceValue sets a widget's display from the device snapshot.
func (c *Controller) writeDeviceValue(f FieldDescriptor) {
	w := c.registry.Widget(f.ID)
	if w == nil || c.deviceConfig == nil {
		return
	}

	switch f.Kind {
	case KindBoolean:
		b, _ := c.deviceConfig[f.ID].(bool)
		w.Checked = b
	case KindTimeOfDay:
		h, hok := toFloat(c.deviceConfig[device.KeyAlarmHours])
		m, mok := toFloat(c.deviceConfig[device.KeyAlarmMinutes])
		if hok && mok {
			w.Value = FormatTimeOfDay(int(h), int(m))
		}
	default:
		if v, ok := c.deviceConfig[f.ID]; ok {
			w.Value = displayValue(f.Kind, v)
		}
	}
}

// ApplyDependentState enables the dependents of checked controllers and
// disables the others, resetting their display to the device value. The
// form snapshot is left alone.
func (c *Controller) ApplyDependentState() {
	if c.loading {
		return
	}
	for _, rule := range c.rules {
		ctrl := c.registry.Widget(rule.Controller)
		enabled := ctrl != nil && ctrl.Checked && !ctrl.Disabled
		for _, id := range rule.Dependents {
			w := c.registry.Widget(id)
			if w == nil {
				continue
			}
			w.Disabled = !enabled
			if !enabled {
				if f, ok := c.registry.Field(id); ok {
					c.writeDeviceValue(f)
				}
			}
		}
	}
}

// RecomputeFormConfig reads every widget into a fresh form snapshot.
// Numeric text that does not parse is kept as the raw string.
func (c *Controller) RecomputeFormConfig() Record {
	rec := make(Record, len(c.registry.Fields()))
	for _, f := range c.registry.Fields() {
		w := c.registry.Widget(f.ID)
		text := strings.TrimSpace(w.Value)

		switch f.Kind {
		case KindBoolean:
			rec[f.ID] = w.Checked
		case KindInteger:
			if n, err := strconv.Atoi(text); err == nil {
				rec[f.ID] = n
			} else {
				rec[f.ID] = w.Value
			}
		case KindDecimal:
			if v, err := strconv.ParseFloat(strings.Replace(text, ",", ".", 1), 64); err == nil {
				rec[f.ID] = RoundDecimal(v)
			} else {
				rec[f.ID] = w.Value
			}
		case KindTimeOfDay:
			rec[f.ID] = text
		}
	}
	c.formConfig = rec
	return rec.Clone()
}

// IsDirty reports whether the form differs from the device snapshot.
func (c *Controller) IsDirty() bool {
	if c.deviceConfig == nil || c.formConfig == nil {
		return false
	}
	normalized := NormalizeForComparison(c.formConfig)
	for k, v := range normalized {
		if !c.fieldEqual(k, v, c.deviceConfig[k]) {
			return true
		}
	}
	for k := range c.deviceConfig {
		if _, ok := normalized[k]; !ok {
			return true
		}
	}
	return false
}

// fieldEqual is LooseEqual, except that decimal fields are compared at the
// one-digit precision they are displayed with.
func (c *Controller) fieldEqual(id string, a, b any) bool {
	if f, ok := c.registry.Field(id); ok && f.Kind == KindDecimal {
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if aok && bok {
			return RoundDecimal(af) == RoundDecimal(bf)
		}
	}
	return LooseEqual(a, b)
}

// Change sets a widget's text (or checked state for booleans, from
// "true"/"false") and runs the change handler.
func (c *Controller) Change(id, value string) error {
	f, w, err := c.editable(id)
	if err != nil {
		return err
	}
	if f.Kind == KindBoolean {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %q is not a boolean", id, value)
		}
		w.Checked = b
	} else {
		w.Value = value
	}
	c.onChange(id)
	return nil
}

// Toggle flips a boolean widget and runs the change handler.
func (c *Controller) Toggle(id string) error {
	f, w, err := c.editable(id)
	if err != nil {
		return err
	}
	if f.Kind != KindBoolean {
		return fmt.Errorf("%s is a %s field", id, f.Kind)
	}
	w.Checked = !w.Checked
	c.onChange(id)
	return nil
}

func (c *Controller) editable(id string) (FieldDescriptor, *Widget, error) {
	f, ok := c.registry.Field(id)
	if !ok {
		return FieldDescriptor{}, nil, fmt.Errorf("%w: %s", ErrUnknownField, id)
	}
	w := c.registry.Widget(id)
	if w.Disabled {
		return f, nil, fmt.Errorf("%w: %s", ErrFieldDisabled, id)
	}
	return f, w, nil
}

func (c *Controller) onChange(id string) {
	if isController(c.rules, id) {
		c.ApplyDependentState()
	}
	c.RecomputeFormConfig()
	c.setDirty(c.IsDirty())
}

func (c *Controller) setDirty(dirty bool) {
	c.saveEnabled = dirty
	c.undoEnabled = dirty
}

// Undo drops the pending edits and reloads the form from the device. If the
// fetch fails the edits stay in place.
func (c *Controller) Undo(ctx context.Context) error {
	return c.LoadFormFromDevice(ctx)
}

// PendingConfigs builds the configs to submit from the current form.
// Disabled dependents carry their device value.
func (c *Controller) PendingConfigs() (*device.Configs, error) {
	if c.deviceConfig == nil {
		return nil, ErrNotLoaded
	}

	values := NormalizeForComparison(c.RecomputeFormConfig())
	for _, rule := range c.rules {
		for _, id := range rule.Dependents {
			if w := c.registry.Widget(id); w == nil || !w.Disabled {
				continue
			}
			if id == TimeOfDayKey {
				values[device.KeyAlarmHours] = c.deviceConfig[device.KeyAlarmHours]
				values[device.KeyAlarmMinutes] = c.deviceConfig[device.KeyAlarmMinutes]
				continue
			}
			values[id] = c.deviceConfig[id]
		}
	}

	cfg, err := device.ConfigsFromValues(values)
	if err != nil {
		return nil, fmt.Errorf("invalid form: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid form: %w", err)
	}
	return cfg, nil
}

// Save submits the form when it is dirty and reloads from the device.
// A clean form is a no-op.
func (c *Controller) Save(ctx context.Context) error {
	if !c.IsDirty() {
		return nil
	}
	cfg, err := c.PendingConfigs()
	if err != nil {
		return err
	}
	if err := c.source.SaveConfigs(ctx, cfg); err != nil {
		logging.Error("Failed to save configs", zap.Error(err))
		return fmt.Errorf("save configs: %w", err)
	}
	logging.Info("Configs saved", zap.Int("watering_time", cfg.WateringTime))
	return c.LoadFormFromDevice(ctx)
}
