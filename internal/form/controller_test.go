package form

import (
	"context"
	"errors"
	"testing"

	"github.com/regador/regador/internal/device"
)

// fakeSource serves a fixed config and records saves.
type fakeSource struct {
	cfg      device.Configs
	fetchErr error
	saveErr  error
	fetches  int
	saved    []device.Configs
}

func (f *fakeSource) FetchConfigs(ctx context.Context) (*device.Configs, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	cfg := f.cfg
	return &cfg, nil
}

func (f *fakeSource) SaveConfigs(ctx context.Context, cfg *device.Configs) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *cfg)
	f.cfg = *cfg
	return nil
}

func baseConfigs() device.Configs {
	return device.Configs{
		SensLogDelay:             60,
		WateringTime:             10,
		CheckLowSoilHumi:         true,
		CheckLowSoilHumiInterval: 600,
		MinSoilHumi:              20,
		ActivateAlarm:            false,
		AlarmHours:               6,
		AlarmMinutes:             5,
	}
}

func loaded(t *testing.T, cfg device.Configs) (*Controller, *fakeSource) {
	t.Helper()
	src := &fakeSource{cfg: cfg}
	ctrl := NewController(src)
	if err := ctrl.LoadFormFromDevice(context.Background()); err != nil {
		t.Fatalf("LoadFormFromDevice() error = %v", err)
	}
	return ctrl, src
}

func assertAffordances(t *testing.T, ctrl *Controller, want bool) {
	t.Helper()
	if ctrl.SaveEnabled() != want || ctrl.UndoEnabled() != want {
		t.Errorf("save/undo enabled = %v/%v, want %v", ctrl.SaveEnabled(), ctrl.UndoEnabled(), want)
	}
}

func TestLoadFormFromDevice_WritesWidgets(t *testing.T) {
	cfg := baseConfigs()
	cfg.MinSoilHumi = 20.25
	ctrl, _ := loaded(t, cfg)
	reg := ctrl.Registry()

	tests := []struct {
		id       string
		value    string
		checked  bool
		disabled bool
	}{
		{id: "sens_log_delay", value: "60"},
		{id: "watering_time", value: "10"},
		{id: "check_low_soil_humi", checked: true},
		{id: "check_low_soil_humi_interval", value: "600"},
		{id: "min_soil_humi", value: "20.3"},
		{id: "activate_alarm", checked: false},
		{id: "alarm_hours_alarm_minutes", value: "06:05", disabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			w := reg.Widget(tt.id)
			if w == nil {
				t.Fatal("widget missing")
			}
			if w.Value != tt.value {
				t.Errorf("Value = %q, want %q", w.Value, tt.value)
			}
			if w.Checked != tt.checked {
				t.Errorf("Checked = %v, want %v", w.Checked, tt.checked)
			}
			if w.Disabled != tt.disabled {
				t.Errorf("Disabled = %v, want %v", w.Disabled, tt.disabled)
			}
		})
	}

	if ctrl.Loading() {
		t.Error("Loading() should be false after a load")
	}
}

// Property: after loading, the form is never dirty.
func TestLoadFormFromDevice_NotDirty(t *testing.T) {
	configs := []device.Configs{
		baseConfigs(),
		{SensLogDelay: 1, WateringTime: 1, CheckLowSoilHumiInterval: 1},
		{SensLogDelay: 3600, WateringTime: 120, CheckLowSoilHumi: true, CheckLowSoilHumiInterval: 30, MinSoilHumi: 99.9, ActivateAlarm: true, AlarmHours: 23, AlarmMinutes: 59},
		{SensLogDelay: 5, WateringTime: 5, MinSoilHumi: 33.33, ActivateAlarm: true},
	}

	for i, cfg := range configs {
		ctrl, _ := loaded(t, cfg)
		if ctrl.IsDirty() {
			t.Errorf("config %d: IsDirty() = true right after load", i)
		}
		assertAffordances(t, ctrl, false)

		// Re-reading the untouched widgets does not make it dirty either
		ctrl.RecomputeFormConfig()
		if ctrl.IsDirty() {
			t.Errorf("config %d: IsDirty() = true after recompute of untouched form; form=%v", i, ctrl.FormConfig())
		}
	}
}

// Property: the min_soil_humi scenario.
func TestDirtyScenario(t *testing.T) {
	ctrl, _ := loaded(t, device.Configs{WateringTime: 10, CheckLowSoilHumi: true, MinSoilHumi: 20})

	if err := ctrl.Change("min_soil_humi", "25"); err != nil {
		t.Fatalf("Change() error = %v", err)
	}
	if !ctrl.IsDirty() {
		t.Error("IsDirty() = false after changing min_soil_humi to 25")
	}
	assertAffordances(t, ctrl, true)

	if err := ctrl.Change("min_soil_humi", "20"); err != nil {
		t.Fatalf("Change() error = %v", err)
	}
	if ctrl.IsDirty() {
		t.Error("IsDirty() = true after changing min_soil_humi back to 20")
	}
	assertAffordances(t, ctrl, false)

	// Idempotent re-evaluation
	ctrl.RecomputeFormConfig()
	ctrl.RecomputeFormConfig()
	if ctrl.IsDirty() {
		t.Error("IsDirty() = true after recomputing a clean form")
	}
	assertAffordances(t, ctrl, false)
}

func TestChange_Coercion(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		value     string
		wantDirty bool
	}{
		{"decimal with trailing zero", "min_soil_humi", "20.0", false},
		{"decimal with comma", "min_soil_humi", "20,0", false},
		{"fractional decimal", "min_soil_humi", "20.4", true},
		{"decimal rounds to one digit", "min_soil_humi", "20.04", false},
		{"integer with spaces", "watering_time", " 10 ", false},
		{"integer changed", "watering_time", "11", true},
		{"integer garbage", "watering_time", "ten", true},
		{"integer empty", "watering_time", "", true},
		{"decimal garbage", "min_soil_humi", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, _ := loaded(t, baseConfigs())
			if err := ctrl.Change(tt.id, tt.value); err != nil {
				t.Fatalf("Change() error = %v", err)
			}
			if got := ctrl.IsDirty(); got != tt.wantDirty {
				t.Errorf("IsDirty() = %v, want %v (form=%v)", got, tt.wantDirty, ctrl.FormConfig())
			}
			assertAffordances(t, ctrl, tt.wantDirty)
		})
	}
}

func TestChange_TimeOfDay(t *testing.T) {
	cfg := baseConfigs()
	cfg.ActivateAlarm = true
	ctrl, _ := loaded(t, cfg)

	tests := []struct {
		value     string
		wantDirty bool
	}{
		{"06:05", false},
		{"6:05", false},
		{"06:05:00", false},
		{"06:06", true},
		{"18:05", true},
		{"", true},
		{"25:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if err := ctrl.Change(TimeOfDayKey, tt.value); err != nil {
				t.Fatalf("Change() error = %v", err)
			}
			if got := ctrl.IsDirty(); got != tt.wantDirty {
				t.Errorf("IsDirty() = %v, want %v", got, tt.wantDirty)
			}
		})
	}
}

// Property: unchecking a controller disables its dependents and shows the
// device values again, whatever was typed.
func TestToggleController_ResetsDependents(t *testing.T) {
	ctrl, _ := loaded(t, baseConfigs())
	reg := ctrl.Registry()

	if err := ctrl.Change("check_low_soil_humi_interval", "30"); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Change("min_soil_humi", "42.5"); err != nil {
		t.Fatal(err)
	}
	if !ctrl.IsDirty() {
		t.Fatal("form should be dirty after edits")
	}

	if err := ctrl.Toggle("check_low_soil_humi"); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	for id, want := range map[string]string{
		"check_low_soil_humi_interval": "600",
		"min_soil_humi":                "20.0",
	} {
		w := reg.Widget(id)
		if !w.Disabled {
			t.Errorf("%s should be disabled", id)
		}
		if w.Value != want {
			t.Errorf("%s displays %q, want device value %q", id, w.Value, want)
		}
	}

	// Only the checkbox itself differs now
	if !ctrl.IsDirty() {
		t.Error("unchecked controller should still count as a change")
	}
	if err := ctrl.Change("min_soil_humi", "1"); !errors.Is(err, ErrFieldDisabled) {
		t.Errorf("Change() on disabled field error = %v, want ErrFieldDisabled", err)
	}

	// Re-checking enables them with the device value, not the typed one
	if err := ctrl.Toggle("check_low_soil_humi"); err != nil {
		t.Fatal(err)
	}
	if w := reg.Widget("min_soil_humi"); w.Disabled || w.Value != "20.0" {
		t.Errorf("min_soil_humi = %+v, want enabled with 20.0", *w)
	}
	if ctrl.IsDirty() {
		t.Error("form should be clean after toggling back")
	}
}

func TestToggleController_Alarm(t *testing.T) {
	cfg := baseConfigs()
	cfg.ActivateAlarm = true
	ctrl, _ := loaded(t, cfg)

	if err := ctrl.Change(TimeOfDayKey, "21:45"); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Change("activate_alarm", "false"); err != nil {
		t.Fatal(err)
	}

	w := ctrl.Registry().Widget(TimeOfDayKey)
	if !w.Disabled || w.Value != "06:05" {
		t.Errorf("alarm time = %+v, want disabled showing 06:05", *w)
	}
}

func TestApplyDependentState_LeavesFormConfig(t *testing.T) {
	ctrl, _ := loaded(t, baseConfigs())
	if err := ctrl.Change("min_soil_humi", "30"); err != nil {
		t.Fatal(err)
	}
	before := ctrl.FormConfig()

	ctrl.Registry().Widget("check_low_soil_humi").Checked = false
	ctrl.ApplyDependentState()

	if !ctrl.FormConfig().Equal(before) {
		t.Errorf("FormConfig changed from %v to %v", before, ctrl.FormConfig())
	}
	if got := ctrl.Registry().Widget("min_soil_humi").Value; got != "20.0" {
		t.Errorf("displayed value = %q, want 20.0", got)
	}
}

// Property: after any edits, undo brings back the device snapshot and
// disables save/undo.
func TestUndo(t *testing.T) {
	edits := [][]struct{ id, value string }{
		{{"watering_time", "99"}},
		{{"min_soil_humi", "55.5"}, {"sens_log_delay", "abc"}},
		{{"activate_alarm", "true"}, {TimeOfDayKey, "23:59"}},
		{{"check_low_soil_humi", "false"}},
	}

	for i, seq := range edits {
		ctrl, src := loaded(t, baseConfigs())
		for _, e := range seq {
			if err := ctrl.Change(e.id, e.value); err != nil {
				t.Fatalf("seq %d: Change(%s) error = %v", i, e.id, err)
			}
		}

		if err := ctrl.Undo(context.Background()); err != nil {
			t.Fatalf("seq %d: Undo() error = %v", i, err)
		}

		normalized := NormalizeForComparison(ctrl.RecomputeFormConfig())
		want := Record(src.cfg.Values())
		if !normalized.Equal(want) {
			t.Errorf("seq %d: normalized form = %v, want %v", i, normalized, want)
		}
		if !ctrl.DeviceConfig().Equal(want) {
			t.Errorf("seq %d: device config = %v, want %v", i, ctrl.DeviceConfig(), want)
		}
		assertAffordances(t, ctrl, false)
	}
}

func TestUndo_FetchFailureKeepsEdits(t *testing.T) {
	ctrl, src := loaded(t, baseConfigs())
	if err := ctrl.Change("watering_time", "30"); err != nil {
		t.Fatal(err)
	}

	src.fetchErr = device.NewNetworkError("down", errors.New("connection reset"))
	if err := ctrl.Undo(context.Background()); err == nil {
		t.Fatal("Undo() error = nil, want fetch error")
	}

	if got := ctrl.Registry().Widget("watering_time").Value; got != "30" {
		t.Errorf("watering_time = %q, want the edit kept", got)
	}
	for _, f := range ctrl.Registry().Fields() {
		w := ctrl.Registry().Widget(f.ID)
		if f.Controller == "" && w.Disabled {
			t.Errorf("%s left disabled after failed load", f.ID)
		}
	}
	if !ctrl.IsDirty() {
		t.Error("form should still be dirty")
	}
}

func TestFetchDeviceConfig_FailureKeepsSnapshot(t *testing.T) {
	ctrl, src := loaded(t, baseConfigs())
	before := ctrl.DeviceConfig()

	src.fetchErr = device.NewDecodeError("bad", nil)
	if _, err := ctrl.FetchDeviceConfig(context.Background()); !device.IsDecodeError(err) {
		t.Fatalf("FetchDeviceConfig() error = %v, want decode error", err)
	}
	if !ctrl.DeviceConfig().Equal(before) {
		t.Error("device snapshot changed after a failed fetch")
	}
}

func TestLoadFormFromDevice_FetchesDeviceConfig(t *testing.T) {
	ctrl, src := loaded(t, baseConfigs())
	src.cfg.WateringTime = 42
	fetchesBefore := src.fetches

	if err := ctrl.LoadFormFromDevice(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.fetches != fetchesBefore+1 {
		t.Errorf("fetches = %d, want one more than %d", src.fetches, fetchesBefore)
	}
	if got := ctrl.DeviceConfig()[device.KeyWateringTime]; !LooseEqual(got, 42) {
		t.Errorf("device watering_time = %v, want 42", got)
	}
	if got := ctrl.Registry().Widget(device.KeyWateringTime).Value; got != "42" {
		t.Errorf("widget = %q, want 42", got)
	}
	if ctrl.Loading() || ctrl.IsDirty() {
		t.Errorf("loading = %v, dirty = %v after load", ctrl.Loading(), ctrl.IsDirty())
	}
}

func TestBeginLoad_DisablesEverything(t *testing.T) {
	ctrl, _ := loaded(t, baseConfigs())
	ctrl.BeginLoad()

	for _, f := range ctrl.Registry().Fields() {
		if !ctrl.Registry().Widget(f.ID).Disabled {
			t.Errorf("%s enabled during load", f.ID)
		}
	}
	if err := ctrl.Change("watering_time", "1"); !errors.Is(err, ErrFieldDisabled) {
		t.Errorf("Change() during load error = %v, want ErrFieldDisabled", err)
	}
}

func TestSave(t *testing.T) {
	ctrl, src := loaded(t, baseConfigs())

	if err := ctrl.Change("watering_time", "15"); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Change("min_soil_humi", "25,5"); err != nil {
		t.Fatal(err)
	}
	fetchesBefore := src.fetches

	if err := ctrl.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if len(src.saved) != 1 {
		t.Fatalf("saved %d times, want 1", len(src.saved))
	}
	want := baseConfigs()
	want.WateringTime = 15
	want.MinSoilHumi = 25.5
	if src.saved[0] != want {
		t.Errorf("saved %+v, want %+v", src.saved[0], want)
	}
	if src.fetches != fetchesBefore+1 {
		t.Error("Save() should reload the form from the device")
	}
	if ctrl.IsDirty() {
		t.Error("form should be clean after save")
	}
	assertAffordances(t, ctrl, false)
}

func TestSave_Clean(t *testing.T) {
	ctrl, src := loaded(t, baseConfigs())
	if err := ctrl.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(src.saved) != 0 {
		t.Error("clean form should not be submitted")
	}
}

func TestSave_Invalid(t *testing.T) {
	ctrl, src := loaded(t, baseConfigs())
	if err := ctrl.Change("watering_time", "ten"); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Save(context.Background()); err == nil {
		t.Error("Save() with unparseable field should fail")
	}
	if len(src.saved) != 0 {
		t.Error("invalid form should not be submitted")
	}
	assertAffordances(t, ctrl, true)
}

func TestSave_Error(t *testing.T) {
	ctrl, src := loaded(t, baseConfigs())
	if err := ctrl.Change("watering_time", "12"); err != nil {
		t.Fatal(err)
	}
	src.saveErr = device.NewHTTPError(500, "boom")

	if err := ctrl.Save(context.Background()); !device.IsNetworkError(err) {
		t.Errorf("Save() error = %v, want network error", err)
	}
	if !ctrl.IsDirty() {
		t.Error("form should stay dirty after a failed save")
	}
}

func TestPendingConfigs_DisabledDependentsUseDeviceValues(t *testing.T) {
	ctrl, _ := loaded(t, baseConfigs())

	// Force a stale value into a disabled widget behind the rules' back
	ctrl.Registry().Widget(TimeOfDayKey).Value = "12:34"

	cfg, err := ctrl.PendingConfigs()
	if err != nil {
		t.Fatalf("PendingConfigs() error = %v", err)
	}
	if cfg.AlarmHours != 6 || cfg.AlarmMinutes != 5 {
		t.Errorf("alarm = %02d:%02d, want device value 06:05", cfg.AlarmHours, cfg.AlarmMinutes)
	}
}

func TestPendingConfigs_NotLoaded(t *testing.T) {
	ctrl := NewController(&fakeSource{})
	if _, err := ctrl.PendingConfigs(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("PendingConfigs() error = %v, want ErrNotLoaded", err)
	}
	if ctrl.IsDirty() {
		t.Error("unloaded controller should not be dirty")
	}
}

func TestChange_Errors(t *testing.T) {
	ctrl, _ := loaded(t, baseConfigs())

	if err := ctrl.Change("pump_power", "1"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Change(unknown) error = %v, want ErrUnknownField", err)
	}
	if err := ctrl.Change("check_low_soil_humi", "maybe"); err == nil {
		t.Error("Change(boolean, maybe) should fail")
	}
	if err := ctrl.Toggle("watering_time"); err == nil {
		t.Error("Toggle(integer field) should fail")
	}
}
