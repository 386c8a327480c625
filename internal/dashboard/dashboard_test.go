package dashboard

import (
	"context"
	"errors"
	"math"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/discovery"
	"github.com/regador/regador/internal/push"
	"github.com/regador/regador/internal/recorder"
	"github.com/regador/regador/internal/simulator"
	"github.com/regador/regador/internal/telemetry"
)

func newSimulator(t *testing.T) (*simulator.Server, string) {
	t.Helper()
	s, err := simulator.New(&simulator.Config{Seed: 1})
	if err != nil {
		t.Fatalf("simulator.New() error = %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		srv.Close()
	})
	return s, srv.URL
}

func newTestDashboard(t *testing.T, baseURL string, opts Options) DashboardModel {
	t.Helper()
	opts.Client = device.NewClientWithURL(baseURL)
	opts.Name = "regador-test.local"
	m := NewDashboardModel(context.Background(), opts)
	t.Cleanup(m.Close)
	return m
}

func update(t *testing.T, m DashboardModel, msg tea.Msg) (DashboardModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	dm, ok := next.(DashboardModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return dm, cmd
}

// load runs the config fetch synchronously.
func load(t *testing.T, m DashboardModel) DashboardModel {
	t.Helper()
	m, _ = update(t, m, m.loadForm()())
	if !m.Form.Loaded() || m.Form.Loading() {
		t.Fatal("form did not load")
	}
	return m
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestSparkline(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		values []float64
		width  int
		want   string
	}{
		{"rising", []float64{1, 2, 3}, 3, "▁▅█"},
		{"padded", []float64{1, 2, 3}, 5, "  ▁▅█"},
		{"flat", []float64{7, 7}, 2, "▄▄"},
		{"gap", []float64{1, nan, 3}, 3, "▁ █"},
		{"empty", nil, 2, "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sparkline(tt.values, tt.width); got != tt.want {
				t.Errorf("Sparkline(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}


func TestParseAddress(t *testing.T) {
	tests := []struct {
		in       string
		wantIP   string
		wantPort int
		wantErr  bool
	}{
		{"192.168.0.40", "192.168.0.40", 80, false},
		{"192.168.0.40:8080", "192.168.0.40", 8080, false},
		{" regador.local ", "regador.local", 80, false},
		{"[fe80::1]:81", "fe80::1", 81, false},
		{"", "", 0, true},
		{"host:99999", "", 0, true},
		{"host:http", "", 0, true},
	}
	for _, tt := range tests {
		dev, err := ParseAddress(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && (dev.IP != tt.wantIP || dev.Port != tt.wantPort) {
			t.Errorf("ParseAddress(%q) = %s:%d, want %s:%d", tt.in, dev.IP, dev.Port, tt.wantIP, tt.wantPort)
		}
	}
}

func TestEditAndSave(t *testing.T) {
	sim, url := newSimulator(t)
	m := load(t, newTestDashboard(t, url, Options{}))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if f, _ := m.focusedField(); f.ID != device.KeyWateringTime {
		t.Fatalf("focused %q, want watering_time", f.ID)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Editing || m.Input.Value() != "5" {
		t.Fatalf("editing = %v, input = %q", m.Editing, m.Input.Value())
	}
	m.Input.SetValue("12")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Editing {
		t.Fatal("still editing after enter")
	}
	if !m.Form.SaveEnabled() || !m.Form.UndoEnabled() {
		t.Fatal("save/undo not enabled after a change")
	}

	m, cmd := update(t, m, keyRune('s'))
	if cmd == nil || !m.Saving {
		t.Fatal("save did not start")
	}
	m, _ = update(t, m, cmd())
	if m.Saving || m.StatusErr != nil {
		t.Fatalf("save finished with %v", m.StatusErr)
	}
	if got := sim.State().Configs().WateringTime; got != 12 {
		t.Errorf("controller watering_time = %d, want 12", got)
	}

	m = load(t, m)
	if m.Form.SaveEnabled() || m.Form.IsDirty() {
		t.Error("form dirty after reload")
	}
	if got := m.Form.Registry().Widget(device.KeyWateringTime).Value; got != "12" {
		t.Errorf("widget = %q, want 12", got)
	}
}

func TestUndoRestoresDevice(t *testing.T) {
	_, url := newSimulator(t)
	m := load(t, newTestDashboard(t, url, Options{}))

	// check_low_soil_humi is the third field
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !m.Form.UndoEnabled() {
		t.Fatal("toggle did not dirty the form")
	}
	if !m.Form.Registry().Widget(device.KeyMinSoilHumi).Disabled {
		t.Error("dependent still enabled after unchecking its controller")
	}

	m, cmd := update(t, m, keyRune('u'))
	if cmd == nil || !m.Form.Loading() {
		t.Fatal("undo did not reload")
	}
	m, _ = update(t, m, cmd())
	if m.Form.UndoEnabled() || !m.Form.Registry().Widget(device.KeyCheckLowSoilHumi).Checked {
		t.Error("undo did not restore the device value")
	}
}

func TestPushEvents(t *testing.T) {
	_, url := newSimulator(t)
	m := load(t, newTestDashboard(t, url, Options{}))

	m, cmd := update(t, m, pushPayloadMsg{sessionTag: m.tag, data: []byte(`{"type":"disable-water-now"}`)})
	if m.Push.Button.State() != push.StateWatering || cmd == nil {
		t.Fatalf("state = %v after disable-water-now", m.Push.Button.State())
	}
	gen := m.Push.Button.Generation()

	m, _ = update(t, m, pushTimerMsg{sessionTag: m.tag, timer: push.Timer{Kind: push.TimerWateringDone, Gen: gen}})
	if m.Push.Button.State() != push.StateCooldown {
		t.Fatalf("state = %v after watering timer", m.Push.Button.State())
	}
	if !strings.HasPrefix(m.Push.Button.Label(), push.CooldownLabel) {
		t.Errorf("label = %q", m.Push.Button.Label())
	}

	m, _ = update(t, m, pushPayloadMsg{sessionTag: m.tag, data: []byte(`{"type":"log","message":"Rega concluída"}`)})
	if m.Push.Logs.Len() != 1 || !strings.Contains(m.logView.View(), "Rega concluída") {
		t.Errorf("log panel = %q", m.logView.View())
	}

	m, _ = update(t, m, pushPayloadMsg{sessionTag: m.tag, data: []byte(`{"type":"enable-water-now"}`)})
	if m.Push.Button.State() != push.StateIdle || m.Push.Button.Label() != push.DefaultLabel {
		t.Errorf("after enable: state %v label %q", m.Push.Button.State(), m.Push.Button.Label())
	}

	// a tick from the finished watering is ignored
	m, cmd = update(t, m, pushTimerMsg{sessionTag: m.tag, timer: push.Timer{Kind: push.TimerAnimate, Gen: gen}})
	if cmd != nil || m.Push.Button.Label() != push.DefaultLabel {
		t.Errorf("stale tick changed the button to %q", m.Push.Button.Label())
	}

	m, cmd = update(t, m, pushPayloadMsg{sessionTag: m.tag, data: []byte("not json")})
	if cmd != nil {
		t.Error("malformed payload produced a command")
	}

	m, cmd = update(t, m, pushPayloadMsg{sessionTag: m.tag, data: []byte(`{"type":"reload-config"}`)})
	if cmd == nil || !m.Form.Loading() {
		t.Error("reload-config did not reload the form")
	}
}

func TestPollRecordsFreshSamples(t *testing.T) {
	_, url := newSimulator(t)
	ctx := context.Background()
	rec, err := recorder.Open(ctx, filepath.Join(t.TempDir(), "samples.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rec.Close() })

	m := newTestDashboard(t, url, Options{Recorder: rec})
	older, newer := m.Poller.Begin(), m.Poller.Begin()
	readings := device.Readings{Temp: device.R(20), Hum: device.R(55), Soil: device.R(31.5), Lumi: device.R(80)}

	m, cmd := update(t, m, pollResultMsg{sessionTag: m.tag, res: telemetry.Result{Seq: newer, At: time.Now(), Readings: readings}})
	if cmd == nil {
		t.Fatal("fresh sample was not recorded")
	}
	if msg := cmd(); msg != nil {
		t.Errorf("record command returned %T", msg)
	}

	stale := device.Readings{Temp: device.R(99)}
	m, cmd = update(t, m, pollResultMsg{sessionTag: m.tag, res: telemetry.Result{Seq: older, At: time.Now(), Readings: stale}})
	if cmd != nil {
		t.Error("stale sample produced a command")
	}
	if got := m.Poller.Display(telemetry.Temperature); got != "20,0" {
		t.Errorf("temperature display = %q, want 20,0", got)
	}

	samples, err := rec.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 1 || samples[0].Readings.Temp.Value != 20 {
		t.Errorf("recorded %+v", samples)
	}
}

func TestWaterNowNeedsConnection(t *testing.T) {
	_, url := newSimulator(t)
	m := newTestDashboard(t, url, Options{})

	m, cmd := update(t, m, keyRune('w'))
	if !errors.Is(m.StatusErr, push.ErrNotConnected) || cmd == nil {
		t.Errorf("status error = %v", m.StatusErr)
	}

	m, _ = update(t, m, pushStateMsg{sessionTag: m.tag, connected: true})
	m, cmd = update(t, m, keyRune('w'))
	if cmd == nil {
		t.Fatal("water-now sent nothing")
	}
	msg, ok := cmd().(waterSentMsg)
	if !ok || !errors.Is(msg.err, push.ErrNotConnected) {
		t.Fatalf("send result = %+v", msg)
	}
	m, _ = update(t, m, msg)
	if m.Status != "Falha ao pedir rega" {
		t.Errorf("status = %q", m.Status)
	}
}

func TestViewRendersPanes(t *testing.T) {
	_, url := newSimulator(t)
	m := load(t, newTestDashboard(t, url, Options{}))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 50})

	out := m.View()
	for _, want := range []string{"Leituras", "Configurações", "Tempo de rega", push.DefaultLabel, "desconectado"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(out, "Histórico de regas") {
		t.Error("history pane shown without a channel")
	}
}

func TestAppScreens(t *testing.T) {
	_, url := newSimulator(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	dev, err := ParseAddress(strings.TrimPrefix(url, "http://"))
	if err != nil {
		t.Fatal(err)
	}

	direct := NewAppModel(ctx, AppOptions{Device: dev})
	if direct.CurrentScreen != ScreenDashboard {
		t.Errorf("with a device the app starts on %q", direct.CurrentScreen)
	}

	var opened *discovery.Device
	app := NewAppModel(ctx, AppOptions{OnConnect: func(d *discovery.Device) { opened = d }})
	if app.CurrentScreen != ScreenDiscovery {
		t.Fatalf("without a device the app starts on %q", app.CurrentScreen)
	}

	step := func(msg tea.Msg) {
		t.Helper()
		next, _ := app.Update(msg)
		app = next.(AppModel)
	}
	step(tea.WindowSizeMsg{Width: 100, Height: 40})
	step(scanCompleteMsg{devices: []*discovery.Device{dev}})
	step(tea.KeyMsg{Type: tea.KeyEnter})

	if app.CurrentScreen != ScreenDashboard || opened != dev {
		t.Fatalf("screen = %q, opened = %v", app.CurrentScreen, opened)
	}
	if app.DashboardModel.Width != 100 {
		t.Errorf("dashboard width = %d", app.DashboardModel.Width)
	}

	step(tea.KeyMsg{Type: tea.KeyEsc})
	if app.CurrentScreen != ScreenDiscovery {
		t.Errorf("esc left the app on %q", app.CurrentScreen)
	}
}

// configsReply runs cmd, following batches, and returns the config load
// reply it produces.
func configsReply(t *testing.T, cmd tea.Cmd) configsLoadedMsg {
	t.Helper()
	if cmd == nil {
		t.Fatal("no command to run")
	}
	switch msg := cmd().(type) {
	case configsLoadedMsg:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if reply, ok := c().(configsLoadedMsg); ok {
				return reply
			}
		}
	}
	t.Fatal("command did not load configs")
	return configsLoadedMsg{}
}

func TestReloadConfigDuringLoad(t *testing.T) {
	sim, url := newSimulator(t)
	m := load(t, newTestDashboard(t, url, Options{}))

	// The reply is taken before the controller changes.
	inFlight := m.loadForm()()

	cfg := sim.State().Configs()
	cfg.WateringTime = 42
	if err := sim.State().SetConfigs(cfg); err != nil {
		t.Fatal(err)
	}

	m, _ = update(t, m, pushPayloadMsg{sessionTag: m.tag, data: []byte(`{"type":"reload-config"}`)})
	if !m.reloadPending {
		t.Fatal("reload-config during a load was not queued")
	}

	m, cmd := update(t, m, inFlight)
	if got := m.Form.Registry().Widget(device.KeyWateringTime).Value; got != "5" {
		t.Fatalf("first reply watering_time = %q, want 5", got)
	}
	if m.reloadPending || !m.Form.Loading() {
		t.Fatalf("queued reload not started: pending = %v, loading = %v", m.reloadPending, m.Form.Loading())
	}

	m, _ = update(t, m, configsReply(t, cmd))
	if got := m.Form.Registry().Widget(device.KeyWateringTime).Value; got != "42" {
		t.Errorf("watering_time after reload = %q, want 42", got)
	}
	if got := wateringTime(m.Form)(); got != 42*time.Second {
		t.Errorf("watering timer = %v, want 42s", got)
	}
	if m.Form.Loading() {
		t.Error("form still loading")
	}
}

func TestClosedDashboardMessagesDropped(t *testing.T) {
	simA, urlA := newSimulator(t)
	_, urlB := newSimulator(t)
	cfg := simA.State().Configs()
	cfg.WateringTime = 77
	if err := simA.State().SetConfigs(cfg); err != nil {
		t.Fatal(err)
	}

	devA, err := ParseAddress(strings.TrimPrefix(urlA, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	devB, err := ParseAddress(strings.TrimPrefix(urlB, "http://"))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	app := NewAppModel(ctx, AppOptions{Device: devA})
	step := func(msg tea.Msg) tea.Cmd {
		t.Helper()
		next, cmd := app.Update(msg)
		app = next.(AppModel)
		return cmd
	}

	step(tea.WindowSizeMsg{Width: 100, Height: 40})

	a := app.DashboardModel
	staleReply := a.loadForm()()
	staleTick := pollTickMsg{sessionTag: a.tag}
	staleState := pushStateMsg{sessionTag: a.tag, connected: true}

	step(tea.KeyMsg{Type: tea.KeyEsc})
	step(scanCompleteMsg{devices: []*discovery.Device{devB}})
	step(tea.KeyMsg{Type: tea.KeyEnter})
	if app.CurrentScreen != ScreenDashboard || app.SelectedDevice != devB {
		t.Fatalf("screen = %q, device = %v", app.CurrentScreen, app.SelectedDevice)
	}
	if app.DashboardModel.tag == a.tag {
		t.Fatal("dashboards share a session")
	}

	step(staleReply)
	if app.DashboardModel.Form.Loaded() {
		t.Errorf("dashboard B adopted A's config: %v", app.DashboardModel.Form.DeviceConfig())
	}
	if cmd := step(staleTick); cmd != nil {
		t.Error("stale poll tick started a polling chain")
	}
	step(staleState)
	if app.DashboardModel.Connected {
		t.Error("dashboard B took A's push state")
	}

	// B's own reply still lands.
	own := configsReply(t, func() tea.Msg {
		return app.DashboardModel.loadForm()()
	})
	step(own)
	if got := app.DashboardModel.Form.Registry().Widget(device.KeyWateringTime).Value; got != "5" {
		t.Errorf("dashboard B watering_time = %q, want 5", got)
	}
}
