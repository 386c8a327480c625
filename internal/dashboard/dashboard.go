package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/form"
	"github.com/regador/regador/internal/history"
	"github.com/regador/regador/internal/logging"
	"github.com/regador/regador/internal/push"
	"github.com/regador/regador/internal/recorder"
	"github.com/regador/regador/internal/telemetry"
)

// sessions numbers dashboards. Every message a dashboard emits carries its
// number, so replies and timers of a closed dashboard never reach the next.
var sessions atomic.Uint64

type sessionTag struct{ session uint64 }

func (t sessionTag) sessionID() uint64 { return t.session }

type sessionMsg interface{ sessionID() uint64 }

// Messages for async operations
type pollTickMsg struct{ sessionTag }

type pollResultMsg struct {
	sessionTag
	res telemetry.Result
}

type configsLoadedMsg struct {
	sessionTag
	cfg *device.Configs
	err error
}

type configsSavedMsg struct {
	sessionTag
	err error
}

type historyLoadedMsg struct {
	sessionTag
	entries []history.Entry
	err     error
}

type pushPayloadMsg struct {
	sessionTag
	data []byte
}

type pushStateMsg struct {
	sessionTag
	connected bool
	err       error
}

type pushTimerMsg struct {
	sessionTag
	timer push.Timer
}

type waterSentMsg struct {
	sessionTag
	err error
}

type statusTimeout struct {
	sessionTag
	seq int
}

// Focus positions after the form fields.
const (
	focusSave = iota
	focusUndo
	focusWater
	focusButtons
)

// statusLinger is how long a status message stays in the status line.
const statusLinger = 5 * time.Second

// dashboardKeyMap defines key bindings for the dashboard screen
type dashboardKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Water  key.Binding
	Save   key.Binding
	Undo   key.Binding
	Reload key.Binding
	Back   key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Water, k.Save, k.Undo, k.Reload, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Water, k.Save, k.Undo, k.Reload},
		{k.Back, k.Quit},
	}
}

// editingKeyMap is active while a text field is being edited
type editingKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k editingKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k editingKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel}}
}

// Options configures a dashboard for one controller.
type Options struct {
	// Name is shown in the header, e.g. "regador-a1b2.local".
	Name string

	Client       *device.Client
	History      *history.Client    // nil hides the history pane
	Recorder     *recorder.Recorder // nil disables recording
	PollInterval time.Duration

	// Push overrides the websocket client, mostly for tests.
	Push *push.Client
}

// DashboardModel is the live view of one controller: readings, charts,
// push log, watering history and the settings form.
type DashboardModel struct {
	Name   string
	Width  int
	Height int

	ctx    context.Context
	cancel context.CancelFunc
	link   *programLink
	tag    sessionTag

	client   *device.Client
	hist     *history.Client
	rec      *recorder.Recorder
	interval time.Duration

	Form     *form.Controller
	Poller   *telemetry.Poller
	Push     *push.Handler
	pushConn *push.Client

	Connected bool
	PushErr   error

	History    []history.Entry
	HistoryErr error
	histTable  table.Model
	logView    viewport.Model

	Focus   int
	Editing bool
	Input   textinput.Model
	Saving  bool
	Spinner spinner.Model

	// reloadPending is set when a reload is asked for while a load is in
	// flight; the load is repeated once the current one lands.
	reloadPending bool

	Status    string
	StatusErr error
	statusSeq int

	BackRequested bool

	Help        help.Model
	Keys        dashboardKeyMap
	EditingKeys editingKeyMap
}

// NewDashboardModel creates the dashboard. Nothing touches the network
// until Init.
func NewDashboardModel(ctx context.Context, opts Options) DashboardModel {
	return newDashboardModel(ctx, opts, &programLink{})
}

func newDashboardModel(ctx context.Context, opts Options, link *programLink) DashboardModel {
	ctx, cancel := context.WithCancel(ctx)
	interval := opts.PollInterval
	if interval <= 0 {
		interval = telemetry.DefaultInterval
	}

	ctl := form.NewController(opts.Client)
	tag := sessionTag{session: sessions.Add(1)}

	pushConn := opts.Push
	if pushConn == nil {
		pushConn = push.NewClient(opts.Client.WebSocketURL())
	}
	pushConn.OnMessage = func(data []byte) { link.Send(pushPayloadMsg{sessionTag: tag, data: data}) }
	pushConn.OnState = func(connected bool, err error) {
		link.Send(pushStateMsg{sessionTag: tag, connected: connected, err: err})
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.CharLimit = 8
	input.Width = 10

	histTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Horário", Width: 19},
			{Title: "Motivo", Width: 14},
			{Title: "Duração", Width: 8},
		}),
		table.WithHeight(8),
	)

	return DashboardModel{
		Name:     opts.Name,
		ctx:      ctx,
		cancel:   cancel,
		link:     link,
		tag:      tag,
		client:   opts.Client,
		hist:     opts.History,
		rec:      opts.Recorder,
		interval: interval,

		Form:     ctl,
		Poller:   telemetry.NewPoller(opts.Client),
		Push:     push.NewHandler(wateringTime(ctl)),
		pushConn: pushConn,

		histTable: histTable,
		logView:   viewport.New(MinPaneWidth, 8),
		Input:     input,
		Spinner:   s,
		Help:      help.New(),
		Keys: dashboardKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "subir")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "descer")),
			Enter:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "editar")),
			Water:  key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "regar")),
			Save:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "salvar")),
			Undo:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "desfazer")),
			Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recarregar")),
			Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dispositivos")),
			Quit:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "sair")),
		},
		EditingKeys: editingKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirmar")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancelar")),
		},
	}
}

// wateringTime reads watering_time from the last fetched device config.
func wateringTime(ctl *form.Controller) func() time.Duration {
	return func() time.Duration {
		switch v := ctl.DeviceConfig()[device.KeyWateringTime].(type) {
		case int:
			return time.Duration(v) * time.Second
		case float64:
			return time.Duration(v * float64(time.Second))
		}
		return 0
	}
}

// Init loads the form, starts polling, fetches the history and opens the
// push channel.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.loadForm(),
		func() tea.Msg { return pollTickMsg{sessionTag: m.tag} },
		m.fetchHistory(),
		m.runPush(),
		m.Spinner.Tick,
	)
}

// Close stops the push client and any in-flight requests.
func (m DashboardModel) Close() {
	m.cancel()
}

// IsBackRequested reports whether the user asked for the device list.
func (m DashboardModel) IsBackRequested() bool {
	return m.BackRequested
}

// Update handles messages and updates the model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if sm, ok := msg.(sessionMsg); ok && sm.sessionID() != m.tag.session {
		logging.Debug("Dropping message from a closed dashboard",
			zap.Uint64("session", sm.sessionID()),
			zap.Uint64("current", m.tag.session),
		)
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if m.Editing {
			return m.updateEditing(msg)
		}
		return m.updateNormalMode(msg)

	case pollTickMsg:
		seq := m.Poller.Begin()
		tag := m.tag
		return m, tea.Batch(m.fetchReadings(seq), tea.Tick(m.interval, func(time.Time) tea.Msg {
			return pollTickMsg{sessionTag: tag}
		}))

	case pollResultMsg:
		if m.Poller.Apply(msg.res) {
			return m, m.record(msg.res)
		}
		return m, nil

	case configsLoadedMsg:
		var cmd tea.Cmd
		if msg.err != nil {
			m.Form.FailLoad(msg.err)
			m, cmd = m.setStatus("Falha ao carregar configurações", msg.err)
		} else {
			m.Form.CompleteLoad(msg.cfg)
		}
		if m.reloadPending {
			m.reloadPending = false
			cmd = tea.Batch(cmd, m.loadForm())
		}
		return m, cmd

	case configsSavedMsg:
		m.Saving = false
		if msg.err != nil {
			return m.setStatus("Falha ao salvar", msg.err)
		}
		var cmd tea.Cmd
		m, cmd = m.setStatus("Configurações salvas", nil)
		reload := m.reload()
		return m, tea.Batch(cmd, reload)

	case historyLoadedMsg:
		m.HistoryErr = msg.err
		if msg.err == nil {
			m.History = msg.entries
			m.histTable.SetRows(historyRows(msg.entries))
		}
		return m, nil

	case pushStateMsg:
		m.Connected = msg.connected
		m.PushErr = msg.err
		return m, nil

	case pushPayloadMsg:
		action, _ := m.Push.HandleMessage(msg.data)
		m.refreshLog()
		cmd := m.perform(action)
		return m, cmd

	case pushTimerMsg:
		cmd := m.perform(m.Push.Fire(msg.timer))
		return m, cmd

	case waterSentMsg:
		if msg.err != nil {
			return m.setStatus("Falha ao pedir rega", msg.err)
		}
		return m.setStatus("Pedido de rega enviado", nil)

	case statusTimeout:
		if msg.seq == m.statusSeq {
			m.Status, m.StatusErr = "", nil
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m DashboardModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Back):
		m.BackRequested = true
		return m, nil

	case key.Matches(msg, m.Keys.Up):
		m.Focus = (m.Focus + m.focusCount() - 1) % m.focusCount()

	case key.Matches(msg, m.Keys.Down):
		m.Focus = (m.Focus + 1) % m.focusCount()

	case key.Matches(msg, m.Keys.Enter):
		return m.activate()

	case key.Matches(msg, m.Keys.Water):
		return m.waterNow()

	case key.Matches(msg, m.Keys.Save):
		return m.save()

	case key.Matches(msg, m.Keys.Undo):
		return m.undo()

	case key.Matches(msg, m.Keys.Reload):
		cmd := m.reload()
		return m, cmd
	}
	return m, nil
}

func (m DashboardModel) fieldCount() int {
	return len(m.Form.Registry().Fields())
}

func (m DashboardModel) focusCount() int {
	return m.fieldCount() + focusButtons
}

// focusedField returns the field under the cursor, if the cursor is on one.
func (m DashboardModel) focusedField() (form.FieldDescriptor, bool) {
	fields := m.Form.Registry().Fields()
	if m.Focus < 0 || m.Focus >= len(fields) {
		return form.FieldDescriptor{}, false
	}
	return fields[m.Focus], true
}

// activate is enter/space: toggle a checkbox, edit a text field or press
// a button.
func (m DashboardModel) activate() (tea.Model, tea.Cmd) {
	if f, ok := m.focusedField(); ok {
		w := m.Form.Registry().Widget(f.ID)
		if w.Disabled {
			return m, nil
		}
		if f.Kind == form.KindBoolean {
			if err := m.Form.Toggle(f.ID); err != nil {
				return m.setStatus("", err)
			}
			return m, nil
		}
		m.Editing = true
		m.Input.SetValue(w.Value)
		m.Input.CursorEnd()
		return m, m.Input.Focus()
	}

	switch m.Focus - m.fieldCount() {
	case focusSave:
		return m.save()
	case focusUndo:
		return m.undo()
	case focusWater:
		return m.waterNow()
	}
	return m, nil
}

func (m DashboardModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.EditingKeys.Cancel):
		m.Editing = false
		m.Input.Blur()
		return m, nil

	case key.Matches(msg, m.EditingKeys.Confirm):
		m.Editing = false
		m.Input.Blur()
		f, ok := m.focusedField()
		if !ok {
			return m, nil
		}
		if err := m.Form.Change(f.ID, m.Input.Value()); err != nil {
			return m.setStatus("", err)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

func (m DashboardModel) save() (tea.Model, tea.Cmd) {
	if m.Saving || m.Form.Loading() || !m.Form.SaveEnabled() {
		return m, nil
	}
	cfg, err := m.Form.PendingConfigs()
	if err != nil {
		return m.setStatus("", err)
	}
	m.Saving = true
	client, ctx, tag := m.client, m.ctx, m.tag
	return m, func() tea.Msg {
		return configsSavedMsg{sessionTag: tag, err: client.SaveConfigs(ctx, cfg)}
	}
}

func (m DashboardModel) undo() (tea.Model, tea.Cmd) {
	if m.Form.Loading() || !m.Form.UndoEnabled() {
		return m, nil
	}
	return m, m.loadForm()
}

func (m DashboardModel) waterNow() (tea.Model, tea.Cmd) {
	if !m.Push.Button.Enabled() {
		return m, nil
	}
	if !m.Connected {
		return m.setStatus("", push.ErrNotConnected)
	}
	conn, tag := m.pushConn, m.tag
	return m, func() tea.Msg {
		return waterSentMsg{sessionTag: tag, err: conn.SendWaterNow()}
	}
}

// perform turns a push action into commands.
func (m *DashboardModel) perform(a push.Action) tea.Cmd {
	var cmds []tea.Cmd
	if a.ReloadConfig {
		cmds = append(cmds, m.reload())
	}
	if a.RefreshHistory {
		cmds = append(cmds, m.fetchHistory())
	}
	tag := m.tag
	for _, t := range a.Timers {
		cmds = append(cmds, tea.Tick(t.After, func(time.Time) tea.Msg {
			return pushTimerMsg{sessionTag: tag, timer: t}
		}))
	}
	return tea.Batch(cmds...)
}

// reload starts a config load, or queues one behind the load in flight.
// The reply in flight may predate the change that asked for the reload.
func (m *DashboardModel) reload() tea.Cmd {
	if m.Form.Loading() {
		m.reloadPending = true
		return nil
	}
	return m.loadForm()
}

// setStatus shows a message (and error) in the status line for a while.
func (m DashboardModel) setStatus(text string, err error) (DashboardModel, tea.Cmd) {
	if text == "" && err != nil {
		text = "Erro"
	}
	m.statusSeq++
	m.Status, m.StatusErr = text, err
	seq, tag := m.statusSeq, m.tag
	return m, tea.Tick(statusLinger, func(time.Time) tea.Msg { return statusTimeout{sessionTag: tag, seq: seq} })
}

// loadForm disables the form and fetches /configs.
func (m DashboardModel) loadForm() tea.Cmd {
	m.Form.BeginLoad()
	client, ctx, tag := m.client, m.ctx, m.tag
	return func() tea.Msg {
		cfg, err := client.FetchConfigs(ctx)
		return configsLoadedMsg{sessionTag: tag, cfg: cfg, err: err}
	}
}

func (m DashboardModel) fetchReadings(seq uint64) tea.Cmd {
	poller, ctx, tag := m.Poller, m.ctx, m.tag
	return func() tea.Msg {
		return pollResultMsg{sessionTag: tag, res: poller.Fetch(ctx, seq)}
	}
}

func (m DashboardModel) fetchHistory() tea.Cmd {
	if m.hist == nil {
		return nil
	}
	hist, ctx, tag := m.hist, m.ctx, m.tag
	return func() tea.Msg {
		entries, err := hist.Fetch(ctx)
		return historyLoadedMsg{sessionTag: tag, entries: entries, err: err}
	}
}

// record stores an applied sample. Failures are logged, not shown.
func (m DashboardModel) record(res telemetry.Result) tea.Cmd {
	if m.rec == nil {
		return nil
	}
	rec, ctx := m.rec, m.ctx
	return func() tea.Msg {
		if err := rec.Record(ctx, res.At, res.Readings); err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn("Failed to record sample", zap.Uint64("seq", res.Seq), zap.Error(err))
		}
		return nil
	}
}

// runPush starts the websocket loop. It lives until Close.
func (m DashboardModel) runPush() tea.Cmd {
	conn, ctx := m.pushConn, m.ctx
	return func() tea.Msg {
		go func() {
			if err := conn.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("Push channel stopped", zap.Error(err))
			}
		}()
		return nil
	}
}

func historyRows(entries []history.Entry) []table.Row {
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		rows[i] = table.Row{e.TimeLabel(), e.ReasonLabel(), e.DurationLabel()}
	}
	return rows
}

// refreshLog rewrites the log viewport and scrolls to the newest line.
func (m *DashboardModel) refreshLog() {
	m.logView.SetContent(renderLogLines(m.Push.Logs.Entries()))
	m.logView.GotoBottom()
}

func (m *DashboardModel) resize() {
	half := max(m.Width/2-3, MinPaneWidth)
	m.logView.Width = half - 4
	m.histTable.SetWidth(half - 4)
	m.refreshLog()
}
