package dashboard

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/discovery"
	"github.com/regador/regador/internal/urls"
)

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual address entry
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// deviceItem wraps a Device for use with bubbles/list
type deviceItem struct {
	device *discovery.Device
	known  bool // from the config file rather than this scan
}

func (d deviceItem) FilterValue() string {
	return d.device.ID + " " + d.device.IP + " " + d.device.Hostname
}

func (d deviceItem) Title() string {
	if d.device.ID == "" {
		return d.device.Hostname
	}
	return "Regador " + d.device.ID
}

func (d deviceItem) Description() string {
	return d.device.Address()
}

// deviceDelegate renders each device as a small card
type deviceDelegate struct {
	width int
}

func (d deviceDelegate) Height() int { return 5 }

func (d deviceDelegate) Spacing() int { return 1 }

func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	di, ok := item.(deviceItem)
	if !ok {
		return
	}
	dev := di.device
	selected := index == m.Index()

	firmware := dev.Firmware()
	if firmware == "" {
		firmware = "?"
	}
	source := "mDNS"
	if di.known {
		source = "salvo " + dev.DiscoveredAt.Format("02/01 15:04")
	}

	var content strings.Builder
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + di.Title()))
	} else {
		content.WriteString("  " + di.Title())
	}
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("  Endereço: %s\n", dev.Address()))
	content.WriteString(fmt.Sprintf("  Firmware: %s  •  %s", firmware, source))

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(max(d.width-8, MinPaneWidth))
	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	_, _ = fmt.Fprint(w, cardStyle.Render(content.String()))
}

// DiscoveryModel is the device picker shown when no --device is given.
type DiscoveryModel struct {
	Scanning   bool
	DeviceList list.Model
	Selected   bool
	Err        error

	ManualMode bool
	AddrInput  textinput.Model
	InputErr   error

	Width         int
	Height        int
	Timeout       time.Duration
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    manualModeKeyMap

	known []*discovery.Device
	scan  func(ctx context.Context, timeout time.Duration) ([]*discovery.Device, error)
	ctx   context.Context
	now   func() time.Time
}

// NewDiscoveryModel creates the picker. known devices (from the config
// file) are listed ahead of the scan results.
func NewDiscoveryModel(ctx context.Context, timeout time.Duration, known []*discovery.Device) DiscoveryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	addrInput := textinput.New()
	addrInput.Placeholder = "192.168.0.40:80"
	addrInput.CharLimit = 64
	addrInput.Width = 30

	progressBar := progress.New(progress.WithGradient(string(PrimaryColor), string(WaterColor)))
	progressBar.Width = 40

	deviceList := list.New(nil, deviceDelegate{width: MinTerminalWidth}, 0, 0)
	deviceList.Title = "Controladores"
	deviceList.SetShowStatusBar(false)
	deviceList.SetFilteringEnabled(true)
	deviceList.Styles.Title = PaneTitleStyle

	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
	}

	m := DiscoveryModel{
		DeviceList:  deviceList,
		AddrInput:   addrInput,
		Timeout:     timeout,
		Spinner:     s,
		ProgressBar: progressBar,
		Help:        help.New(),
		Keys: discoveryKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "subir")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "descer")),
			Enter:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "abrir")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "procurar")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "endereço")),
			Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "sair")),
		},
		ManualKeys: manualModeKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirmar")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancelar")),
		},
		known: known,
		scan:  discovery.Scan,
		ctx:   ctx,
		now:   time.Now,
	}
	m.setDevices(nil)
	return m
}

// Init starts the first scan
func (m DiscoveryModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.scanDevices(),
		m.Spinner.Tick,
	)
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		if !m.Typing() {
			if handled, next, c := m.updateNormalMode(msg); handled {
				return next, c
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetDelegate(deviceDelegate{width: msg.Width})
		m.DeviceList.SetWidth(msg.Width - 4)
		m.DeviceList.SetHeight(msg.Height - 8)

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = m.now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		m.setDevices(msg.devices)

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if !m.ManualMode {
		m.DeviceList, cmd = m.DeviceList.Update(msg)
	}
	return m, cmd
}

// setDevices lists known devices first, skipping those the scan also found.
func (m *DiscoveryModel) setDevices(found []*discovery.Device) {
	seen := make(map[string]bool, len(found))
	var items []list.Item
	for _, dev := range found {
		seen[dev.Hostname] = true
		items = append(items, deviceItem{device: dev})
	}
	var knownItems []list.Item
	for _, dev := range m.known {
		if !seen[dev.Hostname] {
			knownItems = append(knownItems, deviceItem{device: dev, known: true})
		}
	}
	m.DeviceList.SetItems(append(items, knownItems...))
}

func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Enter):
		if m.DeviceList.SelectedItem() != nil {
			m.Selected = true
		}
		return true, m, nil

	case key.Matches(msg, m.Keys.Rescan):
		if m.Scanning {
			return true, m, nil
		}
		m.Err = nil
		m.setDevices(nil)
		return true, m, tea.Batch(
			func() tea.Msg { return scanStartMsg{} },
			m.scanDevices(),
			m.Spinner.Tick,
		)

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.InputErr = nil
		m.AddrInput.SetValue("")
		return true, m, m.AddrInput.Focus()
	}
	return false, m, nil
}

func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.ManualKeys.Cancel):
		m.ManualMode = false
		m.AddrInput.SetValue("")
		m.AddrInput.Blur()
		return m, nil

	case key.Matches(msg, m.ManualKeys.Confirm):
		dev, err := ParseAddress(m.AddrInput.Value())
		if err != nil {
			m.InputErr = err
			return m, nil
		}
		dev.DiscoveredAt = m.now()
		items := append([]list.Item{deviceItem{device: dev}}, m.DeviceList.Items()...)
		m.DeviceList.SetItems(items)
		m.DeviceList.Select(0)
		m.ManualMode = false
		m.AddrInput.SetValue("")
		m.AddrInput.Blur()
		return m, nil
	}

	m.AddrInput, cmd = m.AddrInput.Update(msg)
	return m, cmd
}

// ParseAddress turns "host" or "host:port" into a device entry.
func ParseAddress(addr string) (*discovery.Device, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("endereço vazio")
	}
	host, port := addr, device.DefaultPort
	if h, p, err := net.SplitHostPort(addr); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("porta inválida: %q", p)
		}
		host, port = h, n
	}
	if host == "" {
		return nil, fmt.Errorf("endereço vazio")
	}
	return &discovery.Device{Hostname: host, IP: host, Port: port}, nil
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	width := max(m.Width, MinTerminalWidth)

	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning(width)
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderDeviceResults()
		helpText = m.Help.View(m.Keys)
	}

	return RenderApplicationContainer("procurando controladores", content, helpText, m.Width, m.Height)
}

func (m DiscoveryModel) renderScanning(width int) string {
	elapsed := m.now().Sub(m.ScanStartTime)
	percent := min(1, elapsed.Seconds()/m.Timeout.Seconds())

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.Spinner.View()+" PROCURANDO CONTROLADORES"),
		SubtitleStyle.Render("Buscando regador.local na rede..."),
		"",
		m.ProgressBar.ViewAs(percent),
		"",
		SubtitleStyle.Render(fmt.Sprintf("%ds de %ds", int(elapsed.Seconds()), int(m.Timeout.Seconds()))),
	)
	return lipgloss.Place(width-4, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m DiscoveryModel) renderDeviceResults() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(RenderError(fmt.Sprintf("Falha na busca: %v", m.Err)))
		b.WriteString("\n\n")
	}

	if len(m.DeviceList.Items()) == 0 {
		warning := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
		b.WriteString("  ")
		b.WriteString(warning.Render("⚠ Nenhum controlador encontrado"))
		b.WriteString("\n\n")
		b.WriteString("  Verifique:\n")
		b.WriteString("    • o controlador está ligado e na mesma rede\n")
		b.WriteString("    • a rede permite mDNS (porta 5353/udp)\n")
		b.WriteString("    • ou informe o endereço com 'm'\n")
		b.WriteString("\n  " + lipgloss.NewStyle().Foreground(SubtleColor).Render(urls.Troubleshooting) + "\n")
		return b.String()
	}

	b.WriteString(m.DeviceList.View())
	return b.String()
}

func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder
	b.WriteString(RenderSubtitle("Endereço do controlador"))
	b.WriteString("\n\n  Endereço: ")
	b.WriteString(m.AddrInput.View())
	b.WriteString("\n")
	if m.InputErr != nil {
		b.WriteString("\n")
		b.WriteString(StatusErrorStyle.Render("  " + m.InputErr.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

// Typing reports whether keys go to a text field (manual entry or the
// list filter).
func (m DiscoveryModel) Typing() bool {
	return m.ManualMode || m.DeviceList.FilterState() == list.Filtering
}

// GetSelectedDevice returns the selected device, if any
func (m DiscoveryModel) GetSelectedDevice() *discovery.Device {
	if !m.Selected {
		return nil
	}
	if item, ok := m.DeviceList.SelectedItem().(deviceItem); ok {
		return item.device
	}
	return nil
}

func (m DiscoveryModel) scanDevices() tea.Cmd {
	ctx, scan, timeout := m.ctx, m.scan, m.Timeout
	return func() tea.Msg {
		devices, err := scan(ctx, timeout)
		return scanCompleteMsg{devices: devices, err: err}
	}
}
