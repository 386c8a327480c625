package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/discovery"
	"github.com/regador/regador/internal/logging"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenDashboard Screen = "dashboard"
)

// programLink lets goroutines outside the update loop (the websocket
// reader) deliver messages once the program exists.
type programLink struct {
	mu      sync.Mutex
	program *tea.Program
}

func (l *programLink) set(p *tea.Program) {
	l.mu.Lock()
	l.program = p
	l.mu.Unlock()
}

// Send forwards msg to the program, or drops it when there is none.
func (l *programLink) Send(msg tea.Msg) {
	l.mu.Lock()
	p := l.program
	l.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// AppOptions configures the whole application.
type AppOptions struct {
	// Device skips the discovery screen when set.
	Device *discovery.Device

	// Known devices from the config file, listed on the discovery screen.
	Known           []*discovery.Device
	DiscoverTimeout time.Duration

	// Dashboard is the template for every dashboard opened; Client and Name
	// are filled in from the selected device.
	Dashboard Options

	// OnConnect is called with each device the user opens.
	OnConnect func(*discovery.Device)
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen  Screen
	SelectedDevice *discovery.Device

	DiscoveryModel DiscoveryModel
	DashboardModel DashboardModel

	Width  int
	Height int

	ctx  context.Context
	opts AppOptions
	link *programLink
}

// NewAppModel creates the application, starting on the dashboard when a
// device was given and on discovery otherwise.
func NewAppModel(ctx context.Context, opts AppOptions) AppModel {
	return newAppModel(ctx, opts, &programLink{})
}

func newAppModel(ctx context.Context, opts AppOptions, link *programLink) AppModel {
	m := AppModel{ctx: ctx, opts: opts, link: link}
	if opts.Device != nil {
		m.CurrentScreen = ScreenDashboard
		m.SelectedDevice = opts.Device
		m.DashboardModel = m.newDashboard(opts.Device)
	} else {
		m.CurrentScreen = ScreenDiscovery
		m.DiscoveryModel = NewDiscoveryModel(ctx, opts.DiscoverTimeout, opts.Known)
	}
	return m
}

func (m AppModel) newDashboard(dev *discovery.Device) DashboardModel {
	opts := m.opts.Dashboard
	if opts.Client == nil || m.opts.Device != dev {
		opts.Client = device.NewClient(dev.IP, dev.Port)
	}
	if opts.Name == "" || m.opts.Device != dev {
		opts.Name = dev.Hostname
	}
	if m.opts.OnConnect != nil {
		m.opts.OnConnect(dev)
	}
	logging.Info("Opening dashboard", zap.String("device", dev.Address()))
	return newDashboardModel(m.ctx, opts, m.link)
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.DiscoveryModel.Init()
	case ScreenDashboard:
		return m.DashboardModel.Init()
	}
	return nil
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.CurrentScreen == ScreenDashboard {
				m.DashboardModel.Close()
			}
			return m, tea.Quit
		}
	}

	return m.updateCurrentScreen(msg)
}

func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.CurrentScreen {
	case ScreenDiscovery:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && !m.DiscoveryModel.Typing() && keyMsg.String() == "q" {
			return m, tea.Quit
		}
		updated, c := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)
		cmd = c

		if dev := m.DiscoveryModel.GetSelectedDevice(); dev != nil {
			return m.openDashboard(dev)
		}

	case ScreenDashboard:
		updated, c := m.DashboardModel.Update(msg)
		m.DashboardModel = updated.(DashboardModel)
		cmd = c

		if m.DashboardModel.IsBackRequested() {
			return m.goBack()
		}
	}

	return m, cmd
}

func (m AppModel) openDashboard(dev *discovery.Device) (tea.Model, tea.Cmd) {
	m.SelectedDevice = dev
	m.CurrentScreen = ScreenDashboard
	m.DashboardModel = m.newDashboard(dev)
	m.DashboardModel.Width = m.Width
	m.DashboardModel.Height = m.Height
	m.DashboardModel.resize()
	return m, m.DashboardModel.Init()
}

// goBack closes the dashboard and returns to a fresh device scan.
func (m AppModel) goBack() (tea.Model, tea.Cmd) {
	m.DashboardModel.Close()
	m.CurrentScreen = ScreenDiscovery
	m.DiscoveryModel = NewDiscoveryModel(m.ctx, m.opts.DiscoverTimeout, m.opts.Known)
	m.DiscoveryModel.Width = m.Width
	m.DiscoveryModel.Height = m.Height
	return m, m.DiscoveryModel.Init()
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.DiscoveryModel.View()
	case ScreenDashboard:
		return m.DashboardModel.View()
	}
	return "Unknown screen"
}

// Run shows the application full screen until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, opts AppOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	link := &programLink{}
	program := tea.NewProgram(newAppModel(ctx, opts, link),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	link.set(program)

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
