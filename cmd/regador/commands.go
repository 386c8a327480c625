package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/regador/regador/internal/config"
	"github.com/regador/regador/internal/dashboard"
	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/discovery"
	"github.com/regador/regador/internal/form"
	"github.com/regador/regador/internal/history"
	"github.com/regador/regador/internal/recorder"
	"github.com/regador/regador/internal/telemetry"
	"github.com/regador/regador/internal/ui"
	"github.com/regador/regador/internal/urls"
)

// Shared flags
var (
	deviceFlag     string
	devicePort     int
	outputFormat   string
	logLevel       string
	logFile        string
	historyDB      string
	historyURL     string
	historyChannel string
)

// Command flags
var (
	scanTimeout   int
	historyLimit  int
	recentSamples int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "device", "", "Controller nickname, host or host:port (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", device.DefaultPort, "Controller HTTP port")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stdout")
	rootCmd.PersistentFlags().StringVar(&historyDB, "history-db", "", "SQLite file that stores every sensor poll")
	rootCmd.PersistentFlags().StringVar(&historyURL, "history-url", "", "Base URL of the watering feed (default "+history.DefaultBaseURL+")")
	rootCmd.PersistentFlags().StringVar(&historyChannel, "history-channel", "", "Watering feed channel ID (overrides the config file)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(waterCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(nicknameCmd)
}

// scanCmd discovers controllers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for controllers on the network",
	Long: `Scan for irrigation controllers using mDNS/DNS-SD discovery.

Every controller found is remembered in the config file, so the dashboard can
list it even when discovery does not reach it.`,
	Example: `  # Scan for 10 seconds (default)
  regador scan

  # Quick 3-second scan
  regador scan --timeout 3`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", config.DefaultDiscoverTimeout, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	width := ui.GetTerminalWidth()
	fmt.Println(ui.NewHeader("Procurar controladores", "regador scan",
		ui.Param{Key: "Tempo", Value: fmt.Sprintf("%ds", scanTimeout)},
	).SetWidth(width).Render())
	fmt.Println()

	devices, err := discovery.Scan(cmd.Context(), time.Duration(scanTimeout)*time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		result := ui.NewWarningResult("Nenhum controlador encontrado")
		result.Troubleshooting = []string{
			"O controlador está ligado e na mesma rede?",
			"A rede permite mDNS (multicast)?",
			"Aumente --timeout em redes lentas",
			"Use --device para informar o endereço manualmente",
			"Guia: " + urls.Troubleshooting,
		}
		fmt.Println(result.SetWidth(width).Render())
		return nil
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	t := newTable("Controlador", "Endereço", "Firmware", "Apelido")
	for _, dev := range devices {
		nickname := ""
		if known := reg.GetDevice(dev.Hostname); known != nil {
			nickname = known.Nickname
		}
		t.Row(dev.Hostname, dev.Address(), dev.Firmware(), nickname)
		reg.UpdateDeviceLastSeen(dev.Hostname, dev.IP, dev.Port)
	}
	fmt.Println(t.Render())
	fmt.Println()

	if err := reg.Save(); err != nil {
		return err
	}

	fmt.Printf("%d controlador(es) encontrado(s).\n", len(devices))
	fmt.Println("Use 'regador --device <endereço>' para abrir o painel")
	return nil
}

// showCmd prints the readings and settings
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show sensor readings and settings",
	Long: `Read the sensors and the settings block of a controller once.

With --history-db the detailed format also lists the most recent stored
samples.`,
	Example: `  # Show with auto-discovery
  regador show

  # Compact output for a specific controller
  regador show --device 192.168.0.40 --format compact

  # JSON output for scripting
  regador show --device horta --format json`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().IntVar(&recentSamples, "samples", 5, "Stored samples to list with --history-db")
}

type showOutput struct {
	Device   string           `json:"device"`
	Readings *device.Readings `json:"readings"`
	Configs  *device.Configs  `json:"configs"`
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	dev, err := resolveDevice(cmd, reg)
	if err != nil {
		return err
	}

	client := device.NewClient(dev.IP, dev.Port)
	readings, err := client.ReadSensors(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sensors: %s", device.GetShortErrorMessage(err))
	}
	cfg, err := client.FetchConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %s", device.GetShortErrorMessage(err))
	}

	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(showOutput{Device: dev.Address(), Readings: readings, Configs: cfg}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	case "compact":
		fmt.Println(formatCompact(dev, readings, cfg))
	case "detailed":
		fallthrough
	default:
		fmt.Println(formatDetailed(dev, readings, cfg))
		if historyDB != "" {
			if err := printRecent(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatCompact(dev *discovery.Device, rd *device.Readings, cfg *device.Configs) string {
	parts := []string{dev.Address()}
	for _, s := range telemetry.Sensors {
		parts = append(parts, s.Key()+"="+telemetry.FormatReading(s.Pick(*rd)))
	}
	parts = append(parts, fmt.Sprintf("rega=%ds", cfg.WateringTime))
	if cfg.ActivateAlarm {
		parts = append(parts, "alarme="+form.FormatTimeOfDay(cfg.AlarmHours, cfg.AlarmMinutes))
	}
	return strings.Join(parts, " ")
}

// formatDetailed renders readings and the settings as the dashboard form
// shows them, dependents of unchecked boxes included.
func formatDetailed(dev *discovery.Device, rd *device.Readings, cfg *device.Configs) string {
	width := ui.GetTerminalWidth()

	var readings []ui.Param
	for _, s := range telemetry.Sensors {
		readings = append(readings, ui.Param{Key: s.Title(), Value: telemetry.FormatReading(s.Pick(*rd)) + " " + s.Unit()})
	}

	ctl := form.NewController(nil)
	ctl.CompleteLoad(cfg)
	var settings []ui.Param
	for _, f := range ctl.Registry().Fields() {
		settings = append(settings, ui.Param{Key: f.Label, Value: fieldText(f, ctl.Registry().Widget(f.ID))})
	}

	var b strings.Builder
	b.WriteString(ui.NewHeader("Controlador", "regador show", ui.Param{Key: "Endereço", Value: dev.Address()}).SetWidth(width).Render())
	b.WriteString("\n\n")
	b.WriteString(ui.NewSuccessResult("Sensores", readings...).SetWidth(width).Render())
	b.WriteString("\n")
	b.WriteString(ui.NewSuccessResult("Configuração", settings...).SetWidth(width).Render())
	return b.String()
}

func fieldText(f form.FieldDescriptor, w *form.Widget) string {
	var text string
	if f.Kind == form.KindBoolean {
		text = "não"
		if w.Checked {
			text = "sim"
		}
	} else {
		text = w.Value
		if f.Unit != "" {
			text += " " + f.Unit
		}
	}
	if w.Disabled {
		text += " (inativo)"
	}
	return text
}

func printRecent(ctx context.Context) error {
	rec, err := recorder.Open(ctx, historyDB)
	if err != nil {
		return err
	}
	defer func() { _ = rec.Close() }()

	samples, err := rec.Recent(ctx, recentSamples)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	headers := []string{"Horário"}
	for _, s := range telemetry.Sensors {
		headers = append(headers, s.Title())
	}
	t := newTable(headers...)
	for _, sample := range samples {
		row := []string{sample.At.Local().Format(history.TimeLayout)}
		for _, s := range telemetry.Sensors {
			row = append(row, telemetry.FormatReading(s.Pick(sample.Readings)))
		}
		t.Row(row...)
	}
	fmt.Println()
	fmt.Println(ui.ProgressLabelStyle.Render("Últimas leituras gravadas"))
	fmt.Println(t.Render())
	return nil
}

// historyCmd lists watering events from the feed
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent watering events",
	Long: `List the watering events the controller reported to its ThingSpeak channel.

The channel is read from the history section of the config file, or from
--history-channel.`,
	Example: `  regador history
  regador history --limit 50

  # Read the feed served by regador-sim
  regador history --history-url http://localhost:8080 --history-channel 1`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Number of events to fetch (default from config)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	client := historyClient(reg.Preferences)
	if client == nil {
		return fmt.Errorf("no watering feed configured: set history.channel_id in the config file or use --history-channel (see %s)", urls.HistorySetup)
	}
	if historyLimit > 0 {
		client.Results = historyLimit
	}

	entries, err := client.Fetch(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("Nenhuma rega registrada.")
		return nil
	}
	t := newTable("Horário", "Motivo", "Duração")
	for _, e := range entries {
		t.Row(e.TimeLabel(), e.ReasonLabel(), e.DurationLabel())
	}
	fmt.Println(t.Render())
	return nil
}

// nicknameCmd names a controller for --device
var nicknameCmd = &cobra.Command{
	Use:   "nickname <hostname> <nickname>",
	Short: "Give a controller a nickname",
	Example: `  regador nickname regador-a1b2.local horta
  regador show --device horta`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		reg.SetDeviceNickname(args[0], args[1])
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Printf("%s agora é %q\n", args[0], args[1])
		return nil
	},
}

// resolveDevice picks the controller from --device, or discovers it when
// exactly one answers.
func resolveDevice(cmd *cobra.Command, reg *config.Registry) (*discovery.Device, error) {
	if deviceFlag != "" {
		return deviceFromFlag(cmd, reg)
	}
	if !reg.Preferences.AutoDiscover {
		return nil, fmt.Errorf("auto-discovery is disabled: use --device")
	}

	fmt.Println("No device specified, attempting auto-discovery...")
	devices, err := discovery.Scan(cmd.Context(), reg.Preferences.DiscoverDuration())
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no controllers found. Use --device flag to specify the address manually")
	case 1:
		dev := devices[0]
		fmt.Printf("Found controller: %s (%s)\n\n", dev.Hostname, dev.Address())
		reg.UpdateDeviceLastSeen(dev.Hostname, dev.IP, dev.Port)
		_ = reg.Save()
		return dev, nil
	default:
		fmt.Printf("Found %d controllers:\n", len(devices))
		for i, dev := range devices {
			fmt.Printf("%d. %s (%s)\n", i+1, dev.Hostname, dev.Address())
		}
		return nil, fmt.Errorf("multiple controllers found. Use --device flag to specify which one")
	}
}

// deviceFromFlag resolves --device: a nickname or hostname from the config
// file, a controller announced over mDNS as *.local, else a literal
// host[:port].
func deviceFromFlag(cmd *cobra.Command, reg *config.Registry) (*discovery.Device, error) {
	hostname, known := reg.FindByNickname(deviceFlag)
	if known == nil {
		hostname, known = deviceFlag, reg.GetDevice(deviceFlag)
	}
	if known != nil && known.LastIP != "" {
		port := known.Port
		if port == 0 || cmd.Flags().Changed("port") {
			port = devicePort
		}
		return &discovery.Device{Hostname: hostname, IP: known.LastIP, Port: port}, nil
	}

	if strings.HasSuffix(strings.ToLower(deviceFlag), ".local") {
		scanner := discovery.NewScanner()
		scanner.Timeout = reg.Preferences.DiscoverDuration()
		dev, err := scanner.WaitForDevice(cmd.Context(), deviceFlag)
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed("port") {
			dev.Port = devicePort
		}
		return dev, nil
	}

	dev, err := dashboard.ParseAddress(deviceFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid --device: %w", err)
	}
	if cmd.Flags().Changed("port") {
		dev.Port = devicePort
	}
	return dev, nil
}

func knownDevices(reg *config.Registry) []*discovery.Device {
	var out []*discovery.Device
	for _, hostname := range slices.Sorted(maps.Keys(reg.Devices)) {
		d := reg.Devices[hostname]
		if d.LastIP == "" {
			continue
		}
		port := d.Port
		if port == 0 {
			port = device.DefaultPort
		}
		out = append(out, &discovery.Device{Hostname: hostname, IP: d.LastIP, Port: port, DiscoveredAt: d.LastSeen})
	}
	return out
}

// historyClient returns nil when no channel is configured.
func historyClient(prefs *config.Preferences) *history.Client {
	channel, readKey, results := historyChannel, "", 0
	if prefs.HistoryConfigured() {
		if channel == "" {
			channel = prefs.History.ChannelID
		}
		readKey, results = prefs.History.ReadKey, prefs.History.Results
	}
	if channel == "" {
		return nil
	}

	c := history.NewClient(channel, readKey)
	if results > 0 {
		c.Results = results
	}
	if historyURL != "" {
		c.BaseURL = strings.TrimSuffix(historyURL, "/")
	}
	return c
}

func newTable(headers ...string) *table.Table {
	header := lipgloss.NewStyle().Bold(true).Foreground(ui.PrimaryColor).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ui.MutedColor)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
}
