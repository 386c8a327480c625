package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regador/regador/internal/config"
	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/form"
	"github.com/regador/regador/internal/logging"
	"github.com/regador/regador/internal/push"
	"github.com/regador/regador/internal/ui"
)

var waterTimeout time.Duration

// waterCmd presses the water-now button
var waterCmd = &cobra.Command{
	Use:   "water",
	Short: "Water now",
	Long: `Ask the controller to water now, then follow its push channel until the
button is enabled again.

The controller refuses while it is already watering or cooling down; the
command then fails with the controller's log line.`,
	Example: `  regador water --device horta
  regador water --device 192.168.0.40 --timeout 5m`,
	RunE: runWater,
}

func init() {
	waterCmd.Flags().DurationVar(&waterTimeout, "timeout", 2*time.Minute, "Give up when the controller does not finish in time")
}

func runWater(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	dev, err := resolveDevice(cmd, reg)
	if err != nil {
		return err
	}
	client := device.NewClient(dev.IP, dev.Port)

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:     "Regar agora",
		Command:   "regador water",
		Params:    []ui.Param{{Key: "Controlador", Value: dev.Address()}},
		StepNames: []string{"Conectar", "Enviar pedido", "Regando", "Aguardando liberação"},
		Troubleshooting: []string{
			"O controlador está ligado e acessível?",
			"Ele já estava regando? Aguarde o fim do intervalo",
			"Use --log-level debug para ver as mensagens",
		},
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), waterTimeout)
	defer cancel()
	return runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
		return waterNow(ctx, client, onStep)
	})
}

// waterSession follows one manual watering over the push channel.
type waterSession struct {
	conn      *push.Client
	events    chan push.Event
	connected chan struct{}
	done      chan struct{}
	lastLog   string
}

func newWaterSession(url string) *waterSession {
	s := &waterSession{
		conn:      push.NewClient(url),
		events:    make(chan push.Event, 32),
		connected: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	s.conn.OnMessage = func(data []byte) {
		ev, err := push.Decode(data)
		if err != nil {
			logging.Warn("Discarding push payload", zap.Error(err))
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
		}
	}
	s.conn.OnState = func(ok bool, err error) {
		if !ok {
			logging.Debug("Push channel down", zap.Error(err))
			return
		}
		select {
		case s.connected <- struct{}{}:
		default:
		}
	}
	return s
}

// await returns when an event of type typ arrives. Log lines on the way are
// passed to onLog.
func (s *waterSession) await(ctx context.Context, typ string, onLog func(string)) error {
	for {
		select {
		case ev := <-s.events:
			switch ev.Type {
			case typ:
				return nil
			case push.TypeLog:
				s.lastLog = ev.Text()
				if onLog != nil {
					onLog(s.lastLog)
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func waterNow(ctx context.Context, client *device.Client, onStep ui.StepCallback) ([]ui.Param, error) {
	onStep(1, ui.StepRunning, "")
	cfg, err := client.FetchConfigs(ctx)
	if err != nil {
		onStep(1, ui.StepFailed, "")
		return nil, errors.New(device.GetShortErrorMessage(err))
	}

	s := newWaterSession(client.WebSocketURL())
	runCtx, stop := context.WithCancel(ctx)
	defer func() {
		stop()
		close(s.done)
	}()
	go func() { _ = s.conn.Run(runCtx) }()

	select {
	case <-s.connected:
	case <-ctx.Done():
		onStep(1, ui.StepFailed, "")
		return nil, fmt.Errorf("push channel: %w", ctx.Err())
	}
	onStep(1, ui.StepComplete, "")

	onStep(2, ui.StepRunning, "")
	if err := s.conn.SendWaterNow(); err != nil {
		onStep(2, ui.StepFailed, "")
		return nil, err
	}
	// A refusal arrives as a log line without disable-water-now.
	refusal, cancelRefusal := context.WithTimeout(ctx, device.DefaultTimeout)
	err = s.await(refusal, push.TypeDisableWaterNow, nil)
	cancelRefusal()
	if err != nil {
		onStep(2, ui.StepFailed, s.lastLog)
		if s.lastLog != "" {
			return nil, fmt.Errorf("controller refused: %s", s.lastLog)
		}
		return nil, fmt.Errorf("no answer from the controller: %w", err)
	}
	onStep(2, ui.StepComplete, "")

	watering := time.Duration(cfg.WateringTime) * time.Second
	onStep(3, ui.StepRunning, watering.String())
	select {
	case <-time.After(watering):
	case <-ctx.Done():
		onStep(3, ui.StepFailed, "")
		return nil, ctx.Err()
	}
	onStep(3, ui.StepComplete, "")

	onStep(4, ui.StepRunning, "")
	if err := s.await(ctx, push.TypeEnableWaterNow, func(line string) {
		onStep(4, ui.StepRunning, line)
	}); err != nil {
		onStep(4, ui.StepFailed, "")
		return nil, fmt.Errorf("button not enabled again: %w", err)
	}
	onStep(4, ui.StepComplete, "")

	details := []ui.Param{{Key: "Tempo de rega", Value: watering.String()}}
	if s.lastLog != "" {
		details = append(details, ui.Param{Key: "Último registro", Value: s.lastLog})
	}
	return details, nil
}

// configCmd groups the settings subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Change controller settings",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key=value>...",
	Short: "Change one or more settings",
	Long: `Change settings the way the dashboard form does: the current settings are
loaded, each value is typed into its field, and the form is saved when it
differs from the controller.

Fields that depend on an unchecked box keep the controller's value; check the
box in the same command to change them. The alarm time is set with
` + form.TimeOfDayKey + `=HH:MM.

Keys: ` + strings.Join(fieldIDs(), ", "),
	Example: `  regador config set watering_time=10
  regador config set check_low_soil_humi=true min_soil_humi=25.5
  regador config set activate_alarm=true ` + form.TimeOfDayKey + `=06:30`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configSetCmd)
}

func fieldIDs() []string {
	var ids []string
	for _, f := range form.DefaultFields {
		ids = append(ids, f.ID)
	}
	return ids
}

// parseAssignments maps key=value arguments by field id.
func parseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		known := false
		for _, f := range form.DefaultFields {
			if f.ID == key {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("%w: %s (keys: %s)", form.ErrUnknownField, key, strings.Join(fieldIDs(), ", "))
		}
		values[key] = value
	}
	return values, nil
}

// applyAssignments types the values into the form in field order, so a
// checkbox is set before the fields it enables.
func applyAssignments(ctl *form.Controller, values map[string]string) error {
	for _, f := range ctl.Registry().Fields() {
		value, ok := values[f.ID]
		if !ok {
			continue
		}
		if err := ctl.Change(f.ID, value); err != nil {
			return err
		}
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	values, err := parseAssignments(args)
	if err != nil {
		return err
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	dev, err := resolveDevice(cmd, reg)
	if err != nil {
		return err
	}

	ctl := form.NewController(device.NewClient(dev.IP, dev.Port))
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:     "Alterar configuração",
		Command:   "regador config set",
		Params:    []ui.Param{{Key: "Controlador", Value: dev.Address()}},
		StepNames: []string{"Ler configuração", "Aplicar alterações", "Salvar"},
	})

	return runner.Run(cmd.Context(), func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
		onStep(1, ui.StepRunning, "")
		if err := ctl.LoadFormFromDevice(ctx); err != nil {
			onStep(1, ui.StepFailed, "")
			return nil, errors.New(device.GetShortErrorMessage(err))
		}
		onStep(1, ui.StepComplete, "")

		onStep(2, ui.StepRunning, "")
		if err := applyAssignments(ctl, values); err != nil {
			onStep(2, ui.StepFailed, "")
			return nil, err
		}
		if !ctl.SaveEnabled() {
			onStep(2, ui.StepComplete, "nada mudou")
			onStep(3, ui.StepSkipped, "")
			return nil, nil
		}
		if _, err := ctl.PendingConfigs(); err != nil {
			onStep(2, ui.StepFailed, "")
			return nil, err
		}
		onStep(2, ui.StepComplete, "")

		onStep(3, ui.StepRunning, "")
		if err := ctl.Save(ctx); err != nil {
			onStep(3, ui.StepFailed, "")
			return nil, err
		}
		onStep(3, ui.StepComplete, "")

		var details []ui.Param
		for _, f := range ctl.Registry().Fields() {
			if _, ok := values[f.ID]; ok {
				details = append(details, ui.Param{Key: f.Label, Value: fieldText(f, ctl.Registry().Widget(f.ID))})
			}
		}
		return details, nil
	})
}
