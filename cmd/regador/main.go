// Regador is the terminal dashboard for the irrigation controller.
//
// Without a subcommand it opens the interactive dashboard: live sensor
// readings, the settings form, the controller log, the watering history and
// the "Regar agora" button. The one-shot subcommands cover scripting:
//
//	regador                         # discover controllers, then open the dashboard
//	regador --device 192.168.0.40   # open the dashboard directly
//	regador scan                    # list controllers on the network
//	regador show --format json      # readings and settings
//	regador config set watering_time=10
//	regador water                   # water now and wait for the cooldown
//	regador history                 # last watering events
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regador/regador/internal/config"
	"github.com/regador/regador/internal/dashboard"
	"github.com/regador/regador/internal/discovery"
	"github.com/regador/regador/internal/logging"
	"github.com/regador/regador/internal/recorder"
	"github.com/regador/regador/internal/urls"
	"github.com/regador/regador/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "regador",
	Short: "Irrigation controller dashboard",
	Long: `A terminal dashboard for the irrigation controller.

The dashboard polls the controller's sensors, edits its settings, follows its
push channel and triggers manual watering. When --device is not given it
browses the network for controllers first.

Known controllers and preferences are kept in ~/.config/regador/config.yaml.
Documentation: ` + urls.Home,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runDashboard,
}

func init() {
	// Assigned here rather than in the literal: initLogging refers to rootCmd.
	rootCmd.PersistentPreRunE = initLogging
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

// initLogging runs before every command. Silent unless --log-level is set.
func initLogging(cmd *cobra.Command, args []string) error {
	// The dashboard owns the terminal, so its logs go to a file.
	if cmd == rootCmd && logLevel != "" && logFile == "" {
		if dir, err := config.GetConfigDir(); err == nil {
			if err := os.MkdirAll(dir, 0755); err == nil {
				logFile = filepath.Join(dir, "regador.log")
			}
		}
	}
	return logging.Initialize(logLevel, logFile)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	prefs := reg.Preferences

	opts := dashboard.AppOptions{
		Known:           knownDevices(reg),
		DiscoverTimeout: prefs.DiscoverDuration(),
		Dashboard: dashboard.Options{
			PollInterval: prefs.PollInterval(),
			History:      historyClient(prefs),
		},
		OnConnect: func(dev *discovery.Device) {
			reg.UpdateDeviceLastSeen(dev.Hostname, dev.IP, dev.Port)
			if err := reg.Save(); err != nil {
				logging.Warn("Failed to remember device", zap.String("device", dev.Hostname), zap.Error(err))
			}
		},
	}

	if deviceFlag != "" {
		dev, err := deviceFromFlag(cmd, reg)
		if err != nil {
			return err
		}
		opts.Device = dev
	}

	if historyDB != "" {
		rec, err := recorder.Open(ctx, historyDB)
		if err != nil {
			return err
		}
		defer func() { _ = rec.Close() }()
		opts.Dashboard.Recorder = rec
	}

	if err := dashboard.Run(ctx, opts); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("regador %s (commit: %s)\n", version.Version, version.Commit)
	},
}
