// Regador-sim is a stand-in irrigation controller for development.
//
// It serves the controller's HTTP API and push channel, waters on request,
// on dry soil and on the daily alarm, and exposes its watering log as a
// ThingSpeak-style feed, so the dashboard can run without hardware.
//
// Usage:
//
//	regador-sim serve [flags]
//
// See 'regador-sim serve --help' for available options.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/regador/regador/internal/logging"
	"github.com/regador/regador/internal/simulator"
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
	Use:   "regador-sim",
	Short: "Simulated irrigation controller",
	Long: `A simulated irrigation controller.

Sensors follow a bounded random walk; settings posted to /configs are
validated and kept in memory; water-now requests run the pump for the
configured watering time, then keep the button disabled for the cooldown.

Point the dashboard at it with 'regador --device localhost:8080'.
Documentation: ` + urls.Simulator,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	certPath  string
	keyPath   string
	host      string
	port      int
	logLevel  string
	cooldown  time.Duration
	failRate  float64
	seed      uint64
	advertise bool
	name      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulator",
	Long: `Start the simulated controller.

The watering log is served at /channels/<any id>/feeds.json in the ThingSpeak
format, so 'regador --history-url http://localhost:8080 --history-channel 1'
shows it in the history pane.

With --cert and --key the simulator serves HTTPS and WSS. With --advertise it
announces itself over mDNS like a real controller.`,
	Example: `  # Plain HTTP on port 8080
  regador-sim serve

  # Flaky sensors and a short cooldown
  regador-sim serve --fail-rate 0.2 --watering-cooldown 2s

  # Discoverable by 'regador scan'
  regador-sim serve --advertise --name regador-demo

  # TLS with your own certificate
  regador-sim serve --cert cert.pem --key key.pem --port 8443`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file (optional)")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file (optional)")
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().DurationVar(&cooldown, "watering-cooldown", simulator.DefaultCooldown, "Time the water-now button stays disabled after watering")
	serveCmd.Flags().Float64Var(&failRate, "fail-rate", 0, "Chance (0-1) of a failed reading per sensor and poll")
	serveCmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed for the sensors (0 = time based)")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Announce the simulator over mDNS")
	serveCmd.Flags().StringVar(&name, "name", "regador-sim", "mDNS host name used with --advertise")
}

func runServe(cmd *cobra.Command, args []string) error {
	if (certPath != "" && keyPath == "") || (certPath == "" && keyPath != "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}
	if certPath != "" {
		if _, err := os.Stat(certPath); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", certPath)
		}
		if _, err := os.Stat(keyPath); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", keyPath)
		}
	}

	if err := logging.Initialize(logLevel, ""); err != nil {
		return err
	}
	defer logging.Sync()

	srv, err := simulator.New(&simulator.Config{
		Host:             host,
		Port:             port,
		CertPath:         certPath,
		KeyPath:          keyPath,
		WateringCooldown: cooldown,
		FailRate:         failRate,
		Seed:             seed,
		Advertise:        advertise,
		Name:             name,
	})
	if err != nil {
		return fmt.Errorf("failed to create simulator: %w", err)
	}

	return srv.Start()
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("regador-sim %s (commit: %s)\n", version.Version, version.Commit)
	},
}
