package simulator

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/regador/regador/internal/discovery"
	"github.com/regador/regador/internal/history"
	"github.com/regador/regador/internal/logging"
	"github.com/regador/regador/internal/push"
)

// DefaultCooldown is how long the simulated controller keeps the water-now
// button disabled after the pump stops.
const DefaultCooldown = 5 * time.Second

// Config holds the simulator configuration
type Config struct {
	Host     string
	Port     int
	CertPath string // serve HTTPS/WSS when both CertPath and KeyPath are set
	KeyPath  string

	// WateringCooldown is the wait between the pump stopping and
	// enable-water-now.
	WateringCooldown time.Duration

	// FailRate is the chance of a failed reading per sensor and poll.
	FailRate float64
	Seed     uint64

	// Advertise publishes the simulator over mDNS as Name.
	Advertise bool
	Name      string
}

// Server is a simulated irrigation controller: the HTTP API, the push
// channel and the controller's own watering logic.
type Server struct {
	config     *Config
	state      *State
	hub        *Hub
	tlsConfig  *tls.Config
	httpServer *http.Server
	mdns       *zeroconf.Server

	mu       sync.Mutex
	watering bool
	closed   bool
	timers   []*time.Timer
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// unit is one second of controller time; tests shrink it.
	unit time.Duration
	now  func() time.Time
}

// New creates a new Server instance
func New(config *Config) (*Server, error) {
	if config.WateringCooldown <= 0 {
		config.WateringCooldown = DefaultCooldown
	}
	if config.FailRate < 0 || config.FailRate > 1 {
		return nil, fmt.Errorf("fail rate must be between 0 and 1, got %v", config.FailRate)
	}
	if config.Seed == 0 {
		config.Seed = uint64(time.Now().UnixNano())
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	s := &Server{
		config:    config,
		state:     NewState(config.Seed, config.FailRate),
		tlsConfig: tlsConfig,
		unit:      time.Second,
		now:       time.Now,
	}
	s.hub = NewHub(s.handleClientEvent)
	return s, nil
}

// State returns the simulated controller state.
func (s *Server) State() *State { return s.state }

// Hub returns the push hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
		logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
	}

	logging.Info("Starting Regador simulator",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
		zap.Duration("watering_cooldown", s.config.WateringCooldown),
	)

	if s.config.Advertise {
		if err := s.advertise(listener.Addr()); err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.cancel = cancel
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.automation(ctx)
	}()

	logging.Info("Server listening for connections", zap.String("addr", l.Addr().String()))
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	srv := s.httpServer
	cancel := s.cancel
	s.mu.Unlock()

	if s.mdns != nil {
		s.mdns.Shutdown()
	}
	if cancel != nil {
		cancel()
	}

	ctx, stop := context.WithTimeout(ctx, 10*time.Second)
	defer stop()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
			_ = srv.Close()
		}
	}
	s.hub.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}

	logging.Sync()
	return nil
}

// Broadcast sends a push event to every connected client.
func (s *Server) Broadcast(ev push.Event) {
	s.hub.Broadcast(ev)
}

func (s *Server) handleClientEvent(remoteAddr string, ev push.Event) {
	switch ev.Type {
	case push.TypeWaterNowBtn:
		logging.Info("Water-now requested", zap.String("remote_addr", remoteAddr))
		s.WaterNow(history.ReasonWaterNow)
	default:
		logging.Warn("Unknown client message type",
			zap.String("remote_addr", remoteAddr),
			zap.String("type", ev.Type),
		)
	}
}

// advertise publishes the HTTP service over mDNS with a regador-* host name.
func (s *Server) advertise(addr net.Addr) error {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("unexpected listener address %v", addr)
	}

	name := s.config.Name
	if name == "" {
		name = "regador-sim"
	}
	var ips []string
	if tcp.IP != nil && !tcp.IP.IsUnspecified() {
		ips = []string{tcp.IP.String()}
	} else {
		ips = localIPs()
	}

	server, err := zeroconf.RegisterProxy(name, discovery.ServiceType, discovery.ServiceDomain, tcp.Port, name, ips,
		[]string{"fw=simulator"}, nil)
	if err != nil {
		return err
	}
	s.mdns = server
	logging.Info("Advertising over mDNS",
		zap.String("host", name+".local."),
		zap.Strings("ips", ips),
		zap.Int("port", tcp.Port),
	)
	return nil
}

func localIPs() []string {
	var ips []string
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ips
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			ips = append(ips, ipnet.IP.String())
		}
	}
	return ips
}
