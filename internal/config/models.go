package config

import "time"

const (
	// DefaultPollIntervalMs is the sensor polling period of the dashboard.
	DefaultPollIntervalMs = 1000
	// DefaultDiscoverTimeout is the mDNS browse duration in seconds.
	DefaultDiscoverTimeout = 10
	// DefaultHistoryResults is how many watering events are requested from the feed.
	DefaultHistoryResults = 20
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by mDNS hostname (e.g. regador-a1b2.local)
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device is what we remember about a controller between runs.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"`
	LastIP   string    `yaml:"last_ip,omitempty"`
	Port     int       `yaml:"port,omitempty"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	PollIntervalMs  int          `yaml:"poll_interval_ms"`
	AutoDiscover    bool         `yaml:"auto_discover"`    // Browse mDNS when no --device is given
	DiscoverTimeout int          `yaml:"discover_timeout"` // Seconds
	History         *HistoryFeed `yaml:"history,omitempty"`
}

// HistoryFeed locates the ThingSpeak channel the controller reports watering
// events to. The read key is a read-only API key, not a credential for the
// controller itself.
type HistoryFeed struct {
	ChannelID string `yaml:"channel_id"`
	ReadKey   string `yaml:"read_key,omitempty"`
	Results   int    `yaml:"results,omitempty"`
}

func defaultPreferences() *Preferences {
	return &Preferences{
		PollIntervalMs:  DefaultPollIntervalMs,
		AutoDiscover:    true,
		DiscoverTimeout: DefaultDiscoverTimeout,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice returns nil for unknown hostnames.
func (r *Registry) GetDevice(hostname string) *Device {
	return r.Devices[hostname]
}

// EnsureDevice returns the entry for hostname, creating an empty one if needed.
func (r *Registry) EnsureDevice(hostname string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[hostname]; exists {
		return device
	}

	device := &Device{}
	r.Devices[hostname] = device
	return device
}

// UpdateDeviceLastSeen records where and when a controller was last reached.
func (r *Registry) UpdateDeviceLastSeen(hostname, ip string, port int) {
	device := r.EnsureDevice(hostname)
	device.LastSeen = time.Now()
	device.LastIP = ip
	if port != 0 {
		device.Port = port
	}
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(hostname, nickname string) {
	r.EnsureDevice(hostname).Nickname = nickname
}

// FindByNickname resolves a nickname to its hostname. Matching is exact.
func (r *Registry) FindByNickname(nickname string) (string, *Device) {
	for hostname, device := range r.Devices {
		if device.Nickname == nickname {
			return hostname, device
		}
	}
	return "", nil
}

// PollInterval returns the configured poll period, falling back to the default
// for unset or nonsensical values.
func (p *Preferences) PollInterval() time.Duration {
	if p == nil || p.PollIntervalMs <= 0 {
		return DefaultPollIntervalMs * time.Millisecond
	}
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// DiscoverDuration returns the mDNS browse duration.
func (p *Preferences) DiscoverDuration() time.Duration {
	if p == nil || p.DiscoverTimeout <= 0 {
		return DefaultDiscoverTimeout * time.Second
	}
	return time.Duration(p.DiscoverTimeout) * time.Second
}

// HistoryConfigured reports whether a history channel has been set up.
func (p *Preferences) HistoryConfigured() bool {
	return p != nil && p.History != nil && p.History.ChannelID != ""
}
