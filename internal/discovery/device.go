package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device is a controller found on the network.
type Device struct {
	// ID is the hostname suffix after "regador" (e.g. "a1b2" for regador-a1b2.local)
	ID string

	// Hostname is the mDNS hostname, trailing dot removed
	Hostname string

	IP   string
	Port int

	// Metadata holds the TXT records ("fw=1.4.0", "path=/")
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("Regador %s (%s) at %s", d.ID, d.Hostname, d.Address())
}

// Address returns host:port, bracketing IPv6 addresses.
func (d *Device) Address() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// BaseURL returns the HTTP base URL for the device
func (d *Device) BaseURL() string {
	return "http://" + d.Address()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

// Firmware returns the advertised firmware version, if any.
func (d *Device) Firmware() string {
	return d.GetMetadata("fw")
}
