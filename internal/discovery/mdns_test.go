package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name         string
		entry        *zeroconf.ServiceEntry
		wantNil      bool
		wantID       string
		wantHostname string
		wantIP       string
		wantPort     int
	}{
		{
			name: "controller with IPv4 and TXT",
			entry: &zeroconf.ServiceEntry{
				HostName: "regador-a1b2.local.",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.4.16")},
				Text:     []string{"fw=1.4.0", "path=/"},
			},
			wantID:       "a1b2",
			wantHostname: "regador-a1b2.local",
			wantIP:       "192.168.4.16",
			wantPort:     80,
		},
		{
			name: "bare hostname without suffix",
			entry: &zeroconf.ServiceEntry{
				HostName: "regador.local",
				Port:     8080,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantID:       "",
			wantHostname: "regador.local",
			wantIP:       "10.0.0.5",
			wantPort:     8080,
		},
		{
			name: "port defaults to 80",
			entry: &zeroconf.ServiceEntry{
				HostName: "Regador_03.local",
				AddrIPv4: []net.IP{net.ParseIP("172.16.0.1")},
			},
			wantID:       "03",
			wantHostname: "Regador_03.local",
			wantIP:       "172.16.0.1",
			wantPort:     80,
		},
		{
			name: "IPv6 fallback",
			entry: &zeroconf.ServiceEntry{
				HostName: "regador-x.local",
				Port:     80,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantID:       "x",
			wantHostname: "regador-x.local",
			wantIP:       "fe80::1",
			wantPort:     80,
		},
		{
			name: "other http service",
			entry: &zeroconf.ServiceEntry{
				HostName: "printer.local",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				HostName: "regador-a1b2.local",
				Port:     80,
			},
			wantNil: true,
		},
		{
			name:    "empty hostname",
			entry:   &zeroconf.ServiceEntry{AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")}},
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if device != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", device)
				}
				return
			}
			if device == nil {
				t.Fatal("parseServiceEntry() = nil, want device")
			}

			if device.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", device.ID, tt.wantID)
			}
			if device.Hostname != tt.wantHostname {
				t.Errorf("Hostname = %q, want %q", device.Hostname, tt.wantHostname)
			}
			if device.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", device.IP, tt.wantIP)
			}
			if device.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", device.Port, tt.wantPort)
			}
			if device.DiscoveredAt.IsZero() {
				t.Error("DiscoveredAt should be set")
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	device := parseServiceEntry(&zeroconf.ServiceEntry{
		HostName: "regador-a1.local",
		AddrIPv4: []net.IP{net.ParseIP("192.168.0.2")},
		Text:     []string{"fw=1.4.0", "flag", "k=v=w"},
	})
	if device == nil {
		t.Fatal("parseServiceEntry() = nil")
	}

	want := map[string]string{"fw": "1.4.0", "flag": "", "k": "v=w"}
	for k, v := range want {
		if got, ok := device.Metadata[k]; !ok || got != v {
			t.Errorf("Metadata[%q] = %q (present %v), want %q", k, got, ok, v)
		}
	}
}

func TestHostnamePattern(t *testing.T) {
	tests := []struct {
		hostname    string
		shouldMatch bool
		id          string
	}{
		{"regador.local", true, ""},
		{"regador-a1b2.local", true, "a1b2"},
		{"regador_a1b2.local.", true, "a1b2"},
		{"REGADOR-A1B2.LOCAL", true, "A1B2"},
		{"regadora1b2.local", true, "a1b2"},
		{"regador-.local", true, ""},
		{"regador-a1.b2.local", false, ""},
		{"myregador.local", false, ""},
		{"regador-a1b2", false, ""},
		{"", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			matches := hostnamePattern.FindStringSubmatch(tt.hostname)

			if !tt.shouldMatch {
				if matches != nil {
					t.Errorf("hostnamePattern matched %q, want no match", tt.hostname)
				}
				return
			}
			if matches == nil {
				t.Fatalf("hostnamePattern did not match %q", tt.hostname)
			}
			if matches[1] != tt.id {
				t.Errorf("hostnamePattern matched %q with id %q, want %q", tt.hostname, matches[1], tt.id)
			}
		})
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}
