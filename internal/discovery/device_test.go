package discovery

import "testing"

func TestDevice_String(t *testing.T) {
	device := &Device{
		ID:       "a1b2",
		Hostname: "regador-a1b2.local",
		IP:       "192.168.4.16",
		Port:     80,
	}

	expected := "Regador a1b2 (regador-a1b2.local) at 192.168.4.16:80"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}
}

func TestDevice_BaseURL(t *testing.T) {
	tests := []struct {
		name     string
		device   *Device
		expected string
	}{
		{
			name:     "standard HTTP port",
			device:   &Device{IP: "192.168.4.16", Port: 80},
			expected: "http://192.168.4.16:80",
		},
		{
			name:     "custom port",
			device:   &Device{IP: "10.0.0.5", Port: 8080},
			expected: "http://10.0.0.5:8080",
		},
		{
			name:     "ipv6",
			device:   &Device{IP: "fe80::1", Port: 80},
			expected: "http://[fe80::1]:80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.BaseURL(); got != tt.expected {
				t.Errorf("Device.BaseURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDevice_Metadata(t *testing.T) {
	device := &Device{Metadata: map[string]string{"fw": "1.4.0", "path": "/"}}

	if got := device.Firmware(); got != "1.4.0" {
		t.Errorf("Firmware() = %q, want 1.4.0", got)
	}
	if got := device.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}

	var bare Device
	if got := bare.GetMetadata("fw"); got != "" {
		t.Errorf("GetMetadata() with nil map = %q, want empty", got)
	}
}

func TestDevice_matches(t *testing.T) {
	device := &Device{ID: "a1b2", Hostname: "regador-a1b2.local"}

	tests := []struct {
		name string
		want bool
	}{
		{"regador-a1b2.local", true},
		{"regador-a1b2.local.", true},
		{"REGADOR-A1B2.local", true},
		{"a1b2", true},
		{"A1B2", true},
		{"regador-ffff.local", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := device.matches(tt.name); got != tt.want {
				t.Errorf("matches(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
