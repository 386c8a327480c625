package device

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const mockConfigsResponse = `{"configs":{"sens_log_delay":60,"watering_time":10,"check_low_soil_humi":true,"check_low_soil_humi_interval":600,"min_soil_humi":20.5,"activate_alarm":false,"alarm_hours":6,"alarm_minutes":30}}`

func TestNewClient(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"192.168.4.16", 80, "http://192.168.4.16:80"},
		{"regador.local", 0, "http://regador.local:80"},
		{"fe80::1", 8080, "http://[fe80::1]:8080"},
	}

	for _, tt := range tests {
		client := NewClient(tt.host, tt.port)
		if client.BaseURL != tt.want {
			t.Errorf("NewClient(%q, %d).BaseURL = %s, want %s", tt.host, tt.port, client.BaseURL, tt.want)
		}
		if client.HTTPClient == nil || client.HTTPClient.Timeout != DefaultTimeout {
			t.Errorf("HTTPClient not initialized with default timeout")
		}
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://192.168.4.16:80", "ws://192.168.4.16:80/websocket"},
		{"http://regador.local/", "ws://regador.local/websocket"},
		{"https://example.com/dev", "wss://example.com/dev/websocket"},
	}

	for _, tt := range tests {
		if got := NewClientWithURL(tt.base).WebSocketURL(); got != tt.want {
			t.Errorf("WebSocketURL(%q) = %s, want %s", tt.base, got, tt.want)
		}
	}
}

func TestFetchConfigs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/configs" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "regador/") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(mockConfigsResponse))
	}))
	defer server.Close()

	cfg, err := NewClientWithURL(server.URL).FetchConfigs(context.Background())
	if err != nil {
		t.Fatalf("FetchConfigs() error = %v", err)
	}

	want := Configs{
		SensLogDelay:             60,
		WateringTime:             10,
		CheckLowSoilHumi:         true,
		CheckLowSoilHumiInterval: 600,
		MinSoilHumi:              20.5,
		ActivateAlarm:            false,
		AlarmHours:               6,
		AlarmMinutes:             30,
	}
	if *cfg != want {
		t.Errorf("FetchConfigs() = %+v, want %+v", *cfg, want)
	}
}

func TestFetchConfigs_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType ErrorType
	}{
		{"server error", http.StatusInternalServerError, "boom", ErrTypeHTTP},
		{"not found", http.StatusNotFound, "", ErrTypeHTTP},
		{"not json", http.StatusOK, "<html>", ErrTypeDecode},
		{"no configs key", http.StatusOK, `{"other":1}`, ErrTypeDecode},
		{"wrong type", http.StatusOK, `{"configs":{"watering_time":"ten"}}`, ErrTypeDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClientWithURL(server.URL).FetchConfigs(context.Background())
			if err == nil {
				t.Fatal("FetchConfigs() error = nil, want error")
			}
			devErr, ok := err.(*Error)
			if !ok {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if devErr.Type != tt.wantType {
				t.Errorf("error type = %v, want %v", devErr.Type, tt.wantType)
			}
			if tt.wantType == ErrTypeHTTP && devErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", devErr.StatusCode, tt.status)
			}
		})
	}
}

func TestReadSensors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      Readings
		wantProto bool
	}{
		{
			name: "all sensors",
			body: `{"event":"read-sensors","data":{"temp":24.5,"hum":61,"soil":38.25,"lumi":72}}`,
			want: Readings{Temp: R(24.5), Hum: R(61), Soil: R(38.25), Lumi: R(72)},
		},
		{
			name: "failed sensors are falsy",
			body: `{"event":"read-sensors","data":{"temp":null,"hum":false,"soil":0,"lumi":""}}`,
			want: Readings{},
		},
		{
			name: "missing sensor",
			body: `{"event":"read-sensors","data":{"temp":-3.5}}`,
			want: Readings{Temp: R(-3.5)},
		},
		{
			name:      "wrong event tag",
			body:      `{"event":"log","data":{}}`,
			wantProto: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/readsensors" {
					t.Errorf("path = %s, want /readsensors", r.URL.Path)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got, err := NewClientWithURL(server.URL).ReadSensors(context.Background())
			if tt.wantProto {
				if !IsProtocolError(err) {
					t.Fatalf("ReadSensors() error = %v, want protocol error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadSensors() error = %v", err)
			}
			if *got != tt.want {
				t.Errorf("ReadSensors() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestSaveConfigs(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/configs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotForm = make(map[string]string)
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := &Configs{
		SensLogDelay:             60,
		WateringTime:             10,
		CheckLowSoilHumi:         true,
		CheckLowSoilHumiInterval: 600,
		MinSoilHumi:              25,
		AlarmHours:               7,
		AlarmMinutes:             5,
	}
	if err := NewClientWithURL(server.URL).SaveConfigs(context.Background(), cfg); err != nil {
		t.Fatalf("SaveConfigs() error = %v", err)
	}

	want := map[string]string{
		"sens_log_delay":               "60",
		"watering_time":                "10",
		"check_low_soil_humi":          "true",
		"check_low_soil_humi_interval": "600",
		"min_soil_humi":                "25.0",
		"activate_alarm":               "false",
		"alarm_hours":                  "7",
		"alarm_minutes":                "5",
	}
	for k, v := range want {
		if gotForm[k] != v {
			t.Errorf("form[%s] = %q, want %q", k, gotForm[k], v)
		}
	}
	if len(gotForm) != len(want) {
		t.Errorf("form has %d keys, want %d", len(gotForm), len(want))
	}
}

func TestSaveConfigs_Invalid(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	cfg := &Configs{SensLogDelay: 1, WateringTime: 1, CheckLowSoilHumiInterval: 1, AlarmHours: 24}
	if err := NewClientWithURL(server.URL).SaveConfigs(context.Background(), cfg); err == nil {
		t.Error("SaveConfigs() with hour 24 should fail")
	}
	if called {
		t.Error("invalid configs must not reach the controller")
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClientWithURL(url)
	client.SetTimeout(time.Second)

	_, err := client.ReadSensors(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("ReadSensors() error = %v, want network error", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClientWithURL(server.URL).FetchConfigs(ctx)
	if !IsNetworkError(err) {
		t.Fatalf("FetchConfigs() error = %v, want network error", err)
	}
}
