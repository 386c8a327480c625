package simulator

import (
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/history"
)

// DefaultConfigs is the settings block of a freshly flashed controller.
func DefaultConfigs() device.Configs {
	return device.Configs{
		SensLogDelay:             60,
		WateringTime:             5,
		CheckLowSoilHumi:         true,
		CheckLowSoilHumiInterval: 300,
		MinSoilHumi:              20.0,
		ActivateAlarm:            false,
		AlarmHours:               6,
		AlarmMinutes:             30,
	}
}

// feedCap bounds the simulated watering channel.
const feedCap = 100

type sensor struct {
	value, min, max, step float64
}

func (s *sensor) walk(rng *rand.Rand) {
	s.value += (rng.Float64()*2 - 1) * s.step
	s.value = math.Max(s.min, math.Min(s.max, s.value))
}

// State is the simulated controller: its settings, its sensors and the
// watering log it would upload to ThingSpeak. Safe for concurrent use.
type State struct {
	mu       sync.Mutex
	configs  device.Configs
	sensors  [4]sensor // temp, hum, soil, lumi
	rng      *rand.Rand
	failRate float64
	feeds    []history.Feed
	entryID  int
}

// NewState creates a controller with default settings. failRate is the
// chance, per sensor and poll, of reporting a failed reading.
func NewState(seed uint64, failRate float64) *State {
	return &State{
		configs: DefaultConfigs(),
		sensors: [4]sensor{
			{value: 24, min: 5, max: 45, step: 0.3},
			{value: 60, min: 10, max: 100, step: 1},
			{value: 35, min: 1, max: 100, step: 0.5},
			{value: 70, min: 1, max: 100, step: 2},
		},
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		failRate: failRate,
	}
}

// Sample advances every sensor and returns the readings.
func (s *State) Sample() device.Readings {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out [4]device.Reading
	for i := range s.sensors {
		s.sensors[i].walk(s.rng)
		if s.failRate > 0 && s.rng.Float64() < s.failRate {
			continue
		}
		out[i] = device.R(math.Round(s.sensors[i].value*100) / 100)
	}
	return device.Readings{Temp: out[0], Hum: out[1], Soil: out[2], Lumi: out[3]}
}

// Configs returns the current settings.
func (s *State) Configs() device.Configs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs
}

// SetConfigs validates and stores new settings.
func (s *State) SetConfigs(cfg device.Configs) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.configs = cfg
	s.mu.Unlock()
	return nil
}

// Water raises soil moisture as if the pump had run for d.
func (s *State) Water(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	soil := &s.sensors[2]
	soil.value = math.Min(soil.max, soil.value+d.Seconds()*2)
}

// LogWatering appends a row to the watering channel.
func (s *State) LogWatering(at time.Time, d time.Duration, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entryID++
	s.feeds = append(s.feeds, history.Feed{
		CreatedAt: at.UTC().Format(time.RFC3339),
		EntryID:   s.entryID,
		Field1:    history.Field(at.UTC().Format(time.RFC3339)),
		Field2:    history.Field(strconv.FormatInt(d.Milliseconds(), 10)),
		Field3:    history.Field(reason),
	})
	if over := len(s.feeds) - feedCap; over > 0 {
		s.feeds = append(s.feeds[:0], s.feeds[over:]...)
	}
}

// Feeds returns the newest n rows, oldest first, like ThingSpeak.
func (s *State) Feeds(n int) []history.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if n > 0 && len(s.feeds) > n {
		start = len(s.feeds) - n
	}
	return append([]history.Feed(nil), s.feeds[start:]...)
}

// Soil returns the current soil moisture without advancing the sensors.
func (s *State) Soil() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sensors[2].value
}

// SetSoil forces the soil moisture, clamped to the sensor range.
func (s *State) SetSoil(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	soil := &s.sensors[2]
	soil.value = math.Max(soil.min, math.Min(soil.max, v))
}
