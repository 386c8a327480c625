package simulator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/regador/regador/internal/history"
	"github.com/regador/regador/internal/logging"
	"github.com/regador/regador/internal/push"
)

// WaterNow starts the pump for the configured watering time, the way the
// controller reacts to the web button, a dry soil reading or the alarm.
// It returns false if the pump is already running or cooling down.
func (s *Server) WaterNow(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if s.watering {
		logging.Debug("Watering already in progress", zap.String("reason", reason))
		s.hub.Broadcast(push.NewLogEvent("Rega já em andamento"))
		return false
	}

	cfg := s.state.Configs()
	duration := time.Duration(cfg.WateringTime) * s.unit
	start := s.now()
	s.watering = true

	logging.Info("Watering started",
		zap.String("reason", reason),
		zap.Int("watering_time", cfg.WateringTime),
	)
	s.hub.Broadcast(push.NewEvent(push.TypeDisableWaterNow))
	s.hub.Broadcast(push.NewLogEvent(fmt.Sprintf("Regando por %ds (%s)", cfg.WateringTime, history.ReasonLabel(reason))))

	s.scheduleLocked(duration, func() {
		s.finishWatering(start, duration, cfg.WateringTime, reason)
	})
	return true
}

// Watering reports whether the pump is running or cooling down.
func (s *Server) Watering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watering
}

func (s *Server) finishWatering(start time.Time, d time.Duration, seconds int, reason string) {
	s.state.Water(time.Duration(seconds) * time.Second)
	s.state.LogWatering(start, time.Duration(seconds)*time.Second, reason)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	logging.Info("Watering finished", zap.Duration("elapsed", d))
	s.hub.Broadcast(push.NewLogEvent("Rega concluída"))
	s.scheduleLocked(s.cooldown(), s.enableWaterNow)
}

func (s *Server) enableWaterNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.watering = false
	s.hub.Broadcast(push.NewEvent(push.TypeEnableWaterNow))
}

func (s *Server) cooldown() time.Duration {
	return time.Duration(float64(s.config.WateringCooldown) * float64(s.unit) / float64(time.Second))
}

// scheduleLocked runs fn after d. s.mu must be held.
func (s *Server) scheduleLocked(d time.Duration, fn func()) {
	if s.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		for i, pending := range s.timers {
			if pending == t {
				s.timers = append(s.timers[:i], s.timers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		fn()
	})
	s.timers = append(s.timers, t)
}

// automation runs the controller's own triggers once per controller second
// until ctx is done.
func (s *Server) automation(ctx context.Context) {
	ticker := time.NewTicker(s.unit)
	defer ticker.Stop()

	var a automationState
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reason := a.tick(s.state, s.now()); reason != "" {
				s.WaterNow(reason)
			}
		}
	}
}

// automationState tracks the soil check interval and the last alarm minute
// that fired.
type automationState struct {
	sinceCheck int
	lastAlarm  time.Time
}

// tick advances one controller second and returns the reason to water, if
// any.
func (a *automationState) tick(state *State, now time.Time) string {
	cfg := state.Configs()

	if cfg.ActivateAlarm && now.Hour() == cfg.AlarmHours && now.Minute() == cfg.AlarmMinutes {
		minute := now.Truncate(time.Minute)
		if !minute.Equal(a.lastAlarm) {
			a.lastAlarm = minute
			return history.ReasonAlarm
		}
	}

	if !cfg.CheckLowSoilHumi {
		a.sinceCheck = 0
		return ""
	}
	a.sinceCheck++
	if a.sinceCheck < cfg.CheckLowSoilHumiInterval {
		return ""
	}
	a.sinceCheck = 0
	if soil := state.Soil(); soil < cfg.MinSoilHumi {
		return history.ReasonLowSoilHumi
	}
	return ""
}
