package simulator

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/history"
	"github.com/regador/regador/internal/logging"
	"github.com/regador/regador/internal/push"
)

// Handler returns the controller's HTTP API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /readsensors", s.handleReadSensors)
	mux.HandleFunc("GET /configs", s.handleGetConfigs)
	mux.HandleFunc("POST /configs", s.handlePostConfigs)
	mux.Handle("GET /websocket", s.hub)
	mux.HandleFunc("GET /channels/{id}/feeds.json", s.handleFeeds)
	return logRequests(mux)
}

func (s *Server) handleReadSensors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, device.SensorsResponse{
		Event: device.EventReadSensors,
		Data:  s.state.Sample(),
	})
}

type configsBody struct {
	Configs device.Configs `json:"configs"`
}

func (s *Server) handleGetConfigs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configsBody{Configs: s.state.Configs()})
}

func (s *Server) handlePostConfigs(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg, err := device.ParseConfigsForm(r.PostForm, s.state.Configs())
	if err == nil {
		err = s.state.SetConfigs(*cfg)
	}
	if err != nil {
		logging.Warn("Rejected configs", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logging.Info("Configs updated", zap.String("remote_addr", r.RemoteAddr), zap.Any("configs", cfg))
	s.Broadcast(push.NewEvent(push.TypeReloadConfig))
	s.Broadcast(push.NewLogEvent("Configurações atualizadas"))
	writeJSON(w, http.StatusOK, configsBody{Configs: *cfg})
}

// handleFeeds serves the watering log in ThingSpeak's feeds.json shape so
// the dashboard history works against the simulator.
func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	n := history.DefaultResults
	if v := r.URL.Query().Get("results"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid results", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, history.FeedsResponse{Feeds: s.state.Feeds(n)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

// statusWriter records the response status for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, sw.status)
	})
}
