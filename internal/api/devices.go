package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fleet-core/internal/device"
)

const (
	defaultHistoryWindow = time.Hour
	maxHistoryWindow     = 7 * 24 * time.Hour
	defaultHistoryLimit  = 500
	maxHistoryLimit      = 5000
)

// handleListDevices returns all devices, optionally filtered by class.
//
// Query parameters:
//   - type: sensor or actuator
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []*device.Device

	if typ := r.URL.Query().Get("type"); typ != "" {
		class, ok := device.ParseClass(typ)
		if !ok {
			writeBadRequest(w, "type must be sensor or actuator")
			return
		}
		devices = s.registry.ListByClass(class)
	} else {
		devices = s.registry.List()
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleDeviceStats returns registry counts.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Stats())
}

// handleGetDevice returns a single device. Raw and normalised identifiers
// are both accepted.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleDeviceHistory returns stored telemetry samples for a device.
//
// Query parameters:
//   - window: Go duration looking back from now (default 1h, max 168h)
//   - limit: max samples (default 500, max 5000)
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	window, limit, err := parseHistoryParams(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if s.history == nil {
		writeUnavailable(w, "telemetry history unavailable")
		return
	}

	samples, err := s.history.TelemetryHistory(r.Context(), dev.Key, window, limit)
	if err != nil {
		s.logger.Warn("telemetry history query failed", "device", dev.Key, "error", err)
		writeUnavailable(w, "telemetry history unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      dev.Key,
		"samples": samples,
		"count":   len(samples),
	})
}

func parseHistoryParams(r *http.Request) (time.Duration, int, error) {
	window := defaultHistoryWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return 0, 0, fmt.Errorf("invalid window %q", v)
		}
		window = min(d, maxHistoryWindow)
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
		limit = min(n, maxHistoryLimit)
	}

	return window, limit, nil
}

// ─── Commands ───────────────────────────────────────────────────────

type setChannelRequest struct {
	State *bool `json:"state"`
}

// handleSetChannel switches one output channel on a device.
func (s *Server) handleSetChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	channel, err := strconv.Atoi(chi.URLParam(r, "channel"))
	if err != nil {
		writeBadRequest(w, "channel must be an integer")
		return
	}

	var req setChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.State == nil {
		writeBadRequest(w, "state is required")
		return
	}

	if !s.switchChannel(w, r, id, channel, *req.State) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    device.Normalize(id),
		"gpio":  channel,
		"state": *req.State,
	})
}

// gpioControlRequest is the body the web dashboard posts. Numbers and
// strings are accepted for state as well as booleans.
type gpioControlRequest struct {
	DeviceID string              `json:"deviceId"`
	GPIO     *int                `json:"gpio"`
	State    *device.SwitchState `json:"state"`
}

// handleGPIOControl switches a channel using the dashboard form.
func (s *Server) handleGPIOControl(w http.ResponseWriter, r *http.Request) {
	var req gpioControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" || req.GPIO == nil || req.State == nil {
		writeBadRequest(w, "Missing required fields")
		return
	}

	on := bool(*req.State)
	if !s.switchChannel(w, r, req.DeviceID, *req.GPIO, on) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("GPIO %d set to %s on %s", *req.GPIO, onOff(on), req.DeviceID),
	})
}

// switchChannel applies the command and writes the error response on
// failure. It reports whether the command was delivered.
func (s *Server) switchChannel(w http.ResponseWriter, r *http.Request, id string, channel int, on bool) bool {
	if s.sink == nil {
		writeUnavailable(w, "device commands unavailable")
		return false
	}
	if err := s.sink.Apply(r.Context(), id, channel, on); err != nil {
		writeDomainError(w, err)
		return false
	}
	return true
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
