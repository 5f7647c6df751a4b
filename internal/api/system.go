package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/fleet-core/internal/device"
	"github.com/nerrad567/fleet-core/internal/router"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status        string     `json:"status"`
	Version       string     `json:"version"`
	UptimeSeconds float64    `json:"uptime"`
	MQTT          mqttHealth `json:"mqtt"`
	Devices       int        `json:"devices"`
}

type mqttHealth struct {
	Connected bool `json:"connected"`
}

// handleHealth reports liveness with broker connectivity and device count.
// A disconnected broker degrades the status but still answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connected := s.broker != nil && s.broker.IsConnected()
	status := "healthy"
	if !connected {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        status,
		Version:       s.version,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		MQTT:          mqttHealth{Connected: connected},
		Devices:       s.registry.Stats().Total,
	})
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          mqttHealth     `json:"mqtt"`
	Messages      router.Metrics `json:"messages"`
	Devices       device.Stats   `json:"devices"`
	Automation    RuleMetrics    `json:"automation"`
	Events        EventMetrics   `json:"events"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// RuleMetrics counts rules and reports whether the evaluator is running.
type RuleMetrics struct {
	Running        bool `json:"running"`
	ConditionRules int  `json:"condition_rules"`
	GestureRules   int  `json:"gesture_rules"`
}

// EventMetrics describes the in-memory activity log.
type EventMetrics struct {
	Held     int `json:"held"`
	Capacity int `json:"capacity"`
}

// handleMetrics returns system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
		MQTT:      mqttHealth{Connected: s.broker != nil && s.broker.IsConnected()},
		Devices:   s.registry.Stats(),
		Automation: RuleMetrics{
			Running:        s.engine.Running(),
			ConditionRules: len(s.engine.ListConditionRules()),
			GestureRules:   len(s.engine.ListGestureRules()),
		},
		Events: EventMetrics{Held: s.events.Len(), Capacity: s.events.Capacity()},
	}
	if s.messages != nil {
		metrics.Messages = s.messages.Metrics()
	}

	writeJSON(w, http.StatusOK, metrics)
}
