package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/fleet-core/internal/actuation"
	"github.com/nerrad567/fleet-core/internal/automation"
	"github.com/nerrad567/fleet-core/internal/device"
	"github.com/nerrad567/fleet-core/internal/events"
	"github.com/nerrad567/fleet-core/internal/infrastructure/config"
	"github.com/nerrad567/fleet-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/fleet-core/internal/infrastructure/logging"
	"github.com/nerrad567/fleet-core/internal/journal"
	"github.com/nerrad567/fleet-core/internal/router"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BrokerStatus reports broker connectivity for the health endpoint.
type BrokerStatus interface {
	IsConnected() bool
}

// HistoryReader serves stored telemetry for a device.
type HistoryReader interface {
	TelemetryHistory(ctx context.Context, key string, window time.Duration, limit int) ([]influxdb.Sample, error)
}

// MessageStats exposes inbound message counters.
type MessageStats interface {
	Metrics() router.Metrics
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Engine   *automation.Engine
	Sink     *actuation.Sink
	Events   *events.Log
	Bus      *events.Bus // optional: enables the WebSocket relay

	// Optional collaborators. Endpoints that need a missing one answer 503.
	Journal journal.Repository
	History HistoryReader
	Broker  BrokerStatus
	Router  MessageStats

	Version string
}

// Server is the HTTP API server for the fleet core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	registry *device.Registry
	engine   *automation.Engine
	sink     *actuation.Sink
	events   *events.Log
	bus      *events.Bus
	journal  journal.Repository
	history  HistoryReader
	broker   BrokerStatus
	messages MessageStats
	version  string

	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
	wg        sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("automation engine is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("event log is required")
	}
	// Sink is optional: without it reads and rule management still work.

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registry:  deps.Registry,
		engine:    deps.Engine,
		sink:      deps.Sink,
		events:    deps.Events,
		bus:       deps.Bus,
		journal:   deps.Journal,
		history:   deps.History,
		broker:    deps.Broker,
		messages:  deps.Router,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays bus traffic to WebSocket clients, and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	s.startRelay(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// ─── Bus relay ──────────────────────────────────────────────────────

var relayTopics = []string{events.TopicEvent, events.TopicRules, events.TopicDevices}

// startRelay forwards bus messages to subscribed WebSocket clients until ctx
// is cancelled.
func (s *Server) startRelay(ctx context.Context) {
	if s.bus == nil {
		return
	}
	ch := s.bus.Subscribe(relayTopics...)
	if ch == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.bus.Unsubscribe(ch, relayTopics...)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				s.relay(msg)
			}
		}
	}()
}

func (s *Server) relay(msg any) {
	switch m := msg.(type) {
	case events.Event:
		s.hub.Broadcast(ChannelEvent, m)
	case events.RulesChanged:
		s.hub.Broadcast(ChannelRules, m)
	case events.DeviceChanged:
		if m.Op == "discovered" {
			s.hub.Broadcast(ChannelDeviceDiscovered, m)
			return
		}
		s.hub.Broadcast(ChannelDevicePresence, m)
	}
}
