package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/stats", s.handleDeviceStats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/history", s.handleDeviceHistory)
				r.Put("/channels/{channel}", s.handleSetChannel)
			})
		})

		// Form posted by the web dashboard.
		r.Post("/gpio/control", s.handleGPIOControl)

		r.Route("/rules", func(r chi.Router) {
			r.Route("/conditions", func(r chi.Router) {
				r.Get("/", s.handleListConditionRules)
				r.Post("/", s.handleCreateConditionRule)
				r.Get("/{id}", s.handleGetConditionRule)
				r.Delete("/{id}", s.handleDeleteConditionRule)
				r.Post("/{id}/toggle", s.handleToggleConditionRule)
			})
			r.Route("/gestures", func(r chi.Router) {
				r.Get("/", s.handleListGestureRules)
				r.Post("/", s.handleCreateGestureRule)
				r.Get("/{id}", s.handleGetGestureRule)
				r.Delete("/{id}", s.handleDeleteGestureRule)
				r.Post("/{id}/toggle", s.handleToggleGestureRule)
			})
		})

		r.Post("/gestures", s.handleGesture)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Delete("/", s.handleClearEvents)
			r.Get("/history", s.handleEventHistory)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}
