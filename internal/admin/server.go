// Package admin implements the optional HTTP/WebSocket observability
// surface: read-mostly job/queue introspection plus a single mutating
// DLQ-retry route, all backed by the same Queue Manager the CLI and
// Worker Loop use.
package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maumercado/queuectl/internal/admin/handlers"
	adminmw "github.com/maumercado/queuectl/internal/admin/middleware"
	"github.com/maumercado/queuectl/internal/admin/websocket"
	"github.com/maumercado/queuectl/internal/events"
	"github.com/maumercado/queuectl/internal/queue"
)

// Server is the admin HTTP/WebSocket surface.
type Server struct {
	router *chi.Mux
	hub    *websocket.Hub
}

// Options configures a Server.
type Options struct {
	JWTSecret   string
	RateLimitRPS int
}

// NewServer builds a Server wrapping mgr, with its WebSocket hub fed by
// bus.
func NewServer(mgr *queue.Manager, bus *events.Bus, opts Options) *Server {
	hub := websocket.NewHub(bus)

	jobsHandler := handlers.NewJobsHandler(mgr)
	statusHandler := handlers.NewStatusHandler(mgr)
	dlqHandler := handlers.NewDLQHandler(mgr)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(adminmw.RequestLogger())
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Heartbeat("/health"))
	r.Use(adminmw.RateLimit(opts.RateLimitRPS))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", jobsHandler.List)
		r.Get("/jobs/{id}", jobsHandler.Get)
		r.Get("/status", statusHandler.Get)
		r.Get("/dlq", dlqHandler.List)

		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireBearer(opts.JWTSecret))
			r.Post("/dlq/{id}/retry", dlqHandler.Retry)
		})
	})

	r.Get("/ws", websocket.ServeWS(hub))
	r.Handle("/metrics", promhttp.Handler())

	return &Server{router: r, hub: hub}
}

// Start begins relaying events to the WebSocket hub. Call once before
// serving requests.
func (s *Server) Start(ctx context.Context) {
	s.hub.Run(ctx)
}

// Stop tears down the WebSocket hub, closing all client connections.
func (s *Server) Stop() {
	s.hub.Stop()
}

// Router returns the chi router so callers can wrap it in an
// *http.Server with their own timeouts.
func (s *Server) Router() http.Handler {
	return s.router
}
