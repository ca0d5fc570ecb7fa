package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole/internal/admin"
	"github.com/JakeFAU/searchconsole/internal/crawl"
	"github.com/JakeFAU/searchconsole/internal/discovery"
	"github.com/JakeFAU/searchconsole/internal/health"
	"github.com/JakeFAU/searchconsole/internal/metrics"
	"github.com/JakeFAU/searchconsole/internal/search"
	"github.com/JakeFAU/searchconsole/internal/session"
)

const defaultRequestTimeout = 60 * time.Second

// Deps are the services the console server exposes.
type Deps struct {
	Search    *search.Service
	Crawl     *crawl.Client
	Admin     *admin.Client
	Session   *session.Manager
	Health    *health.Aggregator
	Discovery *discovery.Service
	Logger    *zap.Logger
	// RequestTimeout bounds each request; zero uses one minute.
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the console services.
type Server struct {
	router    chi.Router
	search    *search.Service
	crawl     *crawl.Client
	admin     *admin.Client
	session   *session.Manager
	health    *health.Aggregator
	discovery *discovery.Service
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(d Deps) (*Server, error) {
	if d.Search == nil || d.Crawl == nil || d.Admin == nil || d.Session == nil || d.Health == nil || d.Discovery == nil {
		return nil, errors.New("console server requires every service")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = defaultRequestTimeout
	}
	metrics.Init()

	s := &Server{
		search:    d.Search,
		crawl:     d.Crawl,
		admin:     d.Admin,
		session:   d.Session,
		health:    d.Health,
		discovery: d.Discovery,
		logger:    d.Logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(recoverMiddleware(d.Logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(d.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Get("/", s.searchPage)
			r.Get("/filters", s.searchFilters)
			r.Get("/corrections", s.searchCorrections)
		})
		r.Get("/suggestions", s.suggestions)
		r.Post("/feedback", s.feedback)

		r.Route("/crawl", func(r chi.Router) {
			r.Post("/", s.submitCrawl)
			r.Get("/status", s.crawlStatus)
			r.Get("/metrics", s.crawlMetrics)
		})

		r.Route("/health", func(r chi.Router) {
			r.Get("/", s.systemHealth)
			r.Get("/{service_id}", s.serviceHealth)
		})

		r.Route("/discovery", func(r chi.Router) {
			r.Get("/", s.discoveryStatus)
			r.Get("/routes", s.discoveryRoutes)
			r.Get("/communication", s.discoveryCommunication)
			r.Get("/loadbalancing/{app}", s.discoveryLoadBalancing)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.sessionSnapshot)
			r.Post("/login", s.login)
			r.Post("/logout", s.logout)
			r.Post("/refresh", s.refresh)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/readiness", s.adminReadiness)
			r.Post("/actions/{action}", s.adminAction)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready once the gateway answers its own health probe.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if !s.health.Available(r.Context(), "gateway") {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "gateway unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}
