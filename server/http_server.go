package server

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rcfeed/server/handlers"
)

type Server struct {
	port     string
	server   *http.Server
	messages *handlers.Messages
}

// NewServer creates a new HTTP server instance
func NewServer(ctx context.Context, port string, store handlers.MessageStore, submitter handlers.Submitter) *Server {
	return &Server{
		port:     port,
		messages: handlers.NewMessages(ctx, store, submitter),
	}
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(handlers.CORS)

	r.Get("/api/health", handlers.HealthHandler)

	r.Route("/api/messages", func(r chi.Router) {
		r.Get("/", s.messages.List)
		r.Post("/", s.messages.Submit)
		r.Get("/{id}", s.messages.Get)
	})

	r.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    ":" + s.port,
		Handler: r,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	if s.server == nil {
		s.setupRoutes()
	}
	return s.server.Handler
}

func (s *Server) Start() error {
	if s.server == nil {
		s.setupRoutes()
	}

	log.Printf("HTTP server is running on :%s", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
