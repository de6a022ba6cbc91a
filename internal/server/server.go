// Package server exposes the HTTP surface over the remote tabular store:
// log ingestion, timestamp-addressed deletion, and the last-position
// lookup. Each request is handled by an independent stateless invocation;
// the only shared mutable resource is the store itself.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rldls/doorlog/internal/aggregate"
	"github.com/rldls/doorlog/internal/config"
)

// Server wires the router, the updater and the activity feed.
type Server struct {
	updater *aggregate.Updater
	hub     *Hub
	router  chi.Router
}

// New builds the server around an aggregation updater.
func New(cfg config.Server, updater *aggregate.Updater) *Server {
	s := &Server{
		updater: updater,
		hub:     NewHub(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/log", s.handleLog)
	r.Post("/delete-log", s.handleDeleteLog)
	r.Get("/last-log", s.handleLastLog)
	r.Get("/ws", s.hub.ServeHTTP)

	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler {
	return s.router
}
