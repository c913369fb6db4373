// Package server provides the HTTP surface: feed reads, direct HTML
// processing, the inbound-email webhook and maintenance routes.
package server

import (
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mailfeed/pkg/domain"
	"mailfeed/pkg/feed"
	"mailfeed/pkg/feedimport"
	"mailfeed/pkg/identity"
	"mailfeed/pkg/process"
	"mailfeed/pkg/render"
)

// maxBodyBytes caps inbound email and HTML bodies.
const maxBodyBytes = 10 << 20

// Config holds the server's collaborators and options.
type Config struct {
	Aggregator *feed.Aggregator
	Processor  *process.Service
	Importer   *feedimport.Importer

	// AuthUsername/AuthPassword guard mutating routes when both set.
	AuthUsername string
	AuthPassword string
}

// Server is the HTTP server.
type Server struct {
	aggregator *feed.Aggregator
	processor  *process.Service
	importer   *feedimport.Importer
	router     chi.Router
}

// New creates a server with its routes configured.
func New(cfg Config) *Server {
	s := &Server{
		aggregator: cfg.Aggregator,
		processor:  cfg.Processor,
		importer:   cfg.Importer,
	}
	s.setupRoutes(cfg)
	return s
}

func (s *Server) setupRoutes(cfg Config) {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mailfeed"))
	})
	r.Get("/rss", s.handleRSS)
	r.Get("/items", s.handleItems)

	// Mutating routes, optionally behind basic auth.
	r.Group(func(r chi.Router) {
		if cfg.AuthUsername != "" && cfg.AuthPassword != "" {
			creds := map[string]string{cfg.AuthUsername: cfg.AuthPassword}
			r.Use(middleware.BasicAuth("mailfeed", creds))
		}
		r.Post("/email", s.handleInboundEmail)
		r.Post("/process-html", s.handleProcessHTML)
		r.Post("/api/rebuild", s.handleRebuild)
		r.Post("/api/import", s.handleImport)
	})

	s.router = r
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves HTTP on addr and blocks.
func (s *Server) Start(addr string) error {
	log.Printf("[server] listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// requireEmail extracts the email query parameter, answering 400 itself
// when it is missing.
func requireEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, "missing email parameter", http.StatusBadRequest)
		return "", false
	}
	return email, true
}

// loadArticles reads the subscriber's feed, rebuilding instead when the
// request asks for fresh=1.
func (s *Server) loadArticles(w http.ResponseWriter, r *http.Request, subscriberHash string) ([]domain.Article, bool) {
	var err error
	var articles []domain.Article
	if r.URL.Query().Get("fresh") == "1" {
		articles, err = s.aggregator.Rebuild(r.Context(), subscriberHash)
	} else {
		articles, err = s.aggregator.Read(r.Context(), subscriberHash)
	}
	if err != nil {
		log.Printf("[server] feed load failed for %s: %v", subscriberHash, err)
		http.Error(w, "failed to load feed", http.StatusInternalServerError)
		return nil, false
	}
	return articles, true
}

func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	subscriberHash := identity.HashEmail(email)

	articles, ok := s.loadArticles(w, r, subscriberHash)
	if !ok {
		return
	}
	s.writeRSS(w, subscriberHash, articles)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	subscriberHash := identity.HashEmail(email)

	articles, ok := s.loadArticles(w, r, subscriberHash)
	if !ok {
		return
	}
	s.writeJSON(w, articles)
}

func (s *Server) handleInboundEmail(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := s.processor.ProcessEmail(r.Context(), raw); err != nil {
		log.Printf("[server] email processing failed: %v", err)
		http.Error(w, "failed to process email", http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleProcessHTML(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "unknown"
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	articles, err := s.processor.ProcessNewsletter(r.Context(), email, string(body), source)
	if err != nil {
		log.Printf("[server] html processing failed: %v", err)
		http.Error(w, "failed to process html", http.StatusInternalServerError)
		return
	}
	s.writeRSS(w, identity.HashEmail(email), articles)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	subscriberHash := identity.HashEmail(email)

	articles, err := s.aggregator.Rebuild(r.Context(), subscriberHash)
	if err != nil {
		log.Printf("[server] rebuild failed for %s: %v", subscriberHash, err)
		http.Error(w, "failed to rebuild feed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, articles)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	feedURL := r.URL.Query().Get("url")
	if feedURL == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	articles, err := s.importer.Import(r.Context(), email, feedURL)
	if err != nil {
		log.Printf("[server] import of %s failed: %v", feedURL, err)
		http.Error(w, "failed to import feed", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, articles)
}

func (s *Server) writeRSS(w http.ResponseWriter, subscriberHash string, articles []domain.Article) {
	rss, err := render.RSS(subscriberHash, articles)
	if err != nil {
		log.Printf("[server] rss render failed: %v", err)
		http.Error(w, "failed to render feed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}

func (s *Server) writeJSON(w http.ResponseWriter, articles []domain.Article) {
	out, err := render.JSON(articles)
	if err != nil {
		log.Printf("[server] json render failed: %v", err)
		http.Error(w, "failed to render feed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}
