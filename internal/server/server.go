// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/bryan-buckman/talkshelf/internal/catalog"
	"github.com/bryan-buckman/talkshelf/internal/database"
	"github.com/bryan-buckman/talkshelf/internal/player"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

const (
	defaultPageSize = 12
	refreshTimeout  = 5 * time.Minute
)

// Options configures a Server.
type Options struct {
	Catalog   *catalog.Catalog
	Refresher *catalog.Refresher
	// Store holds every listener's favorites and progress, namespaced by listener id.
	Store database.Store

	Title        string
	PublicURL    string
	MediaBaseURL string
	PageSize     int
	Player       player.Options
}

// Server is the main HTTP server.
type Server struct {
	catalog   *catalog.Catalog
	refresher *catalog.Refresher
	sessions  *sessions
	opts      Options
	router    chi.Router
	templates *template.Template
	http      *http.Server
}

// New creates a new server.
func New(opts Options) (*Server, error) {
	if opts.Catalog == nil {
		return nil, errors.New("server needs a catalog")
	}
	if opts.Store == nil {
		opts.Store = database.NewMemory()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	opts.Player.MediaBaseURL = opts.MediaBaseURL

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		catalog:   opts.Catalog,
		refresher: opts.Refresher,
		sessions:  newSessions(opts.Store, opts.Player),
		opts:      opts,
		templates: tmpl,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Serve static files.
	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.listener)

		// Pages.
		r.Get("/", s.handleHome)
		r.Get("/favorites.xml", s.handleFavoritesFeed)

		// API.
		r.Route("/api", func(r chi.Router) {
			r.Get("/episodes", s.handleEpisodes)
			r.Get("/favorites", s.handleFavorites)
			r.Post("/favorites/{episodeID}/toggle", s.handleToggleFavorite)
			r.Get("/progress/{episodeID}", s.handleProgress)
			r.Post("/refresh", s.handleRefresh)

			r.Route("/player", func(r chi.Router) {
				r.Get("/", s.handlePlayer)
				r.Post("/select", s.handleSelect)
				r.Post("/toggle", s.handleTogglePlay)
				r.Post("/forward", s.handleForward)
				r.Post("/backward", s.handleBackward)
				r.Post("/scrub", s.handleScrub)
				r.Post("/progress", s.handlePlayerProgress)
				r.Post("/duration", s.handleDuration)
				r.Post("/volume", s.handleVolume)
				r.Post("/rate", s.handleRate)
				r.Post("/close", s.handleClose)
			})
		})
	})

	s.router = r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the refresher and serves until Shutdown.
func (s *Server) Start(addr string) error {
	if s.refresher != nil {
		s.refresher.Start()
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("server starting on %s", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

// Shutdown stops the refresher and drains open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.refresher != nil {
		s.refresher.Stop()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.WithError(err).Error("template error")
		http.Error(w, "Render error", http.StatusInternalServerError)
	}
}
