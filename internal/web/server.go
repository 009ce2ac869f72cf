// Package web exposes the family feed and its configuration over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"familycal/internal/auth"
	appLog "familycal/internal/log"
	"familycal/internal/model"
	"familycal/internal/settings"
)

const shutdownTimeout = 10 * time.Second

// EventSource produces the merged feed for a window.
type EventSource interface {
	GetEvents(ctx context.Context, start, end string) ([]model.UnifiedEvent, error)
}

// CalendarLister enumerates the calendars an owner can pick from.
type CalendarLister interface {
	ListCalendars(ctx context.Context, owner model.Owner) ([]model.CalendarOption, error)
}

// SettingsService reads and writes household configuration.
type SettingsService interface {
	Load(ctx context.Context) (settings.Snapshot, error)
	Save(ctx context.Context, u settings.Update) error
}

// Deps are the collaborators the HTTP handlers call into.
type Deps struct {
	Events    EventSource
	Calendars CalendarLister
	Settings  SettingsService
	Verifier  auth.Verifier

	// Location interprets offset-less times in the iCalendar export.
	Location *time.Location

	// CalendarName is written into the iCalendar export.
	CalendarName string
}

// Server provides the JSON API and the iCalendar export.
type Server struct {
	listen string
	deps   Deps
	engine *gin.Engine
}

func NewServer(listen string, deps Deps) *Server {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.CalendarName == "" {
		deps.CalendarName = "Family"
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery(), requestLogger(), cors())
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	})
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "Not found"})
	})

	s := &Server{listen: listen, deps: deps, engine: engine}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.Use(requireAuth(s.deps.Verifier))
	{
		api.GET("/events", s.handleEvents)
		api.GET("/events.ics", s.handleEventsICS)
		api.GET("/calendars", s.handleCalendars)
		api.GET("/config", s.handleGetConfig)
		api.POST("/config", s.handlePostConfig)
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}
