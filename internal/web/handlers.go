package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"familycal/internal/ics"
	appLog "familycal/internal/log"
	"familycal/internal/model"
	"familycal/internal/settings"
)

type errorResponse struct {
	Error string `json:"error"`
}

type eventsResponse struct {
	Events []model.UnifiedEvent `json:"events"`
}

type calendarsResponse struct {
	Calendars []model.CalendarOption `json:"calendars"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleEvents(c *gin.Context) {
	events, err := s.deps.Events.GetEvents(c.Request.Context(), c.Query("start"), c.Query("end"))
	if err != nil {
		writeError(c, "events", err)
		return
	}
	if events == nil {
		events = []model.UnifiedEvent{}
	}
	c.JSON(http.StatusOK, eventsResponse{Events: events})
}

func (s *Server) handleEventsICS(c *gin.Context) {
	events, err := s.deps.Events.GetEvents(c.Request.Context(), c.Query("start"), c.Query("end"))
	if err != nil {
		writeError(c, "events.ics", err)
		return
	}
	body := ics.Export(events, ics.ExportConfig{
		Name:     s.deps.CalendarName,
		Location: s.deps.Location,
	})
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// handleCalendars lists both owners' calendars, dad's first. An owner who
// has not connected an account contributes nothing.
func (s *Server) handleCalendars(c *gin.Context) {
	ctx := c.Request.Context()
	results := make([][]model.CalendarOption, len(model.CalendarOwners))

	g, gctx := errgroup.WithContext(ctx)
	for i, owner := range model.CalendarOwners {
		g.Go(func() error {
			cals, err := s.deps.Calendars.ListCalendars(gctx, owner)
			if errors.Is(err, model.ErrAuth) {
				appLog.Warn("calendar list skipped", "owner", string(owner), "reason", err.Error())
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = cals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeError(c, "calendars", err)
		return
	}

	out := []model.CalendarOption{}
	for _, cals := range results {
		out = append(out, cals...)
	}
	c.JSON(http.StatusOK, calendarsResponse{Calendars: out})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	snap, err := s.deps.Settings.Load(c.Request.Context())
	if err != nil {
		writeError(c, "config", err)
		return
	}
	if snap.Kids == nil {
		snap.Kids = []model.Child{}
	}
	if snap.SchoolSchedules == nil {
		snap.SchoolSchedules = []model.SchoolTemplate{}
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handlePostConfig(c *gin.Context) {
	var u settings.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		writeError(c, "config", &model.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if err := s.deps.Settings.Save(c.Request.Context(), u); err != nil {
		writeError(c, "config", err)
		return
	}
	c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

// writeError maps err onto a status code. Upstream and internal failures
// get a fixed message; details only go to the log.
func writeError(c *gin.Context, op string, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "op", op, "status", status)
	} else {
		appLog.Warn("request failed", "op", op, "status", status, "reason", err.Error())
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrAuth):
		return http.StatusUnauthorized, "calendar account not authorized"
	case errors.Is(err, model.ErrUpstream):
		return http.StatusBadGateway, "calendar provider request failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
