package ics

import (
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "familycal/internal/log"
	"familycal/internal/model"
)

const (
	productID = "-//familycal//household feed//EN"

	propertyOwner  ical.ComponentProperty = "X-FAMILYCAL-OWNER"
	propertySource ical.ComponentProperty = "X-FAMILYCAL-SOURCE"
)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ExportConfig controls how unified events are rendered as iCalendar.
type ExportConfig struct {
	// Name is written as X-WR-CALNAME.
	Name string

	// Location interprets wall-clock times without an offset, as produced
	// for school events. If nil, time.UTC is used.
	Location *time.Location

	// Stamp is written as DTSTAMP on every event. If zero, time.Now is used.
	Stamp time.Time
}

// Export renders events as a VCALENDAR document. Events whose times cannot
// be parsed are logged and left out.
func Export(events []model.UnifiedEvent, cfg ExportConfig) string {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Stamp.IsZero() {
		cfg.Stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if cfg.Name != "" {
		cal.SetXWRCalName(cfg.Name)
	}

	skipped := 0
	for _, ev := range events {
		if err := addEvent(cal, ev, cfg); err != nil {
			skipped++
			appLog.Error("ics export: skipping event", err, "id", ev.ID, "owner", ev.Owner)
		}
	}

	appLog.Debug("ics export completed", "event_count", len(events)-skipped, "skipped", skipped)
	return cal.Serialize()
}

func addEvent(cal *ical.Calendar, ev model.UnifiedEvent, cfg ExportConfig) error {
	if ev.ID == "" {
		return errors.New("missing id")
	}

	if ev.AllDay {
		start, err := time.ParseInLocation(time.DateOnly, ev.Start, cfg.Location)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		end, err := time.ParseInLocation(time.DateOnly, ev.End, cfg.Location)
		if err != nil {
			return fmt.Errorf("end: %w", err)
		}
		ve := newEvent(cal, ev, cfg)
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(end)
		return nil
	}

	start, err := parseTimestamp(ev.Start, cfg.Location)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := parseTimestamp(ev.End, cfg.Location)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	ve := newEvent(cal, ev, cfg)
	ve.SetStartAt(start)
	ve.SetEndAt(end)
	return nil
}

func newEvent(cal *ical.Calendar, ev model.UnifiedEvent, cfg ExportConfig) *ical.VEvent {
	ve := cal.AddEvent(ev.ID)
	ve.SetDtStampTime(cfg.Stamp)
	ve.SetSummary(ev.Title)
	ve.SetProperty(propertyOwner, string(ev.Owner))
	ve.SetProperty(propertySource, string(ev.Source))
	return ve
}

// parseTimestamp accepts RFC 3339 timestamps and offset-less wall-clock
// times, the latter interpreted in loc.
func parseTimestamp(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}
