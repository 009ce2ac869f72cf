package gcal

import (
	"google.golang.org/api/calendar/v3"

	"familycal/internal/model"
)

const untitled = "(No title)"

// Normalize maps an upstream calendar item onto the unified shape.
//
// Precise timestamps win over bare dates; an item is all-day when its start
// carries only a date. Items without an upstream id get an id built from
// owner, start date and title, which can collide for same-day same-title
// all-day items.
func Normalize(ev *calendar.Event, owner model.Owner) model.UnifiedEvent {
	start, startDate := pick(ev.Start)
	end, _ := pick(ev.End)

	title := ev.Summary
	if title == "" {
		title = untitled
	}

	id := ev.Id
	if id == "" {
		id = string(owner) + "-" + startDate + "-" + ev.Summary
	}

	return model.UnifiedEvent{
		ID:     id,
		Source: model.SourceGoogle,
		Owner:  owner,
		Title:  title,
		Start:  start,
		End:    end,
		AllDay: dateOnly(ev.Start),
	}
}

func dateOnly(dt *calendar.EventDateTime) bool {
	return dt != nil && dt.DateTime == "" && dt.Date != ""
}

// pick returns the preferred timestamp of dt and its bare date, if any.
func pick(dt *calendar.EventDateTime) (value, date string) {
	if dt == nil {
		return "", ""
	}
	if dt.DateTime != "" {
		return dt.DateTime, dt.Date
	}
	return dt.Date, dt.Date
}
