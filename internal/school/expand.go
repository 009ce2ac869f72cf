package school

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "familycal/internal/log"
	"familycal/internal/model"
)

// MaxDays is the longest window, in visited days, that Expand accepts by
// default.
const MaxDays = 400

const dateLayout = "2006-01-02"

// ExpandConfig controls how templates are expanded.
type ExpandConfig struct {
	// Location labels each visited instant with a calendar date and weekday.
	// If nil, time.UTC is used.
	Location *time.Location

	// RangeStart / RangeEnd bound the walk. Days are visited at
	// RangeStart, RangeStart+1d, ... while <= RangeEnd.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxDays rejects windows visiting more days than this. If zero,
	// MaxDays is used.
	MaxDays int
}

// Expand turns weekly templates into dated school events over the
// configured range. Output is ordered by date, then by template order.
//
// Event times are the template's wall-clock strings appended to the date
// verbatim; no timezone conversion is applied to them. A template whose child
// is unknown still produces events, titled with a generic fallback. A range
// longer than cfg.MaxDays days is a *model.ValidationError.
func Expand(templates []model.SchoolTemplate, children []model.Child, cfg ExpandConfig) ([]model.UnifiedEvent, error) {
	events := make([]model.UnifiedEvent, 0)

	if cfg.RangeStart.After(cfg.RangeEnd) || len(templates) == 0 {
		return events, nil
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = MaxDays
	}
	if err := CheckWindow(cfg.RangeStart, cfg.RangeEnd, cfg.Location, cfg.MaxDays); err != nil {
		return nil, err
	}

	days, err := visitDays(cfg)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(children))
	for _, c := range children {
		names[c.ID] = c.Name
	}

	for _, day := range days {
		weekday := int(day.Weekday())
		date := day.Format(dateLayout)
		for _, tpl := range templates {
			if tpl.DayOfWeek != weekday {
				continue
			}
			events = append(events, model.UnifiedEvent{
				ID:     EventID(tpl.ChildID, date, tpl.StartTime),
				Source: model.SourceSchool,
				Owner:  model.KidOwner(tpl.ChildID),
				Title:  title(tpl, names),
				Start:  date + "T" + tpl.StartTime,
				End:    date + "T" + tpl.EndTime,
				AllDay: false,
			})
		}
	}

	return events, nil
}

// EventID is the deterministic id of a synthesized school event.
func EventID(childID, date, startTime string) string {
	return fmt.Sprintf("school-%s-%s-%s", childID, date, startTime)
}

// visitDays walks the range one calendar day at a time in cfg.Location, so
// DST transitions keep the wall-clock offset of RangeStart.
func visitDays(cfg ExpandConfig) ([]time.Time, error) {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: cfg.RangeStart.In(cfg.Location),
		Until:   cfg.RangeEnd.In(cfg.Location),
		Count:   cfg.MaxDays,
	})
	if err != nil {
		return nil, fmt.Errorf("expand: build day rule: %w", err)
	}

	days := r.All()
	appLog.Debug("expand: visiting days",
		"range_start", cfg.RangeStart.Format(time.RFC3339),
		"range_end", cfg.RangeEnd.Format(time.RFC3339),
		"days", len(days),
	)
	for i := range days {
		days[i] = days[i].In(cfg.Location)
	}
	return days, nil
}

// DayCount returns how many days a walk from start to end visits: start,
// start+1d, ... while <= end, stepping calendar days in loc.
func DayCount(start, end time.Time, loc *time.Location) int {
	if start.After(end) {
		return 0
	}
	if loc == nil {
		loc = time.UTC
	}
	s := start.In(loc)
	n := int(end.Sub(start) / (24 * time.Hour))
	for n > 0 && s.AddDate(0, 0, n).After(end) {
		n--
	}
	for !s.AddDate(0, 0, n+1).After(end) {
		n++
	}
	return n + 1
}

// CheckWindow rejects windows that visit more than maxDays days.
func CheckWindow(start, end time.Time, loc *time.Location, maxDays int) error {
	if n := DayCount(start, end, loc); n > maxDays {
		return &model.ValidationError{
			Field:  "end",
			Reason: fmt.Sprintf("window spans %d days; at most %d are allowed", n, maxDays),
		}
	}
	return nil
}

func title(tpl model.SchoolTemplate, names map[string]string) string {
	if tpl.Title != "" {
		return tpl.Title
	}
	name, ok := names[tpl.ChildID]
	if !ok || name == "" {
		name = "Child"
	}
	return "School - " + name
}
