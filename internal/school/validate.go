package school

import (
	"fmt"
	"time"

	"familycal/internal/model"
)

var timeOfDayLayouts = []string{"15:04", "15:04:05"}

// Validate checks that a template can be expanded into well-formed events.
func Validate(tpl model.SchoolTemplate) error {
	if tpl.ChildID == "" {
		return &model.ValidationError{Field: "childId", Reason: "is required"}
	}
	if tpl.DayOfWeek < int(time.Sunday) || tpl.DayOfWeek > int(time.Saturday) {
		return &model.ValidationError{Field: "dayOfWeek", Reason: fmt.Sprintf("%d is outside 0-6", tpl.DayOfWeek)}
	}
	start, err := parseTimeOfDay(tpl.StartTime)
	if err != nil {
		return &model.ValidationError{Field: "startTime", Reason: err.Error()}
	}
	end, err := parseTimeOfDay(tpl.EndTime)
	if err != nil {
		return &model.ValidationError{Field: "endTime", Reason: err.Error()}
	}
	if end.Before(start) {
		return &model.ValidationError{Field: "endTime", Reason: "is before startTime"}
	}
	return nil
}

func parseTimeOfDay(s string) (time.Time, error) {
	for _, layout := range timeOfDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not HH:MM", s)
}
