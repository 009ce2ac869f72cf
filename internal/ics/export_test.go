package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"familycal/internal/model"
)

func TestExport(t *testing.T) {
	t.Parallel()

	events := []model.UnifiedEvent{
		{ID: "d1", Source: model.SourceGoogle, Owner: model.OwnerDad, Title: "Standup", Start: "2024-01-09T09:00:00-05:00", End: "2024-01-09T09:15:00-05:00"},
		{ID: "m1", Source: model.SourceGoogle, Owner: model.OwnerMom, Title: "Book club", Start: "2024-01-08", End: "2024-01-09", AllDay: true},
		{ID: "school-c1-2024-01-08-08:00", Source: model.SourceSchool, Owner: "kid:c1", Title: "School - Ada", Start: "2024-01-08T08:00", End: "2024-01-08T15:00"},
		{ID: "broken", Source: model.SourceGoogle, Owner: model.OwnerDad, Title: "Bad", Start: "soon", End: "later"},
	}

	out := Export(events, ExportConfig{
		Name:  "Household",
		Stamp: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
	})

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("exported calendar does not parse: %v\n%s", err, out)
	}

	got := map[string]*ical.VEvent{}
	for _, ve := range cal.Events() {
		got[ve.Id()] = ve
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3 (unparsable one skipped)", len(got))
	}
	if _, ok := got["broken"]; ok {
		t.Error("unparsable event was exported")
	}

	standup := got["d1"]
	if standup == nil {
		t.Fatal("d1 missing")
	}
	start, err := standup.GetStartAt()
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 1, 9, 14, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("d1 start = %v, want %v", start, want)
	}

	school := got["school-c1-2024-01-08-08:00"]
	if school == nil {
		t.Fatal("school event missing")
	}
	if p := school.GetProperty(propertyOwner); p == nil || p.Value != "kid:c1" {
		t.Errorf("owner property = %v", p)
	}

	if !strings.Contains(out, "DTSTART;VALUE=DATE:20240108") {
		t.Errorf("all-day event not rendered as DATE:\n%s", out)
	}
}
