package model

import (
	"strings"
	"time"
)

// Source identifies where a UnifiedEvent came from.
type Source string

const (
	// SourceGoogle marks events read from an owner's Google calendar.
	SourceGoogle Source = "google"
	// SourceSchool marks events synthesized from school templates.
	SourceSchool Source = "school"
)

// Owner is either one of the two household members whose calendars are
// aggregated, or a dependent tagged as "kid:<childId>".
type Owner string

const (
	OwnerDad Owner = "dad"
	OwnerMom Owner = "mom"
)

const kidOwnerPrefix = "kid:"

// CalendarOwners lists the calendar owners in aggregation order.
var CalendarOwners = []Owner{OwnerDad, OwnerMom}

// KidOwner returns the dependent owner tag for a child.
func KidOwner(childID string) Owner {
	return Owner(kidOwnerPrefix + childID)
}

// ChildID returns the child id of a dependent owner tag.
func (o Owner) ChildID() (string, bool) {
	if !strings.HasPrefix(string(o), kidOwnerPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(o), kidOwnerPrefix), true
}

// IsCalendarOwner reports whether o is one of the household members that can
// bind a calendar.
func (o Owner) IsCalendarOwner() bool {
	return o == OwnerDad || o == OwnerMom
}

// ParseCalendarOwner validates a calendar owner name.
func ParseCalendarOwner(s string) (Owner, bool) {
	o := Owner(s)
	return o, o.IsCalendarOwner()
}

// UnifiedEvent is the single shape every source is normalized into before it
// reaches the dashboard.
//
// Start and End are ISO-8601 strings; when AllDay is set they are bare dates.
type UnifiedEvent struct {
	ID     string `json:"id"`
	Source Source `json:"source"`
	Owner  Owner  `json:"owner"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end"`
	AllDay bool   `json:"allDay"`
}

// SchoolTemplate is a weekly recurring school slot for one child.
type SchoolTemplate struct {
	ID      string `json:"id"`
	ChildID string `json:"childId"`
	// DayOfWeek follows time.Weekday: 0=Sunday .. 6=Saturday.
	DayOfWeek int `json:"dayOfWeek"`
	// StartTime / EndTime are wall-clock "HH:MM" strings, used verbatim.
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Title     string `json:"title"`
}

// Child is a dependent shown on the dashboard.
type Child struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// FamilyConfig binds each owner to a calendar and sets the timezone passed to
// the upstream calendar API.
type FamilyConfig struct {
	DadCalendarID string `json:"dadCalendarId,omitempty"`
	MomCalendarID string `json:"momCalendarId,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
}

// CalendarID returns the calendar bound to owner, or "" if none.
func (c FamilyConfig) CalendarID(owner Owner) string {
	switch owner {
	case OwnerDad:
		return c.DadCalendarID
	case OwnerMom:
		return c.MomCalendarID
	default:
		return ""
	}
}

// FamilyConfigPatch is a partial FamilyConfig; nil fields are left untouched
// when merged.
type FamilyConfigPatch struct {
	DadCalendarID *string `json:"dadCalendarId,omitempty"`
	MomCalendarID *string `json:"momCalendarId,omitempty"`
	Timezone      *string `json:"timezone,omitempty"`
}

// Apply merges p into c.
func (p FamilyConfigPatch) Apply(c FamilyConfig) FamilyConfig {
	if p.DadCalendarID != nil {
		c.DadCalendarID = *p.DadCalendarID
	}
	if p.MomCalendarID != nil {
		c.MomCalendarID = *p.MomCalendarID
	}
	if p.Timezone != nil {
		c.Timezone = *p.Timezone
	}
	return c
}

// Credential is the stored OAuth material for one calendar owner.
type Credential struct {
	Owner        Owner     `json:"owner"`
	RefreshToken string    `json:"refreshToken"`
	OwnerEmail   string    `json:"ownerEmail,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CalendarOption is one entry of an owner's calendar list, offered when
// binding a calendar.
type CalendarOption struct {
	ID      string `json:"id"`
	Summary string `json:"summary,omitempty"`
	Primary bool   `json:"primary,omitempty"`
	Owner   Owner  `json:"owner"`
}
