package gcal

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/calendar/v3"

	appLog "familycal/internal/log"
	"familycal/internal/model"
	"familycal/internal/store"
)

const defaultTimezone = "UTC"

// Lister is the upstream calendar API surface the fetcher needs. Results of
// ListEvents have recurrences expanded and are ordered by start time.
type Lister interface {
	ListEvents(ctx context.Context, calendarID, timeMin, timeMax, timezone string) ([]*calendar.Event, error)
	ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error)
}

// ClientFactory builds an authenticated Lister from stored credentials.
type ClientFactory interface {
	Client(ctx context.Context, cred model.Credential) (Lister, error)
}

// DocumentReader is the part of the document store the fetcher reads.
type DocumentReader interface {
	FamilyConfig(ctx context.Context) (model.FamilyConfig, error)
	Credential(ctx context.Context, owner model.Owner) (model.Credential, error)
}

// Fetcher reads one owner's events from their bound calendar.
type Fetcher struct {
	docs    DocumentReader
	clients ClientFactory
}

func NewFetcher(docs DocumentReader, clients ClientFactory) *Fetcher {
	return &Fetcher{docs: docs, clients: clients}
}

// FetchEvents returns the owner's events overlapping [start, end). Both
// bounds must be RFC 3339 timestamps with an offset.
//
// An owner without a bound calendar yields an empty result. A missing
// credential fails with *model.AuthError and an upstream failure with
// *model.UpstreamError.
func (f *Fetcher) FetchEvents(ctx context.Context, owner model.Owner, start, end string) ([]model.UnifiedEvent, error) {
	cfg, err := f.docs.FamilyConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("read family config: %w", err)
	}

	calendarID := cfg.CalendarID(owner)
	if calendarID == "" {
		appLog.Debug("no calendar bound; skipping", "owner", owner)
		return []model.UnifiedEvent{}, nil
	}

	client, err := f.client(ctx, owner)
	if err != nil {
		return nil, err
	}

	tz := cfg.Timezone
	if tz == "" {
		tz = defaultTimezone
	}

	items, err := client.ListEvents(ctx, calendarID, start, end, tz)
	if err != nil {
		return nil, &model.UpstreamError{Owner: owner, Op: "events.list", Err: err}
	}

	events := make([]model.UnifiedEvent, 0, len(items))
	for _, item := range items {
		events = append(events, Normalize(item, owner))
	}

	appLog.Debug("calendar fetch completed", "owner", owner, "event_count", len(events))
	return events, nil
}

// ListCalendars returns the calendars the owner's credential can see.
func (f *Fetcher) ListCalendars(ctx context.Context, owner model.Owner) ([]model.CalendarOption, error) {
	client, err := f.client(ctx, owner)
	if err != nil {
		return nil, err
	}

	entries, err := client.ListCalendars(ctx)
	if err != nil {
		return nil, &model.UpstreamError{Owner: owner, Op: "calendarList.list", Err: err}
	}

	out := make([]model.CalendarOption, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.CalendarOption{
			ID:      e.Id,
			Summary: e.Summary,
			Primary: e.Primary,
			Owner:   owner,
		})
	}
	return out, nil
}

func (f *Fetcher) client(ctx context.Context, owner model.Owner) (Lister, error) {
	cred, err := f.docs.Credential(ctx, owner)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &model.AuthError{Owner: owner, Err: errors.New("missing OAuth token")}
	}
	if err != nil {
		return nil, fmt.Errorf("read credential for %s: %w", owner, err)
	}
	if cred.RefreshToken == "" {
		return nil, &model.AuthError{Owner: owner, Err: errors.New("empty refresh token")}
	}

	client, err := f.clients.Client(ctx, cred)
	if err != nil {
		return nil, &model.AuthError{Owner: owner, Err: err}
	}
	return client, nil
}
