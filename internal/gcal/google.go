package gcal

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"familycal/internal/model"
)

// GoogleClients builds Google Calendar clients from stored refresh tokens.
type GoogleClients struct {
	oauth   *oauth2.Config
	timeout time.Duration
}

var _ ClientFactory = (*GoogleClients)(nil)

// NewGoogleClients creates a factory for the given OAuth client. timeout
// bounds every upstream HTTP request, token refreshes included.
func NewGoogleClients(clientID, clientSecret, redirectURL string, timeout time.Duration) *GoogleClients {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleClients{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarReadonlyScope},
		},
		timeout: timeout,
	}
}

func (g *GoogleClients) Client(ctx context.Context, cred model.Credential) (Lister, error) {
	// The token source refreshes through the client stored in its context.
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: g.timeout})
	ts := g.oauth.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	hc := oauth2.NewClient(tokenCtx, ts)
	hc.Timeout = g.timeout

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, err
	}
	return &googleLister{svc: svc}, nil
}

type googleLister struct {
	svc *calendar.Service
}

func (l *googleLister) ListEvents(ctx context.Context, calendarID, timeMin, timeMax, timezone string) ([]*calendar.Event, error) {
	var items []*calendar.Event
	err := l.svc.Events.List(calendarID).
		TimeMin(timeMin).
		TimeMax(timeMax).
		SingleEvents(true).
		OrderBy("startTime").
		TimeZone(timezone).
		Pages(ctx, func(page *calendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (l *googleLister) ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error) {
	var items []*calendar.CalendarListEntry
	err := l.svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
