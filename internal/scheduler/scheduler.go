// Package scheduler keeps the feeds for today and the current week warm in
// the events cache.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"familycal/internal/events"
	appLog "familycal/internal/log"
	"familycal/internal/model"
)

const defaultWarmTimeout = 30 * time.Second

// EventSource is the feed being warmed.
type EventSource interface {
	GetEvents(ctx context.Context, start, end string) ([]model.UnifiedEvent, error)
}

type Scheduler struct {
	cron    *cron.Cron
	src     EventSource
	loc     *time.Location
	days    int
	now     func() time.Time
	timeout time.Duration

	mu      sync.Mutex
	baseCtx context.Context
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time used to compute windows.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTimeout bounds a single warm run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// New creates a Scheduler that warms on every tick of schedule, a standard
// five-field cron expression evaluated in loc. The week window spans days
// days starting on Sunday.
func New(schedule string, src EventSource, loc *time.Location, days int, opts ...Option) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if days <= 0 {
		days = 7
	}

	logger := appLog.CronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		src:     src,
		loc:     loc,
		days:    days,
		now:     time.Now,
		timeout: defaultWarmTimeout,
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run warms once, then on schedule until ctx is canceled. It returns after
// any in-flight run has finished.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.tick()
	s.cron.Start()
	appLog.Info("scheduler started", "entries", len(s.cron.Entries()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if err := s.WarmOnce(ctx); err != nil {
		if warmFailureLevel(err) == appLog.LevelWarn {
			// A missing or revoked token stays that way until someone re-consents.
			appLog.Warn("cache warm skipped: calendar not authorized", "reason", err.Error())
			return
		}
		appLog.Error("cache warm failed", err)
	}
}

// warmFailureLevel is WARN when every failure is an authorization failure
// and ERROR otherwise.
func warmFailureLevel(err error) appLog.Level {
	if authOnly(err) {
		return appLog.LevelWarn
	}
	return appLog.LevelError
}

func authOnly(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		for _, e := range errs {
			if !authOnly(e) {
				return false
			}
		}
		return len(errs) > 0
	}
	return errors.Is(err, model.ErrAuth)
}

// WarmOnce fetches today's and this week's windows, filling the cache.
func (s *Scheduler) WarmOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	dayStart, dayEnd := events.DayWindow(now, s.loc)
	weekStart, weekEnd := events.WeekWindow(now, s.loc, s.days)

	var errs []error
	for _, w := range [][2]string{{dayStart, dayEnd}, {weekStart, weekEnd}} {
		evs, err := s.src.GetEvents(ctx, w[0], w[1])
		if err != nil {
			errs = append(errs, fmt.Errorf("warm %s..%s: %w", w[0], w[1], err))
			continue
		}
		appLog.Debug("window warmed", "start", w[0], "end", w[1], "count", len(evs))
	}
	return errors.Join(errs...)
}
