package events

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"familycal/internal/cache"
	appLog "familycal/internal/log"
	"familycal/internal/model"
	"familycal/internal/school"
)

// OwnerFetcher returns one owner's calendar events for a window.
type OwnerFetcher interface {
	FetchEvents(ctx context.Context, owner model.Owner, start, end string) ([]model.UnifiedEvent, error)
}

// TemplateReader reads the inputs of school event synthesis.
type TemplateReader interface {
	Children(ctx context.Context) ([]model.Child, error)
	SchoolTemplates(ctx context.Context) ([]model.SchoolTemplate, error)
}

// Aggregator merges both owners' calendars and the synthesized school
// events into one feed, memoized per window.
type Aggregator struct {
	fetcher OwnerFetcher
	docs    TemplateReader
	cache   *cache.Cache
	loc     *time.Location
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLocation sets the location used to label school template dates.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

func NewAggregator(fetcher OwnerFetcher, docs TemplateReader, c *cache.Cache, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher: fetcher,
		docs:    docs,
		cache:   c,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetEvents returns the feed for [start, end): dad's events, then mom's,
// then school events, each in the order its source produced them.
//
// Any failed retrieval fails the whole call and nothing is cached.
func (a *Aggregator) GetEvents(ctx context.Context, start, end string) ([]model.UnifiedEvent, error) {
	rangeStart, rangeEnd, err := ParseWindow(start, end)
	if err != nil {
		return nil, err
	}
	if err := school.CheckWindow(rangeStart, rangeEnd, a.loc, school.MaxDays); err != nil {
		return nil, err
	}
	timeMin, timeMax := UpstreamBound(rangeStart), UpstreamBound(rangeEnd)

	key := cache.Key{Start: start, End: end}
	if cached, ok := a.cache.Get(key); ok {
		appLog.Debug("events cache hit", "start", start, "end", end, "event_count", len(cached))
		return cached, nil
	}
	gen := a.cache.Generation()

	var (
		dadEvents, momEvents []model.UnifiedEvent
		children             []model.Child
		templates            []model.SchoolTemplate
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) (err error) {
		dadEvents, err = a.fetcher.FetchEvents(ctx, model.OwnerDad, timeMin, timeMax)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		momEvents, err = a.fetcher.FetchEvents(ctx, model.OwnerMom, timeMin, timeMax)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		children, err = a.docs.Children(ctx)
		if err != nil {
			return fmt.Errorf("read children: %w", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) (err error) {
		templates, err = a.docs.SchoolTemplates(ctx)
		if err != nil {
			return fmt.Errorf("read school templates: %w", err)
		}
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	schoolEvents, err := school.Expand(templates, children, school.ExpandConfig{
		Location:   a.loc,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
	})
	if err != nil {
		return nil, err
	}

	merged := make([]model.UnifiedEvent, 0, len(dadEvents)+len(momEvents)+len(schoolEvents))
	merged = append(merged, dadEvents...)
	merged = append(merged, momEvents...)
	merged = append(merged, schoolEvents...)

	if !a.cache.PutIfCurrent(gen, key, merged) {
		appLog.Debug("events cache invalidated during fetch; result not stored", "start", start, "end", end)
	}

	appLog.Info("events aggregated",
		"start", start,
		"end", end,
		"dad_count", len(dadEvents),
		"mom_count", len(momEvents),
		"school_count", len(schoolEvents),
	)
	return merged, nil
}

// Invalidate drops every cached window. Call it after any configuration
// change.
func (a *Aggregator) Invalidate() {
	a.cache.InvalidateAll()
	appLog.Info("events cache invalidated")
}
