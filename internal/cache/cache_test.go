package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"familycal/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var sample = []model.UnifiedEvent{
	{ID: "e1", Source: model.SourceGoogle, Owner: model.OwnerDad, Title: "Run", Start: "2024-01-08T07:00:00Z", End: "2024-01-08T08:00:00Z"},
	{ID: "school-c1-2024-01-08-08:00", Source: model.SourceSchool, Owner: "kid:c1", Title: "School - Ada", Start: "2024-01-08T08:00", End: "2024-01-08T15:00"},
}

func TestCache_TTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		advance time.Duration
		wantHit bool
	}{
		{name: "fresh", advance: 0, wantHit: true},
		{name: "just before ttl", advance: DefaultTTL - time.Millisecond, wantHit: true},
		{name: "at ttl", advance: DefaultTTL, wantHit: false},
		{name: "after ttl", advance: time.Hour, wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := &fakeClock{now: time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)}
			c := New(0, WithClock(clock))
			key := Key{Start: "2024-01-07T00:00:00.000Z", End: "2024-01-13T23:59:59.999Z"}

			c.Put(key, sample)
			clock.Advance(tt.advance)

			got, ok := c.Get(key)
			if ok != tt.wantHit {
				t.Fatalf("hit = %v, want %v", ok, tt.wantHit)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(sample, got); diff != "" {
				t.Errorf("cached data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCache_KeysAreLiteral(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	c.Put(Key{Start: "2024-01-07T00:00:00Z", End: "2024-01-14T00:00:00Z"}, sample)

	if _, ok := c.Get(Key{Start: "2024-01-07T00:00:00.000Z", End: "2024-01-14T00:00:00.000Z"}); ok {
		t.Error("equivalent but differently spelled window should miss")
	}
}

func TestCache_InvalidateAll(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	keys := []Key{{"a", "b"}, {"c", "d"}}
	for _, k := range keys {
		c.Put(k, sample)
	}

	c.InvalidateAll()

	for _, k := range keys {
		if _, ok := c.Get(k); ok {
			t.Errorf("key %v survived InvalidateAll", k)
		}
	}

	c.Put(keys[0], sample)
	if _, ok := c.Get(keys[0]); !ok {
		t.Error("put after InvalidateAll not visible")
	}
}

func TestCache_PutIfCurrent(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	key := Key{"a", "b"}

	gen := c.Generation()
	c.InvalidateAll()
	if c.PutIfCurrent(gen, key, sample) {
		t.Error("stale generation was stored")
	}
	if _, ok := c.Get(key); ok {
		t.Error("stale result visible after invalidation")
	}

	if !c.PutIfCurrent(c.Generation(), key, sample) {
		t.Error("current generation was rejected")
	}
	if _, ok := c.Get(key); !ok {
		t.Error("current result not visible")
	}
}

func TestCache_CallerMutationDoesNotLeak(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	key := Key{"a", "b"}
	data := append([]model.UnifiedEvent(nil), sample...)
	c.Put(key, data)
	data[0].Title = "mutated"

	got, _ := c.Get(key)
	got[1].Title = "mutated too"

	again, _ := c.Get(key)
	if diff := cmp.Diff(sample, again); diff != "" {
		t.Errorf("cache content changed (-want +got):\n%s", diff)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key{Start: "s", End: "e"}
			c.Put(key, sample)
			c.Get(key)
			if i%4 == 0 {
				c.InvalidateAll()
			}
		}(i)
	}
	wg.Wait()
}
