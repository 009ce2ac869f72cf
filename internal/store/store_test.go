package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"familycal/internal/model"
	"familycal/internal/store"
)

func ptr[T any](v T) *T { return &v }

// testStore exercises behavior every Store implementation must share.
func testStore(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("empty store", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		cfg, err := s.FamilyConfig(ctx)
		if err != nil {
			t.Fatalf("FamilyConfig: %v", err)
		}
		if diff := cmp.Diff(model.FamilyConfig{}, cfg); diff != "" {
			t.Errorf("unexpected config (-want +got):\n%s", diff)
		}
		children, err := s.Children(ctx)
		if err != nil || len(children) != 0 {
			t.Errorf("Children = %v, %v; want empty", children, err)
		}
		templates, err := s.SchoolTemplates(ctx)
		if err != nil || len(templates) != 0 {
			t.Errorf("SchoolTemplates = %v, %v; want empty", templates, err)
		}
		if _, err := s.Credential(ctx, model.OwnerDad); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Credential err = %v, want ErrNotFound", err)
		}
	})

	t.Run("commit and read back ordered by id", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		updated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		err := s.Commit(ctx, &store.Batch{
			Config: &model.FamilyConfigPatch{DadCalendarID: ptr("dad@example.com"), Timezone: ptr("UTC")},
			Children: []model.Child{
				{ID: "c2", Name: "Bo", Color: "#00f"},
				{ID: "c1", Name: "Ada", Color: "#f00"},
			},
			Templates: []model.SchoolTemplate{
				{ID: "t2", ChildID: "c2", DayOfWeek: 2, StartTime: "09:00", EndTime: "14:00", Title: "School"},
				{ID: "t1", ChildID: "c1", DayOfWeek: 1, StartTime: "08:00", EndTime: "15:00", Title: "School"},
			},
			Credentials: []model.Credential{
				{Owner: model.OwnerMom, RefreshToken: "rt-mom", OwnerEmail: "mom@example.com", UpdatedAt: updated},
			},
		})
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}

		cfg, _ := s.FamilyConfig(ctx)
		if diff := cmp.Diff(model.FamilyConfig{DadCalendarID: "dad@example.com", Timezone: "UTC"}, cfg); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}

		children, _ := s.Children(ctx)
		wantChildren := []model.Child{
			{ID: "c1", Name: "Ada", Color: "#f00"},
			{ID: "c2", Name: "Bo", Color: "#00f"},
		}
		if diff := cmp.Diff(wantChildren, children); diff != "" {
			t.Errorf("children mismatch (-want +got):\n%s", diff)
		}

		templates, _ := s.SchoolTemplates(ctx)
		if len(templates) != 2 || templates[0].ID != "t1" || templates[1].ID != "t2" {
			t.Errorf("templates not ordered by id: %+v", templates)
		}

		cred, err := s.Credential(ctx, model.OwnerMom)
		if err != nil {
			t.Fatalf("Credential: %v", err)
		}
		if cred.RefreshToken != "rt-mom" || !cred.UpdatedAt.Equal(updated) {
			t.Errorf("unexpected credential: %+v", cred)
		}
	})

	t.Run("config patch merges", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		if err := s.Commit(ctx, &store.Batch{Config: &model.FamilyConfigPatch{DadCalendarID: ptr("dad"), MomCalendarID: ptr("mom")}}); err != nil {
			t.Fatal(err)
		}
		if err := s.Commit(ctx, &store.Batch{Config: &model.FamilyConfigPatch{MomCalendarID: ptr("mom-2")}}); err != nil {
			t.Fatal(err)
		}

		cfg, _ := s.FamilyConfig(ctx)
		if diff := cmp.Diff(model.FamilyConfig{DadCalendarID: "dad", MomCalendarID: "mom-2"}, cfg); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("delete removes documents", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		err := s.Commit(ctx, &store.Batch{
			Children: []model.Child{{ID: "c1", Name: "Ada"}, {ID: "c2", Name: "Bo"}},
			Templates: []model.SchoolTemplate{
				{ID: "t1", ChildID: "c1", DayOfWeek: 1, StartTime: "08:00", EndTime: "15:00", Title: "School"},
				{ID: "t2", ChildID: "c2", DayOfWeek: 2, StartTime: "08:00", EndTime: "15:00", Title: "School"},
			},
		})
		if err != nil {
			t.Fatal(err)
		}

		err = s.Commit(ctx, &store.Batch{
			Children:        []model.Child{{ID: "c3", Name: "Cy"}},
			DeleteChildren:  []string{"c1", "missing"},
			DeleteTemplates: []string{"t2"},
		})
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}

		children, _ := s.Children(ctx)
		if diff := cmp.Diff([]model.Child{{ID: "c2", Name: "Bo"}, {ID: "c3", Name: "Cy"}}, children); diff != "" {
			t.Errorf("children mismatch (-want +got):\n%s", diff)
		}
		templates, _ := s.SchoolTemplates(ctx)
		if len(templates) != 1 || templates[0].ID != "t1" {
			t.Errorf("templates = %+v, want only t1", templates)
		}
	})

	t.Run("delete wins over upsert in one batch", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		err := s.Commit(ctx, &store.Batch{
			Children:       []model.Child{{ID: "c1", Name: "Ada"}},
			DeleteChildren: []string{"c1"},
		})
		if err != nil {
			t.Fatal(err)
		}
		if children, _ := s.Children(ctx); len(children) != 0 {
			t.Errorf("children = %+v, want none", children)
		}
	})

	t.Run("upsert replaces document", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)

		_ = s.Commit(ctx, &store.Batch{Children: []model.Child{{ID: "c1", Name: "Ada", Color: "#f00"}}})
		_ = s.Commit(ctx, &store.Batch{Children: []model.Child{{ID: "c1", Name: "Ada L.", Color: "#0f0"}}})

		children, _ := s.Children(ctx)
		if diff := cmp.Diff([]model.Child{{ID: "c1", Name: "Ada L.", Color: "#0f0"}}, children); diff != "" {
			t.Errorf("children mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestMemory(t *testing.T) {
	t.Parallel()
	testStore(t, func(*testing.T) store.Store { return store.NewMemory() })
}

func TestMemory_CommitHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := store.NewMemory()
	if err := s.Commit(ctx, &store.Batch{Children: []model.Child{{ID: "c1"}}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedis(t *testing.T) {
	t.Parallel()

	_, rdb := newMiniredis(t)
	testStore(t, func(t *testing.T) store.Store {
		return store.NewRedis(rdb, "familycal-test-"+uuid.NewString(), "default")
	})
}

func TestRedis_Layout(t *testing.T) {
	t.Parallel()

	mr, rdb := newMiniredis(t)
	s := store.NewRedis(rdb, "fc", "household")
	ctx := context.Background()

	err := s.Commit(ctx, &store.Batch{
		Config:   &model.FamilyConfigPatch{MomCalendarID: ptr("mom@example.com")},
		Children: []model.Child{{ID: "c1", Name: "Ada", Color: "#f00"}},
		Credentials: []model.Credential{
			{Owner: model.OwnerDad, RefreshToken: "rt"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := mr.HGet("fc:familyConfig:household", "momCalendarId"); got != "mom@example.com" {
		t.Errorf("familyConfig.momCalendarId = %q", got)
	}
	if fields, _ := mr.HKeys("fc:familyConfig:household"); len(fields) != 1 {
		t.Errorf("config patch wrote untouched fields: %v", fields)
	}
	if got := mr.HGet("fc:children", "c1"); got != `{"id":"c1","name":"Ada","color":"#f00"}` {
		t.Errorf("children/c1 = %s", got)
	}
	if got := mr.HGet("fc:calendarCredentials", "dad"); got == "" {
		t.Error("credential not stored under owner field")
	}
}

func TestRedis_CorruptDocument(t *testing.T) {
	t.Parallel()

	mr, rdb := newMiniredis(t)
	s := store.NewRedis(rdb, "fc", "default")
	ctx := context.Background()

	mr.HSet("fc:children", "c1", "{not json")
	mr.HSet("fc:schoolTemplates", "t1", "[]")
	mr.HSet("fc:calendarCredentials", "mom", "nope")

	if _, err := s.Children(ctx); err == nil {
		t.Error("Children: expected decode error")
	}
	if _, err := s.SchoolTemplates(ctx); err == nil {
		t.Error("SchoolTemplates: expected decode error")
	}
	if _, err := s.Credential(ctx, model.OwnerMom); err == nil || errors.Is(err, store.ErrNotFound) {
		t.Errorf("Credential err = %v, want decode error", err)
	}
}

func TestRedis_ServerDown(t *testing.T) {
	t.Parallel()

	mr, rdb := newMiniredis(t)
	s := store.NewRedis(rdb, "fc", "default")
	mr.Close()

	ctx := context.Background()
	if _, err := s.FamilyConfig(ctx); err == nil {
		t.Error("FamilyConfig: expected error")
	}
	if err := s.Commit(ctx, &store.Batch{Children: []model.Child{{ID: "c1"}}}); err == nil {
		t.Error("Commit: expected error")
	}
}

func TestDial(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	ctx := context.Background()

	r, err := store.Dial(ctx, &redis.Options{Addr: mr.Addr()}, "fc", "default")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	addr := mr.Addr()
	mr.Close()
	if _, err := store.Dial(ctx, &redis.Options{Addr: addr, MaxRetries: -1}, "fc", "default"); err == nil {
		t.Error("Dial to a stopped server succeeded")
	}
}
