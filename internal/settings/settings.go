// Package settings reads and writes household configuration on behalf of the
// configuration API.
package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appLog "familycal/internal/log"
	"familycal/internal/model"
	"familycal/internal/school"
	"familycal/internal/store"
)

const defaultTemplateTitle = "School"

// Snapshot is the full configuration shown on the setup page.
type Snapshot struct {
	Config          model.FamilyConfig     `json:"config"`
	Kids            []model.Child          `json:"kids"`
	SchoolSchedules []model.SchoolTemplate `json:"schoolSchedules"`
}

// TokenInput carries OAuth material obtained by the consent flow.
type TokenInput struct {
	RefreshToken string `json:"refreshToken"`
	OwnerEmail   string `json:"ownerEmail,omitempty"`
}

// Update is a batch of configuration writes. Absent sections are left
// untouched. Deleting a child leaves its school schedules in place.
type Update struct {
	Config                *model.FamilyConfigPatch `json:"config,omitempty"`
	Kids                  []model.Child            `json:"kids,omitempty"`
	SchoolSchedules       []model.SchoolTemplate   `json:"schoolSchedules,omitempty"`
	CalendarTokens        map[string]TokenInput    `json:"calendarTokens,omitempty"`
	DeleteKids            []string                 `json:"deleteKids,omitempty"`
	DeleteSchoolSchedules []string                 `json:"deleteSchoolSchedules,omitempty"`
}

// Invalidator is notified after every successful write.
type Invalidator interface {
	Invalidate()
}

type Service struct {
	store       store.Store
	invalidator Invalidator
	now         func() time.Time
	newID       func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source for credential timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides generation of ids for new documents.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(st store.Store, inv Invalidator, opts ...Option) *Service {
	s := &Service{
		store:       st,
		invalidator: inv,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads config, children and templates concurrently.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Config, err = s.store.FamilyConfig(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Kids, err = s.store.Children(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.SchoolSchedules, err = s.store.SchoolTemplates(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("load settings: %w", err)
	}
	return snap, nil
}

// Save validates u, commits it as one batch and invalidates cached feeds.
// Documents without an id get a generated one; templates without a title
// are titled "School"; token entries without a refresh token are ignored.
func (s *Service) Save(ctx context.Context, u Update) error {
	batch, err := s.buildBatch(u)
	if err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}

	if err := s.store.Commit(ctx, batch); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.invalidator.Invalidate()

	appLog.Info("settings saved",
		"config", batch.Config != nil,
		"kids", len(batch.Children),
		"school_schedules", len(batch.Templates),
		"calendar_tokens", len(batch.Credentials),
		"deleted_kids", len(batch.DeleteChildren),
		"deleted_school_schedules", len(batch.DeleteTemplates),
	)
	return nil
}

func (s *Service) buildBatch(u Update) (*store.Batch, error) {
	batch := &store.Batch{Config: u.Config}

	if u.Config != nil && u.Config.Timezone != nil && *u.Config.Timezone != "" {
		if _, err := time.LoadLocation(*u.Config.Timezone); err != nil {
			return nil, &model.ValidationError{Field: "config.timezone", Reason: fmt.Sprintf("unknown timezone %q", *u.Config.Timezone)}
		}
	}

	for _, kid := range u.Kids {
		if kid.ID == "" {
			kid.ID = s.newID()
		}
		batch.Children = append(batch.Children, kid)
	}

	for i, tpl := range u.SchoolSchedules {
		if err := school.Validate(tpl); err != nil {
			if verr, ok := err.(*model.ValidationError); ok {
				verr.Field = fmt.Sprintf("schoolSchedules[%d].%s", i, verr.Field)
			}
			return nil, err
		}
		if tpl.ID == "" {
			tpl.ID = s.newID()
		}
		if tpl.Title == "" {
			tpl.Title = defaultTemplateTitle
		}
		batch.Templates = append(batch.Templates, tpl)
	}

	for name, tok := range u.CalendarTokens {
		owner, ok := model.ParseCalendarOwner(name)
		if !ok {
			return nil, &model.ValidationError{Field: "calendarTokens", Reason: fmt.Sprintf("unknown owner %q", name)}
		}
		if tok.RefreshToken == "" {
			continue
		}
		batch.Credentials = append(batch.Credentials, model.Credential{
			Owner:        owner,
			RefreshToken: tok.RefreshToken,
			OwnerEmail:   tok.OwnerEmail,
			UpdatedAt:    s.now().UTC(),
		})
	}

	var err error
	if batch.DeleteChildren, err = deletions("deleteKids", u.DeleteKids, batch.Children, func(c model.Child) string { return c.ID }); err != nil {
		return nil, err
	}
	if batch.DeleteTemplates, err = deletions("deleteSchoolSchedules", u.DeleteSchoolSchedules, batch.Templates, func(t model.SchoolTemplate) string { return t.ID }); err != nil {
		return nil, err
	}

	return batch, nil
}

// deletions checks a list of ids to delete. An id may not be blank and may
// not also be written by the same update.
func deletions[T any](field string, ids []string, upserts []T, id func(T) string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	written := make(map[string]struct{}, len(upserts))
	for _, u := range upserts {
		written[id(u)] = struct{}{}
	}

	out := make([]string, 0, len(ids))
	for i, d := range ids {
		if d == "" {
			return nil, &model.ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Reason: "id is required"}
		}
		if _, ok := written[d]; ok {
			return nil, &model.ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Reason: fmt.Sprintf("%q is both written and deleted", d)}
		}
		out = append(out, d)
	}
	return out, nil
}
