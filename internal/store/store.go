// Package store is the document store holding household configuration:
// the familyConfig singleton, children, school templates and calendar
// credentials.
package store

import (
	"context"
	"errors"
	"sort"

	"familycal/internal/model"
)

// ErrNotFound is returned when a keyed document does not exist.
var ErrNotFound = errors.New("store: document not found")

// Store is the read/write surface used by the service. Reads of whole
// collections return documents ordered by id.
type Store interface {
	FamilyConfig(ctx context.Context) (model.FamilyConfig, error)
	Children(ctx context.Context) ([]model.Child, error)
	SchoolTemplates(ctx context.Context) ([]model.SchoolTemplate, error)
	// Credential returns ErrNotFound when no credential is stored for owner.
	Credential(ctx context.Context, owner model.Owner) (model.Credential, error)
	// Commit applies every write in b atomically.
	Commit(ctx context.Context, b *Batch) error
}

// Batch collects writes that are committed together. Deletions are applied
// after upserts, so an id present in both ends up deleted. Deleting an id
// that does not exist is not an error.
type Batch struct {
	Config      *model.FamilyConfigPatch
	Children    []model.Child
	Templates   []model.SchoolTemplate
	Credentials []model.Credential

	DeleteChildren  []string
	DeleteTemplates []string
}

// Empty reports whether the batch carries no writes.
func (b *Batch) Empty() bool {
	return b == nil || (b.Config == nil &&
		len(b.Children) == 0 && len(b.Templates) == 0 && len(b.Credentials) == 0 &&
		len(b.DeleteChildren) == 0 && len(b.DeleteTemplates) == 0)
}

func sortChildren(cs []model.Child) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}

func sortTemplates(ts []model.SchoolTemplate) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
