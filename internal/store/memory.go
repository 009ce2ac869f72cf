package store

import (
	"context"
	"sync"

	"familycal/internal/model"
)

// Memory is a process-local Store. It is used when no Redis address is
// configured and as the store in tests.
type Memory struct {
	mu          sync.RWMutex
	config      model.FamilyConfig
	children    map[string]model.Child
	templates   map[string]model.SchoolTemplate
	credentials map[model.Owner]model.Credential
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		children:    map[string]model.Child{},
		templates:   map[string]model.SchoolTemplate{},
		credentials: map[model.Owner]model.Credential{},
	}
}

func (m *Memory) FamilyConfig(_ context.Context) (model.FamilyConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config, nil
}

func (m *Memory) Children(_ context.Context) ([]model.Child, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Child, 0, len(m.children))
	for _, c := range m.children {
		out = append(out, c)
	}
	sortChildren(out)
	return out, nil
}

func (m *Memory) SchoolTemplates(_ context.Context) ([]model.SchoolTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.SchoolTemplate, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	sortTemplates(out)
	return out, nil
}

func (m *Memory) Credential(_ context.Context, owner model.Owner) (model.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.credentials[owner]
	if !ok {
		return model.Credential{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) Commit(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.Empty() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if b.Config != nil {
		m.config = b.Config.Apply(m.config)
	}
	for _, c := range b.Children {
		m.children[c.ID] = c
	}
	for _, t := range b.Templates {
		m.templates[t.ID] = t
	}
	for _, c := range b.Credentials {
		m.credentials[c.Owner] = c
	}
	for _, id := range b.DeleteChildren {
		delete(m.children, id)
	}
	for _, id := range b.DeleteTemplates {
		delete(m.templates, id)
	}
	return nil
}
