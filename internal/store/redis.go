package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"familycal/internal/model"
)

const (
	collectionFamilyConfig = "familyConfig"
	collectionChildren     = "children"
	collectionTemplates    = "schoolTemplates"
	collectionCredentials  = "calendarCredentials"

	fieldDadCalendarID = "dadCalendarId"
	fieldMomCalendarID = "momCalendarId"
	fieldTimezone      = "timezone"
)

// Redis stores each collection as one hash. Documents are JSON values keyed
// by id; the familyConfig singleton is a flat hash so that merges only touch
// the fields being written.
type Redis struct {
	rdb       redis.UniversalClient
	prefix    string
	configDoc string
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an existing client. prefix namespaces keys and configDoc
// selects the familyConfig document.
func NewRedis(rdb redis.UniversalClient, prefix, configDoc string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, configDoc: configDoc}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, opts *redis.Options, prefix, configDoc string) (*Redis, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return NewRedis(rdb, prefix, configDoc), nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) key(parts ...string) string {
	k := r.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (r *Redis) FamilyConfig(ctx context.Context) (model.FamilyConfig, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(collectionFamilyConfig, r.configDoc)).Result()
	if err != nil {
		return model.FamilyConfig{}, fmt.Errorf("read %s: %w", collectionFamilyConfig, err)
	}
	return model.FamilyConfig{
		DadCalendarID: fields[fieldDadCalendarID],
		MomCalendarID: fields[fieldMomCalendarID],
		Timezone:      fields[fieldTimezone],
	}, nil
}

func (r *Redis) Children(ctx context.Context) ([]model.Child, error) {
	docs, err := r.rdb.HGetAll(ctx, r.key(collectionChildren)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collectionChildren, err)
	}

	out := make([]model.Child, 0, len(docs))
	for id, raw := range docs {
		var c model.Child
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collectionChildren, id, err)
		}
		c.ID = id
		out = append(out, c)
	}
	sortChildren(out)
	return out, nil
}

func (r *Redis) SchoolTemplates(ctx context.Context) ([]model.SchoolTemplate, error) {
	docs, err := r.rdb.HGetAll(ctx, r.key(collectionTemplates)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collectionTemplates, err)
	}

	out := make([]model.SchoolTemplate, 0, len(docs))
	for id, raw := range docs {
		var t model.SchoolTemplate
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collectionTemplates, id, err)
		}
		t.ID = id
		out = append(out, t)
	}
	sortTemplates(out)
	return out, nil
}

func (r *Redis) Credential(ctx context.Context, owner model.Owner) (model.Credential, error) {
	raw, err := r.rdb.HGet(ctx, r.key(collectionCredentials), string(owner)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Credential{}, ErrNotFound
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("read %s/%s: %w", collectionCredentials, owner, err)
	}

	var c model.Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return model.Credential{}, fmt.Errorf("decode %s/%s: %w", collectionCredentials, owner, err)
	}
	c.Owner = owner
	return c, nil
}

// Commit writes the batch inside MULTI/EXEC: HSET for upserts, then HDEL
// for deletions.
func (r *Redis) Commit(ctx context.Context, b *Batch) error {
	if b.Empty() {
		return nil
	}

	// Encode everything up front so a bad document aborts before any write.
	children, err := encodeDocs(b.Children, func(c model.Child) string { return c.ID })
	if err != nil {
		return err
	}
	templates, err := encodeDocs(b.Templates, func(t model.SchoolTemplate) string { return t.ID })
	if err != nil {
		return err
	}
	credentials, err := encodeDocs(b.Credentials, func(c model.Credential) string { return string(c.Owner) })
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if b.Config != nil {
			if fields := configFields(b.Config); len(fields) > 0 {
				pipe.HSet(ctx, r.key(collectionFamilyConfig, r.configDoc), fields)
			}
		}
		if len(children) > 0 {
			pipe.HSet(ctx, r.key(collectionChildren), children)
		}
		if len(templates) > 0 {
			pipe.HSet(ctx, r.key(collectionTemplates), templates)
		}
		if len(credentials) > 0 {
			pipe.HSet(ctx, r.key(collectionCredentials), credentials)
		}
		if len(b.DeleteChildren) > 0 {
			pipe.HDel(ctx, r.key(collectionChildren), b.DeleteChildren...)
		}
		if len(b.DeleteTemplates) > 0 {
			pipe.HDel(ctx, r.key(collectionTemplates), b.DeleteTemplates...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func configFields(p *model.FamilyConfigPatch) map[string]any {
	fields := map[string]any{}
	if p.DadCalendarID != nil {
		fields[fieldDadCalendarID] = *p.DadCalendarID
	}
	if p.MomCalendarID != nil {
		fields[fieldMomCalendarID] = *p.MomCalendarID
	}
	if p.Timezone != nil {
		fields[fieldTimezone] = *p.Timezone
	}
	return fields
}

func encodeDocs[T any](docs []T, id func(T) string) (map[string]any, error) {
	out := make(map[string]any, len(docs))
	for _, d := range docs {
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encode document %s: %w", id(d), err)
		}
		out[id(d)] = string(raw)
	}
	return out, nil
}
