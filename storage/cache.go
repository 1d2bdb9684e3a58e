package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"trullo-api/domain"
)

type projectBackend interface {
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	InsertProject(ctx context.Context, p domain.Project) error
	UpdateProject(ctx context.Context, upd domain.ProjectUpdate) error
	DeleteProject(ctx context.Context, id string) error
}

// Cache wraps a Storage instance with Redis-backed caching for project
// reads. Mutations evict; redis failures fall through to the backing
// store. An update that hits a concurrency conflict also evicts, so the
// caller's re-read fetches a fresh concurrency token instead of looping on
// the cached one.
type Cache struct {
	*Storage
	base  projectBackend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis
// client and TTL.
func NewCache(base *Storage, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{Storage: base, base: base, redis: client, ttl: ttl}
}

func (c *Cache) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	if p, ok := c.loadProject(ctx, id); ok {
		return p, nil
	}
	p, err := c.base.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p != nil {
		c.storeProject(ctx, *p)
	}
	return p, nil
}

func (c *Cache) InsertProject(ctx context.Context, p domain.Project) error {
	if err := c.base.InsertProject(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, p.ID)
	return nil
}

func (c *Cache) UpdateProject(ctx context.Context, upd domain.ProjectUpdate) error {
	err := c.base.UpdateProject(ctx, upd)
	if err == nil || errors.Is(err, domain.ErrConcurrencyConflict) {
		c.evict(ctx, upd.ID)
	}
	return err
}

func (c *Cache) DeleteProject(ctx context.Context, id string) error {
	if err := c.base.DeleteProject(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

// cachedProject carries the concurrency token alongside the record, since
// domain.Project keeps it out of its JSON form.
type cachedProject struct {
	Project domain.Project `json:"project"`
	ETag    string         `json:"etag"`
}

func (c *Cache) loadProject(ctx context.Context, id string) (*domain.Project, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, projectCacheKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, projectCacheKey(id)).Err()
		}
		return nil, false
	}
	var cached cachedProject
	if err := json.Unmarshal(data, &cached); err != nil {
		_ = c.redis.Del(ctx, projectCacheKey(id)).Err()
		return nil, false
	}
	cached.Project.ETag = cached.ETag
	return &cached.Project, true
}

func (c *Cache) storeProject(ctx context.Context, p domain.Project) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(cachedProject{Project: p, ETag: p.ETag})
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, projectCacheKey(p.ID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, id string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, projectCacheKey(id)).Result()
}

func projectCacheKey(id string) string {
	return "project:" + id
}
