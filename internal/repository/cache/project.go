// Package cache puts a Redis read-through cache in front of the project
// lookup that runs on every tenant-scoped request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "meetlines:project:subdomain:"

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ProjectCache wraps a ProjectRepository. Only GetBySubdomain is cached;
// writes that change a subdomain or status evict the affected keys. Redis
// failures fall through to the wrapped repository.
type ProjectCache struct {
	repository.ProjectRepository
	rdb    Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ repository.ProjectRepository = (*ProjectCache)(nil)

func NewProjectCache(next repository.ProjectRepository, rdb Client, ttl time.Duration, logger *zap.Logger) *ProjectCache {
	return &ProjectCache{ProjectRepository: next, rdb: rdb, ttl: ttl, logger: logger}
}

func key(subdomain string) string {
	return keyPrefix + subdomain
}

func (c *ProjectCache) GetBySubdomain(ctx context.Context, subdomain string) (*models.Project, error) {
	raw, err := c.rdb.Get(ctx, key(subdomain)).Bytes()
	switch {
	case err == nil:
		var p models.Project
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		c.logger.Warn("discarding unreadable cached project", zap.String("subdomain", subdomain))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("project cache read failed", zap.String("subdomain", subdomain), zap.Error(err))
	}

	p, err := c.ProjectRepository.GetBySubdomain(ctx, subdomain)
	if err != nil || p == nil {
		return p, err
	}

	if data, jsonErr := json.Marshal(p); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key(subdomain), data, c.ttl).Err(); setErr != nil {
			c.logger.Warn("project cache write failed", zap.String("subdomain", subdomain), zap.Error(setErr))
		}
	}
	return p, nil
}

func (c *ProjectCache) UpdateSubdomain(ctx context.Context, projectID uuid.UUID, subdomain string) (*models.Project, error) {
	before, err := c.ProjectRepository.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	p, err := c.ProjectRepository.UpdateSubdomain(ctx, projectID, subdomain)
	if err != nil || p == nil {
		return p, err
	}
	keys := []string{key(p.Subdomain)}
	if before != nil && before.Subdomain != p.Subdomain {
		keys = append(keys, key(before.Subdomain))
	}
	c.evict(ctx, keys...)
	return p, nil
}

func (c *ProjectCache) UpdateStatus(ctx context.Context, projectID uuid.UUID, status models.ProjectStatus) (*models.Project, error) {
	p, err := c.ProjectRepository.UpdateStatus(ctx, projectID, status)
	if err != nil || p == nil {
		return p, err
	}
	c.evict(ctx, key(p.Subdomain))
	return p, nil
}

func (c *ProjectCache) evict(ctx context.Context, keys ...string) {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("project cache eviction failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
