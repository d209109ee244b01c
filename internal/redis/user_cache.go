package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/domain"
)

// UserCache caches user profiles by ID.
type UserCache struct {
	cache *Cache
	ttl   time.Duration
}

func NewUserCache(c *Cache) *UserCache {
	return &UserCache{
		cache: c,
		ttl:   5 * time.Minute,
	}
}

func userKey(id string) string { return fmt.Sprintf("user:%s", id) }

func (c *UserCache) Get(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	if err := c.cache.Get(ctx, userKey(userID), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *UserCache) Set(ctx context.Context, user *domain.User) error {
	return c.cache.Set(ctx, userKey(user.ID), user, c.ttl)
}

func (c *UserCache) Invalidate(ctx context.Context, userID string) error {
	return c.cache.Delete(ctx, userKey(userID))
}
