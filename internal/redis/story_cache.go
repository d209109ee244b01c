package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/domain"
)

// StoryCache caches stories by ID and guards story generation so a
// user runs at most one generation at a time.
type StoryCache struct {
	cache   *Cache
	ttl     time.Duration
	lockTTL time.Duration
}

// NewStoryCache creates a Redis-backed story cache
func NewStoryCache(c *Cache) *StoryCache {
	return &StoryCache{
		cache:   c,
		ttl:     10 * time.Minute,
		lockTTL: 10 * time.Minute,
	}
}

func storyKey(id string) string          { return fmt.Sprintf("story:%s", id) }
func generationKey(userID string) string { return fmt.Sprintf("generation:%s", userID) }

// Get retrieves a cached story by ID
func (c *StoryCache) Get(ctx context.Context, storyID string) (*domain.Story, error) {
	var story domain.Story
	if err := c.cache.Get(ctx, storyKey(storyID), &story); err != nil {
		return nil, err
	}
	return &story, nil
}

// Set caches a story
func (c *StoryCache) Set(ctx context.Context, story *domain.Story) error {
	return c.cache.Set(ctx, storyKey(story.ID), story, c.ttl)
}

// Invalidate removes a story from cache (call this after any mutation)
func (c *StoryCache) Invalidate(ctx context.Context, storyID string) error {
	return c.cache.Delete(ctx, storyKey(storyID))
}

// AcquireGeneration reports whether the caller obtained the user's
// generation slot. The slot expires on its own if never released.
func (c *StoryCache) AcquireGeneration(ctx context.Context, userID string) (bool, error) {
	return c.cache.SetNX(ctx, generationKey(userID), time.Now().UTC(), c.lockTTL)
}

// ReleaseGeneration frees the user's generation slot
func (c *StoryCache) ReleaseGeneration(ctx context.Context, userID string) error {
	return c.cache.Delete(ctx, generationKey(userID))
}
