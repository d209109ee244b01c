package usecase

import (
	"context"

	"github.com/TopThisHat/storytopia-api/internal/blob"
	"github.com/TopThisHat/storytopia-api/internal/domain"
)

// Capabilities the services need from infrastructure.
// Defined in usecase layer to avoid dependency on infrastructure

// UserCache defines the caching interface for users
type UserCache interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Set(ctx context.Context, user *domain.User) error
	Invalidate(ctx context.Context, userID string) error
}

// StoryCache caches stories and holds each user's generation slot.
type StoryCache interface {
	Get(ctx context.Context, storyID string) (*domain.Story, error)
	Set(ctx context.Context, story *domain.Story) error
	Invalidate(ctx context.Context, storyID string) error
	AcquireGeneration(ctx context.Context, userID string) (bool, error)
	ReleaseGeneration(ctx context.Context, userID string) error
}

// Draft is the text of a generated story before illustration.
type Draft struct {
	Title     string
	Scenes    []string // one image description per page
	Summaries []string // the page text readers see
}

// StoryWriter drafts story text from a prompt.
type StoryWriter interface {
	Draft(ctx context.Context, prompt, accessibility string) (*Draft, error)
}

// Illustrator renders one scene to PNG bytes.
type Illustrator interface {
	Illustrate(ctx context.Context, scene, style, accessibility string) ([]byte, error)
}

// MediaStore persists rendered images and narration.
type MediaStore interface {
	Upload(ctx context.Context, input *blob.UploadInput) (*blob.UploadOutput, error)
	DeleteMultiple(ctx context.Context, keys []string) ([]string, error)
}

// Narrator reads page text aloud and returns MP3 bytes.
type Narrator interface {
	Narrate(ctx context.Context, text string) ([]byte, error)
}

// Notifier tells authors how a generation ended.
type Notifier interface {
	StoryReady(ctx context.Context, to *domain.User, story *domain.Story) error
	StoryFailed(ctx context.Context, to *domain.User, prompt string) error
}

// ReferenceSearcher finds encyclopedia articles for a query.
type ReferenceSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Reference, error)
}
