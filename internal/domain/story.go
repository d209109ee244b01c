package domain

import (
	"context"
	"strings"
	"time"
)

// Story is an illustrated story. Pages, Images and Audio are parallel:
// Images[i] illustrates Pages[i] and Audio[i] reads it aloud. Audio is
// filled in after the story is stored.
type Story struct {
	ID          string
	AuthorID    string
	Author      string // author's username at read time
	Title       string
	Description string
	Pages       []string
	Images      []string
	Audio       []string
	Private     bool
	Likes       int
	Saves       int
	CreatedAt   time.Time
}

// StoryRepository defines the contract for story persistence
type StoryRepository interface {
	GetByID(ctx context.Context, id string) (*Story, error)
	Create(ctx context.Context, story *Story) error
	SetPrivate(ctx context.Context, id string, private bool) error
	SetAudio(ctx context.Context, id string, urls []string) error

	ListRecentPublic(ctx context.Context, limit, offset int) ([]*Story, error)
	ListByAuthor(ctx context.Context, authorID string, private bool) ([]*Story, error)
	// ListLikedBy and ListSavedBy omit private stories the user did not write.
	ListLikedBy(ctx context.Context, userID string) ([]*Story, error)
	ListSavedBy(ctx context.Context, userID string) ([]*Story, error)

	// Reactions are idempotent.
	AddLike(ctx context.Context, storyID, userID string) error
	RemoveLike(ctx context.Context, storyID, userID string) error
	AddSave(ctx context.Context, storyID, userID string) error
	RemoveSave(ctx context.Context, storyID, userID string) error
}

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// NewStory creates a new story with validation
// Business rule: title and description are required
func NewStory(id, authorID, title, description string, private bool) (*Story, error) {
	s := &Story{
		ID:          id,
		AuthorID:    authorID,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Private:     private,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate ensures the story entity is in a valid state
func (s *Story) Validate() error {
	if s.ID == "" || s.AuthorID == "" {
		return Invalid("story id and author are required")
	}
	if s.Title == "" {
		return Invalid("title is required")
	}
	if len(s.Title) > MaxTitleLength {
		return Invalidf("title must be at most %d characters", MaxTitleLength)
	}
	if s.Description == "" {
		return Invalid("description is required")
	}
	if len(s.Description) > MaxDescriptionLength {
		return Invalidf("description must be at most %d characters", MaxDescriptionLength)
	}
	if len(s.Images) > 0 && len(s.Images) != len(s.Pages) {
		return Invalid("every page needs exactly one image")
	}
	if len(s.Audio) > 0 && len(s.Audio) != len(s.Pages) {
		return Invalid("every page needs exactly one recording")
	}
	return nil
}

// VisibleTo reports whether userID may read the story.
func (s *Story) VisibleTo(userID string) bool {
	return !s.Private || s.AuthorID == userID
}

// IsAuthor reports whether userID wrote the story.
func (s *Story) IsAuthor(userID string) bool {
	return s.AuthorID == userID
}

// Reference is an encyclopedia article related to a story.
type Reference struct {
	Title   string
	Snippet string
	URL     string
}
