package usecase_test

import (
	"context"
	"io"
	"sync"

	"github.com/TopThisHat/storytopia-api/internal/blob"
	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/usecase"
)

type fakeUserRepo struct {
	getByIDFn       func(ctx context.Context, id string) (*domain.User, error)
	getByUsernameFn func(ctx context.Context, username string) (*domain.User, error)
	createFn        func(ctx context.Context, user *domain.User) error
	updateFn        func(ctx context.Context, user *domain.User) error
	followFn        func(ctx context.Context, followerID, followeeID string) error
	unfollowFn      func(ctx context.Context, followerID, followeeID string) (bool, error)
	isFollowingFn   func(ctx context.Context, followerID, followeeID string) (bool, error)
	followersFn     func(ctx context.Context, userID string) ([]*domain.User, error)
	followingFn     func(ctx context.Context, userID string) ([]*domain.User, error)
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.NotFound("user", id)
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if f.getByUsernameFn != nil {
		return f.getByUsernameFn(ctx, username)
	}
	return nil, domain.NotFound("user", username)
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	if f.createFn != nil {
		return f.createFn(ctx, user)
	}
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, user)
	}
	return nil
}

func (f *fakeUserRepo) Follow(ctx context.Context, followerID, followeeID string) error {
	if f.followFn != nil {
		return f.followFn(ctx, followerID, followeeID)
	}
	return nil
}

func (f *fakeUserRepo) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	if f.unfollowFn != nil {
		return f.unfollowFn(ctx, followerID, followeeID)
	}
	return true, nil
}

func (f *fakeUserRepo) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	if f.isFollowingFn != nil {
		return f.isFollowingFn(ctx, followerID, followeeID)
	}
	return false, nil
}

func (f *fakeUserRepo) Followers(ctx context.Context, userID string) ([]*domain.User, error) {
	if f.followersFn != nil {
		return f.followersFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeUserRepo) Following(ctx context.Context, userID string) ([]*domain.User, error) {
	if f.followingFn != nil {
		return f.followingFn(ctx, userID)
	}
	return nil, nil
}

type fakeStoryRepo struct {
	getByIDFn          func(ctx context.Context, id string) (*domain.Story, error)
	createFn           func(ctx context.Context, story *domain.Story) error
	setPrivateFn       func(ctx context.Context, id string, private bool) error
	setAudioFn         func(ctx context.Context, id string, urls []string) error
	listRecentPublicFn func(ctx context.Context, limit, offset int) ([]*domain.Story, error)
	listByAuthorFn     func(ctx context.Context, authorID string, private bool) ([]*domain.Story, error)
	listLikedByFn      func(ctx context.Context, userID string) ([]*domain.Story, error)
	listSavedByFn      func(ctx context.Context, userID string) ([]*domain.Story, error)
	reactFn            func(kind, storyID, userID string) error
}

func (f *fakeStoryRepo) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.NotFound("story", id)
}

func (f *fakeStoryRepo) Create(ctx context.Context, story *domain.Story) error {
	if f.createFn != nil {
		return f.createFn(ctx, story)
	}
	return nil
}

func (f *fakeStoryRepo) SetPrivate(ctx context.Context, id string, private bool) error {
	if f.setPrivateFn != nil {
		return f.setPrivateFn(ctx, id, private)
	}
	return nil
}

func (f *fakeStoryRepo) SetAudio(ctx context.Context, id string, urls []string) error {
	if f.setAudioFn != nil {
		return f.setAudioFn(ctx, id, urls)
	}
	return nil
}

func (f *fakeStoryRepo) ListRecentPublic(ctx context.Context, limit, offset int) ([]*domain.Story, error) {
	if f.listRecentPublicFn != nil {
		return f.listRecentPublicFn(ctx, limit, offset)
	}
	return nil, nil
}

func (f *fakeStoryRepo) ListByAuthor(ctx context.Context, authorID string, private bool) ([]*domain.Story, error) {
	if f.listByAuthorFn != nil {
		return f.listByAuthorFn(ctx, authorID, private)
	}
	return nil, nil
}

func (f *fakeStoryRepo) ListLikedBy(ctx context.Context, userID string) ([]*domain.Story, error) {
	if f.listLikedByFn != nil {
		return f.listLikedByFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStoryRepo) ListSavedBy(ctx context.Context, userID string) ([]*domain.Story, error) {
	if f.listSavedByFn != nil {
		return f.listSavedByFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStoryRepo) react(kind, storyID, userID string) error {
	if f.reactFn != nil {
		return f.reactFn(kind, storyID, userID)
	}
	return nil
}

func (f *fakeStoryRepo) AddLike(_ context.Context, storyID, userID string) error {
	return f.react("like", storyID, userID)
}

func (f *fakeStoryRepo) RemoveLike(_ context.Context, storyID, userID string) error {
	return f.react("unlike", storyID, userID)
}

func (f *fakeStoryRepo) AddSave(_ context.Context, storyID, userID string) error {
	return f.react("save", storyID, userID)
}

func (f *fakeStoryRepo) RemoveSave(_ context.Context, storyID, userID string) error {
	return f.react("unsave", storyID, userID)
}

// memStoryCache is an in-memory usecase.StoryCache.
type memStoryCache struct {
	mu      sync.Mutex
	stories map[string]*domain.Story
	slots   map[string]bool
	getErr  error
}

func newMemStoryCache() *memStoryCache {
	return &memStoryCache{stories: map[string]*domain.Story{}, slots: map[string]bool{}}
}

func (c *memStoryCache) Get(_ context.Context, id string) (*domain.Story, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	s, ok := c.stories[id]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	cp := *s
	return &cp, nil
}

func (c *memStoryCache) Set(_ context.Context, s *domain.Story) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *s
	c.stories[s.ID] = &cp
	return nil
}

func (c *memStoryCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stories, id)
	return nil
}

func (c *memStoryCache) AcquireGeneration(_ context.Context, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slots[userID] {
		return false, nil
	}
	c.slots[userID] = true
	return true, nil
}

func (c *memStoryCache) ReleaseGeneration(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.slots, userID)
	return nil
}

// memUserCache is an in-memory usecase.UserCache.
type memUserCache struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserCache() *memUserCache {
	return &memUserCache{users: map[string]*domain.User{}}
}

func (c *memUserCache) Get(_ context.Context, id string) (*domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[id]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	cp := *u
	return &cp, nil
}

func (c *memUserCache) Set(_ context.Context, u *domain.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *u
	c.users[u.ID] = &cp
	return nil
}

func (c *memUserCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
	return nil
}

type fakeWriter struct {
	draftFn func(ctx context.Context, prompt, accessibility string) (*usecase.Draft, error)
}

func (f *fakeWriter) Draft(ctx context.Context, prompt, accessibility string) (*usecase.Draft, error) {
	return f.draftFn(ctx, prompt, accessibility)
}

type fakeIllustrator struct {
	illustrateFn func(ctx context.Context, scene, style, accessibility string) ([]byte, error)
}

func (f *fakeIllustrator) Illustrate(ctx context.Context, scene, style, accessibility string) ([]byte, error) {
	return f.illustrateFn(ctx, scene, style, accessibility)
}

type fakeNarrator struct {
	narrateFn func(ctx context.Context, text string) ([]byte, error)
}

func (f *fakeNarrator) Narrate(ctx context.Context, text string) ([]byte, error) {
	return f.narrateFn(ctx, text)
}

// memImages records uploads and deletions.
type memImages struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

func newMemImages() *memImages {
	return &memImages{objects: map[string][]byte{}}
}

func (m *memImages) Upload(_ context.Context, in *blob.UploadInput) (*blob.UploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[in.Key] = data
	return &blob.UploadOutput{Key: in.Key, URL: "https://cdn.test/" + in.Key}, nil
}

func (m *memImages) DeleteMultiple(_ context.Context, keys []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects, k)
		m.deleted = append(m.deleted, k)
	}
	return nil, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	ready  []string
	failed []string
	err    error
}

func (n *fakeNotifier) StoryReady(_ context.Context, to *domain.User, story *domain.Story) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = append(n.ready, to.ID+":"+story.ID)
	return n.err
}

func (n *fakeNotifier) StoryFailed(_ context.Context, to *domain.User, prompt string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, to.ID+":"+prompt)
	return n.err
}

type fakeSearcher struct {
	searchFn func(ctx context.Context, query string, limit int) ([]domain.Reference, error)
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]domain.Reference, error) {
	return f.searchFn(ctx, query, limit)
}
