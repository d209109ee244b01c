package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/blob"
	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize  = 10
	MaxPageSize      = 50
	DefaultRefLimit  = 5
	MaxRefLimit      = 10
	illustrateLimit  = 3
	narrateLimit     = 3
	narrationTimeout = 5 * time.Minute
	imageContentType = "image/png"
	audioContentType = "audio/mpeg"
)

// GenerateRequest describes a story to generate.
type GenerateRequest struct {
	Prompt        string
	Style         string
	Accessibility string
	Private       bool
}

// StoryService orchestrates story-related business operations
// This layer contains business logic and coordinates between domain and repository
type StoryService struct {
	storyRepo  domain.StoryRepository
	userRepo   domain.UserRepository
	storyCache StoryCache
	logg       *logger.Logger

	writer      StoryWriter
	illustrator Illustrator
	images      MediaStore
	notifier    Notifier
	references  ReferenceSearcher

	narrator Narrator
	audio    MediaStore
	// background tracks narration still running after its request returned.
	background sync.WaitGroup

	now func() time.Time
}

// StoryOption configures optional collaborators of a StoryService.
type StoryOption func(*StoryService)

// WithGeneration enables story generation.
func WithGeneration(w StoryWriter, ill Illustrator, images MediaStore) StoryOption {
	return func(s *StoryService) {
		s.writer = w
		s.illustrator = ill
		s.images = images
	}
}

// WithNarration records each page as audio after a story is stored.
func WithNarration(n Narrator, audio MediaStore) StoryOption {
	return func(s *StoryService) {
		s.narrator = n
		s.audio = audio
	}
}

// WithNotifier sets who is told about finished generations.
func WithNotifier(n Notifier) StoryOption {
	return func(s *StoryService) { s.notifier = n }
}

// WithReferences enables reference search.
func WithReferences(r ReferenceSearcher) StoryOption {
	return func(s *StoryService) { s.references = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) StoryOption {
	return func(s *StoryService) { s.now = now }
}

// NewStoryService creates a new story service. storyCache may be nil.
func NewStoryService(storyRepo domain.StoryRepository, userRepo domain.UserRepository, storyCache StoryCache, logg *logger.Logger, opts ...StoryOption) *StoryService {
	s := &StoryService{
		storyRepo:  storyRepo,
		userRepo:   userRepo,
		storyCache: storyCache,
		logg:       logg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateStory stores a hand-written story
// Business logic: validates the author exists, generates ID
func (s *StoryService) CreateStory(ctx context.Context, userID, title, description string, private bool) (*domain.Story, error) {
	story, err := domain.NewStory(uuid.New().String(), userID, title, description, private)
	if err != nil {
		return nil, err
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.Wrap(err, "StoryService.CreateStory")
	}

	if err := s.storyRepo.Create(ctx, story); err != nil {
		return nil, domain.Wrap(err, "StoryService.CreateStory")
	}
	story.Author = author.Username

	s.logg.Info("story created", "story_id", story.ID, "author_id", userID, "private", private)
	s.narrateLater(ctx, story)
	return story, nil
}

// GetStory retrieves a story the caller may read
// Uses cache-aside pattern: check cache first, then database
func (s *StoryService) GetStory(ctx context.Context, userID, storyID string) (*domain.Story, error) {
	story, err := s.load(ctx, storyID)
	if err != nil {
		return nil, domain.Wrap(err, "StoryService.GetStory")
	}

	if !story.VisibleTo(userID) {
		return nil, domain.PermissionDenied("story", storyID)
	}
	return story, nil
}

func (s *StoryService) load(ctx context.Context, storyID string) (*domain.Story, error) {
	if strings.TrimSpace(storyID) == "" {
		return nil, domain.Invalid("story id is required")
	}

	if s.storyCache != nil {
		if story, err := s.storyCache.Get(ctx, storyID); err == nil {
			return story, nil
		} else if !errors.Is(err, domain.ErrCacheMiss) {
			s.logg.Warn("cache get failed", "error", err, "story_id", storyID)
		}
	}

	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}

	if s.storyCache != nil {
		if err := s.storyCache.Set(ctx, story); err != nil {
			s.logg.Warn("cache set failed", "error", err, "story_id", storyID)
		}
	}
	return story, nil
}

// ListRecentPublic pages through public stories, newest first.
func (s *StoryService) ListRecentPublic(ctx context.Context, page, pageSize int) ([]*domain.Story, error) {
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, domain.Invalidf("page size must be between 1 and %d", MaxPageSize)
	}
	// The offset must fit in an int.
	if maxPage := math.MaxInt / pageSize; page < 1 || page > maxPage {
		return nil, domain.Invalidf("page must be between 1 and %d", maxPage)
	}

	stories, err := s.storyRepo.ListRecentPublic(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, domain.Wrap(err, "StoryService.ListRecentPublic")
	}
	return stories, nil
}

func (s *StoryService) Like(ctx context.Context, userID, storyID string) error {
	return s.react(ctx, "StoryService.Like", userID, storyID, s.storyRepo.AddLike)
}

func (s *StoryService) Unlike(ctx context.Context, userID, storyID string) error {
	return s.react(ctx, "StoryService.Unlike", userID, storyID, s.storyRepo.RemoveLike)
}

func (s *StoryService) Save(ctx context.Context, userID, storyID string) error {
	return s.react(ctx, "StoryService.Save", userID, storyID, s.storyRepo.AddSave)
}

func (s *StoryService) Unsave(ctx context.Context, userID, storyID string) error {
	return s.react(ctx, "StoryService.Unsave", userID, storyID, s.storyRepo.RemoveSave)
}

// react applies a reaction to a story the caller can see. Another
// author's private story is reported as missing.
func (s *StoryService) react(ctx context.Context, op, userID, storyID string, apply func(ctx context.Context, storyID, userID string) error) error {
	if _, err := s.GetStory(ctx, userID, storyID); err != nil {
		return domain.Wrap(domain.Translate(err, domain.KindPermissionDenied, domain.KindNotFound), op)
	}

	if err := apply(ctx, storyID, userID); err != nil {
		return domain.Wrap(err, op)
	}

	s.invalidate(ctx, storyID)
	return nil
}

// TogglePrivacy flips the story's private flag
// Business rule: only the author may change it
func (s *StoryService) TogglePrivacy(ctx context.Context, userID, storyID string) (*domain.Story, error) {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, domain.Wrap(err, "StoryService.TogglePrivacy")
	}

	if !story.IsAuthor(userID) {
		s.logg.Warn("privacy toggle by non-author", "story_id", storyID, "user_id", userID)
		return nil, domain.PermissionDenied("story", storyID)
	}

	if err := s.storyRepo.SetPrivate(ctx, storyID, !story.Private); err != nil {
		return nil, domain.Wrap(err, "StoryService.TogglePrivacy")
	}
	story.Private = !story.Private

	s.invalidate(ctx, storyID)

	s.logg.Info("story privacy changed", "story_id", storyID, "private", story.Private)
	return story, nil
}

// References finds encyclopedia articles about a story's title.
func (s *StoryService) References(ctx context.Context, userID, storyID string, limit int) ([]domain.Reference, error) {
	if limit < 1 || limit > MaxRefLimit {
		return nil, domain.Invalidf("limit must be between 1 and %d", MaxRefLimit)
	}

	story, err := s.GetStory(ctx, userID, storyID)
	if err != nil {
		return nil, domain.Wrap(err, "StoryService.References")
	}

	if s.references == nil {
		return nil, domain.Unavailable("StoryService.References", errors.New("reference search is not configured"))
	}

	refs, err := s.references.Search(ctx, story.Title, limit)
	if err != nil {
		return nil, domain.Wrap(err, "StoryService.References")
	}
	return refs, nil
}

// Generate writes, illustrates and stores a new story for userID.
// A user runs one generation at a time. On failure every uploaded
// image is removed and the author is told by mail.
func (s *StoryService) Generate(ctx context.Context, userID string, req GenerateRequest) (*domain.Story, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Style = strings.TrimSpace(req.Style)
	req.Accessibility = strings.TrimSpace(req.Accessibility)

	if req.Prompt == "" {
		return nil, domain.Invalid("prompt is required")
	}
	if len(req.Prompt) > domain.MaxDescriptionLength {
		return nil, domain.Invalidf("prompt must be at most %d characters", domain.MaxDescriptionLength)
	}
	if req.Style == "" {
		return nil, domain.Invalid("style is required")
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.Wrap(err, "StoryService.Generate")
	}

	if s.writer == nil || s.illustrator == nil || s.images == nil {
		return nil, domain.Unavailable("StoryService.Generate", errors.New("story generation is not configured"))
	}

	release, err := s.acquireSlot(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	story, err := s.generate(ctx, author, req)
	if err != nil {
		s.notifyFailed(ctx, author, req.Prompt)
		return nil, domain.Wrap(err, "StoryService.Generate")
	}

	s.notifyReady(ctx, author, story)

	s.logg.Info("story generated", "story_id", story.ID, "author_id", userID, "pages", len(story.Pages))
	s.narrateLater(ctx, story)
	return story, nil
}

func (s *StoryService) generate(ctx context.Context, author *domain.User, req GenerateRequest) (*domain.Story, error) {
	draft, err := s.writer.Draft(ctx, req.Prompt, req.Accessibility)
	if err != nil {
		return nil, err
	}
	if len(draft.Scenes) == 0 || len(draft.Scenes) != len(draft.Summaries) {
		return nil, domain.Unavailable("StoryWriter.Draft",
			fmt.Errorf("draft has %d scenes and %d summaries", len(draft.Scenes), len(draft.Summaries)))
	}

	story, err := domain.NewStory(uuid.New().String(), author.ID, draft.Title, req.Prompt, req.Private)
	if err != nil {
		return nil, domain.Unavailable("StoryWriter.Draft", err)
	}

	keys, urls, err := s.illustrate(ctx, story.ID, draft.Scenes, req)
	if err != nil {
		s.removeObjects(ctx, s.images, story.ID, keys)
		return nil, err
	}

	story.Pages = draft.Summaries
	story.Images = urls
	story.Author = author.Username

	if err := story.Validate(); err != nil {
		s.removeObjects(ctx, s.images, story.ID, keys)
		return nil, domain.Fault("StoryService.generate", err)
	}

	if err := s.storyRepo.Create(ctx, story); err != nil {
		s.removeObjects(ctx, s.images, story.ID, keys)
		return nil, err
	}
	return story, nil
}

// illustrate renders and uploads every scene. keys lists every uploaded
// object, including those uploaded before a failure.
func (s *StoryService) illustrate(ctx context.Context, storyID string, scenes []string, req GenerateRequest) (keys, urls []string, err error) {
	stamp := s.now().UTC().Unix()
	keys = make([]string, len(scenes))
	urls = make([]string, len(scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(illustrateLimit)

	for i, scene := range scenes {
		g.Go(func() error {
			png, err := s.illustrator.Illustrate(gctx, scene, req.Style, req.Accessibility)
			if err != nil {
				return err
			}

			out, err := s.images.Upload(gctx, &blob.UploadInput{
				Key:         fmt.Sprintf("images/%s/scene_%d_%d.png", storyID, i+1, stamp),
				Body:        bytes.NewReader(png),
				ContentType: imageContentType,
				Metadata:    map[string]string{"story-id": storyID},
			})
			if err != nil {
				return err
			}
			keys[i] = out.Key
			urls[i] = out.URL
			return nil
		})
	}

	err = g.Wait()
	return uploadedKeys(keys), urls, err
}

func uploadedKeys(keys []string) []string {
	uploaded := keys[:0:0]
	for _, k := range keys {
		if k != "" {
			uploaded = append(uploaded, k)
		}
	}
	return uploaded
}

// Wait blocks until background narration has finished.
func (s *StoryService) Wait() {
	s.background.Wait()
}

// narrateLater records the story's pages as audio once the request is
// done. A story without pages, or one already narrated, is skipped.
func (s *StoryService) narrateLater(ctx context.Context, story *domain.Story) {
	if s.narrator == nil || s.audio == nil || len(story.Pages) == 0 || len(story.Audio) > 0 {
		return
	}
	storyID, pages := story.ID, slices.Clone(story.Pages)

	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), narrationTimeout)
		defer cancel()

		// The story stays readable without audio.
		if err := s.narrate(ctx, storyID, pages); err != nil {
			s.logg.WithError(err).Warn("story narration failed", "story_id", storyID)
		}
	}()
}

func (s *StoryService) narrate(ctx context.Context, storyID string, pages []string) error {
	stamp := s.now().UTC().Unix()
	keys := make([]string, len(pages))
	urls := make([]string, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(narrateLimit)

	for i, page := range pages {
		g.Go(func() error {
			mp3, err := s.narrator.Narrate(gctx, page)
			if err != nil {
				return err
			}

			out, err := s.audio.Upload(gctx, &blob.UploadInput{
				Key:         fmt.Sprintf("audio/%s/page_%d_%d.mp3", storyID, i+1, stamp),
				Body:        bytes.NewReader(mp3),
				ContentType: audioContentType,
				Metadata:    map[string]string{"story-id": storyID},
			})
			if err != nil {
				return err
			}
			keys[i] = out.Key
			urls[i] = out.URL
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = s.storyRepo.SetAudio(ctx, storyID, urls)
	}
	if err != nil {
		s.removeObjects(ctx, s.audio, storyID, uploadedKeys(keys))
		return domain.Wrap(err, "StoryService.narrate")
	}

	s.invalidate(ctx, storyID)
	s.logg.Info("story narrated", "story_id", storyID, "pages", len(urls))
	return nil
}

func (s *StoryService) removeObjects(ctx context.Context, store MediaStore, storyID string, keys []string) {
	if len(keys) == 0 {
		return
	}
	// The request context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	failed, err := store.DeleteMultiple(ctx, keys)
	if err != nil || len(failed) > 0 {
		s.logg.WithError(err).Warn("failed to remove objects of abandoned story", "story_id", storyID, "failed_keys", failed)
	}
}

// acquireSlot takes the user's generation slot. A cache outage does not
// block generation.
func (s *StoryService) acquireSlot(ctx context.Context, userID string) (func(), error) {
	noop := func() {}
	if s.storyCache == nil {
		return noop, nil
	}

	ok, err := s.storyCache.AcquireGeneration(ctx, userID)
	if err != nil {
		s.logg.Warn("generation slot unavailable", "error", err, "user_id", userID)
		return noop, nil
	}
	if !ok {
		return nil, domain.Conflict("A story is already being generated for you")
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.storyCache.ReleaseGeneration(ctx, userID); err != nil {
			s.logg.Warn("generation slot release failed", "error", err, "user_id", userID)
		}
	}, nil
}

func (s *StoryService) notifyReady(ctx context.Context, to *domain.User, story *domain.Story) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.StoryReady(context.WithoutCancel(ctx), to, story); err != nil {
		s.logg.WithError(err).Warn("story ready notification failed", "user_id", to.ID, "story_id", story.ID)
	}
}

func (s *StoryService) notifyFailed(ctx context.Context, to *domain.User, prompt string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.StoryFailed(context.WithoutCancel(ctx), to, prompt); err != nil {
		s.logg.WithError(err).Warn("story failure notification failed", "user_id", to.ID)
	}
}

func (s *StoryService) invalidate(ctx context.Context, storyID string) {
	if s.storyCache == nil {
		return
	}
	if err := s.storyCache.Invalidate(ctx, storyID); err != nil {
		s.logg.Warn("cache invalidate failed", "error", err, "story_id", storyID)
	}
}
