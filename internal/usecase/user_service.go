package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
)

// UserService orchestrates profile and follow operations
// This layer contains business logic and coordinates between domain and repository
type UserService struct {
	userRepo  domain.UserRepository
	storyRepo domain.StoryRepository
	userCache UserCache
	logg      *logger.Logger
}

// NewUserService creates a new user service. userCache may be nil.
func NewUserService(userRepo domain.UserRepository, storyRepo domain.StoryRepository, userCache UserCache, logg *logger.Logger) *UserService {
	return &UserService{
		userRepo:  userRepo,
		storyRepo: storyRepo,
		userCache: userCache,
		logg:      logg,
	}
}

// PublicProfile is what any signed-in user may see about another.
type PublicProfile struct {
	User           *domain.User
	PublicStories  []*domain.Story
	FollowerCount  int
	FollowingCount int
}

// CreateProfile registers the caller's profile
// Business logic: username must be free (case-insensitive), one profile per account
func (s *UserService) CreateProfile(ctx context.Context, userID, username, email, bio, picture string) (*domain.User, error) {
	user, err := domain.NewUser(userID, username, email, bio, picture)
	if err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err == nil {
		return nil, domain.Conflict("Profile already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Wrap(err, "UserService.CreateProfile")
	}

	if err := s.ensureUsernameFree(ctx, user.Username, userID); err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, domain.Wrap(err, "UserService.CreateProfile")
	}

	s.logg.Info("user profile created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// GetUser retrieves a user by ID
// Uses cache-aside pattern: check cache first, then database
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Invalid("user id is required")
	}

	if s.userCache != nil {
		if user, err := s.userCache.Get(ctx, id); err == nil {
			return user, nil
		} else if !errors.Is(err, domain.ErrCacheMiss) {
			s.logg.Warn("cache get failed", "error", err, "user_id", id)
		}
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Wrap(err, "UserService.GetUser")
	}

	if s.userCache != nil {
		if err := s.userCache.Set(ctx, user); err != nil {
			s.logg.Warn("cache set failed", "error", err, "user_id", id)
		}
	}

	return user, nil
}

// UpdateUser applies profile changes
// Business logic: a new username must not belong to anyone else
func (s *UserService) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Wrap(err, "UserService.UpdateUser")
	}

	renamed := upd.Username != nil && !strings.EqualFold(strings.TrimSpace(*upd.Username), user.Username)

	if err := user.Apply(upd); err != nil {
		return nil, err
	}

	if renamed {
		if err := s.ensureUsernameFree(ctx, user.Username, id); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, domain.Wrap(err, "UserService.UpdateUser")
	}

	s.invalidate(ctx, id)

	s.logg.Info("user updated successfully", "user_id", id)
	return user, nil
}

func (s *UserService) ensureUsernameFree(ctx context.Context, username, ownerID string) error {
	existing, err := s.userRepo.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return domain.Wrap(err, "UserService.ensureUsernameFree")
	case existing.ID != ownerID:
		return domain.Conflict("Username already exists")
	default:
		return nil
	}
}

// Follow makes userID follow the user called username
func (s *UserService) Follow(ctx context.Context, userID, username string) error {
	target, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return domain.Wrap(err, "UserService.Follow")
	}

	if target.ID == userID {
		return domain.Invalid("You cannot follow yourself")
	}

	if err := s.userRepo.Follow(ctx, userID, target.ID); err != nil {
		return domain.Wrap(err, "UserService.Follow")
	}

	s.logg.Info("user followed", "follower_id", userID, "followee_id", target.ID)
	return nil
}

// Unfollow removes the follow edge from userID to username
func (s *UserService) Unfollow(ctx context.Context, userID, username string) error {
	target, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return domain.Wrap(err, "UserService.Unfollow")
	}

	removed, err := s.userRepo.Unfollow(ctx, userID, target.ID)
	if err != nil {
		return domain.Wrap(err, "UserService.Unfollow")
	}
	if !removed {
		return domain.Invalid("You are not following this user")
	}

	s.logg.Info("user unfollowed", "follower_id", userID, "followee_id", target.ID)
	return nil
}

// IsFollowing reports whether userID follows username
func (s *UserService) IsFollowing(ctx context.Context, userID, username string) (bool, error) {
	target, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return false, domain.Wrap(err, "UserService.IsFollowing")
	}

	following, err := s.userRepo.IsFollowing(ctx, userID, target.ID)
	if err != nil {
		return false, domain.Wrap(err, "UserService.IsFollowing")
	}
	return following, nil
}

func (s *UserService) Followers(ctx context.Context, userID string) ([]*domain.User, error) {
	users, err := s.userRepo.Followers(ctx, userID)
	if err != nil {
		return nil, domain.Wrap(err, "UserService.Followers")
	}
	return users, nil
}

func (s *UserService) Following(ctx context.Context, userID string) ([]*domain.User, error) {
	users, err := s.userRepo.Following(ctx, userID)
	if err != nil {
		return nil, domain.Wrap(err, "UserService.Following")
	}
	return users, nil
}

// PublicProfile returns the public view of username
func (s *UserService) PublicProfile(ctx context.Context, username string) (*PublicProfile, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, domain.Wrap(err, "UserService.PublicProfile")
	}

	stories, err := s.storyRepo.ListByAuthor(ctx, user.ID, false)
	if err != nil {
		return nil, domain.Wrap(err, "UserService.PublicProfile")
	}

	followers, err := s.userRepo.Followers(ctx, user.ID)
	if err != nil {
		return nil, domain.Wrap(err, "UserService.PublicProfile")
	}

	following, err := s.userRepo.Following(ctx, user.ID)
	if err != nil {
		return nil, domain.Wrap(err, "UserService.PublicProfile")
	}

	return &PublicProfile{
		User:           user,
		PublicStories:  stories,
		FollowerCount:  len(followers),
		FollowingCount: len(following),
	}, nil
}

// PublicStories lists the caller's public stories
func (s *UserService) PublicStories(ctx context.Context, userID string) ([]*domain.Story, error) {
	return s.listStories(ctx, "UserService.PublicStories", userID, func() ([]*domain.Story, error) {
		return s.storyRepo.ListByAuthor(ctx, userID, false)
	})
}

// PrivateStories lists the caller's private stories
func (s *UserService) PrivateStories(ctx context.Context, userID string) ([]*domain.Story, error) {
	return s.listStories(ctx, "UserService.PrivateStories", userID, func() ([]*domain.Story, error) {
		return s.storyRepo.ListByAuthor(ctx, userID, true)
	})
}

// SavedStories lists stories the caller saved, hiding other authors' private ones
func (s *UserService) SavedStories(ctx context.Context, userID string) ([]*domain.Story, error) {
	return s.listStories(ctx, "UserService.SavedStories", userID, func() ([]*domain.Story, error) {
		return s.storyRepo.ListSavedBy(ctx, userID)
	})
}

// LikedStories lists stories the caller liked, hiding other authors' private ones
func (s *UserService) LikedStories(ctx context.Context, userID string) ([]*domain.Story, error) {
	return s.listStories(ctx, "UserService.LikedStories", userID, func() ([]*domain.Story, error) {
		return s.storyRepo.ListLikedBy(ctx, userID)
	})
}

// listStories confirms the profile exists before running list.
func (s *UserService) listStories(ctx context.Context, op, userID string, list func() ([]*domain.Story, error)) ([]*domain.Story, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, domain.Wrap(err, op)
	}

	stories, err := list()
	if err != nil {
		return nil, domain.Wrap(err, op)
	}
	return stories, nil
}

func (s *UserService) invalidate(ctx context.Context, id string) {
	if s.userCache == nil {
		return
	}
	if err := s.userCache.Invalidate(ctx, id); err != nil {
		s.logg.Warn("cache invalidate failed", "error", err, "user_id", id)
	}
}
