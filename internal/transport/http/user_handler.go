package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/usecase"
)

// UserHandler handles HTTP requests for user operations
// Transport layer - handles HTTP concerns only, delegates business logic to service
type UserHandler struct {
	userService *usecase.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *usecase.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CreateUserRequest represents the request body for creating a profile
type CreateUserRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Bio            string `json:"bio"`
	ProfilePicture string `json:"profile_picture"`
}

// UpdateUserRequest represents the request body for updating a profile.
// Omitted fields are left unchanged.
type UpdateUserRequest struct {
	Username       *string `json:"username,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
}

// UserResponse represents the response body for user operations
type UserResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	Bio            string `json:"bio"`
	ProfilePicture string `json:"profile_picture"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// PublicUserResponse is what other users see.
type PublicUserResponse struct {
	Username       string           `json:"username"`
	Bio            string           `json:"bio"`
	ProfilePicture string           `json:"profile_picture"`
	Followers      int              `json:"followers"`
	Following      int              `json:"following"`
	PublicStories  []*StoryResponse `json:"public_stories"`
}

// toUserResponse converts a domain user to a response DTO
func toUserResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Bio:            u.Bio,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toUserListResponse converts users for follower lists, without email
func toUserListResponse(users []*domain.User) []*UserResponse {
	result := make([]*UserResponse, len(users))
	for i, u := range users {
		r := toUserResponse(u)
		r.Email = ""
		result[i] = r
	}
	return result
}

// callerID returns the authenticated caller. Routes that reach handlers
// sit behind Authenticate, so a missing id is a wiring fault.
func callerID(r *http.Request) (string, error) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		return "", domain.Unauthenticated("no authenticated user")
	}
	return id, nil
}

// CreateProfile handles POST /api/users/me
func (h *UserHandler) CreateProfile(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	user, err := h.userService.CreateProfile(r.Context(), uid, req.Username, req.Email, req.Bio, req.ProfilePicture)
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusCreated, toUserResponse(user))
	return nil
}

// Me handles GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	user, err := h.userService.GetUser(r.Context(), uid)
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, toUserResponse(user))
	return nil
}

// Update handles PUT /api/users/me
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	user, err := h.userService.UpdateUser(r.Context(), uid, domain.UserUpdate{
		Username:       req.Username,
		Bio:            req.Bio,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, toUserResponse(user))
	return nil
}

// Follow handles POST /api/users/follow/{username}
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	username := chi.URLParam(r, "username")
	if err := h.userService.Follow(r.Context(), uid, username); err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Successfully followed " + username})
	return nil
}

// Unfollow handles POST /api/users/unfollow/{username}
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	username := chi.URLParam(r, "username")
	if err := h.userService.Unfollow(r.Context(), uid, username); err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Successfully unfollowed " + username})
	return nil
}

// IsFollowing handles GET /api/users/is-following/{username}
func (h *UserHandler) IsFollowing(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	following, err := h.userService.IsFollowing(r.Context(), uid, chi.URLParam(r, "username"))
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, map[string]bool{"is_following": following})
	return nil
}

// Followers handles GET /api/users/followers
func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	users, err := h.userService.Followers(r.Context(), uid)
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, toUserListResponse(users))
	return nil
}

// Following handles GET /api/users/following
func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	users, err := h.userService.Following(r.Context(), uid)
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, toUserListResponse(users))
	return nil
}

// PublicProfile handles GET /api/users/username/{username}
func (h *UserHandler) PublicProfile(w http.ResponseWriter, r *http.Request) error {
	p, err := h.userService.PublicProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, &PublicUserResponse{
		Username:       p.User.Username,
		Bio:            p.User.Bio,
		ProfilePicture: p.User.ProfilePicture,
		Followers:      p.FollowerCount,
		Following:      p.FollowingCount,
		PublicStories:  toStoryListResponse(p.PublicStories),
	})
	return nil
}

// PublicStories handles GET /api/users/me/public_posts
func (h *UserHandler) PublicStories(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}
	stories, err := h.userService.PublicStories(r.Context(), uid)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, toStoryListResponse(stories))
	return nil
}

// PrivateStories handles GET /api/users/me/private_posts
func (h *UserHandler) PrivateStories(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}
	stories, err := h.userService.PrivateStories(r.Context(), uid)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, toStoryListResponse(stories))
	return nil
}

// SavedStories handles GET /api/users/me/saved_posts
func (h *UserHandler) SavedStories(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}
	stories, err := h.userService.SavedStories(r.Context(), uid)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, toStoryListResponse(stories))
	return nil
}

// LikedStories handles GET /api/users/me/liked_posts
func (h *UserHandler) LikedStories(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}
	stories, err := h.userService.LikedStories(r.Context(), uid)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, toStoryListResponse(stories))
	return nil
}
