package domain

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// User is a storyteller profile.
// ID is the subject of the caller's bearer token.
type User struct {
	ID             string
	Username       string
	Email          string
	Bio            string
	ProfilePicture string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserRepository defines the contract for user persistence
// The domain defines the interface, infrastructure implements it
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error

	// Follow is idempotent: following twice leaves one edge.
	Follow(ctx context.Context, followerID, followeeID string) error
	// Unfollow reports whether an edge was removed.
	Unfollow(ctx context.Context, followerID, followeeID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	Followers(ctx context.Context, userID string) ([]*User, error)
	Following(ctx context.Context, userID string) ([]*User, error)
}

const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MaxBioLength      = 500
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// NewUser creates a new user with validation
// Business rule: username must be well-formed, email optional but valid when set
func NewUser(id, username, email, bio, picture string) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:             strings.TrimSpace(id),
		Username:       strings.TrimSpace(username),
		Email:          strings.ToLower(strings.TrimSpace(email)),
		Bio:            strings.TrimSpace(bio),
		ProfilePicture: strings.TrimSpace(picture),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

// Validate ensures the user entity is in a valid state
func (u *User) Validate() error {
	if u.ID == "" {
		return Invalid("user id is required")
	}
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if u.Email != "" && !emailRegex.MatchString(u.Email) {
		return Invalid("email address is not valid")
	}
	if len(u.Bio) > MaxBioLength {
		return Invalidf("bio must be at most %d characters", MaxBioLength)
	}
	return nil
}

// ValidateUsername checks length and character set.
func ValidateUsername(username string) error {
	n := len(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return Invalidf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return Invalid("username may only contain letters, digits, '_' and '.'")
	}
	return nil
}

// UserUpdate carries optional profile changes. Nil fields are left alone.
type UserUpdate struct {
	Username       *string
	Bio            *string
	ProfilePicture *string
}

// Apply validates and applies the update to u.
func (u *User) Apply(upd UserUpdate) error {
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if err := ValidateUsername(name); err != nil {
			return err
		}
		u.Username = name
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if len(bio) > MaxBioLength {
			return Invalidf("bio must be at most %d characters", MaxBioLength)
		}
		u.Bio = bio
	}
	if upd.ProfilePicture != nil {
		u.ProfilePicture = strings.TrimSpace(*upd.ProfilePicture)
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}
