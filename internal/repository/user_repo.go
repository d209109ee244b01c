package repository

import (
	"context"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// userRepo is the PostgreSQL implementation of domain.UserRepository
// It contains NO business logic - only data persistence
type userRepo struct {
	db   *pgxpool.Pool
	logg *logger.Logger
}

// NewUserRepo creates a Postgres-backed user repository
func NewUserRepo(db *pgxpool.Pool, logg *logger.Logger) domain.UserRepository {
	return &userRepo{db: db, logg: logg}
}

const userColumns = "u.id, u.username, u.email, u.bio, u.profile_picture, u.created_at, u.updated_at"

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Bio,
		&u.ProfilePicture,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID fetches a user by ID
// Responsibility: Query database and translate errors to domain errors
func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := "SELECT " + userColumns + " FROM users u WHERE u.id = $1"

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		err = translate(err, "userRepo.GetByID", "user", id)
		if domain.KindOf(err) == domain.KindUnavailable {
			r.logg.Error("failed to get user by id", "error", err, "user_id", id)
		}
		return nil, err
	}

	return u, nil
}

// GetByUsername fetches a user by username, case-insensitively
func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := "SELECT " + userColumns + " FROM users u WHERE LOWER(u.username) = LOWER($1)"

	u, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		err = translate(err, "userRepo.GetByUsername", "user", username)
		if domain.KindOf(err) == domain.KindUnavailable {
			r.logg.Error("failed to get user by username", "error", err, "username", username)
		}
		return nil, err
	}

	return u, nil
}

// Create inserts a new user
// Responsibility: Execute INSERT and handle database constraints
func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (id, username, email, bio, profile_picture, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Bio,
		user.ProfilePicture,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		err = translate(err, "userRepo.Create", "user", user.ID)
		if domain.KindOf(err) == domain.KindUnavailable {
			r.logg.Error("failed to create user", "error", err, "user_id", user.ID)
		}
		return err
	}

	return nil
}

// Update updates an existing user
// Responsibility: Execute UPDATE and handle database errors
func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	query := `UPDATE users SET username = $2, bio = $3, profile_picture = $4, updated_at = $5
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Bio,
		user.ProfilePicture,
		user.UpdatedAt,
	)
	if err != nil {
		err = translate(err, "userRepo.Update", "user", user.ID)
		if domain.KindOf(err) == domain.KindUnavailable {
			r.logg.Error("failed to update user", "error", err, "user_id", user.ID)
		}
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.NotFound("user", user.ID)
	}

	return nil
}

// Follow records that followerID follows followeeID
func (r *userRepo) Follow(ctx context.Context, followerID, followeeID string) error {
	query := `INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, followerID, followeeID); err != nil {
		err = translate(err, "userRepo.Follow", "user", followeeID)
		if domain.KindOf(err) == domain.KindUnavailable {
			r.logg.Error("failed to follow user", "error", err, "follower_id", followerID, "followee_id", followeeID)
		}
		return err
	}

	return nil
}

// Unfollow removes the follow edge, reporting whether one existed
func (r *userRepo) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	query := "DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2"

	result, err := r.db.Exec(ctx, query, followerID, followeeID)
	if err != nil {
		r.logg.Error("failed to unfollow user", "error", err, "follower_id", followerID, "followee_id", followeeID)
		return false, translate(err, "userRepo.Unfollow", "user", followeeID)
	}

	return result.RowsAffected() > 0, nil
}

// IsFollowing reports whether followerID follows followeeID
func (r *userRepo) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	query := "SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)"

	var exists bool
	if err := r.db.QueryRow(ctx, query, followerID, followeeID).Scan(&exists); err != nil {
		r.logg.Error("failed to check follow", "error", err, "follower_id", followerID, "followee_id", followeeID)
		return false, translate(err, "userRepo.IsFollowing", "user", followeeID)
	}

	return exists, nil
}

// Followers lists the users following userID, newest first
func (r *userRepo) Followers(ctx context.Context, userID string) ([]*domain.User, error) {
	query := "SELECT " + userColumns + ` FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = $1
		ORDER BY f.created_at DESC`

	return r.list(ctx, "userRepo.Followers", query, userID)
}

// Following lists the users userID follows, newest first
func (r *userRepo) Following(ctx context.Context, userID string) ([]*domain.User, error) {
	query := "SELECT " + userColumns + ` FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC`

	return r.list(ctx, "userRepo.Following", query, userID)
}

func (r *userRepo) list(ctx context.Context, op, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logg.Error("failed to list users", "error", err, "op", op)
		return nil, domain.Unavailable(op, err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			r.logg.Error("failed to scan user row", "error", err, "op", op)
			return nil, domain.Unavailable(op, err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		r.logg.Error("error iterating user rows", "error", err, "op", op)
		return nil, domain.Unavailable(op, err)
	}

	return users, nil
}
