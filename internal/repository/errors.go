package repository

import (
	"errors"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes we translate.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// constraintMessages maps unique and check constraints to caller-safe text.
var constraintMessages = map[string]string{
	"users_username_key": "Username already exists",
	"users_pkey":         "Profile already exists",
	"stories_pkey":       "Story already exists",
	"follows_check":      "You cannot follow yourself",
}

// callerProfile names the caller's own profile when a foreign key shows it
// is missing.
const callerProfile = "profile"

// foreignKeyTargets maps foreign-key constraints to the resource they point
// at. Keys that point at the acting user report the caller's profile, not
// the row the statement targeted.
var foreignKeyTargets = map[string]string{
	"follows_follower_id_fkey":  callerProfile,
	"follows_followee_id_fkey":  "user",
	"stories_author_id_fkey":    callerProfile,
	"story_likes_story_id_fkey": "story",
	"story_likes_user_id_fkey":  callerProfile,
	"story_saves_story_id_fkey": "story",
	"story_saves_user_id_fkey":  callerProfile,
}

// translate converts a pgx error into a domain error.
// resource and id describe the row the statement targeted.
func translate(err error, op, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(resource, id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			if msg, ok := constraintMessages[pgErr.ConstraintName]; ok {
				return domain.Conflict(msg)
			}
			return domain.Conflict(resource + " already exists")
		case foreignKeyViolation:
			if foreignKeyTargets[pgErr.ConstraintName] == callerProfile {
				return domain.NotFound(callerProfile, "")
			}
			return domain.NotFound(resource, id)
		case checkViolation:
			if msg, ok := constraintMessages[pgErr.ConstraintName]; ok {
				return domain.Invalid(msg)
			}
			return domain.Invalid(resource + " violates a constraint")
		}
	}

	return domain.Unavailable(op, err)
}
