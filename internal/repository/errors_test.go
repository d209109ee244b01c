package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantKind   domain.Kind
		wantDetail string
	}{
		{
			name:     "no rows becomes not found",
			err:      pgx.ErrNoRows,
			wantKind: domain.KindNotFound,
		},
		{
			name:     "wrapped no rows becomes not found",
			err:      fmt.Errorf("scan: %w", pgx.ErrNoRows),
			wantKind: domain.KindNotFound,
		},
		{
			name:       "known unique constraint",
			err:        &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_username_key"},
			wantKind:   domain.KindConflict,
			wantDetail: "Username already exists",
		},
		{
			name:       "unknown unique constraint",
			err:        &pgconn.PgError{Code: uniqueViolation, ConstraintName: "other"},
			wantKind:   domain.KindConflict,
			wantDetail: "user already exists",
		},
		{
			name:     "foreign key violation",
			err:      &pgconn.PgError{Code: foreignKeyViolation},
			wantKind: domain.KindNotFound,
		},
		{
			name:       "self follow check",
			err:        &pgconn.PgError{Code: checkViolation, ConstraintName: "follows_check"},
			wantKind:   domain.KindInvalid,
			wantDetail: "You cannot follow yourself",
		},
		{
			name:     "other postgres error",
			err:      &pgconn.PgError{Code: "57P01", Message: "terminating connection"},
			wantKind: domain.KindUnavailable,
		},
		{
			name:     "network error",
			err:      errors.New("dial tcp 10.0.0.1:5432: connection refused"),
			wantKind: domain.KindUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := translate(tt.err, "test.op", "user", "42")

			de, ok := domain.AsError(got)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, de.Kind())
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, de.Detail())
			}
		})
	}
}

func TestTranslate_NotFoundCarriesIdentity(t *testing.T) {
	t.Parallel()

	de, ok := domain.AsError(translate(pgx.ErrNoRows, "storyRepo.GetByID", "story", "0"))
	require.True(t, ok)
	assert.Equal(t, "story", de.Resource())
	assert.Equal(t, "0", de.ID())
}

func TestTranslate_UnavailableKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset by peer")
	got := translate(cause, "userRepo.GetByID", "user", "1")

	assert.ErrorIs(t, got, domain.ErrUnavailable)
	assert.ErrorIs(t, got, cause)
	assert.Contains(t, got.Error(), "userRepo.GetByID")
}

func TestTranslate_ForeignKeyNamesTheMissingRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		constraint   string
		resource     string
		id           string
		wantResource string
		wantID       string
	}{
		{"story_likes_story_id_fkey", "story", "s-1", "story", "s-1"},
		{"story_likes_user_id_fkey", "story", "s-1", "profile", ""},
		{"story_saves_user_id_fkey", "story", "s-1", "profile", ""},
		{"follows_followee_id_fkey", "user", "u-2", "user", "u-2"},
		{"follows_follower_id_fkey", "user", "u-2", "profile", ""},
		{"stories_author_id_fkey", "story", "s-1", "profile", ""},
		{"", "story", "s-1", "story", "s-1"},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			t.Parallel()

			err := &pgconn.PgError{Code: foreignKeyViolation, ConstraintName: tt.constraint}
			de, ok := domain.AsError(translate(err, "test.op", tt.resource, tt.id))
			require.True(t, ok)
			assert.Equal(t, domain.KindNotFound, de.Kind())
			assert.Equal(t, tt.wantResource, de.Resource())
			assert.Equal(t, tt.wantID, de.ID())
		})
	}
}
