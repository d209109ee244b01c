package domain_test

import (
	"strings"
	"testing"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		id       string
		username string
		email    string
		wantErr  bool
	}{
		{"valid", "uid-1", "story.teller_1", "a@example.com", false},
		{"email optional", "uid-1", "teller", "", false},
		{"missing id", "", "teller", "", true},
		{"short username", "uid-1", "ab", "", true},
		{"long username", "uid-1", strings.Repeat("a", 31), "", true},
		{"bad characters", "uid-1", "story teller", "", true},
		{"bad email", "uid-1", "teller", "not-an-email", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := domain.NewUser(tt.id, tt.username, tt.email, "", "")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, u.Username)
		})
	}
}

func TestUser_Apply(t *testing.T) {
	t.Parallel()

	u, err := domain.NewUser("uid-1", "teller", "", "old bio", "")
	require.NoError(t, err)

	name, bio := "new_teller", "  fresh bio  "
	require.NoError(t, u.Apply(domain.UserUpdate{Username: &name, Bio: &bio}))
	assert.Equal(t, "new_teller", u.Username)
	assert.Equal(t, "fresh bio", u.Bio)

	bad := "x"
	err = u.Apply(domain.UserUpdate{Username: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.Equal(t, "new_teller", u.Username)
}

func TestStory_Visibility(t *testing.T) {
	t.Parallel()

	s, err := domain.NewStory("s1", "author", "Title", "Desc", true)
	require.NoError(t, err)

	assert.True(t, s.VisibleTo("author"))
	assert.False(t, s.VisibleTo("reader"))

	s.Private = false
	assert.True(t, s.VisibleTo("reader"))
	assert.True(t, s.IsAuthor("author"))
	assert.False(t, s.IsAuthor("reader"))
}

func TestNewStory_Validation(t *testing.T) {
	t.Parallel()

	_, err := domain.NewStory("s1", "author", "  ", "Desc", false)
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = domain.NewStory("s1", "author", "Title", "", false)
	assert.ErrorIs(t, err, domain.ErrInvalid)

	s := &domain.Story{ID: "s1", AuthorID: "a", Title: "T", Description: "D", Pages: []string{"p1", "p2"}, Images: []string{"i1"}}
	assert.ErrorIs(t, s.Validate(), domain.ErrInvalid)
}
