package repository

import (
	"context"
	"encoding/json"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// storyRepo is the PostgreSQL implementation of domain.StoryRepository
// It contains NO business logic - only data persistence
type storyRepo struct {
	db   *pgxpool.Pool
	logg *logger.Logger
}

// NewStoryRepo creates a Postgres-backed story repository
func NewStoryRepo(db *pgxpool.Pool, logg *logger.Logger) domain.StoryRepository {
	return &storyRepo{db: db, logg: logg}
}

const storySelect = `SELECT s.id, s.author_id, u.username, s.title, s.description, s.pages, s.images, s.audio, s.private,
	(SELECT COUNT(*) FROM story_likes l WHERE l.story_id = s.id),
	(SELECT COUNT(*) FROM story_saves v WHERE v.story_id = s.id),
	s.created_at
	FROM stories s JOIN users u ON u.id = s.author_id`

func scanStory(row pgx.Row) (*domain.Story, error) {
	var (
		s          domain.Story
		pagesJSON  []byte
		imagesJSON []byte
		audioJSON  []byte
	)
	err := row.Scan(
		&s.ID,
		&s.AuthorID,
		&s.Author,
		&s.Title,
		&s.Description,
		&pagesJSON,
		&imagesJSON,
		&audioJSON,
		&s.Private,
		&s.Likes,
		&s.Saves,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(pagesJSON, &s.Pages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(imagesJSON, &s.Images); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(audioJSON, &s.Audio); err != nil {
		return nil, err
	}

	return &s, nil
}

// GetByID fetches a story by ID
// Responsibility: Query database and translate errors to domain errors
func (r *storyRepo) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	s, err := scanStory(r.db.QueryRow(ctx, storySelect+" WHERE s.id = $1", id))
	if err != nil {
		err = translate(err, "storyRepo.GetByID", "story", id)
		if domain.KindOf(err) == domain.KindUnavailable {
			r.logg.Error("failed to get story by id", "error", err, "story_id", id)
		}
		return nil, err
	}

	return s, nil
}

// Create inserts a new story
func (r *storyRepo) Create(ctx context.Context, story *domain.Story) error {
	pages, err := json.Marshal(nonNil(story.Pages))
	if err != nil {
		return domain.Fault("storyRepo.Create", err)
	}
	images, err := json.Marshal(nonNil(story.Images))
	if err != nil {
		return domain.Fault("storyRepo.Create", err)
	}

	query := `INSERT INTO stories (id, author_id, title, description, pages, images, private, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		story.ID,
		story.AuthorID,
		story.Title,
		story.Description,
		pages,
		images,
		story.Private,
		story.CreatedAt,
	)
	if err != nil {
		err = translate(err, "storyRepo.Create", "story", story.ID)
		if domain.KindOf(err) == domain.KindUnavailable {
			r.logg.Error("failed to create story", "error", err, "story_id", story.ID)
		}
		return err
	}

	return nil
}

// SetPrivate updates a story's visibility
func (r *storyRepo) SetPrivate(ctx context.Context, id string, private bool) error {
	result, err := r.db.Exec(ctx, "UPDATE stories SET private = $2 WHERE id = $1", id, private)
	if err != nil {
		r.logg.Error("failed to update story privacy", "error", err, "story_id", id)
		return translate(err, "storyRepo.SetPrivate", "story", id)
	}

	if result.RowsAffected() == 0 {
		return domain.NotFound("story", id)
	}

	return nil
}

// SetAudio stores the narration URLs of a story
func (r *storyRepo) SetAudio(ctx context.Context, id string, urls []string) error {
	audio, err := json.Marshal(nonNil(urls))
	if err != nil {
		return domain.Fault("storyRepo.SetAudio", err)
	}

	result, err := r.db.Exec(ctx, "UPDATE stories SET audio = $2 WHERE id = $1", id, audio)
	if err != nil {
		r.logg.Error("failed to store story audio", "error", err, "story_id", id)
		return translate(err, "storyRepo.SetAudio", "story", id)
	}

	if result.RowsAffected() == 0 {
		return domain.NotFound("story", id)
	}

	return nil
}

// ListRecentPublic lists public stories, newest first
func (r *storyRepo) ListRecentPublic(ctx context.Context, limit, offset int) ([]*domain.Story, error) {
	query := storySelect + " WHERE NOT s.private ORDER BY s.created_at DESC LIMIT $1 OFFSET $2"
	return r.list(ctx, "storyRepo.ListRecentPublic", query, limit, offset)
}

// ListByAuthor lists an author's public or private stories, newest first
func (r *storyRepo) ListByAuthor(ctx context.Context, authorID string, private bool) ([]*domain.Story, error) {
	query := storySelect + " WHERE s.author_id = $1 AND s.private = $2 ORDER BY s.created_at DESC"
	return r.list(ctx, "storyRepo.ListByAuthor", query, authorID, private)
}

// ListLikedBy lists stories userID liked, most recently liked first
func (r *storyRepo) ListLikedBy(ctx context.Context, userID string) ([]*domain.Story, error) {
	query := storySelect + ` JOIN story_likes x ON x.story_id = s.id
		WHERE x.user_id = $1 AND (NOT s.private OR s.author_id = $1)
		ORDER BY x.created_at DESC`
	return r.list(ctx, "storyRepo.ListLikedBy", query, userID)
}

// ListSavedBy lists stories userID saved, most recently saved first
func (r *storyRepo) ListSavedBy(ctx context.Context, userID string) ([]*domain.Story, error) {
	query := storySelect + ` JOIN story_saves x ON x.story_id = s.id
		WHERE x.user_id = $1 AND (NOT s.private OR s.author_id = $1)
		ORDER BY x.created_at DESC`
	return r.list(ctx, "storyRepo.ListSavedBy", query, userID)
}

func (r *storyRepo) AddLike(ctx context.Context, storyID, userID string) error {
	return r.react(ctx, "storyRepo.AddLike",
		"INSERT INTO story_likes (story_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", storyID, userID)
}

func (r *storyRepo) RemoveLike(ctx context.Context, storyID, userID string) error {
	return r.react(ctx, "storyRepo.RemoveLike",
		"DELETE FROM story_likes WHERE story_id = $1 AND user_id = $2", storyID, userID)
}

func (r *storyRepo) AddSave(ctx context.Context, storyID, userID string) error {
	return r.react(ctx, "storyRepo.AddSave",
		"INSERT INTO story_saves (story_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", storyID, userID)
}

func (r *storyRepo) RemoveSave(ctx context.Context, storyID, userID string) error {
	return r.react(ctx, "storyRepo.RemoveSave",
		"DELETE FROM story_saves WHERE story_id = $1 AND user_id = $2", storyID, userID)
}

func (r *storyRepo) react(ctx context.Context, op, query, storyID, userID string) error {
	if _, err := r.db.Exec(ctx, query, storyID, userID); err != nil {
		err = translate(err, op, "story", storyID)
		if domain.KindOf(err) == domain.KindUnavailable {
			r.logg.Error("failed to record reaction", "error", err, "op", op, "story_id", storyID, "user_id", userID)
		}
		return err
	}
	return nil
}

func (r *storyRepo) list(ctx context.Context, op, query string, args ...any) ([]*domain.Story, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logg.Error("failed to list stories", "error", err, "op", op)
		return nil, domain.Unavailable(op, err)
	}
	defer rows.Close()

	stories := []*domain.Story{}
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			r.logg.Error("failed to scan story row", "error", err, "op", op)
			return nil, domain.Unavailable(op, err)
		}
		stories = append(stories, s)
	}

	if err := rows.Err(); err != nil {
		r.logg.Error("error iterating story rows", "error", err, "op", op)
		return nil, domain.Unavailable(op, err)
	}

	return stories, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
