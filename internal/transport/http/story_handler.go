package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/usecase"
)

// StoryHandler handles HTTP requests for story operations
// Transport layer - handles HTTP concerns only, delegates business logic to service
type StoryHandler struct {
	storyService *usecase.StoryService
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(storyService *usecase.StoryService) *StoryHandler {
	return &StoryHandler{storyService: storyService}
}

// CreateStoryRequest represents the request body for a hand-written story
type CreateStoryRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
}

// GenerateStoryRequest represents the request body for story generation
type GenerateStoryRequest struct {
	Prompt        string `json:"prompt"`
	Style         string `json:"style"`
	Accessibility string `json:"accessibility"`
	Private       bool   `json:"private"`
}

// StoryResponse represents the response body for story operations
type StoryResponse struct {
	ID          string   `json:"id"`
	Author      string   `json:"author"`
	AuthorID    string   `json:"author_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Pages       []string `json:"pages"`
	Images      []string `json:"images"`
	Audio       []string `json:"audio"`
	Private     bool     `json:"private"`
	Likes       int      `json:"likes"`
	Saves       int      `json:"saves"`
	CreatedAt   string   `json:"created_at"`
}

// ReferenceResponse is one encyclopedia article
type ReferenceResponse struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// toStoryResponse converts a domain story to a response DTO
func toStoryResponse(s *domain.Story) *StoryResponse {
	pages, images, audio := s.Pages, s.Images, s.Audio
	if pages == nil {
		pages = []string{}
	}
	if images == nil {
		images = []string{}
	}
	if audio == nil {
		audio = []string{}
	}
	return &StoryResponse{
		ID:          s.ID,
		Author:      s.Author,
		AuthorID:    s.AuthorID,
		Title:       s.Title,
		Description: s.Description,
		Pages:       pages,
		Images:      images,
		Audio:       audio,
		Private:     s.Private,
		Likes:       s.Likes,
		Saves:       s.Saves,
		CreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toStoryListResponse converts a slice of domain stories to response DTOs
func toStoryListResponse(stories []*domain.Story) []*StoryResponse {
	result := make([]*StoryResponse, len(stories))
	for i, s := range stories {
		result[i] = toStoryResponse(s)
	}
	return result
}

// Create handles POST /api/stories/story
func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	var req CreateStoryRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	story, err := h.storyService.CreateStory(r.Context(), uid, req.Title, req.Description, req.Private)
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusCreated, toStoryResponse(story))
	return nil
}

// Generate handles POST /api/stories/generate
func (h *StoryHandler) Generate(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	var req GenerateStoryRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	story, err := h.storyService.Generate(r.Context(), uid, usecase.GenerateRequest{
		Prompt:        req.Prompt,
		Style:         req.Style,
		Accessibility: req.Accessibility,
		Private:       req.Private,
	})
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusCreated, toStoryResponse(story))
	return nil
}

// GetByID handles GET /api/stories/story/{id}
func (h *StoryHandler) GetByID(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	story, err := h.storyService.GetStory(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, toStoryResponse(story))
	return nil
}

// ListRecent handles GET /api/stories?page=1&page_size=10
func (h *StoryHandler) ListRecent(w http.ResponseWriter, r *http.Request) error {
	page, err := parseIntQueryParam(r, "page", 1)
	if err != nil {
		return err
	}
	pageSize, err := parseIntQueryParam(r, "page_size", usecase.DefaultPageSize)
	if err != nil {
		return err
	}

	stories, err := h.storyService.ListRecentPublic(r.Context(), page, pageSize)
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, toStoryListResponse(stories))
	return nil
}

// Like handles POST /api/stories/story/{id}/like
func (h *StoryHandler) Like(w http.ResponseWriter, r *http.Request) error {
	return h.react(w, r, h.storyService.Like, "Story liked")
}

// Unlike handles POST /api/stories/story/{id}/unlike
func (h *StoryHandler) Unlike(w http.ResponseWriter, r *http.Request) error {
	return h.react(w, r, h.storyService.Unlike, "Story unliked")
}

// Save handles POST /api/stories/story/{id}/save
func (h *StoryHandler) Save(w http.ResponseWriter, r *http.Request) error {
	return h.react(w, r, h.storyService.Save, "Story saved")
}

// Unsave handles POST /api/stories/story/{id}/unsave
func (h *StoryHandler) Unsave(w http.ResponseWriter, r *http.Request) error {
	return h.react(w, r, h.storyService.Unsave, "Story unsaved")
}

type reaction func(ctx context.Context, userID, storyID string) error

func (h *StoryHandler) react(w http.ResponseWriter, r *http.Request, apply reaction, message string) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	if err := apply(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
	return nil
}

// TogglePrivacy handles POST /api/stories/story/{id}/toggle-privacy
func (h *StoryHandler) TogglePrivacy(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	story, err := h.storyService.TogglePrivacy(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	respondJSON(w, http.StatusOK, toStoryResponse(story))
	return nil
}

// References handles GET /api/stories/story/{id}/references?limit=5
func (h *StoryHandler) References(w http.ResponseWriter, r *http.Request) error {
	uid, err := callerID(r)
	if err != nil {
		return err
	}

	limit, err := parseIntQueryParam(r, "limit", usecase.DefaultRefLimit)
	if err != nil {
		return err
	}

	refs, err := h.storyService.References(r.Context(), uid, chi.URLParam(r, "id"), limit)
	if err != nil {
		return err
	}

	out := make([]ReferenceResponse, len(refs))
	for i, ref := range refs {
		out[i] = ReferenceResponse{Title: ref.Title, Snippet: ref.Snippet, URL: ref.URL}
	}
	respondJSON(w, http.StatusOK, out)
	return nil
}
