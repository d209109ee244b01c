package http

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TopThisHat/storytopia-api/internal/blob"
	"github.com/TopThisHat/storytopia-api/internal/domain"
)

// HealthCheck probes one dependency for /ready.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	checks  []HealthCheck
	version string
	timeout time.Duration
}

// NewHealthHandler creates a health handler running checks on /ready.
func NewHealthHandler(version string, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, version: version, timeout: 2 * time.Second}
}

// Live handles GET /health
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": h.version})
}

// Ready handles GET /ready. The first failing dependency is Unavailable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			return domain.Unavailable("ready."+c.Name, err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	return nil
}

// ObjectReader is the read side of a blob store.
type ObjectReader interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	HeadObject(ctx context.Context, key string) (*blob.ObjectInfo, error)
}

// AssetHandler serves story images from a local blob store.
type AssetHandler struct {
	objects ObjectReader
}

// NewAssetHandler creates an asset handler.
func NewAssetHandler(objects ObjectReader) *AssetHandler {
	return &AssetHandler{objects: objects}
}

// Serve handles GET /assets/*
func (h *AssetHandler) Serve(w http.ResponseWriter, r *http.Request) error {
	key := chi.URLParam(r, "*")

	info, err := h.objects.HeadObject(r.Context(), key)
	if err != nil {
		return err
	}

	body, err := h.objects.GetObject(r.Context(), key)
	if err != nil {
		return err
	}
	defer body.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)

	// Headers are gone; a copy failure can only be dropped.
	_, _ = io.Copy(w, body)
	return nil
}
