package blob

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/TopThisHat/storytopia-api/internal/domain"
)

// ObjectInfo contains metadata about a stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// UploadInput contains parameters for uploading an object
type UploadInput struct {
	Key         string            // Object key (required)
	Body        io.Reader         // Content to upload (required)
	ContentType string            // MIME type (optional, defaults to application/octet-stream)
	Metadata    map[string]string // Custom metadata (optional)
}

// UploadOutput contains the result of an upload operation
type UploadOutput struct {
	Key  string
	URL  string // where readers fetch the object
	ETag string
}

// Store holds generated story images.
// Failures are *domain.Error values: a bad key is Invalid, a missing
// object is NotFound, and anything else is Unavailable.
type Store interface {
	Upload(ctx context.Context, input *UploadInput) (*UploadOutput, error)

	// GetObject returns the object body. The caller closes it.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	HeadObject(ctx context.Context, key string) (*ObjectInfo, error)

	// Delete is idempotent.
	Delete(ctx context.Context, key string) error

	// DeleteMultiple returns the keys that could not be removed.
	DeleteMultiple(ctx context.Context, keys []string) (failedKeys []string, err error)

	// URL is the public address of key.
	URL(key string) string
}

func validateKey(key string) error {
	if key == "" {
		return domain.Invalid("object key is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return domain.Invalidf("object key %q is not allowed", key)
	}
	return nil
}

func objectNotFound(key string) error {
	return domain.NotFound("image", key)
}
