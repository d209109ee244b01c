package blob

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
)

// Ensure FileSystemStore implements the Store interface at compile time
var _ Store = (*FileSystemStore)(nil)

// FileSystemStore keeps objects under a local directory.
// Used in development and tests; the HTTP layer serves its objects.
type FileSystemStore struct {
	basePath string
	baseURL  string
	logger   *logger.Logger
	mu       sync.RWMutex
}

// NewFileSystemStore creates the base directory if needed.
// baseURL is the public prefix objects are served under.
func NewFileSystemStore(basePath, baseURL string, log *logger.Logger) (*FileSystemStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	log.Info("file system blob store initialized", "base_path", absPath, "base_url", baseURL)

	return &FileSystemStore{
		basePath: absPath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   log,
	}, nil
}

// fullPath constructs the full file path for a key
func (f *FileSystemStore) fullPath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	cleanKey := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(cleanKey, "..") || filepath.IsAbs(cleanKey) {
		return "", domain.Invalidf("object key %q is not allowed", key)
	}

	return filepath.Join(f.basePath, cleanKey), nil
}

// Upload writes the object through a temp file and an atomic rename.
func (f *FileSystemStore) Upload(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
	fullPath, err := f.fullPath(input.Key)
	if err != nil {
		return nil, err
	}
	if input.Body == nil {
		return nil, domain.Invalid("object body is required")
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.logger.Error("failed to create directory", "key", input.Key, "path", dir, "error", err)
		return nil, domain.Unavailable("filesystem.Upload", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("filesystem.Upload", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		f.logger.Error("failed to create temp file", "key", input.Key, "error", err)
		return nil, domain.Unavailable("filesystem.Upload", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	hash := md5.New()
	written, err := io.Copy(io.MultiWriter(tmpFile, hash), input.Body)
	if err != nil {
		f.logger.Error("failed to write file", "key", input.Key, "error", err)
		return nil, domain.Unavailable("filesystem.Upload", err)
	}

	if err := tmpFile.Close(); err != nil {
		return nil, domain.Unavailable("filesystem.Upload", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		f.logger.Error("failed to rename temp file", "key", input.Key, "error", err)
		return nil, domain.Unavailable("filesystem.Upload", err)
	}

	f.logger.Debug("file uploaded successfully", "key", input.Key, "bytes", written)

	return &UploadOutput{
		Key:  input.Key,
		URL:  f.URL(input.Key),
		ETag: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// GetObject opens the object for reading. The caller closes it.
func (f *FileSystemStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := f.fullPath(key)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	file, err := os.Open(fullPath)
	f.mu.RUnlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, objectNotFound(key)
		}
		f.logger.Error("failed to open file", "key", key, "error", err)
		return nil, domain.Unavailable("filesystem.GetObject", err)
	}

	return file, nil
}

// HeadObject retrieves metadata about an object without reading its contents.
func (f *FileSystemStore) HeadObject(ctx context.Context, key string) (*ObjectInfo, error) {
	fullPath, err := f.fullPath(key)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	info, err := os.Stat(fullPath)
	f.mu.RUnlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, objectNotFound(key)
		}
		f.logger.Error("failed to stat file", "key", key, "error", err)
		return nil, domain.Unavailable("filesystem.HeadObject", err)
	}

	if info.IsDir() {
		return nil, objectNotFound(key)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         info.Size(),
		ContentType:  detectContentType(key),
		LastModified: info.ModTime(),
	}, nil
}

// Delete removes an object. Deleting a missing object succeeds.
func (f *FileSystemStore) Delete(ctx context.Context, key string) error {
	fullPath, err := f.fullPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.logger.Error("failed to delete file", "key", key, "error", err)
		return domain.Unavailable("filesystem.Delete", err)
	}

	return nil
}

// DeleteMultiple removes each key in turn.
func (f *FileSystemStore) DeleteMultiple(ctx context.Context, keys []string) ([]string, error) {
	var failedKeys []string

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			failedKeys = append(failedKeys, keys[i:]...)
			return failedKeys, domain.Unavailable("filesystem.DeleteMultiple", err)
		}
		if err := f.Delete(ctx, key); err != nil {
			failedKeys = append(failedKeys, key)
		}
	}

	if len(failedKeys) > 0 {
		return failedKeys, domain.Unavailable("filesystem.DeleteMultiple",
			fmt.Errorf("%d of %d files failed to delete", len(failedKeys), len(keys)))
	}

	return nil, nil
}

// URL returns the public address of key.
func (f *FileSystemStore) URL(key string) string {
	return f.baseURL + "/" + key
}

// BasePath returns the base path of the file system store
func (f *FileSystemStore) BasePath() string {
	return f.basePath
}

// detectContentType guesses the content type from the file extension
func detectContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".mp3":
		return "audio/mpeg"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
