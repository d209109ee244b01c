package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/TopThisHat/storytopia-api/internal/config"
	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Ensure S3Store implements Store at compile time
var _ Store = (*S3Store)(nil)

// S3Store keeps objects in an S3 (or S3-compatible) bucket.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	baseURL  string
	logger   *logger.Logger
}

// S3Option defines functional options for configuring S3Store
type S3Option func(*s3Options)

type s3Options struct {
	// Custom endpoint for testing (e.g., LocalStack, MinIO)
	customEndpoint string
	usePathStyle   bool
}

// WithCustomEndpoint sets a custom S3 endpoint (for LocalStack, MinIO, etc.)
func WithCustomEndpoint(endpoint string, pathStyle bool) S3Option {
	return func(o *s3Options) {
		o.customEndpoint = endpoint
		o.usePathStyle = pathStyle
	}
}

// NewS3Store creates a new S3 blob store.
// Credentials come from configuration when both keys are set, otherwise
// from the SDK's default chain (environment, shared file, IAM role).
func NewS3Store(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...S3Option) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	options := &s3Options{}
	if cfg.S3Endpoint != "" {
		WithCustomEndpoint(cfg.S3Endpoint, cfg.S3PathStyle)(options)
	}
	for _, opt := range opts {
		opt(options)
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if options.customEndpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(options.customEndpoint)
			o.UsePathStyle = options.usePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	// Scene images are a few MB; one part each
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 2
	})

	baseURL := cfg.PublicAssetURL
	if baseURL == "" {
		switch {
		case options.customEndpoint != "" && options.usePathStyle:
			baseURL = strings.TrimRight(options.customEndpoint, "/") + "/" + cfg.S3Bucket
		default:
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.AWSRegion)
		}
	}

	log.Info("S3 blob store initialized",
		"bucket", cfg.S3Bucket,
		"region", cfg.AWSRegion,
		"base_url", baseURL,
	)

	return &S3Store{
		client:   client,
		uploader: uploader,
		bucket:   cfg.S3Bucket,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   log,
	}, nil
}

// Upload stores an object, using multipart upload for large bodies.
func (s *S3Store) Upload(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}
	if input.Body == nil {
		return nil, domain.Invalid("object body is required")
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadInput := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(input.Key),
		Body:        input.Body,
		ContentType: aws.String(contentType),
	}
	if len(input.Metadata) > 0 {
		uploadInput.Metadata = input.Metadata
	}

	result, err := s.uploader.Upload(ctx, uploadInput)
	if err != nil {
		s.logger.Error("failed to upload object",
			"key", input.Key,
			"bucket", s.bucket,
			"error", err,
		)
		return nil, domain.Unavailable("s3.Upload", err)
	}

	s.logger.Debug("object uploaded successfully",
		"key", input.Key,
		"location", result.Location,
	)

	return &UploadOutput{
		Key:  input.Key,
		URL:  s.URL(input.Key),
		ETag: aws.ToString(result.ETag),
	}, nil
}

// GetObject retrieves an object from S3 and returns it as a ReadCloser.
// The caller is responsible for closing the returned reader.
func (s *S3Store) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, objectNotFound(key)
		}
		s.logger.Error("failed to get object",
			"key", key,
			"bucket", s.bucket,
			"error", err,
		)
		return nil, domain.Unavailable("s3.GetObject", err)
	}

	return result.Body, nil
}

// HeadObject retrieves metadata about an object without downloading it.
func (s *S3Store) HeadObject(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, objectNotFound(key)
		}
		s.logger.Error("failed to head object",
			"key", key,
			"bucket", s.bucket,
			"error", err,
		)
		return nil, domain.Unavailable("s3.HeadObject", err)
	}

	info := &ObjectInfo{
		Key:         key,
		Size:        aws.ToInt64(result.ContentLength),
		ContentType: aws.ToString(result.ContentType),
		ETag:        aws.ToString(result.ETag),
	}
	if result.LastModified != nil {
		info.LastModified = *result.LastModified
	}

	return info, nil
}

// Delete removes an object from S3.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("failed to delete object",
			"key", key,
			"bucket", s.bucket,
			"error", err,
		)
		return domain.Unavailable("s3.Delete", err)
	}

	return nil
}

// DeleteMultiple removes objects in batches of 1000 (the S3 limit).
func (s *S3Store) DeleteMultiple(ctx context.Context, keys []string) ([]string, error) {
	const maxKeysPerRequest = 1000
	var failedKeys []string

	for i := 0; i < len(keys); i += maxKeysPerRequest {
		batch := keys[i:min(i+maxKeysPerRequest, len(keys))]

		objects := make([]types.ObjectIdentifier, len(batch))
		for j, key := range batch {
			objects[j] = types.ObjectIdentifier{Key: aws.String(key)}
		}

		result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			s.logger.Error("failed to delete objects batch",
				"bucket", s.bucket,
				"count", len(batch),
				"error", err,
			)
			failedKeys = append(failedKeys, batch...)
			continue
		}

		for _, errObj := range result.Errors {
			failedKeys = append(failedKeys, aws.ToString(errObj.Key))
			s.logger.Warn("failed to delete object",
				"key", aws.ToString(errObj.Key),
				"code", aws.ToString(errObj.Code),
			)
		}
	}

	if len(failedKeys) > 0 {
		return failedKeys, domain.Unavailable("s3.DeleteMultiple",
			fmt.Errorf("%d of %d objects failed to delete", len(failedKeys), len(keys)))
	}

	return nil, nil
}

// URL returns the public address of key.
func (s *S3Store) URL(key string) string {
	return s.baseURL + "/" + key
}

// isNotFoundError checks if the error indicates the object was not found
func isNotFoundError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
