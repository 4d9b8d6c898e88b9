// Package s3 stores product images in an S3-compatible bucket (MinIO in the
// default deployment).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/utafrali/catalog/internal/storage"
)

// Config holds the bucket connection settings.
type Config struct {
	// Endpoint is the S3 API base URL, e.g. http://minio:9000.
	Endpoint string
	// PublicURL prefixes object URLs handed to clients.
	PublicURL     string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UploadTimeout time.Duration
}

// Storage implements storage.Storage on S3.
type Storage struct {
	client        *s3.Client
	bucket        string
	publicURL     string
	uploadTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

var _ storage.Storage = (*Storage)(nil)

// New builds the S3 client with static credentials and path-style addressing.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Storage, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = cfg.Endpoint
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Storage{
		client:        client,
		bucket:        cfg.Bucket,
		publicURL:     cfg.PublicURL,
		uploadTimeout: cfg.UploadTimeout,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// EnsureBucket creates the bucket when HeadBucket reports it missing.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}

	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.InfoContext(ctx, "storage bucket created", slog.String("bucket", s.bucket))
	return nil
}

// Upload puts the file under a time-prefixed key and returns its public URL.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	body, size, err := seekable(input)
	if err != nil {
		return nil, err
	}

	key := storage.ObjectKey(s.now(), input.Filename)

	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	_, err = s.client.PutObject(uploadCtx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(input.ContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	return &storage.UploadResult{Key: key, URL: storage.ObjectURL(s.publicURL, s.bucket, key)}, nil
}

// Delete removes the object behind fileURL.
func (s *Storage) Delete(ctx context.Context, fileURL string) error {
	key, err := storage.KeyFromURL(fileURL)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// seekable returns a body the SDK can rewind for signing and retries.
// Uploads are size-limited, so buffering is bounded.
func seekable(input *storage.UploadInput) (io.ReadSeeker, int64, error) {
	if rs, ok := input.Data.(io.ReadSeeker); ok && input.Size > 0 {
		return rs, input.Size, nil
	}
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("read upload %s: %w", input.Filename, err)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nb *types.NoSuchBucket
	if errors.As(err, &nb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
