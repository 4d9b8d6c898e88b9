package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// Upload limits.
const (
	MaxFilesPerRequest       = 10
	DefaultMaxFileSize int64 = 5 << 20
)

// AllowedContentTypes lists the accepted image types.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Storage defines the interface for product image storage.
type Storage interface {
	// Upload stores a file and returns its key and public URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes the object a public URL points at.
	Delete(ctx context.Context, fileURL string) error

	// EnsureBucket creates the bucket when it does not exist.
	EnsureBucket(ctx context.Context) error
}

// UploadInput holds the parameters for uploading a file.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// ObjectKey names an uploaded object: upload time in unix millis, then the
// base of the client file name.
func ObjectKey(now time.Time, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), name)
}

// ObjectURL is the public URL of key in bucket.
func ObjectURL(publicBase, bucket, key string) string {
	return strings.TrimSuffix(publicBase, "/") + "/" + bucket + "/" + url.PathEscape(key)
}

// KeyFromURL returns the object key encoded in the last path segment of a
// public URL.
func KeyFromURL(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}
	seg := path.Base(u.EscapedPath())
	if seg == "." || seg == "/" || seg == "" {
		return "", fmt.Errorf("file url %q has no object key", fileURL)
	}
	key, err := url.PathUnescape(seg)
	if err != nil {
		return "", fmt.Errorf("unescape object key: %w", err)
	}
	return key, nil
}

// ValidateUpload checks one file against the upload limits.
func ValidateUpload(in *UploadInput, maxSize int64) error {
	if !AllowedContentTypes[in.ContentType] {
		return apperrors.InvalidInput(fmt.Sprintf("file %q: content type %q is not allowed", in.Filename, in.ContentType))
	}
	if in.Size <= 0 {
		return apperrors.InvalidInput(fmt.Sprintf("file %q is empty", in.Filename))
	}
	if maxSize > 0 && in.Size > maxSize {
		return apperrors.InvalidInput(fmt.Sprintf("file %q exceeds maximum size of %d bytes", in.Filename, maxSize))
	}
	return nil
}
