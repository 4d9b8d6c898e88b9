package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/utafrali/catalog/internal/storage"
)

// Object is a stored file.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Storage implements storage.Storage using an in-memory map.
type Storage struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
	bucket  string
	now     func() time.Time
}

var _ storage.Storage = (*Storage)(nil)

// New creates a new in-memory storage instance.
func New(baseURL, bucket string) *Storage {
	return &Storage{
		objects: make(map[string]Object),
		baseURL: baseURL,
		bucket:  bucket,
		now:     time.Now,
	}
}

// Upload reads the file into memory and returns its URL.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", input.Filename, err)
	}

	key := storage.ObjectKey(s.now(), input.Filename)

	s.mu.Lock()
	s.objects[key] = Object{Key: key, ContentType: input.ContentType, Data: data}
	s.mu.Unlock()

	return &storage.UploadResult{Key: key, URL: storage.ObjectURL(s.baseURL, s.bucket, key)}, nil
}

// Delete removes the object behind fileURL.
func (s *Storage) Delete(_ context.Context, fileURL string) error {
	key, err := storage.KeyFromURL(fileURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("file not found: %s", key)
	}
	delete(s.objects, key)
	return nil
}

// EnsureBucket is a no-op.
func (s *Storage) EnsureBucket(context.Context) error { return nil }

// Object returns a stored object by key.
func (s *Storage) Object(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o, ok
}

// Len returns the number of stored objects.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
