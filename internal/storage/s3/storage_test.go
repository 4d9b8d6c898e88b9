package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/storage"
	"github.com/utafrali/catalog/pkg/logger"
)

// fakeS3 records path-style requests and keeps object bodies.
type fakeS3 struct {
	mu           sync.Mutex
	bucketExists bool
	objects      map[string]string
	requests     []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodHead:
			if !f.bucketExists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		case http.MethodPut:
			f.bucketExists = true
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	key := parts[1]
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = string(body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T) (*Storage, *fakeS3) {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")

	fake := &fakeS3{objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), Config{
		Endpoint:  srv.URL,
		PublicURL: "http://cdn.local",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "productimages",
	}, logger.Discard())
	require.NoError(t, err)
	s.now = func() time.Time { return time.UnixMilli(1760000000000) }
	return s, fake
}

func TestEnsureBucket_CreatesMissing(t *testing.T) {
	s, fake := newTestStorage(t)

	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.Equal(t, []string{"HEAD /productimages", "PUT /productimages"}, fake.requests)

	fake.requests = nil
	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.Equal(t, []string{"HEAD /productimages"}, fake.requests)
}

func TestUploadAndDelete(t *testing.T) {
	s, fake := newTestStorage(t)
	ctx := context.Background()

	res, err := s.Upload(ctx, &storage.UploadInput{
		Filename:    "ao.png",
		ContentType: "image/png",
		Size:        7,
		Data:        strings.NewReader("pngdata"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1760000000000-ao.png", res.Key)
	assert.Equal(t, "http://cdn.local/productimages/1760000000000-ao.png", res.URL)
	assert.Equal(t, "pngdata", fake.objects["1760000000000-ao.png"])

	require.NoError(t, s.Delete(ctx, res.URL))
	assert.Empty(t, fake.objects)
}

func TestUpload_NonSeekableBody(t *testing.T) {
	s, fake := newTestStorage(t)

	_, err := s.Upload(context.Background(), &storage.UploadInput{
		Filename:    "ao.png",
		ContentType: "image/png",
		Data:        io.NopCloser(strings.NewReader("abc")),
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", fake.objects["1760000000000-ao.png"])
}
