package service

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/cache"
	"github.com/utafrali/catalog/internal/domain"
	enginemem "github.com/utafrali/catalog/internal/engine/memory"
	"github.com/utafrali/catalog/internal/repository"
	storagemem "github.com/utafrali/catalog/internal/storage/memory"
	apperrors "github.com/utafrali/catalog/pkg/errors"
	"github.com/utafrali/catalog/pkg/logger"
)

// --- Mock Repository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockProductRepository) IncrementViews(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProductRepository) ListAfter(ctx context.Context, afterID string, limit int) ([]domain.Product, error) {
	args := m.Called(ctx, afterID, limit)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockProductRepository) ListDeletedSince(ctx context.Context, since time.Time) ([]string, error) {
	args := m.Called(ctx, since)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockProductRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// --- Keyset store fake ---

// keysetStore is an in-memory store ordered by id, used where a full
// walk of the catalog matters more than call expectations.
type keysetStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
	pages    int
	// afterPage runs after every ListAfter call, outside the lock.
	afterPage func(page int)
}

func newKeysetStore(products ...domain.Product) *keysetStore {
	s := &keysetStore{products: make(map[string]domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *keysetStore) Create(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = *p
	return nil
}

func (s *keysetStore) GetByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &p, nil
}

func (s *keysetStore) List(context.Context, domain.ProductFilter) ([]domain.Product, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (s *keysetStore) Update(_ context.Context, p *domain.Product) error {
	return s.Create(context.Background(), p)
}

func (s *keysetStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.IsDeleted() {
		return apperrors.NotFound("product", id)
	}
	p.DeletedAt = &at
	s.products[id] = p
	return nil
}

func (s *keysetStore) IncrementViews(context.Context, string) error { return nil }

func (s *keysetStore) ListAfter(_ context.Context, afterID string, limit int) ([]domain.Product, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.products))
	for id := range s.products {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.Product, len(ids))
	for i, id := range ids {
		out[i] = s.products[id]
	}
	s.pages++
	page := s.pages
	hook := s.afterPage
	s.mu.Unlock()

	if hook != nil {
		hook(page)
	}
	return out, nil
}

func (s *keysetStore) ListDeletedSince(_ context.Context, since time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, p := range s.products {
		if p.DeletedAt != nil && !p.DeletedAt.Before(since) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *keysetStore) Ping(context.Context) error { return nil }

// --- Events ---

type recordedEvent struct {
	kind string
	id   string
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (r *recordingEvents) record(kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, recordedEvent{kind: kind, id: id})
	return nil
}

func (r *recordingEvents) PublishProductCreated(_ context.Context, p *domain.Product) error {
	return r.record("created", p.ID)
}

func (r *recordingEvents) PublishProductUpdated(_ context.Context, p *domain.Product) error {
	return r.record("updated", p.ID)
}

func (r *recordingEvents) PublishProductDeleted(_ context.Context, id string, _ time.Time) error {
	return r.record("deleted", id)
}

// --- Broken cache ---

type brokenCache struct{}

var errCacheDown = errors.New("redis: connection refused")

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errCacheDown
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (brokenCache) DeleteByPrefix(context.Context, ...string) (int, error) { return 0, errCacheDown }
func (brokenCache) Ping(context.Context) error                             { return errCacheDown }

// --- Fixture ---

type fixture struct {
	engine  *enginemem.Engine
	storage *storagemem.Storage
	cache   *cache.MemoryCache
	events  *recordingEvents
}

func newFixture() *fixture {
	return &fixture{
		engine:  enginemem.New(),
		storage: storagemem.New("http://minio:9000", "products"),
		cache:   cache.NewMemoryCache(time.Minute),
		events:  &recordingEvents{},
	}
}

func (f *fixture) deps(repo repository.ProductRepository) Deps {
	return Deps{
		Repo:    repo,
		Engine:  f.engine,
		Storage: f.storage,
		Cache:   f.cache,
		Events:  f.events,
		TTLs:    cache.DefaultTTLs(),
		Logger:  logger.Discard(),
	}
}

func (f *fixture) seedCache(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, f.cache.Set(context.Background(), k, []byte(`{}`), time.Minute))
	}
}

func (f *fixture) cached(key string) bool {
	_, ok, _ := f.cache.Get(context.Background(), key)
	return ok
}

func image(name string) FileUpload {
	data := []byte("\x89PNG fake " + name)
	return FileUpload{
		Filename:    name,
		ContentType: "image/png",
		Size:        int64(len(data)),
		Data:        bytes.NewReader(data),
	}
}

func product(id, name, category string, price int64, colors ...string) domain.Product {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Product{
		ID:        id,
		Name:      name,
		Slug:      strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Price:     price,
		Category:  category,
		Colors:    colors,
		Stock:     5,
		Images:    []string{},
		Type:      domain.ProductTypeSelling,
		Status:    domain.ProductStatusActive,
		CreatedAt: created,
		UpdatedAt: created,
	}
}
