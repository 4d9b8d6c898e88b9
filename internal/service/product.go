package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/catalog/internal/cache"
	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/engine"
	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/internal/storage"
	apperrors "github.com/utafrali/catalog/pkg/errors"
	"github.com/utafrali/catalog/pkg/slug"
)

// ProductService implements the catalog write path and product reads. Every
// write goes store, then index, then cache, before returning.
type ProductService struct {
	repo        repository.ProductRepository
	engine      engine.SearchEngine
	storage     storage.Storage
	cache       cacheAside
	events      EventPublisher
	ttl         time.Duration
	maxFileSize int64
	logger      *slog.Logger

	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// NewProductService creates a new product service. maxFileSize bounds each
// uploaded image; zero uses storage.DefaultMaxFileSize.
func NewProductService(d Deps, maxFileSize int64) *ProductService {
	if maxFileSize <= 0 {
		maxFileSize = storage.DefaultMaxFileSize
	}
	return &ProductService{
		repo:        d.Repo,
		engine:      d.Engine,
		storage:     d.Storage,
		cache:       cacheAside{cache: d.Cache, logger: d.Logger},
		events:      d.Events,
		ttl:         d.TTLs.Product,
		maxFileSize: maxFileSize,
		logger:      d.Logger,
		now:         time.Now,
		newID:       uuid.NewV7,
	}
}

// ProductInput holds the editable fields of a product. Colors is the
// comma-joined form the admin UI submits.
type ProductInput struct {
	Name        string
	Price       int64
	Description string
	Category    string
	Colors      string
	Stock       int
	Type        string
	Status      string
}

// FileUpload is an image attached to a create or update.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// ListProductsInput holds the parameters for listing live products.
type ListProductsInput struct {
	Category string
	Page     int
	PerPage  int
}

func (in *ProductInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if in.Type == "" {
		in.Type = domain.ProductTypeSelling
	}
	if in.Status == "" {
		in.Status = domain.ProductStatusActive
	}
}

func (in *ProductInput) check() error {
	switch {
	case in.Name == "":
		return apperrors.InvalidInput("name is required")
	case in.Category == "":
		return apperrors.InvalidInput("category is required")
	case in.Price < 0:
		return apperrors.InvalidInput("price must not be negative")
	case in.Stock < 0:
		return apperrors.InvalidInput("stock must not be negative")
	case !domain.IsValidType(in.Type):
		return apperrors.InvalidInput(fmt.Sprintf("type must be one of: %s, %s", domain.ProductTypeSelling, domain.ProductTypeRental))
	case !domain.IsValidStatus(in.Status):
		return apperrors.InvalidInput(fmt.Sprintf("status must be one of: %s, %s", domain.ProductStatusActive, domain.ProductStatusInactive))
	}
	return nil
}

func (s *ProductService) checkFiles(files []FileUpload) error {
	if len(files) > storage.MaxFilesPerRequest {
		return apperrors.InvalidInput(fmt.Sprintf("at most %d images may be uploaded at once", storage.MaxFilesPerRequest))
	}
	for _, f := range files {
		if err := storage.ValidateUpload(f.uploadInput(), s.maxFileSize); err != nil {
			return err
		}
	}
	return nil
}

func (f FileUpload) uploadInput() *storage.UploadInput {
	return &storage.UploadInput{
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Size:        f.Size,
		Data:        f.Data,
	}
}

// Create stores a new product with its images and propagates it to the
// index and cache.
func (s *ProductService) Create(ctx context.Context, input ProductInput, files []FileUpload) (*domain.Product, error) {
	input.normalize()
	if err := input.check(); err != nil {
		return nil, err
	}
	if err := s.checkFiles(files); err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate product id: %w", err)
	}

	images, err := s.uploadImages(ctx, files)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	product := &domain.Product{
		ID:          id.String(),
		Name:        input.Name,
		Slug:        slug.Generate(input.Name),
		Price:       input.Price,
		Description: input.Description,
		Category:    input.Category,
		Colors:      domain.ParseColors(input.Colors),
		Stock:       input.Stock,
		Images:      images,
		Type:        input.Type,
		Status:      input.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		s.deleteImages(ctx, images)
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.syncIndex(ctx, "create", product)
	s.cache.invalidate(ctx)

	if err := s.events.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
		slog.Int("images", len(images)),
	)
	return product, nil
}

// Update replaces the editable fields of a live product. When files are
// attached, the new images take the place of the old ones. The old objects
// are removed only once the store holds the new URLs.
func (s *ProductService) Update(ctx context.Context, id string, input ProductInput, files []FileUpload) (*domain.Product, error) {
	input.normalize()
	if err := input.check(); err != nil {
		return nil, err
	}
	if err := s.checkFiles(files); err != nil {
		return nil, err
	}

	product, err := s.getLive(ctx, id)
	if err != nil {
		return nil, err
	}

	replaced := product.Images
	var uploaded []string
	if len(files) > 0 {
		uploaded, err = s.uploadImages(ctx, files)
		if err != nil {
			return nil, err
		}
		product.Images = uploaded
	}

	product.Name = input.Name
	product.Slug = slug.Generate(input.Name)
	product.Price = input.Price
	product.Description = input.Description
	product.Category = input.Category
	product.Colors = domain.ParseColors(input.Colors)
	product.Stock = input.Stock
	product.Type = input.Type
	product.Status = input.Status
	product.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, product); err != nil {
		s.deleteImages(ctx, uploaded)
		return nil, fmt.Errorf("update product: %w", err)
	}
	if len(files) > 0 {
		s.deleteImages(ctx, replaced)
	}

	s.syncIndex(ctx, "update", product)
	s.cache.invalidate(ctx)

	if err := s.events.PublishProductUpdated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", product.ID))
	return product, nil
}

// Delete soft deletes a product, removes it from the index and drops its
// images.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	product, err := s.getLive(ctx, id)
	if err != nil {
		return err
	}

	at := s.now().UTC()
	if err := s.repo.SoftDelete(ctx, id, at); err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}

	if err := s.engine.Delete(ctx, id); err != nil {
		indexSyncFailures.WithLabelValues("delete").Inc()
		s.logger.WarnContext(ctx, "failed to remove product from search index",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}
	s.deleteImages(ctx, product.Images)
	s.cache.invalidate(ctx)

	if err := s.events.PublishProductDeleted(ctx, id, at); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// Get returns a live product and counts the view.
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	key := cache.ProductKey(id)

	var product domain.Product
	if !s.cache.getJSON(ctx, key, &product) {
		p, err := s.getLive(ctx, id)
		if err != nil {
			return nil, err
		}
		product = *p
		s.cache.setJSON(ctx, key, product, s.ttl)
	}

	if err := s.repo.IncrementViews(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to increment product views",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}
	return &product, nil
}

// List returns a page of live products, newest first, and the total count.
func (s *ProductService) List(ctx context.Context, input ListProductsInput) ([]domain.Product, int, error) {
	products, total, err := s.repo.List(ctx, domain.ProductFilter{
		Category: strings.TrimSpace(input.Category),
		Page:     input.Page,
		PerPage:  input.PerPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

func (s *ProductService) getLive(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	if product.IsDeleted() {
		return nil, apperrors.NotFound("product", id)
	}
	return product, nil
}

// syncIndex writes the product's document. The store already holds the
// change, so a failure is logged and left for the next write or reindex.
func (s *ProductService) syncIndex(ctx context.Context, op string, product *domain.Product) {
	if err := s.engine.Index(ctx, domain.NewSearchDocument(product)); err != nil {
		indexSyncFailures.WithLabelValues(op).Inc()
		s.logger.WarnContext(ctx, "failed to index product",
			slog.String("op", op),
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ProductService) uploadImages(ctx context.Context, files []FileUpload) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		res, err := s.storage.Upload(ctx, f.uploadInput())
		if err != nil {
			s.deleteImages(ctx, urls)
			return nil, fmt.Errorf("upload image %s: %w", f.Filename, err)
		}
		urls = append(urls, res.URL)
	}
	return urls, nil
}

func (s *ProductService) deleteImages(ctx context.Context, urls []string) {
	for _, u := range urls {
		if err := s.storage.Delete(ctx, u); err != nil {
			s.logger.WarnContext(ctx, "failed to delete product image",
				slog.String("url", u),
				slog.String("error", err.Error()),
			)
		}
	}
}
