package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/engine"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// Reindex defaults.
const (
	DefaultReindexBatchSize = 5000
	MaxReindexBatchSize     = 10000
	loggedBulkFailures      = 3
)

// ReindexResult summarizes a completed rebuild.
type ReindexResult struct {
	TotalIndexed int           `json:"totalIndexed"`
	TotalBatches int           `json:"totalBatches"`
	Failed       int           `json:"failed"`
	Reconciled   int           `json:"reconciled"`
	Duration     time.Duration `json:"-"`
	DurationMs   int64         `json:"durationMs"`
}

// IndexService rebuilds the search index from the store and handles direct
// index maintenance.
type IndexService struct {
	repo   repository.ProductRepository
	engine engine.SearchEngine
	cache  cacheAside
	logger *slog.Logger

	// running serializes rebuilds within the process.
	running sync.Mutex
	now     func() time.Time
}

// NewIndexService creates a new index service.
func NewIndexService(d Deps) *IndexService {
	return &IndexService{
		repo:   d.Repo,
		engine: d.Engine,
		cache:  cacheAside{cache: d.Cache, logger: d.Logger},
		logger: d.Logger,
		now:    time.Now,
	}
}

// Reindex drops the index and rebuilds it from every stored product,
// batchSize rows at a time in id order. Rejected documents are counted and
// logged but do not stop the run. Products soft deleted while the rebuild was
// running are removed from the index afterwards.
func (s *IndexService) Reindex(ctx context.Context, batchSize int) (*ReindexResult, error) {
	if batchSize < 1 {
		batchSize = DefaultReindexBatchSize
	}
	batchSize = min(batchSize, MaxReindexBatchSize)

	if !s.running.TryLock() {
		return nil, apperrors.Conflict("REINDEX_IN_PROGRESS", "a reindex is already running")
	}
	defer s.running.Unlock()

	if err := s.engine.Ping(ctx); err != nil {
		return nil, apperrors.ServiceUnavailable("search engine", err)
	}

	start := s.now()
	s.logger.InfoContext(ctx, "reindex started", slog.Int("batch_size", batchSize))

	if err := s.engine.RecreateIndex(ctx); err != nil {
		return nil, s.engineErr("recreate index", err)
	}

	result := &ReindexResult{}
	lastID := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reindex canceled after %d batches: %w", result.TotalBatches, err)
		}

		page, err := s.repo.ListAfter(ctx, lastID, batchSize)
		if err != nil {
			return nil, fmt.Errorf("list products after %q: %w", lastID, err)
		}
		if len(page) == 0 {
			break
		}

		docs := make([]*domain.SearchDocument, len(page))
		for i := range page {
			docs[i] = domain.NewSearchDocument(&page[i])
		}

		bulk, err := s.engine.BulkIndex(ctx, docs)
		if err != nil {
			return nil, s.engineErr("bulk index", err)
		}

		result.TotalBatches++
		result.TotalIndexed += bulk.Indexed
		result.Failed += bulk.Failed
		reindexDocuments.WithLabelValues("indexed").Add(float64(bulk.Indexed))
		reindexDocuments.WithLabelValues("failed").Add(float64(bulk.Failed))

		if bulk.Failed > 0 {
			s.logger.WarnContext(ctx, "bulk index rejected documents",
				slog.Int("batch", result.TotalBatches),
				slog.Int("failed", bulk.Failed),
				slog.Any("sample", bulk.Failures[:min(len(bulk.Failures), loggedBulkFailures)]),
			)
		}

		s.logger.DebugContext(ctx, "reindex batch done",
			slog.Int("batch", result.TotalBatches),
			slog.Int("indexed", result.TotalIndexed),
		)

		lastID = page[len(page)-1].ID
		if len(page) < batchSize {
			break
		}
	}

	if err := s.engine.Refresh(ctx); err != nil {
		return nil, s.engineErr("refresh index", err)
	}

	reconciled, err := s.reconcile(ctx, start)
	if err != nil {
		return nil, err
	}
	result.Reconciled = reconciled

	s.cache.invalidate(ctx)

	result.Duration = s.now().Sub(start)
	result.DurationMs = result.Duration.Milliseconds()

	s.logger.InfoContext(ctx, "reindex completed",
		slog.Int("total_indexed", result.TotalIndexed),
		slog.Int("total_batches", result.TotalBatches),
		slog.Int("failed", result.Failed),
		slog.Int("reconciled", result.Reconciled),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// reconcile removes documents for products soft deleted since the rebuild
// started. A delete that raced the bulk writes may otherwise be undone.
func (s *IndexService) reconcile(ctx context.Context, since time.Time) (int, error) {
	ids, err := s.repo.ListDeletedSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list products deleted since reindex start: %w", err)
	}
	for _, id := range ids {
		if err := s.engine.Delete(ctx, id); err != nil {
			return 0, s.engineErr("reconcile deleted product", err)
		}
	}
	if len(ids) > 0 {
		if err := s.engine.Refresh(ctx); err != nil {
			return 0, s.engineErr("refresh index", err)
		}
	}
	return len(ids), nil
}

// DeleteDocument removes a single document from the index without touching
// the store.
func (s *IndexService) DeleteDocument(ctx context.Context, id string) error {
	exists, err := s.engine.Exists(ctx, id)
	if err != nil {
		return s.engineErr("check indexed product", err)
	}
	if !exists {
		return apperrors.NotFound("indexed product", id)
	}

	if err := s.engine.Delete(ctx, id); err != nil {
		return s.engineErr("delete indexed product", err)
	}
	s.cache.invalidate(ctx)

	s.logger.InfoContext(ctx, "indexed product deleted", slog.String("product_id", id))
	return nil
}

func (s *IndexService) engineErr(op string, err error) error {
	if errors.Is(err, engine.ErrUnavailable) {
		return apperrors.ServiceUnavailable("search engine", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
