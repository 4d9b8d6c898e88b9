package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/domain"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

func catalogOf(n int) []domain.Product {
	out := make([]domain.Product, n)
	for i := range out {
		out[i] = product(fmt.Sprintf("p-%02d", i+1), fmt.Sprintf("Sản phẩm %d", i+1), "ao", int64(100000*(i+1)))
	}
	return out
}

func newTestIndexService(store *keysetStore) (*fixture, *IndexService) {
	f := newFixture()
	return f, NewIndexService(f.deps(store))
}

func TestReindex_RebuildsInBatches(t *testing.T) {
	store := newKeysetStore(catalogOf(7)...)
	f, svc := newTestIndexService(store)
	ctx := context.Background()

	stale := product("zz-stale", "Old", "ao", 1)
	require.NoError(t, f.engine.Index(ctx, domain.NewSearchDocument(&stale)))
	f.seedCache(t, "search:{}")

	res, err := svc.Reindex(ctx, 3)
	require.NoError(t, err)

	assert.Equal(t, 7, res.TotalIndexed)
	assert.Equal(t, 3, res.TotalBatches)
	assert.Zero(t, res.Failed)
	assert.Zero(t, res.Reconciled)
	assert.Equal(t, 3, store.pages)
	assert.Equal(t, 7, f.engine.Len())

	ok, err := f.engine.Exists(ctx, "zz-stale")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.cached("search:{}"))
}

func TestReindex_ExactMultipleSkipsEmptyBatch(t *testing.T) {
	store := newKeysetStore(catalogOf(6)...)
	_, svc := newTestIndexService(store)

	res, err := svc.Reindex(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalBatches)
	assert.Equal(t, 6, res.TotalIndexed)
	assert.Equal(t, 3, store.pages, "the trailing empty page is fetched but not counted")
}

func TestReindex_EmptyCatalog(t *testing.T) {
	_, svc := newTestIndexService(newKeysetStore())

	res, err := svc.Reindex(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, res.TotalBatches)
	assert.Zero(t, res.TotalIndexed)
}

func TestReindex_DefaultBatchSize(t *testing.T) {
	store := newKeysetStore(catalogOf(12)...)
	_, svc := newTestIndexService(store)

	res, err := svc.Reindex(context.Background(), -1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalBatches)
	assert.Equal(t, 12, res.TotalIndexed)
}

func TestReindex_RejectedDocumentsDoNotStopRun(t *testing.T) {
	store := newKeysetStore(catalogOf(5)...)
	f, svc := newTestIndexService(store)
	f.engine.RejectWhen(func(d *domain.SearchDocument) error {
		if d.ID == "p-02" || d.ID == "p-04" {
			return errors.New("mapper_parsing_exception")
		}
		return nil
	})

	res, err := svc.Reindex(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalIndexed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 3, res.TotalBatches)
}

func TestReindex_SoftDeletedStayHidden(t *testing.T) {
	products := catalogOf(3)
	deletedAt := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	products[1].DeletedAt = &deletedAt
	f, svc := newTestIndexService(newKeysetStore(products...))
	ctx := context.Background()

	_, err := svc.Reindex(ctx, 10)
	require.NoError(t, err)

	params := domain.SearchParams{}
	params.Normalize()
	res, err := f.engine.Search(ctx, &params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
}

func TestReindex_ReconcilesConcurrentDelete(t *testing.T) {
	store := newKeysetStore(catalogOf(4)...)
	f, svc := newTestIndexService(store)
	ctx := context.Background()

	// A writer deletes p-01 after the first page was read but before it is
	// bulk indexed, so the bulk write resurrects the document.
	store.afterPage = func(page int) {
		if page != 1 {
			return
		}
		require.NoError(t, store.SoftDelete(ctx, "p-01", time.Now()))
		require.NoError(t, f.engine.Delete(ctx, "p-01"))
	}

	res, err := svc.Reindex(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reconciled)

	ok, err := f.engine.Exists(ctx, "p-01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReindex_Unavailable(t *testing.T) {
	store := newKeysetStore(catalogOf(2)...)
	f, svc := newTestIndexService(store)
	f.engine.SetAvailable(false)

	_, err := svc.Reindex(context.Background(), 10)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Zero(t, store.pages)
}

func TestReindex_RejectsConcurrentRun(t *testing.T) {
	_, svc := newTestIndexService(newKeysetStore(catalogOf(2)...))

	svc.running.Lock()
	_, err := svc.Reindex(context.Background(), 10)
	svc.running.Unlock()

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "REINDEX_IN_PROGRESS", appErr.Code)
	assert.Equal(t, 409, appErr.Status)

	_, err = svc.Reindex(context.Background(), 10)
	assert.NoError(t, err, "lock is released once the other run ends")
}

func TestReindex_Canceled(t *testing.T) {
	store := newKeysetStore(catalogOf(6)...)
	_, svc := newTestIndexService(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.afterPage = func(int) { cancel() }

	_, err := svc.Reindex(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.pages)
}

func TestDeleteDocument(t *testing.T) {
	products := catalogOf(2)
	f, svc := newTestIndexService(newKeysetStore(products...))
	ctx := context.Background()
	require.NoError(t, f.engine.Index(ctx, domain.NewSearchDocument(&products[0])))
	f.seedCache(t, "search:{}", "product:item:p-01")

	require.NoError(t, svc.DeleteDocument(ctx, "p-01"))
	assert.Zero(t, f.engine.Len())
	assert.False(t, f.cached("search:{}"))
	assert.False(t, f.cached("product:item:p-01"))

	err := svc.DeleteDocument(ctx, "p-01")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	f.engine.SetAvailable(false)
	err = svc.DeleteDocument(ctx, "p-02")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}
