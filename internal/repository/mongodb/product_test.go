package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/utafrali/catalog/internal/domain"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

const ns = "catalog.products"

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func productBSON(id, name string, deletedAt *time.Time) bson.D {
	d := bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: name},
		{Key: "slug", Value: "ao-thun"},
		{Key: "price", Value: int64(150000)},
		{Key: "description", Value: "Áo thun cotton thoáng mát"},
		{Key: "category", Value: "Áo"},
		{Key: "colors", Value: bson.A{"Đỏ"}},
		{Key: "stock", Value: 3},
		{Key: "views", Value: int64(0)},
		{Key: "sold", Value: int64(0)},
		{Key: "type", Value: domain.ProductTypeSelling},
		{Key: "status", Value: domain.ProductStatusActive},
		{Key: "createdAt", Value: now},
		{Key: "updatedAt", Value: now},
	}
	if deletedAt != nil {
		d = append(d, bson.E{Key: "deletedAt", Value: *deletedAt})
	}
	return d
}

func newMT(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func TestProductRepository_GetByID(t *testing.T) {
	mt := newMT(t)

	mt.Run("found", func(mt *mtest.T) {
		repo := newWithCollection(mt.Coll, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, productBSON("p-1", "Áo thun", nil)))

		p, err := repo.GetByID(context.Background(), "p-1")
		require.NoError(mt, err)
		assert.Equal(mt, "Áo thun", p.Name)
		assert.Equal(mt, []string{"Đỏ"}, p.Colors)
		assert.Equal(mt, []string{}, p.Images)
		assert.Nil(mt, p.DeletedAt)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := newWithCollection(mt.Coll, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestProductRepository_Create(t *testing.T) {
	mt := newMT(t)

	mt.Run("ok", func(mt *mtest.T) {
		repo := newWithCollection(mt.Coll, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, repo.Create(context.Background(), &domain.Product{ID: "p-1", Name: "Áo thun"}))
	})

	mt.Run("duplicate", func(mt *mtest.T) {
		repo := newWithCollection(mt.Coll, nil)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))

		err := repo.Create(context.Background(), &domain.Product{ID: "p-1"})
		assert.ErrorIs(mt, err, apperrors.ErrAlreadyExists)
	})
}

func TestProductRepository_SoftDelete(t *testing.T) {
	mt := newMT(t)

	mt.Run("matched", func(mt *mtest.T) {
		repo := newWithCollection(mt.Coll, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		require.NoError(mt, repo.SoftDelete(context.Background(), "p-1", now))
	})

	mt.Run("already deleted", func(mt *mtest.T) {
		repo := newWithCollection(mt.Coll, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		assert.ErrorIs(mt, repo.SoftDelete(context.Background(), "p-1", now), apperrors.ErrNotFound)
	})
}

func TestProductRepository_ListAfter(t *testing.T) {
	mt := newMT(t)

	mt.Run("includes deleted", func(mt *mtest.T) {
		repo := newWithCollection(mt.Coll, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			productBSON("p-2", "Quần jean", nil),
			productBSON("p-3", "Giày", &now),
		))

		page, err := repo.ListAfter(context.Background(), "p-1", 2)
		require.NoError(mt, err)
		require.Len(mt, page, 2)
		assert.Equal(mt, "p-2", page[0].ID)
		require.NotNil(mt, page[1].DeletedAt)
		assert.True(mt, page[1].DeletedAt.Equal(now))
	})
}

func TestProductRepository_List(t *testing.T) {
	mt := newMT(t)

	mt.Run("count then page", func(mt *mtest.T) {
		repo := newWithCollection(mt.Coll, nil)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(7)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, productBSON("p-9", "Áo khoác", nil)),
		)

		products, total, err := repo.List(context.Background(), domain.ProductFilter{Category: "Áo", Page: 1, PerPage: 1})
		require.NoError(mt, err)
		assert.Equal(mt, 7, total)
		require.Len(mt, products, 1)
		assert.Equal(mt, "p-9", products[0].ID)
	})
}

func TestProductRepository_ListDeletedSince(t *testing.T) {
	mt := newMT(t)

	mt.Run("ids", func(mt *mtest.T) {
		repo := newWithCollection(mt.Coll, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "p-4"}},
			bson.D{{Key: "_id", Value: "p-8"}},
		))

		ids, err := repo.ListDeletedSince(context.Background(), now)
		require.NoError(mt, err)
		assert.Equal(mt, []string{"p-4", "p-8"}, ids)
	})
}
