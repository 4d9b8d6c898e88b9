package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/pkg/database"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// CollectionName is the collection products live in.
const CollectionName = "products"

// productDoc is the stored form of a product. _id holds the UUIDv7 string,
// so _id order is creation order.
type productDoc struct {
	ID          string     `bson:"_id"`
	Name        string     `bson:"name"`
	Slug        string     `bson:"slug"`
	Price       int64      `bson:"price"`
	Description string     `bson:"description"`
	Category    string     `bson:"category"`
	Colors      []string   `bson:"colors"`
	Stock       int        `bson:"stock"`
	Images      []string   `bson:"images"`
	Views       int64      `bson:"views"`
	Sold        int64      `bson:"sold"`
	Type        string     `bson:"type"`
	Status      string     `bson:"status"`
	DeletedAt   *time.Time `bson:"deletedAt"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
}

func toDoc(p *domain.Product) productDoc {
	return productDoc{
		ID: p.ID, Name: p.Name, Slug: p.Slug, Price: p.Price, Description: p.Description,
		Category: p.Category, Colors: p.Colors, Stock: p.Stock, Images: p.Images,
		Views: p.Views, Sold: p.Sold, Type: p.Type, Status: p.Status,
		DeletedAt: p.DeletedAt, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func (d productDoc) product() domain.Product {
	p := domain.Product{
		ID: d.ID, Name: d.Name, Slug: d.Slug, Price: d.Price, Description: d.Description,
		Category: d.Category, Colors: d.Colors, Stock: d.Stock, Images: d.Images,
		Views: d.Views, Sold: d.Sold, Type: d.Type, Status: d.Status,
		DeletedAt: d.DeletedAt, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	if p.Colors == nil {
		p.Colors = []string{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return p
}

// live matches documents that have not been soft deleted. A null filter
// matches both a null and a missing field.
var live = bson.E{Key: "deletedAt", Value: nil}

// ProductRepository implements repository.ProductRepository on MongoDB.
type ProductRepository struct {
	coll   *mongo.Collection
	tracer *database.QueryTracer
}

// NewProductRepository creates a repository over db's products collection.
// tracer may be nil.
func NewProductRepository(db *mongo.Database, tracer *database.QueryTracer) *ProductRepository {
	return newWithCollection(db.Collection(CollectionName), tracer)
}

func newWithCollection(coll *mongo.Collection, tracer *database.QueryTracer) *ProductRepository {
	return &ProductRepository{coll: coll, tracer: tracer}
}

// EnsureIndexes creates the secondary indexes used by listings and the
// reindex reconciliation pass.
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "deletedAt", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create product indexes: %w", err)
	}
	return nil
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, done := r.tracer.Start(ctx, "products.create", "insertOne")
	defer func() { done(err) }()

	if _, err = r.coll.InsertOne(ctx, toDoc(p)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("product", "id", p.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by id, including soft-deleted ones.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, done := r.tracer.Start(ctx, "products.get", "findOne _id")
	defer func() { done(err) }()

	var doc productDoc
	if err = r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	p := doc.product()
	return &p, nil
}

// List returns live products, newest first, with the total count.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) (_ []domain.Product, _ int, err error) {
	ctx, done := r.tracer.Start(ctx, "products.list", "find createdAt desc")
	defer func() { done(err) }()

	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}

	q := bson.D{live}
	if filter.Category != "" {
		q = append(q, bson.E{Key: "category", Value: filter.Category})
	}

	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(filter.Offset())).
		SetLimit(int64(filter.PerPage))

	products, err := r.find(ctx, q, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, int(total), nil
}

// Update modifies an existing live product.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	ctx, done := r.tracer.Start(ctx, "products.update", "updateOne $set")
	defer func() { done(err) }()

	set := bson.D{
		{Key: "name", Value: p.Name},
		{Key: "slug", Value: p.Slug},
		{Key: "price", Value: p.Price},
		{Key: "description", Value: p.Description},
		{Key: "category", Value: p.Category},
		{Key: "colors", Value: p.Colors},
		{Key: "stock", Value: p.Stock},
		{Key: "images", Value: p.Images},
		{Key: "type", Value: p.Type},
		{Key: "status", Value: p.Status},
		{Key: "updatedAt", Value: p.UpdatedAt},
	}
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: p.ID}, live}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

// SoftDelete stamps deletedAt on a live product.
func (r *ProductRepository) SoftDelete(ctx context.Context, id string, at time.Time) (err error) {
	ctx, done := r.tracer.Start(ctx, "products.soft_delete", "updateOne $set deletedAt")
	defer func() { done(err) }()

	update := bson.D{{Key: "$set", Value: bson.D{{Key: "deletedAt", Value: at}, {Key: "updatedAt", Value: at}}}}
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}, live}, update)
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// IncrementViews bumps the view counter of a live product.
func (r *ProductRepository) IncrementViews(ctx context.Context, id string) (err error) {
	ctx, done := r.tracer.Start(ctx, "products.increment_views", "updateOne $inc views")
	defer func() { done(err) }()

	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, live},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}}},
	)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// ListAfter returns the next keyset page ordered by _id.
func (r *ProductRepository) ListAfter(ctx context.Context, afterID string, limit int) (_ []domain.Product, err error) {
	ctx, done := r.tracer.Start(ctx, "products.list_after", "find _id $gt")
	defer func() { done(err) }()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit))
	products, err := r.find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: afterID}}}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list products after %q: %w", afterID, err)
	}
	return products, nil
}

// ListDeletedSince returns ids soft deleted at or after since.
func (r *ProductRepository) ListDeletedSince(ctx context.Context, since time.Time) (_ []string, err error) {
	ctx, done := r.tracer.Start(ctx, "products.list_deleted_since", "find deletedAt $gte")
	defer func() { done(err) }()

	opts := options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.D{{Key: "deletedAt", Value: bson.D{{Key: "$gte", Value: since}}}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list deleted products: %w", err)
	}

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err = cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode deleted ids: %w", err)
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids, nil
}

// Ping checks connectivity to the deployment.
func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *ProductRepository) find(ctx context.Context, filter any, opts *options.FindOptions) ([]domain.Product, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	products := make([]domain.Product, len(docs))
	for i, d := range docs {
		products[i] = d.product()
	}
	return products, nil
}
