package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/catalog/internal/domain"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
	"github.com/utafrali/catalog/pkg/logger"
)

// Kafka topic constants for catalog events.
const (
	TopicProductCreated = "catalog.product.created"
	TopicProductUpdated = "catalog.product.updated"
	TopicProductDeleted = "catalog.product.deleted"
)

// AggregateTypeProduct is the aggregate type of every catalog event.
const AggregateTypeProduct = "product"

// SourceCatalogService identifies events published by this service.
const SourceCatalogService = "catalog-service"

// ProductData is the payload of product.created and product.updated.
type ProductData struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Slug     string   `json:"slug"`
	Category string   `json:"category"`
	Colors   []string `json:"colors"`
	Price    int64    `json:"price"`
	Stock    int      `json:"stock"`
	Type     string   `json:"type"`
	Status   string   `json:"status"`
}

// ProductDeletedData is the payload for a product.deleted event.
type ProductDeletedData struct {
	ID        string    `json:"id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// Publisher is the part of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes catalog events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func productData(p *domain.Product) ProductData {
	return ProductData{
		ID:       p.ID,
		Name:     p.Name,
		Slug:     p.Slug,
		Category: p.Category,
		Colors:   p.Colors,
		Price:    p.Price,
		Stock:    p.Stock,
		Type:     p.Type,
		Status:   p.Status,
	}
}

// PublishProductCreated publishes a product.created event.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, productData(product))
}

// PublishProductUpdated publishes a product.updated event.
func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.ID, productData(product))
}

// PublishProductDeleted publishes a product.deleted event.
func (p *Producer) PublishProductDeleted(ctx context.Context, id string, at time.Time) error {
	return p.publish(ctx, TopicProductDeleted, id, ProductDeletedData{ID: id, DeletedAt: at})
}

func (p *Producer) publish(ctx context.Context, topic, id string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, id, AggregateTypeProduct, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		evt.WithCorrelationID(cid)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published catalog event",
		slog.String("topic", topic),
		slog.String("product_id", id),
	)
	return nil
}

// Noop discards events. Used when no brokers are configured.
type Noop struct{}

func (Noop) PublishProductCreated(context.Context, *domain.Product) error   { return nil }
func (Noop) PublishProductUpdated(context.Context, *domain.Product) error   { return nil }
func (Noop) PublishProductDeleted(context.Context, string, time.Time) error { return nil }
