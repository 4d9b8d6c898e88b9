package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/repository"
)

// Insert writes products in batches, using the store's bulk path when it
// has one. It returns how many rows were written before any error.
func Insert(ctx context.Context, repo repository.ProductRepository, products []domain.Product, batchSize int, logger *slog.Logger) (int64, error) {
	bulk, ok := repo.(repository.BulkWriter)
	var total int64
	for i, batch := range Batches(products, batchSize) {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if ok {
			n, err := bulk.BulkCreate(ctx, batch)
			if err != nil {
				return total, fmt.Errorf("bulk insert batch %d: %w", i+1, err)
			}
			total += n
		} else {
			for j := range batch {
				if err := repo.Create(ctx, &batch[j]); err != nil {
					return total, fmt.Errorf("insert product %s: %w", batch[j].ID, err)
				}
				total++
			}
		}
		logger.DebugContext(ctx, "seed batch inserted", slog.Int("batch", i+1), slog.Int64("total", total))
	}
	return total, nil
}
