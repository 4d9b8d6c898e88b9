package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/utafrali/catalog/pkg/retry"
)

// ConnectWithRetry pings the engine with exponential backoff (base, 2*base,
// 4*base, ...) and no jitter. It returns the last error once attempts are
// exhausted; the caller decides whether to continue degraded.
func ConnectWithRetry(ctx context.Context, ping func(context.Context) error, attempts int, base time.Duration, logger *slog.Logger) error {
	return retry.Do(ctx, retry.Config{
		Attempts:  attempts,
		BaseDelay: base,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			logger.WarnContext(ctx, "search engine not reachable, retrying",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.Duration("retry_in", wait),
				slog.String("error", err.Error()),
			)
		},
	}, ping)
}
