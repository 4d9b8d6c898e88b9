package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/catalog/internal/domain"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

var (
	searchAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_search_engine_available",
		Help: "1 when the search engine answered the last heartbeat, 0 otherwise",
	})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_search_circuit_breaker_state",
		Help: "Current state of the search circuit breaker (0=closed, 1=half-open, 2=open)",
	})
)

// GuardConfig tunes the circuit breaker and heartbeat of a Guard.
type GuardConfig struct {
	// HeartbeatInterval is how often Ping runs in the background. Zero
	// disables the heartbeat.
	HeartbeatInterval time.Duration
	PingTimeout       time.Duration

	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval clears failure counts while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32

	// OnRecover runs when a heartbeat succeeds while the engine is marked
	// unavailable, before it is marked available again. An error keeps the
	// engine unavailable until the next heartbeat.
	OnRecover func(ctx context.Context) error
}

// DefaultGuardConfig returns the production defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		HeartbeatInterval: 15 * time.Second,
		PingTimeout:       3 * time.Second,
		MaxRequests:       1,
		Interval:          60 * time.Second,
		Timeout:           30 * time.Second,
		FailureRatio:      0.5,
		MinRequests:       5,
	}
}

// Guard wraps a SearchEngine with a health bit and a circuit breaker. Calls
// made while the engine is marked unavailable, or while the breaker is open,
// fail fast with ErrUnavailable. A background heartbeat flips the bit.
type Guard struct {
	inner     SearchEngine
	cfg       GuardConfig
	breaker   *gobreaker.CircuitBreaker[any]
	available atomic.Bool
	logger    *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ SearchEngine = (*Guard)(nil)

// NewGuard wraps inner. available is the result of the startup connectivity
// check. Call Start to run the heartbeat and Close to stop it.
func NewGuard(inner SearchEngine, cfg GuardConfig, available bool, logger *slog.Logger) *Guard {
	g := &Guard{
		inner:  inner,
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
	}

	g.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "search-engine",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.Set(stateToFloat(to))
		},
	})
	breakerState.Set(0)

	g.setAvailable(available)
	return g
}

// isBreakerSuccess keeps caller mistakes and cancellations from tripping the
// breaker. Only backend failures count.
func isBreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, domain.ErrPaginationLimit) ||
		errors.Is(err, context.Canceled)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Available reports whether the engine answered the last health check and
// the breaker is not open.
func (g *Guard) Available() bool {
	return g.available.Load() && g.breaker.State() != gobreaker.StateOpen
}

func (g *Guard) setAvailable(ok bool) {
	if prev := g.available.Swap(ok); prev != ok {
		if ok {
			g.logger.Info("search engine available")
		} else {
			g.logger.Warn("search engine unavailable, serving degraded responses")
		}
	}
	if ok {
		searchAvailable.Set(1)
	} else {
		searchAvailable.Set(0)
	}
}

// Start launches the heartbeat. It is a no-op when the interval is zero.
func (g *Guard) Start() {
	if g.cfg.HeartbeatInterval <= 0 {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(g.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-g.stop:
				return
			case <-ticker.C:
				g.Check(context.Background())
			}
		}
	}()
}

// Check pings the engine once, bypassing the breaker, and records the result.
func (g *Guard) Check(ctx context.Context) bool {
	timeout := g.cfg.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := g.inner.Ping(ctx)
	if err != nil {
		g.logger.Debug("search heartbeat failed", slog.String("error", err.Error()))
	} else if !g.available.Load() && g.cfg.OnRecover != nil {
		if err = g.cfg.OnRecover(ctx); err != nil {
			g.logger.Warn("search engine reachable but recovery failed",
				slog.String("error", err.Error()),
			)
		}
	}
	g.setAvailable(err == nil)
	return err == nil
}

// Close stops the heartbeat and waits for it to exit.
func (g *Guard) Close() {
	g.stopOnce.Do(func() { close(g.stop) })
	g.wg.Wait()
}

func guarded[T any](g *Guard, fn func() (T, error)) (T, error) {
	var zero T
	if !g.available.Load() {
		return zero, ErrUnavailable
	}
	res, err := g.breaker.Execute(func() (any, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, errors.Join(ErrUnavailable, err)
		}
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

func guardedErr(g *Guard, fn func() error) error {
	_, err := guarded(g, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func (g *Guard) Index(ctx context.Context, doc *domain.SearchDocument) error {
	return guardedErr(g, func() error { return g.inner.Index(ctx, doc) })
}

func (g *Guard) Get(ctx context.Context, id string) (*domain.SearchDocument, error) {
	return guarded(g, func() (*domain.SearchDocument, error) { return g.inner.Get(ctx, id) })
}

func (g *Guard) Exists(ctx context.Context, id string) (bool, error) {
	return guarded(g, func() (bool, error) { return g.inner.Exists(ctx, id) })
}

func (g *Guard) Delete(ctx context.Context, id string) error {
	return guardedErr(g, func() error { return g.inner.Delete(ctx, id) })
}

func (g *Guard) Search(ctx context.Context, params *domain.SearchParams) (*domain.SearchResult, error) {
	return guarded(g, func() (*domain.SearchResult, error) { return g.inner.Search(ctx, params) })
}

func (g *Guard) TermSuggestions(ctx context.Context, text string, size int) ([]string, error) {
	return guarded(g, func() ([]string, error) { return g.inner.TermSuggestions(ctx, text, size) })
}

func (g *Guard) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	return guarded(g, func() ([]string, error) { return g.inner.Suggest(ctx, prefix, limit) })
}

func (g *Guard) Categories(ctx context.Context, size int) ([]domain.CategoryCount, error) {
	return guarded(g, func() ([]domain.CategoryCount, error) { return g.inner.Categories(ctx, size) })
}

func (g *Guard) PriceRanges(ctx context.Context) (*domain.PriceRanges, error) {
	return guarded(g, func() (*domain.PriceRanges, error) { return g.inner.PriceRanges(ctx) })
}

func (g *Guard) Trending(ctx context.Context, limit int) ([]domain.Product, error) {
	return guarded(g, func() ([]domain.Product, error) { return g.inner.Trending(ctx, limit) })
}

func (g *Guard) Related(ctx context.Context, id string, limit int) ([]domain.Product, error) {
	return guarded(g, func() ([]domain.Product, error) { return g.inner.Related(ctx, id, limit) })
}

func (g *Guard) BulkIndex(ctx context.Context, docs []*domain.SearchDocument) (*BulkResult, error) {
	return guarded(g, func() (*BulkResult, error) { return g.inner.BulkIndex(ctx, docs) })
}

func (g *Guard) RecreateIndex(ctx context.Context) error {
	return guardedErr(g, func() error { return g.inner.RecreateIndex(ctx) })
}

func (g *Guard) Refresh(ctx context.Context) error {
	return guardedErr(g, func() error { return g.inner.Refresh(ctx) })
}

// Ping checks the engine directly and updates availability.
func (g *Guard) Ping(ctx context.Context) error {
	if !g.Check(ctx) {
		return ErrUnavailable
	}
	return nil
}
