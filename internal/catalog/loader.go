package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/storefront/internal/store"
	"golang.org/x/sync/singleflight"
)

const snapshotKey = "catalog"

// ProductSource fetches the full product list from the backend.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// SnapshotCache keeps serialized snapshots shared by all sessions.
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Loader hands out catalog snapshots. Concurrent misses share one backend fetch, which is
// not canceled when one of its waiters goes away.
type Loader struct {
	source ProductSource
	cache  SnapshotCache
	ttl    time.Duration
	sfg    singleflight.Group
	logger *slog.Logger

	// epoch advances on every refresh; a fetch started before it never overwrites the cache.
	mu    sync.Mutex
	epoch uint64
}

func NewLoader(source ProductSource, cache SnapshotCache, ttl time.Duration, logger *slog.Logger) *Loader {
	return &Loader{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "catalog-loader"),
	}
}

// Snapshot returns the cached snapshot or fetches a new one. With fresh set the cache is bypassed
// and replaced by a fetch of its own. Cache failures are logged and never fail the call.
func (l *Loader) Snapshot(ctx context.Context, fresh bool) ([]Product, error) {
	if fresh {
		return l.refresh(ctx)
	}
	if products, ok := l.cached(ctx); ok {
		return products, nil
	}

	ch := l.sfg.DoChan(snapshotKey, func() (any, error) {
		// bounded by the backend client timeout
		fetchCtx := context.WithoutCancel(ctx)
		epoch := l.currentEpoch()
		products, err := l.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		l.storeIfCurrent(fetchCtx, epoch, products)
		return products, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to load catalog: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", res.Err)
		}
		return res.Val.([]Product), nil
	}
}

func (l *Loader) refresh(ctx context.Context) ([]Product, error) {
	l.mu.Lock()
	l.epoch++
	epoch := l.epoch
	l.mu.Unlock()

	products, err := l.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh catalog: %w", err)
	}
	l.storeIfCurrent(ctx, epoch, products)
	return products, nil
}

func (l *Loader) fetch(ctx context.Context) ([]Product, error) {
	products, err := l.source.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func (l *Loader) currentEpoch() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}

func (l *Loader) storeIfCurrent(ctx context.Context, epoch uint64, products []Product) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if epoch != l.epoch {
		l.logger.DebugContext(ctx, "dropping snapshot fetched before a refresh", "epoch", epoch, "latest", l.epoch)
		return
	}
	l.store(ctx, products)
}

func (l *Loader) cached(ctx context.Context) ([]Product, bool) {
	data, err := l.cache.Get(ctx, snapshotKey)
	if err != nil {
		if !errors.Is(err, store.ErrCacheMiss) {
			l.logger.WarnContext(ctx, "snapshot cache get failed", "error", err)
		}
		return nil, false
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		l.logger.WarnContext(ctx, "snapshot cache entry is corrupt", "error", err)
		return nil, false
	}
	return products, true
}

func (l *Loader) store(ctx context.Context, products []Product) {
	data, err := json.Marshal(products)
	if err != nil {
		l.logger.WarnContext(ctx, "failed to encode snapshot", "error", err)
		return
	}
	if err := l.cache.Set(ctx, snapshotKey, data, l.ttl); err != nil {
		l.logger.WarnContext(ctx, "snapshot cache set failed", "error", err)
	}
}
