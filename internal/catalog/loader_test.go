package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/storefront/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

// gatedSource answers call n with results[n-1] once gate(n) is closed, or gives up when the
// fetch context ends. It records the context error each fetch finished with.
type gatedSource struct {
	mu      sync.Mutex
	calls   int
	results [][]Product
	gates   map[int]chan struct{}
	started chan int
	ctxErrs []error
}

func newGatedSource(results ...[]Product) *gatedSource {
	return &gatedSource{
		results: results,
		gates:   make(map[int]chan struct{}),
		started: make(chan int, 8),
	}
}

func (s *gatedSource) gate(call int) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[call]
	if !ok {
		g = make(chan struct{})
		s.gates[call] = g
	}
	return g
}

func (s *gatedSource) ListProducts(ctx context.Context) ([]Product, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	s.started <- call

	select {
	case <-s.gate(call):
	case <-ctx.Done():
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.results[call-1], nil
}

func (s *gatedSource) snapshot() (int, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]error(nil), s.ctxErrs...)
}

type snapshotResult struct {
	products []Product
	err      error
}

func snapshotAsync(ctx context.Context, l *Loader, fresh bool) <-chan snapshotResult {
	out := make(chan snapshotResult, 1)
	go func() {
		products, err := l.Snapshot(ctx, fresh)
		out <- snapshotResult{products: products, err: err}
	}()
	return out
}

func TestLoader_CanceledWaiterDoesNotFailSharedFetch(t *testing.T) {
	// given a first shopper whose request starts the shared fetch
	source := newGatedSource(sampleCatalog())
	loader := NewLoader(source, store.NewMemorySnapshots(), time.Minute, discardLogger())
	firstCtx, cancel := context.WithCancel(context.Background())
	first := snapshotAsync(firstCtx, loader, false)
	require.Equal(t, 1, <-source.started)

	// when that shopper goes away
	cancel()

	// then only their call fails
	got := <-first
	assert.ErrorIs(t, got.err, context.Canceled)
	assert.Nil(t, got.products)

	// when a second shopper asks while the fetch is still running
	second := snapshotAsync(context.Background(), loader, false)
	close(source.gate(1))

	// then they get the catalog from the same fetch
	got = <-second
	require.NoError(t, got.err)
	assert.Len(t, got.products, 6)
	calls, ctxErrs := source.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, []error{nil}, ctxErrs, "the shared fetch ran to completion")
}

func TestLoader_RefreshDuringFetchIsNotOverwritten(t *testing.T) {
	// given a cache miss whose fetch is still in flight
	source := newGatedSource(sampleCatalog(), sampleCatalog()[:1])
	loader := NewLoader(source, store.NewMemorySnapshots(), time.Minute, discardLogger())
	older := snapshotAsync(context.Background(), loader, false)
	require.Equal(t, 1, <-source.started)

	// when a refresh runs and answers first
	close(source.gate(2))
	refreshed, err := loader.Snapshot(context.Background(), true)

	// then the refresh gets its own fetch
	require.NoError(t, err)
	assert.Len(t, refreshed, 1)

	// when the older fetch answers afterwards
	close(source.gate(1))
	got := <-older
	require.NoError(t, got.err)

	// then it does not replace the refreshed snapshot
	cached, err := loader.Snapshot(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
	calls, _ := source.snapshot()
	assert.Equal(t, 2, calls)
}

func TestView_OlderLoadDoesNotOverwriteRefresh(t *testing.T) {
	// given a first load still waiting for the backend
	source := newGatedSource(sampleCatalog(), sampleCatalog()[:1])
	view := NewView(NewLoader(source, store.NewMemorySnapshots(), time.Minute, discardLogger()), language.English)
	loadDone := make(chan error, 1)
	go func() { loadDone <- view.Load(context.Background()) }()
	require.Equal(t, 1, <-source.started)

	// when a refresh answers first
	close(source.gate(2))
	require.NoError(t, view.Refresh(context.Background()))

	// then its snapshot is shown and the older load is still outstanding
	assert.Equal(t, ids(sampleCatalog()[:1]), ids(view.Result().Products))
	assert.True(t, view.Loading())

	// when the older load answers
	close(source.gate(1))
	require.NoError(t, <-loadDone)

	// then the refreshed snapshot stays
	assert.Equal(t, ids(sampleCatalog()[:1]), ids(view.Result().Products))
	assert.False(t, view.Loading())
}
