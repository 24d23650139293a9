package catalog

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListProducts(ctx context.Context) ([]Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Product), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoader_CachesSnapshot(t *testing.T) {
	// given
	source := new(mockSource)
	source.On("ListProducts", mock.Anything).Return(sampleCatalog(), nil).Once()
	loader := NewLoader(source, store.NewMemorySnapshots(), time.Minute, discardLogger())

	// when
	first, err := loader.Snapshot(context.Background(), false)
	require.NoError(t, err)
	second, err := loader.Snapshot(context.Background(), false)
	require.NoError(t, err)

	// then
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, "Percussion", labelValue(second[0].Category))
	source.AssertNumberOfCalls(t, "ListProducts", 1)
}

func TestLoader_FreshBypassesCache(t *testing.T) {
	source := new(mockSource)
	source.On("ListProducts", mock.Anything).Return(sampleCatalog(), nil).Once()
	source.On("ListProducts", mock.Anything).Return(sampleCatalog()[:1], nil).Once()
	loader := NewLoader(source, store.NewMemorySnapshots(), time.Minute, discardLogger())

	_, err := loader.Snapshot(context.Background(), false)
	require.NoError(t, err)
	got, err := loader.Snapshot(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	cached, err := loader.Snapshot(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, cached, 1, "refresh replaces the shared snapshot")
	source.AssertExpectations(t)
}

func TestLoader_SourceFailure(t *testing.T) {
	source := new(mockSource)
	source.On("ListProducts", mock.Anything).Return(nil, sferrors.ErrUnavailable)
	loader := NewLoader(source, store.NewMemorySnapshots(), time.Minute, discardLogger())

	_, err := loader.Snapshot(context.Background(), false)
	assert.ErrorIs(t, err, sferrors.ErrUnavailable)
}

// blockingSource holds every fetch until release is closed.
type blockingSource struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (b *blockingSource) ListProducts(context.Context) ([]Product, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.started <- struct{}{}
	<-b.release
	return sampleCatalog(), nil
}

func TestView_LoadingFlag(t *testing.T) {
	source := &blockingSource{started: make(chan struct{}, 1), release: make(chan struct{})}
	view := NewView(NewLoader(source, store.NewMemorySnapshots(), time.Minute, discardLogger()), language.English)

	done := make(chan error, 1)
	go func() { done <- view.Load(context.Background()) }()

	<-source.started
	assert.True(t, view.Loading())
	assert.True(t, view.Result().Loading)
	assert.Empty(t, view.Result().Products, "an empty result while loading is not an error")

	close(source.release)
	require.NoError(t, <-done)
	assert.False(t, view.Loading())
	assert.Len(t, view.Result().Products, 6)
}

func TestView_LoadOncePerSession(t *testing.T) {
	source := new(mockSource)
	source.On("ListProducts", mock.Anything).Return([]Product{}, nil).Once()
	view := NewView(NewLoader(source, store.NewMemorySnapshots(), 0, discardLogger()), language.English)

	require.NoError(t, view.Load(context.Background()))
	require.NoError(t, view.Load(context.Background()))

	source.AssertNumberOfCalls(t, "ListProducts", 1)
	assert.Empty(t, view.Result().Products)
}

func TestView_UpdateKeepsLastValidCriteria(t *testing.T) {
	source := new(mockSource)
	source.On("ListProducts", mock.Anything).Return(sampleCatalog(), nil)
	view := NewView(NewLoader(source, store.NewMemorySnapshots(), time.Minute, discardLogger()), language.English)
	require.NoError(t, view.Load(context.Background()))

	// given a valid price interval
	valid := Criteria{
		MinPrice: decimal.NewNullDecimal(decimal.RequireFromString("10")),
		MaxPrice: decimal.NewNullDecimal(decimal.RequireFromString("20")),
		Sort:     SortPriceAsc,
	}
	effective, err := view.Update(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, effective)

	// when the lower bound is edited above the upper bound
	rejected := valid
	rejected.MinPrice = decimal.NewNullDecimal(decimal.RequireFromString("30"))
	effective, err = view.Update(rejected)

	// then
	require.ErrorIs(t, err, sferrors.ErrValidationRejected)
	assert.Equal(t, valid, effective)
	assert.Equal(t, valid, view.Criteria())
	assert.Equal(t, []int64{1, 3, 5}, ids(view.Result().Products))
}

func TestView_OptionSetsComeFromFullSnapshot(t *testing.T) {
	source := new(mockSource)
	source.On("ListProducts", mock.Anything).Return(sampleCatalog(), nil)
	view := NewView(NewLoader(source, store.NewMemorySnapshots(), time.Minute, discardLogger()), language.English)
	require.NoError(t, view.Load(context.Background()))

	_, err := view.Update(Criteria{Category: str("Percussion"), Sort: SortNameAsc})
	require.NoError(t, err)

	result := view.Result()
	assert.Equal(t, []int64{1}, ids(result.Products))
	assert.Equal(t, []string{"Guitar", "Percussion"}, result.Categories)
	assert.Empty(t, result.Manufacturers)
}
