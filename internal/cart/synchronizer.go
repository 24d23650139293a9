// Package cart mirrors the shopper's remote cart and keeps the local copy consistent
// with the backend under overlapping reloads and mutations.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/shopspring/decimal"
)

// Entry is one cart line. ID addresses the line, ProductID the product it holds.
type Entry struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Photo       *string         `json:"photo"`
}

// Remote is the authoritative cart store.
type Remote interface {
	GetCart(ctx context.Context, creds auth.CredentialProvider) ([]Entry, error)
	AddToCart(ctx context.Context, creds auth.CredentialProvider, productID int64) error
	RemoveFromCart(ctx context.Context, creds auth.CredentialProvider, entryID int64) error
}

// Synchronizer owns the local cart copy of one shopper session.
// Every load takes a token; only the response to the latest token is applied.
type Synchronizer struct {
	remote Remote
	logger *slog.Logger

	mu         sync.Mutex
	entries    []Entry
	generation uint64
	inflight   int
	applied    uint64
}

func NewSynchronizer(remote Remote, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		remote:  remote,
		logger:  logger.With("component", "cart"),
		entries: []Entry{},
	}
}

// Load fetches the remote cart. It returns ErrSuperseded when a newer load or a removal
// happened meanwhile; the stale response is dropped.
func (s *Synchronizer) Load(ctx context.Context, creds auth.CredentialProvider) ([]Entry, error) {
	s.mu.Lock()
	s.generation++
	token := s.generation
	s.inflight++
	s.mu.Unlock()

	entries, err := s.remote.GetCart(ctx, creds)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if token != s.generation {
		s.logger.DebugContext(ctx, "discarding stale cart load", "token", token, "latest", s.generation)
		return nil, sferrors.ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	s.entries = slices.Clone(entries)
	s.applied++
	return slices.Clone(s.entries), nil
}

// Add puts the product into the remote cart. The local copy is untouched; see AddAndReload.
func (s *Synchronizer) Add(ctx context.Context, creds auth.CredentialProvider, productID int64) error {
	if err := s.remote.AddToCart(ctx, creds, productID); err != nil {
		return fmt.Errorf("failed to add product %d to cart: %w", productID, err)
	}
	return nil
}

// AddAndReload adds the product and then rebuilds the local copy from the remote cart.
// Line grouping is whatever the backend decides.
func (s *Synchronizer) AddAndReload(ctx context.Context, creds auth.CredentialProvider, productID int64) ([]Entry, error) {
	if err := s.Add(ctx, creds, productID); err != nil {
		return nil, err
	}
	return s.Load(ctx, creds)
}

// Remove deletes the line remotely and then drops exactly that line locally, without a reload.
// Loads still in flight started before the removal and are superseded.
func (s *Synchronizer) Remove(ctx context.Context, creds auth.CredentialProvider, entryID int64) error {
	if err := s.remote.RemoveFromCart(ctx, creds, entryID); err != nil {
		return fmt.Errorf("failed to remove cart entry %d: %w", entryID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.entries = slices.DeleteFunc(s.entries, func(e Entry) bool { return e.ID == entryID })
	return nil
}

// Clear empties the local copy after the backend turned the cart into an order.
// Loads still in flight are superseded.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.entries = []Entry{}
}

// Entries returns the local copy.
func (s *Synchronizer) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Loading reports whether a load is outstanding.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Applied counts the loads whose response replaced the local copy.
func (s *Synchronizer) Applied() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// Total sums the entry prices.
func Total(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Price)
	}
	return total
}
