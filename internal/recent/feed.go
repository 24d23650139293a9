// Package recent exposes the shopper's recently viewed products.
package recent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abgdnv/storefront/internal/catalog"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/auth"
)

// Entry pairs a viewer with a product they looked at.
type Entry struct {
	ID       int64           `json:"id"`
	Viewer   *catalog.Label  `json:"user"`
	Product  catalog.Product `json:"product"`
	ViewedAt *time.Time      `json:"viewed_at,omitempty"`
}

type Remote interface {
	Recent(ctx context.Context, creds auth.CredentialProvider) ([]Entry, error)
}

// Feed is read-only; it is fetched once per product detail visit.
type Feed struct {
	remote Remote
}

func NewFeed(remote Remote) *Feed {
	return &Feed{remote: remote}
}

// Fetch returns the recent views. A signed-out shopper simply has none.
func (f *Feed) Fetch(ctx context.Context, creds auth.CredentialProvider) ([]Entry, error) {
	entries, err := f.remote.Recent(ctx, creds)
	if errors.Is(err, sferrors.ErrUnauthenticated) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent views: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
