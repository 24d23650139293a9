package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/checkout"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/recent"
	"github.com/abgdnv/storefront/pkg/auth"
)

var (
	_ catalog.ProductSource = (*Client)(nil)
	_ cart.Remote           = (*Client)(nil)
	_ checkout.Remote       = (*Client)(nil)
	_ recent.Remote         = (*Client)(nil)
)

// ListProducts fetches the whole catalog. The catalog is public.
func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return do[[]catalog.Product](ctx, c, request{method: http.MethodGet, path: "/products"})
}

// GetProduct fetches one product with its reviews.
func (c *Client) GetProduct(ctx context.Context, id int64) (catalog.Detail, error) {
	return do[catalog.Detail](ctx, c, request{method: http.MethodGet, path: "/product/" + strconv.FormatInt(id, 10)})
}

func (c *Client) GetCart(ctx context.Context, creds auth.CredentialProvider) ([]cart.Entry, error) {
	if creds == nil {
		return nil, errNoCredentials()
	}
	return do[[]cart.Entry](ctx, c, request{method: http.MethodGet, path: "/cart", creds: creds})
}

func (c *Client) AddToCart(ctx context.Context, creds auth.CredentialProvider, productID int64) error {
	if creds == nil {
		return errNoCredentials()
	}
	_, err := do[struct{}](ctx, c, request{
		method: http.MethodPost,
		path:   "/cart/" + strconv.FormatInt(productID, 10),
		creds:  creds,
	})
	return err
}

func (c *Client) RemoveFromCart(ctx context.Context, creds auth.CredentialProvider, entryID int64) error {
	if creds == nil {
		return errNoCredentials()
	}
	_, err := do[struct{}](ctx, c, request{
		method: http.MethodDelete,
		path:   "/cart/" + strconv.FormatInt(entryID, 10),
		creds:  creds,
	})
	return err
}

type createdOrderPayload struct {
	OrderID     int64  `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
	URL         string `json:"url"`
}

// CreateOrder places an order from the remote cart. The key lets the backend drop a duplicate submit.
func (c *Client) CreateOrder(ctx context.Context, creds auth.CredentialProvider, idempotencyKey string) (checkout.CreatedOrder, error) {
	if creds == nil {
		return checkout.CreatedOrder{}, errNoCredentials()
	}
	p, err := do[createdOrderPayload](ctx, c, request{
		method:         http.MethodPost,
		path:           "/order",
		creds:          creds,
		idempotencyKey: idempotencyKey,
	})
	if err != nil {
		return checkout.CreatedOrder{}, err
	}
	redirect := p.RedirectURL
	if redirect == "" {
		redirect = p.URL
	}
	return checkout.CreatedOrder{OrderID: p.OrderID, RedirectURL: redirect}, nil
}

func (c *Client) ListOrders(ctx context.Context, creds auth.CredentialProvider) ([]checkout.Order, error) {
	if creds == nil {
		return nil, errNoCredentials()
	}
	return do[[]checkout.Order](ctx, c, request{method: http.MethodGet, path: "/order", creds: creds})
}

func (c *Client) PaymentStatus(ctx context.Context, creds auth.CredentialProvider, sessionID string) (checkout.PaymentStatus, error) {
	if creds == nil {
		return checkout.PaymentStatus{}, errNoCredentials()
	}
	return do[checkout.PaymentStatus](ctx, c, request{
		method: http.MethodGet,
		path:   "/payment-status/" + url.PathEscape(sessionID),
		creds:  creds,
	})
}

func (c *Client) Recent(ctx context.Context, creds auth.CredentialProvider) ([]recent.Entry, error) {
	if creds == nil {
		return nil, errNoCredentials()
	}
	return do[[]recent.Entry](ctx, c, request{method: http.MethodGet, path: "/recent", creds: creds})
}

// Ping checks that the backend answers at all; any HTTP status counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/products", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func errNoCredentials() error {
	return fmt.Errorf("%w: %v", sferrors.ErrUnauthenticated, auth.ErrNoCredential)
}
