package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/config"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var creds = auth.StaticToken("secret-token")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// setupBackend starts a fake REST backend and a client pointing at it.
func setupBackend(t *testing.T, register func(r chi.Router)) *Client {
	t.Helper()
	r := chi.NewRouter()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := config.BackendConfig{URL: srv.URL + "/api/shop", Timeout: 2 * time.Second}
	transport := NewTransport(config.ResilienceConfig{CircuitBreaker: config.CircuitBreakerConfig{
		ConsecutiveFailures: 5, ErrorRatePercent: 90, OpenTimeout: time.Second,
	}})
	return NewClient(cfg, transport, discardLogger())
}

func TestClient_ListProducts(t *testing.T) {
	client := setupBackend(t, func(r chi.Router) {
		r.Get("/api/shop/products", func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Authorization"), "catalog is public")
			writeJSON(w, http.StatusOK, `{"data": [
				{"id": 1, "name": "Drum", "description": "", "price": "10.00", "category": 1, "manufacturer": null, "photo": null},
				{"id": 2, "name": "Guitar", "description": "", "price": "25.00", "category": {"name": "Guitar"}, "photo": "p/g.jpg"}
			]}`)
		})
	})

	products, err := client.ListProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "10", products[0].Price.String())
	assert.Nil(t, products[0].Manufacturer)
	assert.Equal(t, "Guitar", string(*products[1].Category))
}

func TestClient_GetCartSendsBearer(t *testing.T) {
	client := setupBackend(t, func(r chi.Router) {
		r.Get("/api/shop/cart", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer secret-token" {
				writeJSON(w, http.StatusForbidden, `{"error": {"code": 403, "message": "Login failed"}}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"data": [{"id": 1, "product_id": 7, "name": "Drum", "description": "d", "price": "10.00"}]}`)
		})
	})

	entries, err := client.GetCart(context.Background(), creds)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].ProductID)

	_, err = client.GetCart(context.Background(), auth.StaticToken("wrong"))
	require.ErrorIs(t, err, sferrors.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "Login failed")
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "401", status: http.StatusUnauthorized, body: `{}`, wantErr: sferrors.ErrUnauthenticated},
		{name: "403", status: http.StatusForbidden, body: `{"error": {"code": 403, "message": "Forbidden for you"}}`, wantErr: sferrors.ErrUnauthenticated},
		{name: "404", status: http.StatusNotFound, body: `{"error": {"code": 404, "message": "Not found"}}`, wantErr: sferrors.ErrNotFound},
		{name: "422", status: http.StatusUnprocessableEntity, body: `{"error": {"code": 422, "message": "Validation error"}}`, wantErr: sferrors.ErrUnavailable},
		{name: "500", status: http.StatusInternalServerError, body: `oops`, wantErr: sferrors.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupBackend(t, func(r chi.Router) {
				r.Post("/api/shop/cart/{id}", func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, tt.status, tt.body)
				})
			})
			err := client.AddToCart(context.Background(), creds, 9)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_NoCredentialMakesNoCall(t *testing.T) {
	var called atomic.Bool
	client := setupBackend(t, func(r chi.Router) {
		r.Delete("/api/shop/cart/{id}", func(w http.ResponseWriter, _ *http.Request) {
			called.Store(true)
			writeJSON(w, http.StatusOK, `{"data": {}}`)
		})
	})

	err := client.RemoveFromCart(context.Background(), auth.StaticToken(""), 3)
	assert.ErrorIs(t, err, sferrors.ErrUnauthenticated)

	err = client.RemoveFromCart(context.Background(), nil, 3)
	assert.ErrorIs(t, err, sferrors.ErrUnauthenticated)
	assert.False(t, called.Load())
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client := NewClient(config.BackendConfig{URL: url, Timeout: time.Second}, nil, discardLogger())

	_, err := client.ListProducts(context.Background())

	assert.ErrorIs(t, err, sferrors.ErrUnavailable)
}

func TestClient_CanceledContext(t *testing.T) {
	release := make(chan struct{})
	client := setupBackend(t, func(r chi.Router) {
		r.Get("/api/shop/payment-status/{sid}", func(w http.ResponseWriter, _ *http.Request) {
			<-release
			writeJSON(w, http.StatusOK, `{"status": "paid"}`)
		})
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := client.PaymentStatus(ctx, creds, "cs_1")

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, sferrors.ErrUnavailable)
}

func TestClient_CreateOrder(t *testing.T) {
	gotKey := make(chan string, 1)
	client := setupBackend(t, func(r chi.Router) {
		r.Post("/api/shop/order", func(w http.ResponseWriter, r *http.Request) {
			gotKey <- r.Header.Get("Idempotency-Key")
			writeJSON(w, http.StatusOK, `{"data": {"order_id": 12, "message": "Order is processed", "url": "https://pay.example.com/cs_12"}}`)
		})
	})

	created, err := client.CreateOrder(context.Background(), creds, "key-1")

	require.NoError(t, err)
	assert.Equal(t, int64(12), created.OrderID)
	assert.Equal(t, "https://pay.example.com/cs_12", created.RedirectURL)
	assert.Equal(t, "key-1", <-gotKey)
}

func TestClient_PaymentStatusBareBody(t *testing.T) {
	client := setupBackend(t, func(r chi.Router) {
		r.Get("/api/shop/payment-status/{sid}", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "cs_1", chi.URLParam(r, "sid"))
			writeJSON(w, http.StatusOK, `{"status": "paid"}`)
		})
	})

	status, err := client.PaymentStatus(context.Background(), creds, "cs_1")

	require.NoError(t, err)
	assert.True(t, status.Paid())
}

func TestClient_ListOrdersAndDetail(t *testing.T) {
	client := setupBackend(t, func(r chi.Router) {
		r.Get("/api/shop/order", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"data": [{"id": 3, "order_price": "35.00", "status": "unpaid", "products": [{"id": 1, "name": "Drum", "price": "10"}]}]}`)
		})
		r.Get("/api/shop/product/{id}", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"data": {"id": 1, "name": "Drum", "price": "10", "reviews": [{"text": "ok", "grade": "4.0"}]}}`)
		})
		r.Get("/api/shop/recent", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"data": [{"id": 1, "user": 2, "product": {"id": 1, "name": "Drum", "price": "10"}}]}`)
		})
	})

	orders, err := client.ListOrders(context.Background(), creds)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.False(t, orders[0].Paid())
	assert.Equal(t, "35", orders[0].Price.String())

	detail, err := client.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, detail.Reviews, 1)

	views, err := client.Recent(context.Background(), creds)
	require.NoError(t, err)
	require.Len(t, views, 1)
	body, err := json.Marshal(views[0].Product)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"name":"Drum"`)
}

func TestDecode(t *testing.T) {
	var out map[string]string
	require.NoError(t, decode([]byte(`{"data": {"a": "b"}}`), &out))
	assert.Equal(t, "b", out["a"])

	out = nil
	require.NoError(t, decode([]byte(`{"a": "c"}`), &out))
	assert.Equal(t, "c", out["a"])

	assert.Error(t, decode([]byte(``), &out))
	assert.Error(t, decode([]byte(`{"data": `), &out))
}
