// Package rest exposes the storefront components to the browser over HTTP.
package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/checkout"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/images"
	"github.com/abgdnv/storefront/internal/notice"
	"github.com/abgdnv/storefront/internal/recent"
	"github.com/abgdnv/storefront/internal/session"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type ProductFetcher interface {
	GetProduct(ctx context.Context, id int64) (catalog.Detail, error)
}

type OrderLister interface {
	ListOrders(ctx context.Context, creds auth.CredentialProvider) ([]checkout.Order, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	sessions *session.Manager
	products ProductFetcher
	orders   OrderLister
	feed     *recent.Feed
	images   *images.Resolver
	creds    auth.CredentialProvider
	pinger   Pinger
	logger   *slog.Logger
}

// NewHandler creates the storefront HTTP handler.
func NewHandler(sessions *session.Manager, products ProductFetcher, orders OrderLister, feed *recent.Feed,
	resolver *images.Resolver, creds auth.CredentialProvider, pinger Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		products: products,
		orders:   orders,
		feed:     feed,
		images:   resolver,
		creds:    creds,
		pinger:   pinger,
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the storefront routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.sessions.Middleware)

		r.Get("/catalog", h.Catalog)
		r.Post("/catalog/refresh", h.RefreshCatalog)
		r.Get("/products/{productID}", h.ProductDetail)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart)
			r.Post("/{productID}", h.AddToCart)
			r.Delete("/{entryID}", h.RemoveFromCart)
		})

		r.Post("/checkout", h.Checkout)
		r.Get("/checkout/return", h.CheckoutReturn)
		r.Get("/orders", h.Orders)
		r.Get("/notices", h.Notices)
	})

	r.Get("/livez", h.HealthCheck)
	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadyCheck)
}

type productView struct {
	catalog.Product
	Image         string `json:"image"`
	ImageFallback string `json:"image_fallback"`
}

type catalogResponse struct {
	Items         []productView    `json:"items"`
	Criteria      catalog.Criteria `json:"criteria"`
	Categories    []string         `json:"categories"`
	Manufacturers []string         `json:"manufacturers"`
	Loading       bool             `json:"loading"`
	Rejected      string           `json:"rejected,omitempty"`
}

type detailResponse struct {
	Product      productView      `json:"product"`
	Reviews      []catalog.Review `json:"reviews"`
	AverageGrade *decimal.Decimal `json:"average_grade,omitempty"`
	Recent       []recent.Entry   `json:"recent"`
}

type cartLineView struct {
	cart.Entry
	Image string `json:"image"`
}

type cartResponse struct {
	Entries []cartLineView  `json:"entries"`
	Total   decimal.Decimal `json:"total"`
	Loading bool            `json:"loading"`
}

type orderView struct {
	checkout.Order
	Items []productView `json:"items"`
}

type ordersResponse struct {
	Orders  []orderView     `json:"orders"`
	Notices []notice.Notice `json:"notices"`
}

// Catalog returns the filtered, sorted snapshot. Query parameters replace the criteria;
// a rejected edit keeps the previous criteria and reports why.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Catalog.Load(r.Context()); err != nil {
		h.respondFailure(w, r, "Failed to load catalog", err)
		return
	}

	var rejected string
	if hasCriteria(r) {
		c, err := parseCriteria(r)
		if err == nil {
			_, err = sess.Catalog.Update(c)
		}
		if err != nil {
			h.logger.InfoContext(r.Context(), "Catalog criteria rejected", "error", err)
			rejected = err.Error()
		}
	}
	web.RespondJSON(w, h.logger, http.StatusOK, h.catalogResponse(sess.Catalog.Result(), rejected))
}

// RefreshCatalog starts a new snapshot for the shopper's browsing session.
func (h *Handler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Catalog.Refresh(r.Context()); err != nil {
		h.respondFailure(w, r, "Failed to refresh catalog", err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, h.catalogResponse(sess.Catalog.Result(), ""))
}

// ProductDetail returns one product with its reviews and the shopper's recent views.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger, "productID")
	if !ok {
		return
	}

	var (
		detail catalog.Detail
		views  []recent.Entry
	)
	g, gCtx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		detail, err = h.products.GetProduct(gCtx, id)
		return err
	})
	g.Go(func() error {
		var err error
		views, err = h.feed.Fetch(gCtx, h.creds)
		if err != nil && !errors.Is(err, context.Canceled) {
			h.logger.WarnContext(r.Context(), "Recent views unavailable", "error", err)
			views = []recent.Entry{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		h.respondFailure(w, r, "Failed to load product", err)
		return
	}
	if views == nil {
		views = []recent.Entry{}
	}

	resp := detailResponse{
		Product: h.productView(detail.Product),
		Reviews: detail.Reviews,
		Recent:  views,
	}
	if resp.Reviews == nil {
		resp.Reviews = []catalog.Review{}
	}
	if avg, ok := detail.AverageGrade(); ok {
		resp.AverageGrade = &avg
	}
	web.RespondJSON(w, h.logger, http.StatusOK, resp)
}

// Cart reloads the remote cart. A superseded load answers with the local copy.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := sess.Cart.Load(r.Context(), h.creds); err != nil && !errors.Is(err, sferrors.ErrSuperseded) {
		h.respondFailure(w, r, "Failed to load cart", err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, h.cartResponse(sess.Cart))
}

// AddToCart adds a product and reloads the cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	productID, ok := web.ParseID(w, r, h.logger, "productID")
	if !ok {
		return
	}
	if _, err := sess.Cart.AddAndReload(r.Context(), h.creds, productID); err != nil && !errors.Is(err, sferrors.ErrSuperseded) {
		h.respondFailure(w, r, "Failed to add product to cart", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Product added to cart", "product_id", productID)
	web.RespondJSON(w, h.logger, http.StatusOK, h.cartResponse(sess.Cart))
}

// RemoveFromCart removes one cart line without reloading.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	entryID, ok := web.ParseID(w, r, h.logger, "entryID")
	if !ok {
		return
	}
	if err := sess.Cart.Remove(r.Context(), h.creds, entryID); err != nil {
		h.respondFailure(w, r, "Failed to remove cart entry", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Cart entry removed", "entry_id", entryID)
	web.RespondJSON(w, h.logger, http.StatusOK, h.cartResponse(sess.Cart))
}

// Checkout creates an order and returns the payment page URL.
// A failure answers with the notice the orchestrator recorded for it.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	redirectURL, err := sess.Checkout.Submit(r.Context(), h.creds)
	if err != nil {
		status := MapErrorToHttpStatus(err)
		if status == 0 {
			return
		}
		h.logger.WarnContext(r.Context(), "Checkout failed", "error", err)
		web.RespondJSON(w, h.logger, status, map[string]any{"notices": sess.Notices.Drain()})
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, map[string]string{"redirect_url": redirectURL})
}

// CheckoutReturn is where the payment page sends the shopper back.
func (h *Handler) CheckoutReturn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := sess.Checkout.Confirm(r.Context(), h.creds, r.URL.Query().Get("session_id"))
	if err != nil || res.Route == "" {
		h.logger.InfoContext(r.Context(), "Checkout confirmation abandoned", "error", err)
		return
	}
	http.Redirect(w, r, res.Route, http.StatusSeeOther)
}

// Orders lists the shopper's orders together with pending notices.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListOrders(r.Context(), h.creds)
	if err != nil {
		h.respondFailure(w, r, "Failed to load orders", err)
		return
	}
	resp := ordersResponse{Orders: make([]orderView, 0, len(orders)), Notices: sess.Notices.Drain()}
	for _, o := range orders {
		items := make([]productView, 0, len(o.Products))
		for _, p := range o.Products {
			items = append(items, h.productView(p))
		}
		resp.Orders = append(resp.Orders, orderView{Order: o, Items: items})
	}
	web.RespondJSON(w, h.logger, http.StatusOK, resp)
}

// Notices drains the shopper's pending notices.
func (h *Handler) Notices(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, map[string]any{"notices": sess.Notices.Drain()})
}

// HealthCheck is a simple liveness endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ReadyCheck reports whether the backend is reachable.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.WarnContext(r.Context(), "Backend not ready", "error", err)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "backend unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "Request without session")
		web.RespondError(w, h.logger, http.StatusInternalServerError, "session unavailable")
		return nil, false
	}
	return sess, true
}

// respondFailure writes the single notice for err. Nothing is written when the caller went away.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := MapErrorToHttpStatus(err)
	if status == 0 {
		h.logger.DebugContext(r.Context(), "Request canceled", "error", err)
		return
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, "error", err)
	} else {
		h.logger.WarnContext(r.Context(), msg, "error", err)
	}
	n, _ := notice.FromError(err)
	web.RespondError(w, h.logger, status, n.Message)
}

// MapErrorToHttpStatus maps the storefront error taxonomy to a status code.
// It returns 0 for a canceled request, which gets no response.
func MapErrorToHttpStatus(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, sferrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, sferrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sferrors.ErrValidationRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sferrors.ErrCartEmpty), errors.Is(err, sferrors.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, sferrors.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) productView(p catalog.Product) productView {
	return productView{Product: p, Image: h.images.Resolve(p.Photo), ImageFallback: h.images.Fallback()}
}

func (h *Handler) catalogResponse(res catalog.Result, rejected string) catalogResponse {
	items := make([]productView, 0, len(res.Products))
	for _, p := range res.Products {
		items = append(items, h.productView(p))
	}
	return catalogResponse{
		Items:         items,
		Criteria:      res.Criteria,
		Categories:    res.Categories,
		Manufacturers: res.Manufacturers,
		Loading:       res.Loading,
		Rejected:      rejected,
	}
}

func (h *Handler) cartResponse(s *cart.Synchronizer) cartResponse {
	entries := s.Entries()
	lines := make([]cartLineView, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, cartLineView{Entry: e, Image: h.images.Resolve(e.Photo)})
	}
	return cartResponse{Entries: lines, Total: cart.Total(entries), Loading: s.Loading()}
}

var criteriaParams = []string{"q", "min", "max", "category", "manufacturer", "sort"}

func hasCriteria(r *http.Request) bool {
	query := r.URL.Query()
	for _, key := range criteriaParams {
		if query.Has(key) {
			return true
		}
	}
	return false
}

// parseCriteria builds criteria from query parameters. Absent parameters match everything.
func parseCriteria(r *http.Request) (catalog.Criteria, error) {
	c := catalog.DefaultCriteria()
	c.Search = strings.TrimSpace(r.URL.Query().Get("q"))
	if sort := web.OptionalParam(r, "sort"); sort != nil {
		c.Sort = catalog.SortKey(*sort)
	}
	c.Category = web.OptionalParam(r, "category")
	c.Manufacturer = web.OptionalParam(r, "manufacturer")

	var err error
	if c.MinPrice, err = web.ParseDecimalParam(r, "min"); err != nil {
		return c, fmt.Errorf("%w: %w", sferrors.ErrValidationRejected, err)
	}
	if c.MaxPrice, err = web.ParseDecimalParam(r, "max"); err != nil {
		return c, fmt.Errorf("%w: %w", sferrors.ErrValidationRejected, err)
	}
	return c, nil
}
