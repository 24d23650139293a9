// Package app contains the application setup for the storefront.
package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/abgdnv/storefront/internal/backend"
	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/checkout"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/internal/images"
	"github.com/abgdnv/storefront/internal/notice"
	"github.com/abgdnv/storefront/internal/recent"
	"github.com/abgdnv/storefront/internal/session"
	"github.com/abgdnv/storefront/internal/store"
	"github.com/abgdnv/storefront/internal/transport/rest"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/server"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// tokenSkew is the clock skew tolerated when checking a bearer token's expiry locally.
const tokenSkew = 30 * time.Second

type Dependencies struct {
	Backend  *backend.Client
	Sessions *session.Manager
	Feed     *recent.Feed
	Images   *images.Resolver
	Creds    auth.CredentialProvider
	Logger   *slog.Logger

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// SetupDependencies wires the storefront components. A nil redisClient keeps the shared
// snapshot cache and checkout ledger in memory.
func SetupDependencies(cfg *config.Config, redisClient *redis.Client, publisher messaging.Publisher, logger *slog.Logger) *Dependencies {
	client := backend.NewClient(cfg.Backend, backend.NewTransport(cfg.Resilience), logger)

	var (
		snapshots catalog.SnapshotCache
		ledger    checkout.Ledger
	)
	if redisClient != nil {
		snapshots = store.NewRedisSnapshots(redisClient)
		ledger = store.NewRedisLedger(redisClient, cfg.Checkout.LedgerRetention)
	} else {
		snapshots = store.NewMemorySnapshots()
		ledger = store.NewMemoryLedger(cfg.Checkout.LedgerRetention)
	}

	loader := catalog.NewLoader(client, snapshots, cfg.Catalog.SnapshotTTL, logger)
	tag := cfg.Catalog.Tag()
	factory := func(id string) *session.Session {
		notices := &notice.Queue{}
		c := cart.NewSynchronizer(client, logger)
		return &session.Session{
			ID:       id,
			Catalog:  catalog.NewView(loader, tag),
			Cart:     c,
			Checkout: checkout.NewOrchestrator(client, ledger, c, notices, publisher, logger),
			Notices:  notices,
		}
	}

	return &Dependencies{
		Backend:  client,
		Sessions: session.NewManager(factory, cfg.Session.CookieName, cfg.Session.Secure, cfg.Session.IdleTTL, logger),
		Feed:     recent.NewFeed(client),
		Images:   images.NewResolver(cfg.Images.StorageURL, cfg.Images.Placeholder),
		Creds:    auth.NewRequestCredentials(auth.NewInspector(tokenSkew)),
		Logger:   logger,
	}
}

// SetupHttpHandler builds the router with all storefront routes.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.Sessions, deps.Backend, deps.Backend, deps.Feed, deps.Images, deps.Creds, deps.Backend, deps.Logger)
	handler.RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}
}

// SetupHttpServer creates and configures the storefront HTTP server.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(server.FromConfig(cfg.HTTPServer), SetupHttpHandler(deps))
}
