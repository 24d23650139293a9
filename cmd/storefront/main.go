package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abgdnv/storefront/internal/app"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/config/configloader"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/nats"
	"github.com/abgdnv/storefront/pkg/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "storefront"
	streamName  = "STOREFRONT"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, connects the optional redis and NATS backends and serves
// the storefront until ctx is canceled.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	shutdownTelemetry, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := cfg.Shutdown.Context(ctx)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("Failed to flush telemetry", slog.String("error", err.Error()))
		}
	}()

	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		mp, handler, err := telemetry.NewMeterProvider(serviceName)
		if err != nil {
			return fmt.Errorf("failed to set up metrics: %w", err)
		}
		otel.SetMeterProvider(mp)
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				logger.Error("Failed to stop meter provider", slog.String("error", err.Error()))
			}
		}()
		metricsHandler = handler
	}

	var redisClient *redis.Client
	if cfg.Store.Driver == pkgconfig.StoreDriverRedis {
		redisClient, err = bootstrap.NewRedisClient(ctx, cfg.Store.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Failed to close redis client", slog.String("error", err.Error()))
			}
		}()
		logger.Info("Successfully connected to redis!")
	}

	var publisher messaging.Publisher = messaging.NoopPublisher{}
	if cfg.Nats.Enabled {
		natsConn, err := nats.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
		if err != nil {
			return fmt.Errorf("failed to create NATS connection: %w", err)
		}
		defer natsConn.Close()
		js, err := nats.NewJetStreamContext(natsConn)
		if err != nil {
			return fmt.Errorf("failed to get JetStream context: %w", err)
		}
		if err := nats.EnsureStream(ctx, js, streamName, messaging.CheckoutResolvedSubject); err != nil {
			return err
		}
		publisher = nats.NewNatsPublisher(js)
		logger.Info("Checkout events published to NATS", slog.String("stream", streamName))
	}

	deps := app.SetupDependencies(cfg, redisClient, publisher, logger)
	deps.Metrics = metricsHandler
	httpServer := app.SetupHttpServer(deps, cfg)

	g, gCtx := errgroup.WithContext(ctx)

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := cfg.Shutdown.Context(gCtx)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Drop idle shopper sessions
	g.Go(func() error {
		return deps.Sessions.Run(gCtx, sweepInterval(cfg.Session.IdleTTL))
	})

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		pprofServer := &http.Server{
			Addr:              cfg.PProf.Addr,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := cfg.Shutdown.Context(gCtx)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// sweepInterval checks for idle sessions a few times per TTL, but not more than once a minute.
func sweepInterval(idleTTL time.Duration) time.Duration {
	return max(idleTTL/4, time.Minute)
}
