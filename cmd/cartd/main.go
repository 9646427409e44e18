package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-cart/api"
	"github.com/angelmondragon/storefront-cart/api/controllers"
	"github.com/angelmondragon/storefront-cart/api/routes"
	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/storage"
	"github.com/angelmondragon/storefront-cart/pkg/auth"
	"github.com/angelmondragon/storefront-cart/pkg/commerce"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/db"
	"github.com/angelmondragon/storefront-cart/pkg/instance"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/angelmondragon/storefront-cart/pkg/migrate"
	pkgredis "github.com/angelmondragon/storefront-cart/pkg/redis"
)

const serviceName = "cartd"

type persistence struct {
	persister cart.Persister
	pinger    controllers.Pinger
	redis     *pkgredis.Client
	closers   []io.Closer
}

func (p *persistence) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, p.closers[i].Close())
	}
	return errs
}

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "cartd stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	persist, err := openPersistence(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, persist.Close())
	}()

	store, err := cart.NewStore(ctx, cart.StoreParams{
		Persister:        persist.persister,
		Key:              cfg.Storage.Key,
		Logger:           logg,
		Metrics:          metrics.NewCartMetrics(reg),
		ReconcileTimeout: cfg.Cart.ReconcileTimeout,
	})
	if err != nil {
		return fmt.Errorf("building cart store: %w", err)
	}

	commerceClient, err := commerce.NewClient(cfg.Commerce)
	if err != nil {
		return fmt.Errorf("building commerce client: %w", err)
	}
	fetcher, err := cart.NewCommerceFetcher(commerceClient)
	if err != nil {
		return err
	}

	if cfg.Cart.ReconcileOnStart {
		reconcileOnStart(ctx, cfg, logg, store, fetcher)
	}

	if persist.redis != nil {
		feed, err := storage.NewRedisFeed(storage.FeedParams{
			Publisher:  persist.redis,
			Subscriber: persist.redis,
			Channel:    persist.redis.ChannelKey(cfg.Cart.ChangeChannel),
			Logger:     logg,
		})
		if err != nil {
			return fmt.Errorf("building change feed: %w", err)
		}
		detach := feed.Attach(store)
		defer detach()
		go func() {
			if err := feed.Listen(ctx, store); err != nil {
				logg.Error(ctx, "cart change feed stopped", err)
			}
		}()
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:   cfg,
		Logger:   logg,
		Store:    store,
		Catalog:  commerceClient,
		Fetcher:  fetcher,
		Metrics:  metrics.NewHTTPMetrics(reg),
		Gatherer: reg,
		Ready:    map[string]controllers.Pinger{"storage": persist.pinger},
	})

	server := api.NewServer(cfg, handler)
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           server.Addr,
		"instance":       instance.GetID(),
		"storage_driver": cfg.Storage.Driver,
	})
	logg.Info(startCtx, "starting cart server")

	return api.Serve(ctx, server, logg)
}

func openPersistence(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*persistence, error) {
	switch cfg.Storage.Driver {
	case config.StorageRedis:
		client, err := pkgredis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrapping redis: %w", err)
		}
		persister := storage.NewRedis(client, cfg.Storage.TTL)
		return &persistence{
			persister: persister,
			pinger:    persister,
			redis:     client,
			closers:   []io.Closer{client},
		}, nil

	case config.StorageSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrapping database: %w", err)
		}
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			return nil, multierr.Append(fmt.Errorf("running migrations: %w", err), client.Close())
		}
		persister := storage.NewSQL(client.DB())
		return &persistence{
			persister: persister,
			pinger:    persister,
			closers:   []io.Closer{client},
		}, nil

	default:
		mem := storage.NewMemory()
		return &persistence{persister: mem, pinger: mem}, nil
	}
}

// reconcileOnStart merges the server cart once before serving. Failures are
// logged and the local cart is kept.
func reconcileOnStart(ctx context.Context, cfg *config.Config, logg *logger.Logger, store *cart.Store, fetcher cart.RemoteCartFetcher) {
	if _, err := auth.RequireUsable(cfg.Commerce.Token, time.Now(), 0); err != nil {
		logg.Warn(logg.WithField(ctx, "reason", err.Error()), "skipping startup reconcile")
		return
	}
	store.ReconcileWithRemote(ctx, fetcher)
}
