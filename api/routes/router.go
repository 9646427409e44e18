package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-cart/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-cart/api/controllers/cart"
	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Store    cartcontrollers.Store
	Catalog  cartcontrollers.ProductLookup
	Fetcher  cart.RemoteCartFetcher
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer
	// Ready lists the dependencies checked by /health/ready.
	Ready map[string]controllers.Pinger
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Ready))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/api/public/ping", controllers.PublicPing())

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", cartcontrollers.CartSnapshot(p.Store, logg))
		r.Delete("/", cartcontrollers.CartClear(p.Store, logg))
		r.Get("/totals", cartcontrollers.CartTotals(p.Store, logg))
		r.Get("/health", cartcontrollers.CartHealth(p.Store, logg))
		r.Post("/reconcile", cartcontrollers.CartReconcile(p.Store, p.Fetcher, cfg.Commerce.Token, logg))
		r.Post("/validate", cartcontrollers.CartValidate(logg))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", cartcontrollers.CartAddItem(p.Store, p.Catalog, logg))
			r.Get("/{productID}", cartcontrollers.CartGetItem(p.Store, logg))
			r.Put("/{productID}", cartcontrollers.CartUpdateItem(p.Store, logg))
			r.Delete("/{productID}", cartcontrollers.CartRemoveItem(p.Store, logg))
		})
	})

	return r
}
