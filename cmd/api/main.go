package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/nefol-pricing/internal/app"
	"github.com/noah-isme/nefol-pricing/internal/cache"
	"github.com/noah-isme/nefol-pricing/internal/cart"
	"github.com/noah-isme/nefol-pricing/internal/checkout"
	"github.com/noah-isme/nefol-pricing/internal/common"
	"github.com/noah-isme/nefol-pricing/internal/config"
	"github.com/noah-isme/nefol-pricing/internal/discount"
	"github.com/noah-isme/nefol-pricing/internal/events"
	"github.com/noah-isme/nefol-pricing/internal/health"
	"github.com/noah-isme/nefol-pricing/internal/lock"
	"github.com/noah-isme/nefol-pricing/internal/loyalty"
	"github.com/noah-isme/nefol-pricing/internal/obs"
	"github.com/noah-isme/nefol-pricing/internal/order"
	"github.com/noah-isme/nefol-pricing/internal/ratelimit"
	"github.com/noah-isme/nefol-pricing/internal/security"
	"github.com/noah-isme/nefol-pricing/internal/tax"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

const serviceName = "nefol-pricing-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	zerolog.DefaultContextLogger = &logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	}
	if cfg.Obs.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := app.Open(startCtx, cfg, serviceName, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	limiterStore, err := app.NewLimiterStore(deps.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise limiter store")
	}
	adminLimit, err := app.AdminRateLimit(limiterStore, cfg.AdminRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse admin rate limit")
	}

	bus := &events.Bus{R: deps.Redis, Rooms: events.DefaultRooms()}

	taxSvc := &tax.Service{
		Store:   tax.NewPGStore(deps.DB),
		Cache:   cache.New(deps.Redis, cfg.TaxSnapshotTTL),
		Locker:  lock.Locker{R: deps.Redis, RetryBackoff: 50 * time.Millisecond, MaxWait: 2 * time.Second},
		LockTTL: cfg.TaxLockTTL,
		Events:  bus,
	}
	discountStore := discount.NewPGStore(deps.DB)
	discountSvc := &discount.Service{Store: discountStore, Events: bus}
	checkoutSvc := &checkout.Service{Tax: taxSvc, Discounts: discountSvc}
	orderSvc := &order.Service{
		Store:     order.NewPGStore(deps.DB, discountStore),
		Pricer:    checkoutSvc,
		Discounts: discountSvc,
		Events:    bus,
		Loyalty: &loyalty.Enqueuer{
			Client:  deps.TaskClient,
			Divisor: cfg.LoyaltyPointsDivisor,
		},
		InvoiceDueDays: cfg.InvoiceDueDays,
	}

	taxHandler := &tax.Handler{Svc: taxSvc}
	discountHandler := &discount.Handler{Svc: discountSvc}
	cartHandler := &cart.Handler{}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}
	orderHandler := &order.Handler{Svc: orderSvc}
	orderAdmin := &order.AdminHandler{Svc: orderSvc}
	streamsDone := make(chan struct{})
	stream := events.StreamHandler{Bus: bus, Heartbeat: 25 * time.Second, Done: streamsDone}
	healthHandler := health.Handler{Checker: deps, DBTimeout: 500 * time.Millisecond, RedisTimeout: 300 * time.Millisecond}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	quoteLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "rl"},
		Config:  ratelimit.Config{Key: ratelimit.ByTenantAndIP("quote"), Window: cfg.RateLimitQuoteWindow, Max: cfg.RateLimitQuoteMax},
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.SpanEnricher)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(tenant.NewResolver(cfg.TenantHeader, cfg.TenantRootDomain, cfg.TenantDefault).Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.IsProduction()}.Middleware)
	r.Use(security.CORS(strings.Join(cfg.CORSAllowedOrigins, ","), cfg.TenantHeader))
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(tenant.Require)

		v.With(quoteLimit.Middleware).Post("/cart/quote", cartHandler.Quote)
		v.With(quoteLimit.Middleware).Post("/tax/calculate", taxHandler.Calculate)
		v.With(quoteLimit.Middleware).Post("/checkout/quote", checkoutHandler.Quote)

		v.With(idem.Middleware).Post("/orders", orderHandler.Create)
		v.Get("/orders/{number}", orderHandler.Get)

		v.Get("/events", stream.Stream)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(security.AdminKey{Key: cfg.AdminAPIKey}.Middleware)
			admin.Use(adminLimit)

			admin.Route("/tax", func(t chi.Router) {
				t.Get("/rates", taxHandler.ListRates)
				t.Post("/rates", taxHandler.CreateRate)
				t.Put("/rates/{id}", taxHandler.UpdateRate)
				t.Patch("/rates/{id}", taxHandler.SetRateActive)
				t.Delete("/rates/{id}", taxHandler.DeleteRate)
				t.Get("/rules", taxHandler.ListRules)
				t.Post("/rules", taxHandler.CreateRule)
				t.Patch("/rules/{id}", taxHandler.SetRuleActive)
			})

			admin.Get("/discounts", discountHandler.List)
			admin.Post("/discounts", discountHandler.Create)
			admin.Post("/discounts/preview", discountHandler.Preview)
			admin.Get("/discounts/{id}/usage", discountHandler.Usage)

			admin.Get("/orders", orderAdmin.List)
			admin.Patch("/orders/{number}/status", orderAdmin.PatchStatus)
			admin.Get("/invoices", orderAdmin.ListInvoices)
			admin.Patch("/invoices/{number}/status", orderAdmin.PatchInvoiceStatus)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           otelhttp.NewHandler(r, "http.server"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(func() { close(streamsDone) })

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}
