// Package app wires the API server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/arell305/hostlyapp/internal/domain/checkout"
	"github.com/arell305/hostlyapp/internal/domain/promo"
	"github.com/arell305/hostlyapp/internal/domain/summary"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
	"github.com/arell305/hostlyapp/internal/handler"
	"github.com/arell305/hostlyapp/internal/messaging/kafka"
	"github.com/arell305/hostlyapp/internal/storage/postgres"
	"github.com/arell305/hostlyapp/internal/storage/redis"
	"github.com/arell305/hostlyapp/pkg/health"
	"github.com/arell305/hostlyapp/pkg/httpmiddleware"
)

const serviceName = "hostly-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	// Repositories.
	catalogRepo := postgres.NewCatalogRepository(pool)
	promoRepo := postgres.NewPromoRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	guestRepo := postgres.NewGuestRepository(pool)

	inventory, closeInventory, err := newInventory(ctx, lg, cfg, orderRepo, healthSvc)
	if err != nil {
		return errors.Wrap(err, "create inventory")
	}
	defer closeInventory()

	publisher, closePublisher, err := newPublisher(lg, cfg.Kafka, healthSvc)
	if err != nil {
		return errors.Wrap(err, "create publisher")
	}
	defer closePublisher()

	// Domain services.
	repoValidator, err := promo.NewRepoValidator(promoRepo,
		promo.WithTracerProvider(m.TracerProvider()),
		promo.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create promo validator")
	}
	promoValidator := promo.NewFilteredValidator(repoValidator, promo.FilterConfig{
		Capacity:          cfg.PromoFilter.Capacity,
		FalsePositiveRate: cfg.PromoFilter.FalsePositiveRate,
	})
	healthSvc.AddReadinessCheck("promo_filter", time.Second,
		health.FlagCheck("promo filter not loaded", promoValidator.Loaded),
		health.StartUnhealthy(),
	)
	go reloadPromoFilter(ctx, lg, promoValidator, promoRepo, cfg.PromoFilter.ReloadInterval)

	checkoutSvc := checkout.NewService(catalogRepo, inventory, promoValidator, promoRepo, orderRepo, publisher)
	summarySvc := summary.NewService(catalogRepo, orderRepo, guestRepo)

	// HTTP handlers.
	auth, err := handler.NewAuthenticator([]byte(cfg.JWT.Secret), cfg.JWT.Issuer)
	if err != nil {
		return errors.Wrap(err, "create authenticator")
	}
	promoLimiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Name:   "promo",
		Max:    cfg.PromoLimit.Max,
		Window: cfg.PromoLimit.Window,
	})
	go promoLimiter.Run(ctx)

	h := handler.NewHandler(
		handler.HandlerConfig{PromoLimit: promoLimiter.Middleware()},
		auth,
		checkoutSvc,
		summarySvc,
		catalogRepo,
		promoValidator,
		guestRepo,
	)
	api := h.Router()

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Mux: health endpoints + API routes on one server.
	routeFinder := httpmiddleware.MakeRouteFinder(api, handler.Operations)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
				ExposeHeaders:    []string{"X-Request-ID", "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Name:   "global",
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// soldSource recovers sold counts from persisted orders.
type soldSource interface {
	SoldByTicketType(ctx context.Context) (map[string]int, error)
}

// newInventory returns Redis backed counters when a Redis URL is configured
// and in-process counters otherwise. Either way the counters are seeded from
// persisted orders.
func newInventory(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	orders soldSource,
	healthSvc *health.Health,
) (ticket.Inventory, func(), error) {
	sold, err := orders.SoldByTicketType(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "recover sold counts")
	}

	if cfg.RedisURL == "" {
		lg.Warn("Redis is not configured, using in-process inventory")
		inv := ticket.NewMemoryInventory()
		inv.Load(sold)
		return inv, func() {}, nil
	}

	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			lg.Warn("Close redis client", zap.Error(err))
		}
	}
	inv := redis.NewInventory(client)
	if err := inv.Load(ctx, sold); err != nil {
		closeClient()
		return nil, nil, err
	}
	healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	lg.Info("Using redis inventory", zap.Int("ticket_types", len(sold)))
	return inv, closeClient, nil
}

// newPublisher returns a Kafka publisher when brokers are configured.
func newPublisher(lg *zap.Logger, cfg KafkaConfig, healthSvc *health.Health) (checkout.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		lg.Info("Kafka is not configured, order events are not published")
		return checkout.NopPublisher{}, func() {}, nil
	}
	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		ClientID: cfg.ClientID,
	})
	if err != nil {
		return nil, nil, err
	}
	healthSvc.AddReadinessCheck("kafka", 5*time.Second, health.PingCheck(pub))
	return pub, pub.Close, nil
}

// reloadPromoFilter rebuilds the promo bloom filter now and then at every
// interval until ctx is done. Failed reloads keep the previous filter.
func reloadPromoFilter(
	ctx context.Context,
	lg *zap.Logger,
	f *promo.FilteredValidator,
	source promo.CodeSource,
	interval time.Duration,
) {
	reload := func() {
		start := time.Now()
		n, err := f.Reload(ctx, source)
		if err != nil {
			lg.Error("Reload promo filter", zap.Error(err))
			return
		}
		lg.Debug("Promo filter reloaded", zap.Int("codes", n), zap.Duration("took", time.Since(start)))
	}

	reload()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reload()
		}
	}
}
