package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/schoolpay/migrations"
	"github.com/dmitrymomot/schoolpay/modules/api"
	"github.com/dmitrymomot/schoolpay/pkg/audit"
	appconfig "github.com/dmitrymomot/schoolpay/pkg/config"
	"github.com/dmitrymomot/schoolpay/pkg/file"
	"github.com/dmitrymomot/schoolpay/pkg/gateway"
	"github.com/dmitrymomot/schoolpay/pkg/httpserver"
	"github.com/dmitrymomot/schoolpay/pkg/limits"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
	"github.com/dmitrymomot/schoolpay/pkg/metrics"
	"github.com/dmitrymomot/schoolpay/pkg/pg"
	"github.com/dmitrymomot/schoolpay/pkg/ratelimiter"
	"github.com/dmitrymomot/schoolpay/pkg/redis"
	"github.com/dmitrymomot/schoolpay/pkg/requestid"
	"github.com/dmitrymomot/schoolpay/pkg/tenant"
	"github.com/dmitrymomot/schoolpay/svc/billing"
)

func main() {
	var cfg config
	appconfig.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.App.Env, cfg.App.Service),
		logger.WithConfig(cfg.Log),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			tenant.LoggerExtractor(),
		),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("service stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.PG.MigrateOnStart {
		if err := pg.Migrate(ctx, pool, cfg.PG, migrations.FS, log); err != nil {
			return err
		}
	}
	readiness := []httpserver.Check{pg.Healthcheck(pool)}

	var (
		tenantCache tenant.Cache
		limitStore  ratelimiter.Store
	)
	if cfg.App.RedisEnabled {
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		tenantCache = tenant.NewRedisCache(rdb, cfg.Redis.Key("tenant"), log)
		limitStore = ratelimiter.NewRedisStore(rdb, cfg.Redis.Key("ratelimit"))
		readiness = append(readiness, redis.Healthcheck(rdb))
	} else {
		tenantCache = tenant.NewMemoryCache(10_000)
		mem := ratelimiter.NewMemoryStore()
		defer mem.Close()
		limitStore = mem
	}

	m := metrics.New()

	auditWriter := audit.NewAsyncWriter(audit.NewPGStorage(pool), audit.AsyncOptions{})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := auditWriter.Close(closeCtx); err != nil {
			log.Error("failed to flush audit events", logger.Error(err))
		}
	}()
	auditor := audit.NewLogger(auditWriter,
		audit.WithTenantIDExtractor(tenant.AuditExtractor()),
		audit.WithRequestIDExtractor(requestid.AuditExtractor()),
	)

	catalog, err := cfg.Billing.Catalog()
	if err != nil {
		return err
	}

	provider, err := gateway.NewProvider(cfg.Gateway, &http.Client{Timeout: cfg.Gateway.Paystack.Timeout})
	if err != nil {
		return err
	}
	gw := gateway.NewResilient(provider.Client, append(cfg.Gateway.Resilience(),
		gateway.WithLogger(log),
		gateway.WithObserver(m.ObserveGatewayCall),
	)...)
	log.Info("payment gateway configured", slog.String("provider", provider.Name))

	store := billing.NewPGStore(pg.NewTransactor(pool))

	meter, err := storageMeter(ctx, cfg)
	if err != nil {
		return err
	}
	counters := limits.NewRegistry()
	counters.Register(limits.ResourceStudents, store.CountStudents)
	counters.Register(limits.ResourceTeachers, store.CountTeachers)
	counters.Register(limits.ResourceStorageBytes, meter.TenantBytes)

	opts := []billing.Option{
		billing.WithLogger(log),
		billing.WithAuditor(auditor),
		billing.WithMetrics(m),
	}
	subs := billing.NewSubscriptions(store, catalog, opts...)
	rec := billing.NewReconciler(store, catalog, subs, opts...)
	callbackURL := cfg.Gateway.Paystack.CallbackURL
	if callbackURL == "" {
		callbackURL = cfg.Billing.PublicURL
	}

	var resolver tenant.Resolver = tenant.NewHeaderResolver(cfg.App.TenantHeader)
	if cfg.App.TenantDomain != "" {
		resolver = tenant.NewCompositeResolver(resolver, tenant.NewSubdomainResolver(cfg.App.TenantDomain))
	}
	tenantMiddleware := tenant.Middleware(
		resolver,
		tenant.NewPGProvider(pool),
		tenant.WithRequired(true),
		tenant.WithCache(tenantCache),
		tenant.WithCacheTTL(cfg.App.TenantCacheTTL),
		tenant.WithLogger(log),
	)

	var initiateLimiter func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled() {
		bucket, err := ratelimiter.NewBucket(limitStore, cfg.RateLimit)
		if err != nil {
			return err
		}
		initiateLimiter = ratelimiter.Middleware(bucket, ratelimiter.TenantKey("initiate"), ratelimiter.WithLogger(log))
	}

	billingAPI := &billing.API{
		Catalog:          catalog,
		Subscriptions:    subs,
		Initiator:        billing.NewInitiator(store, catalog, gw, callbackURL, opts...),
		Verifier:         billing.NewVerifier(store, gw, rec, opts...),
		Gate:             billing.NewGate(subs, catalog, counters, opts...),
		Webhook:          billing.NewWebhookReceiver(provider.Verifier, provider.Decoder, rec, opts...),
		TenantMiddleware: tenantMiddleware,
		InitiateLimiter:  initiateLimiter,
		Logger:           log,
	}

	var adminAPI api.Mountable
	if cfg.Billing.AdminToken != "" {
		adminAPI = &billing.AdminAPI{
			Admin:      billing.NewAdmin(store, catalog, subs, opts...),
			Abandoner:  billing.NewAbandoner(store, opts...),
			Token:      cfg.Billing.AdminToken,
			PendingTTL: cfg.Billing.PendingTTL,
			Logger:     log,
		}
	} else {
		log.Warn("ADMIN_TOKEN is empty, admin API disabled")
	}

	router := api.Router(api.RouterOptions{
		Billing:    billingAPI,
		Admin:      adminAPI,
		Metrics:    m.Handler(),
		Ready:      httpserver.ReadinessHandler(log, 2*time.Second, readiness...),
		Middleware: []func(http.Handler) http.Handler{m.Middleware},
	})

	server := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger, addr net.Addr) {
			l.Info("http server started", slog.String("addr", addr.String()))
		}),
		httpserver.WithStopHook(func(l *slog.Logger, _ net.Addr) {
			l.Info("http server stopped")
		}),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, router)
	})
	g.Go(func() error {
		<-ctx.Done()
		return tenantCache.Close()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func storageMeter(ctx context.Context, cfg config) (file.Meter, error) {
	if cfg.S3.Enabled() {
		return file.NewS3Meter(ctx, cfg.S3, nil)
	}
	return file.NewLocalMeter(cfg.App.UploadsDir)
}
