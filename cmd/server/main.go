package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	allochandler "tessera/internal/allocation/handler"
	allocmetrics "tessera/internal/allocation/metrics"
	allocservice "tessera/internal/allocation/service"
	rangecache "tessera/internal/cardrange/cache"
	rangehandler "tessera/internal/cardrange/handler"
	rangeservice "tessera/internal/cardrange/service"
	rangestore "tessera/internal/cardrange/store"
	"tessera/internal/events"
	jwttoken "tessera/internal/jwt_token"
	memhandler "tessera/internal/membership/handler"
	memmetrics "tessera/internal/membership/metrics"
	memservice "tessera/internal/membership/service"
	memstore "tessera/internal/membership/store"
	"tessera/internal/payment"
	"tessera/internal/platform/config"
	"tessera/internal/platform/httpserver"
	"tessera/internal/platform/kafka"
	"tessera/internal/platform/logger"
	"tessera/internal/platform/metrics"
	pgplatform "tessera/internal/platform/postgres"
	redisplatform "tessera/internal/platform/redis"
	"tessera/internal/profile"
	"tessera/internal/ratelimit"
	"tessera/internal/scheduler"
	httptransport "tessera/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PostgresURL == "" {
		log.Error("TESSERA_POSTGRES_URL is required")
		os.Exit(1)
	}
	db, err := pgplatform.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := pgplatform.EnsureSchema(ctx, db); err != nil {
		log.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	rdb, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	producer, err := kafka.NewProducer(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Error("connect kafka", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
	}

	// Events fan out through a channel so request handlers never block on the
	// broker.
	eventCh := make(chan events.Event, 256)
	publisher := events.NewChannelPublisher(eventCh, log)

	memberships := memstore.NewPostgres(db)
	ranges := rangestore.NewPostgres(db)
	profiles := profile.NewPostgres(db)
	runner := newPostgresTx(db)

	rangeOpts := []rangeservice.Option{
		rangeservice.WithLogger(log),
		rangeservice.WithTx(runner),
		rangeservice.WithPublisher(publisher),
	}
	allocOpts := []allocservice.Option{
		allocservice.WithLogger(log),
		allocservice.WithTx(runner),
		allocservice.WithMetrics(allocmetrics.New()),
		allocservice.WithPublisher(publisher),
	}
	if rdb != nil {
		statsCache := rangecache.NewStats(rdb.Client, rangecache.DefaultTTL)
		rangeOpts = append(rangeOpts, rangeservice.WithStatsCache(statsCache))
		allocOpts = append(allocOpts, allocservice.WithCacheInvalidator(statsCache))
	}

	rangeSvc, err := rangeservice.New(ranges, memberships, rangeOpts...)
	if err != nil {
		log.Error("build range service", "error", err)
		os.Exit(1)
	}

	allocSvc, err := allocservice.New(memberships, rangeSvc, allocOpts...)
	if err != nil {
		log.Error("build allocation service", "error", err)
		os.Exit(1)
	}

	memSvc, err := memservice.New(memberships, profiles, cfg.MembershipFee,
		memservice.WithLogger(log),
		memservice.WithTx(runner),
		memservice.WithMetrics(memmetrics.New()),
		memservice.WithPublisher(publisher),
	)
	if err != nil {
		log.Error("build membership service", "error", err)
		os.Exit(1)
	}

	paySvc, err := payment.New(memberships,
		payment.WithLogger(log),
		payment.WithTx(runner),
	)
	if err != nil {
		log.Error("build payment service", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	var limitStore ratelimit.Store = ratelimit.NewMemory()
	if rdb != nil {
		limitStore = ratelimit.NewRedis(rdb.Client)
	}
	limiter := ratelimit.NewMiddleware(limitStore, cfg.RateLimit, cfg.RateWindow, log)

	router := httptransport.NewRouter(log, metrics.New(), limiter,
		rangehandler.New(rangeSvc, log, jwtValidator),
		allochandler.New(allocSvc, log, jwtValidator),
		memhandler.New(memSvc, log, jwtValidator),
		payment.NewHandler(paySvc, log, cfg.WebhookSecret),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting tessera", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	var sink events.Publisher
	if producer != nil {
		sink = producer
	}
	worker := events.NewWorker(sink, eventCh, log)
	g.Go(func() error {
		return worker.Run(gctx)
	})

	sweeper := scheduler.NewSweeper(memSvc, cfg.SweepInterval, log)
	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
