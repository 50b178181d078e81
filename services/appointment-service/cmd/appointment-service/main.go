package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Trio-Ads/saloneo/libs/db"
	"github.com/Trio-Ads/saloneo/libs/grpcx"
	"github.com/Trio-Ads/saloneo/libs/httpx"
	"github.com/Trio-Ads/saloneo/libs/kafkax"
	otelx "github.com/Trio-Ads/saloneo/libs/otel"
	"github.com/Trio-Ads/saloneo/libs/runtime"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/consumer"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/handlers"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/history"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/inbox"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/lifecycle"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/metrics"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/outbox"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/policy"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/prebooking"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/publicaccess"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/reconcile"
	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadSettings()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.service)

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.service)
	if err != nil {
		logger.Error("invalid otel configuration", "err", err)
		os.Exit(1)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.databaseURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var rdb *redis.Client
	holdOpts := prebooking.Options{TTL: cfg.holdTTL}
	var holds prebooking.Ledger = prebooking.NewMemoryLedger(holdOpts)
	var publicLimiter httpx.Limiter = httpx.NewRateLimiter(cfg.publicRate, time.Minute)
	if cfg.redisURL != "" {
		opts, err := redis.ParseURL(cfg.redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		holds = prebooking.NewRedisLedger(rdb, "salon:prebooking", holdOpts)
		publicLimiter = httpx.NewRedisRateLimiter(rdb, cfg.publicRate, time.Minute, "salon:rl:public")
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		logger.Warn("REDIS_URL not set; pre-booking holds and rate limits are kept in process")
	}

	outboxRepo := outbox.NewRepository()
	appointments := storage.NewAppointmentRepository(pool, outboxRepo)
	salon := storage.NewSalonRepository(pool)
	provider := policy.NewStoreProvider(salon, policy.NewStaticProvider(cfg.policy, cfg.appointment), logger)

	book := lifecycle.NewService(appointments, salon, holds, provider, lifecycle.Config{
		Hours:    cfg.hours,
		Location: cfg.location,
		Metrics:  bookingMetrics,
		Logger:   logger,
	})
	if err := book.Reload(ctx); err != nil {
		logger.Error("initial load failed", "err", err)
		os.Exit(1)
	}

	guard := policy.NewGuard(book, provider, cfg.location, time.Now)
	access := publicaccess.New(book, guard, book.Availability(), logger)
	reconciler := reconcile.NewReconciler(book, cfg.location, time.Now, bookingMetrics, logger)
	aggregator := history.NewAggregator(book, salon)

	go prebooking.NewSweeper(holds, logger, cfg.sweepEvery, bookingMetrics.ObservePurged).Run(ctx)
	if cfg.reconcileEvery > 0 {
		worker := reconcile.NewWorker(reconciler, reconcile.NewRunRepository(pool), logger, reconcile.WorkerConfig{
			Interval: cfg.reconcileEvery,
			Action:   cfg.reconcileWith,
		})
		go worker.Run(ctx)
	}

	go outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
		Metrics:   bookingMetrics,
	}).Run(ctx)

	if cfg.kafkaBrokers != "" && cfg.changesTopic != "" {
		changes := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: cfg.kafkaBrokers,
			GroupID: cfg.kafkaGroupID,
			Topic:   cfg.changesTopic,
		}, func(ctx context.Context, _ kafka.Message) error {
			// Changes made by other sessions are picked up by a full reload.
			return book.Reload(ctx)
		})
		go changes.Run(ctx)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.kafkaBrokers)})
	}

	api := handlers.NewRouter(handlers.Routes{
		Booking: handlers.NewBookingHandler(book, holds, reconciler, logger),
		Public:  handlers.NewPublicHandler(access, logger),
		Stats:   handlers.NewStatsHandler(aggregator, logger),
		PublicMiddleware: []httpx.Middleware{
			httpx.WithCORS(httpx.CORSPolicy{
				AllowedOrigins: cfg.corsOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader},
				MaxAge:         10 * time.Minute,
			}),
			httpx.RateLimit(publicLimiter, logger, true),
		},
	})

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/api/", api)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointments")
	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	grpcSrv, healthSrv := grpcx.NewHealthServer(logger, cfg.service)
	if cfg.grpcPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.grpcPort)
		if err != nil {
			logger.Error("grpc listen failed", "err", err)
			os.Exit(1)
		}
		go func() {
			logger.Info("grpc server starting", "addr", lis.Addr().String())
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("grpc server error", "err", err)
			}
		}()
	}

	<-ctx.Done()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("servers stopped")
}
