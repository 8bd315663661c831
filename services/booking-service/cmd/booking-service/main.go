package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/migrations"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/realtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const realtimePrefix = "/api/v1/realtime/"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(healthcheck())
	}

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(config.Int("DB_MAX_CONNS", 10))})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", true) {
		if err := migrations.Apply(ctx, pool, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	defaultLoc := time.UTC
	if tz := config.String("DEFAULT_TIMEZONE", "UTC"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			defaultLoc = loc
		} else {
			logger.Warn("invalid DEFAULT_TIMEZONE; using UTC", "timezone", tz)
		}
	}

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var rdb *redis.Client
	var calendarCache *cache.CalendarCache
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		calendarCache = cache.NewCalendarCache(rdb, config.Duration("CALENDAR_CACHE_TTL", 10*time.Minute))
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(rdb)})
		logger.Info("calendar cache enabled", "redis_addr", addr)
	} else {
		logger.Warn("REDIS_ADDR not set; calendar cache disabled")
	}

	hub := realtime.NewHub(realtime.WithLogger(logger))
	defer hub.Close()

	outboxRepo := outbox.NewRepository()
	repo := storage.NewRepository(pool, outboxRepo)

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	if len(brokers) > 0 {
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		})
		go publisher.Run(ctx)

		dispatcher := consumer.NewDispatcher(hub, optionalInvalidator(calendarCache), logger)
		eventConsumer := consumer.New(logger, consumer.Config{
			Brokers: brokers,
			GroupID: instanceGroupID(service),
			Topics:  consumer.Topics,
		}, dispatcher.Handle)
		go eventConsumer.Run(ctx)

		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox publishing disabled, realtime events published in-process")
	}

	verifier := auth.NewVerifier(config.String("SUPABASE_JWT_SECRET", ""), jwksSource())
	if !verifier.Enabled() {
		logger.Warn("no JWT secret or JWKS configured; owner endpoints will reject requests")
	}

	bookingHandler := handlers.New(repo, logger, handlers.Options{
		Cache:           optionalCache(calendarCache),
		Hub:             hub,
		PublishDirect:   len(brokers) == 0,
		DefaultLocation: defaultLoc,
	})

	mux := runtime.NewBaseMuxWithReady(checks...)
	bookingHandler.Register(mux, auth.RequireUser(verifier))

	health := grpcserver.NewHealth(logger, service, config.Duration("GRPC_HEALTH_INTERVAL", 10*time.Second), checks...)
	if _, err := grpcserver.Start(ctx, logger, ":"+grpcPort, health); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Duration("CORS_MAX_AGE", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second), realtimePrefix),
		rateLimit(rdb, logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	// Close streams first; Shutdown does not wait for hijacked or long-lived responses.
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// healthcheck asks the local gRPC health service whether the process is serving.
// It is meant for container health probes, which only look at the exit code.
func healthcheck() int {
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.Duration("HEALTHCHECK_TIMEOUT", 3*time.Second))
	defer cancel()

	status, err := grpcserver.Check(ctx, "127.0.0.1:"+grpcPort, config.String("SERVICE_NAME", "booking-service"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		return 1
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		fmt.Fprintln(os.Stderr, "healthcheck:", status)
		return 1
	}
	return 0
}

func jwksSource() auth.KeySource {
	url := config.String("SUPABASE_JWKS_URL", "")
	if url == "" {
		return nil
	}
	ttl := time.Duration(config.Int("JWKS_CACHE_SECONDS", 300)) * time.Second
	return auth.NewJWKSClient(url, ttl, &http.Client{Timeout: 5 * time.Second})
}

// rateLimit returns nil (no limiting) when RATE_LIMIT_PER_MINUTE is 0.
func rateLimit(rdb *redis.Client, logger *slog.Logger) httpx.Middleware {
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if limitPerMinute <= 0 {
		return nil
	}
	failOpen := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	if rdb != nil {
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:booking"))
		return httpx.RateLimit(rl, logger, failOpen)
	}
	logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	return httpx.RateLimit(httpx.NewMemoryRateLimiter(limitPerMinute, time.Minute), logger, failOpen)
}

// instanceGroupID gives each replica its own consumer group so every replica
// receives every event for its own stream clients.
func instanceGroupID(service string) string {
	if id := config.String("KAFKA_GROUP_ID", ""); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = uuid.NewString()[:8]
	}
	return service + "-realtime-" + host
}

// The handlers and dispatcher take interfaces; a nil *CalendarCache must
// become a nil interface, not a typed nil.
func optionalCache(c *cache.CalendarCache) handlers.CalendarCache {
	if c == nil {
		return nil
	}
	return c
}

func optionalInvalidator(c *cache.CalendarCache) consumer.Invalidator {
	if c == nil {
		return nil
	}
	return c
}
