package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/reviewrank/internal/client"
	"github.com/utafrali/reviewrank/internal/config"
	"github.com/utafrali/reviewrank/internal/event"
	handler "github.com/utafrali/reviewrank/internal/handler/http"
	"github.com/utafrali/reviewrank/internal/repository/postgres"
	"github.com/utafrali/reviewrank/internal/repository/redis"
	"github.com/utafrali/reviewrank/internal/service"
	"github.com/utafrali/reviewrank/migrations"
	"github.com/utafrali/reviewrank/pkg/database"
	"github.com/utafrali/reviewrank/pkg/health"
	"github.com/utafrali/reviewrank/pkg/httpclient"
	pkgkafka "github.com/utafrali/reviewrank/pkg/kafka"
	"github.com/utafrali/reviewrank/pkg/middleware"
	"github.com/utafrali/reviewrank/pkg/retry"
	"github.com/utafrali/reviewrank/pkg/tracing"
)

// ServiceName identifies the review service in logs, metrics and events.
const ServiceName = "review-service"

const (
	startupTimeout  = 10 * time.Second
	drainTimeout    = 5 * time.Second
	releaseTimeout  = 5 * time.Second
	metricsLabel    = "review"
	productsBreaker = "review-product-catalog"
)

// resource is a dependency released at shutdown.
type resource struct {
	name  string
	close func(context.Context) error
}

// App owns the review service's dependencies and runs its HTTP server and
// catalog-deletion consumer.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	productDeleted *pkgkafka.Consumer

	// resources are released in reverse order of acquisition.
	resources []resource
}

// NewApp connects to every backing service and wires the dependency graph.
// Anything acquired before a failure is released before returning.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.release()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.acquired("tracer", shutdownTracer)

	pool, err := a.openPostgres(ctx)
	if err != nil {
		return nil, err
	}
	rdb, err := a.openRedis(ctx)
	if err != nil {
		return nil, err
	}
	producer := a.openProducer(ctx)
	products := a.productClient()

	repo := postgres.NewReviewRepository(pool)
	reviews := service.NewReviewService(repo, products, event.NewProducer(producer, logger), logger)
	scoring, err := service.NewScoringService(repo, service.ScoringConfig{
		Confidence:    cfg.ScoringConfidence,
		Weights:       cfg.ScoringWeights,
		TopN:          cfg.ScoringTopN,
		Workers:       cfg.ScoringWorkers,
		ReferenceDate: cfg.ReferenceDate(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init scoring: %w", err)
	}

	a.productDeleted = a.deletionConsumer(rdb, reviews)

	checks := health.NewHandler()
	checks.RegisterCritical("postgres", pool.Ping)
	checks.RegisterCritical("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	checks.RegisterNonCritical("kafka", producer.Ping)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	a.httpServer = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler.NewRouter(reviews, scoring, checks, logger, handler.RouterConfig{
			ServiceName:       metricsLabel,
			CORS:              corsCfg,
			PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
			RatingCacheMaxAge: cfg.RatingCacheMaxAge,
		}),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) acquired(name string, close func(context.Context) error) {
	a.resources = append(a.resources, resource{name: name, close: close})
}

func (a *App) openPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := a.cfg
	pool, err := database.NewPostgresPoolWithLogger(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.acquired("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	database.RegisterPoolMetrics(pool, metricsLabel)
	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}
	return pool, nil
}

func (a *App) openRedis(ctx context.Context) (*goredis.Client, error) {
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPass,
		DB:       a.cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.acquired("redis", func(context.Context) error { return rdb.Close() })
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.RedisAddr))
	return rdb, nil
}

// openProducer never fails: review writes still succeed while Kafka is down,
// with event publication logged as failed.
func (a *App) openProducer(ctx context.Context) *pkgkafka.Producer {
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	a.acquired("kafka producer", func(context.Context) error { return producer.Close() })

	if err := retry.Startup.Do(ctx, a.logger, "ping kafka", nil, func() error {
		return producer.Ping(ctx)
	}); err != nil {
		a.logger.Warn("kafka unreachable, continuing in degraded mode", slog.String("error", err.Error()))
	} else {
		a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))
	}
	return producer
}

func (a *App) productClient() *client.ProductClient {
	cfg := a.cfg
	base := httpclient.New(httpclient.Config{
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 50,
	})
	guarded := httpclient.NewCircuitBreakerClient(base, httpclient.CircuitBreakerConfig{
		Name:         productsBreaker,
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}, a.logger).WithFallback(client.CircuitOpenFallback)

	a.logger.Info("product catalog client ready",
		slog.String("breaker", productsBreaker),
		slog.String("url", cfg.ProductServiceURL),
	)
	return client.NewProductClient(guarded, cfg.ProductServiceURL)
}

// deletionConsumer consumes catalog deletions, skipping events already
// recorded in Redis and parking poison messages on the DLQ.
func (a *App) deletionConsumer(rdb *goredis.Client, reviews *service.ReviewService) *pkgkafka.Consumer {
	cfg := a.cfg
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, a.logger)
	a.acquired("dlq producer", func(context.Context) error { return dlq.Close() })

	seen := redis.NewIdempotencyStore(rdb, time.Duration(cfg.IdempotencyTTLHours)*time.Hour)
	handle := pkgkafka.IdempotentHandler(seen, event.NewConsumer(reviews, a.logger).Handle, cfg.KafkaConsumerGroup, a.logger)

	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaConsumerGroup,
		Topic:    event.TopicProductDeleted,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, handle, a.logger).WithDLQ(dlq)
	a.acquired("product deleted consumer", func(context.Context) error { return consumer.Close() })
	return consumer
}

// Run serves HTTP and consumes catalog deletions until ctx is canceled or
// either stops with an error, then shuts down.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := a.productDeleted.Start(ctx); err != nil {
			errCh <- fmt.Errorf("product deleted consumer: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}
	return errors.Join(runErr, a.Shutdown())
}

// Shutdown drains in-flight HTTP requests and then releases every
// dependency, newest first, so the consumer stops before the stores it
// writes to and the tracer flushes last.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown failed", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	errs = append(errs, a.release())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) release() error {
	var errs []error
	for i := len(a.resources) - 1; i >= 0; i-- {
		r := a.resources[i]
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		if err := r.close(ctx); err != nil {
			a.logger.Error("release failed", slog.String("resource", r.name), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
		}
		cancel()
	}
	a.resources = nil
	return errors.Join(errs...)
}
