package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/loanledger/internal/adapter/http"
	"github.com/iho/loanledger/internal/adapter/http/handler"
	"github.com/iho/loanledger/internal/adapter/http/middleware"
	kafkaAdapter "github.com/iho/loanledger/internal/adapter/messaging/kafka"
	"github.com/iho/loanledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/loanledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/loanledger/internal/adapter/repository/redis"
	"github.com/iho/loanledger/internal/infrastructure/config"
	"github.com/iho/loanledger/internal/infrastructure/eventsender"
	"github.com/iho/loanledger/internal/infrastructure/logging"
	"github.com/iho/loanledger/internal/infrastructure/metrics"
	"github.com/iho/loanledger/internal/infrastructure/postgres"
	"github.com/iho/loanledger/internal/infrastructure/redis"
	"github.com/iho/loanledger/internal/usecase"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTimeout     = time.Hour
)

// appDeps are the process-wide collaborators shared by every component.
type appDeps struct {
	log            zerolog.Logger
	slog           *logging.Logger
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	now            func() time.Time
}

// app is the wired service.
type app struct {
	ledger   *usecase.LoanLedger
	router   http.Handler
	consumer *kafkaAdapter.PaymentConsumer
	closers  []func()
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func buildApp(ctx context.Context, cfg *config.Config, deps appDeps) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if deps.now == nil {
		deps.now = time.Now
	}

	idGen := postgresRepo.NewULIDGenerator()
	var checks []handler.HealthCheck

	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		checks = append(checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
		deps.log.Info().Msg("connected to redis")
	}

	var loanRepo usecase.LoanRepository
	switch cfg.LoanStore {
	case config.StoreRedis:
		loanRepo = redisRepo.NewLoanRepository(redisClient)
	case config.StorePostgres:
		if err = postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, err
		}

		var pool *pgxpool.Pool
		pool, err = postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		checks = append(checks, handler.HealthCheck{Name: "postgres", Check: pool.Ping})
		deps.log.Info().Msg("connected to postgres")

		retrier := postgresRepo.NewRetrier(postgresRepo.WithRetrierLogger(deps.slog.Logger))
		loanRepo = postgresRepo.NewLoanRepository(pool, retrier)
	default:
		loanRepo = memory.NewLoanRepository()
	}

	kafkaCfg := kafkaAdapter.Config{
		Brokers:           cfg.KafkaBrokers,
		ClientID:          cfg.KafkaClientID,
		GroupID:           cfg.KafkaGroupID,
		PaymentsTopic:     cfg.KafkaPaymentsTopic,
		LoanUpdatedTopic:  cfg.KafkaLoanUpdatedTopic,
		LoanFinishedTopic: cfg.KafkaLoanFinishedTopic,
	}

	var sink usecase.EventSender
	switch cfg.EventSink {
	case config.SinkKafka:
		var producer *kafkaAdapter.EventProducer
		producer, err = kafkaAdapter.NewEventProducer(kafkaCfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)
		sink = producer
	default:
		sink = eventsender.NewLogSender(deps.slog.Logger)
	}

	sender := eventsender.NewInstrumentedSender(
		eventsender.NewRetryingSender(sink, eventsender.RetryConfig{
			MaxRetries: cfg.EventSendMaxRetries,
			Observer:   deps.metrics,
			Logger:     deps.slog.Logger,
		}),
		deps.metrics,
	)

	a.ledger = usecase.NewLoanLedger(loanRepo, sender,
		usecase.WithLogger(deps.slog.Logger),
		usecase.WithPaymentRecorder(deps.metrics),
		usecase.WithEventSendTimeout(cfg.EventSendTimeout),
		usecase.WithClock(deps.now),
	)

	if cfg.SeedLoans {
		var inserted int
		inserted, err = a.ledger.Seed(ctx, usecase.DefaultSeedLoans(deps.now()))
		if err != nil {
			return nil, err
		}
		deps.log.Info().Int("inserted", inserted).Msg("seeded loans")
	}

	routerCfg := httpAdapter.RouterConfig{
		LoanHandler:    handler.NewLoanHandler(a.ledger),
		PaymentHandler: handler.NewPaymentHandler(a.ledger, idGen),
		HealthHandler:  handler.NewHealthHandler(checks...),
		ReplayObserver: deps.metrics,
		MetricsHandler: deps.metricsHandler,
		Logger:         deps.log,
	}

	if cfg.IdempotencyEnabled {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		routerCfg.IdempotencyTTL = cfg.IdempotencyTTL
	}

	if cfg.RateLimitEnabled() {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithObserver(deps.metrics)
		stop := make(chan struct{})
		go limiter.RunCleanup(stop, limiterCleanupInterval, limiterIdleTimeout)
		a.closers = append(a.closers, func() { close(stop) })
		routerCfg.RateLimiter = limiter
	}

	a.router = httpAdapter.NewRouter(routerCfg)

	if cfg.KafkaConsumerEnabled {
		a.consumer, err = kafkaAdapter.NewPaymentConsumer(kafkaCfg, a.ledger, idGen,
			kafkaAdapter.WithMessageObserver(deps.metrics),
			kafkaAdapter.WithConsumerLogger(deps.slog.Logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create payment consumer: %w", err)
		}
	}

	deps.slog.Info("loan ledger ready",
		slog.String("store", cfg.LoanStore),
		slog.String("event_sink", cfg.EventSink),
		slog.Bool("idempotency", cfg.IdempotencyEnabled),
		slog.Bool("kafka_consumer", cfg.KafkaConsumerEnabled))

	return a, nil
}
