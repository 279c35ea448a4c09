package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	"CryptoFactors/internal/handler/api"
	internalrepo "CryptoFactors/internal/repository"
	"CryptoFactors/internal/scheduler"
	"CryptoFactors/internal/service/feed"
	"CryptoFactors/internal/usecase"
	"CryptoFactors/pkg/cache"
	pkgch "CryptoFactors/pkg/clickhouse"
	"CryptoFactors/pkg/config"
	xhttp "CryptoFactors/pkg/http"
	pkgkafka "CryptoFactors/pkg/kafka"
	applogger "CryptoFactors/pkg/logger"
	"CryptoFactors/pkg/metrics"
	"CryptoFactors/pkg/postgres"
	"CryptoFactors/pkg/server"
)

// Stores bundles the persistence layer picked by the storage backend.
type Stores struct {
	Ticks      domrepo.TickStore
	Aggregates domrepo.AggregateStore
	Queue      domrepo.DateQueue
	Cache      cache.Service

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideStores builds the tick store, aggregate store, date queue, and
// cache for the configured backend. "postgres" means ClickHouse ticks with
// Postgres aggregates and a Redis queue; "memory" keeps everything in
// process for development and tests.
func ProvideStores(cfg *config.Config, l *applogger.Logger) (*Stores, error) {
	if cfg.Storage.Backend == "memory" {
		return &Stores{
			Ticks:      internalrepo.NewMemoryTickStore(),
			Aggregates: internalrepo.NewMemoryAggregateStore(),
			Queue:      internalrepo.NewMemoryDateQueue(),
			Cache:      cache.NewMemoryCache(),
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	chClient, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := chClient.InitSchema(ctx, internalrepo.TickSchemaStatements); err != nil {
		_ = chClient.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	pgPool, err := postgres.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		_ = chClient.Close()
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	aggStore := internalrepo.NewPGAggregateStore(pgPool)
	if err := aggStore.InitSchema(ctx); err != nil {
		_ = chClient.Close()
		pgPool.Close()
		return nil, err
	}

	if !cfg.Redis.Enabled {
		_ = chClient.Close()
		pgPool.Close()
		return nil, fmt.Errorf("redis must be enabled for the postgres storage backend")
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = chClient.Close()
		pgPool.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := &Stores{
		Ticks:      internalrepo.NewCHTickStore(chClient, l),
		Aggregates: aggStore,
		Queue:      internalrepo.NewRedisDateQueue(redisClient, "cryptofactors:dates", l),
		Cache:      cache.NewRedisCache(redisClient, cache.WithRedisPrefix("cryptofactors:cache")),
	}
	s.closers = append(s.closers,
		chClient,
		closerFunc(func() error { pgPool.Close(); return nil }),
		redisClient,
	)
	return s, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when the ingest
// backend does not publish.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Ingest.Backend != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideTickPublisher wraps the producer as the tick transport.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.TickPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates the tick consumer, or nil when Kafka ingest
// is off.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Ingest.Backend != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideTickIngestor wires the ingest path.
func ProvideTickIngestor(
	pub domrepo.TickPublisher,
	stores *Stores,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.TickIngestor {
	return usecase.NewTickIngestor(pub, stores.Ticks, stores.Queue, m, l, cfg.Ingest.Backend)
}

// ProvideKafkaTicksHandler consumes the ticks topic into the ingestor.
func ProvideKafkaTicksHandler(ingestor *usecase.TickIngestor, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, ingestor, m)
}

// ProvideTickStream creates the WebSocket feed, or nil when disabled.
func ProvideTickStream(cfg *config.Config, l *applogger.Logger) domrepo.TickStream {
	if !cfg.Feed.Enabled {
		return nil
	}
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Symbols,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		l,
	)
}

// ProvideTickCollector pumps the feed into the ingestor, or nil without a
// feed.
func ProvideTickCollector(stream domrepo.TickStream, ingestor *usecase.TickIngestor, l *applogger.Logger, cfg *config.Config) *usecase.TickCollector {
	if stream == nil {
		return nil
	}
	return usecase.NewTickCollector(stream, ingestor, l, cfg.Ingest.BatchSize, cfg.Ingest.BatchTimeout)
}

// ProvideDailyAggregator creates the daily factor computation.
func ProvideDailyAggregator(stores *Stores, m domrepo.Metrics, l *applogger.Logger) *usecase.DailyAggregator {
	return usecase.NewDailyAggregator(stores.Ticks, m, l)
}

// ProvideWindowAggregator creates the rolling window computation.
func ProvideWindowAggregator(stores *Stores, m domrepo.Metrics, l *applogger.Logger) *usecase.WindowAggregator {
	return usecase.NewWindowAggregator(stores.Aggregates, m, l)
}

// ProvideReconciler creates the insert-or-update step.
func ProvideReconciler(stores *Stores, m domrepo.Metrics, l *applogger.Logger) *usecase.Reconciler {
	return usecase.NewReconciler(stores.Aggregates, m, l)
}

// ProvideDateProcessor creates the full-pass orchestrator.
func ProvideDateProcessor(
	daily *usecase.DailyAggregator,
	windows *usecase.WindowAggregator,
	reconciler *usecase.Reconciler,
	stores *Stores,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.DateProcessor {
	return usecase.NewDateProcessor(daily, windows, reconciler, stores.Queue, m, l, usecase.DefaultDate(cfg.Scheduler.DefaultDate))
}

// ProvideFactorService creates the query service.
func ProvideFactorService(stores *Stores, windows *usecase.WindowAggregator, m domrepo.Metrics, l *applogger.Logger) *usecase.FactorService {
	return usecase.NewFactorService(stores.Aggregates, windows, stores.Cache, m, l)
}

// ProvideScheduler creates the periodic pass runner, or nil when disabled.
func ProvideScheduler(processor *usecase.DateProcessor, stores *Stores, cfg *config.Config, l *applogger.Logger) *scheduler.Scheduler {
	if !cfg.Scheduler.Enabled {
		return nil
	}
	seeds := make([]models.Date, 0, len(cfg.Scheduler.PredefinedDates))
	for _, raw := range cfg.Scheduler.PredefinedDates {
		d, err := models.ParseDate(raw)
		if err != nil {
			l.Warn("skipping invalid predefined date", applogger.String("date", raw))
			continue
		}
		seeds = append(seeds, d)
	}
	return scheduler.New(processor, stores.Queue, cfg.Scheduler.Interval, seeds, l)
}

// ProvideHTTPHandler assembles the API surface.
func ProvideHTTPHandler(l *applogger.Logger, factors *usecase.FactorService, ingestor *usecase.TickIngestor, stores *Stores, cfg *config.Config) xhttp.Handler {
	return xhttp.Handlers{
		api.NewFactorsEchoHandler(l, factors, cfg.Crypto.SupportedCurrencies),
		api.NewTicksEchoHandler(l, ingestor),
		api.NewHealthEchoHandler(l, stores.Ticks),
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	collector *usecase.TickCollector,
	ingestor *usecase.TickIngestor,
	stores *Stores,
) *server.App {
	var mh pkgkafka.MessageHandler
	if consumer != nil {
		mh = kh
	}
	app := server.New(cfg, l, handler, sched, consumer, mh, collector)
	app.AddCloser(closerFunc(func() error { ingestor.Close(); return nil }))
	for _, c := range stores.closers {
		app.AddCloser(c)
	}
	return app
}
