package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/handler/api"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/middleware"
	internalrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/repository"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/service/binance"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/service/cache"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/service/ratelimit"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/services/inference"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/usecase"
	pkgcache "github.com/Yoitsuro/mySkripsiWebsite/pkg/cache"
	pkgch "github.com/Yoitsuro/mySkripsiWebsite/pkg/clickhouse"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/config"
	xhttp "github.com/Yoitsuro/mySkripsiWebsite/pkg/http"
	pkgkafka "github.com/Yoitsuro/mySkripsiWebsite/pkg/kafka"
	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/metrics"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/server"
)

// RESTSource is the candle source backed by the exchange REST API or the
// candle table, before any live book is layered on top.
type RESTSource struct {
	domrepo.CandleSource
}

func qualified(cfg *config.Config, table string) string {
	return cfg.ClickHouse.Database + "." + table
}

func needsClickHouse(cfg *config.Config) bool {
	return cfg.Exchange.Source == "clickhouse" ||
		cfg.Backend.Type == "clickhouse" ||
		cfg.Archive.Consume ||
		(cfg.Exchange.Stream.Enabled && cfg.Exchange.Stream.Persist)
}

func needsProducer(cfg *config.Config) bool {
	return cfg.Backend.Type == "kafka" || cfg.Log.CollectTopic != ""
}

// ProvideKafkaProducer creates a Kafka producer. Nil when nothing publishes.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !needsProducer(cfg) {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. Warn and error entries are
// aggregated and shipped to Kafka when log.collect_topic is set.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*xlogger.Logger, func(), error) {
	l, err := xlogger.New(&xlogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.CollectTopic == "" || producer == nil {
		return l, func() {}, nil
	}
	l.AddCollector(&xlogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Log.CollectTopic,
		Publisher:      producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics registers the forecasting metrics on the default registry.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient connects and creates the tables. Nil when no
// component reads or writes ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !needsClickHouse(cfg) {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx,
		"CREATE DATABASE IF NOT EXISTS "+cfg.ClickHouse.Database,
		internalrepo.CandleSchema(qualified(cfg, cfg.ClickHouse.CandlesTable)),
		internalrepo.ForecastSchema(qualified(cfg, cfg.ClickHouse.ForecastsTable)),
	); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideModelSet loads the three pretrained models.
func ProvideModelSet(cfg *config.Config) (*domsvc.ModelSet, error) {
	return inference.Load(cfg)
}

func ProvideForecaster(cfg *config.Config, ms *domsvc.ModelSet) (*usecase.Forecaster, error) {
	return usecase.NewForecaster(ms, cfg.Forecast.SeqLen, domrepo.Timeframe(cfg.Forecast.Timeframe))
}

// ProvideRESTSource selects the exchange client or the ClickHouse candle table.
func ProvideRESTSource(cfg *config.Config, ch *pkgch.Client, l *xlogger.Logger) (RESTSource, error) {
	switch cfg.Exchange.Source {
	case "clickhouse":
		if ch == nil {
			return RESTSource{}, fmt.Errorf("clickhouse source requires a clickhouse client")
		}
		return RESTSource{internalrepo.NewClickHouseCandleStore(ch, qualified(cfg, cfg.ClickHouse.CandlesTable), l)}, nil
	default:
		b := cfg.Exchange.Binance
		opts := []binance.Option{binance.WithLogger(l), binance.WithTimeout(b.Timeout)}
		if b.BaseURL != "" {
			opts = append(opts, binance.WithBaseURL(b.BaseURL))
		}
		return RESTSource{binance.NewClient(b.APIKey, b.SecretKey, b.RequestsPerMinute, opts...)}, nil
	}
}

// ProvideCandleBook returns the live book, nil when streaming is disabled.
func ProvideCandleBook(cfg *config.Config) *usecase.CandleBook {
	if !cfg.Exchange.Stream.Enabled {
		return nil
	}
	return usecase.NewCandleBook(cfg.Forecast.Symbol, domrepo.Timeframe(cfg.Forecast.Timeframe), cfg.Forecast.FetchLimit)
}

// ProvideCandleSource layers the live book over the REST source when present.
func ProvideCandleSource(cfg *config.Config, rest RESTSource, book *usecase.CandleBook) domrepo.CandleSource {
	if book == nil {
		return rest.CandleSource
	}
	return usecase.NewLiveCandleSource(book, rest.CandleSource, cfg.Exchange.Stream.StaleAfter)
}

// ProvideCandlePipeline persists finished live candles. Nil unless enabled.
func ProvideCandlePipeline(cfg *config.Config, ch *pkgch.Client, m domrepo.Metrics, l *xlogger.Logger) *middleware.CandlePipeline {
	s := cfg.Exchange.Stream
	if !s.Enabled || !s.Persist || ch == nil {
		return nil
	}
	store := internalrepo.NewClickHouseCandleStore(ch, qualified(cfg, cfg.ClickHouse.CandlesTable), l)
	return middleware.NewCandlePipeline(store, cfg.Forecast.Symbol, domrepo.Timeframe(cfg.Forecast.Timeframe), m, l,
		middleware.WithBatchSize(s.BatchSize),
		middleware.WithFlushInterval(s.FlushInterval),
		middleware.WithBufferSize(s.BufferSize),
	)
}

// ProvideCandleCollector wires the kline stream into the book.
func ProvideCandleCollector(
	cfg *config.Config,
	book *usecase.CandleBook,
	pipeline *middleware.CandlePipeline,
	m domrepo.Metrics,
	l *xlogger.Logger,
) *usecase.CandleCollector {
	if book == nil {
		return nil
	}
	s := cfg.Exchange.Stream
	stream := binance.NewStream(s.URL, cfg.Forecast.Symbol, domrepo.Timeframe(cfg.Forecast.Timeframe), s.ReconnectDelay, s.PingInterval, l)
	var opts []usecase.CollectorOption
	if pipeline != nil {
		opts = append(opts, usecase.WithCandleSink(pipeline))
	}
	return usecase.NewCandleCollector(stream, book, m, l, opts...)
}

// ProvideForecastCache returns the forecast result cache, nil for type none.
func ProvideForecastCache(cfg *config.Config) (cache.BytesCache, func(), error) {
	c := cfg.Cache
	redisStore := func() (*pkgcache.RedisCache, error) {
		return pkgcache.NewRedisCache(context.Background(),
			pkgcache.WithRedisHost(c.Redis.Host),
			pkgcache.WithRedisPort(c.Redis.Port),
			pkgcache.WithRedisPassword(c.Redis.Password),
			pkgcache.WithRedisDB(c.Redis.DB),
			pkgcache.WithRedisPool(c.Redis.PoolSize, 2, 30*time.Second),
			pkgcache.WithRedisPrefix(c.Redis.Prefix),
		)
	}

	switch c.Type {
	case "memory":
		mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(c.MemorySize))
		return mc, func() { _ = mc.Close() }, nil
	case "redis":
		rc, err := redisStore()
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { _ = rc.Close() }, nil
	case "layered":
		rc, err := redisStore()
		if err != nil {
			return nil, nil, err
		}
		lc := pkgcache.NewLayeredCache(rc,
			pkgcache.WithLayeredMemorySize(c.MemorySize),
			pkgcache.WithLayeredMemoryTTL(c.TTL),
		)
		return lc, func() { _ = lc.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// ProvideForecastArchive returns the ClickHouse archive, nil without a client.
func ProvideForecastArchive(cfg *config.Config, ch *pkgch.Client) domrepo.ForecastArchive {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseForecastArchive(ch.DB(), qualified(cfg, cfg.ClickHouse.ForecastsTable))
}

// ProvideForecastPublisher returns the Kafka publisher, nil without a producer.
func ProvideForecastPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.ForecastPublisher {
	if producer == nil || cfg.Backend.Type != "kafka" {
		return nil
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.Topic)
}

// ProvideForecastRecorder archives served forecasts. Nil for backend none.
func ProvideForecastRecorder(
	cfg *config.Config,
	pub domrepo.ForecastPublisher,
	archive domrepo.ForecastArchive,
	m domrepo.Metrics,
) (*usecase.ForecastRecorder, func()) {
	if cfg.Backend.Type == "none" {
		return nil, func() {}
	}
	recorder := usecase.NewForecastRecorder(pub, archive, m, cfg.Backend.Type)
	return recorder, recorder.Close
}

func ProvideForecastUseCase(
	cfg *config.Config,
	source domrepo.CandleSource,
	engine *usecase.Forecaster,
	c cache.BytesCache,
	recorder *usecase.ForecastRecorder,
	m domrepo.Metrics,
	l *xlogger.Logger,
) *usecase.ForecastUseCase {
	f := cfg.Forecast
	return usecase.NewForecastUseCase(source, engine, c, recorder, m, l, usecase.ForecastSettings{
		DefaultSymbol:   f.Symbol,
		FetchLimit:      f.FetchLimit,
		HistoryMargin:   f.HistoryMargin,
		MaxHorizonHours: f.MaxHorizonHours,
		ReuseTrajectory: f.ReuseTrajectory,
		CacheTTL:        cfg.Cache.TTL,
	})
}

func ProvideHistoryUseCase(cfg *config.Config, source domrepo.CandleSource) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(source, domrepo.Timeframe(cfg.Forecast.Timeframe), cfg.Forecast.Symbol)
}

func ProvideReferenceUseCase(cfg *config.Config, l *xlogger.Logger) *usecase.ReferenceUseCase {
	store := internalrepo.NewCSVReferenceStore(cfg.Reference.MetricsPath, cfg.Reference.EvalSeriesPath)
	if _, err := store.Metrics(context.Background()); err != nil {
		l.Warn("reference metrics unavailable", xlogger.Error(err))
	}
	if _, err := store.EvalSeries(context.Background(), 1); err != nil {
		l.Warn("reference eval series unavailable", xlogger.Error(err))
	}
	return usecase.NewReferenceUseCase(store)
}

func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideHTTPHandler builds the forecasting API routes. GET /ready checks the
// archive and the cache when they are configured.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *xlogger.Logger,
	forecast *usecase.ForecastUseCase,
	history *usecase.HistoryUseCase,
	reference *usecase.ReferenceUseCase,
	limiter *ratelimit.Limiter,
	archive domrepo.ForecastArchive,
	c cache.BytesCache,
) xhttp.Handler {
	h := api.NewForecastEchoHandler(l, forecast, history, reference, limiter, api.HandlerSettings{
		DefaultHorizons: cfg.Forecast.DefaultHorizons,
		RateCapacity:    cfg.Forecast.RateCapacity,
		RateRefill:      cfg.Forecast.RateRefill,
	})
	if archive != nil {
		h.AddReadinessCheck("clickhouse", archive.Health)
	}
	if p, ok := c.(pkgcache.Pinger); ok {
		h.AddReadinessCheck("cache", p.Ping)
	}
	return h
}

// ProvideKafkaConsumer creates the archive consumer. Nil unless archive.consume is set.
func ProvideKafkaConsumer(cfg *config.Config, l *xlogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Archive.Consume {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideArchiveHandler stores consumed forecast events in ClickHouse.
func ProvideArchiveHandler(cfg *config.Config, archive domrepo.ForecastArchive, m domrepo.Metrics) pkgkafka.MessageHandler {
	if !cfg.Archive.Consume || archive == nil {
		return nil
	}
	return usecase.NewForecastArchiveHandler(cfg.Kafka.Topic, archive, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *xlogger.Logger,
	handler xhttp.Handler,
	collector *usecase.CandleCollector,
	pipeline *middleware.CandlePipeline,
	consumer *pkgkafka.Consumer,
	archiveHandler pkgkafka.MessageHandler,
	limiter *ratelimit.Limiter,
) *server.App {
	return server.New(cfg, l, handler, server.Background{
		Collector:      collector,
		Pipeline:       pipeline,
		Consumer:       consumer,
		ArchiveHandler: archiveHandler,
		Limiter:        limiter,
	})
}
